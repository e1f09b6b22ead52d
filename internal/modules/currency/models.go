package currency

// Sale is the digested sales data for one item. A sale row exists iff the
// item's effective note parses to a positive price; it is unique on the
// item's external id.
type Sale struct {
	ID              int64
	ItemID          int64
	ItemAPIID       string
	Name            string
	IsCurrency      bool
	SaleCurrency    string
	SaleAmount      float64
	SaleAmountChaos *float64 // Chaos value at extraction time; nil until valued
	ItemUpdatedAt   int64    // Mirrors the originating item's updated_at
	CreatedAt       int64
	UpdatedAt       int64
}

// CurrencySummary is one edge of the exchange graph: the rolling weighted
// statistics of observed sales of from_currency priced in to_currency within
// a league. Unique on (from_currency, to_currency, league).
type CurrencySummary struct {
	ID           int64   `json:"id"`
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	League       string  `json:"league"`
	Count        int     `json:"count"`        // Rows considered after outlier rejection
	Mean         float64 `json:"mean"`         // Weighted
	StandardDev  float64 `json:"standard_dev"` // Weighted, population form
	Weight       float64 `json:"weight"`       // Sum of weights used; the edge's reliability score
	CreatedAt    int64   `json:"created_at"`
	UpdatedAt    int64   `json:"updated_at"`
}

// PricePoint is one historical sale observation used for summary statistics.
type PricePoint struct {
	Amount    float64
	UpdatedAt int64 // item_updated_at of the sale
}
