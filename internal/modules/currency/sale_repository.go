package currency

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/database"
)

// SaleRepository handles sale table operations.
type SaleRepository struct {
	db  database.DBTX
	log zerolog.Logger
	now func() int64
}

// NewSaleRepository creates a new sale repository.
func NewSaleRepository(db database.DBTX, log zerolog.Logger) *SaleRepository {
	return &SaleRepository{
		db:  db,
		log: log.With().Str("repo", "sale").Logger(),
		now: func() int64 { return time.Now().Unix() },
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SaleRepository) WithTx(tx *sql.Tx) *SaleRepository {
	bound := *r
	bound.db = tx
	return &bound
}

// WithClock overrides the repository clock.
func (r *SaleRepository) WithClock(now func() int64) *SaleRepository {
	bound := *r
	bound.now = now
	return &bound
}

// Upsert inserts or updates the sale for an item, keyed on item_id. On
// insert the chaos value starts out null; on update it is reset to null
// because the price may have changed and will be re-valued by the caller.
// Returns the sale's primary key.
func (r *SaleRepository) Upsert(itemID int64, itemAPIID, name string, isCurrency bool,
	saleCurrency string, saleAmount float64, itemUpdatedAt int64) (int64, error) {

	now := r.now()

	var existingID int64
	err := r.db.QueryRow("SELECT id FROM sale WHERE item_id = ?", itemID).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
		result, err := r.db.Exec(`
			INSERT INTO sale (item_id, item_api_id, name, is_currency,
				sale_currency, sale_amount, sale_amount_chaos,
				item_updated_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
			itemID, itemAPIID, name, boolToInt(isCurrency),
			saleCurrency, saleAmount, itemUpdatedAt, now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert sale for item %d: %w", itemID, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get sale id for item %d: %w", itemID, err)
		}
		return id, nil

	case err != nil:
		return 0, fmt.Errorf("failed to query sale for item %d: %w", itemID, err)

	default:
		_, err := r.db.Exec(`
			UPDATE sale SET name = ?, is_currency = ?, sale_currency = ?,
				sale_amount = ?, sale_amount_chaos = NULL,
				item_updated_at = ?, updated_at = ?
			WHERE id = ?`,
			name, boolToInt(isCurrency), saleCurrency,
			saleAmount, itemUpdatedAt, now, existingID)
		if err != nil {
			return 0, fmt.Errorf("failed to update sale %d: %w", existingID, err)
		}
		return existingID, nil
	}
}

// SetChaosValue stores the chaos-denominated value on a sale row.
func (r *SaleRepository) SetChaosValue(saleID int64, value float64) error {
	_, err := r.db.Exec("UPDATE sale SET sale_amount_chaos = ? WHERE id = ?", value, saleID)
	if err != nil {
		return fmt.Errorf("failed to set chaos value on sale %d: %w", saleID, err)
	}
	return nil
}

// GetByItemAPIID returns the sale for an item, or nil when absent.
func (r *SaleRepository) GetByItemAPIID(itemAPIID string) (*Sale, error) {
	row := r.db.QueryRow(`
		SELECT id, item_id, item_api_id, name, is_currency, sale_currency,
			sale_amount, sale_amount_chaos, item_updated_at, created_at, updated_at
		FROM sale WHERE item_api_id = ?`, itemAPIID)
	return scanSale(row)
}

// LastProcessedTime returns the item update time of the most recent sale.
// This is the driver's resume point; ok is false on an empty table.
func (r *SaleRepository) LastProcessedTime() (int64, bool, error) {
	var t sql.NullInt64
	err := r.db.QueryRow("SELECT MAX(item_updated_at) FROM sale").Scan(&t)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query last processed time: %w", err)
	}
	if !t.Valid {
		return 0, false, nil
	}
	return t.Int64, true, nil
}

// History returns the sale observations for one (name, currency, league)
// bucket inside the relevance window. League lives on the item, so the query
// joins back to it.
func (r *SaleRepository) History(name, saleCurrency, league string, windowStart int64) ([]PricePoint, error) {
	rows, err := r.db.Query(`
		SELECT s.sale_amount, s.item_updated_at
		FROM sale s
		JOIN item i ON s.item_id = i.id
		WHERE s.name = ? AND s.sale_currency = ? AND i.league = ?
			AND s.item_updated_at > ?`,
		name, saleCurrency, league, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale history: %w", err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Amount, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale history row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sale history: %w", err)
	}

	return points, nil
}

// Count returns the number of sale rows; used by tests and the health handler.
func (r *SaleRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM sale").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sales: %w", err)
	}
	return n, nil
}

func scanSale(row *sql.Row) (*Sale, error) {
	var s Sale
	var chaos sql.NullFloat64
	err := row.Scan(&s.ID, &s.ItemID, &s.ItemAPIID, &s.Name, &s.IsCurrency,
		&s.SaleCurrency, &s.SaleAmount, &chaos, &s.ItemUpdatedAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sale: %w", err)
	}
	if chaos.Valid {
		s.SaleAmountChaos = &chaos.Float64
	}
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
