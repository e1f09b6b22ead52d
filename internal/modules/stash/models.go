// Package stash persists stash tabs and their items as seen on the public
// feed. Rows are created on first sighting, updated in place on re-ingest,
// and never deleted; item liveness is tracked through the active flag.
package stash

// Stash is the persisted form of a stash tab.
type Stash struct {
	ID                int64
	APIID             string
	AccountName       string
	LastCharacterName string
	Name              string // Display name; free text, may carry a price tag
	Type              string
	Public            bool
	CreatedAt         int64
	UpdatedAt         int64
}

// Item is the persisted form of an item. JSON-bag columns are kept as raw
// JSON text; the currency processor only ever inspects category.
type Item struct {
	ID            int64
	APIID         string
	StashID       int64
	Name          string
	TypeLine      string
	League        string
	Note          string
	Category      string
	Active        bool
	CreatedAt     int64
	UpdatedAt     int64
}
