package currency

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/database"
)

// DefaultBlockSize is the number of joined item rows fetched and committed
// per transaction.
const DefaultBlockSize = 1000

// ProcessorConfig holds the driver knobs.
type ProcessorConfig struct {
	StartTime  *int64 // First item update time to process; nil = resume point
	Continuous bool   // Start over when a pass completes
	Limit      int    // Stop a pass after this many rows; 0 = unlimited
	BlockSize  int    // Rows per transaction; defaults to DefaultBlockSize
	Recent     int64  // Summary cache horizon in seconds; 0 disables it
}

// Processor is the currency post-processor driver. It paginates unprocessed
// items in ascending update-time order, extracts sales, and keeps the
// exchange summaries current. The processor owns the store session; one
// transaction covers each block, and cancellation is honored between blocks
// and during the continuous-mode sleep.
type Processor struct {
	db  *database.DB
	cfg ProcessorConfig
	now func() int64
	log zerolog.Logger
}

// NewProcessor creates a currency processor.
func NewProcessor(db *database.DB, cfg ProcessorConfig, log zerolog.Logger) *Processor {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultBlockSize
	}
	return &Processor{
		db:  db,
		cfg: cfg,
		now: func() int64 { return time.Now().Unix() },
		log: log.With().Str("component", "currency-processor").Logger(),
	}
}

// WithClock overrides the processor clock (and that of everything it builds).
func (p *Processor) WithClock(now func() int64) *Processor {
	bound := *p
	bound.now = now
	return &bound
}

// Run processes all currency data seen to date. In continuous mode it starts
// over after each pass, sleeping briefly whenever a pass ends on the same
// last sale as the one before it.
func (p *Processor) Run(ctx context.Context) error {
	var prevLast *int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		passID := uuid.New().String()[:8]
		passLog := p.log.With().Str("pass", passID).Logger()

		// Snapshot the currency vocabulary for this pass.
		summaries := NewSummaryRepository(p.db, passLog).WithClock(p.now)
		names, err := summaries.DistinctFromCurrencies()
		if err != nil {
			return err
		}
		aliases := BuildAliasMap(names)

		start, err := p.resolveStart(passLog)
		if err != nil {
			return err
		}

		rowsDone, lastSale, err := p.runPass(ctx, passLog, aliases, start)
		if err != nil {
			return err
		}

		if sameSale(prevLast, lastSale) {
			if p.cfg.Continuous {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(time.Second):
				}
			}
		} else {
			prevLast = lastSale
			passLog.Info().Int("rows", rowsDone).Msg("Processed rows in a pass")
		}

		if !p.cfg.Continuous {
			return nil
		}
	}
}

// sameSale reports whether two passes ended on the same last sale. Two
// passes that recorded no sale at all also count as the same, so an idle
// continuous run sleeps between passes instead of polling the store.
func sameSale(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// resolveStart picks the pass start time: the configured start if set, else
// the resume point (item update time of the most recent sale), else nothing
// (full scan).
func (p *Processor) resolveStart(log zerolog.Logger) (*int64, error) {
	if p.cfg.StartTime != nil {
		log.Info().Int64("start", *p.cfg.StartTime).Msg("Starting from configured time")
		return p.cfg.StartTime, nil
	}

	sales := NewSaleRepository(p.db, log).WithClock(p.now)
	last, ok, err := sales.LastProcessedTime()
	if err != nil {
		return nil, err
	}
	if ok {
		log.Info().Int64("start", last).Msg("Resuming from last processed sale")
		return &last, nil
	}

	log.Info().Msg("Starting from beginning of item data")
	return nil, nil
}

// runPass walks all outstanding rows in blocks of cfg.BlockSize, committing
// after each block, until it sees a partial block (or hits the row limit).
// Returns the number of rows examined and the id of the last sale recorded.
func (p *Processor) runPass(ctx context.Context, log zerolog.Logger, aliases AliasMap, start *int64) (int, *int64, error) {
	offset := 0
	allProcessed := 0
	var lastSale *int64
	todo := true

	for todo {
		if err := ctx.Err(); err != nil {
			return allProcessed, lastSale, err
		}

		blockSize := p.cfg.BlockSize
		if p.cfg.Limit > 0 && p.cfg.Limit-allProcessed < blockSize {
			blockSize = p.cfg.Limit - allProcessed
			if blockSize <= 0 {
				break
			}
		}

		var count int
		err := database.WithTransaction(p.db.Conn(), func(tx *sql.Tx) error {
			var err error
			count, lastSale, err = p.processBlock(tx, log, aliases, start, blockSize, offset, lastSale)
			return err
		})
		if err != nil {
			return allProcessed, lastSale, err
		}

		todo = count == blockSize && blockSize == p.cfg.BlockSize
		offset += count
		allProcessed += count
	}

	return allProcessed, lastSale, nil
}

// processBlock fetches one block of joined item/stash rows and feeds each
// through the sale extractor. Everything inside runs on the block's
// transaction so that a flushed sale is visible to the summary statistics of
// every later sale in the block.
func (p *Processor) processBlock(tx *sql.Tx, log zerolog.Logger, aliases AliasMap,
	start *int64, blockSize, offset int, lastSale *int64) (int, *int64, error) {

	rows, err := p.queryBlock(tx, start, blockSize, offset)
	if err != nil {
		return 0, lastSale, err
	}

	parser := NewNoteParser(aliases, log)
	sales := NewSaleRepository(tx, log).WithClock(p.now)
	summaries := NewSummaryRepository(tx, log).WithClock(p.now)
	updater := NewSummaryUpdater(sales, summaries, p.cfg.Recent, log).WithClock(p.now)
	valuer := NewValuer(summaries, log)

	count := 0
	for i := range rows {
		count++
		if (offset+count)%1000 == 0 {
			log.Info().
				Int("rows", offset+count).
				Int64("at", rows[i].ItemUpdatedAt).
				Msg("Rows in...")
		}
		saleID, recorded, err := p.processSale(&rows[i], parser, sales, updater, valuer, log)
		if err != nil {
			return count, lastSale, err
		}
		if recorded {
			id := saleID
			lastSale = &id
		}
	}

	return count, lastSale, nil
}

// pricedRow is one joined (item, stash) row of the pagination query.
type pricedRow struct {
	ItemID        int64
	ItemAPIID     string
	Name          string
	TypeLine      string
	Note          string
	Category      string
	League        string
	ItemUpdatedAt int64
	StashName     string
}

// queryBlock pages active items of public stashes that carry an item note or
// a stash price tag, in ascending (updated_at, created_at, id) order.
func (p *Processor) queryBlock(tx *sql.Tx, start *int64, blockSize, offset int) ([]pricedRow, error) {
	query := `
		SELECT i.id, i.api_id, i.name, i.type_line, COALESCE(i.note, ''),
			COALESCE(i.category, ''), i.league, i.updated_at,
			COALESCE(s.stash_name, '')
		FROM item i
		JOIN stash s ON s.id = i.stash_id
		WHERE i.active = 1
			AND s.public = 1
			AND ((i.note IS NOT NULL AND i.note != '')
				OR (s.stash_name IS NOT NULL AND s.stash_name != ''))`
	args := []interface{}{}
	if start != nil {
		query += " AND i.updated_at >= ?"
		args = append(args, *start)
	}
	query += " ORDER BY i.updated_at, i.created_at, i.id LIMIT ? OFFSET ?"
	args = append(args, blockSize, offset)

	sqlRows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item block: %w", err)
	}
	defer sqlRows.Close()

	var rows []pricedRow
	for sqlRows.Next() {
		var r pricedRow
		err := sqlRows.Scan(&r.ItemID, &r.ItemAPIID, &r.Name, &r.TypeLine,
			&r.Note, &r.Category, &r.League, &r.ItemUpdatedAt, &r.StashName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item block row: %w", err)
		}
		rows = append(rows, r)
	}
	if err := sqlRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read item block: %w", err)
	}

	return rows, nil
}

// processSale decides whether a joined row carries a sale and, if so,
// upserts the sale row, refreshes the summary bucket, and stores the chaos
// value when one can be derived. A row with no parsable positive price is
// simply skipped; nothing here fails a block over one bad note.
func (p *Processor) processSale(row *pricedRow, parser *NoteParser, sales *SaleRepository,
	updater *SummaryUpdater, valuer *Valuer, log zerolog.Logger) (int64, bool, error) {

	if !strings.HasPrefix(row.Note, "~") && !strings.HasPrefix(row.StashName, "~") {
		log.Debug().Int64("item", row.ItemID).Msg("No sale")
		return 0, false, nil
	}

	isCurrency := categoryHasKey(row.Category, "currency")
	var name string
	if isCurrency {
		name = row.TypeLine
	} else {
		name = strings.TrimSpace(row.Name + " " + row.TypeLine)
	}

	// Item note first, stash price tag as fallback.
	price, saleCurrency, ok := parser.Parse(row.Note)
	if !ok {
		price, saleCurrency, ok = parser.Parse(row.StashName)
	}
	if !ok || price == 0 {
		log.Debug().Int64("item", row.ItemID).Msg("No sale")
		return 0, false, nil
	}

	log.Debug().
		Str("name", name).
		Bool("currency", isCurrency).
		Float64("price", price).
		Str("in", saleCurrency).
		Msg("For sale")

	saleID, err := sales.Upsert(row.ItemID, row.ItemAPIID, name, isCurrency,
		saleCurrency, price, row.ItemUpdatedAt)
	if err != nil {
		return 0, false, err
	}

	chaos, err := updater.RecordSale(valuer, name, saleCurrency, row.League,
		price, row.ItemUpdatedAt, isCurrency)
	if err != nil {
		return 0, false, err
	}
	if chaos != nil {
		log.Debug().
			Str("name", name).
			Float64("price", price).
			Str("in", saleCurrency).
			Float64("chaos", *chaos).
			Msg("Found chaos value")
		if err := sales.SetChaosValue(saleID, *chaos); err != nil {
			return 0, false, err
		}
	}

	return saleID, true, nil
}

// categoryHasKey reports whether the item's category JSON object contains
// the given top-level key. Malformed or empty category data simply means no.
func categoryHasKey(category, key string) bool {
	if category == "" {
		return false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(category), &keys); err != nil {
		return false
	}
	_, ok := keys[key]
	return ok
}
