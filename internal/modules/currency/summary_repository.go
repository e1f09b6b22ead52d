package currency

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/database"
)

// summaryColumns is the column list for currency_summary reads.
const summaryColumns = `id, from_currency, to_currency, league, count, mean,
	standard_dev, weight, created_at, updated_at`

// SummaryRepository handles currency_summary table operations. The summary
// updater is the sole writer; the valuation engine and the HTTP API read.
type SummaryRepository struct {
	db  database.DBTX
	log zerolog.Logger
	now func() int64
}

// NewSummaryRepository creates a new currency summary repository.
func NewSummaryRepository(db database.DBTX, log zerolog.Logger) *SummaryRepository {
	return &SummaryRepository{
		db:  db,
		log: log.With().Str("repo", "currency-summary").Logger(),
		now: func() int64 { return time.Now().Unix() },
	}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *SummaryRepository) WithTx(tx *sql.Tx) *SummaryRepository {
	bound := *r
	bound.db = tx
	return &bound
}

// WithClock overrides the repository clock.
func (r *SummaryRepository) WithClock(now func() int64) *SummaryRepository {
	bound := *r
	bound.now = now
	return &bound
}

// Get returns the summary for one bucket, or nil when absent.
func (r *SummaryRepository) Get(from, to, league string) (*CurrencySummary, error) {
	row := r.db.QueryRow(
		"SELECT "+summaryColumns+" FROM currency_summary WHERE from_currency = ? AND to_currency = ? AND league = ?",
		from, to, league)

	s, err := scanSummary(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summary %s->%s (%s): %w", from, to, league, err)
	}
	return s, nil
}

// Upsert writes the statistics for one bucket, stamping created_at only on
// insert.
func (r *SummaryRepository) Upsert(from, to, league string, count int, mean, stddev, weight float64) error {
	now := r.now()
	_, err := r.db.Exec(`
		INSERT INTO currency_summary (from_currency, to_currency, league,
			count, mean, standard_dev, weight, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency, league) DO UPDATE SET
			count = excluded.count,
			mean = excluded.mean,
			standard_dev = excluded.standard_dev,
			weight = excluded.weight,
			updated_at = excluded.updated_at`,
		from, to, league, count, mean, stddev, weight, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert summary %s->%s (%s): %w", from, to, league, err)
	}
	return nil
}

// DistinctFromCurrencies returns every from_currency name seen so far.
// Feeds the per-pass alias map rebuild.
func (r *SummaryRepository) DistinctFromCurrencies() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT from_currency FROM currency_summary")
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct currencies: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan currency name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read distinct currencies: %w", err)
	}

	return names, nil
}

// ListByFromLeague returns every edge out of a currency in a league, ordered
// by weight descending. The valuation engine relies on that ordering.
func (r *SummaryRepository) ListByFromLeague(from, league string) ([]CurrencySummary, error) {
	rows, err := r.db.Query(
		"SELECT "+summaryColumns+" FROM currency_summary WHERE from_currency = ? AND league = ? ORDER BY weight DESC",
		from, league)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries from %s (%s): %w", from, league, err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

// ListByLeague returns every summary row in a league; serves the HTTP API.
func (r *SummaryRepository) ListByLeague(league string) ([]CurrencySummary, error) {
	rows, err := r.db.Query(
		"SELECT "+summaryColumns+" FROM currency_summary WHERE league = ? ORDER BY weight DESC",
		league)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries for league %s: %w", league, err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

// ListStale returns summaries not updated since the given time; the
// maintenance refresh recomputes them.
func (r *SummaryRepository) ListStale(olderThan int64) ([]CurrencySummary, error) {
	rows, err := r.db.Query(
		"SELECT "+summaryColumns+" FROM currency_summary WHERE updated_at < ?",
		olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale summaries: %w", err)
	}
	defer rows.Close()

	return collectSummaries(rows)
}

// Count returns the number of summary rows.
func (r *SummaryRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM currency_summary").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	return n, nil
}

func collectSummaries(rows *sql.Rows) ([]CurrencySummary, error) {
	var summaries []CurrencySummary
	for rows.Next() {
		s, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summary rows: %w", err)
	}
	return summaries, nil
}

func scanSummary(scan func(dest ...interface{}) error) (*CurrencySummary, error) {
	var s CurrencySummary
	err := scan(&s.ID, &s.FromCurrency, &s.ToCurrency, &s.League, &s.Count,
		&s.Mean, &s.StandardDev, &s.Weight, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
