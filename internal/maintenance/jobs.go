package maintenance

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/database"
	"github.com/aristath/poefixer/internal/modules/currency"
)

// DefaultStaleAge is how long a summary may go without recomputation before
// the refresh job picks it up.
const DefaultStaleAge = 24 * time.Hour

// WALCheckpointJob truncates the write-ahead log so it cannot grow without
// bound under the continuous ingest write load.
type WALCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates a WAL checkpoint job.
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:  db,
		log: log.With().Str("job", "wal-checkpoint").Logger(),
	}
}

// Name returns the job name.
func (j *WALCheckpointJob) Name() string { return "wal-checkpoint" }

// Run performs a truncating WAL checkpoint.
func (j *WALCheckpointJob) Run() error {
	start := time.Now()
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}
	j.log.Info().Dur("took", time.Since(start)).Msg("WAL checkpoint complete")
	return nil
}

// SummaryRefreshJob recomputes summaries that have not been touched by the
// processor recently, so that buckets for currencies nobody is currently
// selling still decay toward their recent history.
type SummaryRefreshJob struct {
	summaries *currency.SummaryRepository
	updater   *currency.SummaryUpdater
	staleAge  time.Duration
	now       func() int64
	log       zerolog.Logger
}

// NewSummaryRefreshJob creates a stale summary refresh job.
func NewSummaryRefreshJob(summaries *currency.SummaryRepository, updater *currency.SummaryUpdater, log zerolog.Logger) *SummaryRefreshJob {
	return &SummaryRefreshJob{
		summaries: summaries,
		updater:   updater,
		staleAge:  DefaultStaleAge,
		now:       func() int64 { return time.Now().Unix() },
		log:       log.With().Str("job", "summary-refresh").Logger(),
	}
}

// Name returns the job name.
func (j *SummaryRefreshJob) Name() string { return "summary-refresh" }

// Run refreshes every stale summary bucket. A bucket that fails to refresh
// is logged and skipped; one bad bucket should not starve the rest.
func (j *SummaryRefreshJob) Run() error {
	stale, err := j.summaries.ListStale(j.now() - int64(j.staleAge/time.Second))
	if err != nil {
		return err
	}

	refreshed := 0
	for i := range stale {
		s := &stale[i]
		if err := j.updater.RefreshBucket(s.FromCurrency, s.ToCurrency, s.League); err != nil {
			j.log.Error().
				Err(err).
				Str("from", s.FromCurrency).
				Str("to", s.ToCurrency).
				Str("league", s.League).
				Msg("Failed to refresh summary")
			continue
		}
		refreshed++
	}

	j.log.Info().Int("stale", len(stale)).Int("refreshed", refreshed).Msg("Summary refresh complete")
	return nil
}
