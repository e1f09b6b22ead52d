package currency

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultRelevanceWindow is the look-back horizon beyond which sales are
	// ignored for summary computation.
	DefaultRelevanceWindow = 15 * 24 * time.Hour

	// DefaultWeightUnit is the numerator of the time-decay weight, in
	// seconds (half a day). A sale observed one weight-unit before the
	// observation moment carries weight 1.
	DefaultWeightUnit = 43200.0

	// cacheMinCount is the minimum row count before the recent-summary cache
	// may skip recomputation.
	cacheMinCount = 10
)

// SummaryUpdater recomputes the weighted statistics of one exchange bucket
// from sale history whenever a currency-denominated sale is observed. It is
// the sole writer of currency_summary.
type SummaryUpdater struct {
	sales      *SaleRepository
	summaries  *SummaryRepository
	window     int64   // relevance window in seconds
	weightUnit float64 // weight numerator in seconds
	recent     int64   // cache horizon in seconds; 0 disables the cache
	now        func() int64
	log        zerolog.Logger
}

// NewSummaryUpdater creates a summary updater with the default relevance
// window and weight unit. recent enables the summary cache: buckets with at
// least ten rows updated within the last recent seconds are not recomputed.
func NewSummaryUpdater(sales *SaleRepository, summaries *SummaryRepository, recent int64, log zerolog.Logger) *SummaryUpdater {
	return &SummaryUpdater{
		sales:      sales,
		summaries:  summaries,
		window:     int64(DefaultRelevanceWindow / time.Second),
		weightUnit: DefaultWeightUnit,
		recent:     recent,
		now:        func() int64 { return time.Now().Unix() },
		log:        log.With().Str("component", "summary-updater").Logger(),
	}
}

// WithClock overrides the updater clock.
func (u *SummaryUpdater) WithClock(now func() int64) *SummaryUpdater {
	bound := *u
	bound.now = now
	return &bound
}

// RecordSale is the per-sale entry point. For currency-denominated sales it
// refreshes the (name, currency, league) summary bucket first; either way it
// returns the chaos value of price units of the sale currency, or nil when
// the exchange graph cannot value it yet.
func (u *SummaryUpdater) RecordSale(valuer *Valuer, name, saleCurrency, league string,
	price float64, saleTime int64, isCurrency bool) (*float64, error) {

	if isCurrency {
		if err := u.UpdateSummary(name, saleCurrency, league, saleTime); err != nil {
			return nil, err
		}
	}

	return valuer.FindValueOf(saleCurrency, league, price)
}

// UpdateSummary recomputes and upserts the statistics for one bucket from
// the sale history inside the relevance window. An empty bucket writes
// nothing; the recent-cache may skip the whole computation.
func (u *SummaryUpdater) UpdateSummary(name, saleCurrency, league string, saleTime int64) error {
	now := u.now()

	if u.recent > 0 {
		existing, err := u.summaries.Get(name, saleCurrency, league)
		if err != nil {
			return err
		}
		if existing != nil && existing.Count >= cacheMinCount && existing.UpdatedAt >= now-u.recent {
			u.log.Debug().
				Str("from", name).
				Str("to", saleCurrency).
				Str("league", league).
				Msg("Summary is recent enough, skipping recompute")
			return nil
		}
	}

	mean, stddev, weight, count, err := u.bucketStats(name, saleCurrency, league, saleTime, now)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	u.log.Debug().
		Str("from", name).
		Str("to", saleCurrency).
		Str("league", league).
		Float64("mean", mean).
		Float64("stddev", stddev).
		Int("count", count).
		Msg("Updating currency summary")

	return u.summaries.Upsert(name, saleCurrency, league, count, mean, stddev, weight)
}

// bucketStats computes the weighted mean, weighted standard deviation, total
// weight and row count for one bucket. The relevance window is anchored at
// now; the decay weight w = unit / max(1, saleTime - t) is anchored at the
// observation moment, so later sales weigh more and near-coincident ones are
// capped at the full unit.
//
// When the bucket has more than three rows and the deviation exceeds half
// the mean, one outlier-rejection pass drops samples beyond two deviations
// and the statistics are recomputed. No further iteration.
func (u *SummaryUpdater) bucketStats(name, saleCurrency, league string, saleTime, now int64) (mean, stddev, weight float64, count int, err error) {
	points, err := u.sales.History(name, saleCurrency, league, now-u.window)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	if len(points) == 0 {
		return 0, 0, 0, 0, nil
	}

	prices := make([]float64, len(points))
	weights := make([]float64, len(points))
	for i, p := range points {
		age := saleTime - p.UpdatedAt
		if age < 1 {
			age = 1
		}
		prices[i] = p.Amount
		weights[i] = u.weightUnit / float64(age)
	}

	mean, stddev = weightedStats(prices, weights)
	count = len(prices)
	weight = sum(weights)

	if count > 3 && stddev > mean/2 {
		u.log.Debug().
			Str("from", name).
			Str("to", saleCurrency).
			Float64("stddev", stddev).
			Float64("mean", mean).
			Msg("Large deviation, recalibrating")

		prices, weights = rejectOutliers(prices, weights, mean, stddev)
		if len(prices) == 0 {
			return 0, 0, 0, 0, nil
		}
		mean, stddev = weightedStats(prices, weights)
		u.log.Debug().
			Int("ignored", count-len(prices)).
			Float64("stddev", stddev).
			Float64("mean", mean).
			Msg("Recalibration complete")
		count = len(prices)
		weight = sum(weights)
	}

	return mean, stddev, weight, count, nil
}

// RefreshBucket recomputes one bucket anchored at the present moment. Used
// by the maintenance refresh for summaries that have gone stale; buckets
// whose history has entirely left the relevance window keep their last
// statistics, as documented.
func (u *SummaryUpdater) RefreshBucket(from, to, league string) error {
	now := u.now()
	mean, stddev, weight, count, err := u.bucketStats(from, to, league, now, now)
	if err != nil {
		return fmt.Errorf("failed to refresh bucket %s->%s (%s): %w", from, to, league, err)
	}
	if count == 0 {
		return nil
	}
	return u.summaries.Upsert(from, to, league, count, mean, stddev, weight)
}
