package currency

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/poefixer/internal/database"
	"github.com/aristath/poefixer/internal/modules/stash"
	testingpkg "github.com/aristath/poefixer/internal/testing"
)

const testNow int64 = 1700000000

// summaryHarness wires the repositories of one test database around a fixed
// clock.
type summaryHarness struct {
	db        *database.DB
	stashID   int64
	stashRepo *stash.Repository
	sales     *SaleRepository
	summaries *SummaryRepository
	updater   *SummaryUpdater
	valuer    *Valuer
	saleSeq   int
}

func newSummaryHarness(t *testing.T, recent int64) (*summaryHarness, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t)
	clock := func() int64 { return testNow }

	stashRepo := stash.NewRepository(db, zerolog.Nop()).WithClock(clock)
	st := testingpkg.NewStashFixture("harness-stash")
	stashID, err := stashRepo.UpsertStash(st, false, false)
	require.NoError(t, err)

	sales := NewSaleRepository(db, zerolog.Nop()).WithClock(clock)
	summaries := NewSummaryRepository(db, zerolog.Nop()).WithClock(clock)
	updater := NewSummaryUpdater(sales, summaries, recent, zerolog.Nop()).WithClock(clock)
	valuer := NewValuer(summaries, zerolog.Nop())

	return &summaryHarness{
		db:        db,
		stashID:   stashID,
		stashRepo: stashRepo,
		sales:     sales,
		summaries: summaries,
		updater:   updater,
		valuer:    valuer,
	}, cleanup
}

// seedSale stores one currency sale observed at the given time.
func (h *summaryHarness) seedSale(t *testing.T, name, saleCurrency string, amount float64, at int64) {
	t.Helper()
	h.saleSeq++
	apiID := fmt.Sprintf("sale-item-%d", h.saleSeq)

	item := testingpkg.NewCurrencyItemFixture(apiID, name, "")
	itemID, err := h.stashRepo.WithClock(func() int64 { return at }).UpsertItem(&item, h.stashID)
	require.NoError(t, err)

	_, err = h.sales.Upsert(itemID, apiID, name, true, saleCurrency, amount, at)
	require.NoError(t, err)
}

func TestSummaryUpdater_CoincidentSales(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	// Sales at the observation moment all get the same capped weight, so the
	// statistics reduce to the plain population form.
	for _, amount := range []float64{10, 20, 30} {
		h.seedSale(t, "Exalted Orb", ChaosOrb, amount, testNow)
	}

	require.NoError(t, h.updater.UpdateSummary("Exalted Orb", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 20.0, s.Mean, 1e-9)
	assert.InDelta(t, 3*DefaultWeightUnit, s.Weight, 1e-6)
}

func TestSummaryUpdater_LaterSalesWeighMore(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	unit := int64(DefaultWeightUnit)
	h.seedSale(t, "Exalted Orb", ChaosOrb, 10, testNow-unit) // weight 1
	h.seedSale(t, "Exalted Orb", ChaosOrb, 20, testNow)      // weight 43200

	require.NoError(t, h.updater.UpdateSummary("Exalted Orb", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	want := (10*1 + 20*DefaultWeightUnit) / (1 + DefaultWeightUnit)
	assert.InDelta(t, want, s.Mean, 1e-9)
}

func TestSummaryUpdater_RelevanceWindow(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	window := int64(DefaultRelevanceWindow.Seconds())
	h.seedSale(t, "Exalted Orb", ChaosOrb, 999, testNow-window-3600) // outside
	h.seedSale(t, "Exalted Orb", ChaosOrb, 50, testNow-3600)        // inside

	require.NoError(t, h.updater.UpdateSummary("Exalted Orb", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, s.Count)
	assert.InDelta(t, 50.0, s.Mean, 1e-9)
}

func TestSummaryUpdater_EmptyBucketWritesNothing(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	require.NoError(t, h.updater.UpdateSummary("Exalted Orb", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSummaryUpdater_OutlierRejection(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	for i := 0; i < 20; i++ {
		h.seedSale(t, "Orb of Fusing", ChaosOrb, 0.5, testNow)
	}
	h.seedSale(t, "Orb of Fusing", ChaosOrb, 500, testNow) // troll listing

	require.NoError(t, h.updater.UpdateSummary("Orb of Fusing", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Orb of Fusing", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 20, s.Count)
	assert.InDelta(t, 0.5, s.Mean, 1e-9)
}

func TestSummaryUpdater_RecentCacheSkipsRecompute(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 3600)
	defer cleanup()

	// A fresh summary with enough rows is trusted as-is.
	require.NoError(t, h.summaries.Upsert("Exalted Orb", ChaosOrb, testLeague, 10, 77, 1, 100))
	h.seedSale(t, "Exalted Orb", ChaosOrb, 10, testNow)

	require.NoError(t, h.updater.UpdateSummary("Exalted Orb", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.InDelta(t, 77.0, s.Mean, 1e-9)
	assert.Equal(t, 10, s.Count)
}

func TestSummaryUpdater_SmallSummariesBypassCache(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 3600)
	defer cleanup()

	// Under ten rows the cache does not apply even when fresh.
	require.NoError(t, h.summaries.Upsert("Exalted Orb", ChaosOrb, testLeague, 2, 77, 1, 100))
	h.seedSale(t, "Exalted Orb", ChaosOrb, 10, testNow)

	require.NoError(t, h.updater.UpdateSummary("Exalted Orb", ChaosOrb, testLeague, testNow))

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.InDelta(t, 10.0, s.Mean, 1e-9)
	assert.Equal(t, 1, s.Count)
}

func TestRecordSale_CurrencySaleUpdatesSummaryAndValues(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	h.seedSale(t, "Exalted Orb", ChaosOrb, 80, testNow)

	// A currency sale priced in chaos: the summary bucket refreshes and the
	// chaos value of the sale currency is the identity.
	value, err := h.updater.RecordSale(h.valuer, "Exalted Orb", ChaosOrb, testLeague, 80, testNow, true)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.InDelta(t, 80.0, *value, 1e-9)

	s, err := h.summaries.Get("Exalted Orb", ChaosOrb, testLeague)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 1, s.Count)
}

func TestRecordSale_NonCurrencySaleLeavesSummariesAlone(t *testing.T) {
	h, cleanup := newSummaryHarness(t, 0)
	defer cleanup()

	require.NoError(t, h.summaries.Upsert("Exalted Orb", ChaosOrb, testLeague, 5, 80, 2, 50))

	// A rare sword priced in exalts: no summary changes, but the price is
	// resolved through the existing exchange graph.
	value, err := h.updater.RecordSale(h.valuer, "Doomsower Lion Sword", "Exalted Orb", testLeague, 2, testNow, false)
	require.NoError(t, err)
	require.NotNil(t, value)
	assert.InDelta(t, 160.0, *value, 1e-9)

	n, err := h.summaries.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
