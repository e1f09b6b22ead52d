package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/poefixer/internal/modules/currency"
	testingpkg "github.com/aristath/poefixer/internal/testing"
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t)
	srv := New(Config{Log: zerolog.Nop(), DB: db, Port: 0})
	return srv, cleanup
}

func doRequest(srv *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doRequest(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "poefixer", body["service"])
}

func TestHandleSummaries(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	summaries := currency.NewSummaryRepository(srv.db, zerolog.Nop())
	require.NoError(t, summaries.Upsert("Exalted Orb", currency.ChaosOrb, "Standard", 12, 80, 3, 50))
	require.NoError(t, summaries.Upsert("Divine Orb", currency.ChaosOrb, "Standard", 4, 12, 1, 9))
	require.NoError(t, summaries.Upsert("Exalted Orb", currency.ChaosOrb, "Harbinger", 2, 70, 2, 5))

	rec := doRequest(srv, http.MethodGet, "/api/summaries?league=Standard")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		League    string                     `json:"league"`
		Count     int                        `json:"count"`
		Summaries []currency.CurrencySummary `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Standard", body.League)
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Summaries, 2)
	// Weight descending.
	assert.Equal(t, "Exalted Orb", body.Summaries[0].FromCurrency)
}

func TestHandleSummaries_RequiresLeague(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doRequest(srv, http.MethodGet, "/api/summaries")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleValue(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	summaries := currency.NewSummaryRepository(srv.db, zerolog.Nop())
	require.NoError(t, summaries.Upsert("Exalted Orb", currency.ChaosOrb, "Standard", 12, 80, 3, 50))

	rec := doRequest(srv, http.MethodGet, "/api/value?name=Exalted+Orb&league=Standard&amount=2")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ChaosValue *float64 `json:"chaos_value"`
		Valuable   bool     `json:"valuable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Valuable)
	require.NotNil(t, body.ChaosValue)
	assert.InDelta(t, 160.0, *body.ChaosValue, 1e-9)
}

func TestHandleValue_UnknownCurrency(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	rec := doRequest(srv, http.MethodGet, "/api/value?name=Nothing&league=Standard")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ChaosValue *float64 `json:"chaos_value"`
		Valuable   bool     `json:"valuable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Valuable)
	assert.Nil(t, body.ChaosValue)
}

func TestHandleValue_BadRequests(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	assert.Equal(t, http.StatusBadRequest,
		doRequest(srv, http.MethodGet, "/api/value?league=Standard").Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(srv, http.MethodGet, "/api/value?name=Chaos+Orb&league=Standard&amount=-1").Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(srv, http.MethodGet, "/api/value?name=Chaos+Orb&league=Standard&amount=abc").Code)
}
