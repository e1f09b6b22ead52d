package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/poefixer/internal/modules/currency"
)

// EconomyHandlers serves the derived currency economy data.
type EconomyHandlers struct {
	summaries *currency.SummaryRepository
	valuer    *currency.Valuer
	log       zerolog.Logger
}

// NewEconomyHandlers creates the economy API handlers.
func NewEconomyHandlers(summaries *currency.SummaryRepository, valuer *currency.Valuer, log zerolog.Logger) *EconomyHandlers {
	return &EconomyHandlers{
		summaries: summaries,
		valuer:    valuer,
		log:       log.With().Str("handler", "economy").Logger(),
	}
}

// RegisterRoutes registers the economy routes on the given router.
func (h *EconomyHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/summaries", h.HandleSummaries)
	r.Get("/value", h.HandleValue)
}

// HandleSummaries returns every summary row in a league, weight-descending.
// GET /api/summaries?league=Standard
func (h *EconomyHandlers) HandleSummaries(w http.ResponseWriter, r *http.Request) {
	league := r.URL.Query().Get("league")
	if league == "" {
		writeError(w, http.StatusBadRequest, "league parameter is required")
		return
	}

	summaries, err := h.summaries.ListByLeague(league)
	if err != nil {
		h.log.Error().Err(err).Str("league", league).Msg("Failed to list summaries")
		writeError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"league":    league,
		"count":     len(summaries),
		"summaries": summaries,
	})
}

// HandleValue resolves the chaos value of an amount of a named currency.
// GET /api/value?name=Exalted%20Orb&league=Standard&amount=1
func (h *EconomyHandlers) HandleValue(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	league := r.URL.Query().Get("league")
	if name == "" || league == "" {
		writeError(w, http.StatusBadRequest, "name and league parameters are required")
		return
	}

	amount := 1.0
	if raw := r.URL.Query().Get("amount"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "amount must be a positive number")
			return
		}
		amount = parsed
	}

	value, err := h.valuer.FindValueOf(name, league, amount)
	if err != nil {
		h.log.Error().Err(err).Str("name", name).Msg("Failed to value currency")
		writeError(w, http.StatusInternalServerError, "failed to value currency")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":        name,
		"league":      league,
		"amount":      amount,
		"chaos_value": value,
		"valuable":    value != nil,
	})
}

// handleHealth reports process and store health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.db.QuickCheck(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("Database health check failed")
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	// Short sample window so the endpoint stays fast for pollers.
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		cpuPercent = []float64{0}
	}
	var memPercent float64
	if memStat, err := mem.VirtualMemory(); err == nil {
		memPercent = memStat.UsedPercent
	}

	writeJSON(w, code, map[string]interface{}{
		"status":      status,
		"service":     "poefixer",
		"cpu_percent": cpuPercent[0],
		"mem_percent": memPercent,
		"goroutines":  runtime.NumGoroutine(),
	})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
