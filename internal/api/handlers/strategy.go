// Package handlers implements the HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/astock-tools/screener/internal/contracts"
	"github.com/astock-tools/screener/internal/strategy"
	"github.com/astock-tools/screener/pkg/logger"
	"github.com/astock-tools/screener/pkg/redis"
)

// StrategyHandler triggers strategy runs and serves cached results.
type StrategyHandler struct {
	runner *strategy.Runner
	cache  *redis.Cache // nil when caching is disabled
	logger *logger.Logger
}

// NewStrategyHandler creates the handler.
func NewStrategyHandler(runner *strategy.Runner, cache *redis.Cache, log *logger.Logger) *StrategyHandler {
	return &StrategyHandler{runner: runner, cache: cache, logger: log}
}

type runResponse struct {
	Status     contracts.RunStatus   `json:"status"`
	Candidates []contracts.Candidate `json:"candidates"`
}

// Run executes one strategy synchronously.
// POST /api/strategies/{name}/run?end_date=20250626&period_days=20&threshold=90
func (h *StrategyHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	params, err := paramsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, ok := h.dispatch(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown strategy: "+name)
		return
	}

	candidates, status, err := run(r.Context(), params)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, runResponse{Status: status, Candidates: candidates})
	case errors.Is(err, contracts.ErrMalformedDate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contracts.ErrInsufficientHistory):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.WithError(err).WithField("strategy", name).Error("strategy run failed")
		writeError(w, http.StatusInternalServerError, "strategy run failed")
	}
}

// Results serves the latest cached candidate list for a strategy.
// GET /api/strategies/{name}/results
func (h *StrategyHandler) Results(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "results:", &[]contracts.Candidate{})
}

// Status serves the latest cached run status for a strategy.
// GET /api/strategies/{name}/status
func (h *StrategyHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "status:", &contracts.RunStatus{})
}

func (h *StrategyHandler) serveCached(w http.ResponseWriter, r *http.Request, prefix string, dest interface{}) {
	name := mux.Vars(r)["name"]
	if _, ok := h.dispatch(name); !ok {
		writeError(w, http.StatusNotFound, "unknown strategy: "+name)
		return
	}
	if h.cache == nil {
		writeError(w, http.StatusNotFound, "result caching is disabled")
		return
	}

	found, err := h.cache.Get(r.Context(), prefix+name, dest)
	if err != nil {
		h.logger.WithError(err).Warn("cache read failed")
		writeError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no cached run for strategy: "+name)
		return
	}
	writeJSON(w, http.StatusOK, dest)
}

type runFunc func(context.Context, strategy.Params) ([]contracts.Candidate, contracts.RunStatus, error)

func (h *StrategyHandler) dispatch(name string) (runFunc, bool) {
	switch name {
	case "rps":
		return h.runner.RunRPS, true
	case "ma":
		return h.runner.RunMA, true
	case "trend":
		return h.runner.RunTrend, true
	case "combined":
		return h.runner.RunCombined, true
	}
	return nil, false
}

func paramsFromQuery(r *http.Request) (strategy.Params, error) {
	params := strategy.Params{
		EndDate:   r.URL.Query().Get("end_date"),
		Threshold: -1,
	}

	if v := r.URL.Query().Get("period_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return params, errors.New("period_days must be a positive integer")
		}
		params.PeriodDays = n
	}
	if v := r.URL.Query().Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 100 {
			return params, errors.New("threshold must be between 0 and 100")
		}
		params.Threshold = f
	}
	return params, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
