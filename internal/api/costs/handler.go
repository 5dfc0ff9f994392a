package costs

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"demeter/internal/domain/cost"
	"demeter/internal/metrics"
	"demeter/internal/services/aggregator"
	budgetsvc "demeter/internal/services/budget"
	"demeter/pkg/logger"
)

// Handler serves the read-side cost and budget API
type Handler struct {
	aggregator   *aggregator.Service
	budget       *budgetsvc.Service
	queryTimeout time.Duration
	log          *logger.Logger
}

// NewHandler creates a new cost query handler
func NewHandler(agg *aggregator.Service, budget *budgetsvc.Service, queryTimeout time.Duration) *Handler {
	return &Handler{
		aggregator:   agg,
		budget:       budget,
		queryTimeout: queryTimeout,
		log:          logger.Get().With("component", "costs_api"),
	}
}

// Routes returns the router for /api/v1
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/costs", func(r chi.Router) {
		r.Get("/summary", h.instrument("costs_summary", h.handleSummary))
		r.Get("/trend", h.instrument("costs_trend", h.handleTrend))
		r.Get("/today", h.instrument("costs_today", h.handleToday))
		r.Get("/llm/by-agent-type", h.instrument("costs_llm_by_agent_type",
			h.breakdownHandler(cost.TypeLLM, cost.DimensionAgentType)))
		r.Get("/llm/by-model", h.instrument("costs_llm_by_model",
			h.breakdownHandler(cost.TypeLLM, cost.DimensionModel)))
		r.Get("/documents", h.instrument("costs_documents", h.handleDocuments))
		r.Get("/embeddings/by-domain", h.instrument("costs_embeddings_by_domain",
			h.breakdownHandler(cost.TypeEmbedding, cost.DimensionKnowledgeDomain)))
	})

	r.Route("/budget", func(r chi.Router) {
		r.Get("/status", h.instrument("budget_status", h.handleBudgetStatus))
		r.Put("/threshold", h.instrument("budget_threshold", h.handleSetThreshold))
	})

	return r
}

// instrument applies the per-request timeout and records query latency
func (h *Handler) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
		defer cancel()

		start := time.Now()
		next(w, r.WithContext(ctx))
		metrics.RecordQuery(endpoint, time.Since(start))
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.aggregator.Summarize(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summaryResponse(summary))
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	trend, err := h.aggregator.DailyTrend(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, trendResponse(trend, start, end))
}

func (h *Handler) handleToday(w http.ResponseWriter, r *http.Request) {
	summary, err := h.aggregator.CurrentDayCost(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summaryResponse(summary))
}

// breakdownHandler builds a handler for one (cost type, dimension) pair
func (h *Handler) breakdownHandler(costType cost.Type, dimKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, err := parseRange(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		breakdown, err := h.aggregator.BreakdownByDimension(r.Context(), costType, dimKey, start, end)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		h.writeJSON(w, http.StatusOK, breakdownResponse(breakdown))
	}
}

// handleDocuments reports the document slice of a range summary
func (h *Handler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.aggregator.Summarize(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, typeSliceResponse(summary, cost.TypeDocument))
}

func (h *Handler) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.budget.Status(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, budgetStatusResponse(status))
}

func (h *Handler) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	threshold, err := h.budget.Configure(r.Context(), req.DailyThresholdUSD, req.MonthlyThresholdUSD)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, thresholdResponse(threshold))
}
