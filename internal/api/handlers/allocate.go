package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/oneway/internal/algorithm"
	"github.com/wonny/oneway/pkg/logger"
)

// AllocateHandler handles one-shot allocation requests
// ⭐ SSOT: 단일 에피소드 할당 API는 이 구조체에서만
type AllocateHandler struct {
	logger *logger.Logger
}

// NewAllocateHandler creates a new allocate handler
func NewAllocateHandler(log *logger.Logger) *AllocateHandler {
	return &AllocateHandler{logger: log}
}

// AllocateRequest represents a single-episode allocation request
type AllocateRequest struct {
	Prices     []float64 `json:"prices"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
	Lambda     float64   `json:"lambda"`
	Prediction *float64  `json:"prediction,omitempty"` // required when lambda < 1
}

// AllocateResponse represents the allocation outcome
type AllocateResponse struct {
	Allocation []float64 `json:"allocation"`
	Profit     float64   `json:"profit"`
	Steps      int       `json:"steps"`
}

// Allocate runs the allocation engine over one price sequence
// POST /api/allocate
func (h *AllocateHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	var req AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Lambda == 0 {
		req.Lambda = 1
	}
	p := algorithm.Params{
		LowerBound: req.LowerBound,
		UpperBound: req.UpperBound,
		Lambda:     req.Lambda,
	}
	if err := p.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Lambda < 1 && req.Prediction == nil {
		respondError(w, http.StatusBadRequest, "'prediction' is required when lambda < 1")
		return
	}

	var oracle algorithm.Oracle
	if req.Prediction != nil {
		oracle = fixedOracle{value: *req.Prediction}
	}

	engine, err := algorithm.NewEngine(p, nil, oracle, h.logger)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := engine.Allocate(algorithm.Episode(req.Prices))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, AllocateResponse{
		Allocation: result.Allocation,
		Profit:     result.Profit,
		Steps:      result.Steps,
	})
}

// fixedOracle returns the caller-supplied prediction unconditionally
type fixedOracle struct {
	value float64
}

func (o fixedOracle) Predict(_ []algorithm.Episode) (float64, bool) {
	return o.value, true
}
