package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/oneway/internal/results"
	"github.com/wonny/oneway/pkg/logger"
	"github.com/wonny/oneway/pkg/redis"
)

// RunsHandler handles run-related API endpoints
// ⭐ SSOT: 런 조회 API 핸들러는 이 구조체에서만
type RunsHandler struct {
	repo   results.Repository
	cache  *redis.Cache
	logger *logger.Logger
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(repo results.Repository, cache *redis.Cache, log *logger.Logger) *RunsHandler {
	return &RunsHandler{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

const (
	defaultListLimit = 50
	listCacheTTL     = 30 * time.Second
	runCacheTTL      = 5 * time.Minute
)

// List returns runs newest-first
// GET /api/runs?limit=N
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected positive integer)")
			return
		}
		limit = parsed
	}

	cacheKey := fmt.Sprintf("runs:list:%d", limit)
	var cached []*results.Run
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	runs, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}
	if runs == nil {
		runs = []*results.Run{}
	}

	if err := h.cache.Set(ctx, cacheKey, runs, listCacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache run list")
	}

	respondJSON(w, http.StatusOK, runs)
}

// Get returns one run by ID
// GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	cacheKey := "runs:" + id
	var cached results.Run
	if hit, err := h.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		respondJSON(w, http.StatusOK, &cached)
		return
	}

	run, err := h.repo.GetRun(ctx, id)
	if errors.Is(err, results.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	if err := h.cache.Set(ctx, cacheKey, run, runCacheTTL); err != nil {
		h.logger.WithError(err).Warn("Failed to cache run")
	}

	respondJSON(w, http.StatusOK, run)
}

// GetEpisodes returns the per-episode breakdown of a run
// GET /api/runs/{id}/episodes
func (h *RunsHandler) GetEpisodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	episodes, err := h.repo.GetEpisodes(ctx, id)
	if errors.Is(err, results.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get episodes")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve episodes")
		return
	}
	if episodes == nil {
		episodes = []results.EpisodeResult{}
	}

	respondJSON(w, http.StatusOK, episodes)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
