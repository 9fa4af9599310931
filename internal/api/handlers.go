// Package api exposes the agent's operational surface: manual job
// triggers, arm and weight inspection, and the kill switch.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/guard"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/pkg/httputil"
	"github.com/jyouterean/kei-cargo-impression-agent/internal/worker"
)

// Jobs is the pipeline surface the handlers trigger. Satisfied by the
// worker pipeline.
type Jobs interface {
	RunCycle(ctx context.Context) error
	RunPublish(ctx context.Context, platform domain.Platform) (*worker.PublishOutcome, error)
	RunCollectMetrics(ctx context.Context) error
	Stats() map[string]int64
}

// ArmReader lists bandit arms for inspection.
type ArmReader interface {
	List(ctx context.Context, platform string, limit int) ([]domain.Arm, error)
}

// WeightReader resolves the live weight set.
type WeightReader interface {
	CurrentWeights(ctx context.Context, platform domain.Platform) (domain.WeightSet, error)
}

// DistributionReader computes the trailing pattern distribution.
type DistributionReader interface {
	Distribution(ctx context.Context, days int) (*domain.PatternDistribution, error)
}

// Runner triggers one named stage. The worker's stage methods all fit.
type Runner func(ctx context.Context) error

// Handlers holds the API dependencies.
type Handlers struct {
	jobs      Jobs
	arms      ArmReader
	weights   WeightReader
	dist      DistributionReader
	guard     *guard.Guard
	stages    map[string]Runner
	platforms []domain.Platform
}

// NewHandlers wires the handler set. stages maps job names (harvest,
// mine, synthesize, learn) to their runners.
func NewHandlers(jobs Jobs, arms ArmReader, weights WeightReader, dist DistributionReader, g *guard.Guard, stages map[string]Runner, platforms []domain.Platform) *Handlers {
	return &Handlers{
		jobs:      jobs,
		arms:      arms,
		weights:   weights,
		dist:      dist,
		guard:     g,
		stages:    stages,
		platforms: platforms,
	}
}

// HealthCheck reports liveness and worker counters.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status": "ok",
		"stats":  h.jobs.Stats(),
	})
}

// TriggerJob runs one named pipeline stage synchronously.
func (h *Handlers) TriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	runner, ok := h.stages[name]
	if !ok {
		httputil.NotFound(w, "unknown job: "+name)
		return
	}
	if err := runner(r.Context()); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"job": name, "status": "completed"})
}

// TriggerPublish runs the decision-and-publish path for one platform.
func (h *Handlers) TriggerPublish(w http.ResponseWriter, r *http.Request) {
	platform := domain.Platform(chi.URLParam(r, "platform"))
	if !h.knownPlatform(platform) {
		httputil.BadRequest(w, "unknown platform: "+string(platform))
		return
	}
	outcome, err := h.jobs.RunPublish(r.Context(), platform)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, outcome)
}

// GetArms lists arms for a platform, most pulled first.
func (h *Handlers) GetArms(w http.ResponseWriter, r *http.Request) {
	platform := r.URL.Query().Get("platform")
	if platform == "" {
		platform = string(domain.PlatformX)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	arms, err := h.arms.List(r.Context(), platform, limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"platform": platform, "count": len(arms), "arms": arms})
}

// GetWeights returns the live weight set for a platform.
func (h *Handlers) GetWeights(w http.ResponseWriter, r *http.Request) {
	platform := domain.Platform(r.URL.Query().Get("platform"))
	if platform == "" {
		platform = domain.PlatformX
	}
	if !h.knownPlatform(platform) {
		httputil.BadRequest(w, "unknown platform: "+string(platform))
		return
	}
	ws, err := h.weights.CurrentWeights(r.Context(), platform)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, ws)
}

// GetDistribution returns the trailing pattern distribution.
func (h *Handlers) GetDistribution(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 7
	}
	dist, err := h.dist.Distribution(r.Context(), days)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, dist)
}

type killSwitchRequest struct {
	Reason string `json:"reason"`
}

// EngageKillSwitch halts publishing.
func (h *Handlers) EngageKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req killSwitchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		httputil.BadRequest(w, "reason is required")
		return
	}
	if err := h.guard.EngageKillSwitch(r.Context(), req.Reason); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"engaged": true, "reason": req.Reason})
}

// DisengageKillSwitch resumes publishing.
func (h *Handlers) DisengageKillSwitch(w http.ResponseWriter, r *http.Request) {
	if err := h.guard.DisengageKillSwitch(r.Context()); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"engaged": false})
}

// GetKillSwitch reports the kill switch state.
func (h *Handlers) GetKillSwitch(w http.ResponseWriter, r *http.Request) {
	engaged, reason, err := h.guard.KillSwitchEngaged(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"engaged": engaged, "reason": reason})
}

func (h *Handlers) knownPlatform(p domain.Platform) bool {
	for _, known := range h.platforms {
		if known == p {
			return true
		}
	}
	return false
}
