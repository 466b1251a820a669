package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/repositories"
)

// BuildInfo identifies the running binary in health responses.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	health repositories.HealthRepository
	build  BuildInfo
	clock  func() time.Time
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthRepository wires the dependency probe set used by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) { h.health = repo }
}

// WithHealthBuildInfo sets the build metadata reported by both endpoints.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

// WithHealthClock injects a clock for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the health endpoints.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		build: BuildInfo{StartedAt: time.Now().UTC()},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type healthCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type healthResponse struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	Checks      map[string]healthCheckPayload `json:"checks,omitempty"`
	Details     []string                      `json:"details"`
}

// Healthz reports liveness. It never touches dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:      domain.HealthStatusOK,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Uptime:      now.Sub(h.build.StartedAt).String(),
		Details:     []string{},
	})
}

// Readyz probes the backing dependencies and reports 503 when any of them is
// unhealthy.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		h.Healthz(w, r)
		return
	}

	report, err := h.health.Collect(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{
			Status:  domain.HealthStatusError,
			Details: []string{err.Error()},
		})
		return
	}

	checks := make(map[string]healthCheckPayload, len(report.Checks))
	details := make([]string, 0)
	for name, check := range report.Checks {
		checks[name] = healthCheckPayload{
			Status:    check.Status,
			Detail:    check.Detail,
			LatencyMS: check.Latency.Milliseconds(),
		}
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			details = append(details, name+": "+check.Error)
		}
	}
	sort.Strings(details)

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, healthResponse{
		Status:      report.Status,
		Version:     h.build.Version,
		CommitSHA:   h.build.CommitSHA,
		Environment: h.build.Environment,
		Checks:      checks,
		Details:     details,
	})
}
