package pipeline

import (
	"slices"
	"sync"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/domain/model"
)

// HealthStatus represents the health state of the sync loop.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusDegraded  HealthStatus = "DEGRADED"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"

	// DefaultUnhealthyThreshold is the number of consecutive failed sync
	// cycles before the pipeline is considered unhealthy.
	DefaultUnhealthyThreshold = 3

	// DefaultDegradedLatencyThreshold is the P95 sync duration above which
	// the pipeline is considered degraded.
	DefaultDegradedLatencyThreshold = 5 * time.Minute

	durationWindowSize = 10
)

// SyncHealth tracks the outcome of recent sync cycles.
type SyncHealth struct {
	mu                  sync.RWMutex
	status              HealthStatus
	consecutiveFailures int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	unhealthyThreshold  int
	degradedThreshold   time.Duration
	recentDurations     []time.Duration
	nowFn               func() time.Time
}

// NewSyncHealth creates a tracker. Non-positive thresholds take the defaults.
func NewSyncHealth(unhealthyThreshold int, degradedThreshold time.Duration) *SyncHealth {
	if unhealthyThreshold <= 0 {
		unhealthyThreshold = DefaultUnhealthyThreshold
	}
	if degradedThreshold <= 0 {
		degradedThreshold = DefaultDegradedLatencyThreshold
	}
	return &SyncHealth{
		status:             HealthStatusUnknown,
		unhealthyThreshold: unhealthyThreshold,
		degradedThreshold:  degradedThreshold,
		recentDurations:    make([]time.Duration, 0, durationWindowSize),
		nowFn:              time.Now,
	}
}

// RecordSuccess records a completed cycle and its duration. It returns true
// when the cycle recovers the pipeline from an unhealthy state.
func (h *SyncHealth) RecordSuccess(d time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.recentDurations) >= durationWindowSize {
		h.recentDurations = h.recentDurations[1:]
	}
	h.recentDurations = append(h.recentDurations, d)

	now := h.nowFn()
	recovered := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &now
	h.lastError = ""
	if h.p95() > h.degradedThreshold {
		h.status = HealthStatusDegraded
	} else {
		h.status = HealthStatusHealthy
	}
	return recovered
}

// RecordFailure records a failed cycle. It returns true when this failure
// makes the pipeline unhealthy.
func (h *SyncHealth) RecordFailure(err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowFn()
	h.consecutiveFailures++
	h.lastFailureAt = &now
	if err != nil {
		h.lastError = err.Error()
	}
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		return true
	}
	return false
}

// p95 must be called with mu held.
func (h *SyncHealth) p95() time.Duration {
	n := len(h.recentDurations)
	if n < 2 {
		return 0
	}
	sorted := slices.Clone(h.recentDurations)
	slices.Sort(sorted)
	idx := (95*n - 1) / 100
	return sorted[min(idx, n-1)]
}

// Healthy reports whether the pipeline can serve readiness checks. An
// UNKNOWN state (no cycle finished yet) counts as healthy.
func (h *SyncHealth) Healthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status != HealthStatusUnhealthy
}

func (h *SyncHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Chain:               model.ChainZkSyncLite.String(),
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
		LastError:           h.lastError,
	}
}

// HealthSnapshot is a point-in-time view of sync health (JSON-safe).
type HealthSnapshot struct {
	Chain               string     `json:"chain"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
}
