package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/metrics"
)

// ErrCircuitOpen is matched by every rejection Allow returns.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// OpenError is returned by Allow while calls are rejected. RetryAfter is
// zero when the breaker is half-open and all probe slots are taken.
type OpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %s (retry in %s)", ErrCircuitOpen, e.Name, e.RetryAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: %s (probe in flight)", ErrCircuitOpen, e.Name)
}

func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

type Config struct {
	Name             string        // metrics label
	FailureThreshold int           // consecutive failures before opening (default 5)
	SuccessThreshold int           // probe successes before closing (default 1)
	HalfOpenProbes   int           // concurrent calls admitted while half-open (default 1)
	OpenTimeout      time.Duration // time spent open before probing (default 30s)
	// OnStateChange runs after the transition, outside the breaker's lock.
	OnStateChange func(from, to State)
}

type transition struct{ from, to State }

// Breaker stops calling an upstream that keeps failing at the transport
// level. Rate limiting is not a failure; callers decide what to record.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            State
	failureCount     int
	successCount     int
	probesInFlight   int
	failureThreshold int
	successThreshold int
	halfOpenProbes   int
	openTimeout      time.Duration
	openedAt         time.Time
	nowFn            func() time.Time
	onStateChange    func(from, to State)
	pending          []transition
}

// New creates a closed Breaker. Zero config fields take their defaults.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	b := &Breaker{
		name:             cfg.Name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		halfOpenProbes:   cfg.HalfOpenProbes,
		openTimeout:      cfg.OpenTimeout,
		nowFn:            time.Now,
		onStateChange:    cfg.OnStateChange,
	}
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(float64(StateClosed))
	return b
}

// Allow admits a call or returns an *OpenError. Every admitted call must be
// followed by RecordSuccess, RecordFailure or Cancel.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.maybeHalfOpen()
	switch b.state {
	case StateOpen:
		return &OpenError{Name: b.name, RetryAfter: b.openTimeout - b.nowFn().Sub(b.openedAt)}
	case StateHalfOpen:
		if b.probesInFlight >= b.halfOpenProbes {
			return &OpenError{Name: b.name}
		}
		b.probesInFlight++
	}
	return nil
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.failureCount = 0
	if b.state == StateHalfOpen {
		b.releaseProbe()
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.failureCount++
	b.successCount = 0
	switch b.state {
	case StateHalfOpen:
		b.releaseProbe()
		b.trip()
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.trip()
		}
	}
}

// Cancel gives back an admitted call whose outcome says nothing about the
// upstream, such as one abandoned by its caller.
func (b *Breaker) Cancel() {
	b.mu.Lock()
	defer b.unlockAndNotify()

	if b.state == StateHalfOpen {
		b.releaseProbe()
	}
}

func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.unlockAndNotify()

	b.maybeHalfOpen()
	return b.state
}

func (b *Breaker) trip() {
	b.openedAt = b.nowFn()
	b.setState(StateOpen)
}

func (b *Breaker) releaseProbe() {
	if b.probesInFlight > 0 {
		b.probesInFlight--
	}
}

func (b *Breaker) maybeHalfOpen() {
	if b.state == StateOpen && b.nowFn().Sub(b.openedAt) >= b.openTimeout {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.successCount = 0
	b.probesInFlight = 0
	if to == StateClosed {
		b.failureCount = 0
	}
	metrics.CircuitBreakerState.WithLabelValues(b.name).Set(float64(to))
	if b.onStateChange != nil {
		b.pending = append(b.pending, transition{from: from, to: to})
	}
}

func (b *Breaker) unlockAndNotify() {
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()
	for _, t := range pending {
		b.onStateChange(t.from, t.to)
	}
}
