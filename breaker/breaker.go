// Package breaker implements the per-service circuit breaker table (C5).
//
// Grounded on orchestration.CircuitBreaker's state-machine shape (counters +
// mutex) and resilience.CircuitBreakerConfig's configuration surface (Name,
// Logger, Metrics), but the transition logic itself follows spec §4.2/I5
// exactly: consecutive-failure thresholds, not gomind's sliding error-rate
// window.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three breaker states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Metrics is an optional sink for breaker transition/outcome events.
// Grounded on resilience.MetricsCollector.
type Metrics interface {
	RecordSuccess(service string)
	RecordFailure(service string)
	RecordStateChange(service string, from, to State)
	RecordRejection(service string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSuccess(string)                 {}
func (noopMetrics) RecordFailure(string)                 {}
func (noopMetrics) RecordStateChange(string, State, State) {}
func (noopMetrics) RecordRejection(string)               {}

// Config holds the per-service breaker parameters (§4.2 defaults).
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	HalfOpenTimeout  time.Duration
}

// DefaultConfig returns the spec's defaults: 5 failures to open, 2 successes
// to close from half-open, 60s half-open timeout.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, SuccessThreshold: 2, HalfOpenTimeout: 60 * time.Second}
}

// CircuitState is the exported snapshot of one service's breaker state.
type CircuitState struct {
	State          State
	FailureCount   int
	SuccessCount   int
	LastFailureAt  time.Time
	StateChangedAt time.Time
}

type serviceBreaker struct {
	mu             sync.Mutex
	config         Config
	state          State
	failureCount   int
	successCount   int
	lastFailureAt  time.Time
	stateChangedAt time.Time
}

// Table is the concurrent, per-service circuit breaker table. Different
// services are fully independent; each is serialized under its own mutex
// (§4.2, §5).
type Table struct {
	mu       sync.RWMutex
	services map[string]*serviceBreaker
	deflt    Config
	perSvc   map[string]Config
	metrics  Metrics
}

// Option configures a Table.
type Option func(*Table)

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option { return func(t *Table) { t.metrics = m } }

// WithServiceConfig overrides the default config for one service.
func WithServiceConfig(service string, cfg Config) Option {
	return func(t *Table) { t.perSvc[service] = cfg }
}

// New creates a Table whose services use deflt unless overridden per service
// with WithServiceConfig.
func New(deflt Config, opts ...Option) *Table {
	t := &Table{
		services: make(map[string]*serviceBreaker),
		deflt:    deflt,
		perSvc:   make(map[string]Config),
		metrics:  noopMetrics{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Table) configFor(service string) Config {
	t.mu.RLock()
	cfg, ok := t.perSvc[service]
	t.mu.RUnlock()
	if ok {
		return cfg
	}
	return t.deflt
}

func (t *Table) get(service string) *serviceBreaker {
	t.mu.RLock()
	sb, ok := t.services[service]
	t.mu.RUnlock()
	if ok {
		return sb
	}

	cfg := t.configFor(service)
	t.mu.Lock()
	defer t.mu.Unlock()
	if sb, ok := t.services[service]; ok {
		return sb
	}
	sb = &serviceBreaker{
		config:         cfg,
		state:          Closed,
		stateChangedAt: time.Now(),
	}
	t.services[service] = sb
	return sb
}

// Allow reports whether a call to service may proceed. A service with no
// recorded breaker reports Closed (allowed). If the breaker is Open and
// HalfOpenTimeout has elapsed since stateChangedAt, this call transitions it
// to HalfOpen and allows the probe through.
func (t *Table) Allow(service string) bool {
	sb := t.get(service)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	switch sb.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if time.Since(sb.stateChangedAt) >= sb.config.HalfOpenTimeout {
			t.transitionLocked(service, sb, HalfOpen)
			return true
		}
		t.metrics.RecordRejection(service)
		return false
	default:
		return true
	}
}

// RecordSuccess notifies the breaker of a successful call.
func (t *Table) RecordSuccess(service string) {
	sb := t.get(service)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	t.metrics.RecordSuccess(service)

	switch sb.state {
	case Closed:
		sb.failureCount = 0
	case HalfOpen:
		sb.successCount++
		if sb.successCount >= sb.config.SuccessThreshold {
			t.transitionLocked(service, sb, Closed)
		}
	}
}

// RecordFailure notifies the breaker of a failed call.
func (t *Table) RecordFailure(service string) {
	sb := t.get(service)
	sb.mu.Lock()
	defer sb.mu.Unlock()

	t.metrics.RecordFailure(service)
	sb.lastFailureAt = time.Now()

	switch sb.state {
	case Closed:
		sb.failureCount++
		if sb.failureCount >= sb.config.FailureThreshold {
			t.transitionLocked(service, sb, Open)
		}
	case HalfOpen:
		t.transitionLocked(service, sb, Open)
	}
}

// Reset forces a service's breaker to Closed with zeroed counters.
func (t *Table) Reset(service string) {
	sb := t.get(service)
	sb.mu.Lock()
	defer sb.mu.Unlock()
	t.transitionLocked(service, sb, Closed)
}

// State returns a snapshot of a service's current breaker state.
func (t *Table) State(service string) CircuitState {
	sb := t.get(service)
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return CircuitState{
		State:          sb.state,
		FailureCount:   sb.failureCount,
		SuccessCount:   sb.successCount,
		LastFailureAt:  sb.lastFailureAt,
		StateChangedAt: sb.stateChangedAt,
	}
}

// transitionLocked must be called with sb.mu held.
func (t *Table) transitionLocked(service string, sb *serviceBreaker, to State) {
	from := sb.state
	sb.state = to
	sb.stateChangedAt = time.Now()
	sb.failureCount = 0
	sb.successCount = 0
	if from != to {
		t.metrics.RecordStateChange(service, from, to)
	}
}
