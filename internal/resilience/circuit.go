package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all requests and tracks failures.
	Closed State = iota
	// Open rejects requests until the cool-off period expires.
	Open
	// HalfOpen lets a single probe through to test recovery.
	HalfOpen
)

var stateNames = map[State]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// BreakerConfig tunes a Breaker. Zero values fall back to defaults.
type BreakerConfig struct {
	// Target labels metrics and logs, e.g. "exchange-api".
	Target string
	// MinRequests is the number of outcomes observed before the ratio is evaluated.
	MinRequests int
	// FailureRatio in (0,1] opens the breaker once the window ratio is
	// greater than or equal to it.
	FailureRatio float64
	// OpenFor is the cool-off before a probe is allowed.
	OpenFor time.Duration
	Logger  *zerolog.Logger
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MinRequests <= 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.5
	}
	if c.FailureRatio > 1 {
		c.FailureRatio = 1
	}
	if c.OpenFor <= 0 {
		c.OpenFor = 30 * time.Second
	}
	c.Target = strings.TrimSpace(c.Target)
	if c.Target == "" {
		c.Target = "default"
	}
	return c
}

// outcomes counts results in the closed state. Counts are halved once they
// exceed twice the minimum so old results fade out.
type outcomes struct {
	failures  int
	successes int
}

func (o *outcomes) record(success bool, minRequests int) {
	if success {
		o.successes++
	} else {
		o.failures++
	}
	if o.total() > minRequests*2 {
		o.failures = (o.failures + 1) / 2
		o.successes = (o.successes + 1) / 2
	}
}

func (o *outcomes) total() int { return o.failures + o.successes }

func (o *outcomes) failureRatio() float64 {
	if o.total() == 0 {
		return 0
	}
	return float64(o.failures) / float64(o.total())
}

// Breaker implements a failure-ratio circuit breaker.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	counts   outcomes
	openedAt time.Time
	probing  bool
}

// NewBreaker constructs a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults(), now: time.Now}
	b.publishState()
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

// State returns the current breaker state. An open breaker whose cool-off has
// elapsed still reports Open until the next Allow call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a request may proceed. After the cool-off an open
// breaker moves to half-open and admits exactly one probe until it reports.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cfg.OpenFor {
			return false
		}
		b.transition(ctx, HalfOpen)
		b.probing = true
		return true
	case HalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Report records the outcome of a request allowed by Allow.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.transition(ctx, Closed)
		} else {
			b.transition(ctx, Open)
		}
		return
	}

	b.counts.record(success, b.cfg.MinRequests)
	if b.counts.total() >= b.cfg.MinRequests && b.counts.failureRatio() >= b.cfg.FailureRatio {
		b.transition(ctx, Open)
	}
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.counts = outcomes{}
	switch next {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
	}
	b.publishState()
	observeTransition(b.cfg.Target, prev, next)

	evt := b.logger(ctx).Info().
		Str("target", b.cfg.Target).
		Str("from_state", prev.String()).
		Str("to_state", next.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) publishState() {
	BreakerState.WithLabelValues(b.cfg.Target).Set(float64(b.state))
}

var breakerNopLogger = zerolog.Nop()

func (b *Breaker) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	if b.cfg.Logger != nil {
		return b.cfg.Logger
	}
	return &breakerNopLogger
}
