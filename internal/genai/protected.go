package genai

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/careerhub/internal/observability"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type ProtectedConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

type breakerState string

const (
	stateClosed   breakerState = "closed"
	stateOpen     breakerState = "open"
	stateHalfOpen breakerState = "half_open"
)

// Protected bounds each call to the model with a timeout and stops calling it
// after repeated failures until a cooldown has passed.
type Protected struct {
	inner Generator
	cfg   ProtectedConfig
	prom  *observability.Prom
	now   func() time.Time

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtected(inner Generator, cfg ProtectedConfig, prom *observability.Prom) *Protected {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Protected{
		inner: inner,
		cfg:   cfg,
		prom:  prom,
		now:   time.Now,
		state: stateClosed,
	}
}

func (p *Protected) Generate(ctx context.Context, prompt string) (string, error) {
	start := p.now()

	if !p.allowRequest() {
		p.observe("breaker_open", start)
		return "", ErrCircuitOpen
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	reply, err := p.inner.Generate(callCtx, prompt)

	// a caller that went away says nothing about the model's health
	if err != nil && ctx.Err() != nil {
		p.release()
		p.observe("canceled", start)
		return "", err
	}

	p.afterRequest(err)

	switch {
	case err == nil:
		p.observe("ok", start)
	case errors.Is(err, context.DeadlineExceeded):
		p.observe("timeout", start)
	default:
		p.observe("error", start)
	}
	return reply, err
}

func (p *Protected) observe(result string, start time.Time) {
	if p.prom != nil {
		p.prom.ObserveGenerate(result, p.now().Sub(start))
	}
}

func (p *Protected) allowRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateClosed:
		return true
	case stateOpen:
		if p.now().Sub(p.openedAt) >= p.cfg.Cooldown {
			p.state = stateHalfOpen
			p.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if p.halfOpenInFlight >= p.cfg.HalfOpenMaxCalls {
			return false
		}
		p.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (p *Protected) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}
}

func (p *Protected) afterRequest(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen && p.halfOpenInFlight > 0 {
		p.halfOpenInFlight--
	}

	if err == nil {
		p.consecutiveFailures = 0
		p.state = stateClosed
		return
	}

	p.consecutiveFailures++

	// a failed trial call reopens immediately
	if p.state == stateHalfOpen {
		p.state = stateOpen
		p.openedAt = p.now()
		return
	}

	if p.consecutiveFailures >= p.cfg.FailureThreshold {
		p.state = stateOpen
		p.openedAt = p.now()
	}
}

// State reports the breaker state, for readiness output.
func (p *Protected) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return string(p.state)
}
