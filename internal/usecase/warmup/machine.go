// Package warmup drives the model readiness state machine.
package warmup

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragd/internal/domain"
	domwarmup "github.com/kailas-cloud/ragd/internal/domain/warmup"
	"github.com/kailas-cloud/ragd/internal/metrics"
)

// Defaults for the synthetic warm-up request.
const (
	DefaultPrompt      = "Hello, this is a warmup request."
	DefaultMaxTokens   = 50
	DefaultTemperature = 0.5
	DefaultMaxAttempts = 3
	DefaultBackoffStep = 10 * time.Second
)

// Config controls the warm-up sequence.
type Config struct {
	// Required is decided once at startup (see domwarmup.Detect).
	Required    bool
	MaxAttempts int
	// BackoffStep is multiplied by the attempt number: 10s, 20s, 30s.
	BackoffStep time.Duration
	Prompt      string
	MaxTokens   int
	Temperature float64
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BackoffStep <= 0 {
		c.BackoffStep = DefaultBackoffStep
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
}

// Machine owns the single WarmupState. Reads are lock-free; Start is the only writer
// besides Rearm.
type Machine struct {
	model  LanguageModel
	cfg    Config
	logger *zap.Logger

	state     atomic.Int32
	attempts  atomic.Int32
	lastErr   atomic.Pointer[string]
	updatedAt atomic.Int64

	wait func(ctx context.Context, d time.Duration) error
	now  func() time.Time
}

// New creates a Machine in the Cold state.
func New(model LanguageModel, cfg Config, logger *zap.Logger) *Machine {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Machine{
		model:  model,
		cfg:    cfg,
		logger: logger,
		wait:   sleepContext,
		now:    time.Now,
	}
	m.store(domwarmup.Cold)
	return m
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Required reports whether a warm-up request is issued before Ready.
func (m *Machine) Required() bool { return m.cfg.Required }

// State returns the current state.
func (m *Machine) State() domwarmup.State { return domwarmup.State(m.state.Load()) }

// Readiness returns a snapshot for the health surface.
func (m *Machine) Readiness() domwarmup.Readiness {
	r := domwarmup.Readiness{
		State:     m.State(),
		Required:  m.cfg.Required,
		Attempts:  int(m.attempts.Load()),
		UpdatedAt: time.Unix(0, m.updatedAt.Load()),
	}
	if p := m.lastErr.Load(); p != nil {
		r.LastError = *p
	}
	return r
}

// Start runs the warm-up sequence once. Calls made while WarmingUp, Ready or
// Degraded are no-ops and return the current state.
func (m *Machine) Start(ctx context.Context) domwarmup.State {
	if !m.cfg.Required {
		if m.transition(domwarmup.Cold, domwarmup.Ready) {
			m.logger.Info("Model warm-up skipped", zap.String("state", domwarmup.Ready.String()))
		}
		return m.State()
	}

	if !m.transition(domwarmup.Cold, domwarmup.WarmingUp) {
		return m.State()
	}
	m.attempts.Store(0)
	m.lastErr.Store(nil)
	m.logger.Info("Model warm-up started", zap.Int("max_attempts", m.cfg.MaxAttempts))

	final := m.run(ctx)
	m.transition(domwarmup.WarmingUp, final)
	return m.State()
}

func (m *Machine) run(ctx context.Context) domwarmup.State {
	req := domain.GenerationRequest{
		Prompt:      m.cfg.Prompt,
		MaxTokens:   m.cfg.MaxTokens,
		Temperature: m.cfg.Temperature,
	}

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		m.attempts.Store(int32(attempt))

		_, err := m.model.Generate(ctx, req)
		if err == nil {
			metrics.WarmupAttemptsTotal.WithLabelValues("success").Inc()
			m.logger.Info("Model warmed up", zap.Int("attempt", attempt))
			return domwarmup.Ready
		}
		m.recordError(err)

		if !errors.Is(err, domain.ErrModelNotReady) {
			metrics.WarmupAttemptsTotal.WithLabelValues("error").Inc()
			m.logger.Warn("Model warm-up failed", zap.Int("attempt", attempt), zap.Error(err))
			return domwarmup.Degraded
		}

		metrics.WarmupAttemptsTotal.WithLabelValues("not_ready").Inc()
		backoff := m.cfg.BackoffStep * time.Duration(attempt)
		m.logger.Warn("Model not ready, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
		)
		if werr := m.wait(ctx, backoff); werr != nil {
			m.recordError(werr)
			m.logger.Warn("Model warm-up interrupted", zap.Error(werr))
			return domwarmup.Degraded
		}
	}

	m.logger.Warn("Model still not ready after warm-up attempts, serving degraded",
		zap.Int("attempts", m.cfg.MaxAttempts))
	return domwarmup.Degraded
}

// Rearm moves Degraded back to Cold so the next Start re-runs the sequence.
// Returns false in any other state.
func (m *Machine) Rearm() bool {
	if !m.transition(domwarmup.Degraded, domwarmup.Cold) {
		return false
	}
	m.logger.Info("Model warm-up re-armed")
	return true
}

func (m *Machine) transition(from, to domwarmup.State) bool {
	if !m.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	m.touch(to)
	return true
}

func (m *Machine) store(s domwarmup.State) {
	m.state.Store(int32(s))
	m.touch(s)
}

func (m *Machine) touch(s domwarmup.State) {
	m.updatedAt.Store(m.now().UnixNano())
	metrics.WarmupState.Set(float64(s))
}

func (m *Machine) recordError(err error) {
	msg := err.Error()
	m.lastErr.Store(&msg)
}
