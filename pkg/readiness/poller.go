package readiness

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/metrics"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultInterval is the fixed delay between readiness polls
const DefaultInterval = 700 * time.Millisecond

// BlockedMessage is shown when the backend has no data to serve queries
const BlockedMessage = "No data yet. Open the ETL process and run it."

// ErrBlocked is returned by Run when the backend reports that required
// data is missing. It is terminal: no further polls are issued.
var ErrBlocked = errors.New("backend has no data yet")

// StatusSource issues one readiness request and returns its status code
type StatusSource interface {
	Ready(ctx context.Context) (int, error)
}

// Config configures a Poller
type Config struct {
	// Interval is the delay before retrying a not-ready backend
	Interval time.Duration
}

// DefaultConfig returns the default poller configuration
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval}
}

// Poller polls the readiness endpoint until the backend is ready or
// permanently blocked. Retries are unbounded and use a fixed delay.
type Poller struct {
	source   StatusSource
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.RWMutex
	state     types.ReadinessState
	attempts  int
	listeners []func(types.ReadinessState)
	done      chan struct{}
}

// NewPoller creates a poller in the Polling state
func NewPoller(source StatusSource, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Poller{
		source:   source,
		interval: cfg.Interval,
		logger:   log.WithComponent("readiness"),
		state:    types.ReadinessPolling,
		done:     make(chan struct{}),
	}
}

// OnChange registers fn to be called on every state transition.
// Listeners run on the polling goroutine.
func (p *Poller) OnChange(fn func(types.ReadinessState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// State returns the current readiness state
func (p *Poller) State() types.ReadinessState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Attempts returns the number of readiness requests issued so far
func (p *Poller) Attempts() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attempts
}

// Done is closed once the poller reaches Ready or Blocked
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Run polls until a terminal state is reached. It returns nil when the
// backend is ready, ErrBlocked when it is blocked, or the context error
// if ctx is cancelled first. Network errors are retried like any other
// not-ready answer.
func (p *Poller) Run(ctx context.Context) error {
	switch p.State() {
	case types.ReadinessReady:
		return nil
	case types.ReadinessBlocked:
		return ErrBlocked
	}

	metrics.SetReadinessState(string(types.ReadinessPolling))

	for {
		p.mu.Lock()
		p.attempts++
		attempt := p.attempts
		p.mu.Unlock()

		status, err := p.source.Ready(ctx)
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case err != nil:
			metrics.ReadinessPollsTotal.WithLabelValues("error").Inc()
			p.logger.Debug().Err(err).Int("attempt", attempt).Msg("readiness request failed, retrying")

		case status == http.StatusOK:
			metrics.ReadinessPollsTotal.WithLabelValues("ready").Inc()
			p.logger.Info().Int("attempt", attempt).Msg("backend ready")
			return p.finish(types.ReadinessReady)

		case status == http.StatusTooEarly:
			metrics.ReadinessPollsTotal.WithLabelValues("blocked").Inc()
			p.logger.Warn().Int("attempt", attempt).Msg("backend has no data, polling stopped")
			return p.finish(types.ReadinessBlocked)

		default:
			metrics.ReadinessPollsTotal.WithLabelValues("retry").Inc()
			p.logger.Debug().Int("status", status).Int("attempt", attempt).Msg("backend not ready, retrying")
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// finish moves to a terminal state and returns the matching Run result.
// When Runs overlap, the first terminal answer wins and the others report it.
func (p *Poller) finish(state types.ReadinessState) error {
	p.transition(state)
	if p.State() == types.ReadinessBlocked {
		return ErrBlocked
	}
	return nil
}

func (p *Poller) transition(state types.ReadinessState) {
	p.mu.Lock()
	if p.state.Terminal() {
		p.mu.Unlock()
		return
	}
	p.state = state
	close(p.done)
	listeners := append([]func(types.ReadinessState){}, p.listeners...)
	p.mu.Unlock()

	metrics.SetReadinessState(string(state))
	for _, fn := range listeners {
		fn(state)
	}
}
