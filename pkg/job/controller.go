package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cuemby/etlconsole/pkg/channel"
	"github.com/cuemby/etlconsole/pkg/client"
	"github.com/cuemby/etlconsole/pkg/events"
	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/metrics"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultJoinDelay is the grace period between job creation and joining
	// its progress room, so the backend has registered the room first
	DefaultJoinDelay = 20 * time.Millisecond

	// DefaultSettleDelay keeps the final state visible before controls
	// are re-enabled
	DefaultSettleDelay = 800 * time.Millisecond
)

// Fixed log lines
const (
	CompletedMessage = "ETL finished."
	AbortedMessage   = "Process aborted."
	ConfirmPrompt    = "The ETL takes about 1h on its first run. Start it now?"
)

var (
	// ErrJobActive is returned when a job is started while another one
	// has not returned to idle
	ErrJobActive = errors.New("an ETL job is already running")

	// ErrChannelClosed is returned by Run when the push channel ends
	ErrChannelClosed = errors.New("push channel closed")
)

// Submitter creates backend jobs
type Submitter interface {
	StartETL(ctx context.Context, windowDays *int) (*types.Job, error)
}

// View receives the visual state of the controller. Calls are serialized.
type View interface {
	SetControlsEnabled(enabled bool)
	ShowOverlay(visible bool)
	ClearLog()
	AppendLog(line string)
	// ResetProgress sets the indicator to 0 and clears any error treatment
	ResetProgress()
	SetProgress(percent int)
	MarkProgressError()
	Alert(msg string)
}

// Config configures a Controller
type Config struct {
	JoinDelay   time.Duration
	SettleDelay time.Duration
}

// DefaultConfig returns the default controller timing
func DefaultConfig() Config {
	return Config{
		JoinDelay:   DefaultJoinDelay,
		SettleDelay: DefaultSettleDelay,
	}
}

// Controller drives one ETL job at a time through
// Idle → Submitting → AwaitingProgress → Succeeded|Failed → Idle.
type Controller struct {
	submitter   Submitter
	channel     channel.Channel
	view        View
	guard       *Guard
	broker      *events.Broker
	joinDelay   time.Duration
	settleDelay time.Duration
	logger      zerolog.Logger

	mu      sync.Mutex
	state   types.JobState
	job     *types.Job
	percent int
	outcome types.JobState
	idleCh  chan struct{}
}

// NewController creates an idle controller. broker may be nil.
func NewController(submitter Submitter, ch channel.Channel, view View, broker *events.Broker, cfg Config) *Controller {
	if cfg.JoinDelay < 0 {
		cfg.JoinDelay = DefaultJoinDelay
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}

	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		submitter:   submitter,
		channel:     ch,
		view:        view,
		broker:      broker,
		joinDelay:   cfg.JoinDelay,
		settleDelay: cfg.SettleDelay,
		logger:      log.WithComponent("job"),
		state:       types.JobStateIdle,
		idleCh:      idle,
	}
	c.guard = NewGuard(c.alert)
	return c
}

// Guard returns the navigation guard of this controller
func (c *Controller) Guard() *Guard {
	return c.guard
}

// State returns the current lifecycle state
func (c *Controller) State() types.JobState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Job returns the current (or last) job, if any
func (c *Controller) Job() *types.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Percent returns the last progress shown
func (c *Controller) Percent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.percent
}

// Start submits a new job and joins its progress channel. A nil windowDays
// leaves the window to the backend. On submission failure the controller
// returns to Idle and the error is returned.
func (c *Controller) Start(ctx context.Context, windowDays *int) (*types.Job, error) {
	c.mu.Lock()
	if c.state != types.JobStateIdle || !c.guard.Block() {
		c.mu.Unlock()
		return nil, ErrJobActive
	}
	c.state = types.JobStateSubmitting
	c.job = nil
	c.percent = 0
	c.outcome = ""
	c.idleCh = make(chan struct{})

	c.view.SetControlsEnabled(false)
	c.view.ClearLog()
	c.view.ResetProgress()
	c.view.ShowOverlay(true)
	c.mu.Unlock()

	job, err := c.submitter.StartETL(ctx, windowDays)
	if err != nil {
		c.reject(err)
		return nil, err
	}

	c.mu.Lock()
	c.job = job
	c.view.AppendLog(fmt.Sprintf("ETL launched (window = %s days)", formatWindow(job.WindowDays)))
	c.mu.Unlock()

	metrics.JobsStarted.Inc()
	c.broker.Publish(&events.Event{
		Type:     events.EventJobSubmitted,
		JobID:    job.ID,
		Metadata: map[string]string{"window_days": formatWindow(job.WindowDays)},
	})

	if err := c.sleep(ctx, c.joinDelay); err != nil {
		c.abandon(job, err)
		return nil, err
	}

	// Progress may arrive as soon as the join lands
	c.mu.Lock()
	c.state = types.JobStateAwaitingProgress
	c.mu.Unlock()

	if err := c.channel.Join(ctx, job.ID); err != nil {
		c.abandon(job, err)
		return nil, err
	}

	c.logger.Info().Str("job_id", job.ID).Msg("job started, awaiting progress")
	c.broker.Publish(&events.Event{Type: events.EventJobStarted, JobID: job.ID})
	return job, nil
}

// Run dispatches push channel events until ctx is cancelled or the channel
// closes. There is no timeout on a job that never reports a terminal event.
func (c *Controller) Run(ctx context.Context) error {
	evs := c.channel.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evs:
			if !ok {
				return ErrChannelClosed
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent applies one inbound event
func (c *Controller) HandleEvent(ev types.Event) {
	switch e := ev.(type) {
	case types.DetailEvent:
		c.handleDetail(e)
	case types.ProgressEvent:
		c.handleProgress(e)
	default:
		c.logger.Debug().Interface("event", ev).Msg("unknown event ignored")
	}
}

// Wait blocks until the controller is idle again and returns how the last
// job ended: Succeeded, Failed, or Idle if it never started
func (c *Controller) Wait(ctx context.Context) (types.JobState, error) {
	c.mu.Lock()
	idle := c.idleCh
	c.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == "" {
		return types.JobStateIdle, nil
	}
	return c.outcome, nil
}

func (c *Controller) handleDetail(e types.DetailEvent) {
	c.mu.Lock()
	c.view.AppendLog(e.Line)
	jobID := c.jobID()
	c.mu.Unlock()

	c.broker.Publish(&events.Event{Type: events.EventJobDetail, JobID: jobID, Message: e.Line})
}

func (c *Controller) handleProgress(e types.ProgressEvent) {
	c.mu.Lock()
	if c.state != types.JobStateAwaitingProgress {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Str("state", string(state)).Int("pct", e.Percent).Msg("progress outside an active job dropped")
		return
	}

	jobID := c.jobID()
	c.view.AppendLog(e.Message)
	if e.Percent >= 0 {
		c.percent = e.Percent
		c.view.SetProgress(e.Percent)
		metrics.JobProgress.Set(float64(e.Percent))
	}

	evType := events.EventJobProgress
	switch {
	case e.Succeeded():
		c.state = types.JobStateSucceeded
		c.outcome = types.JobStateSucceeded
		c.guard.Release()
		c.view.AppendLog(CompletedMessage)
		c.settle(func() {
			c.view.ShowOverlay(false)
			c.view.SetControlsEnabled(true)
		})
		evType = events.EventJobSucceeded
		metrics.JobsFinished.WithLabelValues("succeeded").Inc()

	case e.Failed():
		c.state = types.JobStateFailed
		c.outcome = types.JobStateFailed
		c.guard.Release()
		c.view.MarkProgressError()
		c.view.AppendLog(AbortedMessage)
		c.settle(func() {
			c.view.SetControlsEnabled(true)
		})
		evType = events.EventJobFailed
		metrics.JobsFinished.WithLabelValues("failed").Inc()
	}
	c.mu.Unlock()

	logger := log.WithJobID(jobID)
	logger.Debug().Int("pct", e.Percent).Str("msg", e.Message).Msg("progress")
	if evType != events.EventJobProgress {
		logger.Info().Str("result", string(evType)).Msg("job finished")
	}

	c.broker.Publish(&events.Event{Type: evType, JobID: jobID, Message: e.Message, Percent: e.Percent})
}

// settle schedules the return to Idle. Callers hold c.mu.
func (c *Controller) settle(restore func()) {
	time.AfterFunc(c.settleDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		restore()
		c.state = types.JobStateIdle
		close(c.idleCh)
	})
}

// reject returns to Idle after a failed submission
func (c *Controller) reject(err error) {
	msg := err.Error()
	var se *client.StatusError
	if errors.As(err, &se) && se.Body != "" {
		msg = se.Body
	}

	c.mu.Lock()
	c.view.Alert("Failed to create the ETL job: " + msg)
	c.view.SetControlsEnabled(true)
	c.view.ShowOverlay(false)
	c.guard.Release()
	c.state = types.JobStateIdle
	close(c.idleCh)
	c.mu.Unlock()

	metrics.JobSubmitFailures.Inc()
	c.logger.Warn().Err(err).Msg("job submission failed")
	c.broker.Publish(&events.Event{Type: events.EventJobRejected, Message: msg})
}

// abandon gives up observing a job that was created but could not be
// joined. The job keeps running on the backend.
func (c *Controller) abandon(job *types.Job, err error) {
	c.mu.Lock()
	c.view.Alert(fmt.Sprintf("Lost track of ETL job %s: %v", job.ID, err))
	c.view.SetControlsEnabled(true)
	c.view.ShowOverlay(false)
	c.guard.Release()
	c.state = types.JobStateIdle
	close(c.idleCh)
	c.mu.Unlock()

	c.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to join job progress channel")
}

func (c *Controller) alert(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Alert(msg)
}

func (c *Controller) jobID() string {
	if c.job == nil {
		return ""
	}
	return c.job.ID
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func formatWindow(days *int) string {
	if days == nil {
		return "default"
	}
	return strconv.Itoa(*days)
}
