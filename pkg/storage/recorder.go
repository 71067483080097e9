package storage

import (
	"context"
	"errors"
	"strconv"

	"github.com/cuemby/etlconsole/pkg/events"
	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/rs/zerolog"
)

// RecordedEvents are the event types Handle stores. Detail lines are left
// out; they only feed the live progress log.
var RecordedEvents = []events.EventType{
	events.EventJobSubmitted,
	events.EventJobStarted,
	events.EventJobProgress,
	events.EventJobSucceeded,
	events.EventJobFailed,
	events.EventQueryAnswered,
	events.EventQueryFailed,
}

// Recorder persists controller events as job and query history
type Recorder struct {
	store  Store
	logger zerolog.Logger
}

// NewRecorder creates a recorder writing to store
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: log.WithComponent("recorder"),
	}
}

// Run records events from sub until it is closed or ctx is done
func (r *Recorder) Run(ctx context.Context, sub events.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if err := r.Handle(ev); err != nil {
				r.logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("failed to record event")
			}
		}
	}
}

// Handle records a single event
func (r *Recorder) Handle(ev *events.Event) error {
	switch ev.Type {
	case events.EventJobSubmitted:
		rec := &types.JobRecord{
			ID:        ev.JobID,
			State:     types.JobStateSubmitting,
			StartedAt: ev.Timestamp,
		}
		if days, err := strconv.Atoi(ev.Metadata["window_days"]); err == nil {
			rec.WindowDays = &days
		}
		return r.store.CreateJob(rec)

	case events.EventJobStarted:
		return r.updateJob(ev.JobID, func(rec *types.JobRecord) {
			rec.State = types.JobStateAwaitingProgress
		})

	case events.EventJobProgress:
		return r.updateJob(ev.JobID, func(rec *types.JobRecord) {
			rec.LastMessage = ev.Message
			if ev.Percent >= 0 {
				rec.Percent = ev.Percent
			}
		})

	case events.EventJobSucceeded, events.EventJobFailed:
		return r.updateJob(ev.JobID, func(rec *types.JobRecord) {
			rec.LastMessage = ev.Message
			rec.FinishedAt = ev.Timestamp
			if ev.Type == events.EventJobSucceeded {
				rec.State = types.JobStateSucceeded
				rec.Percent = types.PercentSucceeded
			} else {
				rec.State = types.JobStateFailed
			}
		})

	case events.EventQueryAnswered, events.EventQueryFailed:
		rec := &types.QueryRecord{
			ID:       ev.Metadata["query_id"],
			Question: ev.Metadata["question"],
			SQL:      ev.Metadata["sql"],
			ExcelURL: ev.Metadata["excel"],
			AskedAt:  ev.Timestamp,
		}
		if ev.Type == events.EventQueryFailed {
			rec.Error = ev.Message
		}
		return r.store.CreateQuery(rec)
	}
	return nil
}

func (r *Recorder) updateJob(id string, mutate func(*types.JobRecord)) error {
	rec, err := r.store.GetJob(id)
	if errors.Is(err, ErrNotFound) {
		// Started before this console began recording
		rec = &types.JobRecord{ID: id}
	} else if err != nil {
		return err
	}
	mutate(rec)
	return r.store.UpdateJob(rec)
}
