package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cuemby/etlconsole/pkg/events"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_JobLifecycle(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store)
	start := time.Now()

	require.NoError(t, rec.Handle(&events.Event{
		Type: events.EventJobSubmitted, JobID: "j1", Timestamp: start,
		Metadata: map[string]string{"window_days": "120"},
	}))
	require.NoError(t, rec.Handle(&events.Event{Type: events.EventJobStarted, JobID: "j1"}))
	require.NoError(t, rec.Handle(&events.Event{Type: events.EventJobProgress, JobID: "j1", Message: "loading", Percent: 40}))

	job, err := store.GetJob("j1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStateAwaitingProgress, job.State)
	assert.Equal(t, 40, job.Percent)
	assert.Equal(t, "loading", job.LastMessage)
	require.NotNil(t, job.WindowDays)
	assert.Equal(t, 120, *job.WindowDays)

	end := start.Add(time.Minute)
	require.NoError(t, rec.Handle(&events.Event{Type: events.EventJobFailed, JobID: "j1", Message: "boom", Percent: -1, Timestamp: end}))

	job, err = store.GetJob("j1")
	require.NoError(t, err)
	assert.Equal(t, types.JobStateFailed, job.State)
	assert.Equal(t, 40, job.Percent, "failure keeps the last percent")
	assert.Equal(t, "boom", job.LastMessage)
	assert.True(t, job.FinishedAt.Equal(end))
}

func TestRecorder_DefaultWindowAndSuccess(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store)

	require.NoError(t, rec.Handle(&events.Event{
		Type: events.EventJobSubmitted, JobID: "j2",
		Metadata: map[string]string{"window_days": "default"},
	}))
	require.NoError(t, rec.Handle(&events.Event{Type: events.EventJobSucceeded, JobID: "j2", Message: "done", Percent: 100}))

	job, err := store.GetJob("j2")
	require.NoError(t, err)
	assert.Nil(t, job.WindowDays)
	assert.Equal(t, types.JobStateSucceeded, job.State)
	assert.Equal(t, 100, job.Percent)
}

func TestRecorder_UnknownJobCreatesRecord(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store)

	require.NoError(t, rec.Handle(&events.Event{Type: events.EventJobProgress, JobID: "late", Percent: 10}))

	job, err := store.GetJob("late")
	require.NoError(t, err)
	assert.Equal(t, 10, job.Percent)
}

func TestRecorder_Queries(t *testing.T) {
	store := newTestStore(t)
	rec := NewRecorder(store)

	require.NoError(t, rec.Handle(&events.Event{
		Type: events.EventQueryAnswered,
		Metadata: map[string]string{
			"query_id": "q1", "question": "how many?", "sql": "SELECT COUNT(*)", "excel": "/download/x.xlsx",
		},
	}))
	require.NoError(t, rec.Handle(&events.Event{
		Type: events.EventQueryFailed, Message: "ask: 500",
		Metadata: map[string]string{"query_id": "q2", "question": "broken"},
	}))
	// ignored
	require.NoError(t, rec.Handle(&events.Event{Type: events.EventJobDetail, JobID: "j", Message: "line"}))

	queries, err := store.ListQueries()
	require.NoError(t, err)
	require.Len(t, queries, 2)

	byID := map[string]*types.QueryRecord{}
	for _, q := range queries {
		byID[q.ID] = q
	}
	assert.Equal(t, "SELECT COUNT(*)", byID["q1"].SQL)
	assert.Equal(t, "/download/x.xlsx", byID["q1"].ExcelURL)
	assert.Empty(t, byID["q1"].Error)
	assert.Equal(t, "ask: 500", byID["q2"].Error)

	jobs, err := store.ListJobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRecorder_RunFromBroker(t *testing.T) {
	store := newTestStore(t)
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewRecorder(store).Run(ctx, sub)
		close(done)
	}()

	broker.Publish(&events.Event{Type: events.EventJobSubmitted, JobID: "j3"})

	assert.Eventually(t, func() bool {
		_, err := store.GetJob("j3")
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}

func TestRecorder_TerminalStateSurvivesDetailBurst(t *testing.T) {
	store := newTestStore(t)
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.SubscribeReliable(RecordedEvents...)

	// Everything is published before the recorder starts reading
	broker.Publish(&events.Event{Type: events.EventJobSubmitted, JobID: "j4"})
	broker.Publish(&events.Event{Type: events.EventJobStarted, JobID: "j4"})
	for i := 0; i < 80; i++ {
		broker.Publish(&events.Event{Type: events.EventJobDetail, JobID: "j4", Message: "row batch loaded"})
	}
	broker.Publish(&events.Event{Type: events.EventJobSucceeded, JobID: "j4", Message: "ETL finished"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewRecorder(store).Run(ctx, sub)

	assert.Eventually(t, func() bool {
		job, err := store.GetJob("j4")
		return err == nil && job.State == types.JobStateSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	job, err := store.GetJob("j4")
	require.NoError(t, err)
	assert.Equal(t, types.PercentSucceeded, job.Percent)
	assert.Equal(t, "ETL finished", job.LastMessage)
}
