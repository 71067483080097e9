package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cuemby/etlconsole/pkg/client"
	"github.com/cuemby/etlconsole/pkg/console"
	"github.com/cuemby/etlconsole/pkg/events"
	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/metrics"
	"github.com/cuemby/etlconsole/pkg/readiness"
	"github.com/cuemby/etlconsole/pkg/storage"
)

// flushTimeout bounds how long shutdown waits for history to be written
const flushTimeout = 2 * time.Second

// app holds the components shared by every command
type app struct {
	client  *client.Client
	console *console.Console
	broker  *events.Broker
	store   *storage.BoltStore
	poller  *readiness.Poller

	sub          events.Subscriber
	recorderDone chan struct{}
}

func newApp(out io.Writer) (*app, error) {
	c, err := client.NewClient(cfg.ServerURL, cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	broker := events.NewBroker()
	broker.Start()

	a := &app{
		client:       c,
		console:      console.New(out, c),
		broker:       broker,
		store:        store,
		poller:       readiness.NewPoller(c, readiness.Config{Interval: cfg.PollInterval}),
		sub:          broker.SubscribeReliable(storage.RecordedEvents...),
		recorderDone: make(chan struct{}),
	}

	go func() {
		defer close(a.recorderDone)
		storage.NewRecorder(store).Run(context.Background(), a.sub)
	}()

	return a, nil
}

// Close flushes pending history and releases the database
func (a *app) Close() error {
	deadline := time.Now().Add(flushTimeout)
	for a.broker.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	a.broker.Unsubscribe(a.sub)

	select {
	case <-a.recorderDone:
	case <-time.After(flushTimeout):
		log.Logger.Warn().Msg("history recorder did not finish in time")
	}
	a.broker.Stop()
	return a.store.Close()
}
