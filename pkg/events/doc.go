/*
Package events is the in-process event bus of the console.

Controllers publish what happens to jobs, readiness and chat queries on a
Broker; the terminal view and the history recorder subscribe to it.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Publish(&events.Event{Type: events.EventJobProgress, JobID: id, Percent: 45})

Publish never blocks on a slow subscriber created with Subscribe: once its
buffer is full, further events are dropped for it. SubscribeReliable trades
that for completeness. The broker waits for the subscriber to make room, and
the subscription can be limited to the event types it handles so that a
burst of detail lines does not hold everyone else back.

Pending reports events published but not yet handed to subscribers, which
lets shutdown wait for the last ones to land.
*/
package events
