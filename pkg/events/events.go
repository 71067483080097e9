package events

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventReadinessReady   EventType = "readiness.ready"
	EventReadinessBlocked EventType = "readiness.blocked"
	EventJobSubmitted     EventType = "job.submitted"
	EventJobRejected      EventType = "job.rejected"
	EventJobStarted       EventType = "job.started"
	EventJobProgress      EventType = "job.progress"
	EventJobDetail        EventType = "job.detail"
	EventJobSucceeded     EventType = "job.succeeded"
	EventJobFailed        EventType = "job.failed"
	EventQueryAnswered    EventType = "query.answered"
	EventQueryFailed      EventType = "query.failed"
)

// Event represents a controller notification
type Event struct {
	Type      EventType
	Timestamp time.Time
	JobID     string
	Message   string
	Percent   int
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// subscription is the delivery policy of one subscriber
type subscription struct {
	types map[EventType]bool // nil accepts every type
	// reliable subscribers get every event; the broker waits for buffer room
	reliable   bool
	done       chan struct{}
	cancelOnce sync.Once
}

func (s *subscription) accepts(t EventType) bool {
	return s.types == nil || s.types[t]
}

func (s *subscription) cancel() {
	s.cancelOnce.Do(func() { close(s.done) })
}

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]*subscription
	mu          sync.RWMutex
	eventCh     chan *Event
	// pending counts events published but not yet handed to subscribers
	pending  atomic.Int64
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]*subscription),
		eventCh:     make(chan *Event, 100),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe creates a new subscription and returns a channel. Events are
// dropped for it while its buffer is full.
func (b *Broker) Subscribe() Subscriber {
	return b.subscribe(&subscription{})
}

// SubscribeReliable creates a subscription that never loses an event: the
// broker waits for buffer room instead of dropping. Only the listed event
// types are delivered; none means all of them. A reliable subscriber must
// keep reading until it unsubscribes, since it holds back every other one.
func (b *Broker) SubscribeReliable(types ...EventType) Subscriber {
	s := &subscription{reliable: true}
	if len(types) > 0 {
		s.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	return b.subscribe(s)
}

func (b *Broker) subscribe(s *subscription) Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	s.done = make(chan struct{})
	sub := make(Subscriber, 50)
	b.subscribers[sub] = s
	return sub
}

// Unsubscribe removes a subscription and closes its channel
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.RLock()
	s, ok := b.subscribers[sub]
	b.mu.RUnlock()
	if !ok {
		return
	}
	// Unblock a broadcast waiting on this subscriber before taking the lock
	s.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers. A nil broker drops it.
func (b *Broker) Publish(event *Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.pending.Add(1)
	select {
	case b.eventCh <- event:
	case <-b.stopCh:
		b.pending.Add(-1)
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
			b.pending.Add(-1)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub, s := range b.subscribers {
		if !s.accepts(event.Type) {
			continue
		}
		if !s.reliable {
			select {
			case sub <- event:
			default:
				// Subscriber buffer full, skip
			}
			continue
		}

		select {
		case sub <- event:
		case <-s.done:
		case <-b.stopCh:
		}
	}
}

// Pending returns the number of published events not yet handed to
// subscribers
func (b *Broker) Pending() int {
	return int(b.pending.Load())
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
