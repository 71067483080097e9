package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/cuemby/etlconsole/pkg/log"
	"github.com/cuemby/etlconsole/pkg/metrics"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/rs/zerolog"
	eiotypes "github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventJoin subscribes the connection to the updates of one job
const EventJoin = "join"

// SocketPath is where the backend mounts its Socket.IO endpoint
const SocketPath = "/socket.io/"

const eventBuffer = 64

// Reasons reported by the client library when a session ends
const (
	reasonClientDisconnect = "io client disconnect"
	reasonServerDisconnect = "io server disconnect"
)

// ErrClosed is returned when emitting on a closed connection
var ErrClosed = errors.New("channel closed")

// Channel is the push channel a job controller listens on
type Channel interface {
	// Join subscribes to the progress updates of jobID
	Join(ctx context.Context, jobID string) error
	// Events delivers inbound progress and detail events. It is closed
	// when the channel shuts down.
	Events() <-chan types.Event
	Close() error
}

// Conn is a Socket.IO client connection over WebSocket
type Conn struct {
	sock   *socket.Socket
	sid    string
	logger zerolog.Logger

	// mu guards events against a send racing the close in finish
	mu     sync.RWMutex
	closed bool
	events chan types.Event
	stopCh chan struct{}

	connected chan struct{}
	refused   chan error

	stopOnce   sync.Once
	closeOnce  sync.Once
	finishOnce sync.Once
	errMu      sync.Mutex
	err        error
}

var _ Channel = (*Conn)(nil)

// Endpoint splits the backend base URL into the origin the client dials
// and the path the Socket.IO server is mounted on. A path prefix in the
// base URL is kept in front of SocketPath.
func Endpoint(baseURL string) (origin, path string, err error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", "", fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "http"
	case "https", "wss":
		u.Scheme = "https"
	default:
		return "", "", fmt.Errorf("invalid server URL %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("invalid server URL %q: missing host", baseURL)
	}

	path = strings.TrimRight(u.Path, "/") + strings.TrimRight(SocketPath, "/")
	origin = (&url.URL{Scheme: u.Scheme, Host: u.Host}).String()
	return origin, path, nil
}

// Dial connects to the backend push channel and waits until the default
// namespace accepts the session
func Dial(ctx context.Context, baseURL string) (*Conn, error) {
	origin, path, err := Endpoint(baseURL)
	if err != nil {
		return nil, err
	}

	opts := socket.DefaultOptions()
	opts.SetTransports(eiotypes.NewSet(socket.WebSocket))
	opts.SetPath(path)
	opts.SetReconnection(false)
	opts.SetForceNew(true)
	opts.SetAutoConnect(false)

	sock, err := socket.Connect(origin, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect push channel: %w", err)
	}

	c := &Conn{
		sock:      sock,
		logger:    log.WithComponent("channel"),
		events:    make(chan types.Event, eventBuffer),
		stopCh:    make(chan struct{}),
		connected: make(chan struct{}, 1),
		refused:   make(chan error, 1),
	}
	c.subscribe()
	sock.Connect()

	select {
	case <-c.connected:
		c.sid = sock.Id()
		c.logger.Debug().Str("sid", c.sid).Msg("push channel connected")
		return c, nil
	case err := <-c.refused:
		c.shutdown()
		return nil, fmt.Errorf("failed to connect push channel: %w", err)
	case <-ctx.Done():
		c.shutdown()
		return nil, ctx.Err()
	}
}

func (c *Conn) subscribe() {
	_ = c.sock.On("connect", func(...any) {
		select {
		case c.connected <- struct{}{}:
		default:
		}
	})

	_ = c.sock.On("connect_error", func(args ...any) {
		err := errors.New("connect refused")
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = e
			} else if args[0] != nil {
				err = fmt.Errorf("%v", args[0])
			}
		}
		select {
		case c.refused <- err:
		default:
		}
	})

	_ = c.sock.On("disconnect", func(args ...any) {
		reason := ""
		if len(args) > 0 {
			reason, _ = args[0].(string)
		}
		switch reason {
		case reasonClientDisconnect:
			c.finish(nil)
		case reasonServerDisconnect:
			c.logger.Debug().Msg("server closed push channel")
			c.finish(nil)
		default:
			err := fmt.Errorf("push channel lost: %s", reason)
			c.logger.Warn().Err(err).Msg("push channel read failed")
			c.finish(err)
		}
	})

	_ = c.sock.On(eiotypes.EventName(types.EventKindProgress), func(args ...any) {
		var ev types.ProgressEvent
		if c.decode(types.EventKindProgress, args, &ev) {
			c.deliver(ev)
		}
	})

	_ = c.sock.On(eiotypes.EventName(types.EventKindDetail), func(args ...any) {
		var ev types.DetailEvent
		if c.decode(types.EventKindDetail, args, &ev) {
			c.deliver(ev)
		}
	})
}

// decode converts the first event argument, already parsed into generic
// JSON values, into v
func (c *Conn) decode(kind types.EventKind, args []any, v interface{}) bool {
	if len(args) == 0 {
		c.logger.Debug().Str("event", string(kind)).Msg("event without payload ignored")
		return false
	}

	data, err := json.Marshal(args[0])
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("event", string(kind)).Msg("malformed event")
		return false
	}
	return true
}

func (c *Conn) deliver(ev types.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	metrics.ChannelEventsTotal.WithLabelValues(string(ev.Kind())).Inc()
	select {
	case c.events <- ev:
	case <-c.stopCh:
	}
}

// SID returns the session id assigned by the server
func (c *Conn) SID() string {
	return c.sid
}

// Emit sends an event to the server
func (c *Conn) Emit(event string, args ...interface{}) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return c.sock.Emit(event, args...)
}

// Join subscribes to the progress updates of jobID
func (c *Conn) Join(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Emit(EventJoin, jobID); err != nil {
		return fmt.Errorf("failed to join job %s: %w", jobID, err)
	}
	c.logger.Debug().Str("job_id", jobID).Msg("joined job channel")
	return nil
}

// Events delivers inbound events until the connection ends
func (c *Conn) Events() <-chan types.Event {
	return c.events
}

// Err returns the error that ended the connection, if any
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close disconnects from the server and closes the events channel
func (c *Conn) Close() error {
	c.shutdown()
	return nil
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		// Release a handler blocked on a full events buffer first
		c.stop()
		c.sock.Disconnect()
		c.finish(nil)
	})
}

func (c *Conn) stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// finish records err and closes the events channel once
func (c *Conn) finish(err error) {
	c.finishOnce.Do(func() {
		if err != nil {
			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()
		}
		c.stop()

		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
	})
}
