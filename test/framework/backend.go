package framework

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/cuemby/etlconsole/pkg/channel"
	"github.com/cuemby/etlconsole/pkg/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Backend is an in-process stand-in for the NL2SQL/ETL server. It serves
// /ready, /ask, /start_etl, /download/ and the Socket.IO push channel.
type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	readyScript   []int
	readyCalls    int
	startStatus   int
	startError    string
	defaultWindow int
	startBodies   []map[string]interface{}
	askResult     types.AskResult
	askStatus     int
	downloads     map[string][]byte
	rooms         map[string][]*backendConn
	joins         chan string

	upgrader websocket.Upgrader
}

type backendConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *backendConn) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// NewBackend starts a fake backend that is ready and accepts jobs
func NewBackend() *Backend {
	b := &Backend{
		startStatus:   http.StatusOK,
		defaultWindow: 120,
		askStatus:     http.StatusOK,
		downloads:     make(map[string][]byte),
		rooms:         make(map[string][]*backendConn),
		joins:         make(chan string, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ready", b.handleReady)
	mux.HandleFunc("/ask", b.handleAsk)
	mux.HandleFunc("/start_etl", b.handleStart)
	mux.HandleFunc("/download/", b.handleDownload)
	mux.HandleFunc(channel.SocketPath, b.handleSocket)

	b.Server = httptest.NewServer(mux)
	return b
}

// URL returns the base URL of the backend
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close stops the backend
func (b *Backend) Close() {
	b.mu.Lock()
	for _, conns := range b.rooms {
		for _, c := range conns {
			_ = c.ws.Close()
		}
	}
	b.mu.Unlock()
	b.Server.Close()
}

// SetReadyScript makes /ready answer with statuses in order, then 200
func (b *Backend) SetReadyScript(statuses ...int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readyScript = statuses
}

// ReadyCalls returns how many times /ready was requested
func (b *Backend) ReadyCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readyCalls
}

// FailStart makes /start_etl answer with status and a plain-text message
func (b *Backend) FailStart(status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.startStatus = status
	b.startError = message
}

// StartBodies returns the decoded bodies received on /start_etl
func (b *Backend) StartBodies() []map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]interface{}{}, b.startBodies...)
}

// SetAskResult sets the answer returned by /ask
func (b *Backend) SetAskResult(result types.AskResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.askResult = result
	b.askStatus = http.StatusOK
}

// FailAsk makes /ask answer with status
func (b *Backend) FailAsk(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.askStatus = status
}

// AddDownload serves data at /download/<id> and returns that path
func (b *Backend) AddDownload(id string, data []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.downloads[id] = data
	return "/download/" + id
}

// Joins delivers the job ids clients join
func (b *Backend) Joins() <-chan string {
	return b.joins
}

// Emit sends an event to every connection joined to jobID
func (b *Backend) Emit(jobID, event string, payload interface{}) error {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	conns := append([]*backendConn{}, b.rooms[jobID]...)
	b.mu.Unlock()

	if len(conns) == 0 {
		return fmt.Errorf("no client joined job %s", jobID)
	}
	for _, c := range conns {
		if err := c.send(frame); err != nil {
			return err
		}
	}
	return nil
}

// EmitProgress sends a progress event to jobID
func (b *Backend) EmitProgress(jobID, msg string, pct int) error {
	return b.Emit(jobID, string(types.EventKindProgress), types.ProgressEvent{Message: msg, Percent: pct})
}

// EmitDetail sends a detail event to jobID
func (b *Backend) EmitDetail(jobID, line string) error {
	return b.Emit(jobID, string(types.EventKindDetail), types.DetailEvent{Line: line})
}

func (b *Backend) handleReady(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := http.StatusOK
	if b.readyCalls < len(b.readyScript) {
		status = b.readyScript[b.readyCalls]
	}
	b.readyCalls++
	b.mu.Unlock()

	w.WriteHeader(status)
	_, _ = w.Write([]byte(http.StatusText(status)))
}

func (b *Backend) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req types.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	status, result := b.askStatus, b.askResult
	b.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (b *Backend) handleStart(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	body := map[string]interface{}{}
	_ = json.Unmarshal(data, &body)

	b.mu.Lock()
	b.startBodies = append(b.startBodies, body)
	status, message, window := b.startStatus, b.startError, b.defaultWindow
	b.mu.Unlock()

	if status != http.StatusOK {
		http.Error(w, message, status)
		return
	}

	if v, ok := body["window_days"].(float64); ok {
		window = int(v)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"job_id":      uuid.New().String(),
		"window_days": window,
	})
}

func (b *Backend) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/download/")

	b.mu.Lock()
	data, ok := b.downloads[id]
	b.mu.Unlock()

	if !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	_, _ = w.Write(data)
}

func (b *Backend) handleSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &backendConn{ws: ws}
	defer ws.Close()

	sid := uuid.New().String()
	if err := conn.send([]byte(openFrame(sid))); err != nil {
		return
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frame := string(data)

		switch {
		case frame == "2":
			_ = conn.send([]byte("3"))
		case strings.HasPrefix(frame, frameConnect):
			_ = conn.send([]byte(connectFrame(sid)))
		default:
			event, args, ok := decodeEvent(frame)
			if !ok || event != channel.EventJoin || len(args) == 0 {
				continue
			}
			var jobID string
			if err := json.Unmarshal(args[0], &jobID); err != nil {
				continue
			}
			b.mu.Lock()
			b.rooms[jobID] = append(b.rooms[jobID], conn)
			b.mu.Unlock()
			select {
			case b.joins <- jobID:
			default:
			}
		}
	}
}
