package client

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, 5*time.Second)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("ftp://example.com", time.Second)
	assert.Error(t, err)

	_, err = NewClient("://nope", time.Second)
	assert.Error(t, err)
}

func TestReady_ReturnsStatusCode(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusTooEarly, http.StatusServiceUnavailable} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, PathReady, r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
			w.WriteHeader(code)
		})

		status, err := c.Ready(t.Context())
		require.NoError(t, err)
		assert.Equal(t, code, status)
	}
}

func TestStartETL_RequestBody(t *testing.T) {
	tests := []struct {
		name     string
		window   *int
		wantBody string
	}{
		{name: "no window", window: nil, wantBody: `{}`},
		{name: "seven days", window: intPtr(7), wantBody: `{"window_days": 7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, PathStartETL, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				got, _ = io.ReadAll(r.Body)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"job_id": "job-1", "window_days": 120})
			})

			job, err := c.StartETL(t.Context(), tt.window)
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantBody, string(got))
			assert.Equal(t, "job-1", job.ID)
			require.NotNil(t, job.WindowDays)
			assert.Equal(t, 120, *job.WindowDays)
		})
	}
}

func TestStartETL_EchoesRequestedWindow(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id":"job-2"}`))
	})

	job, err := c.StartETL(t.Context(), intPtr(30))
	require.NoError(t, err)
	require.NotNil(t, job.WindowDays)
	assert.Equal(t, 30, *job.WindowDays)
}

func TestStartETL_NonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ETL already running", http.StatusConflict)
	})

	job, err := c.StartETL(t.Context(), nil)
	assert.Nil(t, job)
	require.Error(t, err)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusConflict, se.StatusCode)
	assert.Equal(t, "ETL already running", se.Body)
	assert.True(t, IsStatus(err, http.StatusConflict))
	assert.Contains(t, err.Error(), "ETL already running")
}

func TestStartETL_MissingJobID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.StartETL(t.Context(), nil)
	assert.ErrorContains(t, err, "no job_id")
}

func TestAsk(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ventas por mes", req["question"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"sql":     "SELECT 1",
			"resumen": "**ok**",
			"table":   "<table></table>",
			"excel":   "/download/abc",
		})
	})

	result, err := c.Ask(t.Context(), "ventas por mes")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.SQL)
	assert.Equal(t, "**ok**", result.Summary)
	assert.Equal(t, "<table></table>", result.Table)
	assert.Equal(t, "/download/abc", result.ExcelURL)
}

func TestAsk_MalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>Internal Server Error</html>`))
	})

	_, err := c.Ask(t.Context(), "q")
	assert.ErrorContains(t, err, "failed to decode")
}

func TestDownload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/abc" {
			http.Error(w, "Archivo no encontrado", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("xlsx-bytes"))
	})

	var buf bytes.Buffer
	n, err := c.Download(t.Context(), "/download/abc", &buf)
	require.NoError(t, err)
	assert.EqualValues(t, len("xlsx-bytes"), n)
	assert.Equal(t, "xlsx-bytes", buf.String())

	_, err = c.Download(t.Context(), "/download/missing", &buf)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestReady_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	c, err := NewClient(server.URL, time.Second)
	require.NoError(t, err)
	server.Close()

	_, err = c.Ready(t.Context())
	assert.Error(t, err)
}

func intPtr(v int) *int { return &v }

func TestEndpoints_KeepBaseURLPrefix(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/app/ready":
			w.WriteHeader(http.StatusOK)
		case "/app/ask":
			_ = json.NewEncoder(w).Encode(map[string]string{"sql": "SELECT 1"})
		case "/app/start_etl":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"job_id": "j1", "window_days": 120})
		case "/download/abc":
			_, _ = w.Write([]byte("xlsx"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c, err := NewClient(server.URL+"/app/", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/app/ready", c.Endpoint(PathReady))

	status, err := c.Ready(t.Context())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	result, err := c.Ask(t.Context(), "q")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.SQL)

	job, err := c.StartETL(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)

	// Server-issued links are resolved, not appended
	var buf bytes.Buffer
	_, err = c.Download(t.Context(), "/download/abc", &buf)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", buf.String())

	assert.Equal(t, []string{"/app/ready", "/app/ask", "/app/start_etl", "/download/abc"}, paths)
}
