package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/influxdb"
)

// fakeInflux emulates the /ping and /api/v2/write endpoints.
type fakeInflux struct {
	server *httptest.Server

	mu        sync.Mutex
	lines     []string
	writeCode int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{writeCode: http.StatusNoContent}

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("bucket") != "hubspace" || r.URL.Query().Get("org") != "home" {
			t.Errorf("write query = %s", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.writeCode != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.writeCode)
			_, _ = io.WriteString(w, `{"code":"invalid","message":"bad point"}`)
			return
		}
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				f.lines = append(f.lines, line)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeInflux) config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           f.server.URL,
		Token:         "test-token",
		Org:           "home",
		Bucket:        "hubspace",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()
	c, err := influxdb.Connect(f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnect(t *testing.T) {
	f := newFakeInflux(t)
	c := connect(t, f)

	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	f := newFakeInflux(t)
	cfg := f.config()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeInflux(t)
	cfg := f.config()
	f.server.Close()

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := f.config()
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	c, err := influxdb.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close() //nolint:errcheck // test cleanup

	if !c.IsConnected() {
		t.Error("IsConnected() = false with default batch settings")
	}
}

func TestWriteEntityState(t *testing.T) {
	f := newFakeInflux(t)
	c := connect(t, f)
	at := time.Unix(1700000000, 0)

	c.WriteEntityState("light-1", "light", map[string]any{"on": true, "brightness": 128}, at)
	c.WriteEntityState("switch-1_outlet1", "switch", nil, at)
	c.Flush()

	lines := f.written()
	if len(lines) != 1 {
		t.Fatalf("written lines = %v, want 1 (empty snapshot dropped)", lines)
	}
	for _, want := range []string{"entity_state,", "source=hubspace-bridge", "domain=light", "entity_id=light-1", "brightness=128i", "on=true", "1700000000000000000"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWritePollResult(t *testing.T) {
	f := newFakeInflux(t)
	c := connect(t, f)

	c.WritePollResult(4, 1500*time.Millisecond, false, time.Unix(1700000000, 0))
	c.Flush()

	lines := f.written()
	if len(lines) != 1 {
		t.Fatalf("written lines = %v", lines)
	}
	for _, want := range []string{"poll,", "source=hubspace-bridge", "devices=4i", "duration_ms=1500i", "success=false"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWriteErrorCallback(t *testing.T) {
	f := newFakeInflux(t)
	f.mu.Lock()
	f.writeCode = http.StatusBadRequest
	f.mu.Unlock()
	c := connect(t, f)

	errCh := make(chan error, 1)
	c.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	c.WriteEntityState("fan-1_fan", "fan", map[string]any{"percentage": 50}, time.Now())
	c.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("callback received nil error")
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for write error callback")
	}
}

func TestClose(t *testing.T) {
	f := newFakeInflux(t)
	c, err := influxdb.Connect(f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after close are no-ops.
	c.WriteEntityState("light-1", "light", map[string]any{"on": false}, time.Now())
	c.Flush()
	if got := f.written(); len(got) != 0 {
		t.Errorf("lines written after Close = %v", got)
	}
}

func TestClose_Nil(t *testing.T) {
	c := &influxdb.Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
