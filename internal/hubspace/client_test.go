package hubspace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// fakeCloud is an httptest server emulating the identity and API services.
type fakeCloud struct {
	t          *testing.T
	server     *httptest.Server
	password   string
	tokenCalls atomic.Int32

	mu        sync.Mutex
	lastPut   []byte
	stateCode int
}

func (f *fakeCloud) setStateCode(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCode = code
}

func (f *fakeCloud) putBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPut
}

func newFakeCloud(t *testing.T) *fakeCloud {
	t.Helper()
	f := &fakeCloud{t: t, password: "secret", stateCode: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if r.PostForm.Get("client_id") != DefaultClientID {
			t.Errorf("client_id = %q", r.PostForm.Get("client_id"))
		}
		if r.PostForm.Get("grant_type") == "password" && r.PostForm.Get("password") != f.password {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid user credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":120,"refresh_token":"ref"}`)
	})
	mux.HandleFunc("GET /v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"accountAccess":[{"account":{"accountId":"acct-1"}}]}`)
	})
	mux.HandleFunc("GET /v1/accounts/acct-1/metadevices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("expansions") != "state" {
			t.Errorf("expansions = %q, want state", r.URL.Query().Get("expansions"))
		}
		_, _ = io.WriteString(w, `[{"id":"light-1","typeId":"metadevice.device"}]`)
	})
	mux.HandleFunc("GET /v1/accounts/acct-1/metadevices/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		code := f.stateCode
		f.mu.Unlock()
		if code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		_, _ = io.WriteString(w, `{"metadeviceId":"`+r.PathValue("id")+`","values":[
			{"functionClass":"power","functionInstance":"light-power","value":"on","lastUpdateTime":1700000000000},
			{"functionClass":"brightness","functionInstance":null,"value":42}
		]}`)
	})
	mux.HandleFunc("PUT /v1/accounts/acct-1/metadevices/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.lastPut = body
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCloud) client(t *testing.T, password string) *Client {
	t.Helper()
	c, err := New(Config{
		Username: "user@example.com",
		Password: password,
		APIURL:   f.server.URL + "/v1",
		TokenURL: f.server.URL + "/token",
		Timeout:  2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return c
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{Username: "u"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("New() without password error = %v, want ErrInvalidConfig", err)
	}
}

func TestClient_Login(t *testing.T) {
	f := newFakeCloud(t)

	if err := f.client(t, "secret").Login(context.Background()); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	err := f.client(t, "wrong").Login(context.Background())
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Login() with bad password error = %v, want ErrAuthFailed", err)
	}
}

func TestClient_AccountIDCached(t *testing.T) {
	f := newFakeCloud(t)
	c := f.client(t, "secret")

	for range 3 {
		id, err := c.AccountID(context.Background())
		if err != nil {
			t.Fatalf("AccountID() error = %v", err)
		}
		if id != "acct-1" {
			t.Errorf("AccountID() = %q, want acct-1", id)
		}
	}
	if n := f.tokenCalls.Load(); n != 1 {
		t.Errorf("token calls = %d, want 1", n)
	}
}

func TestClient_Metadevices(t *testing.T) {
	f := newFakeCloud(t)
	c := f.client(t, "secret")

	raw, err := c.Metadevices(context.Background())
	if err != nil {
		t.Fatalf("Metadevices() error = %v", err)
	}
	listing, err := device.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(listing.Devices) != 1 || listing.Devices[0].ID != "light-1" {
		t.Errorf("Devices = %+v", listing.Devices)
	}
}

func TestClient_DeviceState(t *testing.T) {
	f := newFakeCloud(t)
	c := f.client(t, "secret")

	states, err := c.DeviceState(context.Background(), "light-1")
	if err != nil {
		t.Fatalf("DeviceState() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("DeviceState() = %d states, want 2", len(states))
	}
	if states[0].Instance != "light-power" || states[0].Value != "on" {
		t.Errorf("states[0] = %+v", states[0])
	}
	if states[1].Instance != "" {
		t.Errorf("null instance should decode as empty, got %q", states[1].Instance)
	}
}

func TestClient_DeviceStateErrors(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusInternalServerError, ErrUnexpectedResponse},
		{http.StatusNotFound, ErrUnexpectedResponse},
	}
	for _, tt := range tests {
		f := newFakeCloud(t)
		f.setStateCode(tt.code)
		_, err := f.client(t, "secret").DeviceState(context.Background(), "light-1")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d error = %v, want %v", tt.code, err, tt.want)
		}
	}
}

func TestClient_SetStates(t *testing.T) {
	f := newFakeCloud(t)
	c := f.client(t, "secret")

	err := c.SetStates(context.Background(), "lock-1", []device.State{
		{Class: device.FunctionLockControl, Value: "unlocking"},
		{Class: device.FunctionToggle, Instance: "outlet2", Value: "on"},
	})
	if err != nil {
		t.Fatalf("SetStates() error = %v", err)
	}

	var got struct {
		MetadeviceID string           `json:"metadeviceId"`
		Values       []map[string]any `json:"values"`
	}
	body := f.putBody()
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decoding PUT body: %v", err)
	}
	if got.MetadeviceID != "lock-1" || len(got.Values) != 2 {
		t.Fatalf("PUT body = %s", body)
	}
	inst, present := got.Values[0]["functionInstance"]
	if !present || inst != nil {
		t.Errorf("functionInstance = %v (present %v), want explicit null", inst, present)
	}
	if got.Values[0]["value"] != "unlocking" {
		t.Errorf("value = %v", got.Values[0]["value"])
	}
	if got.Values[1]["functionInstance"] != "outlet2" {
		t.Errorf("second functionInstance = %v", got.Values[1]["functionInstance"])
	}
	if got.Values[0]["lastUpdateTime"] != float64(1700000000123) {
		t.Errorf("lastUpdateTime = %v", got.Values[0]["lastUpdateTime"])
	}
}

func TestClient_SetStatesEmpty(t *testing.T) {
	f := newFakeCloud(t)
	if err := f.client(t, "secret").SetStates(context.Background(), "x", nil); err != nil {
		t.Errorf("SetStates(nil) error = %v", err)
	}
	if f.tokenCalls.Load() != 0 {
		t.Error("empty write should not touch the network")
	}
}

func TestClient_ConnectionFailed(t *testing.T) {
	f := newFakeCloud(t)
	c := f.client(t, "secret")
	f.server.Close()

	_, err := c.Metadevices(context.Background())
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Metadevices() error = %v, want ErrConnectionFailed", err)
	}
}
