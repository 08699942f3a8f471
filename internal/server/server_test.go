package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/poller"
)

type fakePoller struct {
	mu       sync.Mutex
	state    poller.State
	setErr   error
	setKey   string
	setValue any
	subs     []func(poller.State)
}

func (f *fakePoller) State() poller.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePoller) Set(_ context.Context, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setKey, f.setValue = key, value
	if f.setErr != nil {
		return f.setErr
	}
	next := f.state.Snapshot.Clone()
	d, _ := next.Registry().Lookup(key)
	wire, err := d.Encode(value)
	if err != nil {
		return err
	}
	if d.Kind == cyberq.KindTemperature {
		wire += "0"
	}
	if err := next.Accept(key, wire); err != nil {
		return err
	}
	f.state.Snapshot = next
	return nil
}

func (f *fakePoller) lastSet() (string, any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setKey, f.setValue
}

func (f *fakePoller) Subscribe(fn func(poller.State)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
	return func() {}
}

func newFakePoller(t *testing.T) *fakePoller {
	t.Helper()
	s := cyberq.NewStore(nil)
	for key, raw := range map[string]string{
		"COOK_NAME":      "Big Green Egg",
		"COOK_TEMP":      "3343",
		"COOK_SET":       "2250",
		"FOOD1_NAME":     "Brisket",
		"TIMEOUT_ACTION": "1",
		"OPENDETECT":     "1",
		"COOK_CYCTIME":   "6",
	} {
		if err := s.Accept(key, raw); err != nil {
			t.Fatalf("Accept(%s) error = %v", key, err)
		}
	}
	return &fakePoller{state: poller.State{
		Snapshot:    s,
		Available:   true,
		LastSuccess: time.Unix(1700000000, 0),
		Identity:    cyberq.Identity{Host: "192.168.1.50", SerialNumber: "ABCD", Model: cyberq.ModelWiFi},
	}}
}

func newTestServer(t *testing.T, p Poller, metrics http.Handler) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Config{Listen: "127.0.0.1:0"}, p, metrics)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	p := newFakePoller(t)
	_, ts := newTestServer(t, p, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	p.mu.Lock()
	p.state.Available = false
	p.state.LastError = cyberq.NewHTTPError(503, "busy")
	p.mu.Unlock()
	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(string(body), "HTTP 503") {
		t.Errorf("body = %q, want the short error", body)
	}
}

func TestGetSensors(t *testing.T) {
	_, ts := newTestServer(t, newFakePoller(t), nil)

	resp, err := http.Get(ts.URL + "/api/sensors")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var view StateView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if !view.Available || view.Identity.SerialNumber != "ABCD" {
		t.Errorf("view = %+v", view)
	}
	cook, ok := view.Sensors["COOK_TEMP"]
	if !ok {
		t.Fatal("COOK_TEMP missing")
	}
	if cook.Value != 334.3 || cook.Display != "334.3°F" || !cook.ReadOnly || cook.Kind != "Temperature" {
		t.Errorf("COOK_TEMP = %+v", cook)
	}
	if action := view.Sensors["TIMEOUT_ACTION"]; action.Value != "Hold" {
		t.Errorf("TIMEOUT_ACTION = %+v", action)
	}
}

func TestGetSensor(t *testing.T) {
	_, ts := newTestServer(t, newFakePoller(t), nil)

	tests := []struct {
		path   string
		status int
		name   string
	}{
		{"/api/sensors/COOK_SET", http.StatusOK, "COOK_SET"},
		{"/api/sensors/CYCTIME", http.StatusOK, "COOK_CYCTIME"},
		{"/api/sensors/FOOD3_TEMP", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		resp, err := http.Get(ts.URL + tt.path)
		if err != nil {
			t.Fatal(err)
		}
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()

		if resp.StatusCode != tt.status {
			t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.status)
		}
		if tt.name != "" && out["name"] != tt.name {
			t.Errorf("GET %s name = %v, want %v", tt.path, out["name"], tt.name)
		}
	}
}

func TestSetSensor(t *testing.T) {
	p := newFakePoller(t)
	_, ts := newTestServer(t, p, nil)

	resp, out := postJSON(t, ts.URL+"/api/sensors/COOK_SET", `{"value": 250}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	if key, value := p.lastSet(); key != "COOK_SET" || value != "250" {
		t.Errorf("poller Set(%v, %#v)", key, value)
	}
	if out["value"] != 250.0 {
		t.Errorf("value = %v, want 250", out["value"])
	}
}

func TestSetSensor_Alias(t *testing.T) {
	p := newFakePoller(t)
	_, ts := newTestServer(t, p, nil)

	resp, out := postJSON(t, ts.URL+"/api/sensors/CYCTIME", `{"value": 8}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, out)
	}
	if key, _ := p.lastSet(); key != "COOK_CYCTIME" {
		t.Errorf("poller Set key = %v, want canonical COOK_CYCTIME", key)
	}
}

func TestSetSensor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		setErr error
		status int
	}{
		{"bad json", "/api/sensors/COOK_SET", `{`, nil, http.StatusBadRequest},
		{"missing value", "/api/sensors/COOK_SET", `{}`, nil, http.StatusBadRequest},
		{"out of range", "/api/sensors/COOK_SET", `{"value": 900}`, nil, http.StatusBadRequest},
		{"read only", "/api/sensors/COOK_TEMP", `{"value": 250}`, nil, http.StatusBadRequest},
		{"bad name", "/api/sensors/FOOD1_NAME", `{"value": "Ribs!"}`, nil, http.StatusBadRequest},
		{"unknown option", "/api/sensors/TIMEOUT_ACTION", `{"value": "Explode"}`, nil, http.StatusBadRequest},
		{"not present", "/api/sensors/FOOD3_SET", `{"value": 200}`, nil, http.StatusNotFound},
		{"unknown key", "/api/sensors/MYSTERY", `{"value": 1}`, nil, http.StatusNotFound},
		{"controller down", "/api/sensors/COOK_SET", `{"value": 250}`, cyberq.NewHTTPError(500, "oops"), http.StatusBadGateway},
		{"unexpected", "/api/sensors/COOK_SET", `{"value": 250}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePoller(t)
			p.setErr = tt.setErr
			_, ts := newTestServer(t, p, nil)

			resp, out := postJSON(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (%v)", resp.StatusCode, tt.status, out)
			}
			if msg, _ := out["error"].(string); msg == "" {
				t.Error("error message missing")
			}
		})
	}
}

func TestSetSensor_BooleanAndEnum(t *testing.T) {
	p := newFakePoller(t)
	_, ts := newTestServer(t, p, nil)

	if resp, out := postJSON(t, ts.URL+"/api/sensors/OPENDETECT", `{"value": false}`); resp.StatusCode != http.StatusOK {
		t.Errorf("OPENDETECT status = %d (%v)", resp.StatusCode, out)
	}
	if _, value := p.lastSet(); value != "0" {
		t.Errorf("OPENDETECT sent %#v, want \"0\"", value)
	}

	resp, out := postJSON(t, ts.URL+"/api/sensors/TIMEOUT_ACTION", `{"value": "Alarm"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("TIMEOUT_ACTION status = %d (%v)", resp.StatusCode, out)
	}
	if out["value"] != "Alarm" {
		t.Errorf("TIMEOUT_ACTION = %v, want Alarm", out["value"])
	}
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("cyberq_output_percent 65\n"))
	})
	_, ts := newTestServer(t, newFakePoller(t), metrics)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "cyberq_output_percent 65") {
		t.Errorf("body = %q", body)
	}
}

func TestWebSocket(t *testing.T) {
	p := newFakePoller(t)
	s, ts := newTestServer(t, p, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var initial StateView
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if initial.Identity.SerialNumber != "ABCD" {
		t.Errorf("initial identity = %+v", initial.Identity)
	}

	next := p.State()
	next.Snapshot = next.Snapshot.Clone()
	if err := next.Snapshot.Accept("COOK_TEMP", "3400"); err != nil {
		t.Fatal(err)
	}
	s.hub.broadcastState(next)

	var update StateView
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Sensors["COOK_TEMP"].Value != 340.0 {
		t.Errorf("COOK_TEMP = %v, want 340", update.Sensors["COOK_TEMP"].Value)
	}
	if s.ActiveClients() != 1 {
		t.Errorf("ActiveClients() = %d, want 1", s.ActiveClients())
	}
}

func TestRun_Shutdown(t *testing.T) {
	p := newFakePoller(t)
	s, err := New(Config{Listen: "127.0.0.1:0"}, p, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	p.mu.Lock()
	subs := len(p.subs)
	p.mu.Unlock()
	if subs != 1 {
		t.Errorf("Run() registered %d subscribers, want 1", subs)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestNew_BadCertificate(t *testing.T) {
	_, err := New(Config{Listen: ":0", CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}, newFakePoller(t), nil)
	if err == nil {
		t.Error("New() should fail with missing certificate files")
	}
}
