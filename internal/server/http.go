package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/muurk/cyberq/internal/cyberq"
	"github.com/muurk/cyberq/internal/logging"
	"github.com/muurk/cyberq/internal/poller"
	"go.uber.org/zap"
)

// SensorView is the JSON form of one sensor value
type SensorView struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Value    any    `json:"value"`
	Raw      string `json:"raw"`
	Display  string `json:"display"`
	ReadOnly bool   `json:"read_only"`
}

// StateView is the JSON form of a poller state
type StateView struct {
	Identity    cyberq.Identity       `json:"identity"`
	Available   bool                  `json:"available"`
	LastSuccess time.Time             `json:"last_success,omitzero"`
	LastError   string                `json:"last_error,omitempty"`
	Failures    int                   `json:"failures"`
	Sensors     map[string]SensorView `json:"sensors"`
}

func newSensorView(v cyberq.Value) SensorView {
	d := v.Descriptor()
	return SensorView{
		Name:     v.Name(),
		Kind:     v.Kind().String(),
		Value:    v.Value(),
		Raw:      v.Raw(),
		Display:  cyberq.FormatValue(v),
		ReadOnly: d.ReadOnly,
	}
}

// NewStateView converts a poller state for JSON encoding
func NewStateView(s poller.State) StateView {
	view := StateView{
		Identity:    s.Identity,
		Available:   s.Available,
		LastSuccess: s.LastSuccess,
		Failures:    s.Failures,
		Sensors:     make(map[string]SensorView),
	}
	if s.LastError != nil {
		view.LastError = cyberq.GetShortErrorMessage(s.LastError)
	}
	if s.Snapshot != nil {
		for _, v := range s.Snapshot.Values() {
			view.Sensors[v.Name()] = newSensorView(v)
		}
	}
	return view
}

type setRequest struct {
	Value any `json:"value"`
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := s.poller.State()
	if !state.Available {
		msg := "waiting for first refresh"
		if state.LastError != nil {
			msg = cyberq.GetShortErrorMessage(state.LastError)
		}
		http.Error(w, "UNAVAILABLE: "+msg, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleSensors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewStateView(s.poller.State()))
}

func (s *Server) handleSensor(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	snapshot := s.poller.State().Snapshot
	if snapshot == nil {
		writeError(w, cyberq.NewNotFoundError(key))
		return
	}
	v, err := snapshot.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSensorView(v))
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var req setRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: `body must contain "value"`})
		return
	}

	snapshot := s.poller.State().Snapshot
	if snapshot == nil {
		writeError(w, cyberq.NewNotFoundError(key))
		return
	}
	current, err := snapshot.Get(key)
	if err != nil {
		writeError(w, err)
		return
	}

	d := current.Descriptor()
	input := cyberq.NormalizeInput(d, stringify(req.Value))
	if err := cyberq.ValidateInput(d, input); err != nil {
		writeError(w, err)
		return
	}

	if err := s.poller.Set(r.Context(), current.Name(), input); err != nil {
		writeError(w, err)
		return
	}

	updated, err := s.poller.State().Snapshot.Get(current.Name())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSensorView(updated))
}

// stringify turns a decoded JSON value into the text form the validators expect
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(t)
	}
}

func statusFor(err error) int {
	switch {
	case cyberq.IsNotFoundError(err):
		return http.StatusNotFound
	case cyberq.IsEncodeError(err):
		return http.StatusBadRequest
	case cyberq.IsTransportError(err), cyberq.IsDecodeError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusBadGateway {
		resp.Hint = cyberq.GetTroubleshootingHint(err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write response", zap.Error(err))
	}
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the logging wrapper
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogAPIRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}
