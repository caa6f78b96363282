// Package status provides the HTTP status and manual control API.
package status

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/app/controller"
	"github.com/osa030/raveforest/internal/app/filter"
	"github.com/osa030/raveforest/internal/app/playback"
	"github.com/osa030/raveforest/internal/app/stop"
)

// Controller is the part of the controller served over HTTP.
type Controller interface {
	StartFrom(ctx context.Context, name string, source filter.Source) (playback.Outcome, error)
	Request(name string) stop.Outcome
	Status() controller.Status
	MetricsHandler() http.Handler
}

// StartResponse is the body returned by the start endpoint.
type StartResponse struct {
	Sample    string `json:"sample"`
	Status    string `json:"status"`
	Code      string `json:"code,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// StopResponse is the body returned by the stop endpoint.
type StopResponse struct {
	Sample  string `json:"sample"`
	Outcome string `json:"outcome"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the status API.
type Handler struct {
	ctrl Controller
	mux  *http.ServeMux
}

// NewHandler creates the API handler.
func NewHandler(ctrl Controller) *Handler {
	h := &Handler{ctrl: ctrl, mux: http.NewServeMux()}
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /status", h.status)
	h.mux.HandleFunc("POST /samples/{name}/start", h.start)
	h.mux.HandleFunc("POST /samples/{name}/stop", h.stop)
	h.mux.Handle("GET /metrics", ctrl.MetricsHandler())
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// healthz reports ok while the controller accepts requests.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	phase := h.ctrl.Status().Phase
	if phase != controller.PhaseRunning.String() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(phase + "\n"))
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	outcome, err := h.ctrl.StartFrom(r.Context(), name, filter.SourceHTTP)
	if err != nil {
		zlog.Warn().Msgf("status: start failed: sample=%s err=%v", name, err)
		code := http.StatusInternalServerError
		if errors.Is(err, playback.ErrClosed) {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}

	code := http.StatusOK
	switch outcome.Status {
	case playback.StatusStarted:
		code = http.StatusAccepted
	case playback.StatusRejected:
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, StartResponse{
		Sample:    name,
		Status:    outcome.Status.String(),
		Code:      outcome.Code,
		SessionID: outcome.SessionID,
	})
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	outcome := h.ctrl.Request(name)
	writeJSON(w, http.StatusOK, StopResponse{
		Sample:  name,
		Outcome: outcome.String(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Msgf("status: failed to write response: %v", err)
	}
}
