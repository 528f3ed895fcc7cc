// File: internal/server/handlers.go
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/registry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SearchRequest is the job submission payload.
type SearchRequest struct {
	URL   string `json:"url"`
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// UserInputResponse resolves a pending human input request.
type UserInputResponse struct {
	JobID      string `json:"job_id"`
	InputValue string `json:"input_value"`
}

// Handlers manages the HTTP request handling for the job API.
type Handlers struct {
	log           *zap.Logger
	registry      *registry.Registry
	broker        schemas.InputBroker
	streamKeepAlv time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, reg *registry.Registry, broker schemas.InputBroker, streamKeepAlive time.Duration) *Handlers {
	if streamKeepAlive <= 0 {
		streamKeepAlive = time.Minute
	}
	return &Handlers{
		log:           logger.Named("http_handlers"),
		registry:      reg,
		broker:        broker,
		streamKeepAlv: streamKeepAlive,
	}
}

// RegisterRoutes sets up the routing for the job API.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Post("/search", h.HandleSearch)
	r.Get("/stream/{jobID}", h.HandleStream)
	r.Get("/result/{jobID}", h.HandleResult)
	r.Get("/jobs/{jobID}/status", h.HandleJobStatus)
	r.Post("/jobs/{jobID}/cancel", h.HandleCancel)

	r.Get("/user-input-request/{jobID}", h.HandleInputRequest)
	r.Post("/user-input-response", h.HandleInputResponse)
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleSearch submits a new job and returns its id plus follow-up URLs.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Query = strings.TrimSpace(req.Query)
	if req.URL == "" || req.Query == "" {
		h.respondWithError(w, http.StatusBadRequest, "Both url and query are required")
		return
	}
	if req.TopK < 0 {
		h.respondWithError(w, http.StatusBadRequest, "top_k must not be negative")
		return
	}

	job := h.registry.Submit(r.Context(), req.Query, req.URL, req.TopK)
	h.log.Info("job accepted", zap.String("job_id", job.ID), zap.String("url", req.URL))

	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"job_id":     job.ID,
		"stream_url": "/stream/" + job.ID,
		"result_url": "/result/" + job.ID,
	})
}

// HandleStream serves the job's telemetry as server-sent events. The stream
// ends after the job's terminal event. Quiet periods are bridged with
// keep-alive comments so proxies do not drop the connection.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	events, ok := h.registry.Stream(jobID)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(h.streamKeepAlv)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Error("Failed to encode telemetry event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			if ev.Kind.Terminal() {
				return
			}
		}
	}
}

// HandleResult returns the final job outcome, or 202 while the job runs.
func (h *Handlers) HandleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.registry.Get(jobID)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	if done, _, _ := job.Terminated(); !done {
		h.respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
		return
	}
	h.respondWithJSON(w, http.StatusOK, job.Result())
}

// HandleJobStatus returns a live snapshot of the job.
func (h *Handlers) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := h.registry.Get(jobID)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	h.respondWithJSON(w, http.StatusOK, job.Status())
}

// HandleCancel aborts a running job.
func (h *Handlers) HandleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !h.registry.Cancel(jobID, fmt.Errorf("cancelled via API")) {
		h.respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// HandleInputRequest reports the pending human input request for a job, if
// any. Clients poll this while a job is suspended.
func (h *Handlers) HandleInputRequest(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, ok := h.registry.Get(jobID); !ok {
		h.respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	req, ok := h.broker.Pending(jobID)
	if !ok {
		h.respondWithJSON(w, http.StatusNoContent, nil)
		return
	}
	h.respondWithJSON(w, http.StatusOK, req)
}

// HandleInputResponse resolves a pending human input request with a value.
func (h *Handlers) HandleInputResponse(w http.ResponseWriter, r *http.Request) {
	var req UserInputResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.JobID == "" {
		h.respondWithError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	if err := h.broker.Resolve(req.JobID, req.InputValue); err != nil {
		h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("No pending input request for job %s", req.JobID))
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithJSON encodes data as the response body. A nil body with a 204
// writes headers only.
func (h *Handlers) respondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	if data == nil {
		w.WriteHeader(statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
