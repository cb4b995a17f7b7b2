package eventsource

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/r3e-network/faas-trigger-engine/internal/validator"
)

// HTTPSource turns inbound webhook POSTs into custom events. It is the
// platform's HTTP invocation path: a POST to /events with
// {"event_name": ..., "data": ...} is screened by a per-source rate
// limiter and the optional guard, then emitted into the pipeline like any
// other custom event.
type HTTPSource struct {
	*CustomSource

	limiter *rate.Limiter
	logger  *zap.Logger
}

// webhookRequest is the accepted POST body.
type webhookRequest struct {
	EventName string      `json:"event_name"`
	Data      interface{} `json:"data"`
}

// NewHTTPSource wraps a CustomSource with an HTTP handler. rps bounds
// accepted requests per second; burst requests beyond it receive 429.
func NewHTTPSource(tag string, cfg Config, guard *Guard, rps float64, burst int, logger *zap.Logger) *HTTPSource {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &HTTPSource{
		CustomSource: NewCustomSource(tag, cfg, guard, logger),
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		logger:       logger,
	}
}

// Router returns the chi router serving the webhook endpoint. The caller
// mounts it on whatever listener it manages.
func (s *HTTPSource) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Post("/events", s.handleEvent)
	return r
}

func (s *HTTPSource) handleEvent(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.EventName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event_name is required"})
		return
	}

	// Webhook bodies are untrusted user input; screen them here so a
	// hostile payload never reaches the pipeline as a Custom event.
	if err := validator.ValidateInput(map[string]interface{}{
		"event_name": req.EventName,
		"data":       req.Data,
	}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if !s.Emit(req.EventName, req.Data) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "event rejected"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
