// Package http exposes the venueflow engine as a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/venueflow"
	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/submission"
	"github.com/go-chi/chi/v5"
)

// Engine is the part of the venueflow engine served over HTTP.
type Engine interface {
	HandleStageEvent(ctx context.Context, event domain.StageEvent) domain.Outcome
	Plan(ctx context.Context, event domain.StageEvent) (*domain.Plan, error)
	CreateForm(ctx context.Context, id, venueID string, number int, content map[string]any) (*domain.RequestForm, error)
	AppendRevision(ctx context.Context, formID string, content map[string]any) (domain.FormRevision, error)
	Definitions(ctx context.Context, prefix string) ([]*domain.WorkflowDefinition, error)
	Activity(ctx context.Context, formID string) ([]domain.ActivityRecord, error)
	Submit(ctx context.Context, formID string, note domain.Note) (*venueflow.Submission, error)
}

var _ Engine = (*venueflow.Engine)(nil)

// Server routes requests to the engine.
type Server struct {
	Engine  Engine
	Streams *StreamManager
	Logger  *slog.Logger
}

// Option configures the handler.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	metrics http.Handler
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics serves h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(o.logger),
		Logger:  o.logger,
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if o.metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.metrics)
	}
	r.Get("/definitions", s.ListDefinitions)
	r.Post("/forms", s.CreateForm)
	r.Route("/forms/{id}", func(r chi.Router) {
		r.Post("/revisions", s.AppendRevision)
		r.Post("/events", s.HandleStageEvent)
		r.Get("/events/stream", s.SubscribeEvents)
		r.Post("/plan", s.Plan)
		r.Get("/activity", s.ListActivity)
		r.Post("/submissions", s.Submit)
	})
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EventRequest is the body of POST /forms/{id}/events and /plan. The form
// comes from the path.
type EventRequest struct {
	StageType domain.StageType `json:"stage_type"`
	Sequence  int64            `json:"sequence"`
	Content   map[string]any   `json:"content"`
}

func (req EventRequest) event(formID string) domain.StageEvent {
	return domain.StageEvent{
		StageType:     req.StageType,
		RequestFormID: formID,
		Sequence:      req.Sequence,
		Content:       req.Content,
	}
}

// FormRequest is the body of POST /forms.
type FormRequest struct {
	ID      string         `json:"id"`
	VenueID string         `json:"venue_id"`
	Number  int            `json:"number"`
	Content map[string]any `json:"content"`
}

// HandleStageEvent handles POST /forms/{id}/events. The outcome is returned
// for failures too, with a status derived from the error kind.
func (s *Server) HandleStageEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if !s.decode(w, r, &body) {
		return
	}
	formID := chi.URLParam(r, "id")
	out := s.Engine.HandleStageEvent(r.Context(), body.event(formID))

	if data, err := json.Marshal(out); err == nil {
		s.Streams.Broadcast(formID, string(data))
	}

	status := http.StatusOK
	if out.Err != nil {
		status = statusOf(out.Err.Kind)
		s.Logger.Warn("stage event failed", "form", formID, "stage", out.Stage, "kind", out.Err.Kind)
	}
	s.writeJSON(w, status, out)
}

// Plan handles POST /forms/{id}/plan.
func (s *Server) Plan(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if !s.decode(w, r, &body) {
		return
	}
	plan, err := s.Engine.Plan(r.Context(), body.event(chi.URLParam(r, "id")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, plan)
}

// CreateForm handles POST /forms.
func (s *Server) CreateForm(w http.ResponseWriter, r *http.Request) {
	var body FormRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.ID == "" || body.VenueID == "" {
		http.Error(w, "id and venue_id are required", http.StatusBadRequest)
		return
	}
	form, err := s.Engine.CreateForm(r.Context(), body.ID, body.VenueID, body.Number, body.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, form)
}

// AppendRevision handles POST /forms/{id}/revisions. The body is the new
// configuration content.
func (s *Server) AppendRevision(w http.ResponseWriter, r *http.Request) {
	var content map[string]any
	if !s.decode(w, r, &content) {
		return
	}
	rev, err := s.Engine.AppendRevision(r.Context(), chi.URLParam(r, "id"), content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, rev)
}

// ListActivity handles GET /forms/{id}/activity.
func (s *Server) ListActivity(w http.ResponseWriter, r *http.Request) {
	records, err := s.Engine.Activity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []domain.ActivityRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// ListDefinitions handles GET /definitions?prefix=.
func (s *Server) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.Engine.Definitions(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if defs == nil {
		defs = []*domain.WorkflowDefinition{}
	}
	s.writeJSON(w, http.StatusOK, defs)
}

// Submit handles POST /forms/{id}/submissions.
func (s *Server) Submit(w http.ResponseWriter, r *http.Request) {
	var note domain.Note
	if !s.decode(w, r, &note) {
		return
	}
	res, err := s.Engine.Submit(r.Context(), chi.URLParam(r, "id"), note)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "venueflow-http",
		"version": strings.TrimSpace(venueflow.Version),
	})
}

// SubscribeEvents handles GET /forms/{id}/events/stream (SSE). Every outcome of
// the form handled through this server is pushed as one data frame.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	formID := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(formID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: outcome\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		s.Logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrFormNotFound), errors.Is(err, domain.ErrDefinitionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, submission.ErrClosed):
		status = http.StatusConflict
	default:
		status = statusOf(domain.KindOf(err))
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindSchema, domain.KindResolution:
		return http.StatusUnprocessableEntity
	case domain.KindPrecondition:
		return http.StatusConflict
	case domain.KindCollaborator:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StreamManager fans outcomes out to the SSE subscribers of a form.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{}
	logger      *slog.Logger
}

// NewStreamManager returns an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for formID. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(formID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[formID]; !ok {
		sm.subscribers[formID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[formID][ch] = struct{}{}
	sm.logger.Debug("stream subscribed", "form", formID)

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[formID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, formID)
			}
		}
	}
}

// Subscribers counts the open subscriptions of formID.
func (sm *StreamManager) Subscribers(formID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[formID])
}

// Broadcast sends msg to every subscriber of formID, dropping it for slow ones.
func (sm *StreamManager) Broadcast(formID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[formID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("stream buffer full, dropping outcome", "form", formID)
		}
	}
}
