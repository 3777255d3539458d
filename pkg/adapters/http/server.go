package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/compiler"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/monitor"
	"github.com/aretw0/constraintflow/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// DefaultMaxModelSize bounds the body of POST /models.
const DefaultMaxModelSize = 10 << 20

// Engine is the part of constraintflow.Engine the server drives.
type Engine interface {
	Load(ctx context.Context, xml []byte) error
	Monitor() *monitor.Monitor
	Bus() ports.EventBus
}

// Server exposes an engine to browser renderers and remote simulators.
type Server struct {
	engine       Engine
	streams      *StreamManager
	metrics      http.Handler
	logger       *slog.Logger
	maxModelSize int64
	router       chi.Router
	busSub       string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithMaxModelSize overrides DefaultMaxModelSize.
func WithMaxModelSize(n int64) Option {
	return func(s *Server) {
		s.maxModelSize = n
	}
}

// NewServer builds the router and attaches the stream manager to the engine bus.
// Call Close to detach it.
func NewServer(engine Engine, opts ...Option) (*Server, error) {
	s := &Server{
		engine:       engine,
		logger:       logging.NewNop(),
		maxModelSize: DefaultMaxModelSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)

	id, err := engine.Bus().Subscribe(domain.TopicAll, func(ctx context.Context, e domain.Event) {
		if err := s.streams.Emit(ctx, e); err != nil {
			s.logger.Warn("failed to stream event", "topic", e.Topic, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe stream manager: %w", err)
	}
	s.busSub = id

	r := chi.NewRouter()
	r.Use(enableCORS)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Post("/models", s.LoadModel)
	r.Get("/state", s.GetState)
	r.Get("/constraints", s.GetConstraints)
	r.Get("/automaton", s.GetAutomaton)
	r.Post("/activities", s.PostActivity)
	r.Post("/simulation/{action}", s.Control)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/ws", s.WebSocket)
	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Streams returns the stream manager.
func (s *Server) Streams() *StreamManager {
	return s.streams
}

// Close detaches the stream manager from the bus.
func (s *Server) Close() error {
	return s.engine.Bus().Unsubscribe(s.busSub)
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

// StateResponse is the body of GET /state and of every mutating call.
type StateResponse struct {
	SessionID string       `json:"sessionId"`
	Phase     domain.Phase `json:"phase"`
	Current   string       `json:"current,omitempty"`
	Initial   string       `json:"initial,omitempty"`
	Available []string     `json:"available"`
	Accepting bool         `json:"accepting"`
	Steps     int          `json:"steps"`
}

// ConstraintView is one entry of GET /constraints.
type ConstraintView struct {
	domain.ConstraintRecord
	Status domain.Status `json:"status,omitempty"`
	Color  string        `json:"color,omitempty"`
}

// ActivityResponse is the body of POST /activities.
type ActivityResponse struct {
	Advanced bool          `json:"advanced"`
	State    StateResponse `json:"state"`
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "cflow-http",
		"version": strings.TrimSpace(constraintflow.Version),
		"session": s.engine.Monitor().SessionID(),
	}, s.logger)
}

// LoadModel handles the POST /models request. The body is BPMN XML.
func (s *Server) LoadModel(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxModelSize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err, s.logger)
		return
	}

	if err := s.engine.Load(r.Context(), body); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrInvalidModel):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, domain.ErrCompileFailed):
			status = http.StatusBadGateway
		}
		s.logger.Warn("LoadModel failed", "status", status, "error", err)
		writeError(w, status, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.state(), s.logger)
}

// GetState handles the GET /state request.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state(), s.logger)
}

// GetConstraints handles the GET /constraints request. Each constraint carries
// its status in the current state, when the automaton assigns one.
func (s *Server) GetConstraints(w http.ResponseWriter, r *http.Request) {
	mon := s.engine.Monitor()
	records := mon.Constraints()

	statuses := map[string]domain.Status{}
	if dfa := mon.Automaton(); dfa != nil {
		colors, _ := dfa.ColorOf(mon.Current())
		for _, c := range colors {
			statuses[c.ConstraintFlowID] = c.Status
		}
	}

	out := make([]ConstraintView, 0, len(records))
	for _, rec := range records {
		v := ConstraintView{ConstraintRecord: rec}
		if st, ok := statuses[rec.ID]; ok {
			v.Status = st
			v.Color = st.Color()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out, s.logger)
}

// GetAutomaton handles the GET /automaton request.
func (s *Server) GetAutomaton(w http.ResponseWriter, r *http.Request) {
	dfa := s.engine.Monitor().Automaton()
	if dfa == nil {
		writeError(w, http.StatusNotFound, domain.ErrNotBound, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, dfa, s.logger)
}

// PostActivity handles the POST /activities request by publishing the
// activity on the host bus, exactly as an in-process simulator would.
func (s *Server) PostActivity(w http.ResponseWriter, r *http.Request) {
	var ev domain.ActivityEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), s.logger)
		return
	}
	if ev.ElementID == "" {
		writeError(w, http.StatusBadRequest, errors.New("elementId is required"), s.logger)
		return
	}
	switch ev.Action {
	case "":
		ev.Action = domain.ActionExit
	case domain.ActionEnter, domain.ActionExit:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown action %q", ev.Action), s.logger)
		return
	}

	mon := s.engine.Monitor()
	if mon.Phase() == domain.PhaseUnbound {
		writeError(w, http.StatusConflict, domain.ErrNotBound, s.logger)
		return
	}

	before := mon.Cursor().Steps
	if err := s.engine.Bus().Publish(r.Context(), domain.Event{Topic: domain.TopicTrace, Payload: ev}); err != nil {
		writeError(w, http.StatusInternalServerError, err, s.logger)
		return
	}
	state := s.state()
	writeJSON(w, http.StatusOK, ActivityResponse{Advanced: state.Steps > before, State: state}, s.logger)
}

// Control handles POST /simulation/{start,reset,pause,toggle}.
func (s *Server) Control(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	ev := domain.Event{}
	switch action {
	case "start":
		ev.Topic = domain.TopicPlay
	case "reset":
		ev.Topic = domain.TopicReset
	case "pause":
		ev.Topic = domain.TopicPause
	case "toggle":
		var body domain.ToggleEvent
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), s.logger)
			return
		}
		ev.Topic = domain.TopicToggle
		ev.Payload = body
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown simulation action %q", action), s.logger)
		return
	}

	if s.engine.Monitor().Phase() == domain.PhaseUnbound {
		writeError(w, http.StatusConflict, domain.ErrNotBound, s.logger)
		return
	}
	if err := s.engine.Bus().Publish(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, err, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, s.state(), s.logger)
}

// SubscribeEvents handles the GET /events request (SSE).
// The optional topics query parameter filters by comma separated topics.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(ParseTopics(r.URL.Query().Get("topics")))
	defer cancel()
	s.logger.Debug("SSE client connected", "remote", r.RemoteAddr)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "remote", r.RemoteAddr)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) state() StateResponse {
	mon := s.engine.Monitor()
	c := mon.Cursor()
	resp := StateResponse{
		SessionID: c.SessionID,
		Phase:     c.Phase,
		Current:   c.State,
		Initial:   c.Initial,
		Available: mon.Available(),
		Steps:     c.Steps,
	}
	if resp.Available == nil {
		resp.Available = []string{}
	}
	if dfa := mon.Automaton(); dfa != nil {
		resp.Accepting = dfa.IsAccepting(mon.Current())
	}
	return resp
}

type errorResponse struct {
	Error    string `json:"error"`
	Upstream int    `json:"upstreamStatus,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error, logger *slog.Logger) {
	resp := errorResponse{Error: err.Error()}
	if ce, ok := compiler.AsCompileError(err); ok {
		resp.Upstream = ce.StatusCode
	}
	writeJSON(w, status, resp, logger)
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
