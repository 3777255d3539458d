// Package compiler talks to the external automaton compiler service.
//
// The service receives one serialized process per pool plus the constraint
// records and answers with a colored DFA:
//
//	POST {backendURL}/generateDfa
//	{"models": [{"id": "...", "xml": "..."}], "constrains": [...]}
//
//	200 {"message": "...", "colored_dfa": {...}}
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/aretw0/constraintflow/pkg/domain"
)

// DefaultBackendURL is used when no backend is configured.
const DefaultBackendURL = "http://localhost:8000"

const (
	generatePath   = "/generateDfa"
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// Compiler turns pool sub-models and constraints into a colored DFA.
type Compiler interface {
	Compile(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error)
}

// Func adapts a function to the Compiler interface.
type Func func(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error)

// Compile calls f.
func (f Func) Compile(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
	return f(ctx, models, constraints)
}

// Request is the JSON body sent to the compiler service.
// The "constrains" spelling is part of the service contract.
type Request struct {
	Models      []bpmn.SubModel           `json:"models"`
	Constraints []domain.ConstraintRecord `json:"constrains"`
}

// Response is the JSON body returned by the compiler service.
type Response struct {
	Message    string          `json:"message,omitempty"`
	ColoredDFA json.RawMessage `json:"colored_dfa,omitempty"`
}

// CompileError describes a failed round-trip. It matches domain.ErrCompileFailed.
type CompileError struct {
	StatusCode int    // 0 when no response was received
	Message    string // service message or truncated body
	Err        error  // underlying cause, if any
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString(domain.ErrCompileFailed.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *CompileError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrCompileFailed}
	}
	return []error{domain.ErrCompileFailed, e.Err}
}

// Observer is notified after every compile attempt.
type Observer func(ctx context.Context, elapsed time.Duration, err error)

// Client is the HTTP implementation of Compiler. It performs a single
// attempt per call and never retries.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// WithObserver registers a callback run after every attempt (metrics).
func WithObserver(o Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

// New creates a client for the service at baseURL.
// An empty baseURL selects DefaultBackendURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBackendURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Compile posts the request and decodes the returned automaton.
func (c *Client) Compile(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
	start := time.Now()
	dfa, err := c.compile(ctx, models, constraints)
	elapsed := time.Since(start)

	if c.observer != nil {
		c.observer(ctx, elapsed, err)
	}
	if err != nil {
		c.logger.Error("compile failed", "url", c.baseURL+generatePath, "duration", elapsed, "error", err)
		return nil, err
	}
	c.logger.Info("automaton compiled",
		"models", len(models),
		"constraints", len(constraints),
		"states", len(dfa.States()),
		"initial", dfa.InitialState().String(),
		"duration", elapsed,
	)
	return dfa, nil
}

func (c *Client) compile(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
	body, err := json.Marshal(NewRequest(models, constraints))
	if err != nil {
		return nil, &CompileError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, &CompileError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &CompileError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CompileError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var out Response
	decodeErr := json.Unmarshal(data, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := out.Message
		if decodeErr != nil || msg == "" {
			msg = truncate(strings.TrimSpace(string(data)), maxErrorBody)
		}
		return nil, &CompileError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &CompileError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", decodeErr)}
	}
	if len(out.ColoredDFA) == 0 || string(out.ColoredDFA) == "null" {
		return nil, &CompileError{StatusCode: resp.StatusCode, Message: "response has no colored_dfa"}
	}

	dfa, err := automaton.Decode(out.ColoredDFA)
	if err != nil {
		return nil, &CompileError{StatusCode: resp.StatusCode, Err: err}
	}
	return dfa, nil
}

// NewRequest builds the request body. Nil slices are sent as empty arrays.
func NewRequest(models []bpmn.SubModel, constraints []domain.ConstraintRecord) Request {
	if models == nil {
		models = []bpmn.SubModel{}
	}
	if constraints == nil {
		constraints = []domain.ConstraintRecord{}
	}
	return Request{Models: models, Constraints: constraints}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// AsCompileError extracts the *CompileError from err, if any.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
