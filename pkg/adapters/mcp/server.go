// Package mcp exposes a monitor engine as a Model Context Protocol server, so
// an agent can load a model, drive the simulation and read the cursor.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/monitor"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Resource URIs.
const (
	URIState       = "cflow://state"
	URIConstraints = "cflow://constraints"
	URIAutomaton   = "cflow://automaton"
)

// Engine is the part of constraintflow.Engine the server drives.
type Engine interface {
	Load(ctx context.Context, xml []byte) error
	Monitor() *monitor.Monitor
}

// StateView is the result of every tool that changes or reads the cursor.
type StateView struct {
	SessionID string       `json:"sessionId" jsonschema_description:"Key the cursor is persisted under"`
	Phase     domain.Phase `json:"phase" jsonschema_description:"unbound, bound_idle or bound_running"`
	Current   string       `json:"current,omitempty" jsonschema_description:"Current automaton state"`
	Initial   string       `json:"initial,omitempty" jsonschema_description:"Initial automaton state"`
	Available []string     `json:"available" jsonschema_description:"Activities that can advance the cursor"`
	Accepting bool         `json:"accepting" jsonschema_description:"Whether the current state is accepting"`
	Steps     int          `json:"steps" jsonschema_description:"Transitions taken since the last reset"`
}

// FireResult is the result of fire_activity.
type FireResult struct {
	Outcome monitor.Outcome `json:"outcome" jsonschema_description:"advanced, ignored or rejected"`
	State   StateView       `json:"state"`
}

// ConstraintView is a bound constraint with its status in the current state.
type ConstraintView struct {
	domain.ConstraintRecord
	Status domain.Status `json:"status,omitempty"`
	Color  string        `json:"color,omitempty"`
}

// Server wraps an engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mcpServer = server.NewMCPServer("cflow-mcp", strings.TrimSpace(constraintflow.Version),
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the protocol server, for transports other than stdio.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio speaks JSON-RPC over in and out until ctx is done or in is
// exhausted. Logs never go to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening", "transport", "stdio")
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type loadArgs struct {
	XML string `json:"xml"`
}

type fireArgs struct {
	ElementID string `json:"element_id"`
	Action    string `json:"action"`
}

type toggleArgs struct {
	Active bool `json:"active"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("load_model",
		mcp.WithDescription("Compile a BPMN model with constraint flows and bind it to the monitor. The cursor starts at the initial state."),
		mcp.WithString("xml", mcp.Required(), mcp.Description("BPMN 2.0 XML document")),
		mcp.WithOutputSchema[StateView](),
	), mcp.NewStructuredToolHandler(s.handleLoad))

	s.mcpServer.AddTool(mcp.NewTool("fire_activity",
		mcp.WithDescription("Report an activity lifecycle event. Only exits advance the cursor."),
		mcp.WithString("element_id", mcp.Required(), mcp.Description("Id of the BPMN activity")),
		mcp.WithString("action", mcp.Description("exit (default) or enter"), mcp.Enum(string(domain.ActionExit), string(domain.ActionEnter))),
		mcp.WithOutputSchema[FireResult](),
	), mcp.NewStructuredToolHandler(s.handleFire))

	s.mcpServer.AddTool(mcp.NewTool("start",
		mcp.WithDescription("Reset the cursor and enter the running phase."),
		mcp.WithOutputSchema[StateView](),
	), mcp.NewStructuredToolHandler(s.control(func(ctx context.Context, m *monitor.Monitor, _ map[string]any) error {
		return m.Start(ctx)
	})))

	s.mcpServer.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Move the cursor back to the initial state. The phase is kept."),
		mcp.WithOutputSchema[StateView](),
	), mcp.NewStructuredToolHandler(s.control(func(ctx context.Context, m *monitor.Monitor, _ map[string]any) error {
		return m.Reset(ctx)
	})))

	s.mcpServer.AddTool(mcp.NewTool("pause",
		mcp.WithDescription("Pause the simulation. The cursor and phase are kept."),
		mcp.WithOutputSchema[StateView](),
	), mcp.NewStructuredToolHandler(s.control(func(ctx context.Context, m *monitor.Monitor, _ map[string]any) error {
		return m.Pause(ctx)
	})))

	s.mcpServer.AddTool(mcp.NewTool("toggle",
		mcp.WithDescription("Switch simulation mode. On resets and runs; off returns to idle."),
		mcp.WithBoolean("active", mcp.Required(), mcp.Description("New simulation mode")),
		mcp.WithOutputSchema[StateView](),
	), mcp.NewStructuredToolHandler(s.handleToggle))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Read the cursor of the monitored session."),
		mcp.WithOutputSchema[StateView](),
	), mcp.NewStructuredToolHandler(func(context.Context, mcp.CallToolRequest, map[string]any) (StateView, error) {
		return s.state(), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("get_constraints",
		mcp.WithDescription("List the bound constraints with their status in the current state."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.constraints())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("get_automaton",
		mcp.WithDescription("Get the bound colored automaton in the compiler wire format."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := s.automaton()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleLoad(ctx context.Context, _ mcp.CallToolRequest, args loadArgs) (StateView, error) {
	if strings.TrimSpace(args.XML) == "" {
		return StateView{}, errors.New("xml is required")
	}
	if err := s.engine.Load(ctx, []byte(args.XML)); err != nil {
		s.logger.Warn("load_model failed", "error", err)
		return StateView{}, fmt.Errorf("load failed: %w", err)
	}
	return s.state(), nil
}

func (s *Server) handleFire(ctx context.Context, _ mcp.CallToolRequest, args fireArgs) (FireResult, error) {
	if args.ElementID == "" {
		return FireResult{}, errors.New("element_id is required")
	}
	ev := domain.ActivityEvent{ElementID: args.ElementID, Action: domain.ActionExit}
	switch domain.ActivityAction(args.Action) {
	case "", domain.ActionExit:
	case domain.ActionEnter:
		ev.Action = domain.ActionEnter
	default:
		return FireResult{}, fmt.Errorf("unknown action %q", args.Action)
	}

	outcome, err := s.engine.Monitor().HandleActivity(ctx, ev)
	if err != nil {
		return FireResult{}, err
	}
	return FireResult{Outcome: outcome, State: s.state()}, nil
}

func (s *Server) handleToggle(ctx context.Context, _ mcp.CallToolRequest, args toggleArgs) (StateView, error) {
	if err := s.engine.Monitor().Toggle(ctx, args.Active); err != nil {
		return StateView{}, err
	}
	return s.state(), nil
}

// control adapts a monitor call into a tool handler returning the new state.
func (s *Server) control(fn func(context.Context, *monitor.Monitor, map[string]any) error) mcp.StructuredToolHandlerFunc[map[string]any, StateView] {
	return func(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (StateView, error) {
		if err := fn(ctx, s.engine.Monitor(), args); err != nil {
			return StateView{}, err
		}
		return s.state(), nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(URIState, "Monitor cursor",
		mcp.WithResourceDescription("Phase, current state and available activities"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(URIState, s.state())
	})

	s.mcpServer.AddResource(mcp.NewResource(URIConstraints, "Bound constraints",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(URIConstraints, s.constraints())
	})

	s.mcpServer.AddResource(mcp.NewResource(URIAutomaton, "Bound colored automaton",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.automaton()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: URIAutomaton, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}

func (s *Server) state() StateView {
	mon := s.engine.Monitor()
	c := mon.Cursor()
	v := StateView{
		SessionID: c.SessionID,
		Phase:     c.Phase,
		Current:   c.State,
		Initial:   c.Initial,
		Available: mon.Available(),
		Steps:     c.Steps,
	}
	if v.Available == nil {
		v.Available = []string{}
	}
	if dfa := mon.Automaton(); dfa != nil {
		v.Accepting = dfa.IsAccepting(mon.Current())
	}
	return v
}

func (s *Server) constraints() []ConstraintView {
	mon := s.engine.Monitor()
	statuses := map[string]domain.Status{}
	if dfa := mon.Automaton(); dfa != nil {
		colors, _ := dfa.ColorOf(mon.Current())
		for _, c := range colors {
			statuses[c.ConstraintFlowID] = c.Status
		}
	}

	records := mon.Constraints()
	out := make([]ConstraintView, 0, len(records))
	for _, rec := range records {
		v := ConstraintView{ConstraintRecord: rec}
		if st, ok := statuses[rec.ID]; ok {
			v.Status = st
			v.Color = st.Color()
		}
		out = append(out, v)
	}
	return out
}

func (s *Server) automaton() ([]byte, error) {
	dfa := s.engine.Monitor().Automaton()
	if dfa == nil {
		return nil, domain.ErrNotBound
	}
	return json.Marshal(dfa)
}
