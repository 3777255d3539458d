package constraintflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/aretw0/constraintflow/pkg/compiler"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/eventbus"
	"github.com/aretw0/constraintflow/pkg/monitor"
	"github.com/aretw0/constraintflow/pkg/ports"
)

// Engine is the high-level entry point of the library.
// It owns the host event bus, the compiler pipeline and one monitor.
type Engine struct {
	logger     *slog.Logger
	compiler   compiler.Compiler
	backendURL string
	timeout    time.Duration
	observer   compiler.Observer
	bus        ports.EventBus
	sinks      []ports.Sink
	store      ports.CursorStore
	cache      ports.AutomatonCache
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	hooks      domain.MonitorHooks
	sessionID  string
	republish  bool

	loadMu  sync.Mutex
	monitor *monitor.Monitor
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine and every component it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCompiler replaces the HTTP compiler client.
// The single-flight and cache decorators still wrap it.
func WithCompiler(c compiler.Compiler) Option {
	return func(e *Engine) {
		e.compiler = c
	}
}

// WithBackendURL sets the compiler service base URL (default: compiler.DefaultBackendURL).
func WithBackendURL(url string) Option {
	return func(e *Engine) {
		e.backendURL = url
	}
}

// WithCompileTimeout bounds each compiler round-trip.
func WithCompileTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithCompileObserver receives the outcome of every compiler round-trip.
func WithCompileObserver(o compiler.Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithSink adds a destination for the events the monitor emits.
func WithSink(s ports.Sink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, s)
	}
}

// WithStore persists the monitor cursor.
func WithStore(s ports.CursorStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithAutomatonCache serves repeated compiles from c.
func WithAutomatonCache(c ports.AutomatonCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithLocker serializes identical compiles across processes.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = l
		e.lockTTL = ttl
	}
}

// WithHooks registers monitor observability hooks.
func WithHooks(h domain.MonitorHooks) Option {
	return func(e *Engine) {
		e.hooks = h
	}
}

// WithEventBus attaches the engine to an existing host bus.
func WithEventBus(b ports.EventBus) Option {
	return func(e *Engine) {
		e.bus = b
	}
}

// WithSessionID sets the key the cursor is persisted under.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithRepublish controls whether emitted events are also published back on
// the host bus (default: true).
func WithRepublish(enabled bool) Option {
	return func(e *Engine) {
		e.republish = enabled
	}
}

// New initializes an unbound Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		backendURL: compiler.DefaultBackendURL,
		sessionID:  monitor.DefaultSessionID,
		republish:  true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.bus == nil {
		e.bus = eventbus.New(eventbus.WithLogger(e.logger))
	}

	if e.compiler == nil {
		clientOpts := []compiler.Option{compiler.WithLogger(e.logger)}
		if e.timeout > 0 {
			clientOpts = append(clientOpts, compiler.WithTimeout(e.timeout))
		}
		if e.observer != nil {
			clientOpts = append(clientOpts, compiler.WithObserver(e.observer))
		}
		e.compiler = compiler.New(e.backendURL, clientOpts...)
	}
	if e.cache != nil {
		e.compiler = compiler.NewCached(e.compiler, e.cache, e.logger)
	}
	flightOpts := []compiler.SingleFlightOption{compiler.WithFlightLogger(e.logger)}
	if e.locker != nil {
		flightOpts = append(flightOpts, compiler.WithLocker(e.locker, e.lockTTL))
	}
	e.compiler = compiler.NewSingleFlight(e.compiler, flightOpts...)

	monOpts := []monitor.Option{
		monitor.WithLogger(e.logger),
		monitor.WithHooks(e.hooks),
		monitor.WithSessionID(e.sessionID),
	}
	if e.store != nil {
		monOpts = append(monOpts, monitor.WithStore(e.store))
	}
	if e.republish {
		monOpts = append(monOpts, monitor.WithSink(eventbus.NewSink(e.bus)))
	}
	for _, s := range e.sinks {
		monOpts = append(monOpts, monitor.WithSink(s))
	}
	e.monitor = monitor.New(e.bus, monOpts...)
	return e
}

// Prepared is a model ready to be sent to the compiler.
type Prepared struct {
	Model       *bpmn.Model
	Constraints []domain.ConstraintRecord
	SubModels   []bpmn.SubModel
}

// Prepare parses xml, normalizes it, extracts its constraints and splits it by pool.
func (e *Engine) Prepare(xml []byte) (*Prepared, error) {
	m, err := bpmn.ParseBytes(xml)
	if err != nil {
		return nil, err
	}
	bpmn.Normalize(m)
	constraints := bpmn.ExtractConstraints(m)
	for _, c := range constraints {
		if err := c.Validate(); err != nil {
			e.logger.Debug("constraint forwarded as declared", "id", c.ID, "type", c.Type, "error", err)
		}
	}
	subs, err := bpmn.SplitByPool(m)
	if err != nil {
		return nil, fmt.Errorf("failed to split model: %w", err)
	}
	e.logger.Debug("model prepared",
		"processes", len(m.Processes),
		"pools", len(subs),
		"constraints", len(constraints),
	)
	return &Prepared{Model: m, Constraints: constraints, SubModels: subs}, nil
}

// Compile prepares xml and compiles it into a colored automaton.
func (e *Engine) Compile(ctx context.Context, xml []byte) (*automaton.ColoredDFA, []domain.ConstraintRecord, error) {
	p, err := e.Prepare(xml)
	if err != nil {
		return nil, nil, err
	}
	dfa, err := e.compiler.Compile(ctx, p.SubModels, p.Constraints)
	if err != nil {
		return nil, nil, err
	}
	return dfa, p.Constraints, nil
}

// Load compiles xml and binds the result to the monitor.
// On failure the previous binding stays in place.
func (e *Engine) Load(ctx context.Context, xml []byte) error {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	dfa, constraints, err := e.Compile(ctx, xml)
	if err != nil {
		e.logger.Error("model load failed", "error", err)
		return err
	}
	if err := e.monitor.Bind(ctx, dfa, constraints); err != nil {
		return fmt.Errorf("failed to bind automaton: %w", err)
	}
	return nil
}

// Resume restores the persisted cursor of a session whose model is already loaded.
func (e *Engine) Resume(ctx context.Context) error {
	if e.store == nil {
		return errors.New("resume requires a cursor store")
	}
	return e.monitor.Resume(ctx)
}

// Monitor returns the engine's monitor.
func (e *Engine) Monitor() *monitor.Monitor {
	return e.monitor
}

// Bus returns the host event bus.
func (e *Engine) Bus() ports.EventBus {
	return e.bus
}

