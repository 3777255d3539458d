package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
)

// DefaultSessionID keys the cursor of a monitor created without WithSessionID.
const DefaultSessionID = "default"

const maxHistory = 256

// Outcome classifies how an activity event was handled.
type Outcome string

const (
	OutcomeAdvanced Outcome = "advanced" // cursor moved, events emitted
	OutcomeIgnored  Outcome = "ignored"  // not an exit, or not available from the current state
	OutcomeRejected Outcome = "rejected" // available but no transition found
)

// Monitor tracks one simulation session against a bound automaton.
// Safe for concurrent use; sinks and hooks run outside the monitor lock.
type Monitor struct {
	bus       ports.EventBus
	sinks     []ports.Sink
	hooks     domain.MonitorHooks
	store     ports.CursorStore
	sessionID string
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	dfa         *automaton.ColoredDFA
	constraints []domain.ConstraintRecord
	current     automaton.State
	phase       domain.Phase
	steps       int
	history     []string
	subs        []string
	generation  uint64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithSink adds a destination for emitted events. Repeatable.
func WithSink(s ports.Sink) Option {
	return func(m *Monitor) {
		m.sinks = append(m.sinks, s)
	}
}

// WithHooks sets observability callbacks.
func WithHooks(h domain.MonitorHooks) Option {
	return func(m *Monitor) {
		m.hooks = h
	}
}

// WithStore persists the cursor after every change.
func WithStore(s ports.CursorStore) Option {
	return func(m *Monitor) {
		m.store = s
	}
}

// WithSessionID sets the key the cursor is stored under.
func WithSessionID(id string) Option {
	return func(m *Monitor) {
		m.sessionID = id
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates an unbound monitor. bus may be nil, in which case events are
// only delivered through the direct methods (HandleActivity, Start, ...).
func New(bus ports.EventBus, opts ...Option) *Monitor {
	m := &Monitor{
		bus:       bus,
		sessionID: DefaultSessionID,
		logger:    logging.NewNop(),
		now:       time.Now,
		phase:     domain.PhaseUnbound,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Bind installs a compiled automaton and the constraints it was compiled
// from. Any previous binding is released first, so at most one subscription
// set is live at any time. The cursor starts at the initial state.
//
// When the new subscriptions cannot be installed the previous binding is
// restored with its cursor, or the monitor drops to unbound if that fails too.
func (m *Monitor) Bind(ctx context.Context, dfa *automaton.ColoredDFA, constraints []domain.ConstraintRecord) error {
	if dfa == nil {
		return errors.New("cannot bind a nil automaton")
	}

	m.mu.Lock()
	prev := m.bindingLocked()
	m.unsubscribeLocked()
	m.installLocked(binding{
		dfa:         dfa,
		constraints: slices.Clone(constraints),
		current:     dfa.InitialState(),
		phase:       domain.PhaseBoundIdle,
	})
	err := m.subscribeLocked(m.generation)
	if err != nil {
		m.unsubscribeLocked()
		m.rollbackLocked(prev)
	}
	snap := m.cursorLocked()
	phase := m.phase
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("bind failed", "session", m.sessionID, "phase", phase, "error", err)
		return fmt.Errorf("failed to subscribe to host events: %w", err)
	}

	m.logger.Info("monitor bound",
		"session", m.sessionID,
		"initial", snap.Initial,
		"states", len(dfa.States()),
		"constraints", len(constraints),
	)
	if m.hooks.OnBind != nil {
		m.hooks.OnBind(ctx, snap.Initial, len(constraints))
	}
	m.persist(ctx, snap)
	return nil
}

// binding is the session state replaced by Bind.
type binding struct {
	dfa         *automaton.ColoredDFA
	constraints []domain.ConstraintRecord
	current     automaton.State
	phase       domain.Phase
	steps       int
	history     []string
}

func (m *Monitor) bindingLocked() binding {
	return binding{
		dfa:         m.dfa,
		constraints: m.constraints,
		current:     m.current,
		phase:       m.phase,
		steps:       m.steps,
		history:     m.history,
	}
}

// installLocked replaces the session state and starts a new generation.
func (m *Monitor) installLocked(b binding) {
	m.generation++
	m.dfa = b.dfa
	m.constraints = b.constraints
	m.current = b.current
	m.phase = b.phase
	m.steps = b.steps
	m.history = b.history
}

// rollbackLocked reinstalls prev under a fresh generation and subscribes
// again. A monitor that was unbound, or cannot resubscribe, ends unbound.
func (m *Monitor) rollbackLocked(prev binding) {
	if prev.dfa == nil {
		m.installLocked(binding{phase: domain.PhaseUnbound})
		return
	}
	m.installLocked(prev)
	if err := m.subscribeLocked(m.generation); err != nil {
		m.logger.Warn("failed to restore previous binding", "session", m.sessionID, "error", err)
		m.unsubscribeLocked()
		m.installLocked(binding{phase: domain.PhaseUnbound})
	}
}

// Unbind releases the automaton and every subscription.
func (m *Monitor) Unbind(ctx context.Context) {
	m.mu.Lock()
	m.unsubscribeLocked()
	m.installLocked(binding{phase: domain.PhaseUnbound})
	m.mu.Unlock()

	m.logger.Info("monitor unbound", "session", m.sessionID)
	if m.store != nil {
		if err := m.store.Delete(ctx, m.sessionID); err != nil {
			m.logger.Warn("failed to delete cursor", "session", m.sessionID, "error", err)
		}
	}
}

// HandleActivity processes one activity lifecycle event. Only exits are
// considered. Domain-level rejections are logged, never returned; the only
// error is domain.ErrNotBound.
func (m *Monitor) HandleActivity(ctx context.Context, ev domain.ActivityEvent) (Outcome, error) {
	return m.handleActivity(ctx, ev, 0)
}

// handleActivity drops deliveries from a stale subscription set when gen is non-zero.
func (m *Monitor) handleActivity(ctx context.Context, ev domain.ActivityEvent, gen uint64) (Outcome, error) {
	m.mu.Lock()
	if gen != 0 && gen != m.generation {
		m.mu.Unlock()
		return OutcomeIgnored, nil
	}
	if m.dfa == nil {
		m.mu.Unlock()
		m.logger.Debug("activity dropped: monitor unbound", "activity", ev.ElementID)
		return OutcomeIgnored, domain.ErrNotBound
	}
	if ev.Action != domain.ActionExit {
		m.mu.Unlock()
		return OutcomeIgnored, nil
	}

	prev := m.current
	if !m.dfa.IsAvailable(prev, ev.ElementID) {
		m.mu.Unlock()
		m.logger.Debug("activity not expected from current state",
			"activity", ev.ElementID,
			"state", prev.String(),
		)
		if m.hooks.OnIgnored != nil {
			m.hooks.OnIgnored(ctx, ev.ElementID, prev.String())
		}
		return OutcomeIgnored, nil
	}

	next, ok := m.dfa.NextState(prev, ev.ElementID)
	if !ok {
		available := m.dfa.AvailableSymbols(prev)
		m.mu.Unlock()
		m.logger.Warn("no transition for available activity",
			"activity", ev.ElementID,
			"state", prev.String(),
			"available", available,
		)
		if m.hooks.OnRejected != nil {
			m.hooks.OnRejected(ctx, ev.ElementID, prev.String())
		}
		return OutcomeRejected, nil
	}

	m.current = next
	m.steps++
	m.history = append(m.history, ev.ElementID)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	colors, _ := m.dfa.ColorOf(next)
	constraints := m.constraints
	snap := m.cursorLocked()
	m.mu.Unlock()

	m.logger.Debug("automaton advanced",
		"activity", ev.ElementID,
		"from", prev.String(),
		"to", next.String(),
		"statuses", len(colors),
	)

	out := buildFanout(ev, prev, next, colors, constraints, m.now())

	m.persist(ctx, snap)
	if m.hooks.OnStatus != nil {
		for i := range out.statuses {
			m.hooks.OnStatus(ctx, &out.statuses[i])
		}
	}
	if m.hooks.OnAdvance != nil {
		m.hooks.OnAdvance(ctx, &out.advance)
	}
	m.emit(ctx, out.events)
	return OutcomeAdvanced, nil
}

// Start resets the cursor and enters the running phase.
func (m *Monitor) Start(ctx context.Context) error {
	return m.reset(ctx, 0, "start", domain.PhaseBoundRunning)
}

// Reset moves the cursor back to the initial state. The phase is unchanged.
func (m *Monitor) Reset(ctx context.Context) error {
	return m.reset(ctx, 0, "reset", "")
}

// Toggle reacts to the host switching simulation mode. Turning it on resets
// the cursor and enters the running phase; turning it off returns to idle.
func (m *Monitor) Toggle(ctx context.Context, active bool) error {
	return m.toggle(ctx, 0, active)
}

// Pause is informational: the cursor and phase are kept.
func (m *Monitor) Pause(ctx context.Context) error {
	return m.pause(ctx, 0)
}

// errStaleGeneration marks a control delivered by a released subscription set.
var errStaleGeneration = errors.New("control from a released binding")

// checkLocked reports whether a control for gen may run. gen zero always may.
func (m *Monitor) checkLocked(gen uint64) error {
	if gen != 0 && gen != m.generation {
		return errStaleGeneration
	}
	if m.dfa == nil {
		return domain.ErrNotBound
	}
	return nil
}

func (m *Monitor) toggle(ctx context.Context, gen uint64, active bool) error {
	if active {
		return m.reset(ctx, gen, "toggle", domain.PhaseBoundRunning)
	}

	m.mu.Lock()
	if err := m.checkLocked(gen); err != nil {
		m.mu.Unlock()
		return err
	}
	m.phase = domain.PhaseBoundIdle
	snap := m.cursorLocked()
	m.mu.Unlock()

	m.logger.Info("simulation mode off", "session", m.sessionID)
	m.persist(ctx, snap)
	return nil
}

func (m *Monitor) pause(_ context.Context, gen uint64) error {
	m.mu.Lock()
	err := m.checkLocked(gen)
	state := m.current.String()
	m.mu.Unlock()

	if err != nil {
		return err
	}
	m.logger.Info("simulation paused", "session", m.sessionID, "state", state)
	return nil
}

func (m *Monitor) reset(ctx context.Context, gen uint64, reason string, phase domain.Phase) error {
	m.mu.Lock()
	if err := m.checkLocked(gen); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current = m.dfa.InitialState()
	m.steps = 0
	m.history = nil
	if phase != "" {
		m.phase = phase
	}
	snap := m.cursorLocked()
	m.mu.Unlock()

	m.logger.Info("cursor reset", "session", m.sessionID, "reason", reason, "state", snap.State, "phase", snap.Phase)
	if m.hooks.OnReset != nil {
		m.hooks.OnReset(ctx, reason)
	}
	m.persist(ctx, snap)
	return nil
}

// Resume restores a persisted cursor for the bound automaton. Cursors whose
// state is unknown to the automaton are rejected.
func (m *Monitor) Resume(ctx context.Context) error {
	if m.store == nil {
		return errors.New("no cursor store configured")
	}
	c, err := m.store.Load(ctx, m.sessionID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dfa == nil {
		return domain.ErrNotBound
	}
	state := automaton.NewState(c.State)
	if !slices.Contains(m.dfa.States(), state) {
		return fmt.Errorf("cursor state %q is not part of the bound automaton", c.State)
	}
	m.current = state
	m.steps = c.Steps
	m.history = slices.Clone(c.History)
	if c.Phase == domain.PhaseBoundRunning || c.Phase == domain.PhaseBoundIdle {
		m.phase = c.Phase
	}
	m.logger.Info("cursor resumed", "session", m.sessionID, "state", c.State, "steps", c.Steps)
	return nil
}

// Cursor returns a snapshot of the session.
func (m *Monitor) Cursor() domain.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursorLocked()
}

// Phase returns the lifecycle phase.
func (m *Monitor) Phase() domain.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Current returns the cursor. It is the zero State when unbound.
func (m *Monitor) Current() automaton.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Available returns the activities that can advance the cursor.
func (m *Monitor) Available() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dfa == nil {
		return nil
	}
	return m.dfa.AvailableSymbols(m.current)
}

// Constraints returns a copy of the bound constraint records.
func (m *Monitor) Constraints() []domain.ConstraintRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.constraints)
}

// Automaton returns the bound automaton, or nil.
func (m *Monitor) Automaton() *automaton.ColoredDFA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dfa
}

// SessionID returns the key the cursor is persisted under.
func (m *Monitor) SessionID() string {
	return m.sessionID
}

func (m *Monitor) cursorLocked() domain.Cursor {
	c := domain.Cursor{
		SessionID: m.sessionID,
		State:     m.current.String(),
		Phase:     m.phase,
		Steps:     m.steps,
		History:   slices.Clone(m.history),
		UpdatedAt: m.now(),
	}
	if m.dfa != nil {
		c.Initial = m.dfa.InitialState().String()
	}
	return c
}

func (m *Monitor) persist(ctx context.Context, c domain.Cursor) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, &c); err != nil {
		m.logger.Warn("failed to persist cursor", "session", c.SessionID, "error", err)
	}
}

func (m *Monitor) emit(ctx context.Context, events []domain.Event) {
	for _, e := range events {
		for _, s := range m.sinks {
			if err := s.Emit(ctx, e); err != nil {
				m.logger.Warn("sink failed", "topic", e.Topic, "error", err)
			}
		}
	}
}

// fanout is everything one advancing activity emits.
type fanout struct {
	events   []domain.Event
	statuses []domain.StatusEvent
	advance  domain.AdvanceEvent
}

// buildFanout produces three events per status entry, the advance event,
// then the pattern events.
func buildFanout(ev domain.ActivityEvent, prev, next automaton.State, colors automaton.ColorVector, constraints []domain.ConstraintRecord, now time.Time) fanout {
	out := fanout{
		statuses: make([]domain.StatusEvent, 0, len(colors)),
		events:   make([]domain.Event, 0, len(colors)*3+3),
	}

	for _, c := range colors {
		se := domain.StatusEvent{
			ConstraintFlowID: c.ConstraintFlowID,
			ConstraintType:   domain.LookupConstraintType(constraints, c.ConstraintFlowID),
			Status:           c.Status,
			ActivityID:       ev.ElementID,
			CurrentState:     next.String(),
			Timestamp:        now,
			Color:            c.Status.Color(),
		}
		out.statuses = append(out.statuses, se)

		detected := domain.TopicSatisfactionDetected
		if c.Status.IsViolation() {
			detected = domain.TopicViolationDetected
		}
		out.events = append(out.events,
			domain.Event{Topic: domain.TopicStatusChanged, Timestamp: now, Payload: se},
			domain.Event{Topic: c.Status.Topic(), Timestamp: now, Payload: se},
			domain.Event{Topic: detected, Timestamp: now, Payload: se},
		)
	}

	out.advance = domain.AdvanceEvent{
		ActivityID:    ev.ElementID,
		ActivityName:  ev.DisplayName(),
		PreviousState: prev.String(),
		CurrentState:  next.String(),
		Colors:        slices.Clone([]domain.ColorEntry(colors)),
		Timestamp:     now,
	}
	out.events = append(out.events, domain.Event{Topic: domain.TopicActivityFired, Timestamp: now, Payload: out.advance})

	name := strings.ToLower(ev.DisplayName())
	pattern := domain.PatternEvent{ActivityID: ev.ElementID, ActivityName: ev.DisplayName(), CurrentState: next.String()}
	if strings.Contains(name, "approve") {
		out.events = append(out.events, domain.Event{Topic: domain.TopicApprovalActivity, Timestamp: now, Payload: pattern})
	}
	if strings.Contains(name, "reject") {
		out.events = append(out.events, domain.Event{Topic: domain.TopicRejectionActivity, Timestamp: now, Payload: pattern})
	}
	return out
}
