package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/presentation/tui"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/muesli/termenv"
)

// ReplaySummary describes a finished replay.
type ReplaySummary struct {
	Activities int
	Advanced   int
	Violations int
	Final      string
	Accepting  bool
}

// ParseTraceLine turns one trace line into a host event. Accepted forms:
//
//	Activity_A                                  exit of Activity_A
//	{"elementId": "Activity_A", "action": "enter"}
//	{"topic": "tokenSimulation.playSimulation"}
//
// Blank lines and lines starting with '#' yield ok == false.
func ParseTraceLine(line string) (e domain.Event, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return e, false, nil
	}
	if !strings.HasPrefix(line, "{") {
		return domain.Event{
			Topic:   domain.TopicTrace,
			Payload: domain.ActivityEvent{ElementID: line, Action: domain.ActionExit},
		}, true, nil
	}

	var raw struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
		domain.ActivityEvent
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return e, false, fmt.Errorf("invalid trace line: %w", err)
	}
	switch {
	case raw.Topic != "":
		e.Topic = raw.Topic
		if len(raw.Payload) > 0 {
			e.Payload = raw.Payload
		}
	case raw.ElementID != "":
		if raw.Action == "" {
			raw.Action = domain.ActionExit
		}
		e.Topic = domain.TopicTrace
		e.Payload = raw.ActivityEvent
	default:
		return e, false, fmt.Errorf("trace line has neither topic nor elementId: %s", line)
	}
	return e, true, nil
}

// Replay publishes every event of trace on the engine bus and prints the
// resulting status changes to out.
func Replay(ctx context.Context, eng *constraintflow.Engine, trace io.Reader, out io.Writer, profile termenv.Profile) (*ReplaySummary, error) {
	mon := eng.Monitor()
	if mon.Phase() == domain.PhaseUnbound {
		return nil, domain.ErrNotBound
	}

	sum := &ReplaySummary{}
	subID, err := eng.Bus().Subscribe(domain.TopicStatusChanged, func(_ context.Context, e domain.Event) {
		se, ok := e.Payload.(domain.StatusEvent)
		if !ok {
			return
		}
		if se.Status.IsViolation() {
			sum.Violations++
		}
		fmt.Fprintln(out, "  "+tui.FormatStatusEvent(profile, se))
	})
	if err != nil {
		return nil, err
	}
	defer eng.Bus().Unsubscribe(subID)

	scanner := bufio.NewScanner(trace)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		e, ok, err := ParseTraceLine(scanner.Text())
		if err != nil {
			return sum, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !ok {
			continue
		}

		before := mon.Cursor().Steps
		if err := eng.Bus().Publish(ctx, e); err != nil {
			return sum, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if e.Topic != domain.TopicTrace {
			fmt.Fprintf(out, "· %s\n", e.Topic)
			continue
		}

		sum.Activities++
		ev, _ := e.Payload.(domain.ActivityEvent)
		if mon.Cursor().Steps > before {
			sum.Advanced++
			fmt.Fprintf(out, "→ %s  [%s]\n", ev.ElementID, mon.Current())
		} else if ev.Action == domain.ActionExit {
			fmt.Fprintf(out, "✗ %s  not available from [%s]\n", ev.ElementID, mon.Current())
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("failed to read trace: %w", err)
	}

	sum.Final = mon.Current().String()
	if dfa := mon.Automaton(); dfa != nil {
		sum.Accepting = dfa.IsAccepting(mon.Current())
	}
	return sum, nil
}
