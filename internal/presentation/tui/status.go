package tui

import (
	"fmt"

	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/muesli/termenv"
)

var statusSymbols = map[domain.Status]string{
	domain.StatusSatisfied:          "✔",
	domain.StatusTemporarySatisfied: "◐",
	domain.StatusTemporaryViolated:  "◑",
	domain.StatusViolated:           "✘",
}

// StatusString paints a status with its display color for the given profile.
func StatusString(p termenv.Profile, status domain.Status) termenv.Style {
	sym, ok := statusSymbols[status]
	if !ok {
		sym = "?"
	}
	s := p.String(fmt.Sprintf("%s %s", sym, status)).Foreground(p.Color(status.Color()))
	if status == domain.StatusViolated {
		s = s.Bold()
	}
	return s
}

// FormatStatusEvent renders one status event as a single terminal line.
func FormatStatusEvent(p termenv.Profile, e domain.StatusEvent) string {
	return fmt.Sprintf("%-28s %-16s %s  (after %s)",
		e.ConstraintFlowID,
		e.ConstraintType,
		StatusString(p, e.Status),
		e.ActivityID,
	)
}
