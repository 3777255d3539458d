package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/constraintflow/pkg/domain"
)

// LogHooks returns hooks writing one structured record per lifecycle event.
// Violations are logged at Warn.
func LogHooks(logger *slog.Logger) domain.MonitorHooks {
	return domain.MonitorHooks{
		OnBind: func(ctx context.Context, initial string, constraints int) {
			logger.InfoContext(ctx, "monitor_bind", "initial", initial, "constraints", constraints)
		},
		OnAdvance: func(ctx context.Context, e *domain.AdvanceEvent) {
			logger.InfoContext(ctx, "dfa_advance",
				"activity_id", e.ActivityID,
				"from", e.PreviousState,
				"to", e.CurrentState,
			)
		},
		OnStatus: func(ctx context.Context, e *domain.StatusEvent) {
			level := slog.LevelInfo
			if e.Status.IsViolation() {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "constraint_status",
				"constraint_flow_id", e.ConstraintFlowID,
				"constraint_type", e.ConstraintType,
				"status", e.Status,
				"activity_id", e.ActivityID,
			)
		},
		OnIgnored: func(ctx context.Context, activityID, state string) {
			logger.DebugContext(ctx, "activity_ignored", "activity_id", activityID, "state", state)
		},
		OnRejected: func(ctx context.Context, activityID, state string) {
			logger.WarnContext(ctx, "activity_rejected", "activity_id", activityID, "state", state)
		},
		OnReset: func(ctx context.Context, reason string) {
			logger.InfoContext(ctx, "cursor_reset", "reason", reason)
		},
	}
}

// Combine fans each hook out to every non-nil callback of hs, in order.
func Combine(hs ...domain.MonitorHooks) domain.MonitorHooks {
	var out domain.MonitorHooks
	for _, h := range hs {
		out.OnBind = chain3(out.OnBind, h.OnBind)
		out.OnAdvance = chain2(out.OnAdvance, h.OnAdvance)
		out.OnStatus = chain2(out.OnStatus, h.OnStatus)
		out.OnIgnored = chain3(out.OnIgnored, h.OnIgnored)
		out.OnRejected = chain3(out.OnRejected, h.OnRejected)
		out.OnReset = chain2(out.OnReset, h.OnReset)
	}
	return out
}

func chain2[A any](a, b func(context.Context, A)) func(context.Context, A) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, x A) {
		a(ctx, x)
		b(ctx, x)
	}
}

func chain3[A, B any](a, b func(context.Context, A, B)) func(context.Context, A, B) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, x A, y B) {
		a(ctx, x, y)
		b(ctx, x, y)
	}
}
