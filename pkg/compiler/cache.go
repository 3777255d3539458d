package compiler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
)

// Cached serves repeated payloads from a ports.AutomatonCache. Cache
// failures degrade to a regular compile.
type Cached struct {
	next   Compiler
	cache  ports.AutomatonCache
	logger *slog.Logger
}

// NewCached wraps next with cache.
func NewCached(next Compiler, cache ports.AutomatonCache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

// Compile implements Compiler.
func (c *Cached) Compile(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
	key, err := Fingerprint(models, constraints)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	data, ok, err := c.cache.GetAutomaton(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("automaton cache read failed", "key", key, "error", err)
	case ok:
		dfa, err := automaton.Decode(data)
		if err == nil {
			c.logger.Debug("automaton cache hit", "key", key)
			return dfa, nil
		}
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
	}

	dfa, err := c.next.Compile(ctx, models, constraints)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(dfa); err != nil {
		c.logger.Warn("failed to encode automaton for cache", "error", err)
	} else if err := c.cache.PutAutomaton(ctx, key, data); err != nil {
		c.logger.Warn("automaton cache write failed", "key", key, "error", err)
	}
	return dfa, nil
}
