package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/automaton"
	"github.com/aretw0/constraintflow/pkg/bpmn"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/ports"
	"golang.org/x/sync/singleflight"
)

const defaultLockTTL = time.Minute

// SingleFlight collapses concurrent compiles of an identical payload into a
// single call to the wrapped Compiler. With a locker, the collapse extends
// across replicas sharing the lock backend.
type SingleFlight struct {
	next    Compiler
	group   singleflight.Group
	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// SingleFlightOption configures a SingleFlight.
type SingleFlightOption func(*SingleFlight)

// WithLocker guards each compile with a distributed lock keyed by payload.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) SingleFlightOption {
	return func(s *SingleFlight) {
		s.locker = l
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithFlightLogger sets the logger.
func WithFlightLogger(logger *slog.Logger) SingleFlightOption {
	return func(s *SingleFlight) {
		s.logger = logger
	}
}

// NewSingleFlight wraps next.
func NewSingleFlight(next Compiler, opts ...SingleFlightOption) *SingleFlight {
	s := &SingleFlight{
		next:    next,
		lockTTL: defaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile implements Compiler.
func (s *SingleFlight) Compile(ctx context.Context, models []bpmn.SubModel, constraints []domain.ConstraintRecord) (*automaton.ColoredDFA, error) {
	key, err := Fingerprint(models, constraints)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	// The shared call outlives any single caller; each caller only stops
	// waiting when its own context ends.
	flight := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		if s.locker != nil {
			unlock, err := s.locker.Lock(flight, "compile:"+key, s.lockTTL)
			if err != nil {
				return nil, &CompileError{Err: fmt.Errorf("failed to acquire compile lock: %w", err)}
			}
			defer func() {
				if err := unlock(flight); err != nil {
					s.logger.Warn("failed to release compile lock", "key", key, "error", err)
				}
			}()
		}
		return s.next.Compile(flight, models, constraints)
	})

	select {
	case <-ctx.Done():
		return nil, &CompileError{Err: ctx.Err()}
	case res := <-ch:
		if res.Shared {
			s.logger.Debug("compile shared with in-flight request", "key", key)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*automaton.ColoredDFA), nil
	}
}

// Fingerprint is the stable hash of a compile payload.
func Fingerprint(models []bpmn.SubModel, constraints []domain.ConstraintRecord) (string, error) {
	data, err := json.Marshal(NewRequest(models, constraints))
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
