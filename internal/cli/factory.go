// Package cli wires configuration into a running engine for the cflow command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/constraintflow"
	"github.com/aretw0/constraintflow/internal/config"
	"github.com/aretw0/constraintflow/internal/logging"
	"github.com/aretw0/constraintflow/pkg/adapters/bolt"
	"github.com/aretw0/constraintflow/pkg/adapters/file"
	"github.com/aretw0/constraintflow/pkg/adapters/memory"
	"github.com/aretw0/constraintflow/pkg/adapters/mqtt"
	cflowredis "github.com/aretw0/constraintflow/pkg/adapters/redis"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/aretw0/constraintflow/pkg/observability"
	"github.com/aretw0/constraintflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// Stack is an engine together with the adapters it was built from.
type Stack struct {
	Engine   *constraintflow.Engine
	Journal  *memory.Journal
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Redis    *goredis.Client

	closers []func() error
}

// StackOption adds engine options or sinks that the configuration does not cover.
type StackOption func(*stackBuild)

type stackBuild struct {
	opts []constraintflow.Option
}

// WithEngineOption appends a raw engine option.
func WithEngineOption(opt constraintflow.Option) StackOption {
	return func(b *stackBuild) {
		b.opts = append(b.opts, opt)
	}
}

// NewLogger returns the CLI logger: debug wins over the configured level.
func NewLogger(cfg *config.Config, debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(logging.ParseLevel(cfg.LogLevel))
}

// BuildStack creates the engine described by cfg.
func BuildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...StackOption) (*Stack, error) {
	s := &Stack{Journal: memory.NewJournal(memory.DefaultJournalSize)}
	b := &stackBuild{}
	for _, opt := range extra {
		opt(b)
	}

	hooks := []domain.MonitorHooks{observability.LogHooks(logger)}
	opts := []constraintflow.Option{
		constraintflow.WithLogger(logger),
		constraintflow.WithBackendURL(cfg.Backend.URL),
		constraintflow.WithCompileTimeout(cfg.Backend.Timeout),
		constraintflow.WithSessionID(cfg.SessionID),
		constraintflow.WithSink(s.Journal),
	}

	if cfg.Metrics {
		s.Registry = prometheus.NewRegistry()
		s.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.Metrics = observability.NewMetrics(s.Registry)
		hooks = append(hooks, s.Metrics.Hooks())
		opts = append(opts, constraintflow.WithCompileObserver(s.Metrics.CompileObserver()))
	}
	opts = append(opts, constraintflow.WithHooks(observability.Combine(hooks...)))

	if cfg.Redis.Addr != "" {
		s.Redis = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, s.Redis.Close)
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, constraintflow.WithLocker(cflowredis.NewLocker(s.Redis, "cflow:lock:"), cfg.Redis.LockTTL))
		if cfg.Redis.Publish {
			opts = append(opts, constraintflow.WithSink(cflowredis.NewPublisher(s.Redis, "")))
		}
	}

	store, err := s.openStore(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	opts = append(opts, constraintflow.WithStore(store))
	if cache, ok := store.(ports.AutomatonCache); ok {
		opts = append(opts, constraintflow.WithAutomatonCache(cache))
	}

	if cfg.MQTT.Broker != "" {
		client, err := mqtt.Connect(ctx, cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error {
			client.Disconnect(250)
			return nil
		})
		opts = append(opts, constraintflow.WithSink(mqtt.NewPublisher(client,
			mqtt.WithPrefix(cfg.MQTT.Prefix),
			mqtt.WithQoS(cfg.MQTT.QoS),
			mqtt.WithLogger(logger),
		)))
	}

	s.Engine = constraintflow.New(append(opts, b.opts...)...)
	return s, nil
}

func (s *Stack) openStore(cfg *config.Config) (ports.CursorStore, error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		if s.Redis == nil {
			return nil, errors.New("redis store requires redis.addr")
		}
		opts := []cflowredis.Option{cflowredis.WithTTL(cfg.Store.TTL)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, cflowredis.WithPrefix(cfg.Redis.Prefix))
		}
		return cflowredis.NewFromClient(s.Redis, opts...), nil
	case config.StoreBolt:
		st, err := bolt.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, st.Close)
		return st, nil
	case config.StoreFile:
		return file.New(cfg.Store.Path), nil
	default:
		return memory.NewStore(), nil
	}
}

// Close releases every adapter in reverse order of creation.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
