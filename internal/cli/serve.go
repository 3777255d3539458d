package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/constraintflow/internal/config"
	httpadapter "github.com/aretw0/constraintflow/pkg/adapters/http"
	mcpadapter "github.com/aretw0/constraintflow/pkg/adapters/mcp"
	cflowredis "github.com/aretw0/constraintflow/pkg/adapters/redis"
	"github.com/aretw0/constraintflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions controls Serve.
type ServeOptions struct {
	// Model, when set, is loaded before the listener starts.
	Model string
	// Ready, when set, receives the bound address once the server is up.
	Ready func(addr string)
	// MCP serves the Model Context Protocol over In and Out instead of HTTP.
	MCP bool
	In  io.Reader
	Out io.Writer
}

// NewHandler builds the HTTP API for a stack.
func NewHandler(stack *Stack, logger *slog.Logger) (*httpadapter.Server, error) {
	opts := []httpadapter.Option{httpadapter.WithLogger(logger)}
	if stack.Registry != nil {
		opts = append(opts, httpadapter.WithMetricsHandler(promhttp.HandlerFor(stack.Registry, promhttp.HandlerOpts{})))
	}
	return httpadapter.NewServer(stack.Engine, opts...)
}

// Serve runs the HTTP API, and the Redis relay when configured, until ctx is done.
func Serve(ctx context.Context, stack *Stack, cfg *config.Config, logger *slog.Logger, opts ServeOptions) error {
	if opts.Model != "" {
		xml, err := os.ReadFile(opts.Model)
		if err != nil {
			return fmt.Errorf("failed to read model: %w", err)
		}
		if err := stack.Engine.Load(ctx, xml); err != nil {
			return fmt.Errorf("failed to load %s: %w", opts.Model, err)
		}
		if err := stack.Engine.Resume(ctx); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			logger.Warn("cursor not resumed", "session", cfg.SessionID, "error", err)
		}
	}

	if opts.MCP {
		return serveMCP(ctx, stack, cfg, logger, opts)
	}

	handler, err := NewHandler(stack, logger)
	if err != nil {
		return err
	}
	defer handler.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.Listen)
		if opts.Ready != nil {
			opts.Ready(cfg.Listen)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	startRelay(gctx, g, stack, cfg, logger)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			return srv.Close()
		}
		return nil
	})

	return g.Wait()
}

// serveMCP runs the MCP server on stdio until the client closes its input
// or ctx is done. The Redis relay, when configured, stops with it.
func serveMCP(ctx context.Context, stack *Stack, cfg *config.Config, logger *slog.Logger, opts ServeOptions) error {
	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	srv := mcpadapter.NewServer(stack.Engine, mcpadapter.WithLogger(logger))
	g.Go(func() error {
		defer cancel()
		if opts.Ready != nil {
			opts.Ready("stdio")
		}
		return srv.ServeStdio(gctx, in, out)
	})
	startRelay(gctx, g, stack, cfg, logger)
	return g.Wait()
}

func startRelay(ctx context.Context, g *errgroup.Group, stack *Stack, cfg *config.Config, logger *slog.Logger) {
	if stack.Redis == nil || len(cfg.Redis.Relay) == 0 {
		return
	}
	relay := cflowredis.NewRelay(stack.Redis, stack.Engine.Bus(),
		cflowredis.WithRelayTopics(cfg.Redis.Relay...),
		cflowredis.WithRelayLogger(logger),
	)
	g.Go(func() error {
		return relay.Run(ctx, nil)
	})
}
