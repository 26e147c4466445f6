package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teilomillet/parley/config"
	perrors "github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server"
	"github.com/teilomillet/parley/server/handlers"
	"github.com/teilomillet/parley/server/metrics"
	"github.com/teilomillet/parley/server/processing"
	"github.com/teilomillet/parley/server/provider"
	"github.com/teilomillet/parley/server/routing"
	"github.com/teilomillet/parley/server/validation"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const (
	defaultStartupTimeout = 20 * time.Second

	// stopGrace is added to the server's drain timeout so fx does not give
	// up on OnStop before the server does.
	stopGrace = 5 * time.Second
)

// runServer builds the provider, starts the fx application and blocks until
// a signal arrives or the server fails.
func runServer(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	perrors.SetLogger(logger)

	startCtx, cancel := context.WithTimeout(ctx, defaultStartupTimeout)
	defer cancel()

	// Credentials are checked here, before anything listens.
	p, err := provider.New(startCtx, cfg.Inference, logger)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}

	counter, err := validation.NewTokenCounter(cfg.Inference.ModelID)
	if err != nil {
		logger.Warn("prompt token metrics disabled", zap.Error(err))
		counter = nil
	}

	app := fx.New(appOptions(cfg, logger, p, counter)...)
	return startAndWait(ctx, app, cfg.Server.ShutdownTimeout+stopGrace, logger)
}

// appOptions assembles the dependency graph of the serve command.
func appOptions(cfg *config.Config, logger *zap.Logger, p provider.Provider, counter *validation.TokenCounter) []fx.Option {
	return []fx.Option{
		fx.Supply(cfg, logger),
		fx.WithLogger(func() fxevent.Logger { return &fxevent.ZapLogger{Logger: logger.Named("fx")} }),
		fx.Provide(
			metrics.NewMetrics,
			func(m *metrics.Metrics) provider.Provider { return provider.Instrument(p, m) },
			func() *validation.TokenCounter { return counter },
			newProcessor,
			newChatHandler,
			newRouter,
			newServer,
		),
		fx.Invoke(registerServer),
	}
}

func newProcessor(p provider.Provider, m *metrics.Metrics, counter *validation.TokenCounter, logger *zap.Logger) (*processing.Processor, error) {
	opts := []processing.Option{processing.WithEmptyCounter(m.EmptyResponses)}
	if counter != nil {
		opts = append(opts, processing.WithTokenObserver(validation.NewPromptObserver(counter, m.PromptTokens)))
	}
	return processing.NewProcessor(p, logger, opts...)
}

func newChatHandler(cfg *config.Config, proc *processing.Processor, logger *zap.Logger) *handlers.ChatHandler {
	return handlers.NewChatHandler(proc, logger, cfg.Server.MaxBodyBytes)
}

func newRouter(cfg *config.Config, chat *handlers.ChatHandler, m *metrics.Metrics, logger *zap.Logger) *routing.Router {
	return routing.NewRouter(cfg.Metrics, chat, m, logger)
}

func newServer(cfg *config.Config, router *routing.Router, logger *zap.Logger) *server.Server {
	return server.NewServer(cfg.Server, router, logger)
}

// registerServer binds the server to the fx lifecycle. The listener is
// opened in OnStart so a busy port fails start-up.
func registerServer(lc fx.Lifecycle, sd fx.Shutdowner, srv *server.Server, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var lcfg net.ListenConfig
			ln, err := lcfg.Listen(ctx, "tcp", srv.Addr())
			if err != nil {
				cancel()
				close(done)
				return fmt.Errorf("listen on %s: %w", srv.Addr(), err)
			}
			go func() {
				defer close(done)
				if err := srv.Serve(runCtx, ln); err != nil {
					logger.Error("server stopped", zap.Error(err))
					_ = sd.Shutdown(fx.ExitCode(exitError))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func startAndWait(ctx context.Context, app *fx.App, stopTimeout time.Duration, logger *zap.Logger) error {
	startCtx, startCancel := context.WithTimeout(ctx, defaultStartupTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("fx start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	logger.Info("ready")

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case sig := <-app.Wait():
		if sig.ExitCode != exitOK {
			return fmt.Errorf("server exited with code %d", sig.ExitCode)
		}
		return nil
	}
}
