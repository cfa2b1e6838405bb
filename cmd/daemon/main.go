package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/mediakeys/internal/client"
	"github.com/genricoloni/mediakeys/internal/config"
	"github.com/genricoloni/mediakeys/internal/domain"
	"github.com/genricoloni/mediakeys/internal/preview"
	"github.com/genricoloni/mediakeys/internal/push"
	"github.com/genricoloni/mediakeys/internal/scheduler"
	"github.com/genricoloni/mediakeys/internal/session"
	"github.com/genricoloni/mediakeys/internal/supervisor"
	"github.com/genricoloni/mediakeys/internal/thumbnail"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// AppOptions is the full dependency graph of the daemon
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		config.Load,
		func(c *config.AppConfig) domain.Config { return c },
		newLogger,

		// Backend process
		fx.Annotate(supervisor.NewExecStarter, fx.As(new(supervisor.Starter))),
		fx.Annotate(supervisor.NewSupervisor, fx.As(new(domain.Supervisor))),

		// Backend network access
		push.NewFactory,
		client.NewFactory,
		fx.Annotate(thumbnail.NewProcessor, fx.As(new(domain.ImageProcessor))),

		// Key surface
		scheduler.New,
		func(s *scheduler.Scheduler) domain.Scheduler { return s },
		preview.NewBoard,
		func(b *preview.Board) domain.Presenter { return b },
		session.NewRegistry,
		func(r *session.Registry) domain.KeyHost { return r },
		preview.NewServer,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Stop the application gracefully
	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates a production zap logger at the configured level
func newLogger(cfg domain.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.GetLogLevel())
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

// registerHooks sets up application lifecycle hooks
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	cfg *config.AppConfig,
	sup domain.Supervisor,
	sched *scheduler.Scheduler,
	registry *session.Registry,
	server *preview.Server,
) {
	bg, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cfg.Log(logger)
			sched.Start()

			if err := server.Start(); err != nil {
				return err
			}

			// Keys that appear before the backend is up still retry on their own
			go func() {
				if err := sup.EnsureRunning(bg); err != nil {
					logger.Warn("Backend not confirmed at startup", zap.Error(err))
				}
			}()

			for _, variant := range cfg.GetAutoKeys() {
				keyID := uuid.NewString()
				if err := registry.Appear(keyID, variant); err != nil {
					logger.Warn("Failed to show auto key", zap.String("variant", string(variant)), zap.Error(err))
				}
			}

			logger.Info("Media keys daemon started", zap.String("preview", server.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			cancel()

			if err := server.Stop(ctx); err != nil {
				logger.Warn("Preview server shutdown failed", zap.Error(err))
			}
			registry.Close()
			sched.Stop()
			return sup.Stop()
		},
	})
}
