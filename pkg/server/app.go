package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Corexia/internal/middleware"
	"Corexia/internal/service/pricefeed"
	"Corexia/internal/service/scheduler"
	"Corexia/pkg/config"
	xhttp "Corexia/pkg/http"
	pkgkafka "Corexia/pkg/kafka"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/queue"
)

// Components are the long-running parts of the service. Nil members are
// disabled by configuration.
type Components struct {
	HTTP      *xhttp.Server
	Queue     queue.Worker
	Jobs      []queue.Job
	Scheduler *scheduler.Scheduler
	Consumer  *pkgkafka.Consumer
	Handler   pkgkafka.MessageHandler
	Feed      *pricefeed.FinnhubFeed
	Pipeline  *middleware.DecisionPipeline
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: l, c: c}
}

// Exec runs one registered job synchronously, for one-shot CLI commands.
func (a *App) Exec(ctx context.Context, msgType string, payload interface{}) error {
	a.c.Pipeline.Start(ctx)
	defer a.c.Pipeline.Stop(context.Background())
	return queue.Exec(ctx, a.c.Jobs, msgType, payload)
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.c.Pipeline.Start(ctx)

	if err := a.c.Queue.Start(); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}

	if a.c.Consumer != nil && a.c.Handler != nil {
		a.c.Consumer.RegisterHandler(a.c.Handler)
		if err := a.c.Consumer.Start(ctx); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.c.Handler.Topic()))
	}

	if a.c.Feed != nil {
		go a.c.Feed.Run(ctx)
		a.log.Info("price feed started", applogger.Strings("symbols", a.cfg.Agents.Symbols))
	}

	if a.c.Scheduler != nil {
		go func() {
			if err := a.c.Scheduler.Run(ctx); err != nil {
				a.log.Error("scheduler stopped", applogger.Error(err))
			}
		}()
	}

	if err := a.c.HTTP.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	a.log.Info("corexia started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.String("state", a.cfg.Backend.State),
		applogger.String("queue", a.cfg.Queue.Mode),
	)
	<-ctx.Done()

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops intake first, then drains queued work and buffered logs.
// Infrastructure clients are closed by the caller's cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if err := a.c.Queue.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", applogger.Error(err))
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.c.Pipeline.Stop(ctx)

	a.log.Info("shutdown complete")
	return nil
}
