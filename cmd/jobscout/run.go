package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/api/routes"
	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/scheduler"
)

func runDiscover(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	fs.Parse(args)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.withPipeline(ctx); err != nil {
		return err
	}

	summary, err := a.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if !cfg.Notifications.Console {
		fmt.Println(summary.Report())
	}
	return nil
}

// runManager builds the background run manager on the configured run store
func (a *app) runManager(ctx context.Context) (*background.Manager, error) {
	var runs background.RunStore
	switch a.cfg.Runs.Store {
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("run store: %w", err)
		}
		runs = background.NewRedisRunStore(client, a.cfg.Runs.MaxAge)
	default:
		runs = background.NewInMemoryRunStore()
	}

	opts := background.OptionsFromConfig(a.cfg)
	opts.Logger = a.logger
	opts.Output = os.Stdout

	manager := background.NewManager(a.pipeline, runs, opts)
	if err := manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("start run manager: %w", err)
	}
	return manager, nil
}

func stopManager(a *app, m *background.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.logger.Info("Stopping run manager...")
	if err := m.Stop(ctx); err != nil {
		a.logger.Error("Error stopping run manager", map[string]interface{}{"error": err.Error()})
	}
}

func runSchedule(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	fs.Parse(args)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.withPipeline(ctx); err != nil {
		return err
	}

	manager, err := a.runManager(ctx)
	if err != nil {
		return err
	}
	defer stopManager(a, manager)

	sched, err := scheduler.New(manager, cfg.Schedule.Cron, cfg.Schedule.RunOnStart, a.logger)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	<-ctx.Done()
	a.logger.Info("Shutting down scheduler...")
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	withSchedule := fs.Bool("schedule", false, "also run discovery on the configured cron schedule")
	fs.Parse(args)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.withPipeline(ctx); err != nil {
		return err
	}

	manager, err := a.runManager(ctx)
	if err != nil {
		return err
	}
	defer stopManager(a, manager)

	if *withSchedule {
		sched, err := scheduler.New(manager, cfg.Schedule.Cron, cfg.Schedule.RunOnStart, a.logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	routes.SetupRoutes(e, cfg, routes.Deps{
		Repo:  a.repo,
		Runs:  manager,
		LLM:   a.llm,
		Quota: a.quota,
	})

	go func() {
		<-ctx.Done()
		a.logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error shutting down server", map[string]interface{}{"error": err.Error()})
		}
	}()

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.logger.Info("Server starting", map[string]interface{}{"address": address})

	if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	a.logger.Info("Server shutdown complete")
	return nil
}
