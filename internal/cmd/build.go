package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MatthiasKunnen/screensaver/internal/config"
	"github.com/MatthiasKunnen/screensaver/pkg/idle"
	"github.com/MatthiasKunnen/screensaver/pkg/lock"
	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/MatthiasKunnen/screensaver/pkg/supervisor"
)

func supervisorOptions(cfg *config.Config) supervisor.Options {
	return supervisor.Options{
		Port:           cfg.Port,
		ContentDir:     cfg.ContentDirectory,
		ServerCommand:  cfg.Server.Command,
		BrowserCommand: cfg.Browser.Command,
		BrowserArgs:    cfg.Browser.ExtraArgs,
		Page:           cfg.Browser.Page,
	}
}

func readiness(cfg *config.Config) supervisor.Readiness {
	if cfg.Readiness.Mode == config.ReadinessPoll {
		return supervisor.PortPoll{
			Interval: cfg.Readiness.Interval,
			Timeout:  cfg.Readiness.Timeout,
		}
	}

	return supervisor.Delay(cfg.Readiness.Delay)
}

func newSupervisor(
	opts supervisor.Options,
	cfg *config.Config,
	logger *slog.Logger,
	hooks ...supervisor.Hook,
) (*supervisor.Supervisor, error) {
	options := []supervisor.Option{
		supervisor.WithLogger(logger),
		supervisor.WithReadiness(readiness(cfg)),
	}
	for _, h := range hooks {
		options = append(options, supervisor.WithActivateHook(h))
	}

	return supervisor.New(opts, options...)
}

// newSource opens the lock event source selected in the config.
func newSource(ctx context.Context, cfg *config.Config) (screensaver.Source, error) {
	switch cfg.Source {
	case config.SourceMonitor:
		return screensaver.NewMonitorSource(ctx, cfg.Monitor.Command)
	case config.SourceStdin:
		return screensaver.NewLineSource(os.Stdin), nil
	case config.SourceScreenSaver:
		return lock.NewScreenSaverSource()
	case config.SourceLogind:
		return lock.NewLogindSource(cfg.Logind.SessionID)
	case config.SourceIdle:
		return idle.NewWaylandSource(cfg.Idle.Timeout)
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
