package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MatthiasKunnen/screensaver/internal/config"
	"github.com/MatthiasKunnen/screensaver/pkg/inhibit"
	"github.com/MatthiasKunnen/screensaver/pkg/secrets"
	"github.com/MatthiasKunnen/screensaver/pkg/supervisor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch for lock events and run the screensaver while locked",
	Long: `Run the supervisor until interrupted.

The event source is chosen with the "source" config key:
  monitor      lines printed by dbus-monitor (default)
  stdin        lines read from standard input
  screensaver  ActiveChanged signals of org.freedesktop/org.gnome ScreenSaver
  logind       Lock and Unlock of the logind session
  idle         Wayland ext-idle-notify, after idle.timeout of inactivity`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	instance, err := supervisor.AcquireInstanceLock(supervisor.DefaultInstanceLockPath())
	if err != nil {
		return err
	}
	defer instance.Unlock()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Inhibit.Shutdown {
		guard := watchShutdown(ctx, cancel, logger)
		if guard != nil {
			defer guard.Close()
		}
	}

	var hooks []supervisor.Hook
	if len(cfg.Secrets.LockCollections) > 0 {
		s, err := secrets.New()
		if err != nil {
			logger.Warn("Secret collections will not be locked", "error", err)
		} else {
			defer s.Close()
			hooks = append(hooks, s.LockHook(cfg.Secrets.LockCollections))
		}
	}

	sup, err := newSupervisor(supervisorOptions(cfg), cfg, logger, hooks...)
	if err != nil {
		return err
	}
	defer sup.Close()

	src, err := newSource(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s source: %w", cfg.Source, err)
	}
	defer src.Close()

	logger.Info("Waiting for lock events", "source", cfg.Source, "port", cfg.Port)
	err = sup.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		logger.Info("Stopped")
		return nil
	}
	if err == nil && cfg.Source != config.SourceStdin {
		return fmt.Errorf("%s source ended unexpectedly", cfg.Source)
	}

	return err
}

// watchShutdown delays shutdown until the deferred teardown has run. cancel is called when
// logind announces a shutdown. It returns nil when no delay lock could be taken.
func watchShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) *inhibit.ShutdownGuard {
	guard, err := inhibit.NewShutdownGuard("screensaver", "Stop screensaver processes")
	if err != nil {
		logger.Warn("Shutdown will not wait for the screensaver to stop", "error", err)
		return nil
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-guard.ShutdownRequested():
			logger.Info("System is shutting down")
			cancel()
		}
	}()

	return guard
}
