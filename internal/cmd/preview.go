package cmd

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MatthiasKunnen/screensaver/pkg/screensaver"
	"github.com/MatthiasKunnen/screensaver/pkg/supervisor"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the screensaver now, until interrupted",
	Long: `Start the file server and browser exactly as on lock, with the page's preview flag
set. Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, logger, logCloser, err := setup()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// The port is shared with a running supervisor which would be killed by the port freeing.
	instance, err := supervisor.AcquireInstanceLock(supervisor.DefaultInstanceLockPath())
	if err != nil {
		return err
	}
	defer instance.Unlock()

	opts := supervisorOptions(cfg)
	opts.Page = previewPage(opts.Page)

	sup, err := newSupervisor(opts, cfg, logger)
	if err != nil {
		return err
	}
	defer sup.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	sup.Handle(ctx, screensaver.Locked)
	<-ctx.Done()
	logger.Info("Stopping preview")

	return nil
}

func previewPage(page string) string {
	if strings.Contains(page, "?") {
		return page + "&preview=1"
	}

	return page + "?preview=1"
}
