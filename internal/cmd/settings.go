package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MatthiasKunnen/screensaver/internal/config"
	"github.com/MatthiasKunnen/screensaver/pkg/settings"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the screensaver page settings",
	Long: `Manage config.json in the content directory. The page reads it every time it starts.

Keys: speed, population, background_effect, scale, randomness, cycle_settings,
bg_cycle_seconds, lens_effect, enabled_characters (comma separated).`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, logCloser, err := setup()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		return showSettings(cmd, afero.NewOsFs(), cfg, logger)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, logCloser, err := setup()
		if err != nil {
			return err
		}
		defer logCloser.Close()

		return setSetting(cmd, afero.NewOsFs(), cfg, logger, args[0], args[1])
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func showSettings(cmd *cobra.Command, fs afero.Fs, cfg *config.Config, logger *slog.Logger) error {
	s, err := settings.Load(fs, cfg.ContentDirectory)
	if err != nil {
		logger.Warn("Showing defaults", "error", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	return nil
}

func setSetting(
	cmd *cobra.Command,
	fs afero.Fs,
	cfg *config.Config,
	logger *slog.Logger,
	key string,
	value string,
) error {
	s, err := settings.Load(fs, cfg.ContentDirectory)
	if err != nil {
		// Saving would replace the unreadable file with defaults.
		return err
	}

	if err := s.Set(key, value); err != nil {
		return err
	}
	if err := s.Save(fs, cfg.ContentDirectory); err != nil {
		return err
	}

	logger.Debug("Saved settings", "path", cfg.ContentDirectory, "key", key)
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)

	return nil
}
