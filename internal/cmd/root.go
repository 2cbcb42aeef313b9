package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/MatthiasKunnen/screensaver/internal/config"
	"github.com/MatthiasKunnen/screensaver/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "screensaver",
	Short: "Show a browser based screensaver while the session is locked",
	Long: `Screensaver watches for the desktop session being locked. On lock it starts a static
file server for the content directory and a kiosk browser window pointed at it. On unlock
both are stopped and the temporary browser profile is removed.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/screensaver/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SCREENSAVER")
	// e.g. SCREENSAVER_READINESS_MODE for readiness.mode
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is fine, defaults apply.
	_ = viper.ReadInConfig()
}

// setup loads the configuration and builds the logger. The closer flushes the log file.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, nil, nil, err
	}
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("Loaded config", "path", used)
	}

	return cfg, logger, closer, nil
}
