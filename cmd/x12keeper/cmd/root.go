package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/x12keeper/internal/core/config"
	"github.com/solatis/x12keeper/internal/logger"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logEnv     string
)

var rootCmd = &cobra.Command{
	Use:   "x12keeper",
	Short: "X12 segment access service",
	Long: `x12keeper resolves, reads and writes X12 segment fields by position (GS02)
or by element name (ApplicationSenderCode), and stores documents of segments
for trading partners.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...); defaults to $X12_DB_URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logEnv, "log-env", "", "log environment (prod, dev, local)")
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger; flags override config.
func newLogger(cfg *config.SegmentAPIConfig) (*zap.Logger, error) {
	env, level := cfg.LogEnv, cfg.LogLevel
	if logEnv != "" {
		env = logEnv
	}
	if logLevel != "" {
		level = logLevel
	}
	return logger.NewLogger(env, level)
}

func resolveDBURL() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	if v := os.Getenv("X12_DB_URL"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("--db-url required (or set X12_DB_URL)")
}
