// Package main provides the folioharvest CLI: crawl a school portal's
// portfolio, class activity and attendance content, export it, and serve the
// control API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jwtham/folioharvest/internal/config"
	"github.com/jwtham/folioharvest/internal/logger"
)

var (
	configPath string
	logLevel   string
	logDir     string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "folioharvest",
	Short: "School portal content crawler",
	Long:  "folioharvest crawls portfolio, class activity and attendance content from a school management portal and exports it as archives of images, markdown and CSV.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded := config.Default()
		if configPath != "" {
			fileCfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			loaded = fileCfg.Merge(loaded)
		}
		loaded.FromEnv()
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		if logDir != "" {
			loaded.LogDir = logDir
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		return logger.Setup(logger.Options{
			Level:      cfg.LogLevel,
			LogDir:     cfg.LogDir,
			MaxSizeMB:  logger.DefaultOptions().MaxSizeMB,
			MaxBackups: logger.DefaultOptions().MaxBackups,
			MaxAgeDays: logger.DefaultOptions().MaxAgeDays,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "Directory for rotating log files")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
