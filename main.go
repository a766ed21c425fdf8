// Command cv-grader runs the recruitment portal API and its maintenance
// commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fmuoria/cv-grader/internal/config"
	"github.com/fmuoria/cv-grader/internal/logging"
	"github.com/fmuoria/cv-grader/internal/repository"
	"github.com/fmuoria/cv-grader/internal/storage"
)

var (
	configPath string
	useMemory  bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:          "cv-grader",
	Short:        "AI CV Grader portal",
	Long:         "CV Grader lets an admin post jobs, collects applications with their CVs and ranks applicants with a generative AI model.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the JSON config file (default: user config dir)")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Keep all data in memory instead of SQLite")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// app holds what every command needs
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  storage.Store
	repo   *repository.Repository
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ApplyToEnv()

	logger := logging.New(cfg.LogLevel)

	var store storage.Store
	if useMemory {
		store = storage.NewMemoryStore()
	} else {
		s, err := storage.OpenSQLite(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		store = s
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		repo:   repository.New(store),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
	_ = a.logger.Sync()
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
