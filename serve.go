package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fmuoria/cv-grader/internal/agent"
	"github.com/fmuoria/cv-grader/internal/api"
	"github.com/fmuoria/cv-grader/internal/auth"
	"github.com/fmuoria/cv-grader/internal/export"
	"github.com/fmuoria/cv-grader/internal/ingestion"
	"github.com/fmuoria/cv-grader/internal/llm"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// newAgent builds the grading agent with the configured model. A missing
// model is not fatal: requests may still bring their own key.
func newAgent(ctx context.Context, a *app) (*agent.GradingAgent, llm.Generator, error) {
	gen, err := llm.New(ctx, a.cfg.LLMSettings())
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		a.logger.Warn("no default AI model configured, grading needs a per-request API key", "reason", err)
		gen = nil
	case err != nil:
		return nil, nil, fmt.Errorf("failed to create AI model client: %w", err)
	}

	ga := agent.NewGradingAgent(a.repo, gen, a.logger)
	delay, err := a.cfg.Delay()
	if err != nil {
		return nil, nil, err
	}
	ga.SetRequestDelay(delay)
	return ga, gen, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ga, gen, err := newAgent(ctx, a)
	if err != nil {
		return err
	}
	if gen != nil {
		defer gen.Close()
	}

	authSvc, err := auth.NewService(a.repo, a.cfg.BcryptCost)
	if err != nil {
		return err
	}

	files := ingestion.NewFileHandler(a.cfg.MaxUploadBytes, a.logger)

	deps := api.Deps{
		Repo:          a.repo,
		Agent:         ga,
		Auth:          authSvc,
		Files:         files,
		Logger:        a.logger,
		LLMSettings:   a.cfg.LLMSettings(),
		SpreadsheetID: a.cfg.SpreadsheetID,
	}

	if a.cfg.GmailCredentialsPath != "" {
		gh, err := ingestion.NewGmailHandler(ctx, a.cfg.GmailCredentialsPath, a.cfg.GmailTokenPath, files, a.logger)
		if err != nil {
			a.logger.Warn("gmail ingestion disabled", "error", err)
		} else {
			deps.Gmail = gh
		}
	}

	if a.cfg.SheetsCredentialsPath != "" {
		sheets, err := export.NewSheetsExporter(ctx, a.cfg.SheetsCredentialsPath)
		if err != nil {
			a.logger.Warn("google sheets export disabled", "error", err)
		} else {
			deps.Sheets = sheets
		}
	}

	port := a.cfg.Port
	if servePort != 0 {
		port = servePort
	}

	srv := api.NewServer(deps)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("graceful shutdown completed with error", "error", err)
		return err
	}
	a.logger.Info("graceful shutdown completed successfully")
	return <-errCh
}
