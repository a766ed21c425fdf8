package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fmuoria/cv-grader/internal/ingestion"
)

var ingestSubject string

var gmailAuthCmd = &cobra.Command{
	Use:   "gmail-auth",
	Short: "Authorize Gmail access and save the OAuth token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.GmailCredentialsPath == "" {
			return fmt.Errorf("gmail_credentials_path is not configured")
		}
		if err := ingestion.Authorize(cmd.Context(), a.cfg.GmailCredentialsPath, a.cfg.GmailTokenPath, os.Stdin, os.Stdout); err != nil {
			return err
		}
		fmt.Printf("Token saved to %s\n", a.cfg.GmailTokenPath)
		return nil
	},
}

var ingestGmailCmd = &cobra.Command{
	Use:   "ingest-gmail <job-id>",
	Short: "Import applications for a job from Gmail messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		job, err := a.repo.GetJob(ctx, args[0])
		if err != nil {
			return err
		}

		files := ingestion.NewFileHandler(a.cfg.MaxUploadBytes, a.logger)
		gh, err := ingestion.NewGmailHandler(ctx, a.cfg.GmailCredentialsPath, a.cfg.GmailTokenPath, files, a.logger)
		if err != nil {
			return err
		}
		gh.SetProgressCallback(func(current, total int, message string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", current, total, message)
		})

		subject := ingestSubject
		if subject == "" {
			subject = job.Title
		}
		created, err := gh.Import(ctx, a.repo, subject, job.ID)
		if err != nil {
			return err
		}

		for _, app := range created {
			fmt.Printf("%s\t%s <%s>\t%d document(s)\n", app.ID, app.ApplicantName, app.ApplicantEmail, len(app.Documents))
		}
		fmt.Printf("Imported %d application(s) for %s\n", len(created), job.Title)
		return nil
	},
}

func init() {
	ingestGmailCmd.Flags().StringVar(&ingestSubject, "subject", "", "Gmail subject filter (default: the job title)")
	rootCmd.AddCommand(gmailAuthCmd, ingestGmailCmd)
}
