package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fmuoria/cv-grader/internal/export"
	"github.com/fmuoria/cv-grader/internal/llm"
	"github.com/fmuoria/cv-grader/internal/models"
)

var (
	gradeAPIKey string
	gradeOutput string
)

var gradeCmd = &cobra.Command{
	Use:   "grade <job-id>",
	Short: "Grade and rank every application of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runGrade,
}

func init() {
	gradeCmd.Flags().StringVar(&gradeAPIKey, "api-key", "", "Gemini API key for this run (overrides config)")
	gradeCmd.Flags().StringVarP(&gradeOutput, "output", "o", "", "Also write the ranking to this Excel file")
	rootCmd.AddCommand(gradeCmd)
}

func runGrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if gradeAPIKey != "" {
		a.cfg.LLMProvider = llm.ProviderGemini
		a.cfg.GeminiAPIKey = gradeAPIKey
	}

	ga, gen, err := newAgent(ctx, a)
	if err != nil {
		return err
	}
	if gen != nil {
		defer gen.Close()
	}

	ga.SetProgressCallback(func(current, total int, message string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", current, total, message)
	})

	report, err := ga.GradeJob(ctx, args[0])
	if err != nil {
		return err
	}

	printRanking(report)

	if gradeOutput != "" {
		job, err := a.repo.GetJob(ctx, report.JobID)
		if err != nil {
			return err
		}
		path, err := export.ExportRankingToExcel(job, report.Ranking, gradeOutput)
		if err != nil {
			return err
		}
		fmt.Printf("Ranking written to %s\n", path)
	}
	return nil
}

func printRanking(report models.GradingReport) {
	if err := writeRanking(os.Stdout, report); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render ranking: %v\n", err)
	}
}

// writeRanking renders the ranking as a table followed by any failures
func writeRanking(w io.Writer, report models.GradingReport) error {
	fmt.Fprintf(w, "%s: %d graded, %d failed\n\n", report.JobTitle, report.Graded, len(report.Failures))

	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Applicant", "Email", "Score", "Status")
	for i, app := range report.Ranking {
		score := "-"
		if app.Graded() {
			score = strconv.Itoa(*app.Score)
		}
		if err := table.Append(strconv.Itoa(i+1), app.ApplicantName, app.ApplicantEmail, score, app.Status); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "\nfailed: %s (%s): %s", f.ApplicantName, f.ApplicationID, f.Error)
	}
	if len(report.Failures) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}
