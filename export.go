package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fmuoria/cv-grader/internal/export"
)

var (
	exportOutput        string
	exportSpreadsheetID string
)

var exportCmd = &cobra.Command{
	Use:   "export <job-id>",
	Short: "Export the cached ranking of a job to Excel or Google Sheets",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Excel file to write (default ranking_<job-id>.xlsx)")
	exportCmd.Flags().StringVar(&exportSpreadsheetID, "spreadsheet", "", "Write to this Google spreadsheet instead (\"config\" uses spreadsheet_id)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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
	ranking, err := a.repo.GetRanking(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("job %s has not been graded yet: %w", job.ID, err)
	}

	if exportSpreadsheetID != "" {
		id := exportSpreadsheetID
		if id == "config" {
			id = a.cfg.SpreadsheetID
		}
		if a.cfg.SheetsCredentialsPath == "" || id == "" {
			return fmt.Errorf("sheets_credentials_path and a spreadsheet id are required")
		}

		sheets, err := export.NewSheetsExporter(ctx, a.cfg.SheetsCredentialsPath)
		if err != nil {
			return err
		}
		rows, err := sheets.ExportRanking(ctx, id, job, ranking)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d rows to spreadsheet %s\n", rows, id)
		return nil
	}

	output := exportOutput
	if output == "" {
		output = fmt.Sprintf("ranking_%s.xlsx", job.ID)
	}
	path, err := export.ExportRankingToExcel(job, ranking, output)
	if err != nil {
		return err
	}
	fmt.Printf("Ranking written to %s\n", path)
	return nil
}
