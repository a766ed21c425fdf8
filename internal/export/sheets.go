package export

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/fmuoria/cv-grader/internal/models"
)

// rankingRange is cleared and rewritten on every export
const rankingRange = "A1:J"

// SheetsExporter publishes rankings to a Google spreadsheet
type SheetsExporter struct {
	service *sheets.Service
}

// NewSheetsExporter creates an exporter authenticated with a service account file
func NewSheetsExporter(ctx context.Context, credentialsPath string) (*SheetsExporter, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("sheets: credentials path is required")
	}

	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}
	return NewSheetsExporterWithService(service), nil
}

// NewSheetsExporterWithService wraps an existing Sheets service
func NewSheetsExporterWithService(service *sheets.Service) *SheetsExporter {
	return &SheetsExporter{service: service}
}

// ExportRanking replaces the content of the first sheet of spreadsheetID
// with the ranking of job. It returns the number of candidate rows written.
func (e *SheetsExporter) ExportRanking(ctx context.Context, spreadsheetID string, job models.Job, ranking []models.Application) (int, error) {
	if spreadsheetID == "" {
		return 0, fmt.Errorf("sheets: spreadsheet id is required")
	}

	_, err := e.service.Spreadsheets.Values.Clear(spreadsheetID, rankingRange, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("sheets: failed to clear ranking: %w", err)
	}

	values := RankingRows(job, ranking)
	_, err = e.service.Spreadsheets.Values.Update(spreadsheetID, "A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("sheets: failed to write ranking: %w", err)
	}

	return len(ranking), nil
}

// RankingRows lays out a ranking as a title row, a header row and one row per application
func RankingRows(job models.Job, ranking []models.Application) [][]interface{} {
	rows := [][]interface{}{
		{fmt.Sprintf("%s - %s", job.Title, job.Company)},
		{"Rank", "Candidate", "Email", "Score", "Category", "Status", "Experience (years)", "Skills Match", "Summary", "Submitted"},
	}

	for i, app := range ranking {
		row := []interface{}{"", app.ApplicantName, app.ApplicantEmail, "", "", "Not graded", "", strings.Join(app.SkillsMatch, ", "), app.Summary, app.SubmittedAt.Format("2006-01-02 15:04")}
		if app.Graded() {
			row[0] = i + 1
			row[3] = *app.Score
			row[4] = models.CategoryForScore(*app.Score)
			row[5] = app.Status
			if app.ExperienceYears != nil {
				row[6] = *app.ExperienceYears
			}
		}
		rows = append(rows, row)
	}
	return rows
}
