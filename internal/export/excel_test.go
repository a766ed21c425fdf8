package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/cv-grader/internal/models"
)

func gradedApp(name string, score int) models.Application {
	app := models.Application{
		ID:             name,
		ApplicantName:  name,
		ApplicantEmail: name + "@example.com",
		SubmittedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	app.ApplyAnalysis(models.Analysis{
		Score:           score,
		Summary:         name + " summary",
		Analysis:        "Detailed analysis of " + name,
		Strengths:       []string{"Go"},
		Weaknesses:      []string{"Kubernetes"},
		SkillsMatch:     []string{"Go", "SQL"},
		ExperienceYears: 5,
		Recommendations: []string{"Interview"},
		Status:          models.StatusForScore(score),
	}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return app
}

func testRanking() (models.Job, []models.Application) {
	job := models.Job{Title: "Software Engineer", Company: "Acme", ExperienceLevel: models.LevelMid}
	ranking := []models.Application{
		gradedApp("Alice", 92),
		gradedApp("Bob", 71),
		{ID: "carol", ApplicantName: "Carol"},
	}
	return job, ranking
}

func TestExportRankingToExcel_EnsuresXlsxExtension(t *testing.T) {
	job, ranking := testRanking()
	outputPath := filepath.Join(t.TempDir(), "reports", "test_report")

	path, err := ExportRankingToExcel(job, ranking, outputPath)
	require.NoError(t, err)
	assert.Equal(t, outputPath+".xlsx", path)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestExportRankingToExcel_KeepsExistingExtension(t *testing.T) {
	job, ranking := testRanking()
	outputPath := filepath.Join(t.TempDir(), "test_report.XLSX")

	path, err := ExportRankingToExcel(job, ranking, outputPath)
	require.NoError(t, err)
	assert.Equal(t, outputPath, path)
}

func TestWriteRankingWorkbook(t *testing.T) {
	job, ranking := testRanking()

	var buf bytes.Buffer
	require.NoError(t, WriteRankingWorkbook(&buf, job, ranking, time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, CandidatesSheet, DetailsSheet}, f.GetSheetList())

	title, err := f.GetCellValue(SummarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Software Engineer", title)

	rows, err := f.GetRows(CandidatesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Rank", rows[0][0])
	assert.Equal(t, []string{"1", "Alice", "Alice@example.com", "92", models.CategoryExcellent}, rows[1][:5])
	assert.Equal(t, "Good", rows[2][4])
	assert.Equal(t, "Carol", rows[3][1])
	assert.Equal(t, "Not graded", rows[3][5])

	details, err := f.GetRows(DetailsSheet)
	require.NoError(t, err)
	assert.Equal(t, "Alice", details[1][1])
	assert.Equal(t, "Summary", details[1][2])
	for _, row := range details[1:] {
		assert.NotEqual(t, "Carol", row[1], "ungraded applications have no analysis rows")
	}
}

func TestWriteRankingWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRankingWorkbook(&buf, models.Job{Title: "Empty"}, nil, time.Now()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(CandidatesSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
