package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/cv-grader/internal/models"
)

// Sheet names of the ranking workbook
const (
	SummarySheet    = "Summary"
	CandidatesSheet = "Ranked Candidates"
	DetailsSheet    = "Detailed Analysis"
)

// Fill colors per score category
var categoryColors = map[string]string{
	models.CategoryExcellent: "C6EFCE",
	models.CategoryGood:      "FFEB9C",
	models.CategoryAverage:   "FFC7CE",
	models.CategoryPoor:      "FF9999",
}

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// ExportRankingToExcel writes the ranking workbook to outputPath, adding the
// .xlsx extension when missing. It returns the path written.
func ExportRankingToExcel(job models.Job, ranking []models.Application, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create Excel file: %w", err)
	}
	defer out.Close()

	if err := WriteRankingWorkbook(out, job, ranking, time.Now()); err != nil {
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to save Excel file: %w", err)
	}
	return outputPath, nil
}

// WriteRankingWorkbook renders the Summary, Ranked Candidates and Detailed
// Analysis sheets for a job ranking and writes the workbook to w
func WriteRankingWorkbook(w io.Writer, job models.Job, ranking []models.Application, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	for _, name := range []string{CandidatesSheet, DetailsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return err
		}
	}

	if err := createSummarySheet(f, job, ranking, generated); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := createRankedCandidatesSheet(f, ranking); err != nil {
		return fmt.Errorf("failed to create ranked candidates sheet: %w", err)
	}
	if err := createDetailedAnalysisSheet(f, ranking); err != nil {
		return fmt.Errorf("failed to create detailed analysis sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel workbook: %w", err)
	}
	return nil
}

func headerStyle(f *excelize.File, size float64, align string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: size, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: align, Vertical: "center"},
		Border:    thinBorder,
	})
}

func setRow(f *excelize.File, sheet string, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func createSummarySheet(f *excelize.File, job models.Job, ranking []models.Application, generated time.Time) error {
	sheet := SummarySheet
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 50)

	title, err := headerStyle(f, 14, "left")
	if err != nil {
		return err
	}
	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Candidate Ranking Report")
	f.SetCellStyle(sheet, "A1", "B1", title)
	f.MergeCell(sheet, "A1", "B1")

	rows := [][]any{
		{"Job Title:", job.Title},
		{"Company:", job.Company},
		{"Experience Level:", job.ExperienceLevel},
		{"Generated:", generated.Format("2006-01-02 15:04:05")},
		{"Total Applications:", len(ranking)},
	}

	counts := map[string]int{}
	var graded, total, best, worst int
	for _, app := range ranking {
		if !app.Graded() {
			continue
		}
		score := *app.Score
		counts[models.CategoryForScore(score)]++
		if graded == 0 || score > best {
			best = score
		}
		if graded == 0 || score < worst {
			worst = score
		}
		total += score
		graded++
	}
	rows = append(rows, []any{"Graded:", graded})

	row := 3
	for _, r := range rows {
		if err := setRow(f, sheet, row, r...); err != nil {
			return err
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), label)
		row++
	}
	row++

	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Statistics:")
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), title)
	f.MergeCell(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row))
	row++

	if graded == 0 {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "No graded applications yet")
		return nil
	}

	stats := [][]any{
		{"Excellent (90-100):", counts[models.CategoryExcellent]},
		{"Good (70-89):", counts[models.CategoryGood]},
		{"Average (50-69):", counts[models.CategoryAverage]},
		{"Poor (<50):", counts[models.CategoryPoor]},
		{"Average Score:", fmt.Sprintf("%.2f", float64(total)/float64(graded))},
		{"Highest Score:", best},
		{"Lowest Score:", worst},
	}
	for _, r := range stats {
		if err := setRow(f, sheet, row, r...); err != nil {
			return err
		}
		row++
	}
	return nil
}

func createRankedCandidatesSheet(f *excelize.File, ranking []models.Application) error {
	sheet := CandidatesSheet
	widths := []float64{8, 25, 30, 10, 12, 15, 12, 35, 20}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	header, err := headerStyle(f, 11, "center")
	if err != nil {
		return err
	}
	rowStyles := make(map[string]int, len(categoryColors))
	for category, color := range categoryColors {
		style, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: thinBorder,
		})
		if err != nil {
			return err
		}
		rowStyles[category] = style
	}
	plain, err := f.NewStyle(&excelize.Style{Border: thinBorder})
	if err != nil {
		return err
	}

	headers := []any{"Rank", "Candidate", "Email", "Score", "Category", "Status", "Experience", "Skills Match", "Submitted"}
	if err := setRow(f, sheet, 1, headers...); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A1", "I1", header)

	for i, app := range ranking {
		row := i + 2
		values := []any{i + 1, app.ApplicantName, app.ApplicantEmail, "", "", app.Status, "", strings.Join(app.SkillsMatch, ", "), app.SubmittedAt.Format("2006-01-02 15:04")}
		style := plain
		if app.Graded() {
			category := models.CategoryForScore(*app.Score)
			values[3] = *app.Score
			values[4] = category
			if app.ExperienceYears != nil {
				values[6] = *app.ExperienceYears
			}
			style = rowStyles[category]
		} else {
			values[0] = ""
			values[5] = "Not graded"
		}

		if err := setRow(f, sheet, row, values...); err != nil {
			return err
		}
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("I%d", row), style)
	}

	if len(ranking) > 0 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:I%d", len(ranking)+1), []excelize.AutoFilterOptions{})
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func createDetailedAnalysisSheet(f *excelize.File, ranking []models.Application) error {
	sheet := DetailsSheet
	f.SetColWidth(sheet, "A", "A", 8)
	f.SetColWidth(sheet, "B", "B", 25)
	f.SetColWidth(sheet, "C", "C", 20)
	f.SetColWidth(sheet, "D", "D", 80)

	header, err := headerStyle(f, 11, "center")
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    thinBorder,
	})
	if err != nil {
		return err
	}

	if err := setRow(f, sheet, 1, "Rank", "Candidate", "Section", "Details"); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A1", "D1", header)

	row := 2
	for i, app := range ranking {
		if !app.Graded() || app.Analysis == nil {
			continue
		}
		an := app.Analysis
		sections := []struct {
			name, text string
		}{
			{"Summary", an.Summary},
			{"Analysis", an.Analysis},
			{"Strengths", bulletList(an.Strengths)},
			{"Weaknesses", bulletList(an.Weaknesses)},
			{"Missing Skills", bulletList(an.MissingSkills)},
			{"Recommendations", bulletList(append(append([]string{}, an.Recommendations...), an.Recommendation))},
		}
		for _, s := range sections {
			if strings.TrimSpace(s.text) == "" {
				continue
			}
			if err := setRow(f, sheet, row, i+1, app.ApplicantName, s.name, s.text); err != nil {
				return err
			}
			f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("D%d", row), wrap)
			row++
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func bulletList(items []string) string {
	var lines []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, "- "+item)
		}
	}
	return strings.Join(lines, "\n")
}
