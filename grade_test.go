package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/cv-grader/internal/models"
)

func TestWriteRanking(t *testing.T) {
	score := 91
	report := models.GradingReport{
		JobID:    "job-1",
		JobTitle: "Backend Engineer",
		Graded:   1,
		Ranking: []models.Application{
			{ID: "a1", ApplicantName: "Ada", ApplicantEmail: "ada@example.com", Score: &score, Status: models.StatusShortlisted},
			{ID: "a2", ApplicantName: "Bob", ApplicantEmail: "bob@example.com"},
		},
		Failures: []models.GradingFailure{{ApplicationID: "a2", ApplicantName: "Bob", Error: "model unavailable"}},
	}

	var out bytes.Buffer
	require.NoError(t, writeRanking(&out, report))
	text := out.String()

	assert.True(t, strings.HasPrefix(text, "Backend Engineer: 1 graded, 1 failed"))
	lines := strings.Split(text, "\n")

	var adaRow, bobRow string
	for _, line := range lines {
		switch {
		case strings.Contains(line, "ada@example.com"):
			adaRow = line
		case strings.Contains(line, "bob@example.com"):
			bobRow = line
		}
	}
	require.NotEmpty(t, adaRow)
	require.NotEmpty(t, bobRow)
	assert.Contains(t, adaRow, "91")
	assert.Contains(t, adaRow, models.StatusShortlisted)
	assert.Contains(t, bobRow, " - ")
	assert.Less(t, strings.Index(text, "Ada"), strings.Index(text, "Bob"))
	assert.Contains(t, text, "failed: Bob (a2): model unavailable")
}
