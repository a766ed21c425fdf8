package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/cv-grader/internal/models"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

func (g *stubGenerator) Model() string { return "stub" }
func (g *stubGenerator) Close() error  { return nil }

func testJob() models.Job {
	return models.Job{
		Title:           "Software Engineer",
		Company:         "Acme",
		Requirements:    "5 years building web services",
		Skills:          []string{"Go", "SQL", "Docker"},
		ExperienceLevel: models.LevelSenior,
	}
}

func TestSanitizeUTF8(t *testing.T) {
	valid := []string{
		"Hello, World!",
		"José González - Software Engineer",
		"Software Engineer - 软件工程师",
		"",
	}
	for _, in := range valid {
		assert.Equal(t, in, sanitizeUTF8(in))
	}

	invalid := "Before" + string([]byte{0xFF}) + "After"
	result := sanitizeUTF8(invalid)
	assert.True(t, utf8.ValidString(result))
	assert.Contains(t, result, "Before")
	assert.Contains(t, result, "After")
	assert.Contains(t, result, "�")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string not truncated", "Hello", 10, "Hello"},
		{"exact length not truncated", "Hello", 5, "Hello"},
		{"long string truncated", "This is a very long string that should be truncated", 20, "This is a very long ..."},
		{"empty string", "", 10, ""},
		{"does not split runes", "añb", 2, "a..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.input, tt.maxLen))
		})
	}
}

func TestBuildPrompt_ContentTruncation(t *testing.T) {
	app := models.Application{
		ApplicantName: "John Doe",
		CVText:        strings.Repeat("This is CV content. ", 500),
	}
	docs := strings.Repeat("This is document content. ", 400)

	prompt := BuildPrompt(testJob(), app, docs)

	assert.Contains(t, prompt, "[CV truncated for length]")
	assert.Contains(t, prompt, "[Documents truncated for length]")
	assert.Less(t, len(prompt), 17000)
}

func TestBuildPrompt_NoTruncationNeeded(t *testing.T) {
	app := models.Application{ApplicantName: "Jane Smith", CVText: "Short CV content"}

	prompt := BuildPrompt(testJob(), app, "Short document")

	assert.NotContains(t, prompt, "truncated for length")
	assert.Contains(t, prompt, "Short CV content")
	assert.Contains(t, prompt, "Short document")
	assert.Contains(t, prompt, "Go, SQL, Docker")
	assert.Contains(t, prompt, "5 years building web services")
	assert.Contains(t, prompt, "Senior-level")
	assert.Contains(t, prompt, `"score": <0-100>`)
}

func TestBuildPrompt_NoDocuments(t *testing.T) {
	prompt := BuildPrompt(testJob(), models.Application{ApplicantName: "Jane"}, "")

	assert.NotContains(t, prompt, "ATTACHED DOCUMENTS")
	assert.Contains(t, prompt, "[no CV text provided]")
}

func TestParseAnalysis(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		wantScore    int
		wantCategory string
		wantStatus   string
		wantAnalysis string
	}{
		{
			name:         "direct JSON",
			response:     `{"score": 85, "analysis": "Strong match", "strengths": ["Go"], "status": "Shortlisted"}`,
			wantScore:    85,
			wantCategory: models.CategoryGood,
			wantStatus:   models.StatusShortlisted,
			wantAnalysis: "Strong match",
		},
		{
			name:         "fenced JSON",
			response:     "```json\n{\"score\": 92, \"analysis\": \"Excellent\"}\n```",
			wantScore:    92,
			wantCategory: models.CategoryExcellent,
			wantStatus:   models.StatusShortlisted,
			wantAnalysis: "Excellent",
		},
		{
			name:         "JSON surrounded by prose",
			response:     "Here is my assessment:\n{\"score\": 61.6, \"analysis\": \"Decent\"}\nLet me know.",
			wantScore:    62,
			wantCategory: models.CategoryAverage,
			wantStatus:   models.StatusReview,
			wantAnalysis: "Decent",
		},
		{
			name:         "broken JSON with score field",
			response:     `{"score": 40, "analysis": "cut off`,
			wantScore:    40,
			wantCategory: models.CategoryPoor,
			wantStatus:   models.StatusRejected,
			wantAnalysis: `{"score": 40, "analysis": "cut off`,
		},
		{
			name:         "plain text",
			response:     "The candidate looks promising.",
			wantScore:    50,
			wantCategory: models.CategoryAverage,
			wantStatus:   models.StatusReview,
			wantAnalysis: "The candidate looks promising.",
		},
		{
			name:         "score above range is clamped",
			response:     `{"score": 140}`,
			wantScore:    100,
			wantCategory: models.CategoryExcellent,
			wantStatus:   models.StatusShortlisted,
		},
		{
			name:         "JSON without a score keeps the neutral score",
			response:     `{"analysis": "No clear signal either way"}`,
			wantScore:    50,
			wantCategory: models.CategoryAverage,
			wantStatus:   models.StatusReview,
			wantAnalysis: "No clear signal either way",
		},
		{
			name:         "quoted score",
			response:     `{"score": "85", "analysis": "Quoted"}`,
			wantScore:    85,
			wantCategory: models.CategoryGood,
			wantStatus:   models.StatusShortlisted,
		},
		{
			name:         "unknown category and status are derived",
			response:     `{"score": 10, "category": "Stellar", "status": "Hired"}`,
			wantScore:    10,
			wantCategory: models.CategoryPoor,
			wantStatus:   models.StatusRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			an := ParseAnalysis(tt.response)
			assert.Equal(t, tt.wantScore, an.Score)
			assert.Equal(t, tt.wantCategory, an.Category)
			assert.Equal(t, tt.wantStatus, an.Status)
			if tt.wantAnalysis != "" {
				assert.Equal(t, tt.wantAnalysis, an.Analysis)
			}
			assert.NotNil(t, an.Strengths)
			assert.NotNil(t, an.Recommendations)
		})
	}
}

func TestParseAnalysis_SummaryFallsBackToAnalysis(t *testing.T) {
	an := ParseAnalysis(`{"score": 75, "analysis": "Solid experience with distributed systems"}`)
	assert.Equal(t, "Solid experience with distributed systems", an.Summary)

	an = ParseAnalysis(`{"score": 75, "summary": "Good fit", "analysis": "Long text"}`)
	assert.Equal(t, "Good fit", an.Summary)
}

func TestScorer_Score(t *testing.T) {
	gen := &stubGenerator{response: `{"score": 78, "skillsMatch": ["Go"], "experienceYears": 4}`}
	extract := func(doc models.Document) (string, error) {
		if doc.FileName == "broken.pdf" {
			return "", errors.New("unreadable")
		}
		return "Text of " + doc.FileName, nil
	}
	scorer := NewScorer(gen, extract)

	app := models.Application{
		ApplicantName: "Jane",
		CVText:        "Go developer",
		Documents:     []models.Document{{FileName: "cv.txt"}, {FileName: "broken.pdf"}},
	}

	an, err := scorer.Score(context.Background(), testJob(), app)
	require.NoError(t, err)
	assert.Equal(t, 78, an.Score)
	assert.Equal(t, []string{"Go"}, an.SkillsMatch)
	assert.Equal(t, 4.0, an.ExperienceYears)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Text of cv.txt")
	assert.Contains(t, gen.prompts[0], "--- broken.pdf ---\n[document content not available]")
}

func TestScorer_ScoreError(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limit exceeded")}
	scorer := NewScorer(gen, nil)

	_, err := scorer.Score(context.Background(), testJob(), models.Application{CVText: "cv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}
