package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fmuoria/cv-grader/internal/llm"
	"github.com/fmuoria/cv-grader/internal/models"
)

// Prompt content limits in bytes
const (
	maxCVLength        = 8000
	maxDocumentsLength = 6000
	maxSummaryLength   = 200
)

// fallbackScore is used when the response carries no usable score
const fallbackScore = 50

var (
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	scoreFieldRe = regexp.MustCompile(`"score"\s*:\s*"?(-?\d+(?:\.\d+)?)`)
)

// TextExtractor returns the plain text of an uploaded document
type TextExtractor func(doc models.Document) (string, error)

// Scorer evaluates applications using a generative model
type Scorer struct {
	generator llm.Generator
	extract   TextExtractor
}

// NewScorer creates a new scorer. extract may be nil, in which case
// documents are listed by name only.
func NewScorer(generator llm.Generator, extract TextExtractor) *Scorer {
	return &Scorer{
		generator: generator,
		extract:   extract,
	}
}

// Score runs one model call for app and returns the parsed analysis
func (s *Scorer) Score(ctx context.Context, job models.Job, app models.Application) (models.Analysis, error) {
	prompt := BuildPrompt(job, app, s.documentText(app.Documents))

	response, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	return ParseAnalysis(response), nil
}

func (s *Scorer) documentText(docs []models.Document) string {
	var sb strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&sb, "--- %s ---\n", doc.FileName)
		if s.extract == nil {
			sb.WriteString("[document content not available]\n")
			continue
		}
		text, err := s.extract(doc)
		if err != nil || strings.TrimSpace(text) == "" {
			sb.WriteString("[document content not available]\n")
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// BuildPrompt creates the grading prompt for an application
func BuildPrompt(job models.Job, app models.Application, documentText string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert recruiter. Analyze this CV against the job requirements and provide a detailed assessment.\n\n")

	sb.WriteString("## JOB\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", job.Title))
	sb.WriteString(fmt.Sprintf("Company: %s\n", job.Company))
	if job.ExperienceLevel != "" {
		sb.WriteString(fmt.Sprintf("Experience level: %s\n", job.ExperienceLevel))
	}
	sb.WriteString("\n### JOB REQUIREMENTS\n")
	sb.WriteString(sanitizeUTF8(job.Requirements))
	sb.WriteString("\n\n### REQUIRED SKILLS\n")
	sb.WriteString(strings.Join(job.Skills, ", "))
	sb.WriteString("\n\n")

	sb.WriteString("## APPLICANT\n")
	sb.WriteString(fmt.Sprintf("Name: %s\n\n", app.ApplicantName))

	sb.WriteString("### CV CONTENT\n")
	cv := sanitizeUTF8(app.CVText)
	if len(cv) > maxCVLength {
		cv = cut(cv, maxCVLength) + "\n[CV truncated for length]"
	}
	if strings.TrimSpace(cv) == "" {
		cv = "[no CV text provided]"
	}
	sb.WriteString(cv)
	sb.WriteString("\n\n")

	if strings.TrimSpace(documentText) != "" {
		sb.WriteString("### ATTACHED DOCUMENTS\n")
		docs := sanitizeUTF8(documentText)
		if len(docs) > maxDocumentsLength {
			docs = cut(docs, maxDocumentsLength) + "\n[Documents truncated for length]"
		}
		sb.WriteString(docs)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## INSTRUCTIONS\n")
	sb.WriteString("Provide a compatibility score (0-100), strengths and weaknesses, missing skills or qualifications and recommendations.\n")
	sb.WriteString("Format your response as JSON with the following structure:\n")
	sb.WriteString("{\n")
	sb.WriteString(`  "score": <0-100>,` + "\n")
	sb.WriteString(`  "category": "<Excellent|Good|Average|Poor>",` + "\n")
	sb.WriteString(`  "summary": "<one or two sentence summary>",` + "\n")
	sb.WriteString(`  "analysis": "<detailed analysis>",` + "\n")
	sb.WriteString(`  "strengths": ["<strength>"],` + "\n")
	sb.WriteString(`  "weaknesses": ["<weakness>"],` + "\n")
	sb.WriteString(`  "missingSkills": ["<skill>"],` + "\n")
	sb.WriteString(`  "skillsMatch": ["<required skill found in the CV>"],` + "\n")
	sb.WriteString(`  "experienceYears": <number>,` + "\n")
	sb.WriteString(`  "recommendations": ["<recommendation>"],` + "\n")
	sb.WriteString(`  "recommendation": "<hiring recommendation>",` + "\n")
	sb.WriteString(`  "status": "<Shortlisted|Under Review|Rejected>"` + "\n")
	sb.WriteString("}\n\n")
	sb.WriteString("Return ONLY the JSON object, no additional text.\n")

	return sb.String()
}

// rawAnalysis accepts fractional numbers from the model. A missing score
// stays nil.
type rawAnalysis struct {
	Score           *float64 `json:"score"`
	Category        string   `json:"category"`
	Summary         string   `json:"summary"`
	Analysis        string   `json:"analysis"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
	MissingSkills   []string `json:"missingSkills"`
	SkillsMatch     []string `json:"skillsMatch"`
	ExperienceYears float64  `json:"experienceYears"`
	Recommendations []string `json:"recommendations"`
	Recommendation  string   `json:"recommendation"`
	Status          string   `json:"status"`
}

func (r rawAnalysis) analysis() models.Analysis {
	score := fallbackScore
	if r.Score != nil {
		score = int(math.Round(*r.Score))
	}
	return models.Analysis{
		Score:           score,
		Category:        r.Category,
		Summary:         r.Summary,
		Analysis:        r.Analysis,
		Strengths:       r.Strengths,
		Weaknesses:      r.Weaknesses,
		MissingSkills:   r.MissingSkills,
		SkillsMatch:     r.SkillsMatch,
		ExperienceYears: r.ExperienceYears,
		Recommendations: r.Recommendations,
		Recommendation:  r.Recommendation,
		Status:          r.Status,
	}
}

// ParseAnalysis turns a model response into an Analysis. It never fails:
// unparseable responses fall back to a neutral score with the raw text kept
// as the analysis.
func ParseAnalysis(response string) models.Analysis {
	var raw rawAnalysis

	cleaned := llm.CleanJSONBlock(response)
	if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
		return normalize(raw.analysis())
	}

	if obj := jsonObjectRe.FindString(response); obj != "" {
		raw = rawAnalysis{}
		if err := json.Unmarshal([]byte(obj), &raw); err == nil {
			return normalize(raw.analysis())
		}
	}

	an := models.Analysis{Score: fallbackScore, Analysis: strings.TrimSpace(response)}
	if m := scoreFieldRe.FindStringSubmatch(response); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			an.Score = int(math.Round(v))
		}
	}
	return normalize(an)
}

// normalize clamps the score and fills the fields derived from it
func normalize(an models.Analysis) models.Analysis {
	if an.Score < 0 {
		an.Score = 0
	}
	if an.Score > 100 {
		an.Score = 100
	}

	if !isCategory(an.Category) {
		an.Category = models.CategoryForScore(an.Score)
	}
	if !isStatus(an.Status) {
		an.Status = models.StatusForScore(an.Score)
	}
	if an.Summary == "" {
		an.Summary = truncate(an.Analysis, maxSummaryLength)
	}
	if an.ExperienceYears < 0 {
		an.ExperienceYears = 0
	}

	an.Strengths = nonNil(an.Strengths)
	an.Weaknesses = nonNil(an.Weaknesses)
	an.MissingSkills = nonNil(an.MissingSkills)
	an.SkillsMatch = nonNil(an.SkillsMatch)
	an.Recommendations = nonNil(an.Recommendations)
	return an
}

func isCategory(c string) bool {
	switch c {
	case models.CategoryExcellent, models.CategoryGood, models.CategoryAverage, models.CategoryPoor:
		return true
	}
	return false
}

func isStatus(s string) bool {
	switch s {
	case models.StatusShortlisted, models.StatusReview, models.StatusRejected:
		return true
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// sanitizeUTF8 replaces invalid byte sequences so the prompt is valid UTF-8
func sanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncate shortens s to maxLen bytes followed by an ellipsis
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return cut(s, maxLen) + "..."
}

// cut returns at most n bytes of s without splitting a rune
func cut(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
