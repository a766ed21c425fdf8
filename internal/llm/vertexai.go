package llm

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// VertexAIClient wraps the Vertex AI Gemini API, authenticated with
// application default credentials.
type VertexAIClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	name      string
	projectID string
	location  string
}

// NewVertexAIClient creates a client for the project and location
func NewVertexAIClient(ctx context.Context, projectID, location, model string) (*VertexAIClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: google cloud project not set", ErrNotConfigured)
	}
	if location == "" {
		location = DefaultLocation
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(DefaultTemperature)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(DefaultMaxTokens)

	return &VertexAIClient{
		client:    client,
		model:     m,
		name:      model,
		projectID: projectID,
		location:  location,
	}, nil
}

// GenerateContent sends a prompt to the model and returns the response text
func (v *VertexAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := v.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates returned")
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			result += string(text)
		}
	}

	return result, nil
}

func (v *VertexAIClient) Model() string {
	return fmt.Sprintf("%s (%s/%s)", v.name, v.projectID, v.location)
}

func (v *VertexAIClient) Close() error {
	return v.client.Close()
}
