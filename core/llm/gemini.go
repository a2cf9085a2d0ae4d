package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/siherrmann/mapper/model"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	EmbeddingDim   int32 // output dimensionality of Embed, 0 keeps the model default
	SystemPrompt   string
	Temperature    float32
}

// DefaultGeminiConfig reads GEMINI_API_KEY and GEMINI_MODEL.
func DefaultGeminiConfig() GeminiConfig {
	config := GeminiConfig{
		APIKey:         os.Getenv("GEMINI_API_KEY"),
		Model:          strings.TrimSpace(os.Getenv("GEMINI_MODEL")),
		EmbeddingModel: "gemini-embedding-001",
		EmbeddingDim:   768,
		SystemPrompt:   defaultSystemPrompt,
		Temperature:    0.1,
	}
	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	return config
}

// GeminiClient generates text and embeddings with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	config GeminiConfig
}

// NewGeminiClient creates a client, the API key is required.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, model.NewInputError("gemini api key is required")
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{client: client, config: config}, nil
}

// Generate sends the prompt and returns the text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	generateConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.config.Temperature),
	}
	if c.config.SystemPrompt != "" {
		generateConfig.SystemInstruction = genai.NewContentFromText(c.config.SystemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, generateConfig)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// Embed returns an embedding for text, usable as a shortlist embedder.
func (c *GeminiClient) Embed(text string) ([]float32, error) {
	embedConfig := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if c.config.EmbeddingDim > 0 {
		embedConfig.OutputDimensionality = genai.Ptr(c.config.EmbeddingDim)
	}

	result, err := c.client.Models.EmbedContent(context.Background(),
		c.config.EmbeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		embedConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return result.Embeddings[0].Values, nil
}
