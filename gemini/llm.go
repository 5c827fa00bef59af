package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/victorstack-ai/codex-agent-harness/core"
)

type Gemini struct {
	ModelName string
	client    *genai.Client
}

func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &Gemini{
		ModelName: modelName,
		client:    client,
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, systemContext string, history []core.ChatContent, input core.LLMInput) (core.LLMOutput, error) {
	contents := Contents(history, input)

	var config *genai.GenerateContentConfig
	if systemContext != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemContext}}},
		}
	}
	result, err := g.client.Models.GenerateContent(ctx,
		g.ModelName,
		contents,
		config,
	)
	if err != nil {
		return core.LLMOutput{}, err
	}

	var stats core.Stats
	if result.UsageMetadata != nil {
		stats = core.Stats{
			InputTokenCount:  result.UsageMetadata.PromptTokenCount,
			OutputTokenCount: result.UsageMetadata.CandidatesTokenCount,
			TotalTokenCount:  result.UsageMetadata.TotalTokenCount,
		}
	}
	return core.LLMOutput{Text: result.Text(), Stats: stats}, nil
}

// Contents converts chat history into Gemini contents. Gemini names the
// assistant role "model"; unknown roles are dropped.
func Contents(history []core.ChatContent, input core.LLMInput) []*genai.Content {
	var contents []*genai.Content
	for _, content := range history {
		switch content.Role {
		case "user":
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: content.Content}}})
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: content.Content}}})
		}
	}
	if input.Text != "" {
		contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: input.Text}}})
	}
	return contents
}
