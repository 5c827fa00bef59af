package core

import "context"

type LLMInput struct {
	Text   string
	Labels map[string]string
}

type LLMOutput struct {
	Text  string
	Stats Stats
}

type Stats struct {
	InputTokenCount  int32 `json:"input_token_count,omitempty"`
	OutputTokenCount int32 `json:"output_token_count,omitempty"`
	TotalTokenCount  int32 `json:"total_token_count,omitempty"`
}

// ChatContent is a history entry in the shape a model backend understands:
// only "user" and "assistant" roles.
type ChatContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type LLM interface {
	Generate(ctx context.Context, systemContext string, history []ChatContent, input LLMInput) (LLMOutput, error)
}
