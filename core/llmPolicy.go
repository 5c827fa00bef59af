package core

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var systemToolPrompt = `
You are an assistant that completes the user's request by calling tools, one at a time.
{{agent_system_context}}

You have access to the following tools. Each tool has a name, a description and
the JSON schema of its parameters.
<tools>
{{tools}}
</tools>

Tool usage instructions:
1. Choose the single most appropriate tool for the next step.
2. Provide every required parameter in the correct format.
3. Invoke a tool with exactly this format and nothing else:

<tool_call>
  <tool_name>name_of_the_tool</tool_name>
  <parameters>
    {"param1": "value1", "param2": "value2"}
  </parameters>
</tool_call>

4. Tool results, tool failures and supervisor rejections are returned to you
   inside <tool_result></tool_result> tags. A rejected call must not be retried.
5. When no more tools are needed, reply with your final answer as:

<response>
[Your answer to the user goes here]
</response>
`

// ToolCall is a tool invocation parsed from model output.
type ToolCall struct {
	ToolName   string
	Parameters map[string]any
}

var toolPattern = `(?s)<tool_call>\s*<tool_name>(.*?)</tool_name>\s*<parameters>\s*(.*?)\s*</parameters>\s*</tool_call>`
var toolRegEx = regexp.MustCompile(toolPattern)

var responsePattern = `(?s)<response>(.*?)</response>`
var responseRegEx = regexp.MustCompile(responsePattern)

// ExtractToolCalls extracts tool calls from model output.
func ExtractToolCalls(content string) ([]ToolCall, error) {
	var toolCalls []ToolCall

	for _, match := range toolRegEx.FindAllStringSubmatch(content, -1) {
		if len(match) != 3 {
			continue
		}

		toolName := strings.TrimSpace(match[1])
		paramsJSON := strings.TrimSpace(match[2])

		params := map[string]any{}
		if paramsJSON != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
				return nil, fmt.Errorf("failed to parse parameters for tool %s: %w", toolName, err)
			}
		}

		toolCalls = append(toolCalls, ToolCall{
			ToolName:   toolName,
			Parameters: params,
		})
	}

	return toolCalls, nil
}

// ExtractResponse returns the text inside <response> tags, or the trimmed
// content when the model omitted them.
func ExtractResponse(content string) string {
	matches := responseRegEx.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(content)
	}
	var parts []string
	for _, m := range matches {
		parts = append(parts, strings.TrimSpace(m[1]))
	}
	return strings.Join(parts, "\n")
}

func ReplaceLabels(template string, replacements map[string]string) string {
	for key, value := range replacements {
		placeholder := "{{" + key + "}}"
		template = strings.ReplaceAll(template, placeholder, value)
	}
	return template
}

// MetaTokenUsage accumulates model token usage reported by LLMPolicy.
const MetaTokenUsage = "token_usage"

// LLMPolicy asks a model for the next action. The model sees the registry's
// tools and the transcript; a tool call in its reply becomes a ToolCall action
// and anything else finishes the run with the reply as the answer.
type LLMPolicy struct {
	LLM           LLM
	Registry      *Registry
	SystemContext string
}

func NewLLMPolicy(llm LLM, registry *Registry, systemContext string) *LLMPolicy {
	return &LLMPolicy{LLM: llm, Registry: registry, SystemContext: systemContext}
}

func (p *LLMPolicy) Decide(ctx context.Context, state *AgentState) (Action, error) {
	system, err := p.systemPrompt()
	if err != nil {
		return Action{}, err
	}

	out, err := p.LLM.Generate(ctx, system, ChatHistory(state.Messages()), LLMInput{})
	if err != nil {
		return Action{}, fmt.Errorf("generate: %w", err)
	}
	p.recordStats(state, out.Stats)

	calls, err := ExtractToolCalls(out.Text)
	if err != nil {
		return Action{}, err
	}
	if len(calls) > 0 {
		// one call per step; the model sees the result before choosing again
		return CallTool(calls[0].ToolName, calls[0].Parameters), nil
	}
	return FinishWithAnswer(ExtractResponse(out.Text)), nil
}

func (p *LLMPolicy) systemPrompt() (string, error) {
	toolsStr := []byte("[]")
	if p.Registry != nil {
		if tools := p.Registry.List(); len(tools) > 0 {
			b, err := json.Marshal(tools)
			if err != nil {
				return "", err
			}
			toolsStr = b
		}
	}
	return ReplaceLabels(systemToolPrompt, map[string]string{
		"tools":                string(toolsStr),
		"agent_system_context": p.SystemContext,
	}), nil
}

func (p *LLMPolicy) recordStats(state *AgentState, stats Stats) {
	if state.Metadata == nil {
		state.Metadata = make(map[string]any)
	}
	total, _ := state.Metadata[MetaTokenUsage].(Stats)
	total.InputTokenCount += stats.InputTokenCount
	total.OutputTokenCount += stats.OutputTokenCount
	total.TotalTokenCount += stats.TotalTokenCount
	state.Metadata[MetaTokenUsage] = total
}

// ChatHistory folds a transcript into user/assistant turns. Tool, error and
// supervisor entries are handed back to the model as tool results.
func ChatHistory(history []Message) []ChatContent {
	contents := make([]ChatContent, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			contents = append(contents, ChatContent{Role: "user", Content: fmt.Sprintf("<user_input>%s</user_input>", m.Content)})
		case RoleAssistant:
			contents = append(contents, ChatContent{Role: "assistant", Content: m.Content})
		default:
			contents = append(contents, ChatContent{
				Role:    "user",
				Content: fmt.Sprintf("<tool_result role=%q>%s</tool_result>", m.Role, m.Content),
			})
		}
	}
	return contents
}
