package core

import (
	"encoding/json"
	"slices"
)

// Role tags the author of a transcript message.
type Role string

const (
	RoleUser       Role = "user"
	RoleTool       Role = "tool"
	RoleError      Role = "error"
	RoleSupervisor Role = "supervisor"
	RoleAssistant  Role = "assistant"
)

// Message is one transcript entry. It is never edited after it is appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func NewContent(role Role, content string) Message {
	return Message{
		Role:    role,
		Content: content,
	}
}

const (
	// MetaStepsTotal counts loop iterations across every Run on the agent.
	MetaStepsTotal = "steps_total"
	// MetaRuns counts Run calls on the agent.
	MetaRuns = "runs"
)

// AgentState is the transcript of an agent: an append-only history plus
// free-form metadata. The history is only reachable through Append and the
// read accessors, so entries cannot be edited in place. It has no internal
// locking; the owning Agent serialises access.
type AgentState struct {
	history  []Message
	Metadata map[string]any
}

func NewAgentState() *AgentState {
	return &AgentState{Metadata: make(map[string]any)}
}

// Append adds msg to the end of the history.
func (s *AgentState) Append(msg Message) {
	s.history = append(s.history, msg)
}

// Messages returns a copy of the history so callers cannot rewrite entries.
func (s *AgentState) Messages() []Message {
	return slices.Clone(s.history)
}

func (s *AgentState) Len() int {
	return len(s.history)
}

// Last returns the most recently appended message.
func (s *AgentState) Last() (Message, bool) {
	if len(s.history) == 0 {
		return Message{}, false
	}
	return s.history[len(s.history)-1], true
}

func (s *AgentState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		History  []Message      `json:"history"`
		Metadata map[string]any `json:"metadata"`
	}{s.Messages(), s.Metadata})
}

func (s *AgentState) incr(key string, by int) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	n, _ := s.Metadata[key].(int)
	s.Metadata[key] = n + by
}
