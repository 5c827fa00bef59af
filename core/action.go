package core

import "maps"

// ActionType distinguishes the variants of Action.
type ActionType string

const (
	ActionFinish   ActionType = "finish"
	ActionToolCall ActionType = "tool_call"
)

// Action is what a Policy decides for one step. It is never stored.
type Action struct {
	Type ActionType
	// Name and Params are set for ActionToolCall.
	Name   string
	Params map[string]any
	// Answer is an optional assistant reply left by a finishing policy.
	Answer string
}

func Finish() Action {
	return Action{Type: ActionFinish}
}

func FinishWithAnswer(answer string) Action {
	return Action{Type: ActionFinish, Answer: answer}
}

func CallTool(name string, params map[string]any) Action {
	return Action{Type: ActionToolCall, Name: name, Params: maps.Clone(params)}
}
