// Package hooks defines the stdin payload types for lifecycle hook events
// and the shared parsing helper. Payloads arrive as JSON on stdin; the
// verdict travels back on the process exit status, never on stdout.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
)

// SessionStartInput is the stdin JSON for SessionStart hooks.
type SessionStartInput struct {
	SessionID string `json:"session_id"`
	CWD       string `json:"cwd"`
	Source    string `json:"source"`
}

// UserPromptSubmitInput is the stdin JSON for UserPromptSubmit hooks.
type UserPromptSubmitInput struct {
	Prompt string `json:"prompt"`
	Actor  string `json:"actor"`
}

// PreToolUseInput is the stdin JSON for PreToolUse hooks.
type PreToolUseInput struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
	Actor     string         `json:"actor"`
}

// FilePath returns the file_path from tool_input, or empty string if
// absent or non-string.
func (p PreToolUseInput) FilePath() string {
	return toolInputString(p.ToolInput, "file_path")
}

// Command returns the command from tool_input, or empty string if absent
// or non-string.
func (p PreToolUseInput) Command() string {
	return toolInputString(p.ToolInput, "command")
}

// PostToolUseInput is the stdin JSON for PostToolUse hooks.
type PostToolUseInput struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
	Actor     string         `json:"actor"`
}

// FilePath returns the file_path from tool_input, or empty string if
// absent or non-string.
func (p PostToolUseInput) FilePath() string {
	return toolInputString(p.ToolInput, "file_path")
}

// Command returns the command from tool_input, or empty string if absent
// or non-string.
func (p PostToolUseInput) Command() string {
	return toolInputString(p.ToolInput, "command")
}

// SubagentStopInput is the stdin JSON for SubagentStop hooks.
type SubagentStopInput struct {
	SubagentType string `json:"subagent_type"`
}

// ParseStdin reads JSON from the given reader into a new instance of T.
// Empty input yields a zero-value struct, not an error.
func ParseStdin[T any](r io.Reader) (*T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	if len(data) == 0 {
		var zero T
		return &zero, nil
	}
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing stdin JSON: %w", err)
	}
	return &result, nil
}

func toolInputString(toolInput map[string]any, key string) string {
	if toolInput == nil {
		return ""
	}
	s, ok := toolInput[key].(string)
	if !ok {
		return ""
	}
	return s
}
