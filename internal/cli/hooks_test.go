package cli

import (
	"fmt"
	"io"
	"testing"

	"github.com/sdlcguard/sdlcguard/internal/core"
	"github.com/sdlcguard/sdlcguard/internal/hooks"
)

type hookEngineMock struct {
	sessionStartFn     func(input hooks.SessionStartInput, w io.Writer) error
	userPromptSubmitFn func(input hooks.UserPromptSubmitInput) error
	preToolUseFn       func(input hooks.PreToolUseInput) error
	postToolUseFn      func(input hooks.PostToolUseInput) error
	subagentStopFn     func(input hooks.SubagentStopInput) error
}

func (m *hookEngineMock) HandleSessionStart(input hooks.SessionStartInput, w io.Writer) error {
	if m.sessionStartFn != nil {
		return m.sessionStartFn(input, w)
	}
	return nil
}

func (m *hookEngineMock) HandleUserPromptSubmit(input hooks.UserPromptSubmitInput) error {
	if m.userPromptSubmitFn != nil {
		return m.userPromptSubmitFn(input)
	}
	return nil
}

func (m *hookEngineMock) HandlePreToolUse(input hooks.PreToolUseInput) error {
	if m.preToolUseFn != nil {
		return m.preToolUseFn(input)
	}
	return nil
}

func (m *hookEngineMock) HandlePostToolUse(input hooks.PostToolUseInput) error {
	if m.postToolUseFn != nil {
		return m.postToolUseFn(input)
	}
	return nil
}

func (m *hookEngineMock) HandleSubagentStop(input hooks.SubagentStopInput) error {
	if m.subagentStopFn != nil {
		return m.subagentStopFn(input)
	}
	return nil
}

// Verify hookEngineMock implements HookEngine.
var _ core.HookEngine = (*hookEngineMock)(nil)

func withHookEngine(t *testing.T, engine core.HookEngine) {
	t.Helper()
	orig := HookEngine
	t.Cleanup(func() { HookEngine = orig })
	HookEngine = engine
}

func withExitCapture(t *testing.T) *int {
	t.Helper()
	orig := osExit
	t.Cleanup(func() { osExit = orig })
	var code int
	osExit = func(c int) { code = c }
	return &code
}

func TestHookCmds_NilEngine(t *testing.T) {
	withHookEngine(t, nil)

	cmds := map[string]func() error{
		"session-start":      func() error { return hookSessionStartCmd.RunE(hookSessionStartCmd, nil) },
		"user-prompt-submit": func() error { return hookUserPromptSubmitCmd.RunE(hookUserPromptSubmitCmd, nil) },
		"pre-tool-use":       func() error { return hookPreToolUseCmd.RunE(hookPreToolUseCmd, nil) },
		"post-tool-use":      func() error { return hookPostToolUseCmd.RunE(hookPostToolUseCmd, nil) },
		"subagent-stop":      func() error { return hookSubagentStopCmd.RunE(hookSubagentStopCmd, nil) },
	}
	for name, run := range cmds {
		if err := run(); err != nil {
			t.Errorf("%s with nil engine: want nil error, got %v", name, err)
		}
	}
}

func TestHookPreToolUseCmd_EngineBlocks(t *testing.T) {
	exitCode := withExitCapture(t)
	withHookEngine(t, &hookEngineMock{
		preToolUseFn: func(input hooks.PreToolUseInput) error {
			return fmt.Errorf("BLOCKED: src/auth owned by backend-developer")
		},
	})

	// Test stdin is empty, so the engine sees a zero-value input and its
	// verdict drives the exit code.
	if err := hookPreToolUseCmd.RunE(hookPreToolUseCmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if *exitCode != 2 {
		t.Fatalf("exit code = %d, want 2", *exitCode)
	}
}

func TestHookPreToolUseCmd_EngineAllows(t *testing.T) {
	exitCode := withExitCapture(t)
	withHookEngine(t, &hookEngineMock{})

	if err := hookPreToolUseCmd.RunE(hookPreToolUseCmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if *exitCode != 0 {
		t.Fatalf("exit code = %d, want 0", *exitCode)
	}
}

func TestHookUserPromptSubmitCmd_EngineBlocks(t *testing.T) {
	exitCode := withExitCapture(t)
	withHookEngine(t, &hookEngineMock{
		userPromptSubmitFn: func(input hooks.UserPromptSubmitInput) error {
			return fmt.Errorf("BLOCKED: no active task")
		},
	})

	if err := hookUserPromptSubmitCmd.RunE(hookUserPromptSubmitCmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if *exitCode != 2 {
		t.Fatalf("exit code = %d, want 2", *exitCode)
	}
}

func TestHookPostToolUseCmd_SwallowsEngineError(t *testing.T) {
	exitCode := withExitCapture(t)
	withHookEngine(t, &hookEngineMock{
		postToolUseFn: func(input hooks.PostToolUseInput) error {
			return fmt.Errorf("recording failed")
		},
	})

	if err := hookPostToolUseCmd.RunE(hookPostToolUseCmd, nil); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	if *exitCode != 0 {
		t.Fatalf("post-tool-use must never block, exit code = %d", *exitCode)
	}
}

func TestHookSubagentStopCmd_SwallowsEngineError(t *testing.T) {
	withHookEngine(t, &hookEngineMock{
		subagentStopFn: func(input hooks.SubagentStopInput) error {
			return fmt.Errorf("deliverable check failed")
		},
	})

	if err := hookSubagentStopCmd.RunE(hookSubagentStopCmd, nil); err != nil {
		t.Fatalf("subagent-stop must never block, got: %v", err)
	}
}
