// Package mcp provides an MCP (Model Context Protocol) server that exposes
// task state, ownership resolution, and quality gate evaluation as MCP
// tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sdlcguard/sdlcguard/internal/core"
	"github.com/sdlcguard/sdlcguard/internal/policy"
	"github.com/sdlcguard/sdlcguard/internal/storage"
	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// Server wraps the engine's services and exposes them as MCP tools.
type Server struct {
	server   *gomcp.Server
	store    storage.TaskStore
	pointer  storage.PointerStore
	resolver policy.Resolver
	gates    *core.GateAggregator
	manager  *core.TaskManager
}

// NewServer creates an MCP server over the given services.
func NewServer(
	store storage.TaskStore,
	pointer storage.PointerStore,
	resolver policy.Resolver,
	gates *core.GateAggregator,
	manager *core.TaskManager,
	version string,
) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:    store,
		pointer:  pointer,
		resolver: resolver,
		gates:    gates,
		manager:  manager,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "sdlcguard", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type getCurrentTaskInput struct{}

type taskOutput struct {
	TaskID        string   `json:"task_id"`
	StoryID       string   `json:"story_id"`
	Kind          string   `json:"kind"`
	Branch        string   `json:"branch"`
	Status        string   `json:"status"`
	Phase         string   `json:"phase"`
	Commits       int      `json:"commits"`
	FilesModified []string `json:"files_modified,omitempty"`
	AgentsUsed    []string `json:"agents_used,omitempty"`
	Created       string   `json:"created"`
	Completed     string   `json:"completed,omitempty"`
}

type getCurrentTaskOutput struct {
	Active bool       `json:"active"`
	Task   taskOutput `json:"task,omitempty"`
}

type getTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the unique task identifier (e.g. TASK-042)"`
}

type listTasksInput struct {
	Status  string `json:"status,omitempty" jsonschema:"filter tasks by status (not_started, in_progress, completed)"`
	StoryID string `json:"story_id,omitempty" jsonschema:"filter tasks by story reference (e.g. US-3)"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type resolveOwnerInput struct {
	Path string `json:"path" jsonschema:"required,repository-relative path to resolve ownership for"`
}

type resolveOwnerOutput struct {
	Owners []string `json:"owners"`
	Dir    string   `json:"dir,omitempty"`
	Source string   `json:"source"`
}

type evaluateGatesInput struct {
	TaskID string `json:"task_id,omitempty" jsonschema:"task to evaluate; defaults to the active task"`
}

type evaluateGatesOutput struct {
	TaskID   string   `json:"task_id"`
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures,omitempty"`
}

type updateTaskPhaseInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the unique task identifier"`
	Phase  string `json:"phase" jsonschema:"required,the target phase (RESEARCH, PLANNING, IMPLEMENTATION, TESTING, VALIDATION, COMPLETED)"`
}

type updateTaskPhaseOutput struct {
	Message string `json:"message"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_current_task",
		Description: "Get the task bound to the checked-out branch, if any.",
	}, s.handleGetCurrentTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get task details by ID. Returns lifecycle state, branch, commits, and quality signals.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List active tasks with optional status and story filters.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_owner",
		Description: "Resolve which actor owns a repository path, including the declaring directory and source.",
	}, s.handleResolveOwner)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "evaluate_quality_gates",
		Description: "Evaluate every completion gate for a task and list anything still failing.",
	}, s.handleEvaluateGates)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_phase",
		Description: "Move a task to a lifecycle phase, closing the previous phase's history entry.",
	}, s.handleUpdateTaskPhase)
}

// --- Tool handlers ---

func (s *Server) handleGetCurrentTask(_ context.Context, _ *gomcp.CallToolRequest, _ getCurrentTaskInput) (*gomcp.CallToolResult, getCurrentTaskOutput, error) {
	current, err := s.pointer.Current()
	if err != nil {
		return errorResult(fmt.Sprintf("reading current task: %s", err)), getCurrentTaskOutput{}, nil
	}
	if current == models.NoCurrentTask {
		return nil, getCurrentTaskOutput{Active: false}, nil
	}

	task, err := s.store.Get(current)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", current, err)), getCurrentTaskOutput{}, nil
	}
	return nil, getCurrentTaskOutput{Active: true, Task: taskToOutput(task)}, nil
}

func (s *Server) handleGetTask(_ context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}

	task, err := s.store.Get(input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(task), nil
}

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	tasks, err := s.store.List(storage.TaskFilter{
		Status:  models.TaskStatus(input.Status),
		StoryID: input.StoryID,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t)
	}
	return nil, out, nil
}

func (s *Server) handleResolveOwner(_ context.Context, _ *gomcp.CallToolRequest, input resolveOwnerInput) (*gomcp.CallToolResult, resolveOwnerOutput, error) {
	if input.Path == "" {
		return errorResult("path is required"), resolveOwnerOutput{}, nil
	}

	record, err := s.resolver.Resolve(input.Path)
	if err != nil {
		return errorResult(err.Error()), resolveOwnerOutput{}, nil
	}
	return nil, resolveOwnerOutput{
		Owners: record.Owners,
		Dir:    record.Dir,
		Source: record.Source,
	}, nil
}

func (s *Server) handleEvaluateGates(_ context.Context, _ *gomcp.CallToolRequest, input evaluateGatesInput) (*gomcp.CallToolResult, evaluateGatesOutput, error) {
	taskID := input.TaskID
	if taskID == "" {
		current, err := s.pointer.Current()
		if err != nil || current == models.NoCurrentTask {
			return errorResult("no task_id given and no task is active"), evaluateGatesOutput{}, nil
		}
		taskID = current
	}

	task, err := s.store.Get(taskID)
	if err != nil {
		return errorResult(fmt.Sprintf("getting task %s: %s", taskID, err)), evaluateGatesOutput{}, nil
	}

	verdict := s.gates.Evaluate(task)
	return nil, evaluateGatesOutput{
		TaskID:   taskID,
		Passed:   verdict.Passed,
		Failures: verdict.Failures,
	}, nil
}

func (s *Server) handleUpdateTaskPhase(_ context.Context, _ *gomcp.CallToolRequest, input updateTaskPhaseInput) (*gomcp.CallToolResult, updateTaskPhaseOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), updateTaskPhaseOutput{}, nil
	}
	phase := models.Phase(input.Phase)
	if !models.IsValidPhase(phase) {
		return errorResult(fmt.Sprintf("invalid phase %q: must be one of RESEARCH, PLANNING, IMPLEMENTATION, TESTING, VALIDATION, COMPLETED", input.Phase)), updateTaskPhaseOutput{}, nil
	}

	if err := s.manager.UpdatePhase(input.TaskID, phase); err != nil {
		return errorResult(fmt.Sprintf("updating task %s phase: %s", input.TaskID, err)), updateTaskPhaseOutput{}, nil
	}
	return nil, updateTaskPhaseOutput{
		Message: fmt.Sprintf("task %s moved to %s", input.TaskID, input.Phase),
	}, nil
}

// --- Helpers ---

func taskToOutput(t *models.Task) taskOutput {
	out := taskOutput{
		TaskID:        t.TaskID,
		StoryID:       t.StoryID,
		Kind:          string(t.Kind),
		Branch:        t.Branch,
		Status:        string(t.Status),
		Phase:         string(t.Phase.Current),
		Commits:       len(t.Commits),
		FilesModified: t.FilesModified,
		AgentsUsed:    t.AgentsUsed,
		Created:       t.Timestamps.Created.Format(time.RFC3339),
	}
	if t.Timestamps.Completed != nil {
		out.Completed = t.Timestamps.Completed.Format(time.RFC3339)
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
