// Package agents implements the role-bound workers as small tool-calling
// loops over a chat model. Each worker owns a fixed toolset; the model
// requests tool invocations inline and receives the results back until it
// settles on a textual finding.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/packhound/packhound/internal/logging"
	"github.com/packhound/packhound/pkg/domain"
)

// DefaultMaxTurns bounds model round-trips per task. A worker that has not
// converged by then returns its last answer as-is.
const DefaultMaxTurns = 10

const (
	toolCallOpen  = "<tool_call>"
	toolCallClose = "</tool_call>"
)

// Completer is the slice of the chat client the agents need.
type Completer interface {
	Complete(ctx context.Context, messages []domain.Message) (string, error)
}

// Tool is one callable capability exposed to a worker's model.
type Tool struct {
	Name        string
	Description string // includes the argument contract, shown verbatim in the system prompt
	Run         func(ctx context.Context, args map[string]any) (string, error)
}

// Agent is a worker backed by a model and a toolset.
type Agent struct {
	role     domain.WorkerRole
	model    Completer
	tools    map[string]Tool
	order    []string
	maxTurns int
	logger   *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxTurns overrides the round-trip bound.
func WithMaxTurns(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAgent builds a worker for the given role over the given tools.
func NewAgent(role domain.WorkerRole, model Completer, tools []Tool, opts ...Option) *Agent {
	byName := make(map[string]Tool, len(tools))
	order := make([]string, 0, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
		order = append(order, tool.Name)
	}
	a := &Agent{
		role:     role,
		model:    model,
		tools:    byName,
		order:    order,
		maxTurns: DefaultMaxTurns,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Role implements ports.Worker.
func (a *Agent) Role() domain.WorkerRole { return a.role }

// Execute implements ports.Worker. The raw model answer is returned without
// sanitization; the orchestrator owns output repair.
func (a *Agent) Execute(ctx context.Context, brief string) (string, error) {
	messages := []domain.Message{
		{Role: "system", Content: a.systemPrompt()},
		{Role: "user", Content: brief},
	}

	var reply string
	for turn := 0; turn < a.maxTurns; turn++ {
		var err error
		reply, err = a.model.Complete(ctx, messages)
		if err != nil {
			return "", fmt.Errorf("agent %s: %w", a.role, err)
		}

		call, ok := parseToolCall(reply)
		if !ok {
			return reply, nil
		}

		result := a.invoke(ctx, call)
		a.logger.Debug("tool call", "role", a.role, "tool", call.Name)
		messages = append(messages,
			domain.Message{Role: "assistant", Content: reply},
			domain.Message{Role: "user", Content: "<tool_response>\n" + result + "\n</tool_response>"},
		)
	}
	// out of turns: hand back whatever the model said last
	return reply, nil
}

func (a *Agent) invoke(ctx context.Context, call toolCall) string {
	tool, ok := a.tools[call.Name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q. Available tools: %s.", call.Name, strings.Join(a.order, ", "))
	}
	out, err := tool.Run(ctx, call.Arguments)
	if err != nil {
		return "Error: " + err.Error()
	}
	return out
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s of a security analysis team. Complete the task assigned to you and report your findings back to the supervisor.\n\n", a.role)
	b.WriteString("# Tools\n\nYou may call the following tools:\n\n")
	for _, name := range a.order {
		tool := a.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}
	b.WriteString(`
To call a tool, answer with exactly one block of the form:

<tool_call>
{"name": "TOOL_NAME", "arguments": {"ARG": "VALUE"}}
</tool_call>

The result arrives in a <tool_response> block. When you have all the
information you need, answer with your findings in plain text and no tool
call. Keep the final answer focused on what the supervisor asked for.`)
	return b.String()
}

type toolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// parseToolCall extracts the first well-formed tool call from a reply.
// Malformed blocks are treated as plain text so the loop terminates instead
// of ping-ponging on garbage.
func parseToolCall(reply string) (toolCall, bool) {
	start := strings.Index(reply, toolCallOpen)
	if start < 0 {
		return toolCall{}, false
	}
	rest := reply[start+len(toolCallOpen):]
	end := strings.Index(rest, toolCallClose)
	if end < 0 {
		return toolCall{}, false
	}

	var call toolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &call); err != nil {
		return toolCall{}, false
	}
	if call.Name == "" {
		return toolCall{}, false
	}
	return call, true
}
