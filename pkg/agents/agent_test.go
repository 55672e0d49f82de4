package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packhound/packhound/pkg/domain"
)

type scriptedModel struct {
	replies  []string
	received [][]domain.Message
}

func (m *scriptedModel) Complete(_ context.Context, messages []domain.Message) (string, error) {
	m.received = append(m.received, append([]domain.Message(nil), messages...))
	if len(m.replies) == 0 {
		return "", errors.New("model script exhausted")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func echoTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: `echo the input back; arguments: {"data": "<string>"}`,
		Run: func(_ context.Context, args map[string]any) (string, error) {
			s, _ := args["data"].(string)
			return "echo:" + s, nil
		},
	}
}

func TestExecuteReturnsPlainAnswerWithoutToolCalls(t *testing.T) {
	model := &scriptedModel{replies: []string{"The payload is harmless."}}
	a := NewAgent(domain.RoleDeobfuscator, model, []Tool{echoTool("echo")})

	out, err := a.Execute(context.Background(), "inspect the payload")
	require.NoError(t, err)
	assert.Equal(t, "The payload is harmless.", out)

	require.Len(t, model.received, 1)
	assert.Equal(t, "system", model.received[0][0].Role)
	assert.Contains(t, model.received[0][0].Content, "echo")
	assert.Equal(t, "inspect the payload", model.received[0][1].Content)
}

func TestExecuteRunsToolLoop(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"<tool_call>\n{\"name\": \"echo\", \"arguments\": {\"data\": \"abc\"}}\n</tool_call>",
		"Decoded value is echo:abc.",
	}}
	a := NewAgent(domain.RoleDeobfuscator, model, []Tool{echoTool("echo")})

	out, err := a.Execute(context.Background(), "decode abc")
	require.NoError(t, err)
	assert.Equal(t, "Decoded value is echo:abc.", out)

	// Second round must carry the assistant turn and the tool response.
	require.Len(t, model.received, 2)
	second := model.received[1]
	require.Len(t, second, 4)
	assert.Equal(t, "assistant", second[2].Role)
	assert.Contains(t, second[3].Content, "<tool_response>")
	assert.Contains(t, second[3].Content, "echo:abc")
}

func TestExecuteUnknownToolFeedsErrorBack(t *testing.T) {
	model := &scriptedModel{replies: []string{
		"<tool_call>{\"name\": \"launch_missiles\", \"arguments\": {}}</tool_call>",
		"I will stick to the available tools.",
	}}
	a := NewAgent(domain.RoleResearcher, model, []Tool{echoTool("echo")})

	out, err := a.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, "I will stick to the available tools.", out)
	assert.Contains(t, model.received[1][3].Content, "unknown tool")
}

func TestExecuteMaxTurnsReturnsLastReply(t *testing.T) {
	call := "<tool_call>{\"name\": \"echo\", \"arguments\": {\"data\": \"x\"}}</tool_call>"
	model := &scriptedModel{replies: []string{call, call, call}}
	a := NewAgent(domain.RoleDeobfuscator, model, []Tool{echoTool("echo")}, WithMaxTurns(3))

	out, err := a.Execute(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, call, out)
	assert.Len(t, model.received, 3)
}

func TestExecuteModelErrorIsFatal(t *testing.T) {
	model := &scriptedModel{}
	a := NewAgent(domain.RoleResearcher, model, nil)

	_, err := a.Execute(context.Background(), "task")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "researcher")
}

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"plain text", "no call here", "", false},
		{"well formed", `before <tool_call>{"name":"echo","arguments":{"data":"1"}}</tool_call> after`, "echo", true},
		{"unclosed block", `<tool_call>{"name":"echo"}`, "", false},
		{"invalid json", "<tool_call>not json</tool_call>", "", false},
		{"missing name", `<tool_call>{"arguments":{}}</tool_call>`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := parseToolCall(tt.reply)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, call.Name)
			}
		})
	}
}
