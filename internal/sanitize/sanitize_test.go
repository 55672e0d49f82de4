package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Findings: X", "Findings: X"},
		{"closed preamble removed", "<think>hmm, let me look</think>\nFindings: X", "Findings: X"},
		{"multiple closed preambles removed", "<think>a</think><think>b</think>answer", "answer"},
		{"lost open marker still cleaned", "truncated context</think>\nanswer", "answer"},
		{"unclosed preamble kept for detection", "<think>partial", "<think>partial"},
		{"whitespace trimmed", "  Findings: X \n", "Findings: X"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Findings: X",
		"<think>closed</think>answer",
		"<think>partial",
		"<tool_call>{\"name\": \"x\"}",
		"",
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once), "Clean must be idempotent for %q", in)
	}
}

func TestWorkerOutput(t *testing.T) {
	t.Run("unclosed thinking yields reasoning diagnostic", func(t *testing.T) {
		assert.Equal(t, ReasoningTruncated, WorkerOutput("<think>partial"))
	})

	t.Run("unclosed thinking after newline yields reasoning diagnostic", func(t *testing.T) {
		assert.Equal(t, ReasoningTruncated, WorkerOutput("<think>\nreasoning cut off"))
	})

	t.Run("unclosed tool call yields tool diagnostic", func(t *testing.T) {
		assert.Equal(t, ToolCallTruncated, WorkerOutput(`<tool_call>{"name": "decode_base64", "arguments": {"payload": "aaaa`))
	})

	t.Run("clean text passes through", func(t *testing.T) {
		assert.Equal(t, "Findings: X", WorkerOutput("Findings: X"))
	})

	t.Run("closed thinking is stripped not diagnosed", func(t *testing.T) {
		assert.Equal(t, "Findings: X", WorkerOutput("<think>ok</think>\nFindings: X"))
	})

	t.Run("closed tool call in answer body is preserved", func(t *testing.T) {
		in := "The payload decodes to <tool_call>x</tool_call> markers."
		assert.Equal(t, in, WorkerOutput(in))
	})
}
