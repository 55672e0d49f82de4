// Package sanitize cleans raw language-model output before it enters the
// analysis state. Reasoning models emit a delimited thinking preamble, and
// tool-calling models emit delimited call blocks; both can be cut off by
// context-window limits. The scanner here makes that contract explicit
// instead of leaving it to ad hoc regex passes.
package sanitize

import "strings"

// Marker pairs recognized by the scanner.
const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
	toolOpen   = "<tool_call>"
	toolClose  = "</tool_call>"
)

// ReasoningTruncated replaces a worker answer whose thinking never closed.
// It is fed forward as the worker's result so the supervisor receives an
// explicit signal instead of half-finished reasoning.
const ReasoningTruncated = `**Error during worker execution!**
Reasoning did not finish within the worker's context window due to excessive complexity of the task.
Please break the task into smaller steps and delegate it again.
`

// ToolCallTruncated replaces a worker answer whose tool call never closed.
const ToolCallTruncated = `**Error during worker's tool calling!**
The worker's tool call failed due to the excessive length of the value it attempted to pass to its tool. This may be caused by an overly complex string which is challenging for the model to write down precisely.
`

// Clean removes every closed thinking section from the front of s and trims
// whitespace. The scanner has two states: inside a preamble (looking for the
// closing delimiter) and outside (done). Content before a closing delimiter
// is never usable, so it is dropped down to the last close marker even when
// the opening marker itself was lost to upstream truncation. Text whose
// preamble never closes is returned as-is for the truncation detectors.
//
// Clean is idempotent: cleaning already-clean text returns it unchanged.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for {
		rest, inPreamble := cutPreamble(s)
		if !inPreamble {
			return s
		}
		s = strings.TrimSpace(rest)
	}
}

// cutPreamble drops one closed preamble section from the front of s.
// The second return value is false when no closing delimiter exists, i.e.
// the scanner cannot leave the inside-preamble state.
func cutPreamble(s string) (string, bool) {
	i := strings.Index(s, thinkClose)
	if i < 0 {
		return s, false
	}
	return s[i+len(thinkClose):], true
}

// WorkerOutput runs the full post-processing pipeline on a worker's raw
// final answer: strip closed preambles, then substitute a fixed diagnostic
// when the remainder starts with a marker that never closes.
func WorkerOutput(raw string) string {
	out := Clean(raw)
	switch {
	case strings.HasPrefix(out, thinkOpen) && !strings.Contains(out, thinkClose):
		return ReasoningTruncated
	case strings.HasPrefix(out, toolOpen) && !strings.Contains(out, toolClose):
		return ToolCallTruncated
	}
	return out
}
