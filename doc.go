/*
Package packhound analyzes software packages for malicious behavior. A
supervisor model plans the investigation, role-bound workers (a researcher
and a deobfuscator) execute one task at a time with their own tools, and a
finalizer condenses the accumulated evidence into a benign/malicious verdict
backed by a structured report.

# Concept

The investigation is a plan-execute-replan loop over a single mutable state
record. Each planning round replaces the plan wholesale; each worker round
appends exactly one (role, task, result) record to an append-only history.
Step and task budgets, plus a hard activation ceiling, make termination
deterministic even when the models misbehave. Model output is treated as
unreliable input: reasoning preambles are stripped, truncated answers are
replaced by explicit diagnostics, and structured output is strictly decoded
with bounded retries.

# Key Features

  - Deterministic termination: budgets and a loop ceiling bound every run.
  - Hexagonal architecture: the core consumes capability interfaces; chat
    transports, stores and serving surfaces are adapters.
  - Evidence discipline: the verdict is derived from the written report, and
    both are committed atomically or not at all.
  - Multiple surfaces: library, CLI, asynchronous REST API and MCP tool.

# Usage

Wire the capabilities and run an analysis:

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/packhound/packhound"
		"github.com/packhound/packhound/pkg/adapters/chat"
		"github.com/packhound/packhound/pkg/agents"
		"github.com/packhound/packhound/pkg/domain"
		"github.com/packhound/packhound/pkg/ports"
	)

	func main() {
		model := chat.New(chat.DefaultConfig())
		engine, err := packhound.New(model, model, []ports.Worker{
			agents.NewResearcher(model, agents.ResearcherConfig{}),
			agents.NewDeobfuscator(model),
		})
		if err != nil {
			log.Fatal(err)
		}

		state, err := engine.Analyze(context.Background(), "suspicious-pkg", []domain.SourceUnit{
			{Filename: "setup.py", Code: "..."},
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(state.FinalReport.Verdict)
	}
*/
package packhound
