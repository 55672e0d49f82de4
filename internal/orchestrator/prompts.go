package orchestrator

import (
	"fmt"
	"strings"

	"github.com/packhound/packhound/pkg/domain"
)

// supervisorSystem is the system instruction shared by every supervisor and
// finalizer invocation.
const supervisorSystem = `You are an AUTONOMOUS supervisor of a security analysis team managing specialized experts: Researcher, Deobfuscator, and Finalizer.

## Your Mission
Coordinate experts to provide objective security analysis of software packages to determine whether they are benign or malicious. Make strategic delegation decisions to maximize analysis depth while minimizing redundant work.

## Current Analysis Scope
The analysis is based on the package's entry-point files (setup.py and, if present, __init__.py plus the files they import). If __init__.py is not provided, the package does not contain one. Other files are not included. Focus your investigation on the code provided.

## Expert Capabilities
- **Deobfuscator**: decodes obfuscated code, encoded strings, base64/hex payloads and compressed blobs. Use for any encoded or unclear string pattern.
- **Researcher**: investigates URLs, domains, IP addresses and external resources; fetches content and package-registry reputation data. NOTE: only the Researcher can access resources outside the given source code.
- **Finalizer**: performs no active analysis; only summarizes the collected findings into the final report.

## Delegation Strategy
1. Prioritize by suspicion level - focus on elements needing clarification or verification
2. Sequence logically - decode obfuscated content first to reveal further indicators
3. Delegate with context - hand the expert the specific strings, URLs or code sections to analyze
4. Build on results - use one expert's findings to guide tasks for the others
5. Avoid redundancy - never repeat an identical investigation

## Analysis Priorities (in order)
- High: obfuscated/encoded content, external URLs, dynamic code execution
- Medium: unusual imports, file operations, network connections, system calls
- Low: standard library usage, typical configuration patterns

## Analysis Principles
- Remain objective - never assume malicious intent without explicit evidence
- Investigate unusual patterns but recognize legitimate use cases
- Focus on what the code actually does
- Distinguish suspicious patterns from confirmed threats

Provide thorough, unbiased analysis to determine the true nature and intent of the code.`

// planAnswerFormat is the XML shape the reasoning stage must answer in. The
// structured-conversion stage re-encodes it into the JSON plan schema.
const planAnswerFormat = `<plan>
    <task>
        <worker>WORKER_FOR_FIRST_TASK</worker>
        <description>DESCRIPTION_OF_FIRST_TASK</description>
    </task>
    <task>
        <worker>WORKER_FOR_SECOND_TASK</worker>
        <description>DESCRIPTION_OF_SECOND_TASK</description>
    </task>
    ...(continues)
</plan>`

// firstPlanningPrompt seeds the initial planning round, before any history
// exists.
func firstPlanningPrompt(s *domain.AnalysisState) string {
	return fmt.Sprintf(`Today is %s. For the given mission, come up with a step by step plan for thorough analysis. Each step must pair the name of the worker responsible with a detailed description of a single task.
The plan should consist of individual tasks that, if executed correctly, will yield the complete final report. Do not add superfluous steps.
**The result of the final step must be the final report issued by the finalizer.** Make sure each step carries all the information needed - do not skip steps.

# Current code under analysis (in package "%s"):
%s

Now create your plan. You can create **%d tasks at most**, but keep efficiency in mind.
The plan must use the following format:

%s
`, s.Today, s.PackageName, s.SourceSummary(), s.RemainingTasks, planAnswerFormat)
}

// refreshPlanningPrompt re-plans after at least one worker round, explicitly
// excluding completed work.
func refreshPlanningPrompt(s *domain.AnalysisState) string {
	return fmt.Sprintf(`Today is %s. For the given mission, reconsider the step by step plan for thorough analysis. Each step must pair the name of the worker responsible with a detailed description of a single task.
The plan should consist of individual tasks that, if executed correctly, will yield the complete final report. Do not add superfluous steps.
**The result of the final step must be the final report issued by the finalizer.**

# Raw code under analysis (in package "%s"):
%s

# Your previous plan was:
%s

# Your team has already completed the following steps:
%s

**CRITICAL: The completed steps above are ALREADY FINISHED and must NOT be repeated in your new plan.**

Now create a NEW plan containing ONLY the remaining work.
The plan must use the following format:

%s

# IMPORTANT requirements:
- You can create **UP TO %d TASKS this time**, but keep efficiency in mind
- EXCLUDE tasks that are already completed (listed above)
- Use the finalizer only once, at the very end
- Focus on gaps: what has NOT been investigated yet
- If all necessary analysis is complete, create only the final summarization task
`, s.Today, s.PackageName, s.SourceSummary(), s.PlanSummary(), s.HistorySummary(), planAnswerFormat, s.RemainingTasks)
}

// formatPlanningPrompt instructs the structured-output model to convert the
// XML plan into the JSON plan schema without touching its content.
func formatPlanningPrompt(planXML, schemaStr string) string {
	return fmt.Sprintf(`Your task is to convert the following XML-formatted analysis plan into JSON.

CRITICAL INSTRUCTIONS:
- This is a CONVERSION task ONLY - do NOT modify, add or remove tasks
- Convert EXACTLY the same number of tasks that appear in the input XML
- Do NOT create new tasks based on descriptions or evidence mentioned inside a task
- Do NOT split one task into multiple tasks, and do NOT merge tasks
- Preserve every task description exactly as it appears

Input XML plan to convert:
%s

Your whole response must be a single JSON object strictly matching the following schema, without any surrounding text or symbols:
%s
`, planXML, schemaStr)
}

// finalReportPrompt seeds the finalizer's free-text report.
func finalReportPrompt(s *domain.AnalysisState, summarizationPlan string) string {
	return fmt.Sprintf(`Today is %s. You are working as the finalizer.

# The code your team has been analyzing (package "%s"):

%s

# To uncover the functionality and intent of the code, your team completed the following tasks, separated by dashed lines:
%s

# Your Task: Create the Final Security Assessment Report

## STEP 1: Determine the Verdict (read carefully)

Decide whether the code is MALICIOUS or BENIGN based on EVIDENCE ONLY.

**MALICIOUS definition (all criteria must be met):**
- Explicit code logic actively causes harm, or there is explicit and confirmed supporting evidence of a malicious payload
- The harmful behavior is intentional and deliberately programmed
- You can trace the exact code and execution flow performing the malicious action
- Examples: data exfiltration, remote code execution, credential theft, cryptomining, backdoor installation

**NOT sufficient to deem malicious:**
- A suspicious package name alone (typosquatting without malicious code)
- Potential vulnerabilities or poor coding practices
- Code that COULD be exploited but does not actively exploit

**Evidence standard:**
- Cite the specific code
- Describe the exact malicious mechanism with technical detail
- Never base the verdict on suspicion, name similarity, or lack of information
- Never blindly trust the package's self-description; it may be a cover story

## STEP 2: Format the Report

If MALICIOUS: include a final verdict line, an evidence summary citing code, the step-by-step malicious activity flow, the attacker's ultimate goal, indicators of compromise (URLs, domains, endpoints, paths), and a risk rating with recommended actions.

If BENIGN (or insufficient evidence): include a final verdict line, a summary of what the code does, any concerns identified (clarifying they do not constitute malicious intent), and a risk rating with recommended actions. Remain conservative when evidence is insufficient. Do not include IoC sections for benign packages and do not fabricate evidence.

For reference, this was your plan for the summarization. Use it if still appropriate:
"""
%s
"""
`, s.Today, s.PackageName, s.SourceSummary(), s.HistorySummary(), summarizationPlan)
}

// formatReportPrompt converts the free-text report into the structured
// verdict record.
func formatReportPrompt(reportText, schemaStr string) string {
	return fmt.Sprintf(`Convert the following security assessment report into JSON:

%s

Your whole response must be a single JSON object strictly matching the following schema, without any surrounding text or symbols:
%s
`, reportText, schemaStr)
}

// taskBrief is the self-contained briefing handed to a worker. The worker
// sees the full corpus and plan for context but is responsible only for the
// first plan entry.
func taskBrief(s *domain.AnalysisState, step domain.PlanStep) string {
	return fmt.Sprintf(`You are a specialized analysis worker executing one step of a security analysis of a software package.

## Source Code Under Analysis

**Package Name:** %s

%s

## Entire Analysis Plan from the Supervisor

%s

## Your Current Task

You are tasked to complete **Step 1:** %s

## Instructions

Execute the task described above and produce a concise report of your findings. The report will be returned to the supervisor for further planning and decision-making.`,
		s.PackageName, s.SourceSummary(), s.PlanSummary(), step.Task)
}

// summarizationPlan extracts the finalizer-tagged plan lines, joined for the
// final report prompt.
func summarizationPlan(s *domain.AnalysisState) string {
	var lines []string
	for _, step := range s.Plan {
		if step.Role == domain.RoleFinalizer {
			lines = append(lines, step.Task)
		}
	}
	return strings.Join(lines, "\n")
}
