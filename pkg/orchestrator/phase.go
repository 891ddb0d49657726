// Package orchestrator implements the Phase Orchestrator (spec.md §4.7): a
// state machine over Planning, Building, Execution, and Reporting, each
// phase a (system prompt, tool allow-list) pair injected per LLM step. The
// machine advances when a step's tool results contain the current phase's
// terminal tool.
package orchestrator

import "github.com/semlayer/agent-engine/pkg/llm"

// Phase identifies one of the four stages of the pipeline.
type Phase string

const (
	Planning  Phase = "planning"
	Building  Phase = "building"
	Execution Phase = "execution"
	Reporting Phase = "reporting"
)

// Outcome is how the loop ended.
type Outcome string

const (
	OutcomeReported     Outcome = "reported"      // FinalizeReport fired
	OutcomeNoData       Outcome = "no_data"        // FinalizeNoData fired
	OutcomeClarify      Outcome = "clarify"        // ClarifyIntent fired, paused for the user
	OutcomeStepLimit    Outcome = "step_limit"     // global step ceiling hit
	OutcomeFatal        Outcome = "fatal"          // a fatal error terminated the request
)

// terminalTransitions maps a phase's terminal tool names to either the next
// phase (normal advance) or an early-exit outcome.
type transition struct {
	nextPhase Phase
	outcome   Outcome // set only for early exits; "" means advance to nextPhase
}

var transitions = map[Phase]map[string]transition{
	Planning: {
		ToolFinalizePlan:   {nextPhase: Building},
		ToolFinalizeNoData: {outcome: OutcomeNoData},
		ToolClarifyIntent:  {outcome: OutcomeClarify},
	},
	Building: {
		ToolFinalizeBuild: {nextPhase: Execution},
	},
	Execution: {
		ToolExecuteWithRepair: {nextPhase: Reporting},
	},
	Reporting: {
		ToolFinalizeReport: {outcome: OutcomeReported},
	},
}

// checkTerminal reports whether toolName is a terminal tool for phase, and
// if so, what it does.
func checkTerminal(phase Phase, toolName string) (t transition, ok bool) {
	t, ok = transitions[phase][toolName]
	return t, ok
}

// toolsForPhase returns the allow-listed tool definitions for phase.
func toolsForPhase(phase Phase) []llm.ToolDefinition {
	switch phase {
	case Planning:
		return planningTools()
	case Building:
		return buildingTools()
	case Execution:
		return executionTools()
	case Reporting:
		return reportingTools()
	default:
		return nil
	}
}

// systemPromptForPhase returns the phase-specific system prompt.
func systemPromptForPhase(phase Phase, question string) string {
	switch phase {
	case Planning:
		return planningPrompt(question)
	case Building:
		return buildingPrompt()
	case Execution:
		return executionPrompt()
	case Reporting:
		return reportingPrompt()
	default:
		return ""
	}
}

func planningPrompt(question string) string {
	return "You are the Planning phase of a semantic-layer SQL assistant. " +
		"Discover entities, dimensions, measures, and metrics relevant to the " +
		"user's question using list_entities, search_catalog, read_raw_descriptor, " +
		"load_entity, load_many_entities, search_schema, and scan_entity_properties. " +
		"When you have enough context, call finalize_plan with a FinalizedPlan. " +
		"If the question cannot be answered from the loaded schema, call " +
		"finalize_no_data. If the question is genuinely ambiguous, call " +
		"clarify_intent instead of guessing.\n\nUser question: " + question
}

func buildingPrompt() string {
	return "You are the Building phase. Use compute_join_path to resolve the " +
		"finalized plan's join graph, build_sql to render the plan into SQL, and " +
		"validate_sql to check it for syntax and semantic issues. You get one " +
		"corrective iteration if validate_sql reports problems. Call " +
		"finalize_build once the SQL is valid."
}

func executionPrompt() string {
	return "You are the Execution phase. Optionally call estimate_cost to check " +
		"the query plan before running it, then call execute_with_repair to run " +
		"the statement under the execution guard's policy, retries, and repair."
}

func reportingPrompt() string {
	return "You are the Reporting phase. Call sanity_check to look for null " +
		"rates, negative counts, or implausible percentages, format_results to " +
		"produce the CSV artifact, and explain_results to record a narrative and " +
		"a confidence score. Finish with finalize_report."
}
