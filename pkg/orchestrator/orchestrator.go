package orchestrator

import (
	"context"
	"fmt"

	"github.com/semlayer/agent-engine/pkg/apperrors"
	"github.com/semlayer/agent-engine/pkg/csvexport"
	"github.com/semlayer/agent-engine/pkg/execution"
	"github.com/semlayer/agent-engine/pkg/llm"
	"github.com/semlayer/agent-engine/pkg/semantic"
	"github.com/semlayer/agent-engine/pkg/warehouse"
)

// maxValidationIterations caps how many times the Building phase may send a
// failing validate_sql result back to the model before the request is
// abandoned as fatal, per spec.md §7: one corrective iteration only.
const maxValidationIterations = 2

// Result is the terminal outcome of one Orchestrator.Run call.
type Result struct {
	Outcome    Outcome
	Narrative  string
	Confidence float64
	Artifact   *csvexport.Artifact
	SanityNotes []string

	NoDataReason    string
	ClarifyQuestion string

	Err   error
	Steps int
}

// Orchestrator drives the four-phase Planning/Building/Execution/Reporting
// state machine (spec.md §4.7) on top of llm.ToolCallingClient's single-step
// primitive, swapping the system prompt and tool allow-list per phase and
// detecting phase advancement from each step's terminal tool calls.
type Orchestrator struct {
	client         llm.ToolCallingClient
	store          *semantic.Store
	guard          *execution.Guard
	executor       warehouse.QueryExecutor
	allowedSchemas []string
	maxSteps       int
	temperature    float64
}

// New builds an Orchestrator. maxSteps is the global step ceiling
// (config.LLMConfig.MaxSteps, default 100).
func New(client llm.ToolCallingClient, store *semantic.Store, guard *execution.Guard, executor warehouse.QueryExecutor, allowedSchemas []string, maxSteps int) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = 100
	}
	return &Orchestrator{
		client:         client,
		store:          store,
		guard:          guard,
		executor:       executor,
		allowedSchemas: allowedSchemas,
		maxSteps:       maxSteps,
		temperature:    0.2,
	}
}

// Run executes one end-to-end request for question, emitting events to
// events if non-nil (callers that don't want a stream may pass nil).
func (o *Orchestrator) Run(ctx context.Context, question string, events chan<- llm.StreamEvent) *Result {
	tex := newToolExecutor(o.store, o.guard, o.executor, o.allowedSchemas, question)

	messages := []llm.Message{{Role: llm.RoleUser, Content: question}}
	phase := Planning
	validationFailures := 0

	emit := func(ev llm.StreamEvent) {
		if events != nil {
			events <- ev
		}
	}

	for step := 0; step < o.maxSteps; step++ {
		emit(llm.StreamEvent{Type: llm.StreamEventStepBoundary, Content: string(phase)})

		sysPrompt := systemPromptForPhase(phase, question)
		tools := toolsForPhase(phase)

		stepResult, err := o.client.CompleteStep(ctx, messages, tools, sysPrompt, o.temperature)
		if err != nil {
			return &Result{Outcome: OutcomeFatal, Err: fmt.Errorf("step %d (%s): %w", step, phase, err), Steps: step}
		}

		if len(stepResult.ToolCalls) == 0 {
			messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: stepResult.Content})
			continue
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   stepResult.Content,
			ToolCalls: stepResult.ToolCalls,
		})

		var terminal *transition
		for _, tc := range stepResult.ToolCalls {
			emit(llm.StreamEvent{Type: llm.StreamEventToolCall, Content: tc.Function.Name, Data: tc.Function.Arguments})

			output, _ := tex.ExecuteTool(ctx, tc.Function.Name, tc.Function.Arguments)

			emit(llm.StreamEvent{Type: llm.StreamEventToolResult, Content: tc.Function.Name, Data: output})

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: tc.ID,
			})

			if tc.Function.Name == ToolValidateSQL && !tex.sess.Validated {
				validationFailures++
				if validationFailures >= maxValidationIterations {
					return &Result{
						Outcome: OutcomeFatal,
						Err:     fmt.Errorf("validation failed after %d iterations: %v", validationFailures, tex.sess.Issues),
						Steps:   step + 1,
					}
				}
			}

			if tr, ok := checkTerminal(phase, tc.Function.Name); ok {
				t := tr
				terminal = &t
			}
		}

		if terminal != nil {
			emit(llm.StreamEvent{Type: llm.StreamEventPhaseTransition, Content: string(phase)})

			if terminal.outcome != "" {
				return o.finish(terminal.outcome, tex, step+1)
			}
			phase = terminal.nextPhase
		}
	}

	return &Result{
		Outcome: OutcomeStepLimit,
		Err:     apperrors.ErrLimitReached,
		Steps:   o.maxSteps,
	}
}

func (o *Orchestrator) finish(outcome Outcome, tex *toolExecutor, steps int) *Result {
	switch outcome {
	case OutcomeNoData:
		return &Result{Outcome: outcome, NoDataReason: tex.sess.NoDataReason, Steps: steps}
	case OutcomeClarify:
		return &Result{Outcome: outcome, ClarifyQuestion: tex.sess.ClarifyQuestion, Steps: steps}
	case OutcomeReported:
		return &Result{
			Outcome:     outcome,
			Narrative:   tex.sess.Narrative,
			Confidence:  tex.sess.Confidence,
			Artifact:    tex.sess.Artifact,
			SanityNotes: tex.sess.SanityNotes,
			Steps:       steps,
		}
	default:
		return &Result{Outcome: outcome, Steps: steps}
	}
}
