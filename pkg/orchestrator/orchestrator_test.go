package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/semlayer/agent-engine/pkg/execution"
	"github.com/semlayer/agent-engine/pkg/llm"
	"github.com/semlayer/agent-engine/pkg/semantic"
	"github.com/semlayer/agent-engine/pkg/warehouse"
)

const ordersDescriptor = `
name: orders
table: analytics.orders
dimensions:
  - name: status
    sql: "{CUBE}.status"
    type: string
time_dimensions:
  - name: created_at
    sql: "{CUBE}.created_at"
measures:
  - name: count
    type: count
    sql: "{CUBE}.id"
metrics:
  - name: order_count
    type: atomic
    measure: count
`

const testCatalog = `
version: "1"
entities:
  - name: orders
    description: customer orders
    example_questions:
      - "how many orders per status"
`

func writeFixtures(t *testing.T) (entitiesDir, catalogPath string) {
	t.Helper()
	root := t.TempDir()
	entities := filepath.Join(root, "entities")
	if err := os.Mkdir(entities, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(entities, "orders.yaml"), []byte(ordersDescriptor), 0o644); err != nil {
		t.Fatal(err)
	}
	catalog := filepath.Join(root, "catalog.yaml")
	if err := os.WriteFile(catalog, []byte(testCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	return entities, catalog
}

// fakeExecutor is a canned warehouse.QueryExecutor for orchestrator tests.
type fakeExecutor struct{}

func (f *fakeExecutor) Execute(ctx context.Context, sqlText string) (*warehouse.Result, error) {
	return &warehouse.Result{
		Columns: []warehouse.Column{{Name: "status", Type: "text"}, {Name: "order_count", Type: "int8"}},
		Rows: []map[string]any{
			{"status": "shipped", "order_count": 5},
			{"status": "pending", "order_count": 2},
		},
		RowCount: 2,
	}, nil
}

func (f *fakeExecutor) Explain(ctx context.Context, sqlText string) (*warehouse.ExplainResult, error) {
	return &warehouse.ExplainResult{Plan: "Seq Scan on orders", Score: 10}, nil
}

func (f *fakeExecutor) Cancel(ctx context.Context, queryID string) error { return nil }
func (f *fakeExecutor) Close() error                                    { return nil }

// fakeToolCallingClient scripts a fixed sequence of StepResults, one per
// call to CompleteStep, so tests can drive the orchestrator loop
// deterministically without a real LLM.
type fakeToolCallingClient struct {
	steps []llm.StepResult
	idx   int
}

func (f *fakeToolCallingClient) CompleteStep(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, systemPrompt string, temperature float64) (llm.StepResult, error) {
	if f.idx >= len(f.steps) {
		return llm.StepResult{Content: "no more scripted steps"}, nil
	}
	s := f.steps[f.idx]
	f.idx++
	return s, nil
}

func toolCall(id, name string, args map[string]any) llm.ToolCall {
	b, _ := json.Marshal(args)
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.ToolCallFunc{
			Name:      name,
			Arguments: string(b),
		},
	}
}

func TestOrchestrator_HappyPath_EndToEnd(t *testing.T) {
	entitiesDir, catalogPath := writeFixtures(t)
	store := semantic.New(entitiesDir, catalogPath)
	guard := execution.New(&fakeExecutor{}, execution.DefaultConfig(), store)

	plan := map[string]any{
		"intent": map[string]any{
			"metrics":    []string{"order_count"},
			"dimensions": []string{"status"},
		},
		"selected_entities": []string{"orders"},
	}

	client := &fakeToolCallingClient{
		steps: []llm.StepResult{
			{ToolCalls: []llm.ToolCall{toolCall("1", ToolListEntities, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("2", ToolFinalizePlan, map[string]any{"plan": plan})}},
			{ToolCalls: []llm.ToolCall{toolCall("3", ToolComputeJoinPath, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("4", ToolBuildSQL, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("5", ToolValidateSQL, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("6", ToolFinalizeBuild, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("7", ToolExecuteWithRepair, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("8", ToolSanityCheck, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("9", ToolFormatResults, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("10", ToolExplainResults, map[string]any{
				"narrative": "5 shipped orders, 2 pending.", "confidence": 0.9,
			})}},
			{ToolCalls: []llm.ToolCall{toolCall("11", ToolFinalizeReport, nil)}},
		},
	}

	orch := New(client, store, guard, &fakeExecutor{}, []string{"analytics"}, 50)
	result := orch.Run(context.Background(), "how many orders per status", nil)

	if result.Outcome != OutcomeReported {
		t.Fatalf("expected OutcomeReported, got %v (err=%v)", result.Outcome, result.Err)
	}
	if result.Narrative == "" {
		t.Fatal("expected a narrative")
	}
	if result.Artifact == nil {
		t.Fatal("expected a CSV artifact")
	}
	if result.Confidence != 0.9 {
		t.Fatalf("expected confidence 0.9, got %v", result.Confidence)
	}
}

func TestOrchestrator_FinalizeNoData_ExitsPlanningEarly(t *testing.T) {
	entitiesDir, catalogPath := writeFixtures(t)
	store := semantic.New(entitiesDir, catalogPath)
	guard := execution.New(&fakeExecutor{}, execution.DefaultConfig(), store)

	client := &fakeToolCallingClient{
		steps: []llm.StepResult{
			{ToolCalls: []llm.ToolCall{toolCall("1", ToolFinalizeNoData, map[string]any{
				"reason": "no entity covers this question",
			})}},
		},
	}

	orch := New(client, store, guard, &fakeExecutor{}, []string{"analytics"}, 50)
	result := orch.Run(context.Background(), "what is the meaning of life", nil)

	if result.Outcome != OutcomeNoData {
		t.Fatalf("expected OutcomeNoData, got %v", result.Outcome)
	}
	if result.NoDataReason == "" {
		t.Fatal("expected a no-data reason")
	}
}

func TestOrchestrator_ClarifyIntent_PausesForUser(t *testing.T) {
	entitiesDir, catalogPath := writeFixtures(t)
	store := semantic.New(entitiesDir, catalogPath)
	guard := execution.New(&fakeExecutor{}, execution.DefaultConfig(), store)

	client := &fakeToolCallingClient{
		steps: []llm.StepResult{
			{ToolCalls: []llm.ToolCall{toolCall("1", ToolClarifyIntent, map[string]any{
				"question": "which time range did you mean?",
			})}},
		},
	}

	orch := New(client, store, guard, &fakeExecutor{}, []string{"analytics"}, 50)
	result := orch.Run(context.Background(), "how many orders", nil)

	if result.Outcome != OutcomeClarify {
		t.Fatalf("expected OutcomeClarify, got %v", result.Outcome)
	}
	if result.ClarifyQuestion == "" {
		t.Fatal("expected a clarifying question")
	}
}

func TestOrchestrator_StepLimitReached(t *testing.T) {
	entitiesDir, catalogPath := writeFixtures(t)
	store := semantic.New(entitiesDir, catalogPath)
	guard := execution.New(&fakeExecutor{}, execution.DefaultConfig(), store)

	client := &fakeToolCallingClient{
		steps: []llm.StepResult{
			{ToolCalls: []llm.ToolCall{toolCall("1", ToolListEntities, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("2", ToolListEntities, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("3", ToolListEntities, nil)}},
		},
	}

	orch := New(client, store, guard, &fakeExecutor{}, []string{"analytics"}, 3)
	result := orch.Run(context.Background(), "how many orders", nil)

	if result.Outcome != OutcomeStepLimit {
		t.Fatalf("expected OutcomeStepLimit, got %v", result.Outcome)
	}
}

func TestOrchestrator_RepeatedValidationFailureIsFatal(t *testing.T) {
	entitiesDir, catalogPath := writeFixtures(t)
	store := semantic.New(entitiesDir, catalogPath)
	guard := execution.New(&fakeExecutor{}, execution.DefaultConfig(), store)

	badPlan := map[string]any{
		"intent": map[string]any{
			"metrics": []string{"order_count"},
		},
		"selected_entities": []string{"orders"},
	}

	client := &fakeToolCallingClient{
		steps: []llm.StepResult{
			{ToolCalls: []llm.ToolCall{toolCall("1", ToolFinalizePlan, map[string]any{"plan": badPlan})}},
			{ToolCalls: []llm.ToolCall{toolCall("2", ToolComputeJoinPath, nil)}},
			// BuildSQL never called: validate_sql is called directly with no
			// built SQL, so it always reports an error and never validates.
			{ToolCalls: []llm.ToolCall{toolCall("3", ToolValidateSQL, nil)}},
			{ToolCalls: []llm.ToolCall{toolCall("4", ToolValidateSQL, nil)}},
		},
	}

	orch := New(client, store, guard, &fakeExecutor{}, []string{"analytics"}, 50)
	result := orch.Run(context.Background(), "how many orders", nil)

	if result.Outcome != OutcomeFatal {
		t.Fatalf("expected OutcomeFatal after repeated validation failure, got %v", result.Outcome)
	}
}
