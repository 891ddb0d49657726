package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/semlayer/agent-engine/pkg/csvexport"
	"github.com/semlayer/agent-engine/pkg/execution"
	"github.com/semlayer/agent-engine/pkg/joinplan"
	"github.com/semlayer/agent-engine/pkg/models"
	"github.com/semlayer/agent-engine/pkg/semantic"
	"github.com/semlayer/agent-engine/pkg/sqlrender"
	"github.com/semlayer/agent-engine/pkg/sqlvalidate"
	"github.com/semlayer/agent-engine/pkg/warehouse"
)

// session accumulates the per-request artifacts the tool calls build up
// across steps: the finalized plan, the computed join path, the rendered
// and validated SQL, the execution result, and the reporting outputs.
type session struct {
	Question string

	Plan      *models.FinalizedPlan
	JoinPlan  *joinplan.Plan
	BuiltSQL  string
	Validated bool
	Issues    []sqlvalidate.Issue

	ExecResult *models.ExecutionResult
	Explain    *warehouse.ExplainResult

	SanityNotes []string
	Artifact    *csvexport.Artifact
	Narrative   string
	Confidence  float64

	NoDataReason    string
	ClarifyQuestion string
}

// toolExecutor implements llm.ToolExecutor, routing each phase's tool calls
// into the semantic store, join planner, renderer, validators, execution
// guard, and CSV exporter, against one request's session state.
type toolExecutor struct {
	store          *semantic.Store
	guard          *execution.Guard
	executor       warehouse.QueryExecutor
	allowedSchemas []string
	sess           *session
}

func newToolExecutor(store *semantic.Store, guard *execution.Guard, executor warehouse.QueryExecutor, allowedSchemas []string, question string) *toolExecutor {
	return &toolExecutor{
		store:          store,
		guard:          guard,
		executor:       executor,
		allowedSchemas: allowedSchemas,
		sess:           &session{Question: question},
	}
}

// ExecuteTool implements llm.ToolExecutor.
func (t *toolExecutor) ExecuteTool(ctx context.Context, name string, arguments string) (string, error) {
	var args map[string]any
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return toolError(fmt.Errorf("parse arguments for %s: %w", name, err)), nil
		}
	}

	switch name {
	case ToolListEntities:
		return t.listEntities()
	case ToolSearchCatalog:
		return t.searchCatalog(args)
	case ToolReadRawDescriptor:
		return t.readRawDescriptor(args)
	case ToolLoadEntity:
		return t.loadEntity(args)
	case ToolLoadManyEntities:
		return t.loadManyEntities(args)
	case ToolSearchSchema:
		return t.searchSchema(args)
	case ToolScanEntityProps:
		return t.scanEntityProperties(args)
	case ToolAssessCoverage:
		return toolOK(map[string]any{"acknowledged": true})
	case ToolFinalizePlan:
		return t.finalizePlan(args)
	case ToolFinalizeNoData:
		return t.finalizeNoData(args)
	case ToolClarifyIntent:
		return t.clarifyIntent(args)

	case ToolComputeJoinPath:
		return t.computeJoinPath()
	case ToolBuildSQL:
		return t.buildSQL()
	case ToolValidateSQL:
		return t.validateSQL()
	case ToolFinalizeBuild:
		return t.finalizeBuild()

	case ToolEstimateCost:
		return t.estimateCost(ctx)
	case ToolExecuteWithRepair:
		return t.executeWithRepair(ctx)

	case ToolSanityCheck:
		return t.sanityCheck()
	case ToolFormatResults:
		return t.formatResults()
	case ToolExplainResults:
		return t.explainResults(args)
	case ToolFinalizeReport:
		return t.finalizeReport()

	default:
		return toolError(fmt.Errorf("unknown tool %q", name)), nil
	}
}

func (t *toolExecutor) listEntities() (string, error) {
	names, err := t.store.ListEntities()
	if err != nil {
		return toolError(err), nil
	}
	return toolOK(map[string]any{"entities": names})
}

func (t *toolExecutor) searchCatalog(args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	catalog, err := t.store.LoadCatalog()
	if err != nil {
		return toolError(err), nil
	}
	hits := semantic.SearchCatalog(catalog, query)
	return toolOK(map[string]any{"hits": hits})
}

func (t *toolExecutor) readRawDescriptor(args map[string]any) (string, error) {
	entity, _ := args["entity"].(string)
	raw, err := t.store.ReadRaw(entity)
	if err != nil {
		return toolError(err), nil
	}
	return toolOK(map[string]any{"descriptor": raw})
}

func (t *toolExecutor) loadEntity(args map[string]any) (string, error) {
	entity, _ := args["entity"].(string)
	e, err := t.store.LoadEntity(entity)
	if err != nil {
		return toolError(err), nil
	}
	return toolOK(map[string]any{"entity": e})
}

func (t *toolExecutor) loadManyEntities(args map[string]any) (string, error) {
	names := stringSlice(args["entities"])
	loaded, err := t.store.LoadMany(names)
	if err != nil {
		return toolError(err), nil
	}
	return toolOK(map[string]any{"entities": loaded})
}

func (t *toolExecutor) searchSchema(args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	matches, err := t.store.SearchSchema(query)
	if err != nil {
		return toolError(err), nil
	}
	return toolOK(map[string]any{"matches": matches})
}

func (t *toolExecutor) scanEntityProperties(args map[string]any) (string, error) {
	entityName, _ := args["entity"].(string)
	fields := stringSlice(args["fields"])
	e, err := t.store.LoadEntity(entityName)
	if err != nil {
		return toolError(err), nil
	}
	scanned := semantic.ScanProperties(e, fields)
	return toolOK(map[string]any{"entity": scanned})
}

func (t *toolExecutor) finalizePlan(args map[string]any) (string, error) {
	raw, err := json.Marshal(args["plan"])
	if err != nil {
		return toolError(fmt.Errorf("marshal plan: %w", err)), nil
	}
	var plan models.FinalizedPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return toolError(fmt.Errorf("unmarshal plan: %w", err)), nil
	}
	if err := plan.Validate(); err != nil {
		return toolError(err), nil
	}
	t.sess.Plan = &plan
	return toolOK(map[string]any{"accepted": true})
}

func (t *toolExecutor) finalizeNoData(args map[string]any) (string, error) {
	t.sess.NoDataReason, _ = args["reason"].(string)
	return toolOK(map[string]any{"accepted": true})
}

func (t *toolExecutor) clarifyIntent(args map[string]any) (string, error) {
	t.sess.ClarifyQuestion, _ = args["question"].(string)
	return toolOK(map[string]any{"accepted": true})
}

func (t *toolExecutor) computeJoinPath() (string, error) {
	if t.sess.Plan == nil {
		return toolError(fmt.Errorf("no finalized plan to compute a join path for")), nil
	}
	base := t.sess.Plan.SelectedEntities[0]
	jp, err := joinplan.ComputeJoinPath(base, t.sess.Plan.SelectedEntities, t.store)
	if err != nil {
		return toolError(err), nil
	}
	t.sess.JoinPlan = jp
	return toolOK(map[string]any{"joinPlan": jp})
}

func (t *toolExecutor) buildSQL() (string, error) {
	if t.sess.Plan == nil {
		return toolError(fmt.Errorf("no finalized plan to render")), nil
	}
	sqlText, err := sqlrender.Render(t.sess.Plan, t.store)
	if err != nil {
		return toolError(err), nil
	}
	t.sess.BuiltSQL = sqlText
	t.sess.Validated = false
	return toolOK(map[string]any{"sql": sqlText})
}

func (t *toolExecutor) validateSQL() (string, error) {
	if t.sess.BuiltSQL == "" {
		return toolError(fmt.Errorf("no built SQL to validate")), nil
	}
	syn := sqlvalidate.CheckSyntax(t.sess.BuiltSQL)
	sem := sqlvalidate.CheckSemantics(t.sess.Plan, t.store, t.allowedSchemas)

	issues := append(append([]sqlvalidate.Issue{}, syn.Issues...), sem.Issues...)
	t.sess.Issues = issues
	t.sess.Validated = len(issues) == 0

	return toolOK(map[string]any{"ok": t.sess.Validated, "issues": issues})
}

func (t *toolExecutor) finalizeBuild() (string, error) {
	if !t.sess.Validated {
		return toolError(fmt.Errorf("SQL has not passed validate_sql yet")), nil
	}
	return toolOK(map[string]any{"accepted": true})
}

func (t *toolExecutor) estimateCost(ctx context.Context) (string, error) {
	if t.sess.BuiltSQL == "" {
		return toolError(fmt.Errorf("no built SQL to estimate")), nil
	}
	res, err := t.executor.Explain(ctx, t.sess.BuiltSQL)
	if err != nil {
		return toolError(err), nil
	}
	t.sess.Explain = res
	return toolOK(map[string]any{"explain": res})
}

func (t *toolExecutor) executeWithRepair(ctx context.Context) (string, error) {
	if t.sess.BuiltSQL == "" {
		return toolError(fmt.Errorf("no built SQL to execute")), nil
	}
	var aliasByEntity map[string]string
	if t.sess.JoinPlan != nil {
		aliasByEntity = t.sess.JoinPlan.AliasByEntity
	}
	result := t.guard.Run(ctx, t.sess.BuiltSQL, aliasByEntity)
	t.sess.ExecResult = result
	return toolOK(map[string]any{"result": result})
}

func (t *toolExecutor) sanityCheck() (string, error) {
	if t.sess.ExecResult == nil || !t.sess.ExecResult.OK {
		return toolError(fmt.Errorf("no successful execution result to sanity-check")), nil
	}
	notes := runSanityChecks(t.sess.ExecResult)
	t.sess.SanityNotes = notes
	return toolOK(map[string]any{"notes": notes})
}

func (t *toolExecutor) formatResults() (string, error) {
	if t.sess.ExecResult == nil {
		return toolError(fmt.Errorf("no execution result to format")), nil
	}
	art, err := csvexport.Build(t.sess.ExecResult)
	if err != nil {
		return toolError(err), nil
	}
	t.sess.Artifact = art
	return toolOK(map[string]any{
		"rowCount":    art.RowCount,
		"encodedRows": art.EncodedRows,
		"truncated":   art.Truncated,
		"preview":     art.Preview,
	})
}

func (t *toolExecutor) explainResults(args map[string]any) (string, error) {
	narrative, _ := args["narrative"].(string)
	confidence, _ := args["confidence"].(float64)
	t.sess.Narrative = narrative
	t.sess.Confidence = confidence
	return toolOK(map[string]any{"accepted": true})
}

func (t *toolExecutor) finalizeReport() (string, error) {
	return toolOK(map[string]any{
		"narrative":  t.sess.Narrative,
		"confidence": t.sess.Confidence,
	})
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toolOK(payload map[string]any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return toolError(err), nil
	}
	return string(b), nil
}

func toolError(err error) string {
	b, _ := json.Marshal(map[string]any{"error": err.Error()})
	return string(b)
}
