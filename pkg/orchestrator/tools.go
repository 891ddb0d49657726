package orchestrator

import "github.com/semlayer/agent-engine/pkg/llm"

// Tool names, used as terminal-tool keys and dispatch targets. Names are
// roles per spec.md §4.7, not provider-specific identifiers.
const (
	ToolListEntities        = "list_entities"
	ToolSearchCatalog       = "search_catalog"
	ToolReadRawDescriptor   = "read_raw_descriptor"
	ToolLoadEntity          = "load_entity"
	ToolLoadManyEntities    = "load_many_entities"
	ToolSearchSchema        = "search_schema"
	ToolScanEntityProps     = "scan_entity_properties"
	ToolAssessCoverage      = "assess_coverage"
	ToolFinalizePlan        = "finalize_plan"
	ToolFinalizeNoData      = "finalize_no_data"
	ToolClarifyIntent       = "clarify_intent"

	ToolComputeJoinPath = "compute_join_path"
	ToolBuildSQL        = "build_sql"
	ToolValidateSQL     = "validate_sql"
	ToolFinalizeBuild   = "finalize_build"

	ToolEstimateCost      = "estimate_cost"
	ToolExecuteWithRepair = "execute_with_repair"

	ToolSanityCheck   = "sanity_check"
	ToolFormatResults = "format_results"
	ToolExplainResults = "explain_results"
	ToolFinalizeReport = "finalize_report"
)

func planningTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition(ToolListEntities,
			"List every entity name known to the semantic store.",
			nil, nil),

		llm.NewToolDefinition(ToolSearchCatalog,
			"Keyword search the entity catalog (name, description, example questions); returns the top 5 matches.",
			map[string]llm.ParameterProperty{
				"query": {Type: "string", Description: "free-text search query"},
			}, []string{"query"}),

		llm.NewToolDefinition(ToolReadRawDescriptor,
			"Read one entity's raw descriptor text, for prompt inspection.",
			map[string]llm.ParameterProperty{
				"entity": {Type: "string", Description: "entity name"},
			}, []string{"entity"}),

		llm.NewToolDefinition(ToolLoadEntity,
			"Load and validate one entity descriptor, normalized (indexes built).",
			map[string]llm.ParameterProperty{
				"entity": {Type: "string", Description: "entity name"},
			}, []string{"entity"}),

		llm.NewToolDefinition(ToolLoadManyEntities,
			"Load and validate several entity descriptors at once.",
			map[string]llm.ParameterProperty{
				"entities": {Type: "array", Description: "entity names", Items: map[string]any{"type": "string"}},
			}, []string{"entities"}),

		llm.NewToolDefinition(ToolSearchSchema,
			"Substring-search every loaded entity's raw descriptor text; returns file (entity) + line context.",
			map[string]llm.ParameterProperty{
				"query": {Type: "string", Description: "substring to search for"},
			}, []string{"query"}),

		llm.NewToolDefinition(ToolScanEntityProps,
			"Selectively hydrate only the requested fields of an entity, following their macro-dependency closure.",
			map[string]llm.ParameterProperty{
				"entity": {Type: "string", Description: "entity name"},
				"fields": {Type: "array", Description: "dimension/measure/metric names to hydrate", Items: map[string]any{"type": "string"}},
			}, []string{"entity", "fields"}),

		llm.NewToolDefinition(ToolAssessCoverage,
			"Record an annotation that the loaded entities/fields are sufficient (or not) to answer the question.",
			map[string]llm.ParameterProperty{
				"covered": {Type: "boolean", Description: "whether the loaded schema covers the question"},
				"notes":   {Type: "string", Description: "assessment notes"},
			}, []string{"covered"}),

		llm.NewToolDefinition(ToolFinalizePlan,
			"Finalize the plan: selected entities, intent (metrics/dimensions/filters/time range), and join graph.",
			map[string]llm.ParameterProperty{
				"plan": {Type: "object", Description: "a FinalizedPlan object"},
			}, []string{"plan"}),

		llm.NewToolDefinition(ToolFinalizeNoData,
			"Terminate the request: the question is out of scope or is answered directly from schema metadata, with no query to run.",
			map[string]llm.ParameterProperty{
				"reason": {Type: "string", Description: "why no query will be run"},
			}, []string{"reason"}),

		llm.NewToolDefinition(ToolClarifyIntent,
			"Pause the request and ask the user a clarifying question.",
			map[string]llm.ParameterProperty{
				"question": {Type: "string", Description: "the clarifying question to ask"},
			}, []string{"question"}),
	}
}

func buildingTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition(ToolComputeJoinPath,
			"Compute the join path from the plan's base entity to every selected entity.",
			nil, nil),

		llm.NewToolDefinition(ToolBuildSQL,
			"Render the finalized plan into SQL using the semantic-layer renderer.",
			nil, nil),

		llm.NewToolDefinition(ToolValidateSQL,
			"Run the syntax and semantic validators over the currently built SQL.",
			nil, nil),

		llm.NewToolDefinition(ToolFinalizeBuild,
			"Confirm the built SQL is ready to execute.",
			nil, nil),
	}
}

func executionTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition(ToolEstimateCost,
			"Run EXPLAIN on the built SQL and return a 0-100 cost score with recommendations.",
			nil, nil),

		llm.NewToolDefinition(ToolExecuteWithRepair,
			"Execute the built SQL under the execution guard's policy, retries, and auto-repair.",
			nil, nil),
	}
}

func reportingTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		llm.NewToolDefinition(ToolSanityCheck,
			"Scan the execution result for null rates, negative counts, and implausible percentages.",
			nil, nil),

		llm.NewToolDefinition(ToolFormatResults,
			"Render the execution result into a CSV artifact (base64 bytes, preview, truncation flag).",
			nil, nil),

		llm.NewToolDefinition(ToolExplainResults,
			"Record a narrative explanation of the results and a confidence score.",
			map[string]llm.ParameterProperty{
				"narrative":  {Type: "string", Description: "plain-language explanation of the results"},
				"confidence": {Type: "number", Description: "confidence in the result, 0.0-1.0"},
			}, []string{"narrative", "confidence"}),

		llm.NewToolDefinition(ToolFinalizeReport,
			"Finish the request and return the final narrative to the user.",
			nil, nil),
	}
}
