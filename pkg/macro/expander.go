// Package macro resolves templated field references in SQL snippets
// ({CUBE}.col, {field}, {entity.field}) against the semantic model, with
// cycle detection over the expansion path.
package macro

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/semlayer/agent-engine/pkg/models"
)

// Registry is the minimal read-only view over loaded entities the expander
// needs. pkg/semantic.Store satisfies it.
type Registry interface {
	Get(name string) (*models.Entity, bool)
}

// Context carries the state the expander needs per call: the entity the
// expression is being expanded in, and the alias assigned to every entity
// reachable in the current plan.
type Context struct {
	CurrentEntity string
	AliasByEntity map[string]string
	Registry      Registry
}

var tokenPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// cubeColumnPattern matches an exact simple {CUBE}.COL expression.
var cubeColumnPattern = regexp.MustCompile(`(?i)^\{CUBE\}\.(\w+)$`)

// Expand resolves every macro token in expr against ctx, recursively
// expanding referenced dimensions' own sql, and returns qualified SQL.
// Detects cycles via a stack of "entity.field" keys along the current
// expansion path.
func Expand(expr string, ctx Context) (string, error) {
	return expandWithStack(expr, ctx, nil)
}

func expandWithStack(expr string, ctx Context, stack []string) (string, error) {
	var outErr error
	result := tokenPattern.ReplaceAllStringFunc(expr, func(tok string) string {
		if outErr != nil {
			return tok
		}
		inner := tok[1 : len(tok)-1]
		expanded, err := expandToken(inner, ctx, stack)
		if err != nil {
			outErr = err
			return tok
		}
		return expanded
	})
	if outErr != nil {
		return "", outErr
	}
	return result, nil
}

// expandToken resolves one token body (without braces): CUBE (the current
// entity's alias, as in {CUBE}.col), CUBE.FIELD, FIELD, or ENTITY.FIELD.
func expandToken(token string, ctx Context, stack []string) (string, error) {
	if strings.EqualFold(token, "CUBE") {
		return ctx.AliasByEntity[ctx.CurrentEntity], nil
	}
	entityName, field, dotted := splitToken(token)

	var targetEntity string
	switch {
	case !dotted:
		targetEntity = ctx.CurrentEntity
		field = token
	case strings.EqualFold(entityName, "CUBE"):
		targetEntity = ctx.CurrentEntity
	default:
		if _, ok := ctx.AliasByEntity[entityName]; !ok {
			return "", &MacroError{Kind: "unknown_entity", Detail: fmt.Sprintf("entity %q is not in the current alias set", entityName)}
		}
		targetEntity = entityName
	}

	entity, ok := ctx.Registry.Get(targetEntity)
	if !ok {
		return "", &MacroError{Kind: "unknown_entity", Detail: fmt.Sprintf("entity %q not found", targetEntity)}
	}

	key := targetEntity + "." + field
	for _, seen := range stack {
		if seen == key {
			return "", &MacroError{Kind: "cyclic_expansion", Detail: fmt.Sprintf("cyclic expansion detected at %q", key)}
		}
	}

	fieldSQL, ok := entity.AnyField(field)
	if !ok {
		return "", &MacroError{Kind: "field_not_found", Detail: fmt.Sprintf("field %q not found on entity %q", field, targetEntity)}
	}

	alias := ctx.AliasByEntity[targetEntity]
	if alias == "" {
		alias = ctx.AliasByEntity[ctx.CurrentEntity]
	}

	if qualifier, simpleCol, isSimple := asSimpleColumn(fieldSQL); isSimple {
		if !strings.EqualFold(qualifier, "CUBE") {
			qualAlias, ok := ctx.AliasByEntity[qualifier]
			if !ok {
				return "", &MacroError{Kind: "unknown_entity", Detail: fmt.Sprintf("entity %q is not in the current alias set", qualifier)}
			}
			alias = qualAlias
		}
		return alias + "." + simpleCol, nil
	}

	// Recurse into the referenced dimension's own sql, in its entity's context.
	nextCtx := Context{CurrentEntity: targetEntity, AliasByEntity: ctx.AliasByEntity, Registry: ctx.Registry}
	return expandWithStack(fieldSQL, nextCtx, append(stack, key))
}

// asSimpleColumn reports whether sql is a bare {CUBE}.COL or {E.COL} token
// with nothing else around it, returning the qualifier ("CUBE" or E) and the
// column name if so.
func asSimpleColumn(sql string) (string, string, bool) {
	trimmed := strings.TrimSpace(sql)
	if m := cubeColumnPattern.FindStringSubmatch(trimmed); m != nil {
		return "CUBE", m[1], true
	}
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return "", "", false
	}
	inner := trimmed[1 : len(trimmed)-1]
	if strings.ContainsAny(inner, "{}") {
		return "", "", false
	}
	qualifier, field, dotted := splitToken(inner)
	if !dotted {
		return "", "", false
	}
	return qualifier, field, true
}

func splitToken(token string) (entity, field string, dotted bool) {
	idx := strings.Index(token, ".")
	if idx < 0 {
		return "", token, false
	}
	return token[:idx], token[idx+1:], true
}

// QualifySimpleColumn is used by the renderer for join predicates. Unlike
// Expand, it does not resolve a field name against an entity — it requires
// its input to already be an exact simple token ({CUBE}.COL or {E.COL}, the
// same shape a dimension's own sql must have to qualify as "simple" in
// Expand) and emits alias."COL" with the identifier double-quoted.
func QualifySimpleColumn(token string, ctx Context) (string, error) {
	trimmed := strings.TrimSpace(token)
	if m := cubeColumnPattern.FindStringSubmatch(trimmed); m != nil {
		return ctx.AliasByEntity[ctx.CurrentEntity] + `."` + m[1] + `"`, nil
	}
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return "", &MacroError{Kind: "field_not_found", Detail: fmt.Sprintf("%q is not a simple macro token", token)}
	}
	inner := trimmed[1 : len(trimmed)-1]
	if strings.ContainsAny(inner, "{}") {
		return "", &MacroError{Kind: "field_not_found", Detail: fmt.Sprintf("%q is not a simple macro token", token)}
	}

	entityName, col, dotted := splitToken(inner)
	if !dotted {
		return "", &MacroError{Kind: "field_not_found", Detail: fmt.Sprintf("%q is not qualified with CUBE or an entity", token)}
	}

	targetEntity := ctx.CurrentEntity
	if !strings.EqualFold(entityName, "CUBE") {
		if _, ok := ctx.AliasByEntity[entityName]; !ok {
			return "", &MacroError{Kind: "unknown_entity", Detail: fmt.Sprintf("entity %q is not in the current alias set", entityName)}
		}
		targetEntity = entityName
	}

	alias := ctx.AliasByEntity[targetEntity]
	return alias + `."` + col + `"`, nil
}
