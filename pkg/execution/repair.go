package execution

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/semlayer/agent-engine/pkg/models"
)

// Registry is the minimal read-only view over loaded entities repair needs.
type Registry interface {
	Get(name string) (*models.Entity, bool)
}

// Repair attempts to produce a corrected SQL string for a classified
// failure, per §4.6.2. ok is false when no fix could be found (the caller
// should give up on this repair attempt).
func Repair(class Classification, sqlText string, aliasByEntity map[string]string, reg Registry) (repaired string, reason string, ok bool) {
	switch class.Kind {
	case ColumnNotFound:
		return repairColumnNotFound(class.Identifiers, sqlText, aliasByEntity, reg)
	case AmbiguousColumn:
		return repairAmbiguousColumn(class.Identifiers, sqlText, aliasByEntity, reg)
	case Timeout:
		return repairTimeout(sqlText), "appended LIMIT 1001 and dropped a trailing ORDER BY after a timeout", true
	default:
		return sqlText, "", false
	}
}

// repairColumnNotFound tries, for each missing identifier, to either
// re-qualify an entity.col reference against the computed join path, or
// fuzzy-match it against every loaded entity's dimensions and aliases.
func repairColumnNotFound(identifiers []string, sqlText string, aliasByEntity map[string]string, reg Registry) (string, string, bool) {
	current := sqlText
	var reasons []string

	for _, ident := range identifiers {
		replacement, found := resolveMissingIdentifier(ident, aliasByEntity, reg)
		if !found {
			continue
		}
		next := substituteIdentifier(current, ident, replacement)
		if next != current {
			current = next
			reasons = append(reasons, fmt.Sprintf("%q -> %s", ident, replacement))
		}
	}

	if len(reasons) == 0 {
		return sqlText, "", false
	}
	return current, "qualified or fuzzy-matched unresolved identifiers: " + strings.Join(reasons, ", "), true
}

// resolveMissingIdentifier first tries entity.col qualification against the
// join path, then falls back to a Levenshtein fuzzy match across every
// loaded entity's dimensions and aliases.
func resolveMissingIdentifier(ident string, aliasByEntity map[string]string, reg Registry) (string, bool) {
	if dot := strings.LastIndex(ident, "."); dot >= 0 {
		entityName, col := ident[:dot], ident[dot+1:]
		if alias, ok := aliasByEntity[entityName]; ok {
			if e, ok := reg.Get(entityName); ok {
				if canonical, ok := e.ResolveCanonical(col); ok {
					return fmt.Sprintf(`%s."%s"`, alias, canonical), true
				}
			}
		}
	}

	bareCol := ident
	if dot := strings.LastIndex(ident, "."); dot >= 0 {
		bareCol = ident[dot+1:]
	}

	threshold := func(s string) int {
		t := int(math.Ceil(0.3 * float64(len(s))))
		if t > 3 {
			t = 3
		}
		return t
	}(bareCol)

	var bestEntity, bestAlias, bestCanonical string
	bestDist := threshold + 1

	for entityName, alias := range aliasByEntity {
		e, ok := reg.Get(entityName)
		if !ok {
			continue
		}
		for _, d := range e.Dimensions {
			candidates := append([]string{d.Name}, d.Aliases...)
			for _, c := range candidates {
				dist := levenshtein.ComputeDistance(strings.ToLower(bareCol), strings.ToLower(c))
				if dist <= threshold && dist < bestDist {
					bestDist = dist
					bestEntity, bestAlias, bestCanonical = entityName, alias, d.Name
				}
			}
		}
		for _, td := range e.TimeDimensions {
			candidates := append([]string{td.Name}, td.Aliases...)
			for _, c := range candidates {
				dist := levenshtein.ComputeDistance(strings.ToLower(bareCol), strings.ToLower(c))
				if dist <= threshold && dist < bestDist {
					bestDist = dist
					bestEntity, bestAlias, bestCanonical = entityName, alias, td.Name
				}
			}
		}
	}

	if bestEntity == "" {
		return "", false
	}
	return fmt.Sprintf(`%s."%s"`, bestAlias, bestCanonical), true
}

// repairAmbiguousColumn qualifies each ambiguous identifier with the alias
// of its unique owning entity among loaded entities, skipping any
// identifier owned by more than one.
func repairAmbiguousColumn(identifiers []string, sqlText string, aliasByEntity map[string]string, reg Registry) (string, string, bool) {
	current := sqlText
	var reasons []string

	for _, ident := range identifiers {
		var owners []string
		for entityName, alias := range aliasByEntity {
			e, ok := reg.Get(entityName)
			if !ok {
				continue
			}
			if _, ok := e.ResolveCanonical(ident); ok {
				owners = append(owners, alias)
			}
		}
		if len(owners) != 1 {
			continue
		}
		replacement := fmt.Sprintf(`%s."%s"`, owners[0], ident)
		next := substituteIdentifier(current, ident, replacement)
		if next != current {
			current = next
			reasons = append(reasons, fmt.Sprintf("%q -> %s", ident, replacement))
		}
	}

	if len(reasons) == 0 {
		return sqlText, "", false
	}
	return current, "qualified unambiguous owner for: " + strings.Join(reasons, ", "), true
}

var trailingOrderByPattern = regexp.MustCompile(`(?is)\s+ORDER\s+BY\s+[^;]*?(\s+LIMIT\s+\d+)?(\s*;?\s*)$`)
var limitPattern = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\b`)

// repairTimeout drops a trailing ORDER BY (a common cause of expensive
// sorts) and ensures a LIMIT clause is present.
func repairTimeout(sqlText string) string {
	next := trailingOrderByPattern.ReplaceAllString(sqlText, "${1}${2}")
	next = strings.TrimRight(next, " \n\t")
	if !limitPattern.MatchString(next) {
		next = strings.TrimRight(next, ";")
		next += "\nLIMIT 1001"
	}
	return next
}

// substituteIdentifier replaces whole-word occurrences of ident with
// replacement, skipping occurrences inside single- or double-quoted string
// literals.
func substituteIdentifier(sqlText, ident, replacement string) string {
	pattern := regexp.MustCompile(`(^|[^\w."'])` + regexp.QuoteMeta(ident) + `($|[^\w."'])`)

	var b strings.Builder
	inSingle, inDouble := false, false
	i := 0
	for i < len(sqlText) {
		c := sqlText[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteByte(c)
			i++
		case c == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteByte(c)
			i++
		case !inSingle && !inDouble:
			rest := sqlText[i:]
			// The pattern's ^ matches at any offset of rest, so check the
			// byte before i for a word boundary here.
			prevOK := true
			if i > 0 {
				p := sqlText[i-1]
				prevOK = !(p == '_' || p == '.' || p == '"' || p == '\'' || ('0' <= p && p <= '9') || ('a' <= p|0x20 && p|0x20 <= 'z'))
			}
			if loc := pattern.FindStringIndex(rest); prevOK && loc != nil && loc[0] == 0 {
				match := rest[:loc[1]]
				b.WriteString(strings.Replace(match, ident, replacement, 1))
				i += loc[1]
			} else {
				b.WriteByte(c)
				i++
			}
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}
