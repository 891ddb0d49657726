// Package sqlvalidate implements the Validator component: a static syntax
// scan and a semantic scan against a loaded entity registry.
package sqlvalidate

import (
	"fmt"
	"regexp"
	"strings"

	sqlutil "github.com/semlayer/agent-engine/pkg/sql"
)

// disallowedVerbs are rejected case-insensitively, word-bounded, anywhere in
// the statement. Mirrors the Execution Guard's preflight policy (§4.6) so
// the same list backs both defenses.
var disallowedVerbs = []string{
	"DROP", "TRUNCATE", "ALTER", "CREATE", "INSERT", "UPDATE", "DELETE",
	"MERGE", "COPY", "PUT", "GET",
}

var disallowedVerbPattern = buildDisallowedVerbPattern()

func buildDisallowedVerbPattern() *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(disallowedVerbs, "|") + `)\b`)
}

// Issue is one syntax or semantic scan finding.
type Issue struct {
	Code    string
	Message string
}

// Result is the outcome of a syntax or semantic scan.
type Result struct {
	OK     bool
	Issues []Issue
}

// CheckSyntax performs the static scan: single statement, disallowed verbs,
// balanced block comments.
func CheckSyntax(sql string) Result {
	var issues []Issue

	normalized := sqlutil.ValidateAndNormalize(sql)
	if normalized.Error != nil {
		issues = append(issues, Issue{Code: "multiple_statements", Message: normalized.Error.Error()})
	}

	if m := disallowedVerbPattern.FindString(sql); m != "" {
		issues = append(issues, Issue{
			Code:    "disallowed_verb",
			Message: fmt.Sprintf("disallowed verb %q is not permitted in generated SQL", strings.ToUpper(m)),
		})
	}

	if !hasBalancedBlockComments(sql) {
		issues = append(issues, Issue{Code: "unbalanced_comment", Message: "SQL contains an unterminated block comment"})
	}

	return Result{OK: len(issues) == 0, Issues: issues}
}

// hasBalancedBlockComments reports whether every /* is matched by a later */,
// ignoring markers inside string literals.
func hasBalancedBlockComments(sql string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateComment
	)

	state := stateNormal
	depth := 0
	runes := []rune(sql)

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch state {
		case stateNormal:
			switch {
			case c == '\'':
				state = stateSingleQuote
			case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
				depth++
				state = stateComment
				i++
			}
		case stateSingleQuote:
			if c == '\'' {
				state = stateNormal
			}
		case stateComment:
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				depth--
				i++
				if depth == 0 {
					state = stateNormal
				}
			}
		}
	}

	return depth == 0
}
