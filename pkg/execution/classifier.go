package execution

import (
	"regexp"
	"strings"
)

// ErrorKind enumerates the classes §4.6.1 recognizes in a driver error
// message.
type ErrorKind string

const (
	ColumnNotFound  ErrorKind = "column_not_found"
	AmbiguousColumn ErrorKind = "ambiguous_column"
	Timeout         ErrorKind = "timeout"
	Opaque          ErrorKind = "opaque"
)

// Classification is the classifier's verdict plus whatever identifiers the
// message pattern captured.
type Classification struct {
	Kind        ErrorKind
	Identifiers []string
}

var (
	invalidIdentifierPattern = regexp.MustCompile(`(?i)invalid identifier '([^']+)'`)
	columnNotFoundPattern    = regexp.MustCompile(`(?i)\bcolumn\s+([A-Za-z_][A-Za-z0-9_.]*)\s+not found\b`)
	quotedIdentifierPattern  = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
)

// Classify inspects a driver error message and buckets it per §4.6.1:
// ColumnNotFound, AmbiguousColumn, Timeout, or Opaque.
func Classify(message string) Classification {
	lower := strings.ToLower(message)

	var missing []string
	for _, m := range invalidIdentifierPattern.FindAllStringSubmatch(message, -1) {
		missing = append(missing, m[1])
	}
	for _, m := range columnNotFoundPattern.FindAllStringSubmatch(message, -1) {
		missing = append(missing, m[1])
	}
	if len(missing) > 0 {
		return Classification{Kind: ColumnNotFound, Identifiers: dedupe(missing)}
	}

	if strings.Contains(lower, "ambiguous") && strings.Contains(lower, "column") {
		var ids []string
		for _, m := range quotedIdentifierPattern.FindAllStringSubmatch(message, -1) {
			if m[1] != "" {
				ids = append(ids, m[1])
			} else if m[2] != "" {
				ids = append(ids, m[2])
			}
		}
		return Classification{Kind: AmbiguousColumn, Identifiers: dedupe(ids)}
	}

	if strings.Contains(lower, "timeout") || strings.Contains(message, "Statement timeout") {
		return Classification{Kind: Timeout}
	}

	return Classification{Kind: Opaque}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
