package semantic

import (
	"bufio"
	"sort"
	"strings"

	"github.com/semlayer/agent-engine/pkg/models"
)

// CatalogHit is one scored catalog search result.
type CatalogHit struct {
	Card  models.EntityCard
	Score int
}

// SearchCatalog does a keyword-scored search over the catalog's name,
// description, and example questions, returning the top 5 hits. Backs the
// Planning phase's "search catalog" tool.
func SearchCatalog(catalog *models.Catalog, query string) []CatalogHit {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	var hits []CatalogHit
	for _, card := range catalog.Cards {
		score := scoreCard(card, terms)
		if score > 0 {
			hits = append(hits, CatalogHit{Card: card, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > 5 {
		hits = hits[:5]
	}
	return hits
}

func scoreCard(card models.EntityCard, terms []string) int {
	score := 0
	name := strings.ToLower(card.Name)
	desc := strings.ToLower(card.Description)

	for _, t := range terms {
		if strings.Contains(name, t) {
			score += 5
		}
		if strings.Contains(desc, t) {
			score += 2
		}
		for _, q := range card.ExampleQuestions {
			if strings.Contains(strings.ToLower(q), t) {
				score += 3
				break
			}
		}
		for _, tag := range card.Tags {
			if strings.EqualFold(tag, t) {
				score += 2
			}
		}
	}
	return score
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,?!:;\"'()")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// SchemaMatch is one line of a raw-descriptor substring hit.
type SchemaMatch struct {
	Entity string
	Line   int
	Text   string
}

// SearchSchema does a substring search over every loaded entity's raw
// descriptor text, returning file (entity) + line context. Backs the
// Planning phase's "search schema" tool.
func (s *Store) SearchSchema(query string) ([]SchemaMatch, error) {
	names, err := s.ListEntities()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []SchemaMatch
	for _, name := range names {
		raw, err := s.ReadRaw(name)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(strings.NewReader(raw))
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if strings.Contains(strings.ToLower(line), needle) {
				matches = append(matches, SchemaMatch{Entity: name, Line: lineNo, Text: strings.TrimSpace(line)})
			}
		}
	}
	return matches, nil
}

// ScanProperties hydrates only the requested dimension/measure/metric fields
// of an entity, following each field's SQL-dependency closure so the caller
// sees every macro-referenced field too. Backs the Planning phase's "scan
// entity properties" tool — selective hydration instead of the full
// descriptor.
func ScanProperties(e *models.Entity, fields []string) models.Entity {
	wanted := make(map[string]bool, len(fields))
	for _, f := range fields {
		wanted[f] = true
	}

	closure := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		closure[name] = true
		if d, ok := e.Dimension(name); ok {
			for _, dep := range dependencySurfaceTokens(d.SQL) {
				visit(dep)
			}
		}
	}
	for f := range wanted {
		visit(f)
	}

	out := models.Entity{Name: e.Name, Table: e.Table, Grain: e.Grain}
	for _, d := range e.Dimensions {
		if closure[d.Name] {
			out.Dimensions = append(out.Dimensions, d)
		}
	}
	for _, t := range e.TimeDimensions {
		if closure[t.Name] {
			out.TimeDimensions = append(out.TimeDimensions, t)
		}
	}
	for _, m := range e.Measures {
		if closure[m.Name] {
			out.Measures = append(out.Measures, m)
		}
	}
	for _, m := range e.Metrics {
		if closure[m.Name] {
			out.Metrics = append(out.Metrics, m)
		}
	}
	return out
}

// dependencySurfaceTokens extracts bare field names referenced by {FIELD}
// or {CUBE.FIELD} macros in a dimension's sql expression. A bare {CUBE}
// token (as in {CUBE}.col, a column reference) contributes nothing, and
// entity-qualified {ENTITY.FIELD} tokens, which cross entity boundaries,
// are not part of this entity's own closure.
func dependencySurfaceTokens(sqlExpr string) []string {
	var out []string
	for {
		start := strings.Index(sqlExpr, "{")
		if start < 0 {
			break
		}
		end := strings.Index(sqlExpr[start:], "}")
		if end < 0 {
			break
		}
		token := sqlExpr[start+1 : start+end]
		sqlExpr = sqlExpr[start+end+1:]

		if strings.EqualFold(token, "CUBE") {
			continue
		}
		if dot := strings.Index(token, "."); dot >= 0 {
			prefix := token[:dot]
			if strings.EqualFold(prefix, "CUBE") {
				out = append(out, token[dot+1:])
			}
			continue
		}
		out = append(out, token)
	}
	return out
}
