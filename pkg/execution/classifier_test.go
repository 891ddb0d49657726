package execution

import "testing"

func TestClassify_ColumnNotFound_InvalidIdentifier(t *testing.T) {
	c := Classify(`SQL compilation error: invalid identifier 'acct.revenu'`)
	if c.Kind != ColumnNotFound {
		t.Fatalf("expected ColumnNotFound, got %s", c.Kind)
	}
	if len(c.Identifiers) != 1 || c.Identifiers[0] != "acct.revenu" {
		t.Fatalf("unexpected identifiers: %v", c.Identifiers)
	}
}

func TestClassify_ColumnNotFound_ColumnNotFoundPhrase(t *testing.T) {
	c := Classify(`column companies.revenu not found`)
	if c.Kind != ColumnNotFound {
		t.Fatalf("expected ColumnNotFound, got %s", c.Kind)
	}
	if len(c.Identifiers) != 1 || c.Identifiers[0] != "companies.revenu" {
		t.Fatalf("unexpected identifiers: %v", c.Identifiers)
	}
}

func TestClassify_AmbiguousColumn(t *testing.T) {
	c := Classify(`SQL compilation error: ambiguous column name "id"`)
	if c.Kind != AmbiguousColumn {
		t.Fatalf("expected AmbiguousColumn, got %s", c.Kind)
	}
	if len(c.Identifiers) != 1 || c.Identifiers[0] != "id" {
		t.Fatalf("unexpected identifiers: %v", c.Identifiers)
	}
}

func TestClassify_Timeout(t *testing.T) {
	c := Classify(`Statement timeout: execution exceeded 20000ms`)
	if c.Kind != Timeout {
		t.Fatalf("expected Timeout, got %s", c.Kind)
	}
}

func TestClassify_Opaque(t *testing.T) {
	c := Classify(`out of memory`)
	if c.Kind != Opaque {
		t.Fatalf("expected Opaque, got %s", c.Kind)
	}
}

func TestClassify_DedupesIdentifiers(t *testing.T) {
	c := Classify(`invalid identifier 'x' ... invalid identifier 'x'`)
	if len(c.Identifiers) != 1 {
		t.Fatalf("expected dedup to 1 identifier, got %v", c.Identifiers)
	}
}
