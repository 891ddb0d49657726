package warehouse

import "testing"

func TestScorePlan_SeqScanAddsHintAndScore(t *testing.T) {
	hints, score := scorePlan([]string{"Seq Scan on companies  (cost=0.00..10.00 rows=100)"}, 5)
	if score == 0 {
		t.Fatal("expected a non-zero score for a sequential scan")
	}
	found := false
	for _, h := range hints {
		if h == "sequential scan detected - consider an index if this table is large" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected seq scan hint, got %v", hints)
	}
}

func TestScorePlan_EfficientPlanHasNoHints(t *testing.T) {
	hints, score := scorePlan([]string{"Index Scan using companies_pkey on companies  (cost=0.29..8.30 rows=1)"}, 1)
	if score != 0 {
		t.Fatalf("expected zero score for an efficient plan, got %d", score)
	}
	if len(hints) != 1 || hints[0] != "plan looks efficient - no obvious optimization opportunities" {
		t.Fatalf("unexpected hints: %v", hints)
	}
}

func TestScorePlan_SlowExecutionAddsHint(t *testing.T) {
	hints, score := scorePlan([]string{"Index Scan using companies_pkey on companies"}, 1500)
	if score < 30 {
		t.Fatalf("expected score to include the slow-execution penalty, got %d", score)
	}
	found := false
	for _, h := range hints {
		if h == "query took 1500.00ms - review for optimization" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected slow-execution hint, got %v", hints)
	}
}

func TestScorePlan_ScoreIsCappedAt100(t *testing.T) {
	_, score := scorePlan([]string{
		"Seq Scan on companies",
		"Hash Join",
		"Nested Loop",
		"Sort Method: external merge",
		"Bitmap Heap Scan on opportunities",
	}, 5000)
	if score != 100 {
		t.Fatalf("expected score capped at 100, got %d", score)
	}
}

func TestPgTypeNameFromOID_KnownAndUnknown(t *testing.T) {
	cases := map[uint32]string{
		23:   "INT4",
		25:   "TEXT",
		1184: "TIMESTAMPTZ",
		9999: "UNKNOWN",
	}
	for oid, want := range cases {
		if got := pgTypeNameFromOID(oid); got != want {
			t.Errorf("pgTypeNameFromOID(%d) = %q, want %q", oid, got, want)
		}
	}
}
