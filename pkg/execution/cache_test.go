package execution

import (
	"testing"
	"time"

	"github.com/semlayer/agent-engine/pkg/models"
)

func TestResultCache_PutGet(t *testing.T) {
	c := newResultCache(5*time.Minute, 100)
	now := time.Now()
	c.put("select 1", &models.CachedResult{Rows: []map[string]any{{"a": 1}}, CachedAt: now})

	got, ok := c.get("select 1", now)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got.Rows))
	}
}

func TestResultCache_ExpiresOnLookup(t *testing.T) {
	c := newResultCache(1*time.Minute, 100)
	now := time.Now()
	c.put("select 1", &models.CachedResult{CachedAt: now})

	_, ok := c.get("select 1", now.Add(2*time.Minute))
	if ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.size() != 0 {
		t.Fatalf("expected expired entry evicted, size=%d", c.size())
	}
}

func TestResultCache_EvictsOldestOnCapacity(t *testing.T) {
	c := newResultCache(5*time.Minute, 2)
	now := time.Now()
	c.put("a", &models.CachedResult{CachedAt: now})
	c.put("b", &models.CachedResult{CachedAt: now})
	c.put("c", &models.CachedResult{CachedAt: now})

	if _, ok := c.get("a", now); ok {
		t.Fatal("expected oldest entry \"a\" to be evicted")
	}
	if _, ok := c.get("b", now); !ok {
		t.Fatal("expected \"b\" to still be cached")
	}
	if _, ok := c.get("c", now); !ok {
		t.Fatal("expected \"c\" to still be cached")
	}
	if c.size() != 2 {
		t.Fatalf("expected cache size capped at 2, got %d", c.size())
	}
}

func TestResultCache_KeyIsExactSQLString(t *testing.T) {
	c := newResultCache(5*time.Minute, 100)
	now := time.Now()
	c.put("SELECT 1", &models.CachedResult{CachedAt: now})

	if _, ok := c.get("select 1", now); ok {
		t.Fatal("cache key must be exact, case-sensitive match")
	}
}
