// Package semantic implements the Semantic Store: it loads and validates
// entity descriptors and a top-level catalog from a file tree, caches
// parsed entities for process lifetime, and builds the per-entity indexes
// the macro expander, join planner, and renderer depend on.
package semantic

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/semlayer/agent-engine/pkg/models"
)

// Store loads entity descriptors and a catalog document from a directory
// tree, one file per entity, memoizing parsed results for the process
// lifetime. Caches are invalidated only by an explicit Reset.
type Store struct {
	entitiesDir string
	catalogPath string

	mu      sync.RWMutex
	cache   map[string]*models.Entity
	raw     map[string]string
	catalog *models.Catalog
}

// New creates a Store rooted at entitiesDir, reading the catalog from
// catalogPath.
func New(entitiesDir, catalogPath string) *Store {
	return &Store{
		entitiesDir: entitiesDir,
		catalogPath: catalogPath,
		cache:       make(map[string]*models.Entity),
		raw:         make(map[string]string),
	}
}

// ListEntities enumerates descriptor names from the entities directory,
// one file per entity, named "<entity>.yaml" or "<entity>.yml".
func (s *Store) ListEntities() ([]string, error) {
	entries, err := os.ReadDir(s.entitiesDir)
	if err != nil {
		return nil, &DescriptorError{Reason: fmt.Sprintf("read entities directory %q: %v", s.entitiesDir, err)}
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ext))
	}
	sort.Strings(names)
	return names, nil
}

// LoadCatalog parses and caches the top-level catalog document. Fails if the
// file is missing or structurally invalid.
func (s *Store) LoadCatalog() (*models.Catalog, error) {
	s.mu.RLock()
	if s.catalog != nil {
		c := s.catalog
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(s.catalogPath)
	if err != nil {
		return nil, &DescriptorError{Reason: fmt.Sprintf("read catalog %q: %v", s.catalogPath, err)}
	}

	var doc models.CatalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DescriptorError{Reason: fmt.Sprintf("parse catalog %q: %v", s.catalogPath, err)}
	}
	if doc.Version == "" {
		return nil, &DescriptorError{Reason: fmt.Sprintf("catalog %q: missing version", s.catalogPath)}
	}

	catalog := &models.Catalog{Version: doc.Version, Cards: doc.Entities}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()

	return catalog, nil
}

// LoadEntity parses, validates, and caches the descriptor for name. Fails
// with a descriptive error on missing file, parse error, schema violation,
// or invariant violation; the cache is never populated with a partially
// valid entity.
func (s *Store) LoadEntity(name string) (*models.Entity, error) {
	s.mu.RLock()
	if e, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return e, nil
	}
	s.mu.RUnlock()

	raw, path, err := s.readDescriptorFile(name)
	if err != nil {
		return nil, err
	}

	var entity models.Entity
	if err := yaml.Unmarshal([]byte(raw), &entity); err != nil {
		return nil, &DescriptorError{Entity: name, Reason: fmt.Sprintf("parse %q: %v", path, err)}
	}
	if entity.Name == "" {
		entity.Name = name
	}
	if entity.Name != name {
		return nil, &DescriptorError{Entity: name, Reason: fmt.Sprintf("descriptor name %q does not match file name %q", entity.Name, name)}
	}

	if err := entity.BuildIndexes(); err != nil {
		return nil, &DescriptorError{Entity: name, Reason: err.Error()}
	}
	if err := entity.Validate(); err != nil {
		return nil, &DescriptorError{Entity: name, Reason: err.Error()}
	}

	s.mu.Lock()
	s.cache[name] = &entity
	s.raw[name] = raw
	s.mu.Unlock()

	return &entity, nil
}

// LoadMany loads several entities, short-circuiting on the first failure.
func (s *Store) LoadMany(names []string) (map[string]*models.Entity, error) {
	out := make(map[string]*models.Entity, len(names))
	for _, name := range names {
		e, err := s.LoadEntity(name)
		if err != nil {
			return nil, err
		}
		out[name] = e
	}
	return out, nil
}

// ReadRaw returns the raw descriptor text for name, for prompt injection.
// Loads (and validates) the entity first if not already cached.
func (s *Store) ReadRaw(name string) (string, error) {
	s.mu.RLock()
	if raw, ok := s.raw[name]; ok {
		s.mu.RUnlock()
		return raw, nil
	}
	s.mu.RUnlock()

	if _, err := s.LoadEntity(name); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.raw[name], nil
}

// Get implements sqlvalidate.Registry and joinplan's registry contract: it
// loads the entity on demand rather than requiring a prior LoadEntity call,
// folding "not found" and "invalid" into a single boolean.
func (s *Store) Get(name string) (*models.Entity, bool) {
	e, err := s.LoadEntity(name)
	if err != nil {
		return nil, false
	}
	return e, true
}

// Reset clears the entity and catalog caches. The only supported
// invalidation path per the Semantic Store's lifecycle contract.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*models.Entity)
	s.raw = make(map[string]string)
	s.catalog = nil
}

func (s *Store) readDescriptorFile(name string) (raw string, path string, err error) {
	for _, ext := range []string{".yaml", ".yml"} {
		p := filepath.Join(s.entitiesDir, name+ext)
		data, readErr := os.ReadFile(p)
		if readErr == nil {
			return string(data), p, nil
		}
		if !os.IsNotExist(readErr) {
			return "", p, &DescriptorError{Entity: name, Reason: fmt.Sprintf("read %q: %v", p, readErr)}
		}
	}
	return "", "", &DescriptorError{Entity: name, Reason: "descriptor file not found"}
}
