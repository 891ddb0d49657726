package models

import "fmt"

// Relationship enumerates the supported join cardinalities between two entities.
type Relationship string

const (
	OneToOne   Relationship = "one_to_one"
	OneToMany  Relationship = "one_to_many"
	ManyToOne  Relationship = "many_to_one"
	ManyToMany Relationship = "many_to_many"
)

// MeasureType enumerates the supported aggregation recipes.
type MeasureType string

const (
	MeasureCount          MeasureType = "count"
	MeasureCountDistinct  MeasureType = "count_distinct"
	MeasureSum            MeasureType = "sum"
	MeasureAvg            MeasureType = "avg"
	MeasureMin            MeasureType = "min"
	MeasureMax            MeasureType = "max"
)

// Dimension is a named, typed column projection on an entity.
type Dimension struct {
	Name       string   `yaml:"name" json:"name"`
	SQL        string   `yaml:"sql" json:"sql"`
	Type       string   `yaml:"type" json:"type"`
	Aliases    []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	PrimaryKey bool     `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
}

// TimeDimension is a Dimension typed "time", used as an anchor for range predicates.
type TimeDimension struct {
	Name    string   `yaml:"name" json:"name"`
	SQL     string   `yaml:"sql" json:"sql"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Measure is a named aggregation recipe on an entity.
type Measure struct {
	Name string      `yaml:"name" json:"name"`
	Type MeasureType `yaml:"type" json:"type"`
	SQL  string      `yaml:"sql,omitempty" json:"sql,omitempty"`
}

// MetricFilter is a predicate carried on an atomic metric.
type MetricFilter struct {
	Field    string   `yaml:"field" json:"field"`
	Operator string   `yaml:"operator" json:"operator"`
	Values   []string `yaml:"values" json:"values"`
}

// Metric is a named, documented wrapper around a single measure.
type Metric struct {
	Name       string         `yaml:"name" json:"name"`
	Type       string         `yaml:"type" json:"type"` // always "atomic"
	Measure    string         `yaml:"measure" json:"measure"`
	AnchorDate string         `yaml:"anchor_date,omitempty" json:"anchor_date,omitempty"`
	Filters    []MetricFilter `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// Join is an outgoing edge from the owning entity to another entity.
type Join struct {
	TargetEntity string       `yaml:"target_entity" json:"target_entity"`
	Relationship Relationship `yaml:"relationship" json:"relationship"`
	FromField    string       `yaml:"from_field" json:"from_field"`
	ToField      string       `yaml:"to_field" json:"to_field"`
}

// Entity describes a single analytical table: its columns, joins, and
// pre-defined aggregates. The index fields are derived at load time and
// are never serialized.
type Entity struct {
	Name           string          `yaml:"name" json:"name"`
	Table          string          `yaml:"table" json:"table"`
	Grain          string          `yaml:"grain,omitempty" json:"grain,omitempty"`
	Description    string          `yaml:"description,omitempty" json:"description,omitempty"`
	Aliases        []string        `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Dimensions     []Dimension     `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	TimeDimensions []TimeDimension `yaml:"time_dimensions,omitempty" json:"time_dimensions,omitempty"`
	Measures       []Measure       `yaml:"measures,omitempty" json:"measures,omitempty"`
	Metrics        []Metric        `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Joins          []Join          `yaml:"joins,omitempty" json:"joins,omitempty"`
	CommonFilters  []string        `yaml:"common_filters,omitempty" json:"common_filters,omitempty"`

	dimByName   map[string]*Dimension     `yaml:"-" json:"-"`
	timeByName  map[string]*TimeDimension `yaml:"-" json:"-"`
	measureBy   map[string]*Measure       `yaml:"-" json:"-"`
	metricBy    map[string]*Metric        `yaml:"-" json:"-"`
	aliasToName map[string]string         `yaml:"-" json:"-"`
	nameToAlias map[string][]string       `yaml:"-" json:"-"`
	indexed     bool                      `yaml:"-" json:"-"`
}

// BuildIndexes computes the entity's derived lookup structures: dimension,
// time-dimension, measure, and metric indexes by canonical name, and the
// alias<->canonical bijection. It is idempotent.
func (e *Entity) BuildIndexes() error {
	e.dimByName = make(map[string]*Dimension, len(e.Dimensions))
	e.timeByName = make(map[string]*TimeDimension, len(e.TimeDimensions))
	e.measureBy = make(map[string]*Measure, len(e.Measures))
	e.metricBy = make(map[string]*Metric, len(e.Metrics))
	e.aliasToName = make(map[string]string)
	e.nameToAlias = make(map[string][]string)

	register := func(canonical string, aliases []string) error {
		if existing, ok := e.aliasToName[canonical]; ok && existing != canonical {
			return fmt.Errorf("entity %q: name %q collides with alias of %q", e.Name, canonical, existing)
		}
		e.aliasToName[canonical] = canonical
		for _, a := range aliases {
			if owner, ok := e.aliasToName[a]; ok && owner != canonical {
				return fmt.Errorf("entity %q: alias %q already bound to %q", e.Name, a, owner)
			}
			e.aliasToName[a] = canonical
			e.nameToAlias[canonical] = append(e.nameToAlias[canonical], a)
		}
		return nil
	}

	for i := range e.Dimensions {
		d := &e.Dimensions[i]
		e.dimByName[d.Name] = d
		if err := register(d.Name, d.Aliases); err != nil {
			return err
		}
	}
	for i := range e.TimeDimensions {
		t := &e.TimeDimensions[i]
		e.timeByName[t.Name] = t
		if err := register(t.Name, t.Aliases); err != nil {
			return err
		}
	}
	for i := range e.Measures {
		m := &e.Measures[i]
		e.measureBy[m.Name] = m
	}
	for i := range e.Metrics {
		m := &e.Metrics[i]
		e.metricBy[m.Name] = m
	}

	e.indexed = true
	return nil
}

// ResolveCanonical resolves a surface name (canonical or alias) on this entity
// to its canonical dimension/time-dimension name. Returns ok=false if unknown.
func (e *Entity) ResolveCanonical(surface string) (string, bool) {
	canonical, ok := e.aliasToName[surface]
	return canonical, ok
}

// Dimension looks up a dimension by canonical name or alias.
func (e *Entity) Dimension(surface string) (*Dimension, bool) {
	canonical, ok := e.ResolveCanonical(surface)
	if !ok {
		return nil, false
	}
	d, ok := e.dimByName[canonical]
	return d, ok
}

// TimeDimension looks up a time dimension by canonical name or alias.
func (e *Entity) TimeDimension(surface string) (*TimeDimension, bool) {
	canonical, ok := e.ResolveCanonical(surface)
	if !ok {
		return nil, false
	}
	t, ok := e.timeByName[canonical]
	return t, ok
}

// FirstTimeDimension returns the entity's first declared time dimension, used
// as the default anchor for time-range predicates and synthesized metrics.
func (e *Entity) FirstTimeDimension() (*TimeDimension, bool) {
	if len(e.TimeDimensions) == 0 {
		return nil, false
	}
	return &e.TimeDimensions[0], true
}

// Measure looks up a measure by exact canonical name (measures carry no aliases).
func (e *Entity) Measure(name string) (*Measure, bool) {
	m, ok := e.measureBy[name]
	return m, ok
}

// Metric looks up a metric by exact canonical name (metrics carry no aliases).
func (e *Entity) Metric(name string) (*Metric, bool) {
	m, ok := e.metricBy[name]
	return m, ok
}

// AnyField reports whether surface resolves to a dimension or time dimension.
func (e *Entity) AnyField(surface string) (sql string, ok bool) {
	if d, ok := e.Dimension(surface); ok {
		return d.SQL, true
	}
	if t, ok := e.TimeDimension(surface); ok {
		return t.SQL, true
	}
	return "", false
}

// Validate checks the structural invariants from the entity descriptor spec:
// join locality, metric/measure/anchor consistency, and the measure SQL
// requirement (count needs none, all others require one).
func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity: missing name")
	}
	if e.Table == "" {
		return fmt.Errorf("entity %q: missing table", e.Name)
	}
	if !e.indexed {
		if err := e.BuildIndexes(); err != nil {
			return err
		}
	}

	for _, m := range e.Measures {
		if m.Type != MeasureCount && m.SQL == "" {
			return fmt.Errorf("entity %q: measure %q of type %q requires sql", e.Name, m.Name, m.Type)
		}
	}

	for _, m := range e.Metrics {
		measure, ok := e.Measure(m.Measure)
		if !ok {
			return fmt.Errorf("entity %q: metric %q references unknown measure %q", e.Name, m.Name, m.Measure)
		}
		_ = measure
		if m.AnchorDate != "" {
			if _, ok := e.TimeDimension(m.AnchorDate); !ok {
				return fmt.Errorf("entity %q: metric %q anchor_date %q is not a declared time dimension", e.Name, m.Name, m.AnchorDate)
			}
		}
	}

	for _, j := range e.Joins {
		if _, ok := e.Dimension(j.FromField); !ok {
			return fmt.Errorf("entity %q: join to %q has from_field %q which is not a declared dimension", e.Name, j.TargetEntity, j.FromField)
		}
	}

	return nil
}
