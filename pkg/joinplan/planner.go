// Package joinplan computes a minimal join subgraph connecting a base
// entity to a set of required entities via breadth-first search over
// declared joins, and assigns deterministic table aliases.
package joinplan

import (
	"sort"
	"strconv"

	"github.com/semlayer/agent-engine/pkg/models"
)

// Registry is the minimal read-only view over loaded entities the planner
// needs. pkg/semantic.Store satisfies it.
type Registry interface {
	Get(name string) (*models.Entity, bool)
}

// edge is one directed traversal record: a join from one entity to another
// with the local/remote field names already in traversal order.
type edge struct {
	from, to     string
	fromField    string
	toField      string
	relationship models.Relationship
}

// Plan is the Join Planner's output: the deduplicated union of shortest
// paths from base to every required target, and the deterministic alias
// assignment for every entity it touches.
type Plan struct {
	Edges           []models.JoinGraphEdge
	AliasByEntity   map[string]string
	OrderedEntities []string
}

// ComputeJoinPath computes the minimal join subgraph from base to every
// entity in required (which must include base), using reg to resolve
// declared joins. required entities unreachable from base fail with a
// JoinError naming base and the target.
func ComputeJoinPath(base string, required []string, reg Registry) (*Plan, error) {
	graph, err := buildUndirectedGraph(required, reg)
	if err != nil {
		return nil, err
	}

	seenEdges := make(map[string]bool)
	var edges []models.JoinGraphEdge
	reachedEntities := map[string]bool{base: true}

	for _, target := range required {
		if target == base {
			continue
		}
		path, err := bfsPath(graph, base, target)
		if err != nil {
			return nil, err
		}
		for _, e := range path {
			key := e.from + "->" + e.to + ":" + e.fromField + "=" + e.toField
			if seenEdges[key] {
				continue
			}
			seenEdges[key] = true
			edges = append(edges, models.JoinGraphEdge{
				From:         e.from,
				To:           e.to,
				On:           models.JoinOn{From: e.fromField, To: e.toField},
				Relationship: e.relationship,
			})
			reachedEntities[e.to] = true
			reachedEntities[e.from] = true
		}
	}

	var others []string
	for name := range reachedEntities {
		if name != base {
			others = append(others, name)
		}
	}
	sort.Strings(others)

	aliasByEntity := map[string]string{base: "t0"}
	ordered := []string{base}
	for i, name := range others {
		aliasByEntity[name] = "t" + strconv.Itoa(i+1)
		ordered = append(ordered, name)
	}

	return &Plan{Edges: edges, AliasByEntity: aliasByEntity, OrderedEntities: ordered}, nil
}

// buildUndirectedGraph builds an adjacency list over declared joins for
// every entity reachable from required, contributing two directed records
// per declared edge (a→b, and b→a with fields swapped) so BFS can traverse
// either direction.
func buildUndirectedGraph(required []string, reg Registry) (map[string][]edge, error) {
	graph := make(map[string][]edge)
	visited := make(map[string]bool)

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true

		e, ok := reg.Get(name)
		if !ok {
			return &JoinError{Reason: "entity " + name + " not found in registry"}
		}
		for _, j := range e.Joins {
			graph[name] = append(graph[name], edge{
				from: name, to: j.TargetEntity,
				fromField: j.FromField, toField: j.ToField,
				relationship: j.Relationship,
			})
			graph[j.TargetEntity] = append(graph[j.TargetEntity], edge{
				from: j.TargetEntity, to: name,
				fromField: j.ToField, toField: j.FromField,
				relationship: j.Relationship,
			})
			if err := visit(j.TargetEntity); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range required {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return graph, nil
}

// bfsFrame records how a node was first reached during BFS: the edge
// traversed to get there and the predecessor node.
type bfsFrame struct {
	via  edge
	prev string
}

// bfsPath returns the ordered edge sequence of the shortest path from base
// to target, or a JoinError if target is unreachable.
func bfsPath(graph map[string][]edge, base, target string) ([]edge, error) {
	if base == target {
		return nil, nil
	}

	visited := map[string]bool{base: true}
	parent := make(map[string]bfsFrame)
	queue := []string{base}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		neighbors := graph[cur]
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].to < neighbors[j].to })

		for _, e := range neighbors {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			parent[e.to] = bfsFrame{via: e, prev: cur}
			if e.to == target {
				return reconstructPath(parent, base, target), nil
			}
			queue = append(queue, e.to)
		}
	}

	return nil, &JoinError{Reason: "no path from " + base + " to " + target, Base: base, Target: target}
}

func reconstructPath(parent map[string]bfsFrame, base, target string) []edge {
	var rev []edge
	cur := target
	for cur != base {
		f := parent[cur]
		rev = append(rev, f.via)
		cur = f.prev
	}
	out := make([]edge, len(rev))
	for i, e := range rev {
		out[len(rev)-1-i] = e
	}
	return out
}
