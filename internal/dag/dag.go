// Package dag provides the directed graph behind projection apply
// dependencies. Nodes are keyed by id and carry a typed payload; an edge from
// A to B means B depends on A.
package dag

import (
	"fmt"
	"maps"
	"slices"
)

// Graph is a directed graph that is expected to be acyclic. It is not safe
// for concurrent mutation; once built it may be read from many goroutines.
type Graph[T any] struct {
	data     map[string]T
	children map[string][]string // dependency -> dependents, insertion order
	parents  map[string][]string // dependent -> dependencies, insertion order
}

// NewGraph creates an empty graph.
func NewGraph[T any]() *Graph[T] {
	return &Graph[T]{
		data:     make(map[string]T),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a node, or replaces the payload of an existing one.
func (g *Graph[T]) AddNode(id string, data T) {
	g.data[id] = data
}

// AddEdge records that to depends on from. Duplicate edges are ignored.
func (g *Graph[T]) AddEdge(from, to string) error {
	if _, ok := g.data[from]; !ok {
		return fmt.Errorf("parent node %q does not exist", from)
	}
	if _, ok := g.data[to]; !ok {
		return fmt.Errorf("child node %q does not exist", to)
	}
	if from == to {
		return fmt.Errorf("self-loop detected: %s", from)
	}
	if !slices.Contains(g.children[from], to) {
		g.children[from] = append(g.children[from], to)
		g.parents[to] = append(g.parents[to], from)
	}
	return nil
}

// Node returns the payload of a node.
func (g *Graph[T]) Node(id string) (T, bool) {
	data, ok := g.data[id]
	return data, ok
}

// GetParents returns the direct dependencies of a node in insertion order.
func (g *Graph[T]) GetParents(id string) []string {
	return slices.Clone(g.parents[id])
}

// GetChildren returns the direct dependents of a node in insertion order.
func (g *Graph[T]) GetChildren(id string) []string {
	return slices.Clone(g.children[id])
}

// NodeCount returns the number of nodes.
func (g *Graph[T]) NodeCount() int {
	return len(g.data)
}

// EdgeCount returns the number of edges.
func (g *Graph[T]) EdgeCount() int {
	n := 0
	for _, to := range g.children {
		n += len(to)
	}
	return n
}

// HasCycle reports whether the graph contains a cycle and returns one cycle
// in edge direction, starting and ending with the same node. Nodes are
// searched in id order so the reported cycle is deterministic.
func (g *Graph[T]) HasCycle() (bool, []string) {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(g.data))
	via := make(map[string]string)
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = onStack
		for _, next := range g.children[id] {
			switch state[next] {
			case unvisited:
				via[next] = id
				if visit(next) {
					return true
				}
			case onStack:
				// Walk back from id to next, then flip into edge order.
				cycle = []string{next}
				for cur := id; cur != next; cur = via[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				slices.Reverse(cycle)
				return true
			}
		}
		state[id] = done
		return false
	}

	for _, id := range g.ids() {
		if state[id] == unvisited && visit(id) {
			return true, cycle
		}
	}
	return false, nil
}

// GetExecutionLevels groups nodes by depth. Level 0 holds nodes without
// dependencies; a node at level N depends only on nodes below N. Each level
// is sorted.
func (g *Graph[T]) GetExecutionLevels() ([][]string, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("cycle detected: %v", path)
	}

	depth := make(map[string]int, len(g.data))
	var level func(id string) int
	level = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, p := range g.parents[id] {
			d = max(d, level(p)+1)
		}
		depth[id] = d
		return d
	}

	levels := [][]string{}
	for _, id := range g.ids() {
		d := level(id)
		for len(levels) <= d {
			levels = append(levels, []string{})
		}
		levels[d] = append(levels[d], id)
	}
	return levels, nil
}

// GetUpstreamNodes returns every transitive dependency of a node, sorted.
func (g *Graph[T]) GetUpstreamNodes(id string) []string {
	return g.reach(id, g.parents)
}

// GetDownstreamNodes returns every transitive dependent of a node, sorted.
func (g *Graph[T]) GetDownstreamNodes(id string) []string {
	return g.reach(id, g.children)
}

func (g *Graph[T]) reach(id string, next map[string][]string) []string {
	seen := make(map[string]struct{})
	queue := slices.Clone(next[id])
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		queue = append(queue, next[cur]...)
	}
	return slices.Sorted(maps.Keys(seen))
}

func (g *Graph[T]) ids() []string {
	return slices.Sorted(maps.Keys(g.data))
}
