// Package graph resolves named dependency graphs into a deterministic
// initialization order.
package graph

import (
	"slices"

	errors2 "github.com/xraph/agata/errors"
)

// root is the synthetic node connected to every requested name. It cannot
// collide with a unit name because empty names are rejected at registration.
const root = ""

// Lookup returns the declared dependencies of name and whether name exists.
type Lookup func(name string) ([]string, bool)

// DependencyGraph holds nodes and their dependency edges.
type DependencyGraph struct {
	nodes map[string]*node
	order []string // Preserve insertion order
}

type node struct {
	name         string
	dependencies []string
}

// NewDependencyGraph creates a new dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*node),
		order: make([]string, 0),
	}
}

// AddNode adds a node with its dependencies. Adding a name twice keeps the
// first definition.
func (g *DependencyGraph) AddNode(name string, dependencies []string) {
	if _, exists := g.nodes[name]; exists {
		return
	}

	g.nodes[name] = &node{
		name:         name,
		dependencies: dependencies,
	}
	g.order = append(g.order, name)
}

// Len returns the number of nodes.
func (g *DependencyGraph) Len() int {
	return len(g.nodes)
}

// TopologicalSort returns nodes with every dependency before its dependents.
// Ties are broken by insertion order and then by declaration order of
// dependencies. Edges to names that are not nodes are ignored.
func (g *DependencyGraph) TopologicalSort(kind string) ([]string, error) {
	visited := make(map[string]bool, len(g.nodes))
	result := make([]string, 0, len(g.nodes))

	for _, name := range g.order {
		if err := g.visit(kind, name, visited, nil, &result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// visit performs DFS post-order traversal. path holds the names currently on
// the stack, which is also the cycle chain when a name repeats.
func (g *DependencyGraph) visit(kind, name string, visited map[string]bool, path []string, result *[]string) error {
	if visited[name] {
		return nil
	}

	if i := slices.Index(path, name); i >= 0 {
		return errors2.ErrCircularDependency(kind, cyclePath(path, name))
	}

	n := g.nodes[name]
	if n == nil {
		return nil
	}

	path = append(path, name)

	for _, dep := range n.dependencies {
		if err := g.visit(kind, dep, visited, path, result); err != nil {
			return err
		}
	}

	visited[name] = true
	*result = append(*result, name)

	return nil
}

// Resolve computes the transitive closure of roots using lookup and returns
// it with dependencies strictly before dependents. A repeated name on the
// current traversal path fails with a circular dependency error carrying the
// whole path; a name unknown to lookup fails with a not found error.
func Resolve(kind string, roots []string, lookup Lookup) ([]string, error) {
	g := NewDependencyGraph()
	g.AddNode(root, roots)

	done := make(map[string]bool)

	var discover func(name string, path []string) error
	discover = func(name string, path []string) error {
		if slices.Contains(path, name) {
			return errors2.ErrCircularDependency(kind, cyclePath(path, name))
		}

		if done[name] {
			return nil
		}

		deps, ok := lookup(name)
		if !ok {
			return errors2.ErrNotFound(kind, name)
		}

		g.AddNode(name, deps)
		path = append(path, name)

		for _, dep := range deps {
			if err := discover(dep, path); err != nil {
				return err
			}
		}

		done[name] = true

		return nil
	}

	for _, name := range roots {
		if err := discover(name, nil); err != nil {
			return nil, err
		}
	}

	order, err := g.TopologicalSort(kind)
	if err != nil {
		return nil, err
	}

	// root reaches every node and is inserted first, so it is always last.
	return order[:len(order)-1], nil
}

// cyclePath returns the full path followed by the repeated name, without the
// synthetic root.
func cyclePath(path []string, name string) []string {
	out := make([]string, 0, len(path)+1)
	for _, p := range path {
		if p != root {
			out = append(out, p)
		}
	}

	return append(out, name)
}
