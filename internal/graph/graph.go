// Package graph materializes resolved call analyses into an explicit graph
// of function nodes and caller->callee edges, keyed by bare name like the
// analyses themselves.
package graph

import (
	"funcdiff/internal/callgraph"
)

// Node represents one function vertex.
type Node struct {
	Name      string `json:"name"`
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Edge represents a directed call relationship: From calls To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph manages nodes and their call edges.
type Graph struct {
	Nodes map[string]*Node
	Edges []Edge

	edgeSet map[Edge]struct{}
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		Nodes:   make(map[string]*Node),
		Edges:   []Edge{},
		edgeSet: make(map[Edge]struct{}),
	}
}

// AddNode inserts or updates the vertex for name. A node added with an empty
// file path (known only as an edge endpoint) is upgraded when the definition
// shows up later.
func (g *Graph) AddNode(n Node) {
	existing, ok := g.Nodes[n.Name]
	if ok && n.FilePath == "" {
		return
	}
	if ok && existing.FilePath == "" {
		*existing = n
		return
	}
	g.Nodes[n.Name] = &n
}

// AddEdge records a call edge, de-duplicated.
func (g *Graph) AddEdge(from, to string) {
	e := Edge{From: from, To: to}
	if _, ok := g.edgeSet[e]; ok {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.Edges = append(g.Edges, e)
}

// FromAnalyses builds the graph around a set of resolved targets: each
// target's callees and callers become vertices and edges. Functions outside
// the analyzed neighborhood do not appear.
func FromAnalyses(analyses map[string]*callgraph.FunctionCallAnalysis) *Graph {
	g := New()
	for _, a := range analyses {
		g.AddNode(Node{Name: a.FunctionName, FilePath: a.FilePath})
		for _, callee := range a.Callees {
			g.AddNode(Node{
				Name:      callee.Name,
				FilePath:  callee.FilePath,
				StartLine: callee.StartLine,
				EndLine:   callee.EndLine,
			})
			g.AddEdge(a.FunctionName, callee.Name)
		}
		for _, caller := range a.Callers {
			g.AddNode(Node{
				Name:      caller.Name,
				FilePath:  caller.FilePath,
				StartLine: caller.StartLine,
				EndLine:   caller.EndLine,
			})
			g.AddEdge(caller.Name, a.FunctionName)
		}
	}
	return g
}

// Callees returns all nodes the named function calls.
func (g *Graph) Callees(name string) []*Node {
	var out []*Node
	for _, edge := range g.Edges {
		if edge.From == name {
			if node, ok := g.Nodes[edge.To]; ok {
				out = append(out, node)
			}
		}
	}
	return out
}

// Callers returns all nodes that call the named function.
func (g *Graph) Callers(name string) []*Node {
	var out []*Node
	for _, edge := range g.Edges {
		if edge.To == name {
			if node, ok := g.Nodes[edge.From]; ok {
				out = append(out, node)
			}
		}
	}
	return out
}
