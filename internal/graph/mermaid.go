package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var unsafeMermaid = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Mermaid renders the call graph as a top-down flowchart. Output is sorted so
// the same graph always renders the same text.
func (g *Graph) Mermaid() string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		node := g.Nodes[name]
		label := name
		if node.FilePath != "" {
			label = fmt.Sprintf("%s<br/>%s", name, node.FilePath)
		}
		sb.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", mermaidID(name), label))
	}

	edges := make([]Edge, len(g.Edges))
	copy(edges, g.Edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", mermaidID(e.From), mermaidID(e.To)))
	}

	return sb.String()
}

func mermaidID(name string) string {
	return unsafeMermaid.ReplaceAllString(name, "_")
}
