package graph

import "sort"

// Degree summarizes one node's connectivity.
type Degree struct {
	Name   string `json:"name"`
	FanIn  int    `json:"fan_in"`
	FanOut int    `json:"fan_out"`
}

// Degrees returns every node's fan-in/fan-out, most-called first, ties broken
// by name.
func (g *Graph) Degrees() []Degree {
	byName := make(map[string]*Degree, len(g.Nodes))
	for name := range g.Nodes {
		byName[name] = &Degree{Name: name}
	}
	for _, edge := range g.Edges {
		if d, ok := byName[edge.From]; ok {
			d.FanOut++
		}
		if d, ok := byName[edge.To]; ok {
			d.FanIn++
		}
	}

	out := make([]Degree, 0, len(byName))
	for _, d := range byName {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FanIn != out[j].FanIn {
			return out[i].FanIn > out[j].FanIn
		}
		return out[i].Name < out[j].Name
	})
	return out
}
