package callgraph

import "sort"

// Compare partitions the callee and caller sets of two analyses by name:
// added entries exist only after, removed entries only before, unchanged
// entries on both sides (carrying the after-side value). This is a pure
// name-set operation; positions and occurrence counts do not survive it.
// Comparing an analysis against itself yields empty added/removed sets.
func Compare(before, after *FunctionCallAnalysis) Comparison {
	beforeCallees := calleesByName(before.Callees)
	afterCallees := calleesByName(after.Callees)
	beforeCallers := callersByName(before.Callers)
	afterCallers := callersByName(after.Callers)

	cmp := Comparison{
		AddedCallees:     []FunctionDefinition{},
		RemovedCallees:   []FunctionDefinition{},
		UnchangedCallees: []FunctionDefinition{},
		AddedCallers:     []CallInfo{},
		RemovedCallers:   []CallInfo{},
		UnchangedCallers: []CallInfo{},
	}

	for _, name := range sortedKeys(afterCallees) {
		if _, ok := beforeCallees[name]; ok {
			cmp.UnchangedCallees = append(cmp.UnchangedCallees, afterCallees[name])
		} else {
			cmp.AddedCallees = append(cmp.AddedCallees, afterCallees[name])
		}
	}
	for _, name := range sortedKeys(beforeCallees) {
		if _, ok := afterCallees[name]; !ok {
			cmp.RemovedCallees = append(cmp.RemovedCallees, beforeCallees[name])
		}
	}

	for _, name := range sortedKeys(afterCallers) {
		if _, ok := beforeCallers[name]; ok {
			cmp.UnchangedCallers = append(cmp.UnchangedCallers, afterCallers[name])
		} else {
			cmp.AddedCallers = append(cmp.AddedCallers, afterCallers[name])
		}
	}
	for _, name := range sortedKeys(beforeCallers) {
		if _, ok := afterCallers[name]; !ok {
			cmp.RemovedCallers = append(cmp.RemovedCallers, beforeCallers[name])
		}
	}

	return cmp
}

func calleesByName(defs []FunctionDefinition) map[string]FunctionDefinition {
	m := make(map[string]FunctionDefinition, len(defs))
	for _, d := range defs {
		m[d.Name] = d
	}
	return m
}

func callersByName(calls []CallInfo) map[string]CallInfo {
	m := make(map[string]CallInfo, len(calls))
	for _, c := range calls {
		m[c.Name] = c
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
