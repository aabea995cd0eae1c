// Package callgraph builds a snapshot-wide function index and resolves
// caller/callee relationships for a set of target functions, by bare name.
//
// Resolution is purely name-based: shadowed or overloaded names can be
// attributed to the wrong definition, and calls through pointers or member
// chains collapse to the first identifier in the callee expression. These are
// accepted limitations of the design.
package callgraph

import (
	"funcdiff/internal/parser"
)

// FunctionDefinition is the one authoritative definition retained for a name
// within a snapshot.
type FunctionDefinition struct {
	Name       string `json:"name"`
	FilePath   string `json:"file_path"`
	Signature  string `json:"signature"`
	ReturnType string `json:"return_type"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Code       string `json:"code"`
}

func definitionOf(f parser.Function, path string) FunctionDefinition {
	return FunctionDefinition{
		Name:       f.Name,
		FilePath:   path,
		Signature:  f.Signature,
		ReturnType: f.ReturnType,
		StartLine:  f.StartLine,
		EndLine:    f.EndLine,
		Code:       f.Code,
	}
}

// CallInfo describes one caller of a target function. CallLine is the
// caller's own start line, not the line of the call expression. This is an
// approximation carried over from the data this format was designed around.
type CallInfo struct {
	Name       string `json:"name"`
	FilePath   string `json:"file_path"`
	Signature  string `json:"signature"`
	ReturnType string `json:"return_type"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	Code       string `json:"code"`
	Callee     string `json:"-"`
	CallLine   int    `json:"call_line"`
}

// FunctionCallAnalysis holds the resolved call graph around one target
// function within one snapshot.
type FunctionCallAnalysis struct {
	FunctionName string               `json:"function_name"`
	FilePath     string               `json:"file_path"`
	Signature    string               `json:"signature"`
	ReturnType   string               `json:"return_type"`
	Callees      []FunctionDefinition `json:"callees"`
	Callers      []CallInfo           `json:"callers"`
}

func emptyAnalysis(name string) *FunctionCallAnalysis {
	return &FunctionCallAnalysis{
		FunctionName: name,
		Callees:      []FunctionDefinition{},
		Callers:      []CallInfo{},
	}
}

// Pair is the same target analyzed against the parent-commit snapshot
// (before) and the commit snapshot (after). A side where the target does not
// exist is an empty analysis, not an omission.
type Pair struct {
	FunctionName string
	Before       *FunctionCallAnalysis
	After        *FunctionCallAnalysis
}

// Comparison partitions a Pair's callee and caller sets by name. Entries in
// the unchanged sets carry the after-side values.
type Comparison struct {
	AddedCallees     []FunctionDefinition `json:"added_callees"`
	RemovedCallees   []FunctionDefinition `json:"removed_callees"`
	UnchangedCallees []FunctionDefinition `json:"unchanged_callees"`
	AddedCallers     []CallInfo           `json:"added_callers"`
	RemovedCallers   []CallInfo           `json:"removed_callers"`
	UnchangedCallers []CallInfo           `json:"unchanged_callers"`
}

// PairResult bundles a before/after pair with its comparison.
type PairResult struct {
	Pair    Pair
	Changes Comparison
}

// AnalysisSide is the serialized form of one side of a pair.
type AnalysisSide struct {
	FilePath   string               `json:"file_path"`
	Signature  string               `json:"signature"`
	ReturnType string               `json:"return_type"`
	Callees    []FunctionDefinition `json:"callees"`
	Callers    []CallInfo           `json:"callers"`
}

func sideOf(a *FunctionCallAnalysis) AnalysisSide {
	return AnalysisSide{
		FilePath:   a.FilePath,
		Signature:  a.Signature,
		ReturnType: a.ReturnType,
		Callees:    a.Callees,
		Callers:    a.Callers,
	}
}

// SideSummary gives headline counts for one analysis.
type SideSummary struct {
	NumCallees        int `json:"num_callees"`
	NumCallers        int `json:"num_callers"`
	UniqueCallerFiles int `json:"unique_caller_files"`
}

func summarize(a *FunctionCallAnalysis) SideSummary {
	files := make(map[string]struct{}, len(a.Callers))
	for _, c := range a.Callers {
		files[c.FilePath] = struct{}{}
	}
	return SideSummary{
		NumCallees:        len(a.Callees),
		NumCallers:        len(a.Callers),
		UniqueCallerFiles: len(files),
	}
}

// ChangeSummary counts the comparison partitions.
type ChangeSummary struct {
	AddedCallees     int `json:"added_callees"`
	RemovedCallees   int `json:"removed_callees"`
	UnchangedCallees int `json:"unchanged_callees"`
	AddedCallers     int `json:"added_callers"`
	RemovedCallers   int `json:"removed_callers"`
	UnchangedCallers int `json:"unchanged_callers"`
}

// PairSummary aggregates both sides and the change counts.
type PairSummary struct {
	BeforeFix SideSummary   `json:"before_fix"`
	AfterFix  SideSummary   `json:"after_fix"`
	Changes   ChangeSummary `json:"changes"`
}

// PairRecord is the JSONL form of a before/after call analysis.
type PairRecord struct {
	FunctionName string       `json:"function_name"`
	BeforeFix    AnalysisSide `json:"before_fix"`
	AfterFix     AnalysisSide `json:"after_fix"`
	Changes      Comparison   `json:"changes"`
	Summary      PairSummary  `json:"summary"`
}

// Record flattens the pair result into its serialized form.
func (r PairResult) Record() PairRecord {
	return PairRecord{
		FunctionName: r.Pair.FunctionName,
		BeforeFix:    sideOf(r.Pair.Before),
		AfterFix:     sideOf(r.Pair.After),
		Changes:      r.Changes,
		Summary: PairSummary{
			BeforeFix: summarize(r.Pair.Before),
			AfterFix:  summarize(r.Pair.After),
			Changes: ChangeSummary{
				AddedCallees:     len(r.Changes.AddedCallees),
				RemovedCallees:   len(r.Changes.RemovedCallees),
				UnchangedCallees: len(r.Changes.UnchangedCallees),
				AddedCallers:     len(r.Changes.AddedCallers),
				RemovedCallers:   len(r.Changes.RemovedCallers),
				UnchangedCallers: len(r.Changes.UnchangedCallers),
			},
		},
	}
}

// AnalysisRecord is the JSONL form of a single-snapshot call analysis.
type AnalysisRecord struct {
	FunctionName string               `json:"function_name"`
	FilePath     string               `json:"file_path"`
	Signature    string               `json:"signature"`
	ReturnType   string               `json:"return_type"`
	Callees      []FunctionDefinition `json:"callees"`
	Callers      []CallInfo           `json:"callers"`
	Summary      SideSummary          `json:"summary"`
}

// Record flattens a single analysis into its serialized form.
func (a *FunctionCallAnalysis) Record() AnalysisRecord {
	return AnalysisRecord{
		FunctionName: a.FunctionName,
		FilePath:     a.FilePath,
		Signature:    a.Signature,
		ReturnType:   a.ReturnType,
		Callees:      a.Callees,
		Callers:      a.Callers,
		Summary:      summarize(a),
	}
}
