package callgraph

import (
	"context"
	"fmt"
	"log/slog"

	"funcdiff/internal/parser"
)

// Resolve computes callees and callers for the target names against an
// index. Targets with no indexed definition are silently absent from the
// result map; callers must check for presence rather than assume one entry
// per request.
//
// The second pass walks the parse results cached during indexing, which is
// equivalent to re-scanning the snapshot. For each function encountered:
// a target's own body contributes its resolved calls as callees, and any
// function calling a target contributes one CallInfo per occurrence (caller
// entries are not collapsed by name). A self-recursive target therefore shows
// up as both its own callee and its own caller.
func Resolve(ctx context.Context, targets []string, idx *Index, reg *parser.Registry) (map[string]*FunctionCallAnalysis, error) {
	analyses := make(map[string]*FunctionCallAnalysis)
	for _, name := range targets {
		def, ok := idx.Lookup(name)
		if !ok {
			continue
		}
		analyses[name] = &FunctionCallAnalysis{
			FunctionName: name,
			FilePath:     def.FilePath,
			Signature:    def.Signature,
			ReturnType:   def.ReturnType,
			Callees:      []FunctionDefinition{},
			Callers:      []CallInfo{},
		}
	}
	if len(analyses) == 0 {
		return analyses, nil
	}

	for _, ff := range idx.files {
		for _, fn := range ff.functions {
			calls, err := reg.Calls(ctx, []byte(fn.Code), ff.language)
			if err != nil {
				return nil, fmt.Errorf("extract calls from %s in %s: %w", fn.Name, ff.path, err)
			}

			if analysis, isTarget := analyses[fn.Name]; isTarget {
				for _, call := range calls {
					if calleeDef, ok := idx.Lookup(call); ok {
						analysis.Callees = append(analysis.Callees, calleeDef)
					}
				}
			}

			// Caller fields come from the index entry for this function's
			// name, while the call line is this occurrence's start line.
			callerDef, indexed := idx.Lookup(fn.Name)
			if !indexed {
				continue
			}
			for _, call := range calls {
				analysis, isTarget := analyses[call]
				if !isTarget {
					continue
				}
				analysis.Callers = append(analysis.Callers, CallInfo{
					Name:       fn.Name,
					FilePath:   callerDef.FilePath,
					Signature:  callerDef.Signature,
					ReturnType: callerDef.ReturnType,
					StartLine:  callerDef.StartLine,
					EndLine:    callerDef.EndLine,
					Code:       callerDef.Code,
					Callee:     call,
					CallLine:   fn.StartLine,
				})
			}
		}
	}
	return analyses, nil
}

// Analyze builds an index for the snapshot and resolves the targets in one
// step.
func Analyze(ctx context.Context, snap Source, targets []string, reg *parser.Registry, logger *slog.Logger) (map[string]*FunctionCallAnalysis, error) {
	idx, err := BuildIndex(ctx, snap, reg, logger)
	if err != nil {
		return nil, err
	}
	return Resolve(ctx, targets, idx, reg)
}

// AnalyzePairs resolves the targets against both sides of a commit: the
// parent snapshot ("before") and the commit snapshot ("after"), and compares
// the two. Targets found on neither side are dropped; a target found on only
// one side gets an empty analysis for the other.
func AnalyzePairs(ctx context.Context, beforeSnap, afterSnap Source, targets []string, reg *parser.Registry, logger *slog.Logger) (map[string]PairResult, error) {
	before, err := Analyze(ctx, beforeSnap, targets, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("analyze parent snapshot: %w", err)
	}
	after, err := Analyze(ctx, afterSnap, targets, reg, logger)
	if err != nil {
		return nil, fmt.Errorf("analyze commit snapshot: %w", err)
	}

	results := make(map[string]PairResult)
	for _, name := range targets {
		b, a := before[name], after[name]
		if b == nil && a == nil {
			continue
		}
		if b == nil {
			b = emptyAnalysis(name)
		}
		if a == nil {
			a = emptyAnalysis(name)
		}
		results[name] = PairResult{
			Pair:    Pair{FunctionName: name, Before: b, After: a},
			Changes: Compare(b, a),
		}
	}
	return results, nil
}
