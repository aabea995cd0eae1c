// Package extract runs the commit pipeline: changed files of a commit,
// name-matched before/after functions, per-function unified diffs, and an
// optional embedded before/after call-graph analysis.
package extract

import (
	"context"
	"fmt"
	"log/slog"

	"funcdiff/internal/callgraph"
	"funcdiff/internal/diff"
	"funcdiff/internal/parser"
	"funcdiff/internal/snapshot"
)

// FunctionChange is one changed function of a commit, the unit written to
// JSONL output.
type FunctionChange struct {
	RepoURL         string                `json:"repo_url"`
	Commit          string                `json:"commit"`
	FilePath        string                `json:"file_path"`
	Language        string                `json:"language"`
	Function        string                `json:"function"`
	Before          string                `json:"before"`
	After           string                `json:"after"`
	Diff            string                `json:"diff"`
	DiffStat        diff.Stats            `json:"diff_stat"`
	StartLineBefore int                   `json:"start_line_before"`
	EndLineBefore   int                   `json:"end_line_before"`
	StartLineAfter  int                   `json:"start_line_after"`
	EndLineAfter    int                   `json:"end_line_after"`
	CallAnalysis    *callgraph.PairRecord `json:"call_analysis,omitempty"`
}

// Options configure one extraction run.
type Options struct {
	RepoURL          string // recorded in output only
	Revision         string // the commit to analyze; diffed against its first parent
	WithCallAnalysis bool
	SkipTestFiles    bool
	MaxFunctionLines int // 0 disables the size filter
	MaxChangedLines  int // 0 disables the change-volume filter
}

// Extractor ties the snapshot provider and parser registry into the commit
// pipeline.
type Extractor struct {
	provider *snapshot.Provider
	registry *parser.Registry
	log      *slog.Logger
}

// New creates an Extractor.
func New(provider *snapshot.Provider, registry *parser.Registry, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{provider: provider, registry: registry, log: logger}
}

// Run extracts every changed function of the revision. A function counts as
// changed when it is defined under the same name on both sides of the commit
// and its body text differs. Functions added or deleted by the commit have no
// counterpart to diff against and are not reported.
func (e *Extractor) Run(ctx context.Context, opts Options) ([]FunctionChange, error) {
	fileChanges, err := e.provider.ChangedFiles(opts.Revision)
	if err != nil {
		return nil, err
	}

	var results []FunctionChange
	for _, fc := range fileChanges {
		if opts.SkipTestFiles && isTestFile(fc.Path) {
			continue
		}
		changed, err := e.processFile(ctx, fc, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, changed...)
	}

	if opts.WithCallAnalysis && len(results) > 0 {
		if err := e.attachCallAnalysis(ctx, opts.Revision, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Extractor) processFile(ctx context.Context, fc snapshot.FileChange, opts Options) ([]FunctionChange, error) {
	beforeFuncs, err := e.registry.Functions(ctx, []byte(fc.Before), fc.Language)
	if err != nil {
		return nil, fmt.Errorf("parse %s (before): %w", fc.Path, err)
	}
	afterFuncs, err := e.registry.Functions(ctx, []byte(fc.After), fc.Language)
	if err != nil {
		return nil, fmt.Errorf("parse %s (after): %w", fc.Path, err)
	}

	beforeByName, _ := byName(beforeFuncs)
	afterByName, afterOrder := byName(afterFuncs)

	var changes []FunctionChange
	for _, name := range afterOrder {
		after := afterByName[name]
		before, ok := beforeByName[name]
		if !ok {
			continue // new function, nothing to diff against
		}

		if opts.MaxFunctionLines > 0 &&
			(isLargeFunction(before.Code, opts.MaxFunctionLines) || isLargeFunction(after.Code, opts.MaxFunctionLines)) {
			e.log.Debug("skipping oversized function", "function", name, "path", fc.Path)
			continue
		}

		diffText, stats, err := diff.Lines(before.Code, after.Code)
		if err != nil {
			return nil, fmt.Errorf("diff %s in %s: %w", name, fc.Path, err)
		}
		if !stats.Changed() {
			continue
		}
		if opts.MaxChangedLines > 0 && isLargeChange(stats, opts.MaxChangedLines) {
			e.log.Debug("skipping oversized change", "function", name, "path", fc.Path)
			continue
		}

		changes = append(changes, FunctionChange{
			RepoURL:         opts.RepoURL,
			Commit:          opts.Revision,
			FilePath:        fc.Path,
			Language:        string(fc.Language),
			Function:        name,
			Before:          before.Code,
			After:           after.Code,
			Diff:            diffText,
			DiffStat:        stats,
			StartLineBefore: before.StartLine,
			EndLineBefore:   before.EndLine,
			StartLineAfter:  after.StartLine,
			EndLineAfter:    after.EndLine,
		})
	}
	return changes, nil
}

func (e *Extractor) attachCallAnalysis(ctx context.Context, rev string, changes []FunctionChange) error {
	seen := make(map[string]struct{}, len(changes))
	var names []string
	for _, c := range changes {
		if _, ok := seen[c.Function]; ok {
			continue
		}
		seen[c.Function] = struct{}{}
		names = append(names, c.Function)
	}

	beforeSnap, afterSnap, err := e.provider.Sides(rev)
	if err != nil {
		return fmt.Errorf("call analysis: %w", err)
	}
	pairs, err := callgraph.AnalyzePairs(ctx, beforeSnap, afterSnap, names, e.registry, e.log)
	if err != nil {
		return fmt.Errorf("call analysis: %w", err)
	}

	for i := range changes {
		if pair, ok := pairs[changes[i].Function]; ok {
			record := pair.Record()
			changes[i].CallAnalysis = &record
		}
	}
	return nil
}

// byName collapses a function list to a name-keyed map (last definition wins,
// matching the snapshot index) plus the names in first-occurrence order.
func byName(funcs []parser.Function) (map[string]parser.Function, []string) {
	m := make(map[string]parser.Function, len(funcs))
	var order []string
	for _, f := range funcs {
		if _, ok := m[f.Name]; !ok {
			order = append(order, f.Name)
		}
		m[f.Name] = f
	}
	return m, order
}
