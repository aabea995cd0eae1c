package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"funcdiff/internal/callgraph"
	"funcdiff/internal/config"
	"funcdiff/internal/crawler"
	"funcdiff/internal/extract"
	"funcdiff/internal/graph"
	"funcdiff/internal/lang"
	"funcdiff/internal/parser"
	"funcdiff/internal/snapshot"
	"funcdiff/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:   "funcdiff",
		Short: "Function-level commit analysis with call-graph diffing",
	}
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "funcdiff.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	extractCmd.Flags().StringVar(&extractOutput, "output", "", "JSONL output file (default from config)")
	extractCmd.Flags().StringVar(&extractDB, "db", "", "Optional SQLite database to mirror results into")
	extractCmd.Flags().BoolVar(&extractNoCalls, "no-call-analysis", false, "Skip the before/after call-graph analysis")

	callsCmd.Flags().StringSliceVar(&callsFunctions, "functions", nil, "Function names to analyze")
	callsCmd.Flags().StringVar(&callsFromJSONL, "from-jsonl", "", "Load function names from an extract output file")
	callsCmd.Flags().StringSliceVar(&callsFromFiles, "from-files", nil, "Extract function names from these source files or directories")
	callsCmd.Flags().StringVar(&callsCommit, "commit", "HEAD", "Commit to analyze")
	callsCmd.Flags().BoolVar(&callsCompare, "compare", false, "Compare call graphs before and after the commit")
	callsCmd.Flags().StringVar(&callsOutput, "output", "function_call_analysis.jsonl", "JSONL output file")
	callsCmd.Flags().StringVar(&callsMermaid, "mermaid", "", "Also render the call graph as a mermaid flowchart to this file")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(callsCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

var (
	extractOutput  string
	extractDB      string
	extractNoCalls bool

	extractCmd = &cobra.Command{
		Use:   "extract <repo-url> <commit> <repo-path>",
		Short: "Extract the functions a commit changed, with diffs and call analysis",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			repoURL, commit, repoPath := args[0], args[1], args[2]
			logger := newLogger()

			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}
			output := cfg.Output.Path
			if extractOutput != "" {
				output = extractOutput
			}
			dbPath := cfg.Output.Database
			if extractDB != "" {
				dbPath = extractDB
			}

			provider, err := snapshot.Open(repoPath, logger)
			if err != nil {
				log.Fatalf("Failed to open repository: %v", err)
			}

			registry := parser.NewRegistry(logger)
			extractor := extract.New(provider, registry, logger)

			fmt.Printf("Extracting changed functions from %s...\n", commit)
			changes, err := extractor.Run(context.Background(), extract.Options{
				RepoURL:          repoURL,
				Revision:         commit,
				WithCallAnalysis: !extractNoCalls,
				SkipTestFiles:    cfg.Filters.SkipTestFiles,
				MaxFunctionLines: cfg.Filters.MaxFunctionLines,
				MaxChangedLines:  cfg.Filters.MaxChangedLines,
			})
			if err != nil {
				log.Fatalf("Extraction failed: %v", err)
			}

			if err := storage.WriteJSONL(output, changes); err != nil {
				log.Fatalf("Failed to write output: %v", err)
			}
			fmt.Printf("Saved %d functions to %s\n", len(changes), output)

			if dbPath != "" {
				store, err := storage.NewSQLiteStore(dbPath)
				if err != nil {
					log.Fatalf("Failed to open database: %v", err)
				}
				defer store.Close()
				if err := store.SaveChanges(context.Background(), changes); err != nil {
					log.Fatalf("Failed to save to database: %v", err)
				}
				fmt.Printf("Mirrored results into %s\n", dbPath)
			}
		},
	}
)

var (
	callsFunctions []string
	callsFromJSONL string
	callsFromFiles []string
	callsCommit    string
	callsCompare   bool
	callsOutput    string
	callsMermaid   string

	callsCmd = &cobra.Command{
		Use:   "calls <repo-path>",
		Short: "Analyze callees and callers of functions across a repository snapshot",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			repoPath := args[0]
			logger := newLogger()
			ctx := context.Background()

			names, err := resolveTargets(ctx, logger)
			if err != nil {
				log.Fatalf("%v", err)
			}
			if len(names) == 0 {
				fmt.Println("No functions found to analyze.")
				return
			}

			preview := names
			if len(preview) > 5 {
				preview = preview[:5]
			}
			fmt.Printf("Analyzing %d functions: %s", len(names), strings.Join(preview, ", "))
			if len(names) > 5 {
				fmt.Printf(" and %d more", len(names)-5)
			}
			fmt.Println()

			provider, err := snapshot.Open(repoPath, logger)
			if err != nil {
				log.Fatalf("Failed to open repository: %v", err)
			}
			registry := parser.NewRegistry(logger)

			if callsCompare {
				runComparedCalls(ctx, provider, registry, logger, names)
			} else {
				runSnapshotCalls(ctx, provider, registry, logger, names)
			}
		},
	}
)

func runSnapshotCalls(ctx context.Context, provider *snapshot.Provider, registry *parser.Registry, logger *slog.Logger, names []string) {
	snap, err := provider.SnapshotAt(callsCommit)
	if err != nil {
		log.Fatalf("Failed to load snapshot: %v", err)
	}
	analyses, err := callgraph.Analyze(ctx, snap, names, registry, logger)
	if err != nil {
		log.Fatalf("Call analysis failed: %v", err)
	}

	records := make([]callgraph.AnalysisRecord, 0, len(analyses))
	for _, name := range sortedNames(analyses) {
		records = append(records, analyses[name].Record())
	}
	if err := storage.WriteJSONL(callsOutput, records); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("Saved call analysis for %d functions to %s\n", len(records), callsOutput)

	totalCallees, totalCallers := 0, 0
	for _, r := range records {
		totalCallees += len(r.Callees)
		totalCallers += len(r.Callers)
	}
	fmt.Println("\nSummary:")
	fmt.Printf("  Functions analyzed: %d\n", len(records))
	fmt.Printf("  Total callees found: %d\n", totalCallees)
	fmt.Printf("  Total callers found: %d\n", totalCallers)
	if len(records) > 0 {
		fmt.Printf("  Average callees per function: %.1f\n", float64(totalCallees)/float64(len(records)))
		fmt.Printf("  Average callers per function: %.1f\n", float64(totalCallers)/float64(len(records)))
	}

	if callsMermaid != "" {
		writeMermaid(graph.FromAnalyses(analyses))
	}
}

func runComparedCalls(ctx context.Context, provider *snapshot.Provider, registry *parser.Registry, logger *slog.Logger, names []string) {
	before, after, err := provider.Sides(callsCommit)
	if err != nil {
		log.Fatalf("Could not resolve commit sides: %v", err)
	}
	pairs, err := callgraph.AnalyzePairs(ctx, before, after, names, registry, logger)
	if err != nil {
		log.Fatalf("Call analysis failed: %v", err)
	}

	records := make([]callgraph.PairRecord, 0, len(pairs))
	for _, name := range sortedNames(pairs) {
		records = append(records, pairs[name].Record())
	}
	if err := storage.WriteJSONL(callsOutput, records); err != nil {
		log.Fatalf("Failed to write output: %v", err)
	}
	fmt.Printf("Saved call analysis for %d functions to %s\n", len(records), callsOutput)

	var summary callgraph.PairSummary
	for _, r := range records {
		summary.BeforeFix.NumCallees += r.Summary.BeforeFix.NumCallees
		summary.BeforeFix.NumCallers += r.Summary.BeforeFix.NumCallers
		summary.AfterFix.NumCallees += r.Summary.AfterFix.NumCallees
		summary.AfterFix.NumCallers += r.Summary.AfterFix.NumCallers
		summary.Changes.AddedCallees += r.Summary.Changes.AddedCallees
		summary.Changes.RemovedCallees += r.Summary.Changes.RemovedCallees
		summary.Changes.AddedCallers += r.Summary.Changes.AddedCallers
		summary.Changes.RemovedCallers += r.Summary.Changes.RemovedCallers
	}
	fmt.Println("\nSummary:")
	fmt.Printf("  Functions analyzed: %d\n", len(records))
	fmt.Printf("  Before fix - Total callees: %d, Total callers: %d\n", summary.BeforeFix.NumCallees, summary.BeforeFix.NumCallers)
	fmt.Printf("  After fix - Total callees: %d, Total callers: %d\n", summary.AfterFix.NumCallees, summary.AfterFix.NumCallers)
	fmt.Printf("  Changes - Added callees: %d, Removed callees: %d\n", summary.Changes.AddedCallees, summary.Changes.RemovedCallees)
	fmt.Printf("  Changes - Added callers: %d, Removed callers: %d\n", summary.Changes.AddedCallers, summary.Changes.RemovedCallers)

	if callsMermaid != "" {
		// Render the post-commit side of the pairs.
		afterSides := make(map[string]*callgraph.FunctionCallAnalysis, len(pairs))
		for name, pair := range pairs {
			afterSides[name] = pair.Pair.After
		}
		writeMermaid(graph.FromAnalyses(afterSides))
	}
}

func writeMermaid(g *graph.Graph) {
	if err := os.WriteFile(callsMermaid, []byte(g.Mermaid()), 0o644); err != nil {
		log.Fatalf("Failed to write diagram: %v", err)
	}
	fmt.Printf("Rendered call graph (%d functions, %d edges) to %s\n", len(g.Nodes), len(g.Edges), callsMermaid)

	degrees := g.Degrees()
	if len(degrees) > 3 {
		degrees = degrees[:3]
	}
	for _, d := range degrees {
		fmt.Printf("  %s: %d callers, %d callees\n", d.Name, d.FanIn, d.FanOut)
	}
}

// resolveTargets picks exactly one of the three input modes and returns the
// function names to analyze.
func resolveTargets(ctx context.Context, logger *slog.Logger) ([]string, error) {
	modes := 0
	if len(callsFunctions) > 0 {
		modes++
	}
	if callsFromJSONL != "" {
		modes++
	}
	if len(callsFromFiles) > 0 {
		modes++
	}
	if modes != 1 {
		return nil, fmt.Errorf("exactly one of --functions, --from-jsonl, --from-files is required")
	}

	switch {
	case len(callsFunctions) > 0:
		return callsFunctions, nil

	case callsFromJSONL != "":
		fmt.Printf("Loading functions from %s\n", callsFromJSONL)
		changes, err := storage.ReadJSONL[extract.FunctionChange](callsFromJSONL)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, c := range changes {
			if c.Function != "" {
				names = append(names, c.Function)
			}
		}
		return names, nil

	default:
		files, err := expandSourceArgs(logger, callsFromFiles)
		if err != nil {
			return nil, err
		}
		fmt.Printf("Extracting functions from %d files\n", len(files))
		registry := parser.NewRegistry(logger)
		var names []string
		for _, path := range files {
			language, ok := lang.FromPath(path)
			if !ok {
				fmt.Printf("Warning: unsupported file type %s\n", path)
				continue
			}
			content, err := os.ReadFile(path)
			if err != nil {
				fmt.Printf("Warning: %v\n", err)
				continue
			}
			funcs, err := registry.Functions(ctx, content, language)
			if err != nil {
				fmt.Printf("Error processing %s: %v\n", path, err)
				continue
			}
			for _, f := range funcs {
				names = append(names, f.Name)
			}
		}
		return names, nil
	}
}

// expandSourceArgs turns each --from-files argument into concrete file paths:
// directories are crawled for supported source files, plain paths pass
// through unchanged.
func expandSourceArgs(logger *slog.Logger, args []string) ([]string, error) {
	c := crawler.New(logger)
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = c.ScanTree(arg, func(path string, _ lang.Language) error {
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
	}
	return files, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
