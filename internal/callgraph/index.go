package callgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"funcdiff/internal/lang"
	"funcdiff/internal/parser"
	"funcdiff/internal/snapshot"
)

// Source is the view of one commit snapshot the index needs: enumerate the
// files and read one file's text. Reads of binary or undecodable content must
// fail with an error wrapping snapshot.ErrBinary so the scan can skip them.
type Source interface {
	Files() ([]string, error)
	ReadFile(path string) (string, error)
}

// fileFunctions caches the parse result of one snapshot file so the resolver
// can make its second pass without re-parsing.
type fileFunctions struct {
	path      string
	language  lang.Language
	functions []parser.Function
}

// Index maps each function name to the one definition retained for it in a
// snapshot. When two functions share a name the definition from the file
// enumerated last wins; enumeration follows the snapshot's tree order, which
// is deterministic for a fixed commit but otherwise unspecified.
type Index struct {
	defs  map[string]FunctionDefinition
	files []fileFunctions
}

// Lookup returns the retained definition for name.
func (idx *Index) Lookup(name string) (FunctionDefinition, bool) {
	def, ok := idx.defs[name]
	return def, ok
}

// Size returns the number of distinct names indexed.
func (idx *Index) Size() int {
	return len(idx.defs)
}

// BuildIndex scans every supported-language file of a snapshot and indexes
// all function definitions by name. Files are parsed in parallel; insertions
// happen afterwards in enumeration order so the last-write-wins tie-break
// stays deterministic. Binary files and files that fail to parse are skipped.
func BuildIndex(ctx context.Context, snap Source, reg *parser.Registry, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := snap.Files()
	if err != nil {
		return nil, fmt.Errorf("enumerate snapshot: %w", err)
	}

	results := make([]*fileFunctions, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		i, path := i, path
		language, ok := lang.FromPath(path)
		if !ok {
			continue
		}
		g.Go(func() error {
			content, err := snap.ReadFile(path)
			if err != nil {
				if errors.Is(err, snapshot.ErrBinary) {
					logger.Debug("skipping binary file", "path", path)
					return nil
				}
				return err
			}
			funcs, err := reg.Functions(gctx, []byte(content), language)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			results[i] = &fileFunctions{path: path, language: language, functions: funcs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{defs: make(map[string]FunctionDefinition)}
	for _, ff := range results {
		if ff == nil {
			continue
		}
		idx.files = append(idx.files, *ff)
		for _, fn := range ff.functions {
			idx.defs[fn.Name] = definitionOf(fn, ff.path)
		}
	}
	return idx, nil
}
