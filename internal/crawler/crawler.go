// Package crawler walks a checked-out worktree for source files in the
// supported language set.
package crawler

import (
	"io/fs"
	"log/slog"
	"path/filepath"

	"funcdiff/internal/lang"
)

// Crawler scans a directory for supported source files.
type Crawler struct {
	ignored []string
	log     *slog.Logger
}

// New creates a crawler that skips the usual non-source directories.
func New(logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		ignored: []string{".git", "vendor", "node_modules", "build", "third_party"},
		log:     logger,
	}
}

// ScanTree walks root and streams every supported-language file path to the
// callback. Ignored directories are pruned; files outside the language set
// are passed over silently.
func (c *Crawler) ScanTree(root string, onFile func(path string, language lang.Language) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					c.log.Debug("skipping directory", "path", path)
					return filepath.SkipDir
				}
			}
			return nil
		}

		language, ok := lang.FromPath(path)
		if !ok {
			return nil
		}
		return onFile(path, language)
	})
}
