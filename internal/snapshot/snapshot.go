// Package snapshot exposes the file trees of a commit and its parent through
// the narrow surface the analysis core needs: list files, read a file at a
// path, and enumerate the files a commit changed.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"funcdiff/internal/lang"
)

// ErrNoParent is returned when the requested commit has no parent; there is
// no "before" state to diff against, so the whole invocation aborts.
var ErrNoParent = errors.New("commit has no parent; cannot compute diff")

// ErrBinary marks file content that is binary or not valid UTF-8. Scans skip
// such files instead of failing.
var ErrBinary = errors.New("binary or undecodable file content")

// FileChange is one file a commit touched, with its full content on both
// sides. A side that did not exist (added or deleted file) is empty.
type FileChange struct {
	Path     string
	Language lang.Language
	Before   string
	After    string
}

// Snapshot is the complete file tree of one commit.
type Snapshot struct {
	tree *object.Tree
}

// Files enumerates every file path in the snapshot, in the repository's tree
// order. The order is deterministic for a fixed commit but otherwise an
// implementation detail; duplicate-name tie-breaks downstream depend on it
// and are documented as such.
func (s *Snapshot) Files() ([]string, error) {
	var paths []string
	err := s.tree.Files().ForEach(func(f *object.File) error {
		paths = append(paths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk snapshot tree: %w", err)
	}
	return paths, nil
}

// ReadFile returns the text content of path in this snapshot. Binary or
// non-UTF-8 content yields ErrBinary.
func (s *Snapshot) ReadFile(path string) (string, error) {
	f, err := s.tree.File(path)
	if err != nil {
		return "", fmt.Errorf("open %s in snapshot: %w", path, err)
	}
	return fileText(f)
}

func fileText(f *object.File) (string, error) {
	if bin, err := f.IsBinary(); err != nil {
		return "", fmt.Errorf("inspect %s: %w", f.Name, err)
	} else if bin {
		return "", fmt.Errorf("%s: %w", f.Name, ErrBinary)
	}
	content, err := f.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	if !utf8.ValidString(content) {
		return "", fmt.Errorf("%s: %w", f.Name, ErrBinary)
	}
	return content, nil
}

// Provider opens a local repository and serves commit snapshots.
type Provider struct {
	repo *git.Repository
	log  *slog.Logger
}

// Open opens the repository at path.
func Open(path string, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	return &Provider{repo: repo, log: logger}, nil
}

// resolve turns a revision string (hash, short hash, ref name, empty for
// HEAD) into a commit object.
func (p *Provider) resolve(rev string) (*object.Commit, error) {
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := p.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	commit, err := p.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", hash, err)
	}
	return commit, nil
}

// SnapshotAt returns the file tree of the given revision.
func (p *Provider) SnapshotAt(rev string) (*Snapshot, error) {
	commit, err := p.resolve(rev)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", commit.Hash, err)
	}
	return &Snapshot{tree: tree}, nil
}

// Sides returns the parent ("before") and commit ("after") snapshots for the
// given revision, failing with ErrNoParent for root commits.
func (p *Provider) Sides(rev string) (before, after *Snapshot, err error) {
	commit, err := p.resolve(rev)
	if err != nil {
		return nil, nil, err
	}
	if commit.NumParents() == 0 {
		return nil, nil, fmt.Errorf("%s: %w", commit.Hash, ErrNoParent)
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, nil, fmt.Errorf("load parent of %s: %w", commit.Hash, err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("load parent tree: %w", err)
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("load commit tree: %w", err)
	}
	return &Snapshot{tree: parentTree}, &Snapshot{tree: commitTree}, nil
}

// ChangedFiles lists the supported-language files the revision added,
// deleted, or modified relative to its first parent, with full before/after
// content. Binary and undecodable files are skipped, not reported.
func (p *Provider) ChangedFiles(rev string) ([]FileChange, error) {
	commit, err := p.resolve(rev)
	if err != nil {
		return nil, err
	}
	if commit.NumParents() == 0 {
		return nil, fmt.Errorf("%s: %w", commit.Hash, ErrNoParent)
	}
	parent, err := commit.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("load parent of %s: %w", commit.Hash, err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("load parent tree: %w", err)
	}
	commitTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("load commit tree: %w", err)
	}

	treeChanges, err := object.DiffTree(parentTree, commitTree)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	var changes []FileChange
	for _, ch := range treeChanges {
		action, err := ch.Action()
		if err != nil {
			return nil, fmt.Errorf("classify change: %w", err)
		}

		path := ch.To.Name
		if action == merkletrie.Delete {
			path = ch.From.Name
		}
		language, ok := lang.FromPath(path)
		if !ok {
			continue
		}

		from, to, err := ch.Files()
		if err != nil {
			return nil, fmt.Errorf("load change blobs for %s: %w", path, err)
		}

		fc := FileChange{Path: path, Language: language}
		if from != nil {
			fc.Before, err = fileText(from)
			if err != nil {
				p.log.Debug("skipping undecodable file", "path", path, "err", err)
				continue
			}
		}
		if to != nil {
			fc.After, err = fileText(to)
			if err != nil {
				p.log.Debug("skipping undecodable file", "path", path, "err", err)
				continue
			}
		}
		changes = append(changes, fc)
	}
	return changes, nil
}
