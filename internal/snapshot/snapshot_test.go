package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funcdiff/internal/lang"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFiles(t *testing.T, dir string, repo *git.Repository, msg string, files map[string][]byte) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, content, 0o644))
		_, err = wt.Add(path)
		require.NoError(t, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func removeFiles(t *testing.T, repo *git.Repository, msg string, paths ...string) string {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, path := range paths {
		_, err = wt.Remove(path)
		require.NoError(t, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestOpenNotARepository(t *testing.T) {
	_, err := Open(t.TempDir(), nil)
	assert.Error(t, err)
}

func TestSnapshotFilesAndReadFile(t *testing.T) {
	dir, repo := initRepo(t)
	commitFiles(t, dir, repo, "initial", map[string][]byte{
		"main.c":        []byte("int main(void) { return 0; }\n"),
		"lib/helper.c":  []byte("void helper(void) {}\n"),
		"blob.c":        {0x00, 0xff, 0xfe, 0x01},
		"docs/notes.md": []byte("notes\n"),
	})

	provider, err := Open(dir, nil)
	require.NoError(t, err)
	snap, err := provider.SnapshotAt("")
	require.NoError(t, err)

	paths, err := snap.Files()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.c", "lib/helper.c", "blob.c", "docs/notes.md"}, paths)

	content, err := snap.ReadFile("lib/helper.c")
	require.NoError(t, err)
	assert.Equal(t, "void helper(void) {}\n", content)

	_, err = snap.ReadFile("blob.c")
	require.ErrorIs(t, err, ErrBinary)

	_, err = snap.ReadFile("missing.c")
	assert.Error(t, err)
}

func TestSides(t *testing.T) {
	dir, repo := initRepo(t)
	first := commitFiles(t, dir, repo, "initial", map[string][]byte{
		"main.c": []byte("int main(void) { return 0; }\n"),
	})
	second := commitFiles(t, dir, repo, "change", map[string][]byte{
		"main.c": []byte("int main(void) { return 1; }\n"),
	})

	provider, err := Open(dir, nil)
	require.NoError(t, err)

	t.Run("root commit has no parent", func(t *testing.T) {
		_, _, err := provider.Sides(first)
		require.ErrorIs(t, err, ErrNoParent)
	})

	t.Run("before is the parent tree", func(t *testing.T) {
		before, after, err := provider.Sides(second)
		require.NoError(t, err)

		b, err := before.ReadFile("main.c")
		require.NoError(t, err)
		a, err := after.ReadFile("main.c")
		require.NoError(t, err)
		assert.Contains(t, b, "return 0;")
		assert.Contains(t, a, "return 1;")
	})

	t.Run("unknown revision", func(t *testing.T) {
		_, _, err := provider.Sides("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
		assert.Error(t, err)
	})
}

func TestChangedFiles(t *testing.T) {
	dir, repo := initRepo(t)
	root := commitFiles(t, dir, repo, "initial", map[string][]byte{
		"main.c":    []byte("int main(void) { return 0; }\n"),
		"old.cpp":   []byte("int gone() { return 0; }\n"),
		"README.md": []byte("readme\n"),
	})
	commitFiles(t, dir, repo, "edit", map[string][]byte{
		"main.c":    []byte("int main(void) { return 1; }\n"),
		"New.java":  []byte("class New {}\n"),
		"README.md": []byte("updated readme\n"),
	})
	head := removeFiles(t, repo, "drop old", "old.cpp")

	provider, err := Open(dir, nil)
	require.NoError(t, err)

	t.Run("root commit", func(t *testing.T) {
		_, err := provider.ChangedFiles(root)
		require.ErrorIs(t, err, ErrNoParent)
	})

	t.Run("modification and addition", func(t *testing.T) {
		changes, err := provider.ChangedFiles("HEAD~1")
		require.NoError(t, err)

		byPath := map[string]FileChange{}
		for _, c := range changes {
			byPath[c.Path] = c
		}
		require.Len(t, byPath, 2, "unsupported files are excluded")

		mod, ok := byPath["main.c"]
		require.True(t, ok)
		assert.Equal(t, lang.C, mod.Language)
		assert.Contains(t, mod.Before, "return 0;")
		assert.Contains(t, mod.After, "return 1;")

		added, ok := byPath["New.java"]
		require.True(t, ok)
		assert.Equal(t, lang.Java, added.Language)
		assert.Empty(t, added.Before)
		assert.Contains(t, added.After, "class New")
	})

	t.Run("deletion keeps the before side", func(t *testing.T) {
		changes, err := provider.ChangedFiles(head)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, "old.cpp", changes[0].Path)
		assert.Equal(t, lang.CPP, changes[0].Language)
		assert.Contains(t, changes[0].Before, "int gone()")
		assert.Empty(t, changes[0].After)
	})
}
