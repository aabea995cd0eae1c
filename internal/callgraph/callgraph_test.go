package callgraph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"funcdiff/internal/parser"
	"funcdiff/internal/snapshot"
)

// fakeSource serves an in-memory file set in a fixed enumeration order.
type fakeSource struct {
	order  []string
	files  map[string]string
	binary map[string]bool
}

func (s *fakeSource) Files() ([]string, error) { return s.order, nil }

func (s *fakeSource) ReadFile(path string) (string, error) {
	if s.binary[path] {
		return "", fmt.Errorf("%s: %w", path, snapshot.ErrBinary)
	}
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("%s: not found", path)
	}
	return content, nil
}

func sourceOf(entries ...[2]string) *fakeSource {
	s := &fakeSource{files: map[string]string{}, binary: map[string]bool{}}
	for _, e := range entries {
		s.order = append(s.order, e[0])
		s.files[e[0]] = e[1]
	}
	return s
}

const mainC = `
#include <stdio.h>

void helper_function() {
    printf("Helper called\n");
}

void target_function() {
    helper_function();
    another_function();
    printf("Target function\n");
}

void name() {
    target_function();
    printf("Caller function\n");
}

int main() {
    name();
    target_function();
    return 0;
}
`

const utilsC = `
#include <stdio.h>

void another_function() {
    printf("Another function\n");
}

void utility_function() {
    target_function();
}

void standalone_function() {
    printf("Standalone\n");
}
`

func TestBuildIndex(t *testing.T) {
	reg := parser.NewRegistry(nil)
	src := sourceOf([2]string{"main.c", mainC}, [2]string{"utils.c", utilsC})

	idx, err := BuildIndex(context.Background(), src, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, idx.Size())

	def, ok := idx.Lookup("target_function")
	require.True(t, ok)
	assert.Equal(t, "main.c", def.FilePath)
	assert.Equal(t, "()", def.Signature)
	assert.Equal(t, "void", def.ReturnType)

	def, ok = idx.Lookup("utility_function")
	require.True(t, ok)
	assert.Equal(t, "utils.c", def.FilePath)

	_, ok = idx.Lookup("printf")
	assert.False(t, ok, "undefined names are not indexed")
}

func TestBuildIndexSkipsBinaryAndUnsupported(t *testing.T) {
	reg := parser.NewRegistry(nil)
	src := sourceOf([2]string{"main.c", mainC}, [2]string{"README.md", "docs"})
	src.order = append(src.order, "blob.c")
	src.binary["blob.c"] = true

	idx, err := BuildIndex(context.Background(), src, reg, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Size())
}

func TestBuildIndexLastWriteWins(t *testing.T) {
	reg := parser.NewRegistry(nil)
	first := "int dup() {\n    return 1;\n}\n"
	second := "int dup() {\n    return 2;\n}\n"
	src := sourceOf([2]string{"a.c", first}, [2]string{"z.c", second})

	idx, err := BuildIndex(context.Background(), src, reg, nil)
	require.NoError(t, err)

	def, ok := idx.Lookup("dup")
	require.True(t, ok)
	assert.Equal(t, "z.c", def.FilePath, "the later-enumerated definition is retained")
	assert.Contains(t, def.Code, "return 2;")
}

func TestResolveTargetFunction(t *testing.T) {
	reg := parser.NewRegistry(nil)
	src := sourceOf([2]string{"main.c", mainC}, [2]string{"utils.c", utilsC})

	analyses, err := Analyze(context.Background(), src, []string{"target_function"}, reg, nil)
	require.NoError(t, err)
	result, ok := analyses["target_function"]
	require.True(t, ok)

	assert.Equal(t, "main.c", result.FilePath)

	calleeNames := make([]string, 0, len(result.Callees))
	for _, c := range result.Callees {
		calleeNames = append(calleeNames, c.Name)
	}
	assert.ElementsMatch(t, []string{"another_function", "helper_function"}, calleeNames,
		"only callees defined in the repository resolve; printf is external")

	callersByFile := map[string]string{}
	for _, c := range result.Callers {
		callersByFile[c.Name] = c.FilePath
	}
	assert.Equal(t, map[string]string{
		"name":             "main.c",
		"main":             "main.c",
		"utility_function": "utils.c",
	}, callersByFile)

	for _, c := range result.Callers {
		assert.Equal(t, c.StartLine, c.CallLine,
			"call line is the caller's start line, not the call site")
	}
}

func TestResolveAbsentTargetOmitted(t *testing.T) {
	reg := parser.NewRegistry(nil)
	src := sourceOf([2]string{"main.c", mainC})

	analyses, err := Analyze(context.Background(), src, []string{"no_such_function"}, reg, nil)
	require.NoError(t, err)
	_, ok := analyses["no_such_function"]
	assert.False(t, ok)
	assert.Empty(t, analyses)
}

func TestResolveSelfRecursion(t *testing.T) {
	reg := parser.NewRegistry(nil)
	src := sourceOf([2]string{"fact.c", `
int fact(int n) {
    if (n <= 1) return 1;
    return n * fact(n - 1);
}
`})

	analyses, err := Analyze(context.Background(), src, []string{"fact"}, reg, nil)
	require.NoError(t, err)
	result := analyses["fact"]
	require.NotNil(t, result)

	require.Len(t, result.Callees, 1)
	assert.Equal(t, "fact", result.Callees[0].Name)
	require.Len(t, result.Callers, 1)
	assert.Equal(t, "fact", result.Callers[0].Name)
}

func TestCompare(t *testing.T) {
	def := func(name string) FunctionDefinition {
		return FunctionDefinition{Name: name, FilePath: name + ".c"}
	}
	caller := func(name string, line int) CallInfo {
		return CallInfo{Name: name, FilePath: name + ".c", CallLine: line}
	}

	before := &FunctionCallAnalysis{
		FunctionName: "process",
		Callees:      []FunctionDefinition{def("dangerous_function"), def("log_message")},
		Callers:      []CallInfo{caller("main", 3), caller("old_entry", 9)},
	}
	after := &FunctionCallAnalysis{
		FunctionName: "process",
		Callees:      []FunctionDefinition{def("safe_function"), def("log_message")},
		Callers:      []CallInfo{caller("main", 5)},
	}

	cmp := Compare(before, after)

	calleeNames := func(defs []FunctionDefinition) []string {
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		return names
	}

	assert.Equal(t, []string{"safe_function"}, calleeNames(cmp.AddedCallees))
	assert.Equal(t, []string{"dangerous_function"}, calleeNames(cmp.RemovedCallees))
	assert.Equal(t, []string{"log_message"}, calleeNames(cmp.UnchangedCallees))

	require.Len(t, cmp.UnchangedCallers, 1)
	assert.Equal(t, "main", cmp.UnchangedCallers[0].Name)
	assert.Equal(t, 5, cmp.UnchangedCallers[0].CallLine, "unchanged entries carry the after-side value")
	require.Len(t, cmp.RemovedCallers, 1)
	assert.Equal(t, "old_entry", cmp.RemovedCallers[0].Name)
	assert.Empty(t, cmp.AddedCallers)
}

func TestCompareSelf(t *testing.T) {
	a := &FunctionCallAnalysis{
		FunctionName: "f",
		Callees:      []FunctionDefinition{{Name: "g"}},
		Callers:      []CallInfo{{Name: "h"}},
	}
	cmp := Compare(a, a)
	assert.Empty(t, cmp.AddedCallees)
	assert.Empty(t, cmp.RemovedCallees)
	assert.Len(t, cmp.UnchangedCallees, 1)
	assert.Empty(t, cmp.AddedCallers)
	assert.Empty(t, cmp.RemovedCallers)
	assert.Len(t, cmp.UnchangedCallers, 1)
}

const beforeProcessC = `
void dangerous_function(char *s) {
    system(s);
}

void log_message(char *s) {
}

void process(char *input) {
    dangerous_function(input);
    log_message(input);
}

int main(int argc, char **argv) {
    process(argv[1]);
    return 0;
}
`

const afterProcessC = `
void safe_function(char *s) {
}

void log_message(char *s) {
}

void process(char *input) {
    safe_function(input);
    log_message(input);
}

int main(int argc, char **argv) {
    process(argv[1]);
    return 0;
}
`

func TestAnalyzePairs(t *testing.T) {
	reg := parser.NewRegistry(nil)
	beforeSrc := sourceOf([2]string{"process.c", beforeProcessC})
	afterSrc := sourceOf([2]string{"process.c", afterProcessC})

	pairs, err := AnalyzePairs(context.Background(), beforeSrc, afterSrc, []string{"process"}, reg, nil)
	require.NoError(t, err)
	pair, ok := pairs["process"]
	require.True(t, ok)

	calleeNames := func(defs []FunctionDefinition) []string {
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		return names
	}

	assert.Equal(t, []string{"safe_function"}, calleeNames(pair.Changes.AddedCallees))
	assert.Equal(t, []string{"dangerous_function"}, calleeNames(pair.Changes.RemovedCallees))
	assert.Equal(t, []string{"log_message"}, calleeNames(pair.Changes.UnchangedCallees))

	require.Len(t, pair.Changes.UnchangedCallers, 1)
	assert.Equal(t, "main", pair.Changes.UnchangedCallers[0].Name)

	record := pair.Record()
	assert.Equal(t, "process", record.FunctionName)
	assert.Equal(t, 2, record.Summary.BeforeFix.NumCallees)
	assert.Equal(t, 2, record.Summary.AfterFix.NumCallees)
	assert.Equal(t, 1, record.Summary.Changes.AddedCallees)
	assert.Equal(t, 1, record.Summary.Changes.RemovedCallees)
	assert.Equal(t, 1, record.Summary.Changes.UnchangedCallees)
	assert.Equal(t, 1, record.Summary.BeforeFix.UniqueCallerFiles)
}

func TestAnalyzePairsOneSidedTarget(t *testing.T) {
	reg := parser.NewRegistry(nil)
	beforeSrc := sourceOf([2]string{"a.c", "void only_before() {\n}\n"})
	afterSrc := sourceOf([2]string{"a.c", "void only_after() {\n}\n"})

	pairs, err := AnalyzePairs(context.Background(), beforeSrc, afterSrc,
		[]string{"only_before", "only_after", "never_existed"}, reg, nil)
	require.NoError(t, err)

	require.Contains(t, pairs, "only_before")
	require.Contains(t, pairs, "only_after")
	assert.NotContains(t, pairs, "never_existed")

	gone := pairs["only_before"]
	assert.Equal(t, "a.c", gone.Pair.Before.FilePath)
	assert.Empty(t, gone.Pair.After.FilePath)
	assert.Empty(t, gone.Pair.After.Callees)
	assert.Empty(t, gone.Pair.After.Callers)
}
