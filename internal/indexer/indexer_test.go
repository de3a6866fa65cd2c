// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build cgo

package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cgindex/cgindex/internal/grammar"
	"github.com/cgindex/cgindex/internal/graphstore"
	"github.com/cgindex/cgindex/internal/job"
)

type testEnv struct {
	repo  string
	store *graphstore.Store
	ix    *Indexer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := t.TempDir()
	store, err := graphstore.Open("mem", t.TempDir(), repo)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(store.Close)
	ix := New(store, grammar.New(), nil, nil, 0)
	return &testEnv{repo: repo, store: store, ix: ix}
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.repo, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// functionNames returns "name@relpath:line" for every function node, sorted.
func (e *testEnv) functionNames(t *testing.T) []string {
	t.Helper()
	rows, err := e.store.Query("?[name, file_path, line_number] := *cg_function{name, file_path, line_number}")
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, 0, len(rows.Rows))
	for _, r := range rows.Rows {
		rel, _ := filepath.Rel(e.repo, r[1].(string))
		line, _ := r[2].(float64)
		out = append(out, fmt.Sprintf("%s@%s:%d", r[0], rel, int(line)))
	}
	sort.Strings(out)
	return out
}

func (e *testEnv) callEdges(t *testing.T) [][]any {
	t.Helper()
	rows, err := e.store.Query("?[caller_name, caller_file, callee_name, target_file, line_number] := *cg_calls{caller_name, caller_file, callee_name, target_file, line_number}")
	if err != nil {
		t.Fatal(err)
	}
	return rows.Rows
}

// S1: two Python files, a cross-file call, one CALLS edge with the callee
// resolved to its defining file.
func TestFullIndex_PythonCrossFileCall(t *testing.T) {
	e := newTestEnv(t)
	aPath := e.write(t, "a.py", "def foo(): helper()\n")
	bPath := e.write(t, "b.py", "def helper(): pass\n")

	result, err := e.ix.FullIndex(context.Background(), e.repo, nil)
	if err != nil {
		t.Fatalf("FullIndex: %v", err)
	}
	if result.FilesIndexed != 2 {
		t.Fatalf("FilesIndexed = %d, want 2", result.FilesIndexed)
	}

	names := e.functionNames(t)
	want := []string{"foo@a.py:1", "helper@b.py:1"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("functions = %v, want %v", names, want)
	}

	edges := e.callEdges(t)
	if len(edges) != 1 {
		t.Fatalf("call edges = %v, want exactly one", edges)
	}
	edge := edges[0]
	if edge[0] != "foo" || edge[1] != aPath || edge[2] != "helper" || edge[3] != bPath {
		t.Fatalf("edge = %v, want foo@a.py -> helper@b.py", edge)
	}
	if line, _ := edge[4].(float64); int(line) != 1 {
		t.Fatalf("call line = %v, want 1", edge[4])
	}
}

// A method is contained by its class node, driven by the extractor's own
// enclosing-context capture end to end, not just by the writer's synthetic
// fixtures.
func TestFullIndex_ClassContainsMethod(t *testing.T) {
	e := newTestEnv(t)
	aPath := e.write(t, "a.py", "class Widget:\n    def render(self):\n        pass\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}

	rows, err := e.store.Query(fmt.Sprintf("?[child_id] := *cg_contains{parent_id: %q, child_id}", aPath+":Widget"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows.Rows) != 1 {
		t.Fatalf("class CONTAINS rows = %v, want exactly the method", rows.Rows)
	}
	if got := rows.Rows[0][0]; got != aPath+":Widget.render:2" {
		t.Fatalf("contained child = %v, want the render method node", got)
	}
}

// Indexing an unchanged repository twice converges to the same graph.
func TestFullIndex_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.py", "def foo(): helper()\n")
	e.write(t, "b.py", "def helper(): pass\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}
	first := e.functionNames(t)
	firstEdges := len(e.callEdges(t))

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}
	second := e.functionNames(t)
	secondEdges := len(e.callEdges(t))

	if len(first) != len(second) {
		t.Fatalf("node sets diverged: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("node sets diverged: %v vs %v", first, second)
		}
	}
	if firstEdges != secondEdges {
		t.Fatalf("edge counts diverged: %d vs %d", firstEdges, secondEdges)
	}
}

// S5: rewrite a file and deliver a modify; the graph converges to exactly
// the new entity set with no stale nodes.
func TestIncrementalIndex_Rewrite(t *testing.T) {
	e := newTestEnv(t)
	aPath := e.write(t, "a.py", "def foo(): pass\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}
	e.write(t, "a.py", "def foo(): pass\ndef bar(): pass\n")

	if err := e.ix.IncrementalIndex(context.Background(), e.repo, aPath); err != nil {
		t.Fatalf("IncrementalIndex: %v", err)
	}

	names := e.functionNames(t)
	want := []string{"bar@a.py:2", "foo@a.py:1"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("functions = %v, want %v", names, want)
	}
}

// An unchanged file is skipped without touching the graph.
func TestIncrementalIndex_UnchangedSkips(t *testing.T) {
	e := newTestEnv(t)
	aPath := e.write(t, "a.py", "def foo(): pass\n")
	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}
	before := e.functionNames(t)

	if err := e.ix.IncrementalIndex(context.Background(), e.repo, aPath); err != nil {
		t.Fatal(err)
	}
	after := e.functionNames(t)
	if len(before) != len(after) {
		t.Fatalf("graph changed for an unchanged file: %v vs %v", before, after)
	}
}

// S6: deleting a file removes its whole subtree, leaves siblings intact, and
// keeps the repository node.
func TestIncrementalIndex_DeleteCascade(t *testing.T) {
	e := newTestEnv(t)
	aPath := e.write(t, "a.py", "def foo(): pass\n")
	e.write(t, "b.py", "def bar(): pass\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(aPath); err != nil {
		t.Fatal(err)
	}
	// The tracker reports file_deleted; the incremental path cascades.
	if err := e.ix.IncrementalIndex(context.Background(), e.repo, aPath); err != nil {
		t.Fatalf("IncrementalIndex after delete: %v", err)
	}

	names := e.functionNames(t)
	if len(names) != 1 || names[0] != "bar@b.py:1" {
		t.Fatalf("functions = %v, want only bar@b.py:1", names)
	}
	rows, err := e.store.Query("?[path] := *cg_repository{path}")
	if err != nil || len(rows.Rows) != 1 {
		t.Fatalf("repository node missing after file delete: %v %v", rows.Rows, err)
	}
}

// A new file appearing after the initial index resolves calls against the
// batch-wide symbol map and vice versa.
func TestIncrementalIndex_NewFile(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "b.py", "def helper(): pass\n")
	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}

	aPath := e.write(t, "a.py", "def foo(): helper()\n")
	if err := e.ix.IncrementalIndex(context.Background(), e.repo, aPath); err != nil {
		t.Fatal(err)
	}

	edges := e.callEdges(t)
	if len(edges) != 1 {
		t.Fatalf("call edges = %v, want one", edges)
	}
	if rel, _ := filepath.Rel(e.repo, edges[0][3].(string)); rel != "b.py" {
		t.Fatalf("call resolved to %v, want b.py", edges[0][3])
	}
}

// Java inheritance across files: S2.
func TestFullIndex_JavaInheritance(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "Animal.java", "class Animal {\n}\n")
	e.write(t, "Runnable.java", "interface Runnable {\n}\n")
	e.write(t, "Dog.java", "class Dog extends Animal implements Runnable {\n}\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}

	inh, err := e.store.Query("?[class_name, base_name] := *cg_inherits{class_name, base_name}")
	if err != nil {
		t.Fatal(err)
	}
	if len(inh.Rows) != 1 || inh.Rows[0][0] != "Dog" || inh.Rows[0][1] != "Animal" {
		t.Fatalf("inherits = %v, want Dog -> Animal", inh.Rows)
	}

	impl, err := e.store.Query("?[class_name, interface_name] := *cg_implements{class_name, interface_name}")
	if err != nil {
		t.Fatal(err)
	}
	if len(impl.Rows) != 1 || impl.Rows[0][0] != "Dog" || impl.Rows[0][1] != "Runnable" {
		t.Fatalf("implements = %v, want Dog -> Runnable", impl.Rows)
	}
}

// S3: C include distinction survives the write path.
func TestFullIndex_CIncludes(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "main.c", "#include <stdio.h>\n#include \"util.h\"\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}

	rows, err := e.store.Query("?[module_name, is_system] := *cg_imports{module_name, is_system}")
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]bool{}
	for _, r := range rows.Rows {
		got[r[0].(string)] = r[1].(bool)
	}
	if len(got) != 2 || got["stdio.h"] != true || got["util.h"] != false {
		t.Fatalf("imports = %v", got)
	}
}

// S4 end to end: the cascade pass runs during indexing.
func TestFullIndex_CSSCascade(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "s.css", "p { color: red; }\n#id p { color: blue; }\n")

	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}

	rows, err := e.store.Query("?[weaker_rule, stronger_rule, specificity_diff] := *cg_overridden_by{weaker_rule, stronger_rule, specificity_diff}")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows.Rows) != 1 {
		t.Fatalf("override edges = %v, want one", rows.Rows)
	}
	r := rows.Rows[0]
	diff, _ := r[2].(float64)
	if r[0] != "p" || r[1] != "#id p" || int(diff) != 100 {
		t.Fatalf("edge = %v, want p overridden by #id p with diff 100", r)
	}
}

// Every full index is tracked as a job that ends COMPLETED.
func TestFullIndex_TracksJob(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "a.py", "def foo(): pass\n")

	result, err := e.ix.FullIndex(context.Background(), e.repo, nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.JobID == "" {
		t.Fatal("no job ID recorded")
	}
	j := e.ix.Jobs().Get(result.JobID)
	if j == nil {
		t.Fatal("job not registered")
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("job status = %s, want COMPLETED", j.Status)
	}
	if j.ProcessedFiles != 1 || j.TotalFiles != 1 {
		t.Fatalf("job progress = %d/%d", j.ProcessedFiles, j.TotalFiles)
	}
}

// Watcher-driven incremental updates converge to the same graph a full
// re-index would produce.
func TestWatch_DrivesIncrementalIndex(t *testing.T) {
	e := newTestEnv(t)
	e.write(t, "b.py", "def helper(): pass\n")
	if _, err := e.ix.FullIndex(context.Background(), e.repo, nil); err != nil {
		t.Fatal(err)
	}

	w, err := e.ix.Watch(context.Background(), e.repo, grammar.New())
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Stop()

	e.write(t, "a.py", "def foo(): helper()\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(e.functionNames(t)) == 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	names := e.functionNames(t)
	want := []string{"foo@a.py:1", "helper@b.py:1"}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("functions = %v, want %v", names, want)
	}
	edges := e.callEdges(t)
	if len(edges) != 1 || edges[0][2] != "helper" {
		t.Fatalf("call edges = %v, want one resolved helper call", edges)
	}
}

// A cancelled context stops the batch at the next yield point and the job
// records CANCELLED.
func TestFullIndex_Cancellation(t *testing.T) {
	e := newTestEnv(t)
	for i := 0; i < 10; i++ {
		e.write(t, fmt.Sprintf("f%d.py", i), "def f(): pass\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.ix.FullIndex(ctx, e.repo, nil)
	if err == nil {
		t.Fatal("cancelled FullIndex returned nil error")
	}
	if result.JobID != "" {
		if j := e.ix.Jobs().Get(result.JobID); j != nil && j.Status != job.StatusCancelled {
			t.Fatalf("job status = %s, want CANCELLED", j.Status)
		}
	}
}
