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

// Package resolve turns the unresolved call sites and base-class references
// an Extractor emits into concrete cross-file edges, using the pre-scan
// symbol map as its only cross-file input.
package resolve

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/cgindex/cgindex/internal/ir"
	"github.com/cgindex/cgindex/internal/prescan"
)

// parallelThreshold mirrors the ingestion pipeline's own sequential/parallel
// cutoff: below this many items, goroutine setup costs more than it saves.
const parallelThreshold = 1000

// CallEdge is a resolved CALLS edge: CallerName/CallerFile identify the
// source Function (or, for top-level calls, the File), TargetFile is the
// resolved destination file, and Callee is the short name the target is
// expected to define there.
type CallEdge struct {
	CallerName string
	CallerFile string
	Callee     string
	TargetFile string
	LineNumber int
	Args       []string
}

// InheritsEdge is a resolved Class INHERITS Class edge.
type InheritsEdge struct {
	ClassName  string
	ClassFile  string
	BaseName   string
	TargetFile string
	LineNumber int
}

// ImplementsEdge is a resolved Class IMPLEMENTS Interface edge. Interface
// resolution follows the same priority list as base classes, since an
// interface is just another named type that may live in a different file.
type ImplementsEdge struct {
	ClassName     string
	ClassFile     string
	InterfaceName string
	TargetFile    string
	LineNumber    int
}

// Resolver resolves one file's IR against the batch-wide pre-scan map. A
// Resolver also needs each file's own import paths for priority rule 4
// (import-path suffix match), so imports are registered per file before
// resolution runs — mirroring the ingestion pipeline's own
// BuildIndex-then-Resolve two-step.
type Resolver struct {
	scan *prescan.Map

	mu          sync.RWMutex
	fileImports map[string][]string // file path -> import paths (raw Import.Name)
}

// New builds a Resolver over an already-populated pre-scan map.
func New(scan *prescan.Map) *Resolver {
	return &Resolver{scan: scan, fileImports: make(map[string][]string)}
}

// RegisterImports records a file's import paths for later import-suffix
// matching (priority rule 4). Call once per file before Resolve.
func (r *Resolver) RegisterImports(filePath string, imports []ir.Import) {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(imports))
	for _, imp := range imports {
		paths = append(paths, imp.Name)
	}
	r.fileImports[filePath] = paths
}

// Resolve resolves every call and inheritance/implementation reference in
// file, using the pre-scan map and file's own registered imports. Call
// RegisterImports for every file in the batch before calling Resolve on any
// of them, so priority rule 4 sees the full import set.
func (r *Resolver) Resolve(file ir.File) ([]CallEdge, []InheritsEdge, []ImplementsEdge) {
	calls := r.resolveCalls(file)
	inherits := r.resolveInheritance(file)
	impls := r.resolveImplementations(file)
	return calls, inherits, impls
}

func (r *Resolver) resolveCalls(file ir.File) []CallEdge {
	if len(file.FunctionCalls) < parallelThreshold {
		out := make([]CallEdge, 0, len(file.FunctionCalls))
		for _, call := range file.FunctionCalls {
			out = append(out, r.resolveOneCall(file, call))
		}
		return out
	}
	return r.resolveCallsParallel(file)
}

func (r *Resolver) resolveCallsParallel(file ir.File) []CallEdge {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8
	}
	calls := file.FunctionCalls
	out := make([]CallEdge, len(calls))
	jobs := make(chan int, len(calls))
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = r.resolveOneCall(file, calls[i])
			}
		}()
	}
	for i := range calls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

// resolveOneCall applies the resolver's six-rule priority list. First match
// wins; rule 6 always matches so every call produces an edge.
func (r *Resolver) resolveOneCall(file ir.File, call ir.Call) CallEdge {
	short := shortName(call.FullName)
	edge := CallEdge{
		CallerName: call.Context.EnclosingFunction,
		CallerFile: file.FilePath,
		Callee:     short,
		LineNumber: call.LineNumber,
		Args:       call.Args,
	}

	// Rule 1: receiver type present in the pre-scan map.
	if call.ReceiverType != "" {
		if defs := r.scan.Lookup(call.ReceiverType); len(defs) > 0 {
			edge.TargetFile = defs[0]
			return edge
		}
	}

	// Rule 2: short name defined in the current file.
	if definedInFile(file, short) {
		edge.TargetFile = file.FilePath
		return edge
	}

	defs := r.scan.Lookup(short)

	// Rule 3: exactly one definer in the batch.
	if len(defs) == 1 {
		edge.TargetFile = defs[0]
		return edge
	}

	// Rule 4: multiple definers, but one matches an import path suffix.
	if len(defs) > 1 {
		if match := r.matchByImportSuffix(file.FilePath, defs); match != "" {
			edge.TargetFile = match
			return edge
		}
	}

	// Rule 5: any definer at all — take the first.
	if len(defs) > 0 {
		edge.TargetFile = defs[0]
		return edge
	}

	// Rule 6: fall back to the caller's own file.
	edge.TargetFile = file.FilePath
	return edge
}

func (r *Resolver) resolveInheritance(file ir.File) []InheritsEdge {
	out := make([]InheritsEdge, 0, len(file.Inheritance))
	for _, inh := range file.Inheritance {
		target := r.resolveTypeName(file, inh.BaseName)
		if target == "" {
			// Rule-6 equivalent for inheritance doesn't apply: unresolved
			// bases are silently dropped rather than pointed at the
			// caller's own file.
			continue
		}
		out = append(out, InheritsEdge{
			ClassName:  inh.ClassName,
			ClassFile:  file.FilePath,
			BaseName:   inh.BaseName,
			TargetFile: target,
			LineNumber: inh.LineNumber,
		})
	}
	return out
}

func (r *Resolver) resolveImplementations(file ir.File) []ImplementsEdge {
	out := make([]ImplementsEdge, 0, len(file.Implementations))
	for _, impl := range file.Implementations {
		target := r.resolveTypeName(file, impl.InterfaceName)
		if target == "" {
			continue
		}
		out = append(out, ImplementsEdge{
			ClassName:     impl.ClassName,
			ClassFile:     file.FilePath,
			InterfaceName: impl.InterfaceName,
			TargetFile:    target,
			LineNumber:    impl.LineNumber,
		})
	}
	return out
}

// resolveTypeName applies rules 2-5 of the call priority list (no receiver
// rule, no dangling fallback) to a bare type/interface name.
func (r *Resolver) resolveTypeName(file ir.File, name string) string {
	short := shortName(name)
	if definedInFile(file, short) {
		return file.FilePath
	}
	defs := r.scan.Lookup(short)
	if len(defs) == 1 {
		return defs[0]
	}
	if len(defs) > 1 {
		if match := r.matchByImportSuffix(file.FilePath, defs); match != "" {
			return match
		}
		return defs[0]
	}
	return ""
}

func (r *Resolver) matchByImportSuffix(filePath string, candidates []string) string {
	r.mu.RLock()
	imports := r.fileImports[filePath]
	r.mu.RUnlock()
	for _, imp := range imports {
		for _, c := range candidates {
			dir := filepath.Dir(c)
			if strings.HasSuffix(imp, dir) || strings.HasSuffix(dir, imp) {
				return c
			}
		}
	}
	return ""
}

func definedInFile(file ir.File, short string) bool {
	for _, fn := range file.Functions {
		if fn.Name == short || shortName(fn.Name) == short {
			return true
		}
	}
	for _, cls := range file.Classes {
		if cls.Name == short {
			return true
		}
	}
	for _, mac := range file.Macros {
		if mac.Name == short {
			return true
		}
	}
	return false
}

// shortName returns the final segment of a dotted or scope-qualified name,
// e.g. "pkg.Foo" -> "Foo", "obj.method" -> "method", "mod::helper" ->
// "helper", "helper" -> "helper".
func shortName(full string) string {
	if idx := strings.LastIndex(full, "::"); idx >= 0 {
		full = full[idx+2:]
	}
	if idx := strings.LastIndex(full, "."); idx >= 0 {
		return full[idx+1:]
	}
	return full
}
