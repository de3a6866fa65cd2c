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

// Package indexer composes the Grammar Registry, per-language extractors,
// the pre-scan map, the cross-file resolver, and the Graph Writer into the
// full-index and incremental-index control flows.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cgindex/cgindex/internal/cgerrors"
	"github.com/cgindex/cgindex/internal/extract"
	"github.com/cgindex/cgindex/internal/filemeta"
	"github.com/cgindex/cgindex/internal/grammar"
	"github.com/cgindex/cgindex/internal/graphstore"
	"github.com/cgindex/cgindex/internal/ir"
	"github.com/cgindex/cgindex/internal/job"
	"github.com/cgindex/cgindex/internal/metrics"
	"github.com/cgindex/cgindex/internal/prescan"
	"github.com/cgindex/cgindex/internal/resolve"
)

// ParserVersion is bumped whenever an extractor's grammar or query set
// changes in a way that should force re-extraction of otherwise-unchanged
// files, per the file-metadata tracker's parser_upgraded path.
const ParserVersion = "1"

// defaultExcludes covers the directories and artifacts no language's
// extractor should ever see.
var defaultExcludes = []string{
	".git/**", "node_modules/**", "vendor/**", "dist/**", "build/**", ".cgindex/**",
	"*.min.js", "*.map",
}

// ProgressFunc reports (current, total, phase) as a batch runs.
type ProgressFunc func(current, total int64, phase string)

// Result summarizes one full or incremental index run.
type Result struct {
	JobID        string
	FilesIndexed int
	FilesSkipped int
	FilesFailed  int
	FilesDeleted int
	NodesWritten int
	EdgesWritten int
	Errors       []string
	Duration     time.Duration
}

// Indexer owns the long-lived state a repository's indexing session needs:
// the batch-wide symbol map and resolver persist across both full and
// incremental runs so incremental updates can still resolve calls against
// symbols defined elsewhere in the repository.
type Indexer struct {
	store        *graphstore.Store
	grammars     *grammar.Registry
	extractors   *extract.Registry
	logger       *slog.Logger
	excludeGlobs []string
	maxFileSize  int64
	jobs         *job.Manager

	mu       sync.Mutex
	jobSeq   int
	scan     *prescan.Map
	resolver *resolve.Resolver
}

// New builds an Indexer over an already-open Store.
func New(store *graphstore.Store, grammars *grammar.Registry, logger *slog.Logger, excludeGlobs []string, maxFileSize int64) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	scan := prescan.New()
	return &Indexer{
		store:        store,
		grammars:     grammars,
		extractors:   extract.NewRegistry(grammars),
		logger:       logger,
		excludeGlobs: append(append([]string{}, defaultExcludes...), excludeGlobs...),
		maxFileSize:  maxFileSize,
		jobs:         job.NewManager(),
		scan:         scan,
		resolver:     resolve.New(scan),
	}
}

// Jobs exposes the job manager so callers can observe and cancel running
// batch operations.
func (ix *Indexer) Jobs() *job.Manager {
	return ix.jobs
}

// newJobID returns a process-unique job identifier.
func (ix *Indexer) newJobID() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.jobSeq++
	return fmt.Sprintf("index-%d-%d", time.Now().Unix(), ix.jobSeq)
}

// enumerateFiles walks repoPath, returning every file whose extension the
// Grammar Registry supports and which survives the exclude/size filters.
func (ix *Indexer) enumerateFiles(repoPath string) ([]string, error) {
	var out []string
	err := filepath.Walk(repoPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			return nil
		}
		if rel != "." && matchesExclude(rel, ix.excludeGlobs) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if _, ok := ix.grammars.LanguageFor(filepath.Ext(path)); !ok {
			return nil
		}
		if ix.maxFileSize > 0 && info.Size() > ix.maxFileSize {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, cgerrors.NewInternalError("failed to walk repository", err.Error(), err)
	}
	return out, nil
}

// extractAll parses every path, in parallel above a small worker floor. A
// per-file parse failure is recorded on the result and never aborts the
// batch.
func (ix *Indexer) extractAll(ctx context.Context, paths []string, result *Result) []ir.File {
	numWorkers := runtime.NumCPU()
	if numWorkers < 2 {
		numWorkers = 2
	}
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}
	if numWorkers == 0 {
		return nil
	}

	files := make([]ir.File, len(paths))
	ok := make([]bool, len(paths))
	jobs := make(chan int, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := paths[i]
				extractor, found := ix.extractors.ForPath(path)
				if !found {
					continue
				}
				start := time.Now()
				file, err := extractor.Extract(ctx, path)
				metrics.ObserveParse(time.Since(start).Seconds())
				if err != nil {
					mu.Lock()
					result.FilesFailed++
					result.Errors = append(result.Errors, cgerrors.NewParseError(path, err).Error())
					mu.Unlock()
					metrics.FileFailed()
					continue
				}
				files[i] = file
				ok[i] = true
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	out := make([]ir.File, 0, len(paths))
	for i, present := range ok {
		if present {
			out = append(out, files[i])
		}
	}
	return out
}

// FullIndex ensures the schema exists and indexes every eligible file under
// repoPath, discarding any prior resolver state. A file already in the graph
// has its subtree deleted and re-written; graph entries for files no longer
// on disk are not removed.
func (ix *Indexer) FullIndex(ctx context.Context, repoPath string, progress ProgressFunc) (Result, error) {
	start := time.Now()
	var result Result

	ix.mu.Lock()
	ix.scan = prescan.New()
	ix.resolver = resolve.New(ix.scan)
	ix.mu.Unlock()

	if err := ix.store.CreateSchema(); err != nil {
		return result, err
	}

	paths, err := ix.enumerateFiles(repoPath)
	if err != nil {
		return result, err
	}

	jobID := ix.newJobID()
	result.JobID = jobID
	ix.jobs.Create(jobID, len(paths))
	ix.jobs.Start(jobID)

	if progress != nil {
		progress(0, int64(len(paths)), "parsing")
	}
	files := ix.extractAll(ctx, paths, &result)
	if progress != nil {
		progress(int64(len(paths)), int64(len(paths)), "parsing")
	}

	for _, f := range files {
		ix.scan.AddFile(f)
		ix.resolver.RegisterImports(f.FilePath, f.Imports)
	}

	if progress != nil {
		progress(0, int64(len(files)), "writing")
	}
	var allCalls []resolve.CallEdge
	var allInherits []resolve.InheritsEdge
	var allImpls []resolve.ImplementsEdge
	var written []ir.File

	for i, f := range files {
		// Yield point: cancellation via either context or job manager.
		select {
		case <-ctx.Done():
			ix.jobs.Cancel(jobID)
			ix.jobs.Finish(jobID, result.Errors)
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}
		if ix.jobs.Cancelled(jobID) {
			ix.jobs.Finish(jobID, result.Errors)
			result.Duration = time.Since(start)
			return result, context.Canceled
		}
		ix.jobs.Advance(jobID, f.FilePath)

		cur, err := filemeta.Compute(f.FilePath)
		if err != nil {
			result.FilesFailed++
			result.Errors = append(result.Errors, cgerrors.NewMissingFile(f.FilePath).Error())
			continue
		}
		// Delete-then-insert so re-indexing a previously-indexed file
		// converges instead of merging stale entities.
		if stored, metaErr := ix.store.FileMetadata(f.FilePath); metaErr == nil && stored != nil {
			if err := ix.store.DeleteFileSubtree(f.FilePath); err != nil {
				result.FilesFailed++
				result.Errors = append(result.Errors, err.Error())
				continue
			}
		}
		if err := ix.store.UpsertFile(f, cur.Hash, cur.Size, cur.ModTime, ParserVersion); err != nil {
			result.FilesFailed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		written = append(written, f)

		calls, inherits, impls := ix.resolver.Resolve(f)
		allCalls = append(allCalls, calls...)
		allInherits = append(allInherits, inherits...)
		allImpls = append(allImpls, impls...)

		result.FilesIndexed++
		result.NodesWritten += nodeCount(f)
		metrics.FileIndexed()
		metrics.NodesWritten(nodeCount(f))
		if progress != nil {
			progress(int64(i+1), int64(len(files)), "writing")
		}
	}

	writeStart := time.Now()
	if err := ix.store.WriteCrossFileEdges(allCalls, allInherits, allImpls); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	// The CSS cascade pass runs once the cross-file edges are written.
	for _, f := range written {
		if err := ix.store.WriteCascade(f); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}
	metrics.ObserveWrite(time.Since(writeStart).Seconds())
	result.EdgesWritten += len(allCalls) + len(allInherits) + len(allImpls)
	metrics.EdgesWritten(len(allCalls) + len(allInherits) + len(allImpls))
	for range allCalls {
		metrics.CallResolved()
	}

	ix.jobs.Finish(jobID, result.Errors)
	result.Duration = time.Since(start)
	return result, nil
}

// IncrementalIndex re-triages a single file through the file-metadata
// tracker and, if it changed, deletes its old subtree and re-extracts and
// re-links it. Cross-file edges are re-resolved for this file only; the
// batch-wide symbol map gained from the last full index (or prior
// incremental runs) stands in for a full re-scan.
func (ix *Indexer) IncrementalIndex(ctx context.Context, repoPath, filePath string) error {
	stored, err := ix.store.FileMetadata(filePath)
	if err != nil {
		return err
	}

	changed, reason := filemeta.Check(filePath, stored, ParserVersion)
	if !changed {
		metrics.FileSkipped()
		ix.logger.Debug("indexer.unchanged", "path", filePath, "reason", string(reason))
		return nil
	}
	if reason == filemeta.ReasonFileDeleted {
		return ix.DeleteFile(filePath)
	}

	extractor, found := ix.extractors.ForPath(filePath)
	if !found {
		return nil
	}
	file, err := extractor.Extract(ctx, filePath)
	if err != nil {
		metrics.FileFailed()
		return cgerrors.NewParseError(filePath, err)
	}

	if stored != nil {
		if err := ix.store.DeleteFileSubtree(filePath); err != nil {
			return err
		}
	}

	cur, err := filemeta.Compute(filePath)
	if err != nil {
		return cgerrors.NewMissingFile(filePath)
	}
	if err := ix.store.UpsertFile(file, cur.Hash, cur.Size, cur.ModTime, ParserVersion); err != nil {
		return err
	}

	ix.mu.Lock()
	ix.scan.AddFile(file)
	ix.resolver.RegisterImports(file.FilePath, file.Imports)
	calls, inherits, impls := ix.resolver.Resolve(file)
	ix.mu.Unlock()

	if err := ix.store.WriteCrossFileEdges(calls, inherits, impls); err != nil {
		return err
	}
	if err := ix.store.WriteCascade(file); err != nil {
		return err
	}

	metrics.FileIndexed()
	metrics.NodesWritten(nodeCount(file))
	metrics.EdgesWritten(len(calls) + len(inherits) + len(impls))
	ix.logger.Info("indexer.reindexed", "path", filePath, "reason", string(reason))
	return nil
}

// DeleteFile removes a file's subtree from the graph; it serves files that
// are gone from disk (watcher deletes, file_deleted triage) and the CLI's
// delete command.
func (ix *Indexer) DeleteFile(filePath string) error {
	if err := ix.store.DeleteFileSubtree(filePath); err != nil {
		return err
	}
	metrics.FileDeleted()
	ix.logger.Info("indexer.deleted", "path", filePath)
	return nil
}

func nodeCount(f ir.File) int {
	return len(f.Functions) + len(f.Classes) + len(f.Variables) + len(f.Macros) +
		len(f.Rules) + len(f.Selectors) + len(f.Properties) + len(f.MediaQueries) + len(f.Imports) + 1
}
