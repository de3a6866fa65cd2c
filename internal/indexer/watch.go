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

package indexer

import (
	"context"
	"path/filepath"

	"github.com/cgindex/cgindex/internal/grammar"
	"github.com/cgindex/cgindex/internal/metrics"
	"github.com/cgindex/cgindex/internal/watch"
)

// Watch builds and starts a Watcher rooted at repoPath, translating each
// debounced filesystem event into an incremental-index or delete operation.
// Unsupported extensions are ignored at the event layer so the watcher never
// pays extraction cost for files the Grammar Registry wouldn't index.
func (ix *Indexer) Watch(ctx context.Context, repoPath string, grammars *grammar.Registry) (*watch.Watcher, error) {
	handler := func(ev watch.Event) error {
		if _, ok := grammars.LanguageFor(filepath.Ext(ev.Path)); !ok {
			return nil
		}
		switch ev.Kind {
		case watch.Create:
			metrics.WatchEventCreate()
			return ix.IncrementalIndex(ctx, repoPath, ev.Path)
		case watch.Modify:
			metrics.WatchEventModify()
			return ix.IncrementalIndex(ctx, repoPath, ev.Path)
		case watch.Delete:
			metrics.WatchEventDelete()
			return ix.DeleteFile(ev.Path)
		default:
			return nil
		}
	}

	w, err := watch.New(repoPath, handler, ix.logger)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}
