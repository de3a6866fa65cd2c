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

// Package watch subscribes to filesystem events under a repository root,
// debounces bursts per file, classifies them, and drives incremental
// re-indexing through a caller-supplied handler.
package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// skipDirs are never walked or watched: noisy, large, or not source.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".cgindex": true, "bin": true,
}

// debounceWindow coalesces bursts of events against the same file arriving
// within a short window.
const debounceWindow = 100 * time.Millisecond

// EventKind classifies a filesystem change.
type EventKind int

const (
	Create EventKind = iota
	Modify
	Delete
	Move
)

// Event is a debounced, classified filesystem change ready for the handler.
type Event struct {
	Kind    EventKind
	Path    string
	OldPath string // set only for Move
}

// Handler reacts to a debounced Event. Errors are recorded but never stop
// the watcher.
type Handler func(Event) error

// State names a position in the watcher's lifecycle.
type State int

const (
	Idle State = iota
	Observing
	Draining
	Stopped
)

// Watcher owns one fsnotify subscription over a repository root. The only
// cancellation path is Stop, which moves the state machine through
// Draining to Stopped. Stop does not wait for a handler invocation that is
// already running; it completes on its own goroutine.
type Watcher struct {
	root    string
	handler Handler
	logger  *slog.Logger

	fsw *fsnotify.Watcher

	mu    sync.Mutex
	state State

	pending map[string]*time.Timer
	lastOp  map[string]fsnotify.Op
}

// New creates a Watcher rooted at root. Call Start to begin observing.
func New(root string, handler Handler, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:    root,
		handler: handler,
		logger:  logger,
		fsw:     fsw,
		state:   Idle,
		pending: make(map[string]*time.Timer),
		lastOp:  make(map[string]fsnotify.Op),
	}, nil
}

// State reports the watcher's current lifecycle position.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start adds every non-skipped directory under root to the subscription and
// begins the event loop in a new goroutine. Transitions Idle -> Observing.
func (w *Watcher) Start() error {
	w.mu.Lock()
	w.state = Observing
	w.mu.Unlock()

	count := 0
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if skipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(w.root)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			w.logger.Warn("watch.add_failed", "path", path, "err", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return err
	}
	w.logger.Info("watch.started", "root", w.root, "dirs", count)
	go w.loop()
	return nil
}

// Stop cancels pending debounce timers (their events are dropped) and closes
// the subscription.
// Observing -> Draining -> Stopped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.state = Draining
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()

	w.fsw.Close()

	w.mu.Lock()
	w.state = Stopped
	w.mu.Unlock()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.debounce(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch.fsnotify_error", "err", err)
		}
	}
}

func (w *Watcher) debounce(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != Observing {
		return
	}

	path := event.Name
	w.lastOp[path] = w.lastOp[path] | event.Op
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(debounceWindow, func() {
		w.fire(path)
	})
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	if w.state != Observing {
		w.mu.Unlock()
		return
	}
	op := w.lastOp[path]
	delete(w.pending, path)
	delete(w.lastOp, path)
	w.mu.Unlock()

	ev := classify(path, op)
	if err := w.handler(ev); err != nil {
		w.logger.Error("watch.handler_error", "path", path, "err", err)
	}
}

// classify maps fsnotify's op bitmask to one coarse EventKind. A rename
// followed shortly by a create of the new name would ideally pair into a
// single Move, but fsnotify reports them as independent paths; a move is
// only detected here when the OS itself reports fsnotify.Rename for the
// old path, which this watcher treats as a Delete — the create of the new
// path arrives as its own Create event.
func classify(path string, op fsnotify.Op) Event {
	switch {
	case op&fsnotify.Create != 0:
		return Event{Kind: Create, Path: path}
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return Event{Kind: Delete, Path: path}
	default:
		return Event{Kind: Modify, Path: path}
	}
}
