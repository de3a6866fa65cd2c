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

package watch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// collector is a Handler that records every event it sees.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// waitFor polls until cond sees a matching event or the deadline passes.
func waitFor(t *testing.T, c *collector, cond func(Event) bool) Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, ev := range c.snapshot() {
			if cond(ev) {
				return ev
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("no matching event; saw %+v", c.snapshot())
	return Event{}
}

func startWatcher(t *testing.T, root string, h Handler) *Watcher {
	t.Helper()
	w, err := New(root, h, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestClassify(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want EventKind
	}{
		{fsnotify.Create, Create},
		{fsnotify.Write, Modify},
		{fsnotify.Remove, Delete},
		{fsnotify.Rename, Delete},
		{fsnotify.Create | fsnotify.Write, Create}, // coalesced burst keeps the create
		{fsnotify.Chmod, Modify},
	}
	for _, tt := range tests {
		if got := classify("/x", tt.op); got.Kind != tt.want {
			t.Errorf("classify(%v) = %v, want %v", tt.op, got.Kind, tt.want)
		}
	}
}

func TestStateMachine(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, func(Event) error { return nil }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if w.State() != Idle {
		t.Fatalf("fresh watcher state = %v, want Idle", w.State())
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if w.State() != Observing {
		t.Fatalf("started watcher state = %v, want Observing", w.State())
	}
	w.Stop()
	if w.State() != Stopped {
		t.Fatalf("stopped watcher state = %v, want Stopped", w.State())
	}
}

func TestWatcher_CreateEvent(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	startWatcher(t, root, c.handle)

	path := filepath.Join(root, "new.py")
	if err := os.WriteFile(path, []byte("def foo(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ev := waitFor(t, c, func(ev Event) bool { return ev.Path == path })
	if ev.Kind != Create {
		t.Fatalf("kind = %v, want Create", ev.Kind)
	}
}

func TestWatcher_ModifyEvent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	startWatcher(t, root, c.handle)

	if err := os.WriteFile(path, []byte("x = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev := waitFor(t, c, func(ev Event) bool { return ev.Path == path })
	if ev.Kind != Modify {
		t.Fatalf("kind = %v, want Modify", ev.Kind)
	}
}

func TestWatcher_DeleteEvent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	startWatcher(t, root, c.handle)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	ev := waitFor(t, c, func(ev Event) bool { return ev.Path == path && ev.Kind == Delete })
	if ev.Kind != Delete {
		t.Fatalf("kind = %v, want Delete", ev.Kind)
	}
}

// A burst of writes within the debounce window fires the handler once.
func TestWatcher_DebounceCoalesces(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.py")
	if err := os.WriteFile(path, []byte("x = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := &collector{}
	startWatcher(t, root, c.handle)

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, c, func(ev Event) bool { return ev.Path == path })
	time.Sleep(3 * debounceWindow)

	count := 0
	for _, ev := range c.snapshot() {
		if ev.Path == path {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("handler fired %d times for one burst, want 1", count)
	}
}

// Handler errors are recorded, never propagated: the watcher keeps running.
func TestWatcher_HandlerErrorDoesNotStop(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	handler := func(ev Event) error {
		_ = c.handle(ev)
		return errors.New("extraction failed")
	}
	w := startWatcher(t, root, handler)

	for i := 0; i < 2; i++ {
		name := filepath.Join(root, "f"+string(rune('a'+i))+".py")
		if err := os.WriteFile(name, []byte("pass\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		waitFor(t, c, func(ev Event) bool { return ev.Path == name })
	}
	if w.State() != Observing {
		t.Fatalf("watcher state = %v after handler errors, want Observing", w.State())
	}
}

// Events that land after Stop never reach the handler.
func TestWatcher_NoEventsAfterStop(t *testing.T) {
	root := t.TempDir()
	c := &collector{}
	w := startWatcher(t, root, c.handle)
	w.Stop()

	if err := os.WriteFile(filepath.Join(root, "late.py"), []byte("pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(3 * debounceWindow)
	if events := c.snapshot(); len(events) != 0 {
		t.Fatalf("handler saw %d events after Stop", len(events))
	}
}
