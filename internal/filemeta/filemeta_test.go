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

package filemeta

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func storedFor(t *testing.T, path, parserVersion string) *Metadata {
	t.Helper()
	cur, err := Compute(path)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return &Metadata{Size: cur.Size, ModTime: cur.ModTime, Hash: cur.Hash, ParserVersion: parserVersion}
}

func TestCheck_NewFile(t *testing.T) {
	path := writeTestFile(t, "a.py", "def foo(): pass\n")
	changed, reason := Check(path, nil, "1")
	if !changed || reason != ReasonNewFile {
		t.Fatalf("got changed=%v reason=%s, want new_file", changed, reason)
	}
}

func TestCheck_FileDeleted(t *testing.T) {
	changed, reason := Check(filepath.Join(t.TempDir(), "gone.py"), nil, "1")
	if !changed || reason != ReasonFileDeleted {
		t.Fatalf("got changed=%v reason=%s, want file_deleted", changed, reason)
	}
}

func TestCheck_SizeChanged(t *testing.T) {
	path := writeTestFile(t, "a.py", "def foo(): pass\n")
	stored := storedFor(t, path, "1")
	if err := os.WriteFile(path, []byte("def foo(): pass\ndef bar(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, reason := Check(path, stored, "1")
	if !changed || reason != ReasonSizeChanged {
		t.Fatalf("got changed=%v reason=%s, want size_changed", changed, reason)
	}
}

func TestCheck_Unchanged(t *testing.T) {
	path := writeTestFile(t, "a.py", "def foo(): pass\n")
	stored := storedFor(t, path, "1")
	changed, reason := Check(path, stored, "1")
	if changed || reason != ReasonUnchanged {
		t.Fatalf("got changed=%v reason=%s, want unchanged", changed, reason)
	}
}

func TestCheck_ContentChanged(t *testing.T) {
	// Same byte count, newer mtime, different content: only the hash level
	// can catch this.
	path := writeTestFile(t, "a.py", "def foo(): pass\n")
	stored := storedFor(t, path, "1")
	stored.ModTime = stored.ModTime.Add(-2 * time.Second)
	if err := os.WriteFile(path, []byte("def bar(): pass\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, reason := Check(path, stored, "1")
	if !changed || reason != ReasonContentChanged {
		t.Fatalf("got changed=%v reason=%s, want content_changed", changed, reason)
	}
}

func TestCheck_TimestampOnly(t *testing.T) {
	path := writeTestFile(t, "a.py", "def foo(): pass\n")
	stored := storedFor(t, path, "1")
	stored.ModTime = stored.ModTime.Add(-2 * time.Second)
	changed, reason := Check(path, stored, "1")
	if changed || reason != ReasonTimestampOnly {
		t.Fatalf("got changed=%v reason=%s, want timestamp_only", changed, reason)
	}
}

func TestCheck_ParserUpgraded(t *testing.T) {
	path := writeTestFile(t, "a.py", "def foo(): pass\n")
	stored := storedFor(t, path, "1")
	changed, reason := Check(path, stored, "2")
	if !changed || reason != ReasonParserUpgraded {
		t.Fatalf("got changed=%v reason=%s, want parser_upgraded", changed, reason)
	}
}

// TestHash_Invariance: identical content always hashes identically,
// regardless of path or timestamps.
func TestHash_Invariance(t *testing.T) {
	a := writeTestFile(t, "a.py", "x = 1\n")
	b := writeTestFile(t, "b.py", "x = 1\n")
	ha, err := Hash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha != hb {
		t.Fatalf("identical content hashed differently: %s vs %s", ha, hb)
	}
}

func TestHash_KnownVector(t *testing.T) {
	path := writeTestFile(t, "empty.txt", "")
	h, err := Hash(path)
	if err != nil {
		t.Fatal(err)
	}
	// SHA-256 of the empty string.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Fatalf("got %s, want %s", h, want)
	}
}

func TestHash_LargeFileStreams(t *testing.T) {
	// Larger than one read block, to exercise the streaming path.
	big := make([]byte, readBlockSize*3+17)
	for i := range big {
		big[i] = byte(i % 251)
	}
	path := filepath.Join(t.TempDir(), "big.bin")
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := Hash(path)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 || len(h1) != 64 {
		t.Fatalf("unstable or malformed hash: %q vs %q", h1, h2)
	}
}
