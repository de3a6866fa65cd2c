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

// Package filemeta decides whether a file needs re-extraction: it compares
// freshly-stat'd size/mtime/hash against whatever was stored the last time
// the file was indexed.
package filemeta

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"
)

// readBlockSize is the streamed-hash chunk size; large enough that hashing
// a typical source file costs one or two reads.
const readBlockSize = 64 * 1024

// Reason names why a file was judged changed or unchanged.
type Reason string

const (
	ReasonNewFile        Reason = "new_file"
	ReasonSizeChanged    Reason = "size_changed"
	ReasonContentChanged Reason = "content_changed"
	ReasonTimestampOnly  Reason = "timestamp_only"
	ReasonParserUpgraded Reason = "parser_upgraded"
	ReasonUnchanged      Reason = "unchanged"
	ReasonFileDeleted    Reason = "file_deleted"
	ReasonErrorChecking  Reason = "error_checking"
)

// Metadata is what the graph stores about a previously-indexed file.
type Metadata struct {
	Size          int64
	ModTime       time.Time
	Hash          string
	ParserVersion string
}

// Current is freshly-computed metadata for a file on disk right now.
type Current struct {
	Size    int64
	ModTime time.Time
	Hash    string
}

// Stat reads size and mtime without hashing — the cheap levels of the
// four-level check that let most unchanged files skip a hash entirely.
func Stat(path string) (size int64, modTime time.Time, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, time.Time{}, err
	}
	return info.Size(), info.ModTime(), nil
}

// Hash streams the file in readBlockSize chunks and returns its hex SHA-256.
func Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, readBlockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Check runs the four-level short-circuited comparison described by the
// file-metadata tracker: stat-only levels first, hash only when mtime
// genuinely advanced. currentParserVersion lets a parser upgrade force
// re-extraction even when content is byte-identical.
func Check(path string, stored *Metadata, currentParserVersion string) (changed bool, reason Reason) {
	size, modTime, err := Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, ReasonFileDeleted
		}
		return true, ReasonErrorChecking
	}

	if stored == nil {
		return true, ReasonNewFile
	}
	if size != stored.Size {
		return true, ReasonSizeChanged
	}
	if !modTime.After(stored.ModTime) {
		if stored.ParserVersion != "" && currentParserVersion != "" && stored.ParserVersion != currentParserVersion {
			return true, ReasonParserUpgraded
		}
		return false, ReasonUnchanged
	}

	hash, err := Hash(path)
	if err != nil {
		return true, ReasonErrorChecking
	}
	if hash != stored.Hash {
		return true, ReasonContentChanged
	}
	if stored.ParserVersion != "" && currentParserVersion != "" && stored.ParserVersion != currentParserVersion {
		return true, ReasonParserUpgraded
	}
	return false, ReasonTimestampOnly
}

// Compute gathers the full Current snapshot (size, mtime, hash) for a file
// about to be (re-)indexed.
func Compute(path string) (Current, error) {
	size, modTime, err := Stat(path)
	if err != nil {
		return Current{}, err
	}
	hash, err := Hash(path)
	if err != nil {
		return Current{}, err
	}
	return Current{Size: size, ModTime: modTime, Hash: hash}, nil
}
