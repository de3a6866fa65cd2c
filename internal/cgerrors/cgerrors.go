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

// Package cgerrors provides structured error handling for the cgindex CLI
// and its internal packages: a UserError type carrying what/why/how-to-fix
// plus a category that maps to both an exit code and an indexing-pipeline
// fault category.
package cgerrors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Category identifies one of the indexing pipeline's fault categories.
// Unlike a plain exit code, the category also tells the caller whether the
// fault aborts the whole run, fails a single file, or is swallowed silently.
type Category int

const (
	// ConfigError: backend URI/credentials missing or unparsable. Surfaced
	// immediately; aborts the operation.
	ConfigError Category = iota
	// BackendUnavailable: cannot establish a backend session. Aborts the
	// operation; no automatic retry.
	BackendUnavailable
	// ParseError: single-file syntactic failure. Logged and embedded in
	// that file's IR; never aborts the batch.
	ParseError
	// ResolutionMiss: a call or base class couldn't be resolved. Silent in
	// both directions — calls fall back to the caller's file, bases are
	// dropped — but recorded here for diagnostics.
	ResolutionMiss
	// MissingFile: a path vanished mid-batch. The file's job becomes
	// CANCELLED, not FAILED.
	MissingFile
	// WriteError: the backend rejected a write. Fatal for the batch; the
	// job becomes FAILED with the backend message attached.
	WriteError
	// WatcherError: the OS event source failed. The watcher stops and
	// reports; no automatic restart.
	WatcherError
	// Internal: a bug — an assertion failure, unexpected nil, or an
	// unhandled case.
	Internal
)

// exitCode maps each Category to a process exit code, following Unix
// convention: 0 success, small numbers for expected failure classes, 10 for
// "this is a bug."
var exitCode = map[Category]int{
	ConfigError:         1,
	BackendUnavailable:  2,
	ParseError:          3,
	ResolutionMiss:      4,
	MissingFile:         5,
	WriteError:          6,
	WatcherError:        7,
	Internal:            10,
}

// ExitSuccess is returned by commands that complete without error.
const ExitSuccess = 0

// UserError carries what went wrong (Message), why (Cause), and how to fix
// it (Fix), plus the Category driving its exit code and batch-abort
// behavior.
type UserError struct {
	Category Category
	Message  string
	Cause    string
	Fix      string
	Err      error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for this error's category.
func (e *UserError) ExitCode() int {
	return exitCode[e.Category]
}

// Aborts reports whether this category stops the whole batch rather than
// just failing one file or one edge.
func (e *UserError) Aborts() bool {
	switch e.Category {
	case ConfigError, BackendUnavailable, WriteError, WatcherError:
		return true
	default:
		return false
	}
}

func New(cat Category, msg, cause, fix string, err error) *UserError {
	return &UserError{Category: cat, Message: msg, Cause: cause, Fix: fix, Err: err}
}

func NewConfigError(msg, cause, fix string, err error) *UserError {
	return New(ConfigError, msg, cause, fix, err)
}

func NewBackendUnavailable(msg, cause, fix string, err error) *UserError {
	return New(BackendUnavailable, msg, cause, fix, err)
}

func NewParseError(path string, err error) *UserError {
	return New(ParseError, fmt.Sprintf("failed to parse %s", path), err.Error(), "", err)
}

func NewMissingFile(path string) *UserError {
	return New(MissingFile, fmt.Sprintf("file vanished mid-batch: %s", path), "", "", nil)
}

func NewWriteError(msg, cause string, err error) *UserError {
	return New(WriteError, msg, cause, "", err)
}

func NewWatcherError(msg string, err error) *UserError {
	return New(WatcherError, msg, "", "the watcher has stopped; restart it manually", err)
}

func NewInternalError(msg, cause string, err error) *UserError {
	return New(Internal, msg, cause, "this is a bug, please report it", err)
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format renders the error for terminal display: red Error line, yellow
// Cause, green Fix. Empty Cause/Fix are omitted. Color is suppressed when
// explicitly disabled, when NO_COLOR is set, or when stderr isn't a real
// terminal (e.g. piped into a log file or CI).
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")
	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// JSON is the machine-readable rendering of a UserError.
type JSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	Category string `json:"category"`
	ExitCode int    `json:"exit_code"`
}

var categoryName = map[Category]string{
	ConfigError:        "config_error",
	BackendUnavailable: "backend_unavailable",
	ParseError:         "parse_error",
	ResolutionMiss:     "resolution_miss",
	MissingFile:        "missing_file",
	WriteError:         "write_error",
	WatcherError:       "watcher_error",
	Internal:           "internal",
}

func (e *UserError) ToJSON() JSON {
	return JSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		Category: categoryName[e.Category],
		ExitCode: e.ExitCode(),
	}
}

// Fatal prints err and exits with its exit code. Non-UserError values exit
// with the Internal category's code.
func Fatal(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	if ue, ok := err.(*UserError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(ue.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, ue.Format(false))
		}
		os.Exit(ue.ExitCode())
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCode[Internal])
}
