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

// Package cozo wraps the embedded CozoDB engine for the graph writer's two
// access patterns: Exec, the mutable path for CozoScript schema/upsert/
// delete batches (no result rows wanted), and Query, the immutable path for
// reads, where the engine itself rejects any mutation regardless of what
// the script says. Splitting the API this way means a read path can never
// be accidentally handed a mutating script: the write capability is a
// different method, not a flag.
//
// Building requires the CozoDB C library and header. Either place
// libcozo_c and cozo_c.h under ./lib at the repository root (the default
// LDFLAGS below point there), or set:
//
//	export CGO_LDFLAGS="-L/path/to/libcozo_c"
//	export CGO_CFLAGS="-I/path/to/cozo_c.h"
package cozo

/*
#include <stdlib.h>
#include <string.h>
#include "cozo_c.h"

// Use ${SRCDIR} so "go install ./cmd/cgindex" finds the vendored static
// library in ./lib regardless of the caller's working directory.
#cgo LDFLAGS: -L${SRCDIR}/../../lib -lcozo_c -lstdc++ -lm
#cgo windows LDFLAGS: -lbcrypt -lwsock32 -lws2_32 -lshlwapi -lrpcrt4
#cgo darwin LDFLAGS: -framework Security
*/
import "C"

import (
	"encoding/json"
	"errors"
	"fmt"
	"unsafe"
)

// DB is one open CozoDB instance. The zero value is unusable; obtain one
// from Open. Methods on a closed DB return errors rather than touching the
// freed engine handle.
type DB struct {
	id   C.int32_t
	open bool
}

// Params carries named parameters into a Query, referenced from CozoScript
// as $name.
type Params = map[string]any

// Rows is a decoded query result. Cell values come out of the engine's
// JSON envelope, so every number is a float64 and every truth value a bool
// regardless of the column's declared type; use Int/Float/Str to read
// cells without caring which numeric shape the decoder picked.
type Rows struct {
	Headers []string
	Rows    [][]any
}

// Empty reports whether the result has no rows.
func (rs Rows) Empty() bool {
	return len(rs.Rows) == 0
}

func (rs Rows) cell(row, col int) (any, bool) {
	if row < 0 || row >= len(rs.Rows) {
		return nil, false
	}
	r := rs.Rows[row]
	if col < 0 || col >= len(r) {
		return nil, false
	}
	return r[col], true
}

// Int reads a cell as an integer, accepting either decoding shape.
func (rs Rows) Int(row, col int) (int64, bool) {
	v, ok := rs.cell(row, col)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Float reads a cell as a float, accepting either decoding shape.
func (rs Rows) Float(row, col int) (float64, bool) {
	v, ok := rs.cell(row, col)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Str reads a cell as a string.
func (rs Rows) Str(row, col int) (string, bool) {
	v, ok := rs.cell(row, col)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Open opens (or creates) a database. engine is "mem", "sqlite", or
// "rocksdb"; path is the on-disk location (ignored for "mem"); options are
// engine-specific and may be nil.
func Open(engine, path string, options map[string]any) (*DB, error) {
	optJSON := []byte("{}")
	if len(options) > 0 {
		var err error
		optJSON, err = json.Marshal(options)
		if err != nil {
			return nil, fmt.Errorf("cozo: encode options: %w", err)
		}
	}

	cEngine := C.CString(engine)
	defer C.free(unsafe.Pointer(cEngine))
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	cOptions := C.CString(string(optJSON))
	defer C.free(unsafe.Pointer(cOptions))

	var id C.int32_t
	if errPtr := C.cozo_open_db(cEngine, cPath, cOptions, &id); errPtr != nil {
		msg := C.GoString(errPtr)
		C.cozo_free_str(errPtr)
		return nil, fmt.Errorf("cozo: open %s (%s): %s", path, engine, msg)
	}
	return &DB{id: id, open: true}, nil
}

// Exec runs a mutable CozoScript — `:create` schema statements, `:put`/
// `:rm` batches, `::remove` — and discards any rows the engine returns.
// The graph writer's scripts are fire-and-forget; only the error matters.
func (db *DB) Exec(script string) error {
	_, err := db.run(script, nil, false)
	return err
}

// Query runs a CozoScript with the engine's write protection enabled:
// CozoDB itself rejects any mutation in the script, which makes this safe
// for externally-supplied scripts in addition to the keyword screening
// callers do first.
func (db *DB) Query(script string, params Params) (Rows, error) {
	return db.run(script, params, true)
}

func (db *DB) run(script string, params Params, immutable bool) (Rows, error) {
	if db == nil || !db.open {
		return Rows{}, errors.New("cozo: database is closed")
	}

	paramJSON := []byte("{}")
	if len(params) > 0 {
		var err error
		paramJSON, err = json.Marshal(params)
		if err != nil {
			return Rows{}, fmt.Errorf("cozo: encode params: %w", err)
		}
	}

	cScript := C.CString(script)
	defer C.free(unsafe.Pointer(cScript))
	cParams := C.CString(string(paramJSON))
	defer C.free(unsafe.Pointer(cParams))

	resultPtr := C.cozo_run_query(db.id, cScript, cParams, C.bool(immutable))
	if resultPtr == nil {
		return Rows{}, errors.New("cozo: engine returned no result")
	}
	payload := C.GoString(resultPtr)
	C.cozo_free_str(resultPtr)

	return decodeRows(payload)
}

// Close releases the engine handle. Safe to call more than once.
func (db *DB) Close() {
	if db == nil || !db.open {
		return
	}
	db.open = false
	C.cozo_close_db(db.id)
}

// decodeRows unpacks the engine's JSON result envelope. A failed script
// reports ok=false with the diagnostic in either `message` (plain errors)
// or `display` (rendered parse errors); whichever is present becomes the
// Go error.
func decodeRows(payload string) (Rows, error) {
	var env struct {
		OK      bool     `json:"ok"`
		Headers []string `json:"headers"`
		Rows    [][]any  `json:"rows"`
		Message string   `json:"message"`
		Display string   `json:"display"`
	}
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Rows{}, fmt.Errorf("cozo: decode result: %w", err)
	}
	if !env.OK {
		msg := env.Message
		if msg == "" {
			msg = env.Display
		}
		if msg == "" {
			msg = "query failed"
		}
		return Rows{}, errors.New(msg)
	}
	return Rows{Headers: env.Headers, Rows: env.Rows}, nil
}
