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

// Package prescan builds the symbol→files map the resolver needs to turn
// calls and base-class references into concrete target files, without
// requiring a second full parse of the batch.
package prescan

import (
	"sync"

	"github.com/cgindex/cgindex/internal/ir"
)

// Map is symbol_name → absolute file paths defining it. Ambiguous names keep
// every definer; the resolver decides which one wins per-call.
type Map struct {
	mu      sync.RWMutex
	symbols map[string][]string
}

// New returns an empty, ready-to-fill Map.
func New() *Map {
	return &Map{symbols: make(map[string][]string)}
}

// AddFile records every top-level definition name in file (functions,
// classes/structs/interfaces, macros) as defined in file.FilePath. The
// narrowing to top level is by nesting depth: a function whose Context
// names an enclosing class or function is a method or nested definition,
// not a globally resolvable symbol, and registering it would corrupt the
// resolver's unique-definer and first-definer rules whenever its name
// collides with an unrelated top-level one. The names are harvested from
// the already-computed ir.File rather than a second narrower parse; the
// depth filter below is what makes this the reduced definition set.
func (m *Map) AddFile(file ir.File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fn := range file.Functions {
		if fn.Context.EnclosingClass != "" || fn.Context.EnclosingFunction != "" {
			continue
		}
		m.add(fn.Name, file.FilePath)
	}
	for _, cls := range file.Classes {
		m.add(cls.Name, file.FilePath)
	}
	for _, mac := range file.Macros {
		m.add(mac.Name, file.FilePath)
	}
}

func (m *Map) add(name, path string) {
	if name == "" {
		return
	}
	for _, existing := range m.symbols[name] {
		if existing == path {
			return
		}
	}
	m.symbols[name] = append(m.symbols[name], path)
}

// Lookup returns every file defining name, or nil if name is undefined
// anywhere in the batch.
func (m *Map) Lookup(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.symbols[name]
}

// Len returns the number of distinct symbol names in the map.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.symbols)
}
