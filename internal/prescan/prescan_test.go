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

package prescan

import (
	"fmt"
	"sync"
	"testing"

	"github.com/cgindex/cgindex/internal/ir"
)

func TestMap_AddFileCollectsDefinitions(t *testing.T) {
	m := New()
	m.AddFile(ir.File{
		FilePath:  "/repo/a.py",
		Functions: []ir.Function{{Name: "foo", LineNumber: 1}},
		Classes:   []ir.Class{{Name: "Widget", LineNumber: 5}},
		Macros:    []ir.Macro{{Name: "MAX", LineNumber: 9}},
	})

	for _, name := range []string{"foo", "Widget", "MAX"} {
		defs := m.Lookup(name)
		if len(defs) != 1 || defs[0] != "/repo/a.py" {
			t.Fatalf("Lookup(%q) = %v, want [/repo/a.py]", name, defs)
		}
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
}

// Ambiguous names keep every definer, in insertion order.
func TestMap_AmbiguousNamesKeepAllDefiners(t *testing.T) {
	m := New()
	m.AddFile(ir.File{FilePath: "/repo/a.py", Functions: []ir.Function{{Name: "helper", LineNumber: 1}}})
	m.AddFile(ir.File{FilePath: "/repo/b.py", Functions: []ir.Function{{Name: "helper", LineNumber: 3}}})

	defs := m.Lookup("helper")
	if len(defs) != 2 {
		t.Fatalf("Lookup(helper) = %v, want two definers", defs)
	}
	if defs[0] != "/repo/a.py" || defs[1] != "/repo/b.py" {
		t.Fatalf("definer order not preserved: %v", defs)
	}
}

func TestMap_SameFileAddedTwiceDoesNotDuplicate(t *testing.T) {
	m := New()
	f := ir.File{FilePath: "/repo/a.py", Functions: []ir.Function{{Name: "foo", LineNumber: 1}}}
	m.AddFile(f)
	m.AddFile(f)
	if defs := m.Lookup("foo"); len(defs) != 1 {
		t.Fatalf("Lookup(foo) = %v, want one definer", defs)
	}
}

// Methods and nested functions are not top-level symbols: only definitions
// with no enclosing context enter the map.
func TestMap_SkipsMethodsAndNestedFunctions(t *testing.T) {
	m := New()
	m.AddFile(ir.File{
		FilePath: "/repo/a.py",
		Functions: []ir.Function{
			{Name: "top", LineNumber: 1},
			{Name: "Widget.render", LineNumber: 5, Context: ir.Context{EnclosingClass: "Widget", EnclosingLine: 4}},
			{Name: "inner", LineNumber: 6, Context: ir.Context{EnclosingFunction: "Widget.render", EnclosingLine: 5}},
		},
		Classes: []ir.Class{{Name: "Widget", LineNumber: 4}},
	})

	if defs := m.Lookup("top"); len(defs) != 1 {
		t.Fatalf("Lookup(top) = %v", defs)
	}
	if defs := m.Lookup("Widget"); len(defs) != 1 {
		t.Fatalf("Lookup(Widget) = %v", defs)
	}
	for _, name := range []string{"Widget.render", "inner"} {
		if defs := m.Lookup(name); defs != nil {
			t.Fatalf("Lookup(%q) = %v, want nothing: non-top-level", name, defs)
		}
	}
}

func TestMap_UnknownSymbol(t *testing.T) {
	m := New()
	if defs := m.Lookup("nope"); defs != nil {
		t.Fatalf("Lookup(nope) = %v, want nil", defs)
	}
}

func TestMap_ConcurrentAdds(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.AddFile(ir.File{
				FilePath:  fmt.Sprintf("/repo/f%d.py", i),
				Functions: []ir.Function{{Name: "shared", LineNumber: 1}},
			})
		}(i)
	}
	wg.Wait()
	if defs := m.Lookup("shared"); len(defs) != 32 {
		t.Fatalf("Lookup(shared) has %d definers, want 32", len(defs))
	}
}
