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

//go:build cgo

package graphstore

import (
	"testing"

	"github.com/cgindex/cgindex/internal/ir"
)

// The stylesheet `a {color:red}` / `#x a {color:blue}`: the second rule is
// both more specific and later, so the first is OVERRIDDEN_BY it with
// specificity_diff = 100.
func TestWriteCascade_SpecificityCorrectness(t *testing.T) {
	s := newTestStore(t, "/repo")
	file := ir.File{
		FilePath: "/repo/s.css",
		Language: ir.LangCSS,
		Rules: []ir.Rule{
			{Name: "a", LineNumber: 1, Specificity: 1, SelectorText: "a"},
			{Name: "#x a", LineNumber: 2, Specificity: 101, SelectorText: "#x a"},
		},
		Selectors: []ir.Selector{
			{Name: "a", LineNumber: 1, Specificity: 1, RuleName: "a"},
			{Name: "#x a", LineNumber: 2, Specificity: 101, RuleName: "#x a"},
			{Name: "#x", LineNumber: 2, Specificity: 100, RuleName: "#x a"},
			{Name: "a", LineNumber: 2, Specificity: 1, RuleName: "#x a"},
		},
	}
	if err := s.WriteCascade(file); err != nil {
		t.Fatalf("WriteCascade: %v", err)
	}

	rows, err := s.db.Query("?[weaker_rule, stronger_rule, specificity_diff] := *cg_overridden_by{weaker_rule, stronger_rule, specificity_diff}", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows.Rows) != 1 {
		t.Fatalf("override edges = %d, want 1: %v", len(rows.Rows), rows.Rows)
	}
	row := rows.Rows[0]
	if row[0] != "a" || row[1] != "#x a" {
		t.Fatalf("edge direction wrong: %v", row)
	}
	if diff, ok := rows.Int(0, 2); !ok || diff != 100 {
		t.Fatalf("specificity_diff = %d, want 100", diff)
	}
}

// A later rule with equal specificity does not create an override edge; nor
// does a more specific rule that appears earlier.
func TestWriteCascade_RequiresBothGreater(t *testing.T) {
	s := newTestStore(t, "/repo")
	file := ir.File{
		FilePath: "/repo/s.css",
		Language: ir.LangCSS,
		Rules: []ir.Rule{
			{Name: "#x a", LineNumber: 1, Specificity: 101},
			{Name: "a", LineNumber: 2, Specificity: 1},
			{Name: "a", LineNumber: 3, Specificity: 1},
		},
		Selectors: []ir.Selector{
			{Name: "a", LineNumber: 1, RuleName: "#x a"},
			{Name: "a", LineNumber: 2, RuleName: "a"},
			{Name: "a", LineNumber: 3, RuleName: "a"},
		},
	}
	if err := s.WriteCascade(file); err != nil {
		t.Fatal(err)
	}
	if n := rowCount(t, s, "?[id] := *cg_overridden_by{id}"); n != 0 {
		t.Fatalf("override edges = %d, want 0", n)
	}
}

// Rules with disjoint selectors never override each other.
func TestWriteCascade_DisjointSelectors(t *testing.T) {
	s := newTestStore(t, "/repo")
	file := ir.File{
		FilePath: "/repo/s.css",
		Language: ir.LangCSS,
		Rules: []ir.Rule{
			{Name: "p", LineNumber: 1, Specificity: 1},
			{Name: "#nav", LineNumber: 2, Specificity: 100},
		},
		Selectors: []ir.Selector{
			{Name: "p", LineNumber: 1, RuleName: "p"},
			{Name: "#nav", LineNumber: 2, RuleName: "#nav"},
		},
	}
	if err := s.WriteCascade(file); err != nil {
		t.Fatal(err)
	}
	if n := rowCount(t, s, "?[id] := *cg_overridden_by{id}"); n != 0 {
		t.Fatalf("override edges = %d, want 0", n)
	}
}
