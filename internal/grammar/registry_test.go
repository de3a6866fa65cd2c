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

package grammar

import (
	"context"
	"testing"

	"github.com/cgindex/cgindex/internal/ir"
)

func TestRegistry_LanguageFor(t *testing.T) {
	r := New()
	tests := []struct {
		ext  string
		want ir.Language
	}{
		{".py", ir.LangPython},
		{".pyi", ir.LangPython},
		{".c", ir.LangC},
		{".h", ir.LangC},
		{".cpp", ir.LangCPP},
		{".hpp", ir.LangCPP},
		{".java", ir.LangJava},
		{".css", ir.LangCSS},
		{".js", ir.LangJavaScript},
		{".ts", ir.LangTypeScript},
		{".go", ir.LangGo},
		{".rs", ir.LangRust},
		{".rb", ir.LangRuby},
	}
	for _, tt := range tests {
		lang, ok := r.LanguageFor(tt.ext)
		if !ok || lang != tt.want {
			t.Errorf("LanguageFor(%q) = %q, %v; want %q", tt.ext, lang, ok, tt.want)
		}
	}
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	r := New()
	if _, ok := r.LanguageFor(".xyz"); ok {
		t.Fatal("LanguageFor(.xyz) reported supported")
	}
	if _, _, ok := r.ParserFor(".xyz"); ok {
		t.Fatal("ParserFor(.xyz) reported supported")
	}
}

// Each ParserFor call allocates a distinct parser; callers own them
// per-worker since sitter.Parser is not goroutine-safe.
func TestRegistry_ParserFor_AllocatesFreshParsers(t *testing.T) {
	r := New()
	_, p1, ok1 := r.ParserFor(".py")
	_, p2, ok2 := r.ParserFor(".py")
	if !ok1 || !ok2 {
		t.Fatal("ParserFor(.py) failed")
	}
	if p1 == p2 {
		t.Fatal("ParserFor returned a shared parser handle")
	}

	// Both parsers must work against the same shared grammar.
	tree, err := p1.ParseCtx(context.Background(), nil, []byte("x = 1\n"))
	if err != nil || tree == nil {
		t.Fatalf("parse with first handle: %v", err)
	}
	tree.Close()
	tree, err = p2.ParseCtx(context.Background(), nil, []byte("y = 2\n"))
	if err != nil || tree == nil {
		t.Fatalf("parse with second handle: %v", err)
	}
	tree.Close()
}

func TestRegistry_AllSupportedExtensions(t *testing.T) {
	exts := New().AllSupportedExtensions()
	seen := make(map[string]bool, len(exts))
	for _, e := range exts {
		if seen[e] {
			t.Fatalf("duplicate extension %q", e)
		}
		seen[e] = true
	}
	for _, required := range []string{".py", ".c", ".cpp", ".java", ".css", ".js", ".ts", ".go", ".rs", ".rb"} {
		if !seen[required] {
			t.Fatalf("missing required extension %q", required)
		}
	}
}
