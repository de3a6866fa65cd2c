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

// Package grammar maps file extensions to language identifiers and owns the
// compiled tree-sitter grammar handles used across the indexing pipeline.
//
// Grammar handles are immutable and safe to share across goroutines; parser
// handles (sitter.Parser) are not, and callers must allocate one per worker.
// The registry itself is built once at process start and never mutated
// afterward.
package grammar

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/css"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/cgindex/cgindex/internal/ir"
)

// entry binds a language tag to its compiled grammar.
type entry struct {
	lang ir.Language
	gram *sitter.Language
}

// Registry maps extensions to languages and owns one compiled grammar per
// language. Construct with New once at startup; the result is frozen.
type Registry struct {
	byExt map[string]entry
}

// New builds and freezes the registry of supported languages.
func New() *Registry {
	r := &Registry{byExt: make(map[string]entry)}

	register := func(lang ir.Language, gram *sitter.Language, exts ...string) {
		for _, ext := range exts {
			r.byExt[ext] = entry{lang: lang, gram: gram}
		}
	}

	register(ir.LangPython, python.GetLanguage(), ".py", ".pyi")
	register(ir.LangC, c.GetLanguage(), ".c", ".h")
	register(ir.LangCPP, cpp.GetLanguage(), ".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx")
	register(ir.LangJava, java.GetLanguage(), ".java")
	register(ir.LangCSS, css.GetLanguage(), ".css")
	register(ir.LangJavaScript, javascript.GetLanguage(), ".js", ".jsx", ".mjs", ".cjs")
	register(ir.LangTypeScript, typescript.GetLanguage(), ".ts", ".tsx")
	register(ir.LangGo, golang.GetLanguage(), ".go")
	register(ir.LangRust, rust.GetLanguage(), ".rs")
	register(ir.LangRuby, ruby.GetLanguage(), ".rb")

	return r
}

// ParserFor returns the language tag and a freshly-allocated parser bound to
// that language's grammar, or ok=false if the extension is unsupported.
// The returned *sitter.Parser is not safe for concurrent use; callers
// allocate one per worker and reuse it across files on that worker.
func (r *Registry) ParserFor(ext string) (lang ir.Language, parser *sitter.Parser, ok bool) {
	e, found := r.byExt[ext]
	if !found {
		return "", nil, false
	}
	p := sitter.NewParser()
	p.SetLanguage(e.gram)
	return e.lang, p, true
}

// LanguageFor returns the language tag for an extension without allocating a
// parser, or ok=false if unsupported.
func (r *Registry) LanguageFor(ext string) (lang ir.Language, ok bool) {
	e, found := r.byExt[ext]
	if !found {
		return "", false
	}
	return e.lang, true
}

// AllSupportedExtensions returns every extension the registry recognizes.
func (r *Registry) AllSupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
