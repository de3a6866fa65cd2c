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

// Package extract implements the per-language extractors: given a file path,
// each produces one ir.File record by parsing the file's bytes into a
// tree-sitter syntax tree and walking it for the entities and relationships
// named in the IR schema.
//
// Every extractor follows the same skeleton: read, parse, walk the tree for
// entities, walk up for enclosing context, populate. Only the Python
// extractor drops duplicate functions by their name:line key; no other
// collection is deduplicated. A parse failure never panics or aborts
// the batch — it is recorded on ir.File.Error and the file's collections are
// left empty.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cgindex/cgindex/internal/grammar"
	"github.com/cgindex/cgindex/internal/ir"
)

// Extractor parses one file into its IR record.
type Extractor interface {
	Extract(ctx context.Context, path string) (ir.File, error)
}

// Registry wires file extensions to the extractor for that language, and
// pools parser handles per goroutine since sitter.Parser is not safe for
// concurrent use.
type Registry struct {
	grammars *grammar.Registry

	mu       sync.Mutex
	pools    map[ir.Language]*sync.Pool
}

// NewRegistry builds an extractor registry over the given grammar registry.
func NewRegistry(grammars *grammar.Registry) *Registry {
	return &Registry{
		grammars: grammars,
		pools:    make(map[ir.Language]*sync.Pool),
	}
}

// ForPath returns the extractor for path's extension, or ok=false if the
// extension is unsupported by the Grammar Registry.
func (r *Registry) ForPath(path string) (Extractor, bool) {
	ext := filepath.Ext(path)
	lang, ok := r.grammars.LanguageFor(ext)
	if !ok {
		return nil, false
	}
	return r.extractorFor(lang), true
}

func (r *Registry) extractorFor(lang ir.Language) Extractor {
	pool := r.poolFor(lang)
	switch lang {
	case ir.LangPython:
		return &pythonExtractor{pool: pool}
	case ir.LangC:
		return &cExtractor{pool: pool}
	case ir.LangCPP:
		return &cppExtractor{pool: pool}
	case ir.LangJava:
		return &javaExtractor{pool: pool}
	case ir.LangCSS:
		return &cssExtractor{pool: pool}
	case ir.LangJavaScript:
		return &jsExtractor{pool: pool, lang: ir.LangJavaScript}
	case ir.LangTypeScript:
		return &jsExtractor{pool: pool, lang: ir.LangTypeScript}
	case ir.LangGo:
		return &goExtractor{pool: pool}
	case ir.LangRust:
		return &rustExtractor{pool: pool}
	case ir.LangRuby:
		return &rubyExtractor{pool: pool}
	default:
		return nil
	}
}

// poolFor returns (creating if necessary) the sync.Pool of parser handles
// for a language. One pool per language; workers Get/Put around each parse.
func (r *Registry) poolFor(lang ir.Language) *sync.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[lang]; ok {
		return p
	}
	// Closure captures r.grammars, not lang's parser directly, so New()
	// always allocates a fresh parser for the right grammar.
	ext := extensionFor(lang)
	p := &sync.Pool{
		New: func() any {
			_, parser, ok := r.grammars.ParserFor(ext)
			if !ok {
				return nil
			}
			return parser
		},
	}
	r.pools[lang] = p
	return p
}

// extensionFor returns a canonical extension for a language, used only to
// look up its grammar when lazily filling a pool.
func extensionFor(lang ir.Language) string {
	switch lang {
	case ir.LangPython:
		return ".py"
	case ir.LangC:
		return ".c"
	case ir.LangCPP:
		return ".cpp"
	case ir.LangJava:
		return ".java"
	case ir.LangCSS:
		return ".css"
	case ir.LangJavaScript:
		return ".js"
	case ir.LangTypeScript:
		return ".ts"
	case ir.LangGo:
		return ".go"
	case ir.LangRust:
		return ".rs"
	case ir.LangRuby:
		return ".rb"
	}
	return ""
}

// readUTF8 reads a file's bytes, replacing invalid UTF-8 sequences with the
// replacement character, per the extractor contract's encoding rule.
func readUTF8(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(raw) {
		return raw, nil
	}
	var buf bytes.Buffer
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
			raw = raw[1:]
			continue
		}
		buf.Write(raw[:size])
		raw = raw[size:]
	}
	return buf.Bytes(), nil
}

// isBlank reports whether content is empty or whitespace-only.
func isBlank(content []byte) bool {
	return len(bytes.TrimSpace(content)) == 0
}

// parseTree parses content with parser, turning a tree-sitter panic
// (malformed input) into a returned error so extractors can record it on
// the IR file instead of aborting the batch.
func parseTree(ctx context.Context, parser *sitter.Parser, content []byte) (tree *sitter.Tree, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tree-sitter panic: %v", r)
		}
	}()
	tree, err = parser.ParseCtx(ctx, nil, content)
	return tree, err
}

// nodeText returns the source slice a node spans.
func nodeText(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	return string(content[n.StartByte():n.EndByte()])
}

// startLine returns a node's 1-based start line.
func startLine(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPoint().Row) + 1
}

// endLine returns a node's 1-based end line.
func endLine(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.EndPoint().Row) + 1
}

// children returns a node's direct children as a slice, skipping nil/missing
// nodes defensively (tree-sitter error-recovery can synthesize empty nodes).
func children(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.ChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// walk calls visit for every node in the subtree rooted at n, depth-first,
// pre-order. Returning false from visit skips that node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for _, c := range children(n) {
		walk(c, visit)
	}
}

// enclosing walks upward from n looking for the nearest ancestor whose type
// is in kinds, used to compute ir.Context for captured nodes.
func enclosing(n *sitter.Node, kinds map[string]bool) *sitter.Node {
	cur := n.Parent()
	for cur != nil {
		if kinds[cur.Type()] {
			return cur
		}
		cur = cur.Parent()
	}
	return nil
}

// dedupKey is the natural key ("name:line") extractors dedup collections by.
func dedupKey(name string, line int) string {
	return fmt.Sprintf("%s:%d", name, line)
}

// inheritanceFromBases derives one Inheritance record per base of each class,
// for languages whose grammar attaches bases directly to the class node
// (Python superclass lists, C++ base-class clauses) rather than to a
// dedicated extends clause.
func inheritanceFromBases(classes []ir.Class) []ir.Inheritance {
	var out []ir.Inheritance
	for _, cls := range classes {
		for _, b := range cls.Bases {
			out = append(out, ir.Inheritance{ClassName: cls.Name, BaseName: b, LineNumber: cls.LineNumber})
		}
	}
	return out
}
