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

package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cgindex/cgindex/internal/ir"
)

// rubyExtractor walks method definitions (namespaced by the enclosing
// class/module), classes and modules with their superclass, require/
// require_relative as imports, and method calls. Mirrors the Python
// extractor's class-prefix recursion since Ruby nests methods in class/
// module bodies the same way.
type rubyExtractor struct {
	pool *sync.Pool
}

var rubyComplexityKinds = map[string]bool{
	"if":              true,
	"elsif":           true,
	"unless":          true,
	"while":           true,
	"until":           true,
	"for":             true,
	"rescue":          true,
	"when":            true,
	"binary":          true,
	"conditional":     true,
}

func (e *rubyExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangRuby}
	content, err := readUTF8(path)
	if err != nil {
		return out, err
	}
	if isBlank(content) {
		return out, nil
	}
	parserAny := e.pool.Get()
	parser, ok := parserAny.(*sitter.Parser)
	if !ok || parser == nil {
		return out, fmt.Errorf("ruby: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	var funcs []ir.Function
	walkRubyScope(root, content, "", 0, &funcs)
	out.Functions = funcs
	out.Classes = extractRubyClasses(root, content)
	out.Inheritance = extractRubyInheritance(root, content)
	out.Imports = extractRubyRequires(root, content)
	out.FunctionCalls = extractRubyCalls(root, content)
	return out, nil
}

// walkRubyScope carries the enclosing class/module's dotted full name and
// declaration line so each method's Context names the entity that CONTAINS
// it, the same way the Python walker does.
func walkRubyScope(n *sitter.Node, content []byte, classPrefix string, classLine int, out *[]ir.Function) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class", "module":
		name := nodeText(n.ChildByFieldName("name"), content)
		full := name
		if classPrefix != "" {
			full = classPrefix + "." + name
		}
		for _, c := range children(n) {
			if c.Type() == "body_statement" {
				walkRubyScope(c, content, full, startLine(n), out)
			}
		}
		return
	case "method", "singleton_method":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		name := nodeText(nameNode, content)
		full := name
		var fnCtx ir.Context
		if classPrefix != "" {
			full = classPrefix + "." + name
			fnCtx = ir.Context{EnclosingClass: classPrefix, EnclosingLine: classLine}
		}
		*out = append(*out, ir.Function{
			Name:                 full,
			LineNumber:           startLine(n),
			EndLine:              endLine(n),
			Args:                 rubyParams(n.ChildByFieldName("parameters"), content),
			SourceText:           nodeText(n, content),
			CyclomaticComplexity: 1 + countComplexityNodes(n, rubyComplexityKinds),
			Context:              fnCtx,
			Language:             ir.LangRuby,
			IsStatic:             n.Type() == "singleton_method",
		})
		for _, c := range children(n) {
			if c.Type() == "body_statement" {
				walkRubyScope(c, content, "", 0, out)
			}
		}
		return
	}
	for _, c := range children(n) {
		walkRubyScope(c, content, classPrefix, classLine, out)
	}
}

func rubyParams(n *sitter.Node, content []byte) []ir.Parameter {
	if n == nil {
		return nil
	}
	var out []ir.Parameter
	for _, p := range children(n) {
		switch p.Type() {
		case "identifier":
			out = append(out, ir.Parameter{Name: nodeText(p, content)})
		case "optional_parameter", "keyword_parameter":
			nameNode := p.ChildByFieldName("name")
			out = append(out, ir.Parameter{Name: nodeText(nameNode, content)})
		case "splat_parameter", "hash_splat_parameter", "block_parameter":
			out = append(out, ir.Parameter{Name: nodeText(p, content)})
		}
	}
	return out
}

func extractRubyClasses(root *sitter.Node, content []byte) []ir.Class {
	return rubyWalkClasses(root, content, "")
}

// rubyWalkClasses recurses through class/module bodies, dot-qualifying
// nested names so they line up with the method walker's class prefixes.
func rubyWalkClasses(n *sitter.Node, content []byte, prefix string) []ir.Class {
	var out []ir.Class
	for _, c := range children(n) {
		kind := ""
		switch c.Type() {
		case "class":
			kind = "class"
		case "module":
			kind = "module"
		default:
			out = append(out, rubyWalkClasses(c, content, prefix)...)
			continue
		}
		nameNode := c.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		full := nodeText(nameNode, content)
		if prefix != "" {
			full = prefix + "." + full
		}
		var bases []string
		if sc := c.ChildByFieldName("superclass"); sc != nil {
			bases = append(bases, rubySuperclassName(sc, content))
		}
		out = append(out, ir.Class{
			Name:       full,
			LineNumber: startLine(c),
			EndLine:    endLine(c),
			Bases:      bases,
			SourceText: nodeText(c, content),
			Kind:       kind,
			Language:   ir.LangRuby,
		})
		for _, body := range children(c) {
			if body.Type() == "body_statement" {
				out = append(out, rubyWalkClasses(body, content, full)...)
			}
		}
	}
	return out
}

func extractRubyInheritance(root *sitter.Node, content []byte) []ir.Inheritance {
	var out []ir.Inheritance
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "class" {
			return true
		}
		sc := n.ChildByFieldName("superclass")
		if sc == nil {
			return true
		}
		out = append(out, ir.Inheritance{
			ClassName:  nodeText(n.ChildByFieldName("name"), content),
			BaseName:   rubySuperclassName(sc, content),
			LineNumber: startLine(n),
		})
		return true
	})
	return out
}

// rubySuperclassName unwraps the superclass node, whose source text includes
// the leading "<" token, down to the constant it names.
func rubySuperclassName(sc *sitter.Node, content []byte) string {
	for _, c := range children(sc) {
		if c.Type() == "constant" || c.Type() == "scope_resolution" {
			return nodeText(c, content)
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(nodeText(sc, content), "<"))
}

func extractRubyRequires(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		method := nodeText(n.ChildByFieldName("method"), content)
		if method != "require" && method != "require_relative" {
			return true
		}
		argsNode := n.ChildByFieldName("arguments")
		if argsNode == nil {
			return true
		}
		for _, a := range children(argsNode) {
			if a.Type() == "string" {
				name := stripRubyQuotes(nodeText(a, content))
				out = append(out, ir.Import{Name: name, LineNumber: startLine(n)})
			}
		}
		return true
	})
	return out
}

func stripRubyQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

func extractRubyCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	fnKind := map[string]bool{"method": true, "singleton_method": true}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		method := n.ChildByFieldName("method")
		if method == nil {
			return true
		}
		name := nodeText(method, content)
		var receiver string
		if recvNode := n.ChildByFieldName("receiver"); recvNode != nil {
			receiver = nodeText(recvNode, content)
			name = receiver + "." + name
		}
		ctxNode := enclosing(n, fnKind)
		var ctx ir.Context
		if ctxNode != nil {
			ctx = ir.Context{
				EnclosingFunction: nodeText(ctxNode.ChildByFieldName("name"), content),
				EnclosingLine:     startLine(ctxNode),
			}
		}
		out = append(out, ir.Call{FullName: name, LineNumber: startLine(n), Context: ctx, ReceiverType: receiver})
		return true
	})
	return out
}
