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

// cppExtractor walks functions, classes
// with base-class clauses, includes, scoped-identifier and field-expression
// calls (full call text), and members. Grounded in
// original_source/.../languages/cpp.py's query shapes, translated into
// manual node walks (go-tree-sitter here is a recursive-descent walker
// rather than a query-engine consumer, matching the Go parser's
// idiom).
type cppExtractor struct {
	pool *sync.Pool
}

func (e *cppExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangCPP}
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
		return out, fmt.Errorf("cpp: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	out.Functions = extractCppFunctions(root, content)
	out.Classes = extractCppClasses(root, content)
	out.Imports = extractCIncludes(root, content) // same grammar node as C
	out.Variables = extractCppMembers(root, content)
	out.FunctionCalls = extractCppCalls(root, content)
	out.Inheritance = inheritanceFromBases(out.Classes)
	return out, nil
}

func extractCppFunctions(root *sitter.Node, content []byte) []ir.Function {
	var out []ir.Function
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		declarator := n.ChildByFieldName("declarator")
		fd := declarator
		for fd != nil && fd.Type() != "function_declarator" {
			fd = fd.ChildByFieldName("declarator")
		}
		if fd == nil {
			return true
		}
		nameNode := fd.ChildByFieldName("declarator")
		name := cppQualifiedName(nameNode, content)
		if name == "" {
			return true
		}
		params := cParseParams(fd.ChildByFieldName("parameters"), content)
		var fnCtx ir.Context
		if cls := cppEnclosingClass(n); cls != nil {
			fnCtx = ir.Context{
				EnclosingClass: nodeText(cls.ChildByFieldName("name"), content),
				EnclosingLine:  startLine(cls),
			}
		}
		out = append(out, ir.Function{
			Name:                 name,
			LineNumber:           startLine(n),
			EndLine:              endLine(n),
			Args:                 params,
			SourceText:           nodeText(n, content),
			CyclomaticComplexity: 1 + countComplexityNodes(n, cComplexityKinds),
			Context:              fnCtx,
			Language:             ir.LangCPP,
		})
		return true
	})
	return out
}

// cppEnclosingClass finds the named class/struct a member function is
// defined inside, or nil for free functions and out-of-line definitions
// (whose qualified name carries the class but whose AST has no class
// ancestor in this file).
func cppEnclosingClass(n *sitter.Node) *sitter.Node {
	cur := n.Parent()
	for cur != nil {
		if cur.Type() == "class_specifier" || cur.Type() == "struct_specifier" {
			if cur.ChildByFieldName("name") != nil {
				return cur
			}
		}
		cur = cur.Parent()
	}
	return nil
}

// cppQualifiedName handles plain identifiers, field_identifier (methods
// declared inside a class body), and qualified_identifier (methods defined
// out-of-line, e.g. `Foo::bar`).
func cppQualifiedName(n *sitter.Node, content []byte) string {
	switch {
	case n == nil:
		return ""
	case n.Type() == "identifier" || n.Type() == "field_identifier":
		return nodeText(n, content)
	case n.Type() == "qualified_identifier":
		return nodeText(n, content)
	case n.Type() == "destructor_name":
		return nodeText(n, content)
	default:
		return nodeText(n, content)
	}
}

func extractCppClasses(root *sitter.Node, content []byte) []ir.Class {
	var out []ir.Class
	kindFor := map[string]string{"class_specifier": "class", "struct_specifier": "struct"}
	walk(root, func(n *sitter.Node) bool {
		kind, ok := kindFor[n.Type()]
		if !ok {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		var bases []string
		for _, c := range children(n) {
			if c.Type() == "base_class_clause" {
				for _, b := range children(c) {
					if b.Type() == "type_identifier" || b.Type() == "qualified_identifier" {
						bases = append(bases, nodeText(b, content))
					}
				}
			}
		}
		out = append(out, ir.Class{
			Name:       nodeText(nameNode, content),
			LineNumber: startLine(n),
			EndLine:    endLine(n),
			Bases:      bases,
			SourceText: nodeText(n, content),
			Kind:       kind,
			Language:   ir.LangCPP,
		})
		return true
	})
	return out
}

func extractCppMembers(root *sitter.Node, content []byte) []ir.Variable {
	var out []ir.Variable
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "field_declaration":
			fd := n.ChildByFieldName("declarator")
			name := cDeclaratorName(fd, content)
			if name == "" {
				return true
			}
			out = append(out, ir.Variable{
				Name: name, LineNumber: startLine(n),
				Type: nodeText(n.ChildByFieldName("type"), content), Language: ir.LangCPP,
			})
		case "declaration":
			if n.Parent() != nil && n.Parent().Type() == "translation_unit" {
				name := cDeclaratorName(n.ChildByFieldName("declarator"), content)
				if name != "" {
					out = append(out, ir.Variable{
						Name: name, LineNumber: startLine(n),
						Type: nodeText(n.ChildByFieldName("type"), content), Language: ir.LangCPP,
					})
				}
			}
		}
		return true
	})
	return out
}

func extractCppCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	fnKind := map[string]bool{"function_definition": true}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fnNode := n.ChildByFieldName("function")
		if fnNode == nil {
			return true
		}
		var call ir.Call
		switch fnNode.Type() {
		case "identifier", "scoped_identifier", "qualified_identifier":
			call.FullName = nodeText(fnNode, content)
		case "field_expression":
			call.FullName = nodeText(fnNode, content)
			if obj := fnNode.ChildByFieldName("argument"); obj != nil {
				call.ReceiverType = nodeText(obj, content)
			}
		default:
			return true
		}
		call.LineNumber = startLine(n)
		ctxNode := enclosing(n, fnKind)
		if ctxNode != nil {
			declarator := ctxNode.ChildByFieldName("declarator")
			fd := declarator
			for fd != nil && fd.Type() != "function_declarator" {
				fd = fd.ChildByFieldName("declarator")
			}
			if fd != nil {
				call.Context = ir.Context{
					EnclosingFunction: cppQualifiedName(fd.ChildByFieldName("declarator"), content),
					EnclosingLine:     startLine(ctxNode),
				}
			}
		}
		if argsNode := n.ChildByFieldName("arguments"); argsNode != nil {
			for _, a := range children(argsNode) {
				t := strings.TrimSpace(nodeText(a, content))
				if t != "" && t != "(" && t != ")" && t != "," {
					call.Args = append(call.Args, t)
				}
			}
		}
		out = append(out, call)
		return true
	})
	return out
}
