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

// jsExtractor is shared by JavaScript and TypeScript: their grammars share
// function_declaration/class_declaration/call_expression node shapes, and
// TypeScript adds interface_declaration on top. lang records which one so
// the emitted ir.File carries the right tag. Grounded in the ingestion
// package's parser_javascript.go walk-for-functions/walk-for-types idiom.
type jsExtractor struct {
	pool *sync.Pool
	lang ir.Language
}

var jsComplexityKinds = map[string]bool{
	"if_statement":       true,
	"for_statement":      true,
	"for_in_statement":   true,
	"while_statement":    true,
	"do_statement":        true,
	"switch_case":         true,
	"catch_clause":        true,
	"ternary_expression":  true,
	"binary_expression":   true,
}

var jsFnKinds = map[string]bool{
	"function_declaration": true, "method_definition": true,
	"arrow_function": true, "function_expression": true, "function": true,
}

func (e *jsExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: e.lang}
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
		return out, fmt.Errorf("javascript: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	anon := 0
	out.Functions = extractJSFunctions(root, content, e.lang, &anon)
	out.Classes = extractJSClasses(root, content, e.lang)
	out.Inheritance = extractJSInheritance(root, content)
	out.Imports = extractJSImports(root, content)
	out.FunctionCalls = extractJSCalls(root, content)
	return out, nil
}

func jsClassNameOf(n *sitter.Node, content []byte) string {
	cur := n.Parent()
	for cur != nil {
		if cur.Type() == "class_declaration" || cur.Type() == "class" {
			return nodeText(cur.ChildByFieldName("name"), content)
		}
		cur = cur.Parent()
	}
	return ""
}

func extractJSFunctions(root *sitter.Node, content []byte, lang ir.Language, anon *int) []ir.Function {
	var out []ir.Function
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_declaration":
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			out = append(out, jsBuildFunction(n, content, nodeText(nameNode, content), lang))
		case "method_definition":
			nameNode := n.ChildByFieldName("name")
			if nameNode == nil {
				return true
			}
			name := nodeText(nameNode, content)
			if cls := jsClassNameOf(n, content); cls != "" {
				name = cls + "." + name
			}
			out = append(out, jsBuildFunction(n, content, name, lang))
		case "variable_declarator":
			nameNode := n.ChildByFieldName("name")
			valueNode := n.ChildByFieldName("value")
			if nameNode == nil || valueNode == nil {
				return true
			}
			switch valueNode.Type() {
			case "arrow_function", "function_expression", "function":
				out = append(out, jsBuildFunction(valueNode, content, nodeText(nameNode, content), lang))
			}
		case "arrow_function":
			if n.Parent() == nil || n.Parent().Type() != "variable_declarator" {
				*anon++
				out = append(out, jsBuildFunction(n, content, fmt.Sprintf("$arrow_%d", *anon), lang))
			}
		}
		return true
	})
	return out
}

func jsBuildFunction(n *sitter.Node, content []byte, name string, lang ir.Language) ir.Function {
	params := n.ChildByFieldName("parameters")
	var args []ir.Parameter
	if params != nil {
		for _, p := range children(params) {
			switch p.Type() {
			case "identifier":
				args = append(args, ir.Parameter{Name: nodeText(p, content)})
			case "required_parameter", "optional_parameter":
				nameNode := p.ChildByFieldName("pattern")
				if nameNode == nil {
					nameNode = p.Child(0)
				}
				typ := nodeText(p.ChildByFieldName("type"), content)
				args = append(args, ir.Parameter{Name: nodeText(nameNode, content), Type: typ})
			case "assignment_pattern":
				left := p.ChildByFieldName("left")
				args = append(args, ir.Parameter{Name: nodeText(left, content)})
			}
		}
	}
	return ir.Function{
		Name:                 name,
		LineNumber:           startLine(n),
		EndLine:              endLine(n),
		Args:                 args,
		SourceText:           nodeText(n, content),
		CyclomaticComplexity: 1 + countComplexityNodes(n, jsComplexityKinds),
		Context:              jsFunctionContext(n, content),
		Language:             lang,
		IsStatic:             jsHasStatic(n, content),
	}
}

// jsFunctionContext walks upward to the nearest enclosing method, class, or
// named function. A method found as the enclosing scope is named with its
// class prefix so the context matches that method's own record.
func jsFunctionContext(n *sitter.Node, content []byte) ir.Context {
	cur := n.Parent()
	for cur != nil {
		switch cur.Type() {
		case "method_definition":
			name := nodeText(cur.ChildByFieldName("name"), content)
			if cls := jsClassNameOf(cur, content); cls != "" {
				name = cls + "." + name
			}
			return ir.Context{EnclosingFunction: name, EnclosingLine: startLine(cur)}
		case "class_declaration", "class":
			return ir.Context{
				EnclosingClass: nodeText(cur.ChildByFieldName("name"), content),
				EnclosingLine:  startLine(cur),
			}
		case "function_declaration":
			return ir.Context{
				EnclosingFunction: nodeText(cur.ChildByFieldName("name"), content),
				EnclosingLine:     startLine(cur),
			}
		}
		cur = cur.Parent()
	}
	return ir.Context{}
}

func jsHasStatic(n *sitter.Node, content []byte) bool {
	for _, c := range children(n) {
		if c.Type() == "static" {
			return true
		}
	}
	return false
}

func extractJSClasses(root *sitter.Node, content []byte, lang ir.Language) []ir.Class {
	var out []ir.Class
	walk(root, func(n *sitter.Node) bool {
		kind := ""
		switch n.Type() {
		case "class_declaration":
			kind = "class"
		case "interface_declaration":
			kind = "interface"
		default:
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		out = append(out, ir.Class{
			Name:       nodeText(nameNode, content),
			LineNumber: startLine(n),
			EndLine:    endLine(n),
			Bases:      jsHeritage(n, content),
			SourceText: nodeText(n, content),
			Kind:       kind,
			Language:   lang,
		})
		return true
	})
	return out
}

func jsHeritage(n *sitter.Node, content []byte) []string {
	var out []string
	for _, c := range children(n) {
		if c.Type() != "class_heritage" {
			continue
		}
		for _, h := range children(c) {
			if h.Type() == "extends_clause" {
				for _, id := range children(h) {
					if id.Type() == "identifier" {
						out = append(out, nodeText(id, content))
					}
				}
			}
		}
	}
	return out
}

func extractJSInheritance(root *sitter.Node, content []byte) []ir.Inheritance {
	var out []ir.Inheritance
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "class_declaration" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		bases := jsHeritage(n, content)
		if len(bases) == 0 {
			return true
		}
		out = append(out, ir.Inheritance{
			ClassName:  nodeText(nameNode, content),
			BaseName:   bases[0],
			LineNumber: startLine(n),
		})
		return true
	})
	return out
}

func extractJSImports(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	for _, n := range children(root) {
		if n.Type() != "import_statement" {
			continue
		}
		sourceNode := n.ChildByFieldName("source")
		module := strings.Trim(nodeText(sourceNode, content), `"'`)
		found := false
		walk(n, func(c *sitter.Node) bool {
			switch c.Type() {
			case "identifier":
				if c.Parent() != nil && c.Parent().Type() == "import_clause" {
					out = append(out, ir.Import{Name: module, Alias: nodeText(c, content), LineNumber: startLine(n)})
					found = true
				}
			case "namespace_import":
				out = append(out, ir.Import{Name: module, IsWildcard: true, LineNumber: startLine(n)})
				found = true
			case "import_specifier":
				name := nodeText(c.ChildByFieldName("name"), content)
				alias := nodeText(c.ChildByFieldName("alias"), content)
				out = append(out, ir.Import{Name: module + "." + name, Alias: alias, LineNumber: startLine(n)})
				found = true
			}
			return true
		})
		if !found {
			out = append(out, ir.Import{Name: module, LineNumber: startLine(n)})
		}
	}
	return out
}

func extractJSCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fnNode := n.ChildByFieldName("function")
		if fnNode == nil {
			return true
		}
		var full, receiver string
		switch fnNode.Type() {
		case "identifier":
			full = nodeText(fnNode, content)
		case "member_expression":
			full = nodeText(fnNode, content)
			receiver = nodeText(fnNode.ChildByFieldName("object"), content)
		default:
			return true
		}
		ctxNode := enclosing(n, jsFnKinds)
		ctx := ir.Context{}
		if ctxNode != nil {
			ctx.EnclosingLine = startLine(ctxNode)
			if nameNode := ctxNode.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				if ctxNode.Type() == "method_definition" {
					if cls := jsClassNameOf(ctxNode, content); cls != "" {
						name = cls + "." + name
						ctx.EnclosingClass = cls
					}
				}
				ctx.EnclosingFunction = name
			}
		}
		out = append(out, ir.Call{FullName: full, LineNumber: startLine(n), Context: ctx, ReceiverType: receiver})
		return true
	})
	return out
}
