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

// rustExtractor walks fn items (including impl-block methods, namespaced
// Type.method), struct/enum/trait declarations, trait impls (recorded as
// IMPLEMENTS), use declarations, and call expressions. Grounded in the same
// declarator-unwrap idiom used for C and Go, since Rust's grammar shares the
// same "identifier or call wrapped in path/generic layers" shape.
type rustExtractor struct {
	pool *sync.Pool
}

var rustComplexityKinds = map[string]bool{
	"if_expression":       true,
	"if_let_expression":   true,
	"while_expression":    true,
	"while_let_expression": true,
	"loop_expression":     true,
	"for_expression":       true,
	"match_arm":            true,
	"binary_expression":    true,
}

func (e *rustExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangRust}
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
		return out, fmt.Errorf("rust: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	out.Functions = extractRustFunctions(root, content)
	out.Classes = extractRustTypes(root, content)
	out.Implementations = extractRustImplementations(root, content)
	out.Imports = extractRustUses(root, content)
	out.FunctionCalls = extractRustCalls(root, content)
	return out, nil
}

// rustImplOf returns the nearest enclosing impl_item, or nil outside one.
func rustImplOf(n *sitter.Node) *sitter.Node {
	cur := n.Parent()
	for cur != nil {
		if cur.Type() == "impl_item" {
			return cur
		}
		cur = cur.Parent()
	}
	return nil
}

// rustImplTypeName returns the Self type of the nearest enclosing
// impl_item, or "" outside of one.
func rustImplTypeName(n *sitter.Node, content []byte) string {
	if impl := rustImplOf(n); impl != nil {
		return nodeText(impl.ChildByFieldName("type"), content)
	}
	return ""
}

func extractRustFunctions(root *sitter.Node, content []byte) []ir.Function {
	var out []ir.Function
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "function_item" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		name := nodeText(nameNode, content)
		var fnCtx ir.Context
		if impl := rustImplOf(n); impl != nil {
			recv := nodeText(impl.ChildByFieldName("type"), content)
			name = recv + "." + name
			fnCtx = ir.Context{EnclosingClass: recv, EnclosingLine: startLine(impl)}
		}
		params := rustParams(n.ChildByFieldName("parameters"), content)
		out = append(out, ir.Function{
			Name:                 name,
			LineNumber:           startLine(n),
			EndLine:              endLine(n),
			Args:                 params,
			SourceText:           nodeText(n, content),
			CyclomaticComplexity: 1 + countComplexityNodes(n, rustComplexityKinds),
			Context:              fnCtx,
			Language:             ir.LangRust,
			ReturnType:           nodeText(n.ChildByFieldName("return_type"), content),
		})
		return true
	})
	return out
}

func rustParams(n *sitter.Node, content []byte) []ir.Parameter {
	if n == nil {
		return nil
	}
	var out []ir.Parameter
	for _, p := range children(n) {
		switch p.Type() {
		case "parameter":
			out = append(out, ir.Parameter{
				Name: nodeText(p.ChildByFieldName("pattern"), content),
				Type: nodeText(p.ChildByFieldName("type"), content),
			})
		case "self_parameter":
			out = append(out, ir.Parameter{Name: "self"})
		}
	}
	return out
}

func extractRustTypes(root *sitter.Node, content []byte) []ir.Class {
	var out []ir.Class
	kindFor := map[string]string{
		"struct_item": "struct", "enum_item": "enum", "trait_item": "trait",
	}
	walk(root, func(n *sitter.Node) bool {
		kind, ok := kindFor[n.Type()]
		if !ok {
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
			SourceText: nodeText(n, content),
			Kind:       kind,
			Language:   ir.LangRust,
		})
		return true
	})
	return out
}

// extractRustImplementations records `impl Trait for Type` blocks as
// IMPLEMENTS edges, the closest Rust analogue to Java's interface
// implementation since Rust has no class inheritance.
func extractRustImplementations(root *sitter.Node, content []byte) []ir.Implementation {
	var out []ir.Implementation
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "impl_item" {
			return true
		}
		traitNode := n.ChildByFieldName("trait")
		typeNode := n.ChildByFieldName("type")
		if traitNode == nil || typeNode == nil {
			return true
		}
		out = append(out, ir.Implementation{
			ClassName:     nodeText(typeNode, content),
			InterfaceName: nodeText(traitNode, content),
			LineNumber:    startLine(n),
		})
		return true
	})
	return out
}

func extractRustUses(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "use_declaration" {
			return true
		}
		arg := n.ChildByFieldName("argument")
		text := nodeText(arg, content)
		out = append(out, ir.Import{
			Name:       text,
			LineNumber: startLine(n),
			IsWildcard: strings.HasSuffix(text, "*"),
		})
		return true
	})
	return out
}

func extractRustCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	fnKind := map[string]bool{"function_item": true}
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
		case "identifier", "scoped_identifier":
			full = nodeText(fnNode, content)
		case "field_expression":
			full = nodeText(fnNode, content)
			receiver = nodeText(fnNode.ChildByFieldName("value"), content)
		default:
			return true
		}
		ctxNode := enclosing(n, fnKind)
		var ctx ir.Context
		if ctxNode != nil {
			name := nodeText(ctxNode.ChildByFieldName("name"), content)
			if recv := rustImplTypeName(ctxNode, content); recv != "" {
				name = recv + "." + name
			}
			ctx = ir.Context{EnclosingFunction: name, EnclosingLine: startLine(ctxNode)}
		}
		out = append(out, ir.Call{FullName: full, LineNumber: startLine(n), Context: ctx, ReceiverType: receiver})
		return true
	})
	return out
}
