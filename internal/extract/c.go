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

// cExtractor walks function declarators
// (including pointer-returning), structs/unions/enums, include-path
// distinction, function-like #define macros, globals-only variables.
// Grounded in original_source/.../languages/c.py's query set and node-field
// walking.
type cExtractor struct {
	pool *sync.Pool
}

var cComplexityKinds = map[string]bool{
	"if_statement":        true,
	"for_statement":       true,
	"while_statement":     true,
	"do_statement":        true,
	"case_statement":      true,
	"binary_expression":   true, // includes && and ||, acceptable over-count is fine for a heuristic
	"conditional_expression": true,
}

func (e *cExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangC}
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
		return out, fmt.Errorf("c: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	out.Functions = extractCFunctions(root, content)
	out.Classes = extractCAggregates(root, content)
	out.Imports = extractCIncludes(root, content)
	out.Macros = extractCMacros(root, content)
	out.Variables = extractCGlobals(root, content)
	out.FunctionCalls = extractCCalls(root, content)
	return out, nil
}

// cDeclaratorName unwraps pointer_declarator/array_declarator/init_declarator
// layers to find the underlying identifier, mirroring the Python teacher's
// repeated declarator-unwrapping in _get_parent_context / _parse_function_args.
func cDeclaratorName(n *sitter.Node, content []byte) string {
	for n != nil {
		switch n.Type() {
		case "identifier", "type_identifier", "field_identifier":
			return nodeText(n, content)
		case "pointer_declarator", "array_declarator", "init_declarator":
			n = n.ChildByFieldName("declarator")
		default:
			return ""
		}
	}
	return ""
}

func extractCFunctions(root *sitter.Node, content []byte) []ir.Function {
	var out []ir.Function
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "function_definition" {
			return true
		}
		declarator := n.ChildByFieldName("declarator")
		fd := declarator
		for fd != nil && fd.Type() != "function_declarator" {
			if fd.Type() == "pointer_declarator" {
				fd = fd.ChildByFieldName("declarator")
				continue
			}
			break
		}
		if fd == nil || fd.Type() != "function_declarator" {
			return true
		}
		name := cDeclaratorName(fd.ChildByFieldName("declarator"), content)
		if name == "" {
			return true
		}
		params := cParseParams(fd.ChildByFieldName("parameters"), content)
		// Only GNU nested functions ever produce a non-zero context here;
		// ordinary C functions are translation-unit level.
		var fnCtx ir.Context
		if enc := enclosing(n, map[string]bool{"function_definition": true}); enc != nil {
			fnCtx = ir.Context{EnclosingFunction: cFunctionName(enc, content), EnclosingLine: startLine(enc)}
		}
		out = append(out, ir.Function{
			Name:                 name,
			LineNumber:           startLine(n),
			EndLine:              endLine(n),
			Args:                 params,
			SourceText:           nodeText(n, content),
			CyclomaticComplexity: 1 + countComplexityNodes(n, cComplexityKinds),
			Context:              fnCtx,
			Language:             ir.LangC,
			IsStatic:             cHasStorageClass(n, "static"),
		})
		return true
	})
	return out
}

// cFunctionName unwraps a function_definition's declarator layers to the
// defined identifier.
func cFunctionName(n *sitter.Node, content []byte) string {
	fd := n.ChildByFieldName("declarator")
	for fd != nil && fd.Type() != "function_declarator" {
		fd = fd.ChildByFieldName("declarator")
	}
	if fd == nil {
		return ""
	}
	return cDeclaratorName(fd.ChildByFieldName("declarator"), content)
}

func cHasStorageClass(n *sitter.Node, class string) bool {
	for _, c := range children(n) {
		if c.Type() == "storage_class_specifier" && c.ChildCount() > 0 && c.Child(0).Type() == class {
			return true
		}
	}
	return false
}

func cParseParams(n *sitter.Node, content []byte) []ir.Parameter {
	if n == nil {
		return nil
	}
	var out []ir.Parameter
	for _, p := range children(n) {
		if p.Type() != "parameter_declaration" {
			continue
		}
		typ := nodeText(p.ChildByFieldName("type"), content)
		name := cDeclaratorName(p.ChildByFieldName("declarator"), content)
		out = append(out, ir.Parameter{Name: name, Type: typ})
	}
	return out
}

func extractCAggregates(root *sitter.Node, content []byte) []ir.Class {
	var out []ir.Class
	kindFor := map[string]string{
		"struct_specifier": "struct",
		"union_specifier":  "union",
		"enum_specifier":   "enum",
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
			Language:   ir.LangC,
		})
		return true
	})
	return out
}

func extractCIncludes(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "preproc_include" {
			return true
		}
		pathNode := n.ChildByFieldName("path")
		if pathNode == nil {
			return true
		}
		raw := nodeText(pathNode, content)
		isSystem := pathNode.Type() == "system_lib_string"
		name := strings.Trim(raw, "<>\"")
		out = append(out, ir.Import{Name: name, LineNumber: startLine(n), IsSystem: isSystem})
		return true
	})
	return out
}

func extractCMacros(root *sitter.Node, content []byte) []ir.Macro {
	var out []ir.Macro
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "preproc_def" && n.Type() != "preproc_function_def" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		valueNode := n.ChildByFieldName("value")
		var params []string
		if pn := n.ChildByFieldName("parameters"); pn != nil {
			for _, p := range children(pn) {
				if p.Type() == "identifier" {
					params = append(params, nodeText(p, content))
				}
			}
		}
		out = append(out, ir.Macro{
			Name:           nodeText(nameNode, content),
			LineNumber:     startLine(n),
			Value:          nodeText(valueNode, content),
			Parameters:     params,
			IsFunctionLike: len(params) > 0 || n.Type() == "preproc_function_def",
		})
		return true
	})
	return out
}

// extractCGlobals captures only declarations at translation-unit depth:
// globals go into the variables collection and locals are dropped.
func extractCGlobals(root *sitter.Node, content []byte) []ir.Variable {
	var out []ir.Variable
	for _, n := range children(root) {
		if n.Type() != "declaration" {
			continue
		}
		name := cDeclaratorName(n.ChildByFieldName("declarator"), content)
		if name == "" {
			continue
		}
		var mods []string
		for _, c := range children(n) {
			switch c.Type() {
			case "storage_class_specifier":
				mods = append(mods, nodeText(c, content))
			}
		}
		declarator := n.ChildByFieldName("declarator")
		if declarator != nil && declarator.Type() == "init_declarator" {
			declarator = declarator.ChildByFieldName("declarator")
		}
		if declarator != nil && declarator.Type() == "pointer_declarator" {
			mods = append(mods, "pointer")
		}
		out = append(out, ir.Variable{
			Name:       name,
			LineNumber: startLine(n),
			Type:       nodeText(n.ChildByFieldName("type"), content),
			Language:   ir.LangC,
			Modifiers:  mods,
		})
	}
	return out
}

func extractCCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	fnKind := map[string]bool{"function_definition": true}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fnNode := n.ChildByFieldName("function")
		if fnNode == nil || fnNode.Type() != "identifier" {
			return true
		}
		ctxNode := enclosing(n, fnKind)
		var ctx ir.Context
		if ctxNode != nil {
			ctx = ir.Context{EnclosingFunction: cFunctionName(ctxNode, content), EnclosingLine: startLine(ctxNode)}
		}
		out = append(out, ir.Call{FullName: nodeText(fnNode, content), LineNumber: startLine(n), Context: ctx})
		return true
	})
	return out
}
