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

// goExtractor walks func/method declarations, func literals, type
// declarations (struct, interface, and other named types) and struct fields, imports, and call expressions.
// Receiver methods are namespaced as Type.Method so they line up with the
// Class->Function containment edge the graph writer derives from dotted
// names. Grounded directly in the ingestion package's own parser_go.go.
type goExtractor struct {
	pool *sync.Pool
}

var goComplexityKinds = map[string]bool{
	"if_statement":        true,
	"for_statement":       true,
	"expression_switch_statement": true,
	"type_switch_statement":       true,
	"select_statement":    true,
	"communication_case":  true,
	"binary_expression":   true,
}

func (e *goExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangGo}
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
		return out, fmt.Errorf("go: no parser available")
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
	out.Functions = extractGoFunctions(root, content, &anon)
	out.Classes, out.Variables = extractGoTypesAndFields(root, content)
	out.Imports = extractGoImports(root, content)
	out.FunctionCalls = extractGoCalls(root, content)
	return out, nil
}

func extractGoFunctions(root *sitter.Node, content []byte, anon *int) []ir.Function {
	var out []ir.Function
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_declaration":
			out = append(out, goBuildFunction(n, content, goFunctionName(n, content), false))
		case "method_declaration":
			fn := goBuildFunction(n, content, goMethodFullName(n, content), false)
			if recv := goReceiverTypeName(n, content); recv != "" {
				fn.Context = ir.Context{EnclosingClass: recv}
			}
			out = append(out, fn)
		case "func_literal":
			*anon++
			fn := goBuildFunction(n, content, fmt.Sprintf("$anon_%d", *anon), true)
			fn.Context = goEnclosingFunctionContext(n, content)
			out = append(out, fn)
		}
		return true
	})
	return out
}

// goEnclosingFunctionContext names the function or method a func literal is
// defined inside, using the same Type.Method qualification the enclosing
// entity's own record carries.
func goEnclosingFunctionContext(n *sitter.Node, content []byte) ir.Context {
	enc := enclosing(n, map[string]bool{"function_declaration": true, "method_declaration": true})
	if enc == nil {
		return ir.Context{}
	}
	name := goFunctionName(enc, content)
	if enc.Type() == "method_declaration" {
		name = goMethodFullName(enc, content)
	}
	return ir.Context{EnclosingFunction: name, EnclosingLine: startLine(enc)}
}

func goFunctionName(n *sitter.Node, content []byte) string {
	return nodeText(n.ChildByFieldName("name"), content)
}

// goMethodFullName builds "ReceiverType.MethodName", unwrapping pointer and
// generic receivers to their base type identifier.
func goMethodFullName(n *sitter.Node, content []byte) string {
	name := nodeText(n.ChildByFieldName("name"), content)
	if base := goReceiverTypeName(n, content); base != "" {
		return base + "." + name
	}
	return name
}

// goReceiverTypeName returns a method declaration's receiver base type, or
// "" for a malformed receiver clause.
func goReceiverTypeName(n *sitter.Node, content []byte) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for _, c := range children(recv) {
		if c.Type() != "parameter_declaration" {
			continue
		}
		if typeNode := c.ChildByFieldName("type"); typeNode != nil {
			if base := goBaseTypeName(typeNode, content); base != "" {
				return base
			}
		}
	}
	return ""
}

// goBaseTypeName unwraps pointer_type/generic_type/qualified_type to find the
// underlying identifier, mirroring the Go parser's own receiver-type logic.
func goBaseTypeName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "pointer_type":
		for _, c := range children(n) {
			if c.Type() != "*" {
				return goBaseTypeName(c, content)
			}
		}
	case "generic_type":
		return nodeText(n.ChildByFieldName("type"), content)
	case "qualified_type":
		for _, c := range children(n) {
			if c.Type() == "type_identifier" {
				return nodeText(c, content)
			}
		}
	case "type_identifier":
		return nodeText(n, content)
	}
	text := nodeText(n, content)
	text = strings.TrimPrefix(text, "*")
	if idx := strings.Index(text, "["); idx > 0 {
		text = text[:idx]
	}
	return text
}

func goBuildFunction(n *sitter.Node, content []byte, name string, isAnon bool) ir.Function {
	params := goParams(n.ChildByFieldName("parameters"), content)
	returnType := nodeText(n.ChildByFieldName("result"), content)
	return ir.Function{
		Name:                 name,
		LineNumber:           startLine(n),
		EndLine:              endLine(n),
		Args:                 params,
		SourceText:           nodeText(n, content),
		CyclomaticComplexity: 1 + countComplexityNodes(n, goComplexityKinds),
		Language:             ir.LangGo,
		ReturnType:           returnType,
	}
}

func goParams(n *sitter.Node, content []byte) []ir.Parameter {
	if n == nil {
		return nil
	}
	var out []ir.Parameter
	for _, p := range children(n) {
		if p.Type() != "parameter_declaration" && p.Type() != "variadic_parameter_declaration" {
			continue
		}
		typ := nodeText(p.ChildByFieldName("type"), content)
		nameNode := p.ChildByFieldName("name")
		if nameNode != nil {
			out = append(out, ir.Parameter{Name: nodeText(nameNode, content), Type: typ})
		} else {
			out = append(out, ir.Parameter{Type: typ})
		}
	}
	return out
}

var goBuiltinTypes = map[string]bool{
	"bool": true, "string": true, "error": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,
	"byte": true, "rune": true, "any": true,
}

// extractGoTypesAndFields walks type_spec nodes, emitting structs,
// interfaces, and other named types (kind "type_alias") as ir.Class and
// named, non-embedded,
// non-builtin struct fields as ir.Variable (named StructName.FieldName).
func extractGoTypesAndFields(root *sitter.Node, content []byte) ([]ir.Class, []ir.Variable) {
	var classes []ir.Class
	var vars []ir.Variable
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "type_spec" {
			return true
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			return true
		}
		name := nodeText(nameNode, content)
		typeNode := n.ChildByFieldName("type")
		kind := goTypeKind(typeNode)
		if kind == "" {
			return true
		}
		classes = append(classes, ir.Class{
			Name:       name,
			LineNumber: startLine(n),
			EndLine:    endLine(n),
			SourceText: nodeText(n, content),
			Kind:       kind,
			Language:   ir.LangGo,
		})
		if kind == "struct" {
			vars = append(vars, goStructFields(typeNode, name, content)...)
		}
		return true
	})
	return classes, vars
}

func goTypeKind(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "struct_type":
		return "struct"
	case "interface_type":
		return "interface"
	case "type_identifier", "pointer_type", "array_type", "slice_type",
		"map_type", "channel_type", "function_type", "generic_type":
		return "type_alias"
	}
	return ""
}

func goStructFields(structNode *sitter.Node, structName string, content []byte) []ir.Variable {
	var out []ir.Variable
	for _, c := range children(structNode) {
		if c.Type() != "field_declaration_list" {
			continue
		}
		for _, fd := range children(c) {
			if fd.Type() != "field_declaration" {
				continue
			}
			var fieldName string
			for _, fc := range children(fd) {
				if fc.Type() == "field_identifier" {
					fieldName = nodeText(fc, content)
					break
				}
			}
			if fieldName == "" {
				continue // embedded field
			}
			typeNode := fd.ChildByFieldName("type")
			fieldType := goBaseTypeName(typeNode, content)
			if fieldType == "" || goBuiltinTypes[fieldType] {
				continue
			}
			out = append(out, ir.Variable{
				Name: structName + "." + fieldName, LineNumber: startLine(fd),
				Type: fieldType, Language: ir.LangGo,
			})
		}
	}
	return out
}

func extractGoImports(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	for _, n := range children(root) {
		if n.Type() != "import_declaration" {
			continue
		}
		for _, c := range children(n) {
			switch c.Type() {
			case "import_spec":
				if imp, ok := goImportSpec(c, content); ok {
					out = append(out, imp)
				}
			case "import_spec_list":
				for _, s := range children(c) {
					if s.Type() == "import_spec" {
						if imp, ok := goImportSpec(s, content); ok {
							out = append(out, imp)
						}
					}
				}
			}
		}
	}
	return out
}

func goImportSpec(n *sitter.Node, content []byte) (ir.Import, bool) {
	pathNode := n.ChildByFieldName("path")
	if pathNode == nil {
		return ir.Import{}, false
	}
	path := strings.Trim(nodeText(pathNode, content), `"`)
	alias := ""
	isWildcard := false
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		alias = nodeText(nameNode, content)
		if alias == "." {
			isWildcard = true
		}
	}
	return ir.Import{Name: path, Alias: alias, LineNumber: startLine(n), IsWildcard: isWildcard}, true
}

func extractGoCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	fnKinds := map[string]bool{"function_declaration": true, "method_declaration": true, "func_literal": true}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fnNode := n.ChildByFieldName("function")
		full := goCalleeFullName(fnNode, content)
		if full == "" {
			return true
		}
		ctxNode := enclosing(n, fnKinds)
		var ctx ir.Context
		if ctxNode != nil {
			switch ctxNode.Type() {
			case "function_declaration":
				ctx.EnclosingFunction = goFunctionName(ctxNode, content)
			case "method_declaration":
				ctx.EnclosingFunction = goMethodFullName(ctxNode, content)
			case "func_literal":
				ctx.EnclosingFunction = "$anon"
			}
			ctx.EnclosingLine = startLine(ctxNode)
		}
		var receiver string
		if fnNode.Type() == "selector_expression" {
			receiver = nodeText(fnNode.ChildByFieldName("operand"), content)
		}
		out = append(out, ir.Call{FullName: full, LineNumber: startLine(n), Context: ctx, ReceiverType: receiver})
		return true
	})
	return out
}

func goCalleeFullName(n *sitter.Node, content []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "selector_expression":
		return nodeText(n, content)
	case "index_expression", "generic_type":
		return goCalleeFullName(n.ChildByFieldName("operand"), content)
	}
	return ""
}
