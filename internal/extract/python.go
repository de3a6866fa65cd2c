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

// pythonExtractor walks a Python syntax tree for def/class/import/lambda,
// extended with decorators, docstrings, and complexity scoring.
type pythonExtractor struct {
	pool *sync.Pool
}

var pythonComplexityKinds = map[string]bool{
	"if_statement":           true,
	"elif_clause":            true,
	"for_statement":          true,
	"while_statement":        true,
	"except_clause":          true,
	"with_statement":         true,
	"boolean_operator":       true,
	"list_comprehension":     true,
	"set_comprehension":      true,
	"dictionary_comprehension": true,
	"generator_expression":   true,
	"case_clause":            true,
	"conditional_expression": true, // ternary
}

func (e *pythonExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangPython}

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
		return out, fmt.Errorf("python: no parser available")
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
	funcNames := map[string]bool{}
	anon := 0
	walkPythonScope(root, content, "", &funcs, funcNames, &anon)
	out.Functions = dedupFunctions(funcs)

	out.Classes = extractPythonClasses(root, content)
	out.Imports = extractPythonImports(root, content)
	out.FunctionCalls = extractPythonCalls(root, content)
	out.Inheritance = inheritanceFromBases(out.Classes)

	return out, nil
}

// walkPythonScope recurses through scopes: class bodies
// set the class-name prefix for methods; everything else recurses normally.
// Lambdas bound by assignment (`name = lambda ...`) are captured as
// functions named for their bound identifier; other lambdas get a synthetic
// name.
func walkPythonScope(n *sitter.Node, content []byte, classPrefix string, out *[]ir.Function, seen map[string]bool, anon *int) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "class_definition":
		name := nodeText(n.ChildByFieldName("name"), content)
		for _, c := range children(n) {
			if c.Type() == "block" {
				walkPythonScope(c, content, name, out, seen, anon)
			}
		}
		return
	case "function_definition":
		fn := extractPythonFunction(n, content, classPrefix)
		*out = append(*out, fn)
		for _, c := range children(n) {
			// nested defs inside this function body get no class prefix
			if c.Type() == "block" {
				walkPythonScope(c, content, "", out, seen, anon)
			}
		}
		return
	case "assignment":
		// name = lambda ...
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left != nil && right != nil && right.Type() == "lambda" {
			name := nodeText(left, content)
			if classPrefix != "" {
				name = classPrefix + "." + name
			}
			*out = append(*out, extractPythonLambda(right, content, name))
			return
		}
	case "lambda":
		*anon++
		*out = append(*out, extractPythonLambda(n, content, fmt.Sprintf("$lambda_%d", *anon)))
		return
	}
	for _, c := range children(n) {
		walkPythonScope(c, content, classPrefix, out, seen, anon)
	}
}

func extractPythonFunction(n *sitter.Node, content []byte, classPrefix string) ir.Function {
	name := nodeText(n.ChildByFieldName("name"), content)
	fullName := name
	if classPrefix != "" {
		fullName = classPrefix + "." + name
	}

	params := parsePythonParams(n.ChildByFieldName("parameters"), content)
	returnType := nodeText(n.ChildByFieldName("return_type"), content)

	body := n.ChildByFieldName("body")
	docstring := pythonDocstring(body, content)
	decorators := pythonDecorators(n, content)
	complexity := 1 + countComplexityNodes(n, pythonComplexityKinds)

	return ir.Function{
		Name:                 fullName,
		LineNumber:           startLine(n),
		EndLine:              endLine(n),
		Args:                 params,
		SourceText:           nodeText(n, content),
		Docstring:            docstring,
		CyclomaticComplexity: complexity,
		Context:              pythonFunctionContext(n, content),
		Decorators:           decorators,
		Language:             ir.LangPython,
		ReturnType:           returnType,
	}
}

func extractPythonLambda(n *sitter.Node, content []byte, name string) ir.Function {
	params := parsePythonParams(n.ChildByFieldName("parameters"), content)
	return ir.Function{
		Name:                 name,
		LineNumber:           startLine(n),
		EndLine:              endLine(n),
		Args:                 params,
		SourceText:           nodeText(n, content),
		CyclomaticComplexity: 1 + countComplexityNodes(n, pythonComplexityKinds),
		Context:              pythonFunctionContext(n, content),
		Language:             ir.LangPython,
	}
}

// pythonFunctionContext walks upward from a def/lambda node to its nearest
// enclosing function or class. An enclosing method's name is qualified with
// its own class prefix, so the context names the enclosing entity exactly
// as that entity's own record names it.
func pythonFunctionContext(n *sitter.Node, content []byte) ir.Context {
	cur := n.Parent()
	for cur != nil {
		switch cur.Type() {
		case "function_definition":
			name := nodeText(cur.ChildByFieldName("name"), content)
			if cls := pythonEnclosingClassName(cur, content); cls != "" {
				name = cls + "." + name
			}
			return ir.Context{EnclosingFunction: name, EnclosingLine: startLine(cur)}
		case "class_definition":
			return ir.Context{
				EnclosingClass: nodeText(cur.ChildByFieldName("name"), content),
				EnclosingLine:  startLine(cur),
			}
		}
		cur = cur.Parent()
	}
	return ir.Context{}
}

// pythonEnclosingClassName returns the class a def is a method of, or ""
// when the def is top-level or nested inside another function.
func pythonEnclosingClassName(n *sitter.Node, content []byte) string {
	cur := n.Parent()
	for cur != nil {
		switch cur.Type() {
		case "class_definition":
			return nodeText(cur.ChildByFieldName("name"), content)
		case "function_definition":
			return ""
		}
		cur = cur.Parent()
	}
	return ""
}

func parsePythonParams(n *sitter.Node, content []byte) []ir.Parameter {
	if n == nil {
		return nil
	}
	var out []ir.Parameter
	for _, c := range children(n) {
		switch c.Type() {
		case "identifier":
			out = append(out, ir.Parameter{Name: nodeText(c, content)})
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			nameNode := c.ChildByFieldName("name")
			if nameNode == nil {
				nameNode = c.Child(0)
			}
			typ := nodeText(c.ChildByFieldName("type"), content)
			out = append(out, ir.Parameter{Name: nodeText(nameNode, content), Type: typ})
		}
	}
	return out
}

// pythonDocstring returns the first string-literal statement of a body, if
// present.
func pythonDocstring(body *sitter.Node, content []byte) string {
	if body == nil {
		return ""
	}
	for _, c := range children(body) {
		if c.Type() == "expression_statement" {
			for _, e := range children(c) {
				if e.Type() == "string" {
					return nodeText(e, content)
				}
			}
		}
		// first real statement only
		break
	}
	return ""
}

func pythonDecorators(n *sitter.Node, content []byte) []string {
	// Decorators are siblings preceding the function_definition, wrapped in
	// a decorated_definition parent.
	parent := n.Parent()
	if parent == nil || parent.Type() != "decorated_definition" {
		return nil
	}
	var out []string
	for _, c := range children(parent) {
		if c.Type() == "decorator" {
			out = append(out, strings.TrimPrefix(nodeText(c, content), "@"))
		}
	}
	return out
}

func extractPythonClasses(root *sitter.Node, content []byte) []ir.Class {
	var out []ir.Class
	walk(root, func(n *sitter.Node) bool {
		if n.Type() == "class_definition" {
			name := nodeText(n.ChildByFieldName("name"), content)
			var bases []string
			if sl := n.ChildByFieldName("superclasses"); sl != nil {
				for _, c := range children(sl) {
					if c.Type() == "identifier" || c.Type() == "attribute" {
						bases = append(bases, nodeText(c, content))
					}
				}
			}
			body := n.ChildByFieldName("body")
			out = append(out, ir.Class{
				Name:       name,
				LineNumber: startLine(n),
				EndLine:    endLine(n),
				Bases:      bases,
				SourceText: nodeText(n, content),
				Docstring:  pythonDocstring(body, content),
				Kind:       "class",
				Language:   ir.LangPython,
			})
		}
		return true
	})
	return out
}

func extractPythonImports(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for _, c := range children(n) {
				if c.Type() == "dotted_name" || c.Type() == "aliased_import" {
					out = append(out, pythonImportFrom(c, content, startLine(n)))
				}
			}
		case "import_from_statement":
			moduleNode := n.ChildByFieldName("module_name")
			module := nodeText(moduleNode, content)
			for _, c := range children(n) {
				if c.Type() == "dotted_name" && c != moduleNode {
					out = append(out, ir.Import{Name: module + "." + nodeText(c, content), LineNumber: startLine(n)})
				} else if c.Type() == "aliased_import" {
					imp := pythonImportFrom(c, content, startLine(n))
					imp.Name = module + "." + imp.Name
					out = append(out, imp)
				} else if c.Type() == "wildcard_import" {
					out = append(out, ir.Import{Name: module + ".*", LineNumber: startLine(n), IsWildcard: true})
				}
			}
		}
		return true
	})
	return out
}

func pythonImportFrom(n *sitter.Node, content []byte, line int) ir.Import {
	if n.Type() == "aliased_import" {
		name := nodeText(n.ChildByFieldName("name"), content)
		alias := nodeText(n.ChildByFieldName("alias"), content)
		return ir.Import{Name: name, Alias: alias, LineNumber: line}
	}
	return ir.Import{Name: nodeText(n, content), LineNumber: line}
}

func extractPythonCalls(root *sitter.Node, content []byte) []ir.Call {
	var calls []ir.Call
	funcKinds := map[string]bool{"function_definition": true, "class_definition": true}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() == "call" {
			fnNode := n.ChildByFieldName("function")
			argsNode := n.ChildByFieldName("arguments")
			ctxNode := enclosing(n, funcKinds)
			c := ir.Call{
				FullName:   nodeText(fnNode, content),
				LineNumber: startLine(n),
				Context:    contextFromEnclosing(ctxNode, content),
			}
			if argsNode != nil {
				for _, a := range children(argsNode) {
					if a.Type() != "(" && a.Type() != ")" && a.Type() != "," {
						c.Args = append(c.Args, nodeText(a, content))
					}
				}
			}
			if fnNode != nil && fnNode.Type() == "attribute" {
				obj := fnNode.ChildByFieldName("object")
				c.ReceiverType = nodeText(obj, content)
			}
			calls = append(calls, c)
		}
		return true
	})
	return calls
}

// contextFromEnclosing builds an ir.Context from the nearest enclosing
// function/class node found via `enclosing`.
func contextFromEnclosing(n *sitter.Node, content []byte) ir.Context {
	if n == nil {
		return ir.Context{}
	}
	switch n.Type() {
	case "function_definition":
		return ir.Context{EnclosingFunction: nodeText(n.ChildByFieldName("name"), content), EnclosingLine: startLine(n)}
	case "class_definition":
		return ir.Context{EnclosingClass: nodeText(n.ChildByFieldName("name"), content), EnclosingLine: startLine(n)}
	}
	return ir.Context{}
}

// countComplexityNodes counts occurrences of the given node kinds within n's
// subtree, used for cyclomatic-complexity scoring.
func countComplexityNodes(n *sitter.Node, kinds map[string]bool) int {
	count := 0
	walk(n, func(c *sitter.Node) bool {
		if c != n && kinds[c.Type()] {
			count++
		}
		// don't descend into nested function/lambda bodies' own complexity
		if c != n && (c.Type() == "function_definition" || c.Type() == "lambda") {
			return false
		}
		return true
	})
	return count
}

// dedupFunctions removes duplicate entries by the natural key name:line,
// in source order.
func dedupFunctions(in []ir.Function) []ir.Function {
	seen := make(map[string]bool, len(in))
	out := make([]ir.Function, 0, len(in))
	for _, f := range in {
		k := dedupKey(f.Name, f.LineNumber)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}
