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

// javaExtractor walks classes/interfaces/
// enums/annotation types; methods and constructors (constructor flag set);
// import/import static (wildcard flag); extends→INHERITS,
// implements→IMPLEMENTS (one edge per interface); nested classes use dotted
// full names. Grounded in
// original_source/.../languages/java.py's capture groups.
type javaExtractor struct {
	pool *sync.Pool
}

var javaComplexityKinds = map[string]bool{
	"if_statement":          true,
	"for_statement":         true,
	"while_statement":       true,
	"do_statement":          true,
	"switch_label":          true,
	"catch_clause":          true,
	"ternary_expression":    true,
	"binary_expression":     true,
}

func (e *javaExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangJava}
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
		return out, fmt.Errorf("java: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	out.Classes = extractJavaTypes(root, content, "")
	out.Functions = extractJavaMethods(root, content, "", 0)
	out.Imports = extractJavaImports(root, content)
	out.Inheritance = extractJavaInheritance(root, content)
	out.Implementations = extractJavaImplements(root, content)
	out.FunctionCalls = extractJavaCalls(root, content)
	return out, nil
}

var javaTypeKinds = map[string]string{
	"class_declaration":            "class",
	"interface_declaration":        "interface",
	"enum_declaration":             "enum",
	"annotation_type_declaration":  "annotation",
}

// extractJavaTypes walks type declarations, namespacing nested classes with
// dotted full names so a nested class never collides with a top-level one.
func extractJavaTypes(n *sitter.Node, content []byte, prefix string) []ir.Class {
	var out []ir.Class
	for _, c := range children(n) {
		kind, ok := javaTypeKinds[c.Type()]
		if ok {
			name := nodeText(c.ChildByFieldName("name"), content)
			full := name
			if prefix != "" {
				full = prefix + "." + name
			}
			out = append(out, ir.Class{
				Name:       full,
				LineNumber: startLine(c),
				EndLine:    endLine(c),
				Bases:      javaSuperclass(c, content),
				SourceText: nodeText(c, content),
				Kind:       kind,
				Language:   ir.LangJava,
			})
			if body := c.ChildByFieldName("body"); body != nil {
				out = append(out, extractJavaTypes(body, content, full)...)
			}
			continue
		}
		out = append(out, extractJavaTypes(c, content, prefix)...)
	}
	return out
}

func javaSuperclass(n *sitter.Node, content []byte) []string {
	sc := n.ChildByFieldName("superclass")
	if sc == nil {
		return nil
	}
	for _, c := range children(sc) {
		if c.Type() == "type_identifier" || c.Type() == "generic_type" {
			return []string{nodeText(c, content)}
		}
	}
	return nil
}

// extractJavaMethods walks method and constructor declarations, carrying
// the enclosing type's dotted full name and declaration line so each
// method's Context names the class that CONTAINS it.
func extractJavaMethods(n *sitter.Node, content []byte, classPrefix string, classLine int) []ir.Function {
	var out []ir.Function
	for _, c := range children(n) {
		switch c.Type() {
		case "class_declaration", "interface_declaration", "enum_declaration", "annotation_type_declaration":
			name := nodeText(c.ChildByFieldName("name"), content)
			full := name
			if classPrefix != "" {
				full = classPrefix + "." + name
			}
			if body := c.ChildByFieldName("body"); body != nil {
				out = append(out, extractJavaMethods(body, content, full, startLine(c))...)
			}
			continue
		case "method_declaration", "constructor_declaration":
			name := nodeText(c.ChildByFieldName("name"), content)
			full := name
			var fnCtx ir.Context
			if classPrefix != "" {
				full = classPrefix + "." + name
				fnCtx = ir.Context{EnclosingClass: classPrefix, EnclosingLine: classLine}
			}
			params := javaFormalParams(c.ChildByFieldName("parameters"), content)
			out = append(out, ir.Function{
				Name:                 full,
				LineNumber:           startLine(c),
				EndLine:              endLine(c),
				Args:                 params,
				SourceText:           nodeText(c, content),
				CyclomaticComplexity: 1 + countComplexityNodes(c, javaComplexityKinds),
				Context:              fnCtx,
				Language:             ir.LangJava,
				IsConstructor:        c.Type() == "constructor_declaration",
				IsStatic:             javaHasModifier(c, "static", content),
				ReturnType:           nodeText(c.ChildByFieldName("type"), content),
			})
			continue
		}
		out = append(out, extractJavaMethods(c, content, classPrefix, classLine)...)
	}
	return out
}

func javaHasModifier(n *sitter.Node, mod string, content []byte) bool {
	for _, c := range children(n) {
		if c.Type() == "modifiers" {
			return strings.Contains(nodeText(c, content), mod)
		}
	}
	return false
}

func javaFormalParams(n *sitter.Node, content []byte) []ir.Parameter {
	if n == nil {
		return nil
	}
	var out []ir.Parameter
	for _, p := range children(n) {
		if p.Type() != "formal_parameter" && p.Type() != "spread_parameter" {
			continue
		}
		out = append(out, ir.Parameter{
			Name: nodeText(p.ChildByFieldName("name"), content),
			Type: nodeText(p.ChildByFieldName("type"), content),
		})
	}
	return out
}

func extractJavaImports(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "import_declaration" {
			return true
		}
		text := nodeText(n, content)
		isStatic := strings.Contains(text, "import static")
		isWildcard := strings.Contains(text, "*")
		// collect dotted path from children, stripping the "import"/"static"/";" tokens
		var parts []string
		for _, c := range children(n) {
			switch c.Type() {
			case "scoped_identifier", "identifier":
				parts = append(parts, nodeText(c, content))
			}
		}
		name := strings.Join(parts, ".")
		if name == "" {
			name = text
		}
		out = append(out, ir.Import{
			Name: name, LineNumber: startLine(n),
			IsStatic: isStatic, IsWildcard: isWildcard,
		})
		return true
	})
	return out
}

func extractJavaInheritance(root *sitter.Node, content []byte) []ir.Inheritance {
	var out []ir.Inheritance
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "class_declaration" {
			return true
		}
		bases := javaSuperclass(n, content)
		if len(bases) == 0 {
			return true
		}
		out = append(out, ir.Inheritance{
			ClassName:  nodeText(n.ChildByFieldName("name"), content),
			BaseName:   bases[0],
			LineNumber: startLine(n),
		})
		return true
	})
	return out
}

// extractJavaImplements emits one IMPLEMENTS edge per declared interface,
// one edge per declared interface.
func extractJavaImplements(root *sitter.Node, content []byte) []ir.Implementation {
	var out []ir.Implementation
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "class_declaration" {
			return true
		}
		ifaces := n.ChildByFieldName("interfaces")
		if ifaces == nil {
			return true
		}
		className := nodeText(n.ChildByFieldName("name"), content)
		walk(ifaces, func(c *sitter.Node) bool {
			if c.Type() == "type_identifier" || c.Type() == "generic_type" {
				out = append(out, ir.Implementation{
					ClassName:     className,
					InterfaceName: nodeText(c, content),
					LineNumber:    startLine(n),
				})
			}
			return true
		})
		return true
	})
	return out
}

func extractJavaCalls(root *sitter.Node, content []byte) []ir.Call {
	var out []ir.Call
	fnKind := map[string]bool{"method_declaration": true, "constructor_declaration": true}
	classKind := map[string]bool{"class_declaration": true}
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "method_invocation":
			name := nodeText(n.ChildByFieldName("name"), content)
			obj := nodeText(n.ChildByFieldName("object"), content)
			full := name
			if obj != "" {
				full = obj + "." + name
			}
			out = append(out, javaCallRecord(n, full, obj, content, fnKind, classKind))
		case "object_creation_expression":
			typ := nodeText(n.ChildByFieldName("type"), content)
			out = append(out, javaCallRecord(n, typ, "", content, fnKind, classKind))
		}
		return true
	})
	return out
}

func javaCallRecord(n *sitter.Node, fullName, receiver string, content []byte, fnKind, classKind map[string]bool) ir.Call {
	fnCtx := enclosing(n, fnKind)
	classCtx := enclosing(n, classKind)
	ctx := ir.Context{}
	if fnCtx != nil {
		ctx.EnclosingFunction = nodeText(fnCtx.ChildByFieldName("name"), content)
		ctx.EnclosingLine = startLine(fnCtx)
	}
	if classCtx != nil {
		ctx.EnclosingClass = nodeText(classCtx.ChildByFieldName("name"), content)
	}
	return ir.Call{FullName: fullName, LineNumber: startLine(n), Context: ctx, ReceiverType: receiver}
}
