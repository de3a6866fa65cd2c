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
	"strconv"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cgindex/cgindex/internal/ir"
)

// cssExtractor walks CSS rule sets (named for
// their first selector), individual selectors, declarations, @import/@media,
// and specificity (100*#ids + 10*#classes + 1*#elements). Cascade
// (OVERRIDDEN_BY) edges are not computed here: the graph writer derives them
// from one file's complete rule and selector lists (see internal/graphstore). Grounded in
// original_source/.../languages/css.py's _find_rules/_find_selectors/
// _find_properties/_calculate_specificity.
type cssExtractor struct {
	pool *sync.Pool
}

var cssSelectorKinds = map[string]bool{
	"class_selector": true, "id_selector": true, "tag_name": true,
	"universal_selector": true, "descendant_selector": true,
}

// cssAtRuleKinds maps the at-rule statement nodes that produce MediaQuery
// records to their AtRuleKind tag.
var cssAtRuleKinds = map[string]string{
	"media_statement":     "media",
	"keyframes_statement": "keyframes",
	"supports_statement":  "supports",
	"namespace_statement": "namespace",
}

var cssAtRuleNodeSet = map[string]bool{
	"media_statement": true, "keyframes_statement": true,
	"supports_statement": true, "namespace_statement": true,
}

// cssAtRuleName derives the stable name shared between an at-rule's
// MediaQuery record and the Context of the rules nested inside it.
func cssAtRuleName(n *sitter.Node) string {
	return cssAtRuleKinds[n.Type()] + "_" + strconv.Itoa(startLine(n))
}

func (e *cssExtractor) Extract(ctx context.Context, path string) (ir.File, error) {
	out := ir.File{FilePath: path, Language: ir.LangCSS}
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
		return out, fmt.Errorf("css: no parser available")
	}
	defer e.pool.Put(parser)

	tree, err := parseTree(ctx, parser, content)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	defer tree.Close()
	root := tree.RootNode()

	out.Rules = extractCSSRules(root, content)
	out.Selectors = extractCSSSelectors(root, content)
	out.Properties = extractCSSProperties(root, content)
	out.Imports = extractCSSImports(root, content)
	out.MediaQueries = extractCSSMediaQueries(root, content)
	return out, nil
}

// cssSpecificity implements the original's simple heuristic: count '#', '.',
// and bare-word tokens in the selector text.
func cssSpecificity(selectorText string) int {
	ids := strings.Count(selectorText, "#")
	classes := strings.Count(selectorText, ".")
	elements := 0
	for _, part := range strings.Fields(selectorText) {
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") || strings.HasPrefix(part, "#") ||
			strings.HasPrefix(part, ":") || strings.HasPrefix(part, "[") {
			continue
		}
		elements++
	}
	return ids*100 + classes*10 + elements
}

// cssParentContext walks up from n to the nearest rule_set, returning the
// first-selector name used as that rule's identity.
func cssParentContext(n *sitter.Node, content []byte) string {
	cur := n.Parent()
	for cur != nil {
		if cur.Type() == "rule_set" {
			if sel := firstSelectorOf(cur, content); sel != "" {
				return sel
			}
		}
		cur = cur.Parent()
	}
	return ""
}

func firstSelectorOf(ruleSet *sitter.Node, content []byte) string {
	for _, c := range children(ruleSet) {
		if c.Type() != "selectors" {
			continue
		}
		for _, s := range children(c) {
			if cssSelectorKinds[s.Type()] {
				return nodeText(s, content)
			}
		}
	}
	return ""
}

func extractCSSRules(root *sitter.Node, content []byte) []ir.Rule {
	var out []ir.Rule
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "rule_set" {
			return true
		}
		var selectorsNode, blockNode *sitter.Node
		for _, c := range children(n) {
			switch c.Type() {
			case "selectors":
				selectorsNode = c
			case "block":
				blockNode = c
			}
		}
		if selectorsNode == nil {
			return true
		}
		var selectorTexts []string
		for _, s := range children(selectorsNode) {
			if cssSelectorKinds[s.Type()] {
				selectorTexts = append(selectorTexts, nodeText(s, content))
			}
		}
		if len(selectorTexts) == 0 {
			return true
		}
		ruleName := selectorTexts[0]
		declCount := 0
		if blockNode != nil {
			for _, d := range children(blockNode) {
				if d.Type() == "declaration" {
					declCount++
				}
			}
		}
		ctxName := cssParentContext(n, content)
		if ctxName == "" {
			// A rule nested in an at-rule is contained by that at-rule's
			// MediaQuery node, named the same way extractCSSMediaQueries
			// names it.
			if at := enclosing(n, cssAtRuleNodeSet); at != nil {
				ctxName = cssAtRuleName(at)
			}
		}
		out = append(out, ir.Rule{
			Name:             ruleName,
			LineNumber:       startLine(n),
			EndLine:          endLine(n),
			SelectorText:     strings.Join(selectorTexts, ", "),
			Specificity:      cssSpecificity(ruleName),
			SourceText:       nodeText(n, content),
			DeclarationCount: declCount,
			Context:          ctxName,
		})
		return true
	})
	return out
}

func extractCSSSelectors(root *sitter.Node, content []byte) []ir.Selector {
	var out []ir.Selector
	walk(root, func(n *sitter.Node) bool {
		if !cssSelectorKinds[n.Type()] {
			return true
		}
		text := nodeText(n, content)
		ruleNode := n.Parent()
		for ruleNode != nil && ruleNode.Type() != "rule_set" {
			ruleNode = ruleNode.Parent()
		}
		var ruleName string
		if ruleNode != nil {
			ruleName = firstSelectorOf(ruleNode, content)
		}
		out = append(out, ir.Selector{
			Name:        text,
			LineNumber:  startLine(n),
			EndLine:     endLine(n),
			Specificity: cssSpecificity(text),
			RuleName:    ruleName,
		})
		return true
	})
	return out
}

func extractCSSProperties(root *sitter.Node, content []byte) []ir.Property {
	var out []ir.Property
	valueKinds := map[string]bool{"plain_value": true, "integer_value": true, "color_value": true}
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "declaration" {
			return true
		}
		var nameNode, valueNode *sitter.Node
		for _, c := range children(n) {
			if c.Type() == "property_name" && nameNode == nil {
				nameNode = c
			}
			if valueKinds[c.Type()] && valueNode == nil {
				valueNode = c
			}
		}
		if nameNode == nil {
			return true
		}
		ruleNode := n.Parent()
		for ruleNode != nil && ruleNode.Type() != "rule_set" {
			ruleNode = ruleNode.Parent()
		}
		var ruleName string
		if ruleNode != nil {
			ruleName = firstSelectorOf(ruleNode, content)
		}
		out = append(out, ir.Property{
			Name:       nodeText(nameNode, content),
			LineNumber: startLine(n),
			Value:      nodeText(valueNode, content),
			RuleName:   ruleName,
		})
		return true
	})
	return out
}

func extractCSSImports(root *sitter.Node, content []byte) []ir.Import {
	var out []ir.Import
	walk(root, func(n *sitter.Node) bool {
		if n.Type() != "import_statement" {
			return true
		}
		var url string
		walk(n, func(c *sitter.Node) bool {
			if url == "" && c.Type() == "string_value" {
				url = strings.Trim(nodeText(c, content), "\"'")
			}
			return url == ""
		})
		name := url
		if name == "" {
			name = "unknown"
		}
		out = append(out, ir.Import{Name: name, LineNumber: startLine(n)})
		return true
	})
	return out
}

// extractCSSMediaQueries captures @media, @keyframes, @supports, and
// @namespace statements, each as a MediaQuery record whose AtRuleKind
// names the at-rule.
func extractCSSMediaQueries(root *sitter.Node, content []byte) []ir.MediaQuery {
	var out []ir.MediaQuery
	walk(root, func(n *sitter.Node) bool {
		kind, ok := cssAtRuleKinds[n.Type()]
		if !ok {
			return true
		}
		out = append(out, ir.MediaQuery{
			Name:       cssAtRuleName(n),
			LineNumber: startLine(n),
			EndLine:    endLine(n),
			AtRuleKind: kind,
		})
		return true
	})
	return out
}
