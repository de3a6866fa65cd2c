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

// Package graphstore translates IR records into idempotent CozoScript
// upserts against the embedded property-graph backend, and performs the
// cross-file and cascade passes that depend on the whole batch having
// already landed.
package graphstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// schema is the full relation set backing the entities and edges named in
// the data model: one relation per node kind plus one per edge kind, each
// keyed the way the uniqueness invariants require.
const schema = `
:create cg_repository {
	path: String =>
	name: String,
	is_dependency: Bool
}

:create cg_directory {
	path: String =>
	name: String
}

:create cg_file {
	path: String =>
	name: String,
	relative_path: String,
	is_dependency: Bool,
	language: String,
	content_hash: String,
	size: Int,
	last_modified: Float,
	last_indexed: Float,
	parser_version: String
}

:create cg_function {
	name: String,
	file_path: String,
	line_number: Int =>
	end_line: Int,
	args: String,
	source_text: String,
	docstring: String,
	cyclomatic_complexity: Int,
	enclosing_function: String,
	enclosing_class: String,
	decorators: String,
	language: String,
	is_static: Bool,
	is_constructor: Bool,
	return_type: String
}

:create cg_class {
	name: String,
	file_path: String,
	line_number: Int =>
	end_line: Int,
	bases: String,
	source_text: String,
	docstring: String,
	kind: String,
	language: String
}

:create cg_variable {
	name: String,
	file_path: String,
	line_number: Int =>
	value: String,
	type: String,
	language: String,
	modifiers: String
}

:create cg_module {
	name: String =>
	aliases: String,
	url: String
}

:create cg_parameter {
	name: String,
	file_path: String,
	function_line_number: Int,
	position: Int =>
	type: String
}

:create cg_macro {
	name: String,
	file_path: String,
	line_number: Int =>
	value: String,
	parameters: String,
	is_function_like: Bool
}

:create cg_rule {
	name: String,
	file_path: String,
	line_number: Int =>
	end_line: Int,
	selector_text: String,
	specificity: Int,
	source_text: String,
	declaration_count: Int,
	context: String
}

:create cg_selector {
	name: String,
	file_path: String,
	line_number: Int =>
	end_line: Int,
	specificity: Int,
	rule_name: String
}

:create cg_property {
	name: String,
	file_path: String,
	line_number: Int =>
	value: String,
	rule_name: String
}

:create cg_media_query {
	name: String,
	file_path: String,
	line_number: Int =>
	end_line: Int,
	at_rule_kind: String
}

:create cg_contains {
	parent_id: String,
	child_id: String
}

:create cg_calls {
	id: String =>
	caller_name: String,
	caller_file: String,
	callee_name: String,
	target_file: String,
	line_number: Int,
	args: String
}

:create cg_inherits {
	id: String =>
	class_name: String,
	class_file: String,
	base_name: String,
	target_file: String,
	line_number: Int
}

:create cg_implements {
	id: String =>
	class_name: String,
	class_file: String,
	interface_name: String,
	target_file: String,
	line_number: Int
}

:create cg_imports {
	id: String =>
	file_path: String,
	module_name: String,
	alias: String,
	line_number: Int,
	is_system: Bool,
	is_wildcard: Bool,
	is_static: Bool
}

:create cg_overridden_by {
	id: String =>
	weaker_rule: String,
	stronger_rule: String,
	file_path: String,
	specificity_diff: Int
}
`

// fullTextIndexes best-effort; absence of support is non-fatal per the
// writer's contract, so callers swallow errors from these statements.
var fullTextIndexes = []string{
	`::fts create cg_function:name_text {
		extractor: name,
		tokenizer: Simple,
	}`,
	`::fts create cg_class:name_text {
		extractor: name,
		tokenizer: Simple,
	}`,
	`::fts create cg_variable:name_text {
		extractor: name,
		tokenizer: Simple,
	}`,
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}

func boolLit(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// edgeID derives a short, deterministic ID for an edge row from its parts,
// the same way the ingestion pipeline derives node/edge IDs: hash the
// natural key, keep the first 16 hex characters.
func edgeID(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}
