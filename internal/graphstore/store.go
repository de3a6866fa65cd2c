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

package graphstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cgindex/cgindex/internal/cgerrors"
	"github.com/cgindex/cgindex/internal/cozo"
	"github.com/cgindex/cgindex/internal/filemeta"
	"github.com/cgindex/cgindex/internal/ir"
	"github.com/cgindex/cgindex/internal/resolve"
)

// Store is the Graph Writer: it owns the backend connection and translates
// IR records and resolved edges into CozoScript.
type Store struct {
	db       *cozo.DB
	repoPath string
}

// Open opens (or creates) the backend database at path and registers repoPath
// as the Repository root. engine is "mem", "sqlite", or "rocksdb".
func Open(engine, path, repoPath string) (*Store, error) {
	db, err := cozo.Open(engine, path, nil)
	if err != nil {
		return nil, cgerrors.NewBackendUnavailable(
			"cannot open graph backend",
			err.Error(),
			"verify the database path is writable and the engine name is correct",
			err,
		)
	}
	return &Store{db: db, repoPath: repoPath}, nil
}

// Close releases the backend connection.
func (s *Store) Close() {
	s.db.Close()
}

// CreateSchema creates every relation and uniqueness constraint the writer
// needs. It is idempotent: re-running it against an already-initialized
// database is a no-op for relations that already exist. Full-text indexes
// are attempted last and their failure is swallowed, since their absence is
// non-fatal.
func (s *Store) CreateSchema() error {
	for _, stmt := range splitStatements(schema) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := s.db.Exec(stmt); err != nil {
			// Re-running against an initialized database is expected.
			errStr := err.Error()
			if strings.Contains(errStr, "already exists") ||
				strings.Contains(errStr, "conflicts with an existing one") {
				continue
			}
			return cgerrors.NewBackendUnavailable(
				"failed to create graph schema",
				err.Error(),
				"check that the backend engine matches the one used to originally create this database",
				err,
			)
		}
	}
	if err := s.db.Exec(fmt.Sprintf("{ ?[path, name, is_dependency] <- [[%s, %s, false]] :put cg_repository {path, name, is_dependency} }",
		quote(s.repoPath), quote(filepath.Base(s.repoPath)))); err != nil {
		return cgerrors.NewBackendUnavailable("failed to upsert repository root", err.Error(), "", err)
	}
	for _, stmt := range fullTextIndexes {
		_ = s.db.Exec(stmt) // absence of FTS support is non-fatal
	}
	return nil
}

// splitStatements breaks the schema const into individual `:create ... }`
// blocks so each can be sent (and fail) independently.
func splitStatements(s string) []string {
	var out []string
	var depth int
	var cur strings.Builder
	for _, r := range s {
		cur.WriteRune(r)
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 && strings.TrimSpace(cur.String()) != "" {
				out = append(out, cur.String())
				cur.Reset()
			}
		}
	}
	return out
}

// directoryChain returns every directory path from the repository root down
// to (but not including) the file itself, in root-to-leaf order.
func directoryChain(repoPath, filePath string) []string {
	rel, err := filepath.Rel(repoPath, filePath)
	if err != nil || rel == "." {
		return nil
	}
	parts := strings.Split(filepath.Dir(rel), string(filepath.Separator))
	var out []string
	cur := repoPath
	for _, p := range parts {
		if p == "." || p == "" {
			continue
		}
		cur = filepath.Join(cur, p)
		out = append(out, cur)
	}
	return out
}

// UpsertFile writes a file's node and every entity it directly contains,
// inside one transactional script. Per the writer's convergence rule, the
// caller must have already deleted this file's previous subtree (see
// DeleteFileSubtree) before calling UpsertFile on a re-extraction.
func (s *Store) UpsertFile(file ir.File, hash string, size int64, modTime time.Time, parserVersion string) error {
	var buf strings.Builder

	writeDirectoryChain(&buf, s.repoPath, file.FilePath)

	rel, _ := filepath.Rel(s.repoPath, file.FilePath)
	fmt.Fprintf(&buf, "{ ?[path, name, relative_path, is_dependency, language, content_hash, size, last_modified, last_indexed, parser_version] <- [[%s, %s, %s, %s, %s, %s, %d, %f, %f, %s]] :put cg_file { path, name, relative_path, is_dependency, language, content_hash, size, last_modified, last_indexed, parser_version } }\n",
		quote(file.FilePath), quote(filepath.Base(file.FilePath)), quote(rel), boolLit(file.IsDependency),
		quote(string(file.Language)), quote(hash), size, float64(modTime.Unix()), float64(time.Now().Unix()), quote(parserVersion))

	parentDir := filepath.Dir(file.FilePath)
	if parentDir == s.repoPath || directoryChain(s.repoPath, file.FilePath) == nil {
		writeContains(&buf, s.repoPath, file.FilePath)
	} else {
		writeContains(&buf, parentDir, file.FilePath)
	}

	for _, fn := range file.Functions {
		writeFunction(&buf, file.FilePath, fn)
	}
	for _, cls := range file.Classes {
		writeClass(&buf, file.FilePath, cls)
	}
	for _, v := range file.Variables {
		writeVariable(&buf, file.FilePath, v)
	}
	for _, m := range file.Macros {
		writeMacro(&buf, file.FilePath, m)
	}
	for _, r := range file.Rules {
		writeRule(&buf, file.FilePath, r)
	}
	for _, sel := range file.Selectors {
		writeSelector(&buf, file.FilePath, sel)
	}
	for _, p := range file.Properties {
		writeProperty(&buf, file.FilePath, p)
	}
	for _, mq := range file.MediaQueries {
		writeMediaQuery(&buf, file.FilePath, mq)
	}
	for _, imp := range file.Imports {
		writeImport(&buf, file.FilePath, imp)
	}

	if err := s.db.Exec(buf.String()); err != nil {
		return cgerrors.NewWriteError(
			fmt.Sprintf("failed to write %s", file.FilePath),
			err.Error(),
			err,
		)
	}
	return nil
}

// FileMetadata returns the stored size/mtime/hash/parser-version for a
// previously-indexed file, or nil if the file has no row yet.
func (s *Store) FileMetadata(filePath string) (*filemeta.Metadata, error) {
	rows, err := s.db.Query(fmt.Sprintf(
		"?[size, last_modified, content_hash, parser_version] := *cg_file{path: %s, size, last_modified, content_hash, parser_version}",
		quote(filePath)), nil)
	if err != nil {
		return nil, cgerrors.NewWriteError(fmt.Sprintf("failed to read metadata for %s", filePath), err.Error(), err)
	}
	if rows.Empty() {
		return nil, nil
	}
	size, _ := rows.Int(0, 0)
	modUnix, _ := rows.Float(0, 1)
	hash, _ := rows.Str(0, 2)
	parserVersion, _ := rows.Str(0, 3)
	return &filemeta.Metadata{
		Size:          size,
		ModTime:       time.Unix(int64(modUnix), 0),
		Hash:          hash,
		ParserVersion: parserVersion,
	}, nil
}

func writeDirectoryChain(buf *strings.Builder, repoPath, filePath string) {
	chain := directoryChain(repoPath, filePath)
	prev := repoPath
	for _, dir := range chain {
		fmt.Fprintf(buf, "{ ?[path, name] <- [[%s, %s]] :put cg_directory { path, name } }\n",
			quote(dir), quote(filepath.Base(dir)))
		writeContains(buf, prev, dir)
		prev = dir
	}
}

func writeContains(buf *strings.Builder, parentID, childID string) {
	fmt.Fprintf(buf, "{ ?[parent_id, child_id] <- [[%s, %s]] :put cg_contains { parent_id, child_id } }\n",
		quote(parentID), quote(childID))
}

func writeFunction(buf *strings.Builder, filePath string, fn ir.Function) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, end_line, args, source_text, docstring, cyclomatic_complexity, enclosing_function, enclosing_class, decorators, language, is_static, is_constructor, return_type] <- [[%s, %s, %d, %d, %s, %s, %s, %d, %s, %s, %s, %s, %s, %s, %s]] :put cg_function { name, file_path, line_number, end_line, args, source_text, docstring, cyclomatic_complexity, enclosing_function, enclosing_class, decorators, language, is_static, is_constructor, return_type } }\n",
		quote(fn.Name), quote(filePath), fn.LineNumber, fn.EndLine, quote(paramsText(fn.Args)), quote(fn.SourceText),
		quote(fn.Docstring), fn.CyclomaticComplexity, quote(fn.Context.EnclosingFunction), quote(fn.Context.EnclosingClass),
		quote(strings.Join(fn.Decorators, ",")), quote(string(fn.Language)), boolLit(fn.IsStatic), boolLit(fn.IsConstructor), quote(fn.ReturnType))

	nodeID := fmt.Sprintf("%s:%s:%d", filePath, fn.Name, fn.LineNumber)
	writeContains(buf, enclosingID(filePath, fn.Context), nodeID)

	for i, p := range fn.Args {
		fmt.Fprintf(buf, "{ ?[name, file_path, function_line_number, position, type] <- [[%s, %s, %d, %d, %s]] :put cg_parameter { name, file_path, function_line_number, position, type } }\n",
			quote(p.Name), quote(filePath), fn.LineNumber, i, quote(p.Type))
	}
}

// enclosingID resolves the CONTAINS parent of a function: its enclosing
// class if tagged, otherwise the file itself (top-level functions CONTAIN
// directly from File, nested functions CONTAIN from the enclosing function
// by name+line when known).
func enclosingID(filePath string, ctx ir.Context) string {
	if ctx.EnclosingClass != "" {
		return fmt.Sprintf("%s:%s", filePath, ctx.EnclosingClass)
	}
	if ctx.EnclosingFunction != "" && ctx.EnclosingLine > 0 {
		return fmt.Sprintf("%s:%s:%d", filePath, ctx.EnclosingFunction, ctx.EnclosingLine)
	}
	return filePath
}

func paramsText(params []ir.Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		if p.Type != "" {
			parts[i] = p.Name + ":" + p.Type
		} else {
			parts[i] = p.Name
		}
	}
	return strings.Join(parts, ",")
}

func writeClass(buf *strings.Builder, filePath string, cls ir.Class) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, end_line, bases, source_text, docstring, kind, language] <- [[%s, %s, %d, %d, %s, %s, %s, %s, %s]] :put cg_class { name, file_path, line_number, end_line, bases, source_text, docstring, kind, language } }\n",
		quote(cls.Name), quote(filePath), cls.LineNumber, cls.EndLine, quote(strings.Join(cls.Bases, ",")),
		quote(cls.SourceText), quote(cls.Docstring), quote(cls.Kind), quote(string(cls.Language)))
	writeContains(buf, filePath, fmt.Sprintf("%s:%s", filePath, cls.Name))
}

func writeVariable(buf *strings.Builder, filePath string, v ir.Variable) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, value, type, language, modifiers] <- [[%s, %s, %d, %s, %s, %s, %s]] :put cg_variable { name, file_path, line_number, value, type, language, modifiers } }\n",
		quote(v.Name), quote(filePath), v.LineNumber, quote(v.Value), quote(v.Type), quote(string(v.Language)), quote(strings.Join(v.Modifiers, ",")))
	writeContains(buf, filePath, fmt.Sprintf("%s:%s:%d", filePath, v.Name, v.LineNumber))
}

func writeMacro(buf *strings.Builder, filePath string, m ir.Macro) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, value, parameters, is_function_like] <- [[%s, %s, %d, %s, %s, %s]] :put cg_macro { name, file_path, line_number, value, parameters, is_function_like } }\n",
		quote(m.Name), quote(filePath), m.LineNumber, quote(m.Value), quote(strings.Join(m.Parameters, ",")), boolLit(m.IsFunctionLike))
	writeContains(buf, filePath, fmt.Sprintf("%s:%s:%d", filePath, m.Name, m.LineNumber))
}

func writeRule(buf *strings.Builder, filePath string, r ir.Rule) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, end_line, selector_text, specificity, source_text, declaration_count, context] <- [[%s, %s, %d, %d, %s, %d, %s, %d, %s]] :put cg_rule { name, file_path, line_number, end_line, selector_text, specificity, source_text, declaration_count, context } }\n",
		quote(r.Name), quote(filePath), r.LineNumber, r.EndLine, quote(r.SelectorText), r.Specificity, quote(r.SourceText), r.DeclarationCount, quote(r.Context))
	parent := filePath
	if r.Context != "" {
		parent = fmt.Sprintf("%s:mq:%s", filePath, r.Context)
	}
	writeContains(buf, parent, fmt.Sprintf("%s:%s:%d", filePath, r.Name, r.LineNumber))
}

func writeSelector(buf *strings.Builder, filePath string, sel ir.Selector) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, end_line, specificity, rule_name] <- [[%s, %s, %d, %d, %d, %s]] :put cg_selector { name, file_path, line_number, end_line, specificity, rule_name } }\n",
		quote(sel.Name), quote(filePath), sel.LineNumber, sel.EndLine, sel.Specificity, quote(sel.RuleName))
	writeContains(buf, fmt.Sprintf("%s:%s", filePath, sel.RuleName), fmt.Sprintf("%s:%s:%d", filePath, sel.Name, sel.LineNumber))
}

func writeProperty(buf *strings.Builder, filePath string, p ir.Property) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, value, rule_name] <- [[%s, %s, %d, %s, %s]] :put cg_property { name, file_path, line_number, value, rule_name } }\n",
		quote(p.Name), quote(filePath), p.LineNumber, quote(p.Value), quote(p.RuleName))
	writeContains(buf, fmt.Sprintf("%s:%s", filePath, p.RuleName), fmt.Sprintf("%s:%s:%d", filePath, p.Name, p.LineNumber))
}

func writeMediaQuery(buf *strings.Builder, filePath string, mq ir.MediaQuery) {
	fmt.Fprintf(buf, "{ ?[name, file_path, line_number, end_line, at_rule_kind] <- [[%s, %s, %d, %d, %s]] :put cg_media_query { name, file_path, line_number, end_line, at_rule_kind } }\n",
		quote(mq.Name), quote(filePath), mq.LineNumber, mq.EndLine, quote(mq.AtRuleKind))
	writeContains(buf, filePath, fmt.Sprintf("%s:mq:%s", filePath, mq.Name))
}

func writeImport(buf *strings.Builder, filePath string, imp ir.Import) {
	id := edgeID("imp", filePath, imp.Name, fmt.Sprintf("%d", imp.LineNumber))
	fmt.Fprintf(buf, "{ ?[id, file_path, module_name, alias, line_number, is_system, is_wildcard, is_static] <- [[%s, %s, %s, %s, %d, %s, %s, %s]] :put cg_imports { id, file_path, module_name, alias, line_number, is_system, is_wildcard, is_static } }\n",
		quote(id), quote(filePath), quote(imp.Name), quote(imp.Alias), imp.LineNumber, boolLit(imp.IsSystem), boolLit(imp.IsWildcard), boolLit(imp.IsStatic))
	fmt.Fprintf(buf, "{ ?[name, aliases, url] <- [[%s, %s, %s]] :put cg_module { name, aliases, url } }\n",
		quote(imp.Name), quote(imp.Alias), quote(""))
}

// WriteCrossFileEdges performs the second pass: CALLS, INHERITS, and
// IMPLEMENTS edges, written only once every file in the batch has had its
// own nodes committed so the endpoints are guaranteed to exist.
func (s *Store) WriteCrossFileEdges(calls []resolve.CallEdge, inherits []resolve.InheritsEdge, impls []resolve.ImplementsEdge) error {
	var buf strings.Builder
	for _, c := range calls {
		id := edgeID("call", c.CallerFile, c.CallerName, c.Callee, fmt.Sprintf("%d", c.LineNumber))
		fmt.Fprintf(&buf, "{ ?[id, caller_name, caller_file, callee_name, target_file, line_number, args] <- [[%s, %s, %s, %s, %s, %d, %s]] :put cg_calls { id, caller_name, caller_file, callee_name, target_file, line_number, args } }\n",
			quote(id), quote(c.CallerName), quote(c.CallerFile), quote(c.Callee), quote(c.TargetFile), c.LineNumber, quote(strings.Join(c.Args, ",")))
	}
	for _, inh := range inherits {
		id := edgeID("inh", inh.ClassFile, inh.ClassName, inh.BaseName)
		fmt.Fprintf(&buf, "{ ?[id, class_name, class_file, base_name, target_file, line_number] <- [[%s, %s, %s, %s, %s, %d]] :put cg_inherits { id, class_name, class_file, base_name, target_file, line_number } }\n",
			quote(id), quote(inh.ClassName), quote(inh.ClassFile), quote(inh.BaseName), quote(inh.TargetFile), inh.LineNumber)
	}
	for _, impl := range impls {
		id := edgeID("impl", impl.ClassFile, impl.ClassName, impl.InterfaceName)
		fmt.Fprintf(&buf, "{ ?[id, class_name, class_file, interface_name, target_file, line_number] <- [[%s, %s, %s, %s, %s, %d]] :put cg_implements { id, class_name, class_file, interface_name, target_file, line_number } }\n",
			quote(id), quote(impl.ClassName), quote(impl.ClassFile), quote(impl.InterfaceName), quote(impl.TargetFile), impl.LineNumber)
	}
	if buf.Len() == 0 {
		return nil
	}
	if err := s.db.Exec(buf.String()); err != nil {
		return cgerrors.NewWriteError("failed to write cross-file edges", err.Error(), err)
	}
	return nil
}

// DeleteFileSubtree removes a File node and everything it CONTAINS,
// transitively, then prunes any directory on its path that becomes empty —
// walking upward but never deleting the Repository node. Edges are removed in
// both directions: edges whose source lives in this file and edges from other
// files that target it, so no CALLS/INHERITS edge is left dangling.
func (s *Store) DeleteFileSubtree(filePath string) error {
	fp := quote(filePath)
	// Entity node IDs are "<file_path>:<name>[:<line>]", so every CONTAINS
	// row inside this file's subtree has this prefix on its parent.
	prefix := quote(filePath + ":")
	script := fmt.Sprintf(`
{ ?[name, file_path, line_number] := *cg_function{name, file_path, line_number}, file_path = %[1]s :rm cg_function { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_class{name, file_path, line_number}, file_path = %[1]s :rm cg_class { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_variable{name, file_path, line_number}, file_path = %[1]s :rm cg_variable { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_macro{name, file_path, line_number}, file_path = %[1]s :rm cg_macro { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_rule{name, file_path, line_number}, file_path = %[1]s :rm cg_rule { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_selector{name, file_path, line_number}, file_path = %[1]s :rm cg_selector { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_property{name, file_path, line_number}, file_path = %[1]s :rm cg_property { name, file_path, line_number } }
{ ?[name, file_path, line_number] := *cg_media_query{name, file_path, line_number}, file_path = %[1]s :rm cg_media_query { name, file_path, line_number } }
{ ?[name, file_path, function_line_number, position] := *cg_parameter{name, file_path, function_line_number, position}, file_path = %[1]s :rm cg_parameter { name, file_path, function_line_number, position } }
{ ?[id] := *cg_imports{id, file_path}, file_path = %[1]s :rm cg_imports { id } }
{ ?[id] := *cg_calls{id, caller_file}, caller_file = %[1]s :rm cg_calls { id } }
{ ?[id] := *cg_calls{id, target_file}, target_file = %[1]s :rm cg_calls { id } }
{ ?[id] := *cg_inherits{id, class_file}, class_file = %[1]s :rm cg_inherits { id } }
{ ?[id] := *cg_inherits{id, target_file}, target_file = %[1]s :rm cg_inherits { id } }
{ ?[id] := *cg_implements{id, class_file}, class_file = %[1]s :rm cg_implements { id } }
{ ?[id] := *cg_implements{id, target_file}, target_file = %[1]s :rm cg_implements { id } }
{ ?[id] := *cg_overridden_by{id, file_path}, file_path = %[1]s :rm cg_overridden_by { id } }
{ ?[parent_id, child_id] := *cg_contains{parent_id, child_id}, parent_id = %[1]s :rm cg_contains { parent_id, child_id } }
{ ?[parent_id, child_id] := *cg_contains{parent_id, child_id}, starts_with(parent_id, %[2]s) :rm cg_contains { parent_id, child_id } }
{ ?[parent_id, child_id] := *cg_contains{parent_id, child_id}, child_id = %[1]s :rm cg_contains { parent_id, child_id } }
{ ?[path] := *cg_file{path}, path = %[1]s :rm cg_file { path } }
`, fp, prefix)

	if err := s.db.Exec(script); err != nil {
		return cgerrors.NewWriteError(fmt.Sprintf("failed to delete subtree for %s", filePath), err.Error(), err)
	}
	return s.pruneEmptyDirectories(filepath.Dir(filePath))
}

// allRelations names every relation the schema creates, in a stable order,
// for DropAll and for row-count reporting.
var allRelations = []string{
	"cg_repository", "cg_directory", "cg_file",
	"cg_function", "cg_class", "cg_variable", "cg_module", "cg_parameter",
	"cg_macro", "cg_rule", "cg_selector", "cg_property", "cg_media_query",
	"cg_contains", "cg_calls", "cg_inherits", "cg_implements", "cg_imports",
	"cg_overridden_by",
}

// DropAll removes every relation the schema created, then re-creates an
// empty schema. Relations that were never created (older databases, partial
// schemas) are skipped silently.
func (s *Store) DropAll() error {
	for _, rel := range allRelations {
		_ = s.db.Exec("::remove " + rel)
	}
	return s.CreateSchema()
}

// pruneEmptyDirectories walks upward from dir, deleting any Directory node
// that no longer CONTAINS anything, stopping at the repository root.
func (s *Store) pruneEmptyDirectories(dir string) error {
	for dir != s.repoPath && dir != "." && dir != string(filepath.Separator) {
		rows, err := s.db.Query(fmt.Sprintf("?[child_id] := *cg_contains{parent_id: %s, child_id}", quote(dir)), nil)
		if err != nil {
			return cgerrors.NewWriteError("failed to check directory occupancy", err.Error(), err)
		}
		if !rows.Empty() {
			return nil
		}
		if err := s.db.Exec(fmt.Sprintf("{ ?[path] <- [[%s]] :rm cg_directory { path } }\n{ ?[parent_id, child_id] := *cg_contains{parent_id, child_id}, child_id = %s :rm cg_contains { parent_id, child_id } }",
			quote(dir), quote(dir))); err != nil {
			return cgerrors.NewWriteError("failed to prune empty directory", err.Error(), err)
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
