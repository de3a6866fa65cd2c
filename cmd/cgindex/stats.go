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

package main

import (
	"encoding/json"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

// statsRelations maps each relation to one column from its key — enough to
// count rows with a simple aggregate scan without needing every column.
var statsRelations = []struct {
	relation string
	keyCol   string
}{
	{"cg_file", "path"},
	{"cg_function", "name"},
	{"cg_class", "name"},
	{"cg_variable", "name"},
	{"cg_module", "name"},
	{"cg_macro", "name"},
	{"cg_rule", "name"},
	{"cg_selector", "name"},
	{"cg_property", "name"},
	{"cg_media_query", "name"},
	{"cg_calls", "id"},
	{"cg_inherits", "id"},
	{"cg_implements", "id"},
	{"cg_imports", "id"},
	{"cg_overridden_by", "id"},
}

func runStats(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Parse(args) //nolint:errcheck

	s := openSession(globals, "")
	defer s.close()

	counts := make(map[string]int64, len(statsRelations))
	for _, r := range statsRelations {
		rows, err := s.store.Query(fmt.Sprintf("?[count(%s)] := *%s{%s}", r.keyCol, r.relation, r.keyCol))
		if err != nil {
			cgerrors.Fatal(err, globals.JSON)
		}
		n, _ := rows.Int(0, 0)
		counts[r.relation] = n
	}

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(counts)
		return
	}
	for _, r := range statsRelations {
		fmt.Printf("%-18s %d\n", r.relation, counts[r.relation])
	}
}
