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

func runList(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args) //nolint:errcheck

	s := openSession(globals, "")
	defer s.close()

	rows, err := s.store.Query("?[relative_path, language, size] := *cg_file{relative_path, language, size}")
	if err != nil {
		cgerrors.Fatal(err, globals.JSON)
	}

	if globals.JSON {
		out := make([]map[string]any, 0, len(rows.Rows))
		for _, r := range rows.Rows {
			out = append(out, map[string]any{"path": r[0], "language": r[1], "size": r[2]})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	for _, r := range rows.Rows {
		fmt.Printf("%-60s %-12s %v\n", r[0], r[1], r[2])
	}
}
