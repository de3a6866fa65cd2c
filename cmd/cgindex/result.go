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

	"github.com/cgindex/cgindex/internal/indexer"
)

func printIndexResult(result indexer.Result, globals GlobalFlags) {
	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}
	if globals.Quiet {
		return
	}
	fmt.Printf("Indexed %d files (%d skipped, %d failed, %d deleted) in %s\n",
		result.FilesIndexed, result.FilesSkipped, result.FilesFailed, result.FilesDeleted, result.Duration.Round(1e6))
	fmt.Printf("Wrote %d nodes, %d edges\n", result.NodesWritten, result.EdgesWritten)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
}
