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
	"strings"

	"github.com/cgindex/cgindex/internal/cgerrors"
	"github.com/cgindex/cgindex/internal/cozo"
)

// mutationKeywords are CozoScript's write operators; any script containing
// one is rejected up front, giving a clear error instead of the engine's
// generic immutable-mode failure.
var mutationKeywords = []string{":put", ":rm", ":create", ":replace", "::remove", "::rename"}

// Query runs a read-only CozoScript against the graph, rejecting any script
// that contains a mutation operator before it ever reaches the engine's own
// immutable-mode enforcement. This is the one path external read-only
// callers (the CLI's query surface, future MCP-style tools) are allowed to
// use.
func (s *Store) Query(script string) (cozo.Rows, error) {
	lower := strings.ToLower(script)
	for _, kw := range mutationKeywords {
		if strings.Contains(lower, kw) {
			return cozo.Rows{}, cgerrors.New(cgerrors.ConfigError,
				"query rejected", "script contains a mutation operator ("+kw+")",
				"use a read-only query: no :put, :rm, :create, or :replace", nil)
		}
	}
	rows, err := s.db.Query(script, nil)
	if err != nil {
		return cozo.Rows{}, cgerrors.New(cgerrors.BackendUnavailable, "query failed", err.Error(), "", err)
	}
	return rows, nil
}
