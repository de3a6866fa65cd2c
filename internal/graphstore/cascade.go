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
	"strings"

	"github.com/cgindex/cgindex/internal/cgerrors"
	"github.com/cgindex/cgindex/internal/ir"
)

// WriteCascade computes and writes CSS OVERRIDDEN_BY edges for one file.
// Within a file, when two rules share a selector, the one with both
// greater specificity and a greater line number overrides the other. This
// runs after the cross-file pass since it only needs whole-file knowledge,
// but is kept separate so non-CSS files never pay for it.
func (s *Store) WriteCascade(file ir.File) error {
	if len(file.Rules) < 2 {
		return nil
	}

	selectorsOf := make(map[string][]string, len(file.Rules))
	for _, sel := range file.Selectors {
		selectorsOf[sel.RuleName] = append(selectorsOf[sel.RuleName], sel.Name)
	}

	var buf strings.Builder
	for i, weaker := range file.Rules {
		for j, stronger := range file.Rules {
			if i == j {
				continue
			}
			if stronger.Specificity <= weaker.Specificity {
				continue
			}
			if stronger.LineNumber <= weaker.LineNumber {
				continue
			}
			if !shareSelector(selectorsOf[weaker.Name], selectorsOf[stronger.Name]) {
				continue
			}
			diff := stronger.Specificity - weaker.Specificity
			id := edgeID("ovr", file.FilePath, weaker.Name, fmt.Sprintf("%d", weaker.LineNumber), stronger.Name, fmt.Sprintf("%d", stronger.LineNumber))
			fmt.Fprintf(&buf, "{ ?[id, weaker_rule, stronger_rule, file_path, specificity_diff] <- [[%s, %s, %s, %s, %d]] :put cg_overridden_by { id, weaker_rule, stronger_rule, file_path, specificity_diff } }\n",
				quote(id), quote(weaker.Name), quote(stronger.Name), quote(file.FilePath), diff)
		}
	}
	if buf.Len() == 0 {
		return nil
	}
	if err := s.db.Exec(buf.String()); err != nil {
		return cgerrors.NewWriteError(fmt.Sprintf("failed to write cascade edges for %s", file.FilePath), err.Error(), err)
	}
	return nil
}

func shareSelector(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true // whole-sheet rules (no captured selector text) always compare
	}
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
