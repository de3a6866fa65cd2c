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

package indexer

import "testing"

func TestMatchesExclude(t *testing.T) {
	patterns := []string{".git/**", "node_modules/**", "*.min.js", "vendor/**"}

	tests := []struct {
		path string
		want bool
	}{
		{".git/config", true},
		{".git", true},
		{"node_modules/react/index.js", true},
		{"src/node_modules/x/y.js", true}, // nested node_modules at any depth
		{"app.min.js", true},
		{"static/app.min.js", true},
		{"vendor/lib/a.go", true},
		{"src/main.py", false},
		{"gitlog.py", false},          // no accidental prefix match on ".git"
		{"minify.js", false},          // *.min.js must match the suffix exactly
		{"my-vendor/a.go", false},     // "vendor" must be a whole path component
	}
	for _, tt := range tests {
		if got := matchesExclude(tt.path, patterns); got != tt.want {
			t.Errorf("matchesExclude(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMatchesExclude_LiteralComponent(t *testing.T) {
	if !matchesExclude("docs/generated", []string{"generated"}) {
		t.Error("literal component should match anywhere on the path")
	}
	if matchesExclude("docs/generated_api.md", []string{"generated"}) {
		t.Error("literal component must not match partial names")
	}
}
