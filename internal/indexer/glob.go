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

import (
	"path/filepath"
	"strings"
)

// matchesExclude reports whether relPath (slash-separated, relative to the
// repository root) matches any of the exclude patterns. Supports "dir/**"
// (a directory and everything under it, at any depth) and "*.ext" (any file
// with that extension); a pattern without wildcards matches as a literal
// leading or trailing path component, and any other wildcard pattern is
// matched with filepath.Match against the path and each trailing sub-path.
func matchesExclude(relPath string, patterns []string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if matchesOnePattern(relPath, pattern) {
			return true
		}
	}
	return false
}

func matchesOnePattern(path, pattern string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
		parts := strings.Split(path, "/")
		for i := range parts {
			sub := strings.Join(parts[i:], "/")
			if sub == prefix || strings.HasPrefix(sub, prefix+"/") {
				return true
			}
		}
		return false
	}
	if strings.HasPrefix(pattern, "*.") && !strings.Contains(pattern, "/") {
		return strings.HasSuffix(path, pattern[1:])
	}
	if !strings.ContainsAny(pattern, "*?[") {
		return path == pattern || strings.HasSuffix(path, "/"+pattern) || strings.HasPrefix(path, pattern+"/")
	}
	if ok, _ := filepath.Match(pattern, path); ok {
		return true
	}
	parts := strings.Split(path, "/")
	for i := range parts {
		sub := strings.Join(parts[i:], "/")
		if ok, _ := filepath.Match(pattern, sub); ok {
			return true
		}
	}
	return false
}
