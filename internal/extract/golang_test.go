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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgindex/cgindex/internal/ir"
)

func TestGo_FunctionsAndMethods(t *testing.T) {
	file := extractFixture(t, "go/service.go")
	require.Equal(t, ir.LangGo, file.Language)

	newHandler := findFunction(file, "NewHandler")
	require.NotNil(t, newHandler, "functions: %+v", file.Functions)
	assert.Equal(t, "*Handler", newHandler.ReturnType)

	handle := findFunction(file, "Handler.Handle")
	require.NotNil(t, handle, "pointer-receiver methods get Type.Method names")
	require.Len(t, handle.Args, 1)
	assert.Equal(t, "msg", handle.Args[0].Name)
	assert.GreaterOrEqual(t, handle.CyclomaticComplexity, 2)
	assert.Equal(t, "Handler", handle.Context.EnclosingClass)

	count := findFunction(file, "Handler.Count")
	require.NotNil(t, count, "value-receiver methods too")
}

func TestGo_TypesAndFields(t *testing.T) {
	file := extractFixture(t, "go/service.go")

	handler := findClass(file, "Handler")
	require.NotNil(t, handler, "classes: %+v", file.Classes)
	assert.Equal(t, "struct", handler.Kind)

	notifier := findClass(file, "Notifier")
	require.NotNil(t, notifier)
	assert.Equal(t, "interface", notifier.Kind)
}

func TestGo_ImportsWithAlias(t *testing.T) {
	file := extractFixture(t, "go/service.go")

	fmtImp := findImport(file, "fmt")
	require.NotNil(t, fmtImp, "imports: %+v", file.Imports)

	strImp := findImport(file, "strings")
	require.NotNil(t, strImp)
	assert.Equal(t, "stdstrings", strImp.Alias)
}

func TestGo_Calls(t *testing.T) {
	file := extractFixture(t, "go/service.go")

	var sawTrim bool
	for _, c := range file.FunctionCalls {
		if c.FullName == "stdstrings.TrimSpace" {
			sawTrim = true
			assert.Equal(t, "Handler.Handle", c.Context.EnclosingFunction)
		}
	}
	assert.True(t, sawTrim, "calls: %+v", file.FunctionCalls)
}
