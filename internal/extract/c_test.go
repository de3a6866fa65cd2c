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

func TestC_Functions(t *testing.T) {
	file := extractFixture(t, "c/main.c")
	require.Equal(t, ir.LangC, file.Language)

	clamp := findFunction(file, "clamp")
	require.NotNil(t, clamp, "functions: %+v", file.Functions)
	assert.Equal(t, 22, clamp.LineNumber)
	assert.True(t, clamp.IsStatic)
	require.Len(t, clamp.Args, 1)
	assert.Equal(t, "v", clamp.Args[0].Name)
	assert.Equal(t, "int", clamp.Args[0].Type)
	assert.GreaterOrEqual(t, clamp.CyclomaticComplexity, 2)

	main := findFunction(file, "main")
	require.NotNil(t, main)
	assert.Equal(t, 29, main.LineNumber)
	assert.False(t, main.IsStatic)
	require.Len(t, main.Args, 2)
	assert.Equal(t, "argc", main.Args[0].Name)
	assert.Equal(t, "argv", main.Args[1].Name)
}

// <system> and "local" includes are distinguished.
func TestC_IncludeDistinction(t *testing.T) {
	file := extractFixture(t, "c/main.c")

	stdio := findImport(file, "stdio.h")
	require.NotNil(t, stdio, "imports: %+v", file.Imports)
	assert.True(t, stdio.IsSystem)
	assert.Equal(t, 1, stdio.LineNumber)

	util := findImport(file, "util.h")
	require.NotNil(t, util)
	assert.False(t, util.IsSystem)
	assert.Equal(t, 2, util.LineNumber)
}

func TestC_Macros(t *testing.T) {
	file := extractFixture(t, "c/main.c")
	require.Len(t, file.Macros, 2)

	var maxSize, square *ir.Macro
	for i := range file.Macros {
		switch file.Macros[i].Name {
		case "MAX_SIZE":
			maxSize = &file.Macros[i]
		case "SQUARE":
			square = &file.Macros[i]
		}
	}
	require.NotNil(t, maxSize)
	assert.False(t, maxSize.IsFunctionLike)
	assert.Contains(t, maxSize.Value, "128")

	require.NotNil(t, square)
	assert.True(t, square.IsFunctionLike)
	assert.Equal(t, []string{"x"}, square.Parameters)
}

func TestC_Aggregates(t *testing.T) {
	file := extractFixture(t, "c/main.c")

	point := findClass(file, "point")
	require.NotNil(t, point, "classes: %+v", file.Classes)
	assert.Equal(t, "struct", point.Kind)
	assert.Equal(t, 10, point.LineNumber)

	value := findClass(file, "value")
	require.NotNil(t, value)
	assert.Equal(t, "union", value.Kind)

	colorEnum := findClass(file, "color")
	require.NotNil(t, colorEnum)
	assert.Equal(t, "enum", colorEnum.Kind)
}

// Only translation-unit-level declarations land in variables; locals are
// dropped.
func TestC_GlobalsOnly(t *testing.T) {
	file := extractFixture(t, "c/main.c")

	var counter, name *ir.Variable
	for i := range file.Variables {
		switch file.Variables[i].Name {
		case "counter":
			counter = &file.Variables[i]
		case "name":
			name = &file.Variables[i]
		case "local":
			t.Fatal("function-local variable leaked into the globals collection")
		}
	}
	require.NotNil(t, counter, "variables: %+v", file.Variables)
	assert.Contains(t, counter.Modifiers, "static")
	require.NotNil(t, name)
	assert.Contains(t, name.Modifiers, "pointer")
}

func TestC_Calls(t *testing.T) {
	file := extractFixture(t, "c/main.c")

	var sawPrintf, sawClamp bool
	for _, c := range file.FunctionCalls {
		if c.FullName == "printf" && c.Context.EnclosingFunction == "main" {
			sawPrintf = true
		}
		if c.FullName == "clamp" && c.Context.EnclosingFunction == "main" {
			sawClamp = true
		}
	}
	assert.True(t, sawPrintf, "calls: %+v", file.FunctionCalls)
	assert.True(t, sawClamp)
}
