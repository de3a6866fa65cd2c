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

func TestJava_Types(t *testing.T) {
	file := extractFixture(t, "java/Dog.java")
	require.Equal(t, ir.LangJava, file.Language)

	dog := findClass(file, "Dog")
	require.NotNil(t, dog, "classes: %+v", file.Classes)
	assert.Equal(t, "class", dog.Kind)
	assert.Equal(t, 6, dog.LineNumber)
	assert.Equal(t, []string{"Animal"}, dog.Bases)

	collar := findClass(file, "Dog.Collar")
	require.NotNil(t, collar, "nested classes use dotted full names")
	assert.Equal(t, 21, collar.LineNumber)

	walker := findClass(file, "Walker")
	require.NotNil(t, walker)
	assert.Equal(t, "interface", walker.Kind)
}

func TestJava_MethodsAndConstructor(t *testing.T) {
	file := extractFixture(t, "java/Dog.java")

	ctor := findFunction(file, "Dog.Dog")
	require.NotNil(t, ctor, "functions: %+v", file.Functions)
	assert.True(t, ctor.IsConstructor)
	assert.Equal(t, 9, ctor.LineNumber)
	require.Len(t, ctor.Args, 1)
	assert.Equal(t, "age", ctor.Args[0].Name)
	assert.Equal(t, "int", ctor.Args[0].Type)

	run := findFunction(file, "Dog.run")
	require.NotNil(t, run)
	assert.False(t, run.IsConstructor)
	assert.False(t, run.IsStatic)
	assert.Equal(t, "Dog", run.Context.EnclosingClass)
	assert.Equal(t, 6, run.Context.EnclosingLine)

	bark := findFunction(file, "Dog.bark")
	require.NotNil(t, bark)
	assert.True(t, bark.IsStatic)

	walk := findFunction(file, "Walker.walk")
	require.NotNil(t, walk, "interface method signatures are captured")
	assert.Equal(t, "Walker", walk.Context.EnclosingClass)
}

func TestJava_Imports(t *testing.T) {
	file := extractFixture(t, "java/Dog.java")

	list := findImport(file, "java.util.List")
	require.NotNil(t, list, "imports: %+v", file.Imports)
	assert.False(t, list.IsStatic)
	assert.False(t, list.IsWildcard)

	math := findImport(file, "java.lang.Math")
	require.NotNil(t, math)
	assert.True(t, math.IsStatic)
	assert.True(t, math.IsWildcard)
}

// extends yields INHERITS; implements yields one IMPLEMENTS per interface.
func TestJava_InheritanceAndImplements(t *testing.T) {
	file := extractFixture(t, "java/Dog.java")

	require.Len(t, file.Inheritance, 1)
	assert.Equal(t, "Dog", file.Inheritance[0].ClassName)
	assert.Equal(t, "Animal", file.Inheritance[0].BaseName)

	require.Len(t, file.Implementations, 2)
	names := []string{file.Implementations[0].InterfaceName, file.Implementations[1].InterfaceName}
	assert.ElementsMatch(t, []string{"Runnable", "Comparable"}, names)
	for _, impl := range file.Implementations {
		assert.Equal(t, "Dog", impl.ClassName)
	}
}

func TestJava_Calls(t *testing.T) {
	file := extractFixture(t, "java/Dog.java")

	var bark, println *ir.Call
	for i := range file.FunctionCalls {
		switch file.FunctionCalls[i].FullName {
		case "bark":
			bark = &file.FunctionCalls[i]
		case "System.out.println":
			println = &file.FunctionCalls[i]
		}
	}
	require.NotNil(t, bark, "calls: %+v", file.FunctionCalls)
	assert.Equal(t, "run", bark.Context.EnclosingFunction)
	assert.Equal(t, "Dog", bark.Context.EnclosingClass)

	require.NotNil(t, println)
	assert.Equal(t, "System.out", println.ReceiverType)
}
