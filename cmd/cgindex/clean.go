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
	"bufio"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

// runClean drops every graph relation and re-creates an empty schema.
// Destructive, so it asks for confirmation unless --force is given.
func runClean(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	force := fs.BoolP("force", "f", false, "Skip the confirmation prompt")
	fs.Parse(args) //nolint:errcheck

	if !*force {
		fmt.Print("This removes the entire graph for this repository. Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Println("aborted")
			return
		}
	}

	s := openSession(globals, "")
	defer s.close()

	if err := s.store.DropAll(); err != nil {
		cgerrors.Fatal(err, globals.JSON)
	}
	if !globals.Quiet {
		fmt.Println("graph cleaned")
	}
}
