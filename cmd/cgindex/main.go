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

// Package main implements the cgindex CLI: building and querying a
// multi-language code property graph.
//
// Usage:
//
//	cgindex index                 Full index of the current repository
//	cgindex update                 Incremental index of changed files
//	cgindex watch                  Watch the repository and index on change
//	cgindex delete <path>          Remove a file's subtree from the graph
//	cgindex list                   List indexed files
//	cgindex stats                  Show graph node/edge counts
//	cgindex clean                  Drop and recreate the graph schema
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds flags common to every subcommand.
type GlobalFlags struct {
	JSON       bool
	NoColor    bool
	Verbose    int
	Quiet      bool
	ConfigPath string
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .cgindex.yaml (default: discovered by walking up from cwd)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cgindex - multi-language code property graph indexer

Usage:
  cgindex <command> [options]

Commands:
  index [path]     Full index of a repository (default: current directory)
  reindex [path]   Full index again (same run as index)
  update [path]    Incremental index of changed files only
  watch [path]     Watch the repository and index on every change
  delete <path>... Remove a file's subtree from the graph
  list             List indexed files
  stats            Show node/edge counts
  clean            Drop and recreate the graph schema

Global Options:
  --json          Output in JSON format
  --no-color      Disable color output (respects NO_COLOR)
  -v, --verbose   Increase verbosity
  -q, --quiet     Suppress non-essential output
  -c, --config    Path to .cgindex.yaml
  -V, --version   Show version and exit

For command-specific help: cgindex <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("cgindex version %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	} else if *noColor {
		_ = os.Setenv("NO_COLOR", "1")
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{JSON: *jsonOutput, NoColor: *noColor, Verbose: *verbose, Quiet: *quiet, ConfigPath: *configPath}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command, cmdArgs := args[0], args[1:]
	switch command {
	case "index":
		runIndex(cmdArgs, globals, false)
	case "reindex":
		runIndex(cmdArgs, globals, true)
	case "update":
		runUpdate(cmdArgs, globals)
	case "watch":
		runWatch(cmdArgs, globals)
	case "delete":
		runDelete(cmdArgs, globals)
	case "list":
		runList(cmdArgs, globals)
	case "stats":
		runStats(cmdArgs, globals)
	case "clean":
		runClean(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		cgerrors.Fatal(cgerrors.NewConfigError("unknown command "+command, "", "run cgindex --help for a list of commands", nil), globals.JSON)
	}
}
