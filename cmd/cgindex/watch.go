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
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/cgindex/cgindex/internal/cgerrors"
)

// runWatch runs a full index once, then subscribes to filesystem events and
// indexes incrementally until interrupted. With --metrics-addr it also
// serves Prometheus metrics for the long-running process.
func runWatch(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	skipInitial := fs.Bool("skip-initial-index", false, "Skip the full index before watching")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	fs.Parse(args) //nolint:errcheck

	s := openSession(globals, fs.Arg(0))
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				s.logger.Error("watch.metrics_server_failed", "addr", *metricsAddr, "err", err)
			}
		}()
	}

	if !*skipInitial {
		if _, err := s.indexer.FullIndex(ctx, s.repoPath, nil); err != nil {
			cgerrors.Fatal(err, globals.JSON)
		}
	}

	w, err := s.indexer.Watch(ctx, s.repoPath, s.grammars)
	if err != nil {
		cgerrors.Fatal(cgerrors.NewWatcherError("failed to start watcher", err), globals.JSON)
	}

	if !globals.Quiet {
		fmt.Printf("watching %s (ctrl-c to stop)\n", s.repoPath)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	w.Stop()
	if !globals.Quiet {
		fmt.Println("watcher stopped")
	}
}
