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

// Package metrics exposes Prometheus counters and histograms for the
// indexing pipeline: files processed, nodes/edges written, resolution
// outcomes, and stage durations.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	once sync.Once

	filesIndexed  prometheus.Counter
	filesSkipped  prometheus.Counter
	filesFailed   prometheus.Counter
	filesDeleted  prometheus.Counter

	nodesWritten prometheus.Counter
	edgesWritten prometheus.Counter

	callsResolved   prometheus.Counter
	callsUnresolved prometheus.Counter

	watchEventsCreate prometheus.Counter
	watchEventsModify prometheus.Counter
	watchEventsDelete prometheus.Counter

	parseDuration   prometheus.Histogram
	resolveDuration prometheus.Histogram
	writeDuration   prometheus.Histogram
}

var m metrics

func (mm *metrics) init() {
	mm.once.Do(func() {
		mm.filesIndexed = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_files_indexed_total", Help: "Files successfully parsed and written to the graph"})
		mm.filesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_files_skipped_total", Help: "Files skipped as unchanged"})
		mm.filesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_files_failed_total", Help: "Files that failed to parse"})
		mm.filesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_files_deleted_total", Help: "File subtrees removed from the graph"})

		mm.nodesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_nodes_written_total", Help: "Graph nodes written"})
		mm.edgesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_edges_written_total", Help: "Graph edges written"})

		mm.callsResolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_calls_resolved_total", Help: "Call-site edges resolved to a definition"})
		mm.callsUnresolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_calls_unresolved_total", Help: "Call-site edges left dangling"})

		mm.watchEventsCreate = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_watch_events_create_total", Help: "Watcher create events handled"})
		mm.watchEventsModify = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_watch_events_modify_total", Help: "Watcher modify events handled"})
		mm.watchEventsDelete = prometheus.NewCounter(prometheus.CounterOpts{Name: "cgindex_watch_events_delete_total", Help: "Watcher delete events handled"})

		buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
		mm.parseDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cgindex_parse_seconds", Help: "Per-file parse duration", Buckets: buckets})
		mm.resolveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cgindex_resolve_seconds", Help: "Cross-file resolution duration", Buckets: buckets})
		mm.writeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cgindex_write_seconds", Help: "Graph write duration", Buckets: buckets})

		prometheus.MustRegister(
			mm.filesIndexed, mm.filesSkipped, mm.filesFailed, mm.filesDeleted,
			mm.nodesWritten, mm.edgesWritten,
			mm.callsResolved, mm.callsUnresolved,
			mm.watchEventsCreate, mm.watchEventsModify, mm.watchEventsDelete,
			mm.parseDuration, mm.resolveDuration, mm.writeDuration,
		)
	})
}

func FileIndexed()  { m.init(); m.filesIndexed.Inc() }
func FileSkipped()  { m.init(); m.filesSkipped.Inc() }
func FileFailed()   { m.init(); m.filesFailed.Inc() }
func FileDeleted()  { m.init(); m.filesDeleted.Inc() }

func NodesWritten(n int) { m.init(); m.nodesWritten.Add(float64(n)) }
func EdgesWritten(n int) { m.init(); m.edgesWritten.Add(float64(n)) }

func CallResolved()   { m.init(); m.callsResolved.Inc() }
func CallUnresolved() { m.init(); m.callsUnresolved.Inc() }

func WatchEventCreate() { m.init(); m.watchEventsCreate.Inc() }
func WatchEventModify() { m.init(); m.watchEventsModify.Inc() }
func WatchEventDelete() { m.init(); m.watchEventsDelete.Inc() }

func ObserveParse(seconds float64)   { m.init(); m.parseDuration.Observe(seconds) }
func ObserveResolve(seconds float64) { m.init(); m.resolveDuration.Observe(seconds) }
func ObserveWrite(seconds float64)   { m.init(); m.writeDuration.Observe(seconds) }
