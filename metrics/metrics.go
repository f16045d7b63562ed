// Package metrics instruments the File API Engine and Mount Controller
// with Prometheus counters and gauges. This is ambient observability, not
// part of the on-disk format or any distilled-spec invariant — grounded on
// the way gcsfuse wires contrib.go.opencensus.io/prometheus exporters
// around its filesystem operations, scaled down to plain
// client_golang counters/gauges for a single-mount library.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups the metrics for one mounted Filesystem. Callers
// register it with their own prometheus.Registerer (or leave it
// unregistered, in which case it is still safe to use — updates are
// cheap no-ops as far as any consumer is concerned since nothing scrapes
// it).
type Collectors struct {
	Reads          prometheus.Counter
	Writes         prometheus.Counter
	BytesRead      prometheus.Counter
	BytesWritten   prometheus.Counter
	Allocations    prometheus.Counter
	Frees          prometheus.Counter
	OutOfSpace     prometheus.Counter
	OutOfInodes    prometheus.Counter
	FreeBlocks     prometheus.Gauge
	FreeInodes     prometheus.Gauge
	OpenFileHandle prometheus.Gauge
}

// New constructs a Collectors with a given label (e.g. the superblock's
// FormatID) distinguishing this mount in a process that might have
// several images open at once.
func New(formatID string) *Collectors {
	labels := prometheus.Labels{"format_id": formatID}
	mk := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sfs",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	mkGauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "sfs",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}
	return &Collectors{
		Reads:          mk("reads_total", "Number of fread calls."),
		Writes:         mk("writes_total", "Number of fwrite calls."),
		BytesRead:      mk("bytes_read_total", "Bytes delivered by fread."),
		BytesWritten:   mk("bytes_written_total", "Bytes accepted by fwrite."),
		Allocations:    mk("block_allocations_total", "Blocks allocated from the free bitmap."),
		Frees:          mk("block_frees_total", "Blocks returned to the free bitmap."),
		OutOfSpace:     mk("out_of_space_total", "Allocation attempts that failed with OutOfSpace."),
		OutOfInodes:    mk("out_of_inodes_total", "fopen calls that failed with OutOfInodes."),
		FreeBlocks:     mkGauge("free_blocks", "Free blocks remaining in the bitmap."),
		FreeInodes:     mkGauge("free_inodes", "Free inode table slots remaining."),
		OpenFileHandle: mkGauge("open_file_handles", "Live file descriptors."),
	}
}

// Collect registers every metric in c with reg. Errors (e.g. duplicate
// registration) are returned rather than panicking, since a caller might
// legitimately mount several images against one registry with distinct
// format IDs.
func (c *Collectors) Collect(reg prometheus.Registerer) error {
	for _, m := range []prometheus.Collector{
		c.Reads, c.Writes, c.BytesRead, c.BytesWritten,
		c.Allocations, c.Frees, c.OutOfSpace, c.OutOfInodes,
		c.FreeBlocks, c.FreeInodes, c.OpenFileHandle,
	} {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}
