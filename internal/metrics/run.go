package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run subsystem metrics
var (
	// ErrorsTotal tracks total errors encountered during a run
	ErrorsTotal prometheus.Counter

	// FilesScannedTotal tracks files indexed per tree (reference, target)
	FilesScannedTotal *prometheus.CounterVec

	// ScanSkipsTotal tracks unreadable entries skipped per tree
	ScanSkipsTotal *prometheus.CounterVec

	// ScanDuration tracks how long tree scans take
	ScanDuration prometheus.Histogram

	// DuplicatesFoundTotal tracks files matched against the reference tree
	DuplicatesFoundTotal prometheus.Counter

	// FilesDeletedTotal tracks total files deleted
	FilesDeletedTotal prometheus.Counter

	// BytesFreedTotal tracks total bytes freed across all runs
	BytesFreedTotal prometheus.Counter

	// DeleteErrorsTotal tracks per-file deletion failures
	DeleteErrorsTotal prometheus.Counter

	// DirsPrunedTotal tracks empty directories removed after deletion
	DirsPrunedTotal prometheus.Counter

	// DeletedFileSize tracks the size distribution of deleted files
	DeletedFileSize prometheus.Histogram

	// RunDuration tracks how long full runs take
	RunDuration prometheus.Histogram

	// RunLastTimestamp records Unix timestamp of the last run
	RunLastTimestamp prometheus.Gauge

	// RunLastMode tracks the last run mode used (DRY_RUN, COMMIT)
	RunLastMode *prometheus.GaugeVec
)

// initRunMetrics initializes all run subsystem metrics
func initRunMetrics() {
	ErrorsTotal = NewCounter(
		"treesweep_errors_total",
		"Total number of errors encountered by treesweep.",
	)

	FilesScannedTotal = NewCounterVec(
		"treesweep_files_scanned_total",
		"Total number of regular files indexed, per tree.",
		[]string{"tree"},
	)

	ScanSkipsTotal = NewCounterVec(
		"treesweep_scan_skips_total",
		"Total number of entries skipped as unreadable, per tree.",
		[]string{"tree"},
	)

	ScanDuration = NewDurationHistogram(
		"treesweep_scan_duration_seconds",
		"Duration of tree scans in seconds.",
	)

	DuplicatesFoundTotal = NewCounter(
		"treesweep_duplicates_found_total",
		"Total number of target files matched byte-for-byte against the reference tree.",
	)

	FilesDeletedTotal = NewCounter(
		"treesweep_files_deleted_total",
		"Total number of files deleted by treesweep.",
	)

	BytesFreedTotal = NewBytesCounter(
		"treesweep_bytes_freed_total",
		"Total bytes freed by treesweep.",
	)

	DeleteErrorsTotal = NewCounter(
		"treesweep_delete_errors_total",
		"Total number of per-file deletion failures.",
	)

	DirsPrunedTotal = NewCounter(
		"treesweep_dirs_pruned_total",
		"Total number of empty directories pruned after deletion.",
	)

	DeletedFileSize = NewBytesHistogram(
		"treesweep_deleted_file_size_bytes",
		"Size distribution of deleted files in bytes.",
	)

	RunDuration = NewDurationHistogram(
		"treesweep_run_duration_seconds",
		"Duration of full runs in seconds.",
	)

	RunLastTimestamp = NewGauge(
		"treesweep_last_run_timestamp",
		"Timestamp of the last run (Unix epoch seconds).",
	)

	RunLastMode = NewGaugeVec(
		"treesweep_last_run_mode",
		"Last run mode used (1=active).",
		[]string{"mode"},
	)
}

// registerRunMetrics registers all run metrics with Prometheus
func registerRunMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(FilesScannedTotal)
	prometheus.MustRegister(ScanSkipsTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(DuplicatesFoundTotal)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(DeleteErrorsTotal)
	prometheus.MustRegister(DirsPrunedTotal)
	prometheus.MustRegister(DeletedFileSize)
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(RunLastTimestamp)
	prometheus.MustRegister(RunLastMode)
}

// SetRunMode sets the current run mode and updates metrics
// Resets all mode gauges to 0, then sets the active mode to 1
func SetRunMode(mode string) {
	modeMutex.Lock()
	defer modeMutex.Unlock()

	RunLastMode.Reset()
	RunLastMode.WithLabelValues(mode).Set(1)
}

// RecordRun updates the last run timestamp to current time
func RecordRun() {
	RunLastTimestamp.Set(float64(time.Now().Unix()))
}

// RecordTreeScan records the outcome of a single tree scan
func RecordTreeScan(tree string, files, skips int) {
	FilesScannedTotal.WithLabelValues(tree).Add(float64(files))
	ScanSkipsTotal.WithLabelValues(tree).Add(float64(skips))
}
