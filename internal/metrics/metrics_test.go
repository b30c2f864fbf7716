package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	// Call Init multiple times - should be idempotent via sync.Once
	Init()
	Init()
	Init()

	// Verify metrics are non-nil (successfully created)
	if ErrorsTotal == nil {
		t.Error("ErrorsTotal should be initialized")
	}
	if FilesScannedTotal == nil {
		t.Error("FilesScannedTotal should be initialized")
	}
	if ScanSkipsTotal == nil {
		t.Error("ScanSkipsTotal should be initialized")
	}
	if ScanDuration == nil {
		t.Error("ScanDuration should be initialized")
	}
	if DuplicatesFoundTotal == nil {
		t.Error("DuplicatesFoundTotal should be initialized")
	}
	if FilesDeletedTotal == nil {
		t.Error("FilesDeletedTotal should be initialized")
	}
	if BytesFreedTotal == nil {
		t.Error("BytesFreedTotal should be initialized")
	}
	if DeleteErrorsTotal == nil {
		t.Error("DeleteErrorsTotal should be initialized")
	}
	if DirsPrunedTotal == nil {
		t.Error("DirsPrunedTotal should be initialized")
	}
	if DeletedFileSize == nil {
		t.Error("DeletedFileSize should be initialized")
	}
	if RunDuration == nil {
		t.Error("RunDuration should be initialized")
	}
	if RunLastTimestamp == nil {
		t.Error("RunLastTimestamp should be initialized")
	}
	if RunLastMode == nil {
		t.Error("RunLastMode should be initialized")
	}

	// Test metrics are registered by gathering from default registry
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// Check for expected metric names
	expectedMetrics := []string{
		"treesweep_errors_total",
		"treesweep_scan_duration_seconds",
		"treesweep_duplicates_found_total",
		"treesweep_files_deleted_total",
		"treesweep_bytes_freed_total",
		"treesweep_delete_errors_total",
		"treesweep_dirs_pruned_total",
		"treesweep_deleted_file_size_bytes",
		"treesweep_run_duration_seconds",
		"treesweep_last_run_timestamp",
		"treesweep_last_run_mode",
	}

	foundMetrics := make(map[string]bool)
	for _, mf := range mfs {
		foundMetrics[*mf.Name] = true
	}

	for _, expected := range expectedMetrics {
		if !foundMetrics[expected] {
			t.Errorf("Expected metric %s not found in registry", expected)
		}
	}
}

// TestHelperFunctions verifies that helper functions create valid metrics
func TestHelperFunctions(t *testing.T) {
	t.Run("NewDurationHistogram", func(t *testing.T) {
		h := NewDurationHistogram("test_duration", "Test duration metric")
		if h == nil {
			t.Error("NewDurationHistogram returned nil")
		}
	})

	t.Run("NewBytesHistogram", func(t *testing.T) {
		h := NewBytesHistogram("test_size", "Test size metric")
		if h == nil {
			t.Error("NewBytesHistogram returned nil")
		}
	})

	t.Run("NewBytesCounter", func(t *testing.T) {
		c := NewBytesCounter("test_bytes", "Test bytes metric")
		if c == nil {
			t.Error("NewBytesCounter returned nil")
		}
	})

	t.Run("NewCounter", func(t *testing.T) {
		c := NewCounter("test_counter", "Test counter metric")
		if c == nil {
			t.Error("NewCounter returned nil")
		}
	})

	t.Run("NewCounterVec", func(t *testing.T) {
		cv := NewCounterVec("test_counter_vec", "Test counter vec metric", []string{"label"})
		if cv == nil {
			t.Error("NewCounterVec returned nil")
		}
	})

	t.Run("NewGauge", func(t *testing.T) {
		g := NewGauge("test_gauge", "Test gauge metric")
		if g == nil {
			t.Error("NewGauge returned nil")
		}
	})

	t.Run("NewGaugeVec", func(t *testing.T) {
		gv := NewGaugeVec("test_gauge_vec", "Test gauge vec metric", []string{"label"})
		if gv == nil {
			t.Error("NewGaugeVec returned nil")
		}
	})
}

// TestStandardBuckets verifies that standard bucket definitions are correct
func TestStandardBuckets(t *testing.T) {
	t.Run("DurationBuckets", func(t *testing.T) {
		expected := []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}
		if len(DurationBuckets) != len(expected) {
			t.Errorf("Expected %d duration buckets, got %d", len(expected), len(DurationBuckets))
		}
		for i, v := range expected {
			if DurationBuckets[i] != v {
				t.Errorf("Duration bucket[%d]: expected %v, got %v", i, v, DurationBuckets[i])
			}
		}
	})

	t.Run("BytesBuckets", func(t *testing.T) {
		expected := []float64{1024, 10240, 102400, 1048576, 10485760, 104857600, 1073741824}
		if len(BytesBuckets) != len(expected) {
			t.Errorf("Expected %d bytes buckets, got %d", len(expected), len(BytesBuckets))
		}
		for i, v := range expected {
			if BytesBuckets[i] != v {
				t.Errorf("Bytes bucket[%d]: expected %v, got %v", i, v, BytesBuckets[i])
			}
		}
	})
}

// TestRunMetricHelpers tests run subsystem helper functions
func TestRunMetricHelpers(t *testing.T) {
	Init() // Ensure metrics are initialized

	t.Run("SetRunMode", func(t *testing.T) {
		// Should not panic
		SetRunMode("DRY_RUN")
		SetRunMode("COMMIT")
	})

	t.Run("RecordRun", func(t *testing.T) {
		// Should not panic
		RecordRun()
	})

	t.Run("RecordTreeScan", func(t *testing.T) {
		// Should not panic
		RecordTreeScan("reference", 100, 2)
		RecordTreeScan("target", 80, 0)
	})
}

// TestMetricIncrements verifies metrics can be incremented/updated
func TestMetricIncrements(t *testing.T) {
	Init()

	t.Run("IncrementCounters", func(t *testing.T) {
		// Should not panic
		FilesDeletedTotal.Inc()
		BytesFreedTotal.Add(1024)
		DuplicatesFoundTotal.Inc()
		DeleteErrorsTotal.Inc()
		DirsPrunedTotal.Inc()
		ErrorsTotal.Inc()
	})

	t.Run("ObserveHistogram", func(t *testing.T) {
		// Should not panic
		ScanDuration.Observe(1.5)
		RunDuration.Observe(30.2)
		DeletedFileSize.Observe(4096)
	})

	t.Run("SetGauges", func(t *testing.T) {
		// Should not panic
		RunLastTimestamp.Set(1234567890)
	})

	t.Run("LabeledMetrics", func(t *testing.T) {
		// Should not panic
		FilesScannedTotal.WithLabelValues("reference").Inc()
		ScanSkipsTotal.WithLabelValues("target").Inc()
	})
}
