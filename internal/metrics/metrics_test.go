package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDisabledByDefault(t *testing.T) {
	if IsMetricsEnabled() {
		t.Fatalf("metrics must start disabled")
	}
	m := GetMetrics()
	m.RecordSourceError("crtsh", "disabled-probe")
	if got := testutil.ToFloat64(m.SourceErrorsTotal.WithLabelValues("crtsh", "disabled-probe")); got != 0 {
		t.Fatalf("expected no recording while disabled, got %v", got)
	}
	if err := WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Fatalf("WriteTextfile while disabled: %v", err)
	}
}

func TestMetricsRecordAndTextfile(t *testing.T) {
	EnableMetrics()
	defer metricsEnabled.Store(false)

	m := GetMetrics()
	m.ObserveSourceRequest("alienvault", "ok", 250*time.Millisecond)
	m.RecordSourceError("hackertarget", "timeout")
	m.AddSourceHostnames("alienvault", 7)
	m.ObserveRun(12, 3*time.Second)
	m.RecordDiskWrite("hostnames", 128)
	m.RecordDiskError("stats")
	done := MeasureDuration(m.DiskWriteDuration, prometheus.Labels{"operation": "hostnames"})
	done()

	if got := testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("alienvault", "ok")); got != 1 {
		t.Fatalf("requests_total = %v", got)
	}
	if got := testutil.ToFloat64(m.SourceErrorsTotal.WithLabelValues("hackertarget", "timeout")); got != 1 {
		t.Fatalf("errors_total = %v", got)
	}
	if got := testutil.ToFloat64(m.SourceHostnames.WithLabelValues("alienvault")); got != 7 {
		t.Fatalf("hostnames_total = %v", got)
	}
	if got := testutil.ToFloat64(m.UniqueHostnames); got != 12 {
		t.Fatalf("unique_hostnames = %v", got)
	}
	if got := testutil.ToFloat64(m.DiskWriteBytes.WithLabelValues("hostnames")); got != 128 {
		t.Fatalf("disk_write_bytes = %v", got)
	}

	path := filepath.Join(t.TempDir(), "subenum.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, name := range []string{"subenum_source_requests_total", "subenum_unique_hostnames", "subenum_run_duration_seconds"} {
		if !strings.Contains(string(b), name) {
			t.Fatalf("textfile missing %s", name)
		}
	}
}

func TestStartMetricsServerNoAddr(t *testing.T) {
	if err := StartMetricsServer(""); err != nil {
		t.Fatalf("StartMetricsServer: %v", err)
	}
	if metricsServer != nil {
		t.Fatalf("no server must be started without an address")
	}
}
