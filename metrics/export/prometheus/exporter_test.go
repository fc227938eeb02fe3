package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot goMFA.MetricsSnapshot
}

func (f fakeSource) MetricsSnapshot() goMFA.MetricsSnapshot { return f.snapshot }

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters:   map[goMFA.MetricID]uint64{},
			Histograms: map[goMFA.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", n)
	}
}

func TestCollectIncludesCounterAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters: map[goMFA.MetricID]uint64{
				goMFA.MetricCodeDispatched: 7,
			},
			Histograms: map[goMFA.MetricID][]uint64{
				goMFA.MetricSecondFactorLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	if n := testutil.CollectAndCount(c); n != len(internaldefs.CounterDefs)+1 {
		t.Fatalf("expected %d series, got %d", len(internaldefs.CounterDefs)+1, n)
	}

	out := scrape(t, c)
	if !strings.Contains(out, "gomfa_code_dispatched_total 7") {
		t.Fatalf("expected code_dispatched counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, `gomfa_second_factor_latency_seconds_bucket{le="0.005"} 1`) {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, `gomfa_second_factor_latency_seconds_bucket{le="+Inf"} 36`) {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "gomfa_second_factor_latency_seconds_count 36") {
		t.Fatalf("expected histogram count in output, got:\n%s", out)
	}
}

func TestCollectSkipsHistogramWhenLatencyOff(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters:   map[goMFA.MetricID]uint64{goMFA.MetricBackupCodeUsed: 1},
			Histograms: map[goMFA.MetricID][]uint64{},
		},
	})

	out := scrape(t, c)
	if strings.Contains(out, "gomfa_second_factor_latency_seconds") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
	if !strings.Contains(out, "gomfa_backup_code_used_total 1") {
		t.Fatalf("expected backup code counter, got:\n%s", out)
	}
}

func TestCollectorReadsEngineSnapshot(t *testing.T) {
	m := goMFA.NewMetrics(goMFA.MetricsConfig{Enabled: true})
	m.Inc(goMFA.MetricMethodActivated)
	m.Inc(goMFA.MetricMethodActivated)

	c := NewCollectorFromSource(fakeSource{snapshot: m.Snapshot()})
	if out := scrape(t, c); !strings.Contains(out, "gomfa_method_activated_total 2") {
		t.Fatalf("expected activated counter, got:\n%s", out)
	}
}

func BenchmarkCollect(b *testing.B) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters: map[goMFA.MetricID]uint64{
				goMFA.MetricFirstFactorSuccess:  1000,
				goMFA.MetricFirstFactorFailure:  40,
				goMFA.MetricSecondFactorSuccess: 800,
				goMFA.MetricCodeDispatched:      810,
			},
			Histograms: map[goMFA.MetricID][]uint64{
				goMFA.MetricSecondFactorLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = testutil.CollectAndCount(c)
	}
}
