package perf

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/odyssey-erp/costplan/internal/costplan"
	jobmetrics "github.com/odyssey-erp/costplan/internal/jobs"
)

func TestSnapshotJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	typical := generateProject(100)
	large := generateProject(1500)
	period := &costplan.Period{Year: 2024, Month: 6}

	for i := 0; i < 40; i++ {
		tracker := metrics.Track("costplan_snapshot")
		_ = costplan.BuildReport(typical.id, typical.lines, typical.variations, typical.invoices, period)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending snapshot tracker: %v", err)
		}
	}

	for i := 0; i < 5; i++ {
		tracker := metrics.Track("costplan_snapshot_nightly")
		_ = costplan.BuildReport(large.id, large.lines, large.variations, large.invoices, period)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending nightly tracker: %v", err)
		}
	}

	// A couple of storage failures must be counted, not swallowed.
	for i := 0; i < 2; i++ {
		tracker := metrics.Track("costplan_snapshot")
		if err := tracker.End(errors.New("timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}
	metrics.AddNumberConflict(string(costplan.CategoryContractor))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "costplan_jobs_total", map[string]string{"job": "costplan_snapshot", "status": "success"})
	failure := metricValue(t, families, "costplan_jobs_total", map[string]string{"job": "costplan_snapshot", "status": "failure"})
	if success != 40 || failure != 2 {
		t.Fatalf("unexpected run counts success=%f failure=%f", success, failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("snapshot success ratio too low: %f", ratio)
	}
	if got := metricValue(t, families, "costplan_jobs_failures_total", map[string]string{"job": "costplan_snapshot"}); got != 2 {
		t.Fatalf("expected 2 failures, got %f", got)
	}
	if got := metricValue(t, families, "costplan_variation_number_conflicts_total", map[string]string{"category": "CONTRACTOR"}); got != 1 {
		t.Fatalf("expected 1 conflict, got %f", got)
	}

	nightly := histogramMean(t, families, "costplan_job_duration_seconds", map[string]string{"job": "costplan_snapshot_nightly"})
	if nightly > 2.0 {
		t.Fatalf("nightly snapshot duration above budget: %f", nightly)
	}
	single := histogramMean(t, families, "costplan_job_duration_seconds", map[string]string{"job": "costplan_snapshot"})
	if single > 0.5 {
		t.Fatalf("snapshot duration above budget: %f", single)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
