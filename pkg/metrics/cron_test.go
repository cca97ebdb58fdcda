package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.Observe("payment-reconcile", CronOutcomeSuccess, 250*time.Millisecond)
	m.Observe("payment-reconcile", CronOutcomeFailure, time.Second)
	m.Observe("", CronOutcomePanic, time.Millisecond)
	m.CycleSkipped()

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]*dto.MetricFamily{}
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	runs := byName["roastery_cron_job_runs_total"]
	require.NotNil(t, runs)
	counts := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		counts[labelValue(metric, "job")+"/"+labelValue(metric, "outcome")] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"payment-reconcile/success": 1,
		"payment-reconcile/failure": 1,
		"unknown/panic":             1,
	}, counts)

	duration := byName["roastery_cron_job_duration_seconds"]
	require.NotNil(t, duration)
	for _, metric := range duration.GetMetric() {
		if labelValue(metric, "job") == "payment-reconcile" {
			assert.Equal(t, uint64(2), metric.GetHistogram().GetSampleCount())
			assert.InDelta(t, 1.25, metric.GetHistogram().GetSampleSum(), 1e-9)
		}
	}

	last := byName["roastery_cron_job_last_success_timestamp_seconds"]
	require.NotNil(t, last)
	require.Len(t, last.GetMetric(), 1, "only successful runs stamp the gauge")
	assert.Greater(t, last.GetMetric()[0].GetGauge().GetValue(), float64(0))

	skipped := byName["roastery_cron_cycles_skipped_total"]
	require.NotNil(t, skipped)
	assert.Equal(t, float64(1), skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestNilCronJobMetricsIsSafe(t *testing.T) {
	var m *CronJobMetrics
	assert.Nil(t, NewCronJobMetrics(nil))
	assert.NotPanics(t, func() {
		m.Observe("x", CronOutcomeSuccess, time.Second)
		m.CycleSkipped()
	})
}
