package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("stats_warmup").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("stats_warmup").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stats_warmup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stats_warmup", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("stats_warmup")))
}

func TestAddWarmed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddWarmed(4)
	m.AddWarmed(0)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.warmed))

	var nilMetrics *Metrics
	nilMetrics.AddWarmed(3)
	assert.NoError(t, nilMetrics.Track("x").End(nil))
}
