package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementCounter(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("requests_total", nil, "total requests")
	r.IncrementCounter("requests_total", nil, "total requests")
	r.AddToCounter("requests_total", 3, nil, "total requests")

	all := r.GetAllMetrics()
	counters := all["counters"].(map[string]*Metric)
	require.Contains(t, counters, "requests_total")
	assert.Equal(t, float64(5), counters["requests_total"].Value)
}

func TestCounterLabels_SeparateSeries(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("responses_total", map[string]string{"status": "200"}, "")
	r.IncrementCounter("responses_total", map[string]string{"status": "500"}, "")
	r.IncrementCounter("responses_total", map[string]string{"status": "200"}, "")

	counters := r.GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Equal(t, float64(2), counters["responses_total_status:200"].Value)
	assert.Equal(t, float64(1), counters["responses_total_status:500"].Value)
}

func TestMetricKey_LabelOrderIndependent(t *testing.T) {
	r := NewRegistry()

	a := r.metricKey("m", map[string]string{"x": "1", "y": "2"})
	b := r.metricKey("m", map[string]string{"y": "2", "x": "1"})
	assert.Equal(t, a, b)
}

func TestRecordTimer(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("op_duration", 10*time.Millisecond, nil, "")
	r.RecordTimer("op_duration", 30*time.Millisecond, nil, "")

	timers := r.GetAllMetrics()["timers"].(map[string]*TimerMetric)
	timer := timers["op_duration"]
	require.NotNil(t, timer)

	assert.Equal(t, int64(2), timer.Count)
	assert.InDelta(t, 40, timer.Sum, 1)
	assert.InDelta(t, 10, timer.Min, 1)
	assert.InDelta(t, 30, timer.Max, 1)
	assert.InDelta(t, 20, timer.Average, 1)
}

func TestRecordTimer_P95AfterEnoughSamples(t *testing.T) {
	r := NewRegistry()

	for i := 1; i <= 100; i++ {
		r.RecordTimer("op", time.Duration(i)*time.Millisecond, nil, "")
	}

	timers := r.GetAllMetrics()["timers"].(map[string]*TimerMetric)
	assert.InDelta(t, 95, timers["op"].P95, 2)
}

func TestSetGauge(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending_logins", 3, nil, "")
	r.SetGauge("pending_logins", 1, nil, "")

	gauges := r.GetAllMetrics()["gauges"].(map[string]*Metric)
	assert.Equal(t, float64(1), gauges["pending_logins"].Value)
}

func TestGetAllMetrics_Shape(t *testing.T) {
	r := NewRegistry()
	all := r.GetAllMetrics()

	assert.Contains(t, all, "counters")
	assert.Contains(t, all, "timers")
	assert.Contains(t, all, "gauges")
	assert.Contains(t, all, "uptime_ms")
	assert.Contains(t, all, "timestamp")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.IncrementCounter("concurrent_total", nil, "")
				r.RecordTimer("concurrent_duration", time.Millisecond, nil, "")
			}
		}()
	}
	wg.Wait()

	counters := r.GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Equal(t, float64(1000), counters["concurrent_total"].Value)
}
