package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.observe(StrategyFixedWindow, Decision{Allowed: true}, nil, time.Millisecond)
	m.observe(StrategyFixedWindow, Decision{Allowed: true}, nil, time.Millisecond)
	m.observe(StrategyFixedWindow, Decision{}, nil, time.Millisecond)
	m.observe(StrategyTokenBucket, Decision{}, errors.New("boom"), time.Millisecond)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("fixed_window", "allowed")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("fixed_window", "rejected")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("token_bucket", "error")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.backendErrors.WithLabelValues("token_bucket")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.backendErrors.WithLabelValues("fixed_window")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.checkDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.observe(StrategySlidingWindow, Decision{Allowed: true}, nil, time.Millisecond)
	})
}
