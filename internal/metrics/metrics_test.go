package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequests.WithLabelValues("threads", "POST", "200"))
	ObserveUpstream("threads", "POST", 200, 5*time.Millisecond)
	after := testutil.ToFloat64(UpstreamRequests.WithLabelValues("threads", "POST", "200"))
	assert.Equal(t, before+1, after)

	beforeErr := testutil.ToFloat64(UpstreamRequests.WithLabelValues("threads", "POST", "error"))
	ObserveUpstream("threads", "POST", 0, time.Millisecond)
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(UpstreamRequests.WithLabelValues("threads", "POST", "error")))
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(RunOutcomes.WithLabelValues("timeout"))
	ObserveRun("timeout", 40)
	assert.Equal(t, before+1, testutil.ToFloat64(RunOutcomes.WithLabelValues("timeout")))
}
