package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveNetworkRequestLabels(t *testing.T) {
	before := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("unknown", "unknown", "unknown", "error"))
	ObserveNetworkRequest("", "", "", time.Now(), errors.New("boom"))
	after := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("unknown", "unknown", "unknown", "error"))
	assert.Equal(t, before+1, after)
}

func TestIncWelcomeDecision(t *testing.T) {
	show := testutil.ToFloat64(WelcomeDecisionsTotal.WithLabelValues("show"))
	skip := testutil.ToFloat64(WelcomeDecisionsTotal.WithLabelValues("skip"))
	IncWelcomeDecision(true)
	IncWelcomeDecision(false)
	IncWelcomeDecision(false)
	assert.Equal(t, show+1, testutil.ToFloat64(WelcomeDecisionsTotal.WithLabelValues("show")))
	assert.Equal(t, skip+2, testutil.ToFloat64(WelcomeDecisionsTotal.WithLabelValues("skip")))
}
