package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCommand(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("clickButton", OutcomeTrue))
	RecordCommand("clickButton", OutcomeTrue, 5*time.Millisecond)
	after := testutil.ToFloat64(commandsTotal.WithLabelValues("clickButton", OutcomeTrue))
	assert.Equal(t, before+1, after)
}

func TestRecordLaunch(t *testing.T) {
	before := testutil.ToFloat64(launchesTotal.WithLabelValues(OutcomeTimeout))
	RecordLaunch(OutcomeTimeout)
	assert.Equal(t, before+1, testutil.ToFloat64(launchesTotal.WithLabelValues(OutcomeTimeout)))
}

func TestSetRunning(t *testing.T) {
	SetRunning(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(autRunning))
	SetRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(autRunning))
}

func TestRecordStaleTakeover(t *testing.T) {
	before := testutil.ToFloat64(staleTakeovers)
	RecordStaleTakeover()
	assert.Equal(t, before+1, testutil.ToFloat64(staleTakeovers))
}
