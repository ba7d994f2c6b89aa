package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDispatch(t *testing.T) {
	before := testutil.ToFloat64(DispatchTotal.WithLabelValues("none", "no_match"))
	ObserveDispatch("", "no_match", 3*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(DispatchTotal.WithLabelValues("none", "no_match")))
}

func TestObserveVoiceRequestAndPosted(t *testing.T) {
	ObserveVoiceRequest("select", "terminal")
	ObservePosted("main")
	assert.GreaterOrEqual(t, testutil.ToFloat64(VoiceRequestOutcomes.WithLabelValues("select", "terminal")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(SequencesPosted.WithLabelValues("main")), 1.0)
}
