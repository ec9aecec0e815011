package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Update("message")
		r.Search("accepted")
		r.Navigation("moved")
		r.DownloadStarted()
		r.DownloadFinished("ok", time.Second)
		r.FileRemoval("removed")
		r.GaugeFunc("x", "y", func() float64 { return 1 })
	})
	assert.Nil(t, r.Registry())
}

func TestCounters(t *testing.T) {
	r := New()
	r.Search("accepted")
	r.Search("accepted")
	r.Search("quota_exceeded")
	r.Navigation("edge")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.searches.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.searches.WithLabelValues("quota_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.navigations.WithLabelValues("edge")))
}

func TestInflightGauge(t *testing.T) {
	r := New()
	r.DownloadStarted()
	r.DownloadStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.inflight))

	r.DownloadFinished("ok", 3*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inflight))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.downloads.WithLabelValues("ok")))
}

func TestGaugeFunc(t *testing.T) {
	r := New()
	n := 0.0
	r.GaugeFunc("state_bundles", "Resident state bundles.", func() float64 { return n })
	n = 7
	count, err := testutil.GatherAndCount(r.reg, "tunebot_state_bundles")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
