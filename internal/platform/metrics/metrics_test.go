package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	c := NewCollector()

	c.RecordTick(0.05, time.Millisecond)
	c.RecordTick(0.05, time.Millisecond)
	c.RecordEventWrite(time.Millisecond, nil)
	c.RecordEventWrite(time.Millisecond, errors.New("disk full"))
	c.RecordWSConnection(1)
	c.RecordWSMessage(true)
	c.RecordStage("Ideas", 4)
	c.RecordSave(nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.TickCount))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.EventsWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EventWriteErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WSConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WSMessages.WithLabelValues("in")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.StageProgress.WithLabelValues("Ideas")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Saves.WithLabelValues("ok")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordTick(1, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "studio_tick_count_total 1")
}
