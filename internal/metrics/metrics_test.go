package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SessionOpened(true)
	c.SessionOpened(false)
	c.SessionClosed()
	c.MessageHandled("join", "ok")
	c.MessageHandled("join", "ok")
	c.MessageHandled("shape-create", "blocked")
	c.StoreLatency("create", 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionTotal.WithLabelValues("true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.messages.WithLabelValues("join", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("shape-create", "blocked")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.storeLatency))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.MessageHandled("cursor", "ok")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `sketch_messages_total{outcome="ok",type="cursor"} 1`))
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.SessionOpened(false)
	r.MessageHandled("x", "y")
}
