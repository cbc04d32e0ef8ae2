// Package metrics 收集並公開 Prometheus 指標。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 是協定處理器使用的指標介面
type Recorder interface {
	SessionOpened(guest bool)
	SessionClosed()
	MessageHandled(msgType, outcome string)
	StoreLatency(op string, d time.Duration)
}

// Collector 是 Recorder 的 Prometheus 實作
type Collector struct {
	sessions     prometheus.Gauge
	sessionTotal *prometheus.CounterVec
	messages     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sketch_sessions_active",
			Help: "目前連線中的 session 數",
		}),
		sessionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sketch_sessions_total",
			Help: "建立過的 session 總數",
		}, []string{"guest"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sketch_messages_total",
			Help: "依類型與結果分類的入站訊息數",
		}, []string{"type", "outcome"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sketch_store_latency_seconds",
			Help:    "圖形儲存操作的延遲（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(c.sessions, c.sessionTotal, c.messages, c.storeLatency)
	return c
}

func (c *Collector) SessionOpened(guest bool) {
	c.sessions.Inc()
	c.sessionTotal.WithLabelValues(strconv.FormatBool(guest)).Inc()
}

func (c *Collector) SessionClosed() {
	c.sessions.Dec()
}

func (c *Collector) MessageHandled(msgType, outcome string) {
	c.messages.WithLabelValues(msgType, outcome).Inc()
}

func (c *Collector) StoreLatency(op string, d time.Duration) {
	c.storeLatency.WithLabelValues(op).Observe(d.Seconds())
}

// Handler 回傳 /metrics 使用的 HTTP handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop 不記錄任何指標
type Nop struct{}

func (Nop) SessionOpened(bool)                 {}
func (Nop) SessionClosed()                     {}
func (Nop) MessageHandled(string, string)      {}
func (Nop) StoreLatency(string, time.Duration) {}
