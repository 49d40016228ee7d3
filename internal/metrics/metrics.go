// Package metrics exposes Prometheus counters for sessions, stations and chat.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware report to
type Recorder interface {
	RecordLogin(outcome string)
	RecordLogout(reason string)
	SetActiveSessions(n int)
	RecordStationAssigned()
	RecordStationReleased()
	RecordMessageSent()
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
}

type Collector struct {
	logins           *prometheus.CounterVec
	logouts          *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	stationsAssigned prometheus.Counter
	stationsReleased prometheus.Counter
	messagesSent     prometheus.Counter
	httpDuration     *prometheus.HistogramVec
}

// NewCollector builds the collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_logouts_total",
			Help: "Session terminations by reason",
		}, []string{"reason"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinic_active_sessions",
			Help: "Client sessions currently held by this instance",
		}),
		stationsAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinic_station_assignments_total",
			Help: "Station assignments that issued a session code",
		}),
		stationsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinic_station_releases_total",
			Help: "Station release operations",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinic_chat_messages_total",
			Help: "Chat messages appended",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinic_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.logins,
		c.logouts,
		c.activeSessions,
		c.stationsAssigned,
		c.stationsReleased,
		c.messagesSent,
		c.httpDuration,
	)
	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogout(reason string) {
	c.logouts.WithLabelValues(reason).Inc()
}

func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

func (c *Collector) RecordStationAssigned() {
	c.stationsAssigned.Inc()
}

func (c *Collector) RecordStationReleased() {
	c.stationsReleased.Inc()
}

func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler serves the Prometheus scrape endpoint
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything; used where metrics are not wired
type Nop struct{}

func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordLogout(string)                                  {}
func (Nop) SetActiveSessions(int)                                {}
func (Nop) RecordStationAssigned()                               {}
func (Nop) RecordStationReleased()                               {}
func (Nop) RecordMessageSent()                                   {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
