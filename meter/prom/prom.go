// Package prom exports dispatch events as Prometheus metrics.
package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ineyio/speechgate"
)

// Meter records routing, transcription and ledger metrics.
type Meter struct {
	routes           *prometheus.CounterVec
	results          *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	charges          *prometheus.CounterVec
	chargedSeconds   prometheus.Counter
	processedSeconds prometheus.Gauge
}

var _ speechgate.Meter = (*Meter)(nil)

// New creates a Meter and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Meter, error) {
	m := &Meter{
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "routes_total",
			Help:      "Requests routed, by backend.",
		}, []string{"backend", "engine"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "transcriptions_total",
			Help:      "Finished transcriptions, by backend and outcome.",
		}, []string{"backend", "engine", "status", "matched"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "speechgate",
			Name:      "transcription_duration_seconds",
			Help:      "Engine call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"backend", "engine"}),
		charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "charges_total",
			Help:      "Ledger charges, by status.",
		}, []string{"status"}),
		chargedSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "speechgate",
			Name:      "charged_seconds_total",
			Help:      "Audio seconds charged to the cloud quota.",
		}),
		processedSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "speechgate",
			Name:      "ledger_processed_seconds",
			Help:      "Processed seconds in the open accounting period.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.routes, m.results, m.duration, m.charges, m.chargedSeconds, m.processedSeconds,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Meter) OnRoute(e speechgate.RouteEvent) {
	m.routes.WithLabelValues(e.Backend.String(), e.Engine).Inc()
	m.processedSeconds.Set(e.ProcessedSeconds)
}

func (m *Meter) OnResult(e speechgate.ResultEvent) {
	status := "success"
	if !e.Success {
		status = "error"
	}
	m.results.WithLabelValues(e.Backend.String(), e.Engine, status, strconv.FormatBool(e.Matched)).Inc()
	m.duration.WithLabelValues(e.Backend.String(), e.Engine).Observe(e.Duration.Seconds())
}

func (m *Meter) OnCharge(e speechgate.ChargeEvent) {
	switch {
	case e.Dropped:
		m.charges.WithLabelValues("dropped").Inc()
	case e.Error != nil:
		m.charges.WithLabelValues("error").Inc()
	default:
		m.charges.WithLabelValues("applied").Inc()
		m.chargedSeconds.Add(e.Charged)
		m.processedSeconds.Set(e.Total)
	}
}
