// Package metrics exposes the bot's counters in Prometheus exposition format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livetrack"

// Prom implements the engine's Stats interface on the default registry.
type Prom struct {
	requests prometheus.Counter
	errors   prometheus.Counter
	messages prometheus.Counter
	flying   prometheus.Gauge
}

func New() *Prom {
	return &Prom{
		requests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Number of requests sent."}),
		errors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Number of errors."}),
		messages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Number of messages sent."}),
		flying: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pilots_flying",
			Help: "Number of pilots currently flying."}),
	}
}

func (p *Prom) IncRequests()    { p.requests.Inc() }
func (p *Prom) IncErrors()      { p.errors.Inc() }
func (p *Prom) IncMessages()    { p.messages.Inc() }
func (p *Prom) AddFlying(d int) { p.flying.Add(float64(d)) }
func (p *Prom) ResetFlying()    { p.flying.Set(0) }

// Handler serves the exposition endpoint.
func Handler() http.Handler { return promhttp.Handler() }
