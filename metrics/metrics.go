// ABOUTME: Prometheus-backed MetricSink for the two spare-capacity gauges
// ABOUTME: Registers overcommittedHosts and spareHostCapacity on a given registerer

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements maintain.MetricSink by setting two gauges. Names
// passed to Set are matched against a fixed map built at construction
// time; an unrecognized name is a programmer error and panics, since the
// maintainer only ever calls Set with the two names it's wired for.
type Prometheus struct {
	gauges map[string]prometheus.Gauge
}

// New registers the overcommittedHosts and spareHostCapacity gauges on
// reg and returns a sink that writes to them.
func New(reg prometheus.Registerer) *Prometheus {
	overcommitted := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spare_capacity_overcommitted_hosts",
		Help: "Number of hosts whose children's summed resources exceed the host's own envelope",
	})
	spare := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spare_capacity_spare_host_capacity",
		Help: "Number of simultaneous host losses the fleet can currently absorb before a tenant is stranded",
	})
	reg.MustRegister(overcommitted, spare)
	return &Prometheus{
		gauges: map[string]prometheus.Gauge{
			"overcommittedHosts": overcommitted,
			"spareHostCapacity":  spare,
		},
	}
}

// Set implements maintain.MetricSink.
func (p *Prometheus) Set(name string, value int) {
	g, ok := p.gauges[name]
	if !ok {
		panic("metrics: unknown gauge name " + name)
	}
	g.Set(float64(value))
}

// Handler returns the HTTP handler that serves the registered metrics in
// the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
