// Package metrics wraps a small set of Prometheus collectors tracking
// association lifecycle and PDU traffic, exposed through a dedicated
// registry the caller can mount behind promhttp.
package metrics

import (
	"github.com/mjpearson/dicomul/pdu"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the optional instrumentation surface an Association accepts.
// A nil *Collector disables all of it; every method on Collector is safe to
// call on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	associationsEstablished prometheus.Counter
	associationsAborted     prometheus.Counter
	associationsRejected    prometheus.Counter
	pdusSent                *prometheus.CounterVec
	pdusReceived            *prometheus.CounterVec
	bytesSent               prometheus.Counter
	bytesReceived           prometheus.Counter
}

// New registers a fresh set of collectors on a new prometheus.Registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		associationsEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "associations_established_total",
			Help:      "Associations that reached state06 (established).",
		}),
		associationsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "associations_aborted_total",
			Help:      "Associations that ended via A-ABORT, local or peer.",
		}),
		associationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "associations_rejected_total",
			Help:      "Associations rejected, by this side (AE-6) or by the peer (AE-4).",
		}),
		pdusSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "pdus_sent_total",
			Help:      "PDUs written to the wire, by type.",
		}, []string{"type"}),
		pdusReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "pdus_received_total",
			Help:      "PDUs read from the wire, by type.",
		}, []string{"type"}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to associated transports.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul",
			Name:      "bytes_received_total",
			Help:      "Bytes read from associated transports.",
		}),
	}
	c.registry.MustRegister(
		c.associationsEstablished, c.associationsAborted, c.associationsRejected,
		c.pdusSent, c.pdusReceived, c.bytesSent, c.bytesReceived,
	)
	return c
}

// Registry exposes the underlying registry so cmd/dicomulsrv can mount
// promhttp.HandlerFor(c.Registry(), ...) on its /metrics endpoint.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) AssociationEstablished() {
	if c == nil {
		return
	}
	c.associationsEstablished.Inc()
}

func (c *Collector) AssociationAborted() {
	if c == nil {
		return
	}
	c.associationsAborted.Inc()
}

func (c *Collector) AssociationRejected() {
	if c == nil {
		return
	}
	c.associationsRejected.Inc()
}

func (c *Collector) PDUSent(t pdu.Type, bytes int) {
	if c == nil {
		return
	}
	c.pdusSent.WithLabelValues(t.String()).Inc()
	c.bytesSent.Add(float64(bytes))
}

func (c *Collector) PDUReceived(t pdu.Type, bytes int) {
	if c == nil {
		return
	}
	c.pdusReceived.WithLabelValues(t.String()).Inc()
	c.bytesReceived.Add(float64(bytes))
}
