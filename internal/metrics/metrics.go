// Package metrics exports XMODEM transfer counters to Prometheus.
package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/drunlade/go-xmodem/xmodem"
)

// Transfer holds the counters for one process. Direction, "send" or
// "recv", is a constant label.
type Transfer struct {
	Blocks        prometheus.Counter
	Bytes         prometheus.Counter
	Retries       prometheus.Counter
	Timeouts      prometheus.Counter
	Cancellations prometheus.Counter
	Completed     prometheus.Counter

	registry *prometheus.Registry
}

// New creates the counters and registers them on a fresh registry.
func New(direction string) *Transfer {
	labels := prometheus.Labels{"direction": direction}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	t := &Transfer{
		Blocks:        counter("xmodem_blocks_total", "Blocks acknowledged (send) or accepted (recv)"),
		Bytes:         counter("xmodem_payload_bytes_total", "Payload bytes in acknowledged or accepted blocks"),
		Retries:       counter("xmodem_retries_total", "Recoverable errors counted against the error budget"),
		Timeouts:      counter("xmodem_timeouts_total", "Reads that timed out"),
		Cancellations: counter("xmodem_cancellations_total", "Transfers canceled by the peer"),
		Completed:     counter("xmodem_transfers_completed_total", "Transfers that finished successfully"),
		registry:      prometheus.NewRegistry(),
	}
	t.registry.MustRegister(t.Blocks, t.Bytes, t.Retries, t.Timeouts, t.Cancellations, t.Completed)
	return t
}

// Registry returns the registry the counters live in.
func (t *Transfer) Registry() *prometheus.Registry {
	return t.registry
}

// Observe updates the counters from a protocol event. It has the signature
// of Callbacks.OnEvent.
func (t *Transfer) Observe(ev xmodem.Event) {
	switch ev.Type {
	case xmodem.EventBlockAcked, xmodem.EventBlockReceived:
		t.Blocks.Inc()
		t.Bytes.Add(float64(ev.Bytes))
	case xmodem.EventRetry:
		t.Retries.Inc()
	case xmodem.EventTimeout:
		t.Timeouts.Inc()
	case xmodem.EventCanceled:
		t.Cancellations.Inc()
	case xmodem.EventComplete:
		t.Completed.Inc()
	}
}

// Handler serves the counters in the Prometheus text format.
func (t *Transfer) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// StartPrometheus serves /metrics on addr in the background.
func (t *Transfer) StartPrometheus(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())

	go func() {
		log.Printf("prometheus: listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("prometheus serve error: %v", err)
		}
	}()
}
