// Package metrics exposes a Prometheus collector for session counts and
// byte totals, plus a small chi-routed HTTP server for /healthz and
// /metrics.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/balookrd/mcclassic/registry"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements prometheus.Collector directly, the same shape as
// a hand-written exporter: Describe/Collect compute current values at
// scrape time rather than relying on the default registry's
// bookkeeping. Bytes-in/out are summed live from reg's entries, so they
// reflect real session traffic rather than a value pushed once and never
// updated.
type Collector struct {
	mu sync.Mutex

	reg              *registry.Registry
	activeSessions   int
	levelTransferSec []float64

	activeDesc   *prometheus.Desc
	bytesDesc    *prometheus.Desc
	transferDesc *prometheus.Desc
}

// New returns a Collector that sums byte totals from reg at scrape
// time. reg may be nil, in which case bytes_total always reports zero.
func New(reg *registry.Registry) *Collector {
	return &Collector{
		reg: reg,
		activeDesc: prometheus.NewDesc(
			"mcclassic_sessions_active", "Number of currently connected sessions.", nil, nil),
		bytesDesc: prometheus.NewDesc(
			"mcclassic_bytes_total", "Bytes transferred, by direction.", []string{"direction"}, nil),
		transferDesc: prometheus.NewDesc(
			"mcclassic_level_transfer_seconds", "Observed level transfer durations.", nil, nil),
	}
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.activeDesc
	descs <- c.bytesDesc
	descs <- c.transferDesc
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	active := c.activeSessions
	transfers := append([]float64(nil), c.levelTransferSec...)
	c.mu.Unlock()

	metrics <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(active))

	var bytesIn, bytesOut uint64
	if c.reg != nil {
		c.reg.Each(func(_ uuid.UUID, e *registry.Entry) {
			in, out, _ := e.Snapshot()
			bytesIn += in
			bytesOut += out
		})
	}
	metrics <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(bytesIn), "in")
	metrics <- prometheus.MustNewConstMetric(c.bytesDesc, prometheus.CounterValue, float64(bytesOut), "out")

	sum := 0.0
	buckets := map[float64]uint64{0.1: 0, 0.5: 0, 1: 0, 5: 0, 30: 0}
	for _, v := range transfers {
		sum += v
		for b := range buckets {
			if v <= b {
				buckets[b]++
			}
		}
	}
	metrics <- prometheus.MustNewConstHistogram(c.transferDesc, uint64(len(transfers)), sum, buckets)
}

// SessionOpened increments the active-session gauge.
func (c *Collector) SessionOpened() {
	c.mu.Lock()
	c.activeSessions++
	c.mu.Unlock()
}

// SessionClosed decrements the active-session gauge.
func (c *Collector) SessionClosed() {
	c.mu.Lock()
	if c.activeSessions > 0 {
		c.activeSessions--
	}
	c.mu.Unlock()
}

// ObserveLevelTransfer records how long a level transfer took. Wired to
// ClientSession.SendLevel via classic.WithMetrics.
func (c *Collector) ObserveLevelTransfer(d time.Duration) {
	c.mu.Lock()
	c.levelTransferSec = append(c.levelTransferSec, d.Seconds())
	c.mu.Unlock()
}

// Server serves /healthz and /metrics on its own listener.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a Server bound to addr, backed by collector.
func NewServer(addr string, collector *Collector) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{httpServer: &http.Server{Addr: addr, Handler: r}}
}

// Run starts serving and blocks until ctx is cancelled, then shuts the
// server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
