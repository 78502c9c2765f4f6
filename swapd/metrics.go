package swapd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/notifications"
	"github.com/lightninglabs/beamswap/swapparams"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "swapd"

	// metricsPath is the http path the metrics are served on.
	metricsPath = "/metrics"

	metricsShutdownTimeout = 5 * time.Second
)

// allStatuses lists every status so that the gauge reports zero for statuses
// without swaps.
var allStatuses = []atomicswap.TxStatus{
	atomicswap.StatusPending,
	atomicswap.StatusInProgress,
	atomicswap.StatusRegistering,
	atomicswap.StatusCompleted,
	atomicswap.StatusCanceled,
	atomicswap.StatusFailed,
}

// metrics exports the swap set to prometheus. It observes the swap state
// machines for transitions and follows the change feed for the swap set.
type metrics struct {
	registry *prometheus.Registry

	swaps       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	failures    prometheus.Counter

	// statuses is only accessed by the goroutine following the changes.
	statuses map[swapparams.TxID]atomicswap.TxStatus
}

var _ fsm.Observer = (*metrics)(nil)

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		swaps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "swaps",
			Help:      "Number of swaps per status.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "state_transitions_total",
			Help:      "Number of swap transitions per state.",
		}, []string{"state"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "action_errors_total",
			Help:      "Number of failed swap actions.",
		}),
		statuses: make(map[swapparams.TxID]atomicswap.TxStatus),
	}

	m.registry.MustRegister(m.swaps, m.transitions, m.failures)
	m.setGauge()

	return m
}

// Notify counts the transitions of a swap state machine. The error of the
// last action sticks to later notifications, so only the transition handling
// the error counts as a failure.
func (m *metrics) Notify(n fsm.Notification) {
	if n.Event == fsm.OnError {
		m.failures.Inc()
	}

	if n.PreviousState == n.NextState {
		return
	}

	m.transitions.WithLabelValues(string(n.NextState)).Inc()
}

// apply updates the status gauge with a change of the swap set.
func (m *metrics) apply(change *notifications.Change) {
	switch change.Type {
	case notifications.ChangeReset:
		m.statuses = make(map[swapparams.TxID]atomicswap.TxStatus)
		fallthrough

	case notifications.ChangeAdded, notifications.ChangeUpdated:
		for _, view := range change.Views {
			m.statuses[view.ID] = view.Status
		}

	case notifications.ChangeRemoved:
		for _, view := range change.Views {
			delete(m.statuses, view.ID)
		}
	}

	m.setGauge()
}

func (m *metrics) setGauge() {
	counts := make(map[atomicswap.TxStatus]int)
	for _, status := range m.statuses {
		counts[status]++
	}

	for _, status := range allStatuses {
		m.swaps.WithLabelValues(status.String()).Set(
			float64(counts[status]),
		)
	}
}

// follow applies the changes until the channel is closed.
func (m *metrics) follow(changes <-chan *notifications.Change) {
	for change := range changes {
		m.apply(change)
	}
}

// serve serves the metrics on the address until the context is canceled.
func (m *metrics) serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(
		m.registry, promhttp.HandlerOpts{},
	))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Infof("Serving metrics on %v%v", addr, metricsPath)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), metricsShutdownTimeout,
	)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if serveErr := <-errChan; !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}

	return err
}
