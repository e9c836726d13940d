// Package metrics exposes sealing activity as prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sealtrail"

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the global one.
type Recorder struct {
	registry *prometheus.Registry

	sessionsStarted    prometheus.Counter
	snapshotsSealed    *prometheus.CounterVec
	sealFailures       *prometheus.CounterVec
	proofsFinalized    prometheus.Counter
	proofSnapshots     prometheus.Histogram
	generations        *prometheus.CounterVec
	generationDuration prometheus.Histogram
	verifications      *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Session ledgers opened.",
		}),
		snapshotsSealed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_sealed_total",
			Help:      "Snapshots sealed, by artifact source.",
		}, []string{"source"}),
		sealFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seal_failures_total",
			Help:      "Rejected seal attempts, by reason.",
		}, []string{"reason"}),
		proofsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proofs_finalized_total",
			Help:      "Ledgers reduced to a proof object.",
		}),
		proofSnapshots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "proof_snapshots",
			Help:      "Snapshots per finalized proof.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 200},
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Remote generation jobs, by outcome.",
		}, []string{"outcome"}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Wall time of remote generation jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_verifications_total",
			Help:      "Proof documents verified, by result.",
		}, []string{"passed"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.sessionsStarted,
		r.snapshotsSealed,
		r.sealFailures,
		r.proofsFinalized,
		r.proofSnapshots,
		r.generations,
		r.generationDuration,
		r.verifications,
	)
	return r
}

func (r *Recorder) SessionStarted() {
	r.sessionsStarted.Inc()
}

func (r *Recorder) SnapshotSealed(source string) {
	r.snapshotsSealed.WithLabelValues(source).Inc()
}

func (r *Recorder) SealFailed(reason string) {
	r.sealFailures.WithLabelValues(reason).Inc()
}

func (r *Recorder) ProofFinalized(snapshots int) {
	r.proofsFinalized.Inc()
	r.proofSnapshots.Observe(float64(snapshots))
}

func (r *Recorder) GenerationCompleted(outcome string, elapsed time.Duration) {
	r.generations.WithLabelValues(outcome).Inc()
	r.generationDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) ProofVerified(passed bool) {
	r.verifications.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
