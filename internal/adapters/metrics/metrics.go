// Package metrics exposes Prometheus collectors for the curation service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

const namespace = "curation"

type Metrics struct {
	EventsTotal       *prometheus.CounterVec
	VotesTotal        *prometheus.CounterVec
	StakedTotal       prometheus.Counter
	SkippedRecords    prometheus.Counter
	SettledTotal      prometheus.Counter
	PaidOutTotal      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RequestsInFlight  prometheus.Gauge
	CacheLookups      *prometheus.CounterVec
	ReconcileRepaired prometheus.Counter
	Failures          *prometheus.CounterVec
}

// New registers every collector on reg. Passing a fresh registry keeps tests
// isolated from the process-wide default.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events published, by type.",
		}, []string{"type"}),
		VotesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Votes recorded, by path.",
		}, []string{"path"}),
		StakedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staked_amount_total",
			Help:      "Sum of stake attached to votes.",
		}),
		SkippedRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_records_total",
			Help:      "Stored records left out of a listing because they were missing or malformed.",
		}),
		SettledTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settled_amount_total",
			Help:      "Escrow amount distributed by settlements.",
		}),
		PaidOutTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_out_amount_total",
			Help:      "Amount transferred out, by kind (reward, stake).",
		}, []string{"kind"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds, by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_lookups_total",
			Help:      "Snapshot cache lookups, by result (hit, miss).",
		}, []string{"result"}),
		ReconcileRepaired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_repaired_total",
			Help:      "Orphaned lists added back to the index.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Decryptions or settlements that could not complete, by stage.",
		}, []string{"stage"}),
	}
}

// HandleEvent is an event bus subscriber.
func (m *Metrics) HandleEvent(_ context.Context, event domain.Event) {
	m.EventsTotal.WithLabelValues(string(event.Type)).Inc()

	switch d := event.Data.(type) {
	case domain.VoteRecordedEvent:
		m.VotesTotal.WithLabelValues(string(d.Path)).Inc()
		m.StakedTotal.Add(float64(d.Stake))
	case domain.RecordSkippedEvent:
		m.SkippedRecords.Inc()
	case domain.RewardsSettledEvent:
		m.SettledTotal.Add(float64(d.Settlement.Total))
	case domain.RewardClaimedEvent:
		m.PaidOutTotal.WithLabelValues("reward").Add(float64(d.Amount))
	case domain.StakeWithdrawnEvent:
		m.PaidOutTotal.WithLabelValues("stake").Add(float64(d.Amount))
	case domain.ListReconciledEvent:
		m.ReconcileRepaired.Inc()
	case domain.DecryptionFailedEvent:
		m.Failures.WithLabelValues("decryption").Inc()
	case domain.SettlementFailedEvent:
		m.Failures.WithLabelValues(d.Stage).Inc()
	}
}

func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// Middleware records request duration and in-flight count. The route label
// is the chi pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
