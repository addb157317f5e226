package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/adapters/metrics"
	"github.com/vncsmyrnk/curation/internal/core/ports"
)

type Handlers struct {
	Lists      *ListHandler
	Votes      *VoteHandler
	Settlement *SettlementHandler
	Operations *OperationHandler
}

type RouterOptions struct {
	Sessions    ports.SessionService
	Logger      zerolog.Logger
	CORSOrigins []string
	// Metrics and Gatherer are optional; /metrics is mounted when Gatherer is set.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

func NewHandler(h Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{operationHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	requireSession := AuthMiddleware(opts.Sessions)

	r.Route("/api", func(r chi.Router) {
		r.Route("/lists", func(r chi.Router) {
			r.Get("/", h.Lists.ListAll)
			r.Get("/{id}", h.Lists.GetList)

			r.Group(func(r chi.Router) {
				r.Use(requireSession)
				r.Post("/", h.Lists.CreateList)
				r.Post("/{id}/votes", h.Votes.VoteOnList)
				r.Post("/{id}/decryptions", h.Settlement.RequestDecryption)
				r.Get("/{id}/stake", h.Settlement.GetStake)
				r.Delete("/{id}/stake", h.Settlement.WithdrawStake)
			})
		})

		r.Get("/decryptions", h.Settlement.PendingRequests)

		r.Route("/rewards", func(r chi.Router) {
			r.Use(requireSession)
			r.Get("/", h.Settlement.GetRewards)
			r.Post("/claim", h.Settlement.ClaimRewards)
		})

		r.Post("/oracle/callback", h.Settlement.OracleCallback)
		r.Get("/operations/{id}", h.Operations.GetOperation)
	})

	return r
}
