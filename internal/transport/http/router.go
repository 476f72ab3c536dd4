package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-carrier-billing/internal/application/billing"
	"github.com/go-carrier-billing/internal/application/checkout"
	"github.com/go-carrier-billing/internal/application/flowmanager"
	"github.com/go-carrier-billing/internal/application/normalize"
	"github.com/go-carrier-billing/internal/application/pinflow"
	"github.com/go-carrier-billing/internal/application/webhook"
	"github.com/go-carrier-billing/internal/config"
	"github.com/go-carrier-billing/internal/transport/http/handler"
	appmiddleware "github.com/go-carrier-billing/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// sweepInterval is how often expired store entries are physically removed.
// Expiry itself is enforced at lookup time.
const sweepInterval = time.Minute

// NewRouter builds the application router and starts the store sweepers.
// ctx bounds the sweeper goroutines.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	passthrough := func(next http.Handler) http.Handler { return next }
	authMw := passthrough
	requireScope := func(string) func(http.Handler) http.Handler { return passthrough }
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
		requireScope = appmiddleware.RequireScope
	}

	// 20 requests/second, burst of 40 — webhooks are public but operators
	// deliver in bursts during settlement windows.
	webhookRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40)

	normalizer := normalize.New(deps.Clock)
	recorder := billing.NewRecorder(deps.RecordRepo, deps.Clock)

	codes := pinflow.NewCodeStore(deps.Clock)
	sessions := checkout.NewSessionStore(deps.Clock)
	refs := flowmanager.NewRefStore(deps.Clock)
	codes.StartSweeper(ctx, sweepInterval)
	sessions.StartSweeper(ctx, sweepInterval)
	refs.Store().StartSweeper(ctx, sweepInterval)

	pinSvc := pinflow.NewService(deps.Operators, deps.Gateway, normalizer, codes, recorder, deps.SMSSender, deps.Clock)
	checkoutSvc := checkout.NewService(deps.Operators, deps.Gateway, normalizer, sessions, refs, deps.AnonRefRepo, recorder, deps.SMSSender, deps.Clock)
	manager := flowmanager.New(deps.Operators, pinSvc, checkoutSvc, refs, deps.Gateway, normalizer, deps.AnonRefRepo, deps.SubRepo)
	reconciler := webhook.NewReconciler(deps.Operators, normalizer, refs, deps.SubRepo, deps.AnonRefRepo, recorder, deps.Clock)

	healthH := handler.NewHealthHandler()
	flowH := handler.NewFlowHandler(manager, pinSvc, checkoutSvc)
	webhookH := handler.NewWebhookHandler(reconciler, deps.WebhookArchive)
	operatorH := handler.NewOperatorHandler(deps.Operators)
	subH := handler.NewSubscriptionHandler(manager, deps.SubRepo, deps.RecordRepo)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(webhookRL.Limit).Post("/webhooks/{operator}", webhookH.Receive)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Group(func(r chi.Router) {
				r.Use(requireScope("flows"))

				r.Post("/flows", flowH.Initiate)
				r.Post("/flows/verify", flowH.Verify)
				r.Post("/flows/checkout/complete", flowH.CompleteCheckout)
				r.Get("/flows/recommended/{operator}", flowH.Recommended)
				r.Get("/flows/references/{operator}/{key}", flowH.GetReference)
			})

			r.Get("/operators", operatorH.List)
			r.Get("/operators/{id}", operatorH.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireScope("subscriptions"))

				r.Get("/subscriptions/{operator}/{subject}", subH.Get)
				r.Get("/subscriptions/{operator}/{subject}/records", subH.Records)
				r.Delete("/subscriptions/{operator}/{subject}", subH.Terminate)
			})

			// Archive replay is limited to admin tokens.
			r.With(requireScope("admin")).Get("/webhooks/{operator}/archive/{id}", webhookH.Archived)
		})
	})

	return r
}
