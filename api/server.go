/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client IP from X-Forwarded-For / X-Real-IP
  3. Logger:     zap request log (requestLogger)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Timeout:    Cancels the request context after RequestTimeout
  6. RateLimit:  Token bucket per client IP (x/time/rate)
  7. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/leave/*       Workflow and approval queue (actor headers required)
  /api/ledger/*      Raw document store used by the CLI's remote client
                     (X-Ledger-Token when a token is configured)
  /api/employees/*   Employee directory
  /api/scenarios/*   Demo scenarios
  /api/admin/*       Year-end rollover
  /healthz           Liveness plus a database ping

ACTOR HEADERS:
  X-Actor-Employee-ID, X-Actor-Email, X-Actor-User-ID, X-Actor-Role.
  Authentication happens upstream; these are trusted as given.

SEE ALSO:
  - handlers.go: Workflow and queue handlers
  - ledger.go: Ledger and directory handlers
  - cmd/server/main.go: Server startup
*/
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	RateLimitRPS   float64 // <= 0 disables rate limiting
	RateLimitBurst int
	Logger         *zap.Logger

	// DisableLedger unmounts /api/ledger. The CLI cannot reach the server
	// without it.
	DisableLedger bool
	// LedgerToken, when set, must arrive in X-Ledger-Token on /api/ledger
	// and on directory writes.
	LedgerToken string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(opts.Logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		r.Use(rateLimitByIP(rate.Limit(opts.RateLimitRPS), burst))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			HeaderEmployeeID, HeaderEmail, HeaderUserID, HeaderRole, HeaderLedgerToken,
		},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	ledgerGuard := requireLedgerToken(opts.LedgerToken)

	r.Route("/api", func(r chi.Router) {
		r.Route("/leave", func(r chi.Router) {
			r.Get("/requests", h.ListQueue)
			r.Post("/requests", h.SubmitRequest)
			r.Delete("/requests/{id}", h.DeleteRequest)
			r.Post("/requests/{id}/approve", h.ApproveRequest)
			r.Post("/requests/{id}/reject", h.RejectRequest)
			r.Post("/requests/{id}/hold", h.HoldRequest)
			r.Post("/requests/{id}/cancel", h.CancelRequest)
			r.Get("/requests/{id}/audit", h.GetAuditLog)
			r.Get("/employees/{id}/requests", h.ListEmployeeRequests)
			r.Get("/employees/{id}/balance", h.GetBalance)
		})

		if !opts.DisableLedger {
			r.Route("/ledger", func(r chi.Router) {
				r.Use(ledgerGuard)
				r.Get("/requests", h.LedgerListRequests)
				r.Post("/requests", h.LedgerCreateRequest)
				r.Get("/requests/{id}", h.LedgerGetRequest)
				r.Patch("/requests/{id}/status", h.LedgerUpdateStatus)
				r.Delete("/requests/{id}", h.LedgerDeleteRequest)
				r.Get("/balances/{employeeID}/{year}", h.LedgerGetBalance)
				r.Put("/balances/{employeeID}/{year}", h.LedgerSaveBalance)
			})
		}

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.With(ledgerGuard).Post("/", h.SaveEmployee)
			r.Get("/lookup", h.LookupEmployee)
			r.Get("/{id}", h.GetEmployee)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/rollover", h.TriggerRollover)
		})
	})

	return r
}
