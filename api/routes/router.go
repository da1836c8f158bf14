package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/athenaretail/pos-backend/api/controllers"
	"github.com/athenaretail/pos-backend/api/middleware"
	"github.com/athenaretail/pos-backend/internal/cart"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/internal/transactions"
	"github.com/athenaretail/pos-backend/pkg/config"
	"github.com/athenaretail/pos-backend/pkg/logger"
)

// Pingers carry the dependency health checks exposed on the readiness
// endpoint.
type Pingers struct {
	DB    controllers.Pinger
	Redis controllers.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	pingers Pingers,
	sessionService sessions.Service,
	cartService cart.Service,
	transactionService transactions.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": pingers.DB,
			"redis":    pingers.Redis,
		}))
	})

	r.Route("/api/v1/pos", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", controllers.SessionCreate(sessionService, logg))
			r.Get("/", controllers.SessionList(sessionService, logg))
			r.Get("/active", controllers.SessionActive(sessionService, logg))

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", controllers.SessionGet(sessionService, logg))
				r.Patch("/", controllers.SessionUpdate(sessionService, logg))
				r.Post("/hold", controllers.SessionHold(sessionService, logg))
				r.Post("/resume", controllers.SessionResume(sessionService, logg))
				r.Post("/complete", controllers.SessionComplete(sessionService, logg))
				r.Post("/void", controllers.SessionVoid(sessionService, logg))

				r.Route("/items", func(r chi.Router) {
					r.Get("/", controllers.CartItemList(cartService, logg))
					r.Post("/", controllers.CartItemAdd(cartService, logg))
					r.Delete("/{itemID}", controllers.CartItemRemove(cartService, logg))
				})
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", controllers.TransactionCreateDirect(transactionService, logg))
			r.Get("/{transactionID}", controllers.TransactionGet(transactionService, logg))
			r.Post("/{transactionID}/void", controllers.TransactionVoid(transactionService, logg))
		})
	})

	return r
}
