package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/koreacc/koreacc/internal/accounts"
	"github.com/koreacc/koreacc/internal/closing"
	"github.com/koreacc/koreacc/internal/costcenters"
	"github.com/koreacc/koreacc/internal/doctypes"
	"github.com/koreacc/koreacc/internal/events"
	"github.com/koreacc/koreacc/internal/fiscal"
	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/taxes"
	"github.com/koreacc/koreacc/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	AccountsHandler    *accounts.Handler
	CostCentersHandler *costcenters.Handler
	FiscalHandler      *fiscal.Handler
	DocTypesHandler    *doctypes.Handler
	TaxesHandler       *taxes.Handler
	LedgerHandler      *ledger.Handler
	EventsHandler      *events.Handler
	ClosingHandler     *closing.Handler
	UsersHandler       *users.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
		r.Route("/cost-centers", params.CostCentersHandler.MountRoutes)
		r.Route("/fiscal", params.FiscalHandler.MountRoutes)
		r.Route("/document-types", params.DocTypesHandler.MountRoutes)
		r.Route("/tax-rules", params.TaxesHandler.MountRoutes)
		r.Route("/entries", params.LedgerHandler.MountRoutes)
		r.Route("/events", params.EventsHandler.MountRoutes)
		r.Route("/closing", params.ClosingHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
	})

	return r
}
