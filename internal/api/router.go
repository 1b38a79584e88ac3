package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers all vault API endpoints.
func NewRouter(h *HandlerProvider) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/vault/total", h.GetTotalHandler)

	r.Route("/vault/{owner}", func(r chi.Router) {
		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/operations", h.ListOperationsHandler)
		r.Post("/deposit", h.DepositNativeHandler)
		r.Post("/withdraw", h.WithdrawNativeHandler)
		r.Post("/tokens/{asset}/deposit", h.DepositTokenHandler)
		r.Post("/tokens/{asset}/withdraw", h.WithdrawTokenHandler)
	})

	return r
}
