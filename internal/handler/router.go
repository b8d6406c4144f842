package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/banksampah-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса банка отходов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger, h.metrics))

	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/google", h.GoogleSignIn)
			r.Post("/logout", h.Logout)
			r.With(h.authMiddleware.Middleware).Put("/password", h.SetPassword)
		})

		r.Get("/waste/catalog", h.Catalog)
		r.Post("/waste/estimate", h.Estimate)

		r.Route("/wilayah", func(r chi.Router) {
			r.Get("/provinces", h.Provinces)
			r.Get("/regencies/{provinceID}", h.Regencies)
			r.Get("/districts/{regencyID}", h.Districts)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/user/me", h.Me)
			r.Put("/user/profile", h.UpdateProfile)

			r.Route("/affiliations", func(r chi.Router) {
				r.Get("/", h.ListAffiliations)
				r.Post("/", h.CreateAffiliation)
				r.Post("/join", h.JoinAffiliation)
				r.Post("/leave", h.LeaveAffiliation)
				r.Get("/{id}", h.GetAffiliation)
				r.Put("/{id}", h.UpdateAffiliation)
			})

			r.Route("/deposits", func(r chi.Router) {
				r.Post("/", h.SubmitDeposit)
				r.Get("/", h.ListDeposits)
				r.Get("/stream", h.StreamDeposits)
				r.Get("/{id}", h.GetDeposit)
				r.Post("/{id}/accept", h.AcceptDeposit)
				r.Put("/{id}/progress", h.AdvanceProgress)
				r.Put("/{id}/reward", h.SetReward)
				r.Post("/{id}/finalize", h.FinalizeDeposit)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
