package handlers

import (
	"os"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/health", h.HealthHandler)
		r.Get("/ws", h.HandleWebSocket)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/employees", h.ListEmployees)
			r.Post("/employees", h.CreateEmployee)
			r.Delete("/employees/{id}", h.DeleteEmployee)
			r.Put("/employees/{id}/hours", h.SetEmployeeHours)
			r.Put("/employees/{id}/group", h.SetEmployeeGroup)
			r.Put("/employees/{id}/card", h.ChangeEmployeeCard)

			r.Get("/groups", h.ListGroups)
			r.Post("/groups", h.CreateGroup)
			r.Delete("/groups/{id}", h.DeleteGroup)

			r.Get("/special-days", h.ListSpecialDays)
			r.Post("/special-days", h.SetSpecialDays)
			r.Delete("/special-days", h.ClearSpecialDays)

			r.Get("/employees/{id}/hours", h.EmployeeHours)
			r.Get("/groups/{id}/hours", h.GroupHours)

			r.Post("/records", h.AppendRecord)
			r.Delete("/records", h.DeleteRecord)

			r.Get("/employees/{id}/archive", h.ArchiveEmployee)
			r.Delete("/employees/{id}/records", h.PurgeEmployeeRecords)

			r.Post("/refresh", h.Refresh)
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()

	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only, comment it out in production
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
