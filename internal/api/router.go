package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/EgorMochalov/dota2ComfyBack2/internal/api/middleware"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/config"
	"github.com/EgorMochalov/dota2ComfyBack2/internal/handlers"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handlers.Handler, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware first to capture all requests.
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024))
	r.Use(middleware.RequireJSON)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Use(limiter.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)

			r.Route("/users", func(r chi.Router) {
				r.Get("/search", h.SearchUsers)
				r.Get("/online", h.OnlineUsers)
				r.Put("/me", h.UpdateMe)
				r.Get("/blocked", h.ListBlockedUsers)
				r.Get("/{id}", h.GetUser)
				r.Post("/{id}/block", h.BlockUser)
				r.Delete("/{id}/block", h.UnblockUser)
			})

			r.Route("/teams", func(r chi.Router) {
				r.Post("/", h.CreateTeam)
				r.Get("/search", h.SearchTeams)
				r.Post("/leave", h.LeaveTeam)
				r.Get("/{id}", h.GetTeam)
				r.Put("/{id}", h.UpdateTeam)
				r.Delete("/{id}", h.DeleteTeam)
				r.Delete("/{id}/members/{userId}", h.RemoveMember)
				r.Get("/{id}/applications", h.ListTeamApplications)
				r.Get("/{id}/invitations", h.ListTeamInvitations)
				r.Post("/{id}/invitations", h.Invite)
			})

			r.Route("/applications", func(r chi.Router) {
				r.Post("/", h.Apply)
				r.Get("/my", h.ListMyApplications)
				r.Post("/{id}/accept", h.AcceptApplication)
				r.Post("/{id}/reject", h.RejectApplication)
				r.Delete("/{id}", h.CancelApplication)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", h.ListMyInvitations)
				r.Post("/{id}/accept", h.AcceptInvitation)
				r.Post("/{id}/reject", h.RejectInvitation)
				r.Delete("/{id}", h.CancelInvitation)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.ListNotifications)
				r.Post("/read-all", h.MarkAllNotificationsRead)
				r.Post("/{id}/read", h.MarkNotificationRead)
				r.Delete("/{id}", h.DeleteNotification)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Post("/private", h.OpenPrivateChat)
				r.Get("/my", h.MyChats)
				r.Get("/unread", h.TotalUnreadCount)
				r.Get("/{id}/messages", h.GetChatMessages)
				r.Post("/{id}/messages", h.SendChatMessage)
				r.Post("/{id}/read", h.MarkChatRead)
				r.Get("/{id}/unread", h.ChatUnreadCount)
				r.Get("/{id}/members", h.ChatMembers)
				r.Post("/{id}/leave", h.LeaveChat)
				r.Delete("/{id}", h.DeleteChat)
			})

			r.Get("/ws", h.ServeWS)
		})
	})

	return r
}
