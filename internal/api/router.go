package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/catdesk/backend/internal/api/handlers"
	"github.com/catdesk/backend/internal/api/middleware"
	"github.com/catdesk/backend/internal/auth"
	"github.com/catdesk/backend/internal/config"
	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/db/models"
	"github.com/catdesk/backend/internal/editor"
	"github.com/catdesk/backend/internal/events"
	"github.com/catdesk/backend/internal/job"
)

const maxJSONBody = 4 << 20

type Deps struct {
	DB     *db.Database
	JWT    *auth.JWTService
	Config *config.Config
	Editor *editor.Service
	Jobs   *job.JobQueue
	Hub    *events.Hub
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(d.Config.CORSOrigins)))

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)

	authHandler := handlers.NewAuthHandler(d.DB, d.JWT)
	adminHandler := handlers.NewAdminHandler(d.DB, loginLimiter)
	settingsHandler := handlers.NewSettingsHandler(d.DB)
	projectHandler := handlers.NewProjectHandler(d.Editor, d.DB)
	segmentHandler := handlers.NewSegmentHandler(d.Editor)
	analysisHandler := handlers.NewAnalysisHandler(d.Editor, d.DB)
	exportHandler := handlers.NewExportHandler(d.Editor)
	resourceHandler := handlers.NewResourceHandler(d.Editor)
	jobHandler := handlers.NewJobHandler(d.Jobs, d.Editor)
	eventsHandler := handlers.NewEventsHandler(d.Editor, d.Hub)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.With(loginLimiter.Handler, middleware.MaxBodySize(maxJSONBody)).Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.JWT))

			r.Get("/auth/me", authHandler.Me)

			// Upload routes carry their own limit
			r.Post("/projects", projectHandler.Import)
			r.Get("/projects", projectHandler.List)

			r.Route("/projects/{id}", func(r chi.Router) {
				r.Post("/import/terms", resourceHandler.ImportTerms())
				r.Post("/import/matches", resourceHandler.ImportMatches())
				r.Post("/import/units", resourceHandler.ImportUnits())
				r.Get("/ws", eventsHandler.Serve)

				r.Group(func(r chi.Router) {
					r.Use(middleware.MaxBodySize(maxJSONBody))

					r.Get("/", projectHandler.Get)
					r.Patch("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Get("/members", projectHandler.Members)
					r.Post("/members", projectHandler.AddMember)
					r.Delete("/members/{userID}/{role}", projectHandler.RemoveMember)

					r.Get("/segments", segmentHandler.List)
					r.Get("/segments/search", segmentHandler.Search)
					r.Post("/segments/join", segmentHandler.Join)
					r.Route("/segments/{segmentID}", func(r chi.Router) {
						r.Get("/", segmentHandler.Get)
						r.Patch("/", segmentHandler.Update)
						r.Put("/times", segmentHandler.Times)
						r.Post("/action", segmentHandler.Action)
						r.Post("/evaluation", segmentHandler.Evaluation)
						r.Post("/comments", segmentHandler.AddComment)
						r.Post("/comments/{commentID}/resolve", segmentHandler.ResolveComment)
						r.Post("/split", segmentHandler.Split)
						r.Post("/qa-fix", analysisHandler.Fix)
					})

					r.Get("/qa", analysisHandler.QA)
					r.Get("/stats", analysisHandler.Counts)
					r.Get("/analysis", analysisHandler.Analysis)
					r.Get("/preview", analysisHandler.Preview)

					r.Get("/terms", resourceHandler.Terms)
					r.Post("/prefill", resourceHandler.Prefill)

					r.Get("/export/{format}", exportHandler.Download)
					r.Get("/exports", exportHandler.List)
					r.Post("/exports", exportHandler.Enqueue)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.MaxBodySize(maxJSONBody))

				// Jobs
				r.Get("/jobs", jobHandler.ListJobs)
				r.Get("/jobs/{id}", jobHandler.GetJob)
				r.Get("/jobs/{id}/download", jobHandler.Download)
				r.Delete("/jobs/{id}", jobHandler.CancelJob)
				r.Post("/jobs/{id}/retry", jobHandler.RetryJob)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleAdmin))

					r.Get("/settings", settingsHandler.GetSettings)
					r.Put("/settings", settingsHandler.UpdateSettings)

					r.Get("/admin/users", adminHandler.ListUsers)
					r.Post("/admin/users", adminHandler.CreateUser)
					r.Put("/admin/users/{id}", adminHandler.UpdateUser)
					r.Delete("/admin/users/{id}", adminHandler.DeleteUser)
					r.Get("/admin/rate-limits", adminHandler.RateLimits)
					r.Delete("/admin/rate-limits", adminHandler.ClearRateLimits)
					r.Get("/admin/stats", adminHandler.DashboardStats)
				})
			})
		})
	})

	return r
}
