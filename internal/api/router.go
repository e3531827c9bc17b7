package api

import (
	"net/http"
	"time"

	"tohomc/internal/api/handler"
	"tohomc/internal/api/middleware"
	"tohomc/internal/app/service"
	"tohomc/internal/common/security"
	"tohomc/internal/live"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type Services struct {
	Auth        *service.AuthService
	Users       *service.UserService
	Contests    *service.ContestService
	Problems    *service.ProblemService
	Submissions *service.SubmissionService
	Standings   *service.StandingsService
	RatingJobs  handler.RecalculationQueue
	Hub         *live.Hub

	MaxImageBytes  int64
	AllowedOrigins []string
}

// tokenFromQuery lets browsers authenticate the WebSocket handshake, which
// cannot carry an Authorization header.
func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

func NewRouter(s Services) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	// Header first, then cookie, then ?token= for WebSocket clients.
	r.Use(jwtauth.Verify(security.TokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, tokenFromQuery))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handler.NewAuthHandler(s.Auth)
	userHandler := handler.NewUserHandler(s.Users)
	contestHandler := handler.NewContestHandler(s.Contests)
	problemHandler := handler.NewProblemHandler(s.Problems, s.MaxImageBytes)
	submissionHandler := handler.NewSubmissionHandler(s.Submissions)
	standingsHandler := handler.NewStandingsHandler(s.Standings, s.Hub, s.AllowedOrigins)
	adminHandler := handler.NewAdminHandler(s.Users, s.RatingJobs)

	timeout := chiMiddleware.Timeout(60 * time.Second)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.With(timeout).Route("/auth", authHandler.RegisterRoutes)

		v1.Group(func(authed chi.Router) {
			authed.Use(middleware.Authenticator)

			authed.With(timeout).Route("/users", userHandler.RegisterRoutes)
			authed.With(timeout).Route("/problems", problemHandler.RegisterRoutes)
			authed.With(timeout, middleware.AdminOnly).Route("/admin", adminHandler.RegisterRoutes)

			authed.Route("/contests", func(cr chi.Router) {
				cr.Group(func(g chi.Router) {
					g.Use(timeout)
					contestHandler.RegisterRoutes(g)
				})
				cr.Route("/{contestID}", func(one chi.Router) {
					// Long-lived connection; no request timeout.
					standingsHandler.RegisterLiveRoutes(one)

					one.Group(func(g chi.Router) {
						g.Use(timeout)
						contestHandler.RegisterContestRoutes(g)
						problemHandler.RegisterContestRoutes(g)
						submissionHandler.RegisterContestRoutes(g)
						standingsHandler.RegisterContestRoutes(g)
					})
				})
			})
		})
	})

	return r
}
