package http

import (
	"net/http"
	"time"

	"exam-delivery-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Services bundles the use cases the router serves.
type Services struct {
	Exam     *app.ExamService
	Admin    *app.AdminService
	Accounts *app.AccountService
}

// NewRouter wires REST and websocket endpoints. allowedOrigins configures CORS;
// empty allows any origin.
func NewRouter(svc Services, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", actorHeader},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// the websocket stays outside the timeout middleware
	r.Get("/ws/attempt", NewWSHandler(svc.Exam).ServeWS)

	r.Group(func(api chi.Router) {
		api.Use(middleware.Timeout(30 * time.Second))

		accounts := NewAccountHandler(svc.Accounts)
		api.Post("/api/register", accounts.Register)
		api.Post("/api/login", accounts.Login)

		api.Route("/api/admin", NewAdminHandler(svc.Admin).Routes)
		api.Route("/api/students/{userID}", NewStudentHandler(svc.Exam).Routes)
	})
	return r
}
