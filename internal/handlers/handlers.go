package handlers

import (
	"net"
	"net/http"
	"time"

	"github.com/chepyr/go-todo-web/internal/db"
	"github.com/chepyr/go-todo-web/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const dbTimeout = 5 * time.Second

type Handler struct {
	TaskRepo    db.TaskRepositoryInterface
	UserRepo    db.UserRepositoryInterface
	Sessions    *SessionManager
	RateLimiter *RateLimiter
	WSHub       *WSHub
	Renderer    *Renderer
	Metrics     *metrics.Metrics

	// MultiUser enables accounts, sessions and per-user task ownership.
	MultiUser bool
	// AllowedOrigins restricts websocket origins; empty allows any.
	AllowedOrigins []string
	// TrustProxy honours X-Forwarded-For / X-Real-IP. Only set it behind a
	// reverse proxy that overwrites those headers.
	TrustProxy bool
}

/*
routes:
- GET / , POST /add, GET|POST /edit/{id}, GET /delete/{id}, GET /toggle/{id}, GET /ws
- multi-user only: GET|POST /register, GET|POST /login, GET /logout
*/
func NewRouter(h *Handler, middlewares ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if h.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middlewares...)
	r.Use(middleware.Recoverer)

	if h.MultiUser {
		r.Get("/register", h.RegisterForm)
		r.Post("/register", h.Register)
		r.Get("/login", h.LoginForm)
		r.Post("/login", h.Login)
	}

	r.Group(func(r chi.Router) {
		if h.MultiUser {
			r.Use(h.AuthMiddleware)
			r.Get("/logout", h.Logout)
		}
		r.Get("/", h.ListTasks)
		r.Post("/add", h.AddTask)
		r.Get("/edit/{id}", h.EditTaskForm)
		r.Post("/edit/{id}", h.EditTask)
		r.Get("/delete/{id}", h.DeleteTask)
		r.Get("/toggle/{id}", h.ToggleTask)
		r.Get("/ws", h.HandleWebSocket)
	})
	return r
}

// currentOwner resolves the owner scope for task queries. In multi-user mode a
// request without identity is redirected to the login page and ok is false.
func (h *Handler) currentOwner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if !h.MultiUser {
		return 0, true
	}
	identity, ok := IdentityFromContext(r.Context())
	if !ok || identity.UserID == 0 {
		redirectToLogin(w, r)
		return 0, false
	}
	return identity.UserID, true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func sendError(w http.ResponseWriter, msg string, code int) {
	http.Error(w, msg, code)
}
