package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/chepyr/go-todo-web/internal/db"
	"github.com/chepyr/go-todo-web/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid credentials"

// compared against when the email is unknown, so both failure paths cost one bcrypt run
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return hash
})

// GET /login
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", pageData{Next: r.URL.Query().Get("next")})
}

// POST /login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP(r)) {
		log.Warn().Str("ip", clientIP(r)).Msg("login rate limit exceeded")
		h.Metrics.ObserveLogin(metrics.LoginThrottled)
		h.render(w, r, http.StatusTooManyRequests, "login", pageData{
			Error: "Too many login attempts. Please try again later.",
		})
		return
	}

	form, err := parseCredentialsForm(w, r)
	if err != nil {
		h.render(w, r, http.StatusBadRequest, "login", pageData{Error: formMessage(err)})
		return
	}
	fail := func() {
		h.Metrics.ObserveLogin(metrics.LoginFailure)
		h.render(w, r, http.StatusUnauthorized, "login", pageData{
			Error: invalidCredentials,
			Email: form.Email,
			Next:  form.Next,
		})
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	user, err := h.UserRepo.GetByEmail(ctx, form.Email)
	if errors.Is(err, db.ErrNotFound) {
		bcrypt.CompareHashAndPassword(dummyHash(), []byte(form.Password))
		log.Info().Msg("login for unknown email")
		fail()
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("load user for login")
		sendError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Compare provided password with stored password hash
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(form.Password)); err != nil {
		log.Info().Int64("user_id", user.ID).Msg("login with wrong password")
		fail()
		return
	}

	if err := h.Sessions.Issue(w, user); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("issue session")
		sendError(w, "Cannot create session", http.StatusInternalServerError)
		return
	}

	h.Metrics.ObserveLogin(metrics.LoginSuccess)
	log.Info().Int64("user_id", user.ID).Msg("user logged in")
	http.Redirect(w, r, safeNext(form.Next), http.StatusSeeOther)
}

// GET /logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Revoke(w, r)
	if identity, ok := IdentityFromContext(r.Context()); ok {
		log.Info().Int64("user_id", identity.UserID).Msg("user logged out")
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
