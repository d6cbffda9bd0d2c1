package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/chepyr/go-todo-web/internal/db"
	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const emailTaken = "Email already registered"

// GET /register
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", pageData{})
}

// POST /register - create the account and send the user to the login page
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP(r)) {
		log.Warn().Str("ip", clientIP(r)).Msg("register rate limit exceeded")
		h.render(w, r, http.StatusTooManyRequests, "register", pageData{
			Error: "Too many register attempts. Please try again later.",
		})
		return
	}

	form, err := parseCredentialsForm(w, r)
	if err == nil {
		err = validateRegistration(form)
	}
	refill := pageData{Username: form.Username, Email: form.Email}
	if err != nil {
		refill.Error = formMessage(err)
		h.render(w, r, http.StatusBadRequest, "register", refill)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	defer cancel()

	_, err = h.UserRepo.GetByEmail(ctx, form.Email)
	if err == nil {
		refill.Error = emailTaken
		h.render(w, r, http.StatusConflict, "register", refill)
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		log.Error().Err(err).Msg("check existing email")
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		sendError(w, "Cannot hash password", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: string(hash),
	}
	err = h.UserRepo.Create(ctx, user)
	if errors.Is(err, db.ErrDuplicateEmail) {
		refill.Error = emailTaken
		h.render(w, r, http.StatusConflict, "register", refill)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("create user")
		sendError(w, "Cannot save user", http.StatusInternalServerError)
		return
	}

	log.Info().Int64("user_id", user.ID).Msg("user registered")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
