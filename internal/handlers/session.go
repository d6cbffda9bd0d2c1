package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionCookieName = "session"

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrInvalidSession = errors.New("invalid session")
)

type sessionClaims struct {
	Username string `json:"name"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies signed session cookies. Revoked session
// IDs are kept in memory until the token would have expired anyway.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool

	mutex   sync.Mutex
	revoked map[string]time.Time

	now func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		secret:  []byte(secret),
		ttl:     ttl,
		secure:  secure,
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Issue signs a new session for user and sets it as a cookie on w.
func (s *SessionManager) Issue(w http.ResponseWriter, user *models.User) error {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := sessionClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return fmt.Errorf("error signing session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Identify verifies the session cookie on r.
func (s *SessionManager) Identify(r *http.Request) (Identity, error) {
	claims, err := s.parse(r)
	if err != nil {
		return Identity{}, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidSession)
	}
	if s.isRevoked(claims.ID) {
		return Identity{}, fmt.Errorf("%w: revoked", ErrInvalidSession)
	}
	return Identity{UserID: userID, Username: claims.Username}, nil
}

// Revoke invalidates the session carried by r, if any, and clears the cookie.
func (s *SessionManager) Revoke(w http.ResponseWriter, r *http.Request) {
	if claims, err := s.parse(r); err == nil {
		s.mutex.Lock()
		now := s.now()
		for id, exp := range s.revoked {
			if now.After(exp) {
				delete(s.revoked, id)
			}
		}
		s.revoked[claims.ID] = claims.ExpiresAt.Time
		s.mutex.Unlock()
	}
	s.clearCookie(w)
}

func (s *SessionManager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *SessionManager) parse(r *http.Request) (*sessionClaims, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims,
		func(token *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%w: token not valid", ErrInvalidSession)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidSession)
	}
	return claims, nil
}

func (s *SessionManager) isRevoked(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, ok := s.revoked[id]
	return ok
}
