package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chepyr/go-todo-web/internal/db"
	"github.com/chepyr/go-todo-web/internal/metrics"
	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-32-bytes-long-1234567890"

type MockUserRepository struct {
	users     map[string]*models.User
	nextID    int64
	createErr error
	getErr    error
	mutex     sync.Mutex
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*models.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.users[user.Email]; exists {
		return db.ErrDuplicateEmail
	}
	user.ID = m.nextID
	m.nextID++
	user.CreatedAt = time.Now()
	m.users[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, exists := m.users[email]
	if !exists {
		return nil, db.ErrNotFound
	}
	return user, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, db.ErrNotFound
}

func SetupMockUser(username, email, password string) *MockUserRepository {
	repo := NewMockUserRepository()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	repo.users[email] = &models.User{
		ID:           repo.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	repo.nextID++
	return repo
}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer()
	require.NoError(t, err)
	return rd
}

// newTestHandler wires a Handler against a fresh sqlite file.
func newTestHandler(t *testing.T, multiUser bool) *Handler {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "todo.db") + "?_foreign_keys=on"
	conn, err := db.Connect(db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, db.DriverSQLite))

	h := &Handler{
		TaskRepo:  db.NewTaskRepository(conn),
		UserRepo:  db.NewUserRepository(conn),
		WSHub:     NewWSHub(),
		Renderer:  newTestRenderer(t),
		Metrics:   metrics.New(),
		MultiUser: multiUser,
	}
	if multiUser {
		h.Sessions = NewSessionManager(testSecret, time.Hour, false)
		h.RateLimiter = NewRateLimiter(100, time.Minute)
		t.Cleanup(h.RateLimiter.Close)
	}
	return h
}

// client drives a router and carries the session cookie between requests.
type client struct {
	t       *testing.T
	router  *chi.Mux
	session *http.Cookie
	ip      string
}

func newClient(t *testing.T, h *Handler) *client {
	return &client{t: t, router: NewRouter(h), ip: "192.168.1.1"}
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, nil)
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, form)
}

func (c *client) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	c.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = c.ip + ":1234"
	if c.session != nil {
		req.AddCookie(c.session)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name != sessionCookieName {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			c.session = nil
		} else {
			c.session = cookie
		}
	}
	return rec
}

// signUp registers and logs in through the public routes.
func (c *client) signUp(username, email, password string) {
	c.t.Helper()
	rec := c.post("/register", url.Values{"username": {username}, "email": {email}, "password": {password}})
	require.Equal(c.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	rec = c.post("/login", url.Values{"email": {email}, "password": {password}})
	require.Equal(c.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.NotNil(c.t, c.session, "login must set a session cookie")
}

func listTasks(t *testing.T, h *Handler, owner int64) []*models.Task {
	t.Helper()
	tasks, err := h.TaskRepo.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	return tasks
}
