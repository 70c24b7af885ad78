package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/api/middleware"
	"github.com/videotube/account-service/internal/core/domain"
	"github.com/videotube/account-service/internal/core/ports"
	"github.com/videotube/account-service/internal/core/service"
)

// memUserRepo is an in-memory UserRepository with the same atomicity
// guarantees the Mongo adapter provides.
type memUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func clone(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	c := clone(user)
	c.ID = fmt.Sprintf("mem-%d", r.nextID)
	r.users[c.ID] = c
	return clone(c), nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return clone(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) FindByUsernameOrEmail(_ context.Context, username, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username || u.Email == email {
			return clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memUserRepo) SetRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RefreshToken = token
	return nil
}

func (r *memUserRepo) RotateRefreshToken(_ context.Context, id, current, next string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	if u.RefreshToken != current {
		return domain.ErrRefreshReused
	}
	u.RefreshToken = next
	return nil
}

func (r *memUserRepo) ClearRefreshToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.RefreshToken = ""
	}
	return nil
}

func (r *memUserRepo) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *memUserRepo) UpdateFullName(_ context.Context, id, fullName string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.FullName = fullName
	return clone(u), nil
}

func (r *memUserRepo) UpdateAvatarURL(_ context.Context, id, url string) (*domain.User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, "", domain.ErrUserNotFound
	}
	prevURL := u.AvatarURL
	u.AvatarURL = url
	u.UpdatedAt = time.Now()
	return clone(u), prevURL, nil
}

func (r *memUserRepo) UpdateCoverURL(_ context.Context, id, url string) (*domain.User, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, "", domain.ErrUserNotFound
	}
	prevURL := u.CoverURL
	u.CoverURL = url
	u.UpdatedAt = time.Now()
	return clone(u), prevURL, nil
}

type memAssetStore struct {
	mu      sync.Mutex
	uploads int
}

func (s *memAssetStore) Upload(_ context.Context, _ ports.AssetUpload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	return fmt.Sprintf("https://assets.test/obj-%d", s.uploads), nil
}

func (s *memAssetStore) Remove(_ context.Context, _ string) error { return nil }

// newTestServer wires real service, handlers, middleware and error handler
// over in-memory infrastructure.
func newTestServer() *echo.Echo {
	tokens := service.NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour)
	userService := service.NewUserService(newMemUserRepo(), tokens, &memAssetStore{}, nil, nil, zerolog.Nop())
	userHandler := handler.NewUserHandler(userService)
	authRequired := middleware.Auth(tokens)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop())

	users := e.Group("/api/v1/users")
	users.POST("/register", userHandler.Register)
	users.POST("/login", userHandler.Login)
	users.POST("/refresh-token", userHandler.RefreshToken)
	users.POST("/logout", userHandler.Logout, authRequired)
	users.GET("/current-user", userHandler.CurrentUser, authRequired)

	return e
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v (%s)", err, rec.Body.String())
	}
	return body
}

func registerForm(t *testing.T, username, fullName, email, password string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"username": username,
		"fullName": fullName,
		"email":    email,
		"password": password,
	} {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := w.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.Copy(fw, strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestSessionLifecycleScenario(t *testing.T) {
	e := newTestServer()

	// 1. Register.
	body, contentType := registerForm(t, "alice", "Alice A", "a@x.com", "pw123")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := do(e, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	registered := decode(t, rec)
	user, _ := registered["data"].(map[string]any)
	if user["username"] != "alice" {
		t.Fatalf("register: unexpected user: %v", user)
	}
	for _, forbidden := range []string{"password", "passwordHash", "refreshToken"} {
		if _, ok := user[forbidden]; ok {
			t.Fatalf("register: %s leaked in response", forbidden)
		}
	}

	// 2. Login: two session cookies, no refresh token on the embedded user.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"email":"a@x.com","username":"alice","password":"pw123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = do(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	var accessCookie, refreshCookie *http.Cookie
	for _, ck := range cookies {
		switch ck.Name {
		case "accessToken":
			accessCookie = ck
		case "refreshToken":
			refreshCookie = ck
		}
	}
	if accessCookie == nil || refreshCookie == nil {
		t.Fatalf("login: expected both session cookies, got %v", cookies)
	}
	loginBody := decode(t, rec)
	loginData, _ := loginBody["data"].(map[string]any)
	loginUser, _ := loginData["user"].(map[string]any)
	if _, ok := loginUser["refreshToken"]; ok {
		t.Fatalf("login: refreshToken leaked on embedded user")
	}
	t1, _ := loginData["refreshToken"].(string)
	if t1 == "" || t1 != refreshCookie.Value {
		t.Fatalf("login: body refresh token must match cookie")
	}

	// 3. Refresh with T1 yields a fresh pair.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: t1})
	rec = do(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	refreshData, _ := decode(t, rec)["data"].(map[string]any)
	t2, _ := refreshData["refreshToken"].(string)
	if t2 == "" || t2 == t1 {
		t.Fatalf("refresh: expected a rotated token")
	}

	// 4. Replay of T1 is rejected.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: t1})
	rec = do(e, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replay: expected 401, got %d (%s)", rec.Code, rec.Body.String())
	}
	replay := decode(t, rec)
	if replay["success"] != false || replay["message"] != "refresh token is expired or used" {
		t.Fatalf("replay: unexpected envelope: %v", replay)
	}

	// 5. T2 still works.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: t2})
	rec = do(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh with t2: expected 200, got %d", rec.Code)
	}

	// 6. Current user via access cookie.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessCookie.Value})
	rec = do(e, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("current-user: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// 7. Logout twice: both succeed.
	for i := 0; i < 2; i++ {
		req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: accessCookie.Value})
		rec = do(e, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("logout %d: expected 200, got %d (%s)", i+1, rec.Code, rec.Body.String())
		}
	}
}

func TestRegisterConflictEnvelope(t *testing.T) {
	e := newTestServer()

	body, contentType := registerForm(t, "alice", "Alice A", "a@x.com", "pw123")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	if rec := do(e, req); rec.Code != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", rec.Code)
	}

	// Same email, different username.
	body, contentType = registerForm(t, "bob", "Bob B", "a@x.com", "pw456")
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := do(e, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", rec.Code, rec.Body.String())
	}
	envelope := decode(t, rec)
	if envelope["success"] != false || envelope["statusCode"] != float64(http.StatusConflict) {
		t.Fatalf("unexpected failure envelope: %v", envelope)
	}
	if _, ok := envelope["errors"].([]any); !ok {
		t.Fatalf("failure envelope missing errors array: %v", envelope)
	}
}

func TestExpiredRefreshIsForbidden(t *testing.T) {
	tokens := service.NewTokenService("access-secret", "refresh-secret", time.Minute, -time.Minute)
	repo := newMemUserRepo()
	userService := service.NewUserService(repo, tokens, &memAssetStore{}, nil, nil, zerolog.Nop())
	userHandler := handler.NewUserHandler(userService)

	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(zerolog.Nop())
	e.POST("/api/v1/users/refresh-token", userHandler.RefreshToken)

	expired, err := tokens.IssueRefreshToken("mem-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: expired})
	rec := do(e, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for expired refresh token, got %d (%s)", rec.Code, rec.Body.String())
	}
}
