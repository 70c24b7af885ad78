package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type stubVerifier struct {
	verifyFn func(token string) (string, error)
}

func (s *stubVerifier) VerifyAccess(token string) (string, error) {
	return s.verifyFn(token)
}

func runAuth(t *testing.T, verifier AccessVerifier, decorate func(*http.Request)) (echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	next := func(c echo.Context) error { return nil }
	err := Auth(verifier)(next)(c)
	return c, err
}

func TestAuth_MissingToken(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(string) (string, error) {
		t.Fatalf("verifier should not be called")
		return "", nil
	}}

	_, err := runAuth(t, verifier, nil)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuth_CookieToken(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(token string) (string, error) {
		if token != "tok-1" {
			t.Fatalf("unexpected token: %q", token)
		}
		return "user-1", nil
	}}

	c, err := runAuth(t, verifier, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "tok-1"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := c.Get("user_id").(string); got != "user-1" {
		t.Fatalf("expected user_id in context, got %q", got)
	}
}

func TestAuth_BearerToken(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(token string) (string, error) {
		if token != "tok-2" {
			t.Fatalf("unexpected token: %q", token)
		}
		return "user-2", nil
	}}

	c, err := runAuth(t, verifier, func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer tok-2")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := c.Get("user_id").(string); got != "user-2" {
		t.Fatalf("expected user_id in context, got %q", got)
	}
}

func TestAuth_CookiePreferredOverHeader(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(token string) (string, error) {
		if token != "cookie-tok" {
			t.Fatalf("expected cookie token to win, got %q", token)
		}
		return "user-1", nil
	}}

	_, err := runAuth(t, verifier, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-tok"})
		req.Header.Set("Authorization", "Bearer header-tok")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(string) (string, error) {
		return "", errors.New("bad signature")
	}}

	_, err := runAuth(t, verifier, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: "tampered"})
	})

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	verifier := &stubVerifier{verifyFn: func(string) (string, error) {
		t.Fatalf("verifier should not be called")
		return "", nil
	}}

	_, err := runAuth(t, verifier, func(req *http.Request) {
		req.Header.Set("Authorization", "Token abc")
	})

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
