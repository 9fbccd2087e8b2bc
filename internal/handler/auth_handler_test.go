package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/hoteladmin/internal/identity"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/model"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginPage_Anonymous_RendersForm(t *testing.T) {
	router := createTestRouter(t, testRouterOptions{})

	rec := serve(router, newRequest(http.MethodGet, "/login", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `name="password"`) {
		t.Error("password field should be rendered in password mode")
	}
	if !strings.Contains(body, `name="csrf_token"`) {
		t.Error("form should embed the csrf token")
	}
	if strings.Contains(body, "Se déconnecter") {
		t.Error("login page should not render the admin navigation")
	}
}

func TestLoginPage_MagicMode_HidesPassword(t *testing.T) {
	router := createTestRouter(t, testRouterOptions{})

	rec := serve(router, newRequest(http.MethodGet, "/login?mode=magic", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if strings.Contains(rec.Body.String(), `name="password"`) {
		t.Error("password field should not be rendered in magic link mode")
	}
}

func TestLoginPage_SignedIn_RedirectsByRole(t *testing.T) {
	tests := []struct {
		name   string
		state  model.AuthState
		target string
	}{
		{"admin", adminState("s1", model.RoleAdmin), "/"},
		{"no role", model.AuthState{Session: &model.Session{ID: "s1"}}, "/access-denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := createTestRouter(t, testRouterOptions{
				states: map[string]model.AuthState{"s1": tt.state},
			})

			rec := serve(router, newRequest(http.MethodGet, "/login", "s1"))

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
			}
			if loc := rec.Header().Get("Location"); loc != tt.target {
				t.Errorf("Location = %q, want %q", loc, tt.target)
			}
		})
	}
}

func TestLoginPage_Loading_RendersWaitPage(t *testing.T) {
	router := createTestRouter(t, testRouterOptions{
		states: map[string]model.AuthState{"s1": {Loading: true}},
	})

	rec := serve(router, newRequest(http.MethodGet, "/login", "s1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), `http-equiv="refresh"`) {
		t.Error("wait page should refresh itself")
	}
}

func TestLoginSubmit_Password_SetsCookieAndRedirects(t *testing.T) {
	var gotEmail, gotPassword string
	authSvc := &mockAuthService{
		signInWithPasswordFn: func(_ context.Context, email, password string) (*model.Session, error) {
			gotEmail, gotPassword = email, password
			return &model.Session{ID: "fresh-session", Email: email}, nil
		},
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	form := url.Values{"mode": {"password"}, "email": {"admin@hotel.com.tn"}, "password": {"secret123"}}
	rec := serve(router, newFormRequest("/login", "", form))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
	if gotEmail != "admin@hotel.com.tn" || gotPassword != "secret123" {
		t.Errorf("credentials = (%q, %q)", gotEmail, gotPassword)
	}
	cookie := findCookie(rec.Result(), middleware.SessionCookieName)
	if cookie == nil || cookie.Value != "fresh-session" {
		t.Fatalf("session cookie = %+v, want value fresh-session", cookie)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
}

func TestLoginSubmit_PasswordFailure_ShowsProviderMessage(t *testing.T) {
	authSvc := &mockAuthService{
		signInWithPasswordFn: func(context.Context, string, string) (*model.Session, error) {
			return nil, &identity.AuthError{StatusCode: http.StatusBadRequest, Message: "Invalid login credentials"}
		},
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	form := url.Values{"mode": {"password"}, "email": {"admin@hotel.com.tn"}, "password": {"wrongpass"}}
	rec := serve(router, newFormRequest("/login", "", form))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Invalid login credentials") {
		t.Error("provider message should be displayed inline")
	}
	if !strings.Contains(body, `value="admin@hotel.com.tn"`) {
		t.Error("email should be kept in the form")
	}
	if findCookie(rec.Result(), middleware.SessionCookieName) != nil {
		t.Error("session cookie should not be set on failure")
	}
}

func TestLoginSubmit_MagicLink_ShowsNotice(t *testing.T) {
	var gotEmail string
	authSvc := &mockAuthService{
		signInWithMagicLinkFn: func(_ context.Context, email string) error {
			gotEmail = email
			return nil
		},
		signInWithPasswordFn: func(context.Context, string, string) (*model.Session, error) {
			t.Error("password sign-in should not be called in magic link mode")
			return nil, errors.New("unexpected")
		},
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	form := url.Values{"mode": {"magic"}, "email": {"manager@hotel.com.tn"}}
	rec := serve(router, newFormRequest("/login", "", form))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotEmail != "manager@hotel.com.tn" {
		t.Errorf("magic link email = %q", gotEmail)
	}
	if !strings.Contains(rec.Body.String(), "Un lien de connexion vient") {
		t.Error("notice should be displayed after sending the link")
	}
}

func TestLoginSubmit_WithoutCSRFToken_Rejected(t *testing.T) {
	authSvc := &mockAuthService{
		signInWithPasswordFn: func(context.Context, string, string) (*model.Session, error) {
			t.Error("sign-in should not be reached without a csrf token")
			return nil, errors.New("unexpected")
		},
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	form := url.Values{"email": {"admin@hotel.com.tn"}, "password": {"secret123"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(router, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestCallback_Success_SetsCookie(t *testing.T) {
	var gotHash, gotType string
	authSvc := &mockAuthService{
		completeMagicLinkFn: func(_ context.Context, tokenHash, otpType string) (*model.Session, error) {
			gotHash, gotType = tokenHash, otpType
			return &model.Session{ID: "magic-session"}, nil
		},
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	rec := serve(router, newRequest(http.MethodGet, "/auth/callback?token_hash=abc", ""))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want %q", loc, "/")
	}
	if gotHash != "abc" || gotType != "magiclink" {
		t.Errorf("callback args = (%q, %q), want (abc, magiclink)", gotHash, gotType)
	}
	if c := findCookie(rec.Result(), middleware.SessionCookieName); c == nil || c.Value != "magic-session" {
		t.Errorf("session cookie = %+v", c)
	}
}

func TestCallback_Failure_RedirectsToLogin(t *testing.T) {
	authSvc := &mockAuthService{
		completeMagicLinkFn: func(context.Context, string, string) (*model.Session, error) {
			return nil, errors.New("otp expired")
		},
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	rec := serve(router, newRequest(http.MethodGet, "/auth/callback?token_hash=old", ""))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?error=link" {
		t.Errorf("Location = %q, want %q", loc, "/login?error=link")
	}
}

func TestLogout_SignsOutAndClearsCookie(t *testing.T) {
	var signedOut string
	authSvc := &mockAuthService{
		signOutFn: func(_ context.Context, sessionID string) error {
			signedOut = sessionID
			return nil
		},
	}
	router := createTestRouter(t, testRouterOptions{
		states: map[string]model.AuthState{"s1": adminState("s1", model.RoleAdmin)},
		auth:   authSvc,
	})

	rec := serve(router, newFormRequest("/logout", "s1", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
	if signedOut != "s1" {
		t.Errorf("signed out session = %q, want s1", signedOut)
	}
	c := findCookie(rec.Result(), middleware.SessionCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestLogout_SignOutError_StillClearsCookie(t *testing.T) {
	authSvc := &mockAuthService{
		signOutFn: func(context.Context, string) error { return errors.New("provider down") },
	}
	router := createTestRouter(t, testRouterOptions{auth: authSvc})

	rec := serve(router, newFormRequest("/logout", "s1", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if c := findCookie(rec.Result(), middleware.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("session cookie should be cleared, got %+v", c)
	}
}

func TestAccessDenied_RendersWithoutMenu(t *testing.T) {
	router := createTestRouter(t, testRouterOptions{
		states: map[string]model.AuthState{"s1": {Session: &model.Session{ID: "s1", Email: "guest@example.tn"}}},
	})

	rec := serve(router, newRequest(http.MethodGet, "/access-denied", "s1"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if strings.Contains(rec.Body.String(), "Tableau de bord") {
		t.Error("access denied page should not render the menu")
	}
}
