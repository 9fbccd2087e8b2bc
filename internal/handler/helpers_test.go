package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/hoteladmin/internal/booking"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/model"
)

// --- Mock: AuthResolver ---

type mockAuthResolver struct {
	states map[string]model.AuthState
}

func (m *mockAuthResolver) Resolve(_ context.Context, sessionID string) model.AuthState {
	return m.states[sessionID]
}

// --- Mock: AuthServiceInterface ---

type mockAuthService struct {
	signInWithPasswordFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signInWithMagicLinkFn func(ctx context.Context, email string) error
	completeMagicLinkFn   func(ctx context.Context, tokenHash, otpType string) (*model.Session, error)
	signOutFn             func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInWithPasswordFn != nil {
		return m.signInWithPasswordFn(ctx, email, password)
	}
	return &model.Session{ID: "new-session", Email: email}, nil
}

func (m *mockAuthService) SignInWithMagicLink(ctx context.Context, email string) error {
	if m.signInWithMagicLinkFn != nil {
		return m.signInWithMagicLinkFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) CompleteMagicLink(ctx context.Context, tokenHash, otpType string) (*model.Session, error) {
	if m.completeMagicLinkFn != nil {
		return m.completeMagicLinkFn(ctx, tokenHash, otpType)
	}
	return &model.Session{ID: "magic-session"}, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, sessionID string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, sessionID)
	}
	return nil
}

// --- Mock: BookingServiceInterface ---

type mockBookingService struct {
	listFn         func(ctx context.Context, token string, filters model.BookingFilters, page int) (*booking.ListResult, error)
	getFn          func(ctx context.Context, token, id string) (*booking.Detail, error)
	updateStatusFn func(ctx context.Context, token, id string, status model.BookingStatus) error
	summarizeFn    func(ctx context.Context, token string) (*booking.Summary, error)
}

func (m *mockBookingService) List(ctx context.Context, token string, filters model.BookingFilters, page int) (*booking.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, token, filters, page)
	}
	return &booking.ListResult{Filters: filters, Pagination: booking.NewPagination(0, page, 10)}, nil
}

func (m *mockBookingService) Get(ctx context.Context, token, id string) (*booking.Detail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, token, id)
	}
	return nil, model.NewBookingNotFoundError(id)
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, token, id string, status model.BookingStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, token, id, status)
	}
	return nil
}

func (m *mockBookingService) Summarize(ctx context.Context, token string) (*booking.Summary, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, token)
	}
	return &booking.Summary{}, nil
}

// --- テスト用ヘルパー ---

const testCSRFToken = "test-csrf-token"

// adminState は指定ロールでログイン済みの認証状態を返す。
func adminState(sessionID string, role model.Role) model.AuthState {
	return model.AuthState{
		Session: &model.Session{
			ID:          sessionID,
			Email:       string(role) + "@hotel.com.tn",
			AccessToken: "token-" + sessionID,
		},
		AdminUser: &model.AdminUser{Email: string(role) + "@hotel.com.tn", Role: role},
	}
}

// testRouterOptions はcreateTestRouterに渡すモックの組み合わせ。
type testRouterOptions struct {
	states   map[string]model.AuthState
	auth     *mockAuthService
	bookings *mockBookingService
}

// createTestRouter はモックで依存を差し替えたルーターを生成する。
func createTestRouter(t *testing.T, opts testRouterOptions) http.Handler {
	t.Helper()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}

	if opts.auth == nil {
		opts.auth = &mockAuthService{}
	}
	if opts.bookings == nil {
		opts.bookings = &mockBookingService{}
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Renderer:          renderer,
		AuthResolver:      &mockAuthResolver{states: opts.states},
		RateLimiter:       rl,
		CORSAllowedOrigin: "http://localhost:5173",
		AuthService:       opts.auth,
		BookingService:    opts.bookings,
		Views:             booking.NewViews(opts.bookings.List, 0),
	})
}

// newRequest はセッションCookieを付けたリクエストを生成する。
func newRequest(method, target, sessionID string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	return req
}

// newFormRequest はCSRFトークン付きのフォーム送信リクエストを生成する。
func newFormRequest(target, sessionID string, form url.Values) *http.Request {
	if form == nil {
		form = url.Values{}
	}
	form.Set(middleware.CSRFFormField, testCSRFToken)

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	return req
}

// newJSONRequest はCSRFヘッダー付きのJSONリクエストを生成する。
func newJSONRequest(method, target, sessionID, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func strPtr(s string) *string { return &s }

func statusPtr(s model.BookingStatus) *model.BookingStatus { return &s }

// sampleBooking はテスト用の予約を返す。
func sampleBooking(id string) *model.Booking {
	total := 450.0
	return &model.Booking{
		ID:                  id,
		Status:              statusPtr(model.BookingStatusPending),
		GuestName:           strPtr("Amira Ben Salah"),
		GuestEmail:          strPtr("amira@example.tn"),
		CheckIn:             strPtr("2026-07-01"),
		CheckOut:            strPtr("2026-07-05"),
		TotalAmount:         &total,
		GuestWhatsAppNumber: strPtr("+216 20 123 456"),
	}
}
