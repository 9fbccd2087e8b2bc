package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/hoteladmin/internal/model"
)

type mockGateRecorder struct {
	decisions []string
}

func (m *mockGateRecorder) RecordGateDecision(decision string) {
	m.decisions = append(m.decisions, decision)
}

func stateWithRole(role model.Role) model.AuthState {
	return model.AuthState{
		Session:   &model.Session{ID: "sess-1", Email: "user@hotel.com.tn"},
		AdminUser: &model.AdminUser{Email: "user@hotel.com.tn", Role: role},
	}
}

func serveGate(t *testing.T, config GateConfig, state model.AuthState, path string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	handler := NewGateMiddleware(config)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(ContextWithAuthState(req.Context(), state))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, called
}

func TestGateMiddleware_HTMLDecisions(t *testing.T) {
	tests := []struct {
		name         string
		state        model.AuthState
		path         string
		wantCalled   bool
		wantLocation string
	}{
		{"anonymous", model.AuthState{}, "/", false, "/login"},
		{"session without role", model.AuthState{Session: &model.Session{ID: "s"}}, "/", false, "/access-denied"},
		{"staff on dashboard", stateWithRole(model.RoleStaff), "/", true, ""},
		{"staff on reservations", stateWithRole(model.RoleStaff), "/reservations", false, "/access-denied"},
		{"staff on booking detail", stateWithRole(model.RoleStaff), "/reservations/b-1", false, "/access-denied"},
		{"manager on reservations", stateWithRole(model.RoleManager), "/reservations/b-1", true, ""},
		{"manager on users", stateWithRole(model.RoleManager), "/users", false, "/access-denied"},
		{"admin on users", stateWithRole(model.RoleAdmin), "/users", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, called := serveGate(t, GateConfig{}, tt.state, tt.path)

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantLocation == "" {
				return
			}
			if w.Code != http.StatusSeeOther {
				t.Errorf("status = %d, want %d", w.Code, http.StatusSeeOther)
			}
			if got := w.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestGateMiddleware_Loading_RendersWaitWithoutRedirect(t *testing.T) {
	onWait := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wait page"))
	})

	w, called := serveGate(t, GateConfig{OnWait: onWait}, model.AuthState{Loading: true}, "/reservations")

	if called {
		t.Fatal("protected handler should not be called while loading")
	}
	if w.Header().Get("Location") != "" {
		t.Error("loading state should not redirect")
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}
	if !strings.Contains(w.Body.String(), "wait page") {
		t.Errorf("body = %q, want wait page", w.Body.String())
	}
}

func TestGateMiddleware_JSON(t *testing.T) {
	sectionPath := func(r *http.Request) string {
		return "/reservations"
	}

	tests := []struct {
		name       string
		state      model.AuthState
		wantStatus int
		wantCode   string
	}{
		{"anonymous", model.AuthState{}, http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"no role", model.AuthState{Session: &model.Session{ID: "s"}}, http.StatusForbidden, model.ErrCodeForbidden},
		{"staff", stateWithRole(model.RoleStaff), http.StatusForbidden, model.ErrCodeForbidden},
		{"loading", model.AuthState{Loading: true}, http.StatusServiceUnavailable, "SESSION_LOADING"},
		{"manager", stateWithRole(model.RoleManager), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := serveGate(t, GateConfig{JSON: true, SectionPath: sectionPath}, tt.state, "/api/bookings")

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				return
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestGateMiddleware_RecordsDecision(t *testing.T) {
	recorder := &mockGateRecorder{}
	config := GateConfig{Recorder: recorder}

	serveGate(t, config, stateWithRole(model.RoleAdmin), "/")
	serveGate(t, config, model.AuthState{}, "/")
	serveGate(t, config, model.AuthState{Loading: true}, "/")

	want := []string{"render", "redirect", "wait"}
	if len(recorder.decisions) != len(want) {
		t.Fatalf("decisions = %v, want %v", recorder.decisions, want)
	}
	for i := range want {
		if recorder.decisions[i] != want[i] {
			t.Errorf("decisions[%d] = %q, want %q", i, recorder.decisions[i], want[i])
		}
	}
}
