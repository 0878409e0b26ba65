package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsAllowedOrigin(t *testing.T) {
	allowed := []string{
		"http://localhost:9999",
		"http://localhost",
		"https://localhost:3000",
		"http://127.0.0.1:9999",
		"http://127.0.0.1",
		"http://[::1]:9999",
	}
	for _, origin := range allowed {
		if !isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = false, want true", origin)
		}
	}

	denied := []string{
		"https://evil.com",
		"http://localhost.evil.com",
		"http://192.168.1.1:9999",
		"",
		"ftp://localhost:3000",
		"http://localhost:not-a-port",
		"http://localhost:3000/path",
		"http://localhost:0",
		"http://user@localhost:3000",
	}
	for _, origin := range denied {
		if isAllowedOrigin(origin) {
			t.Errorf("isAllowedOrigin(%q) = true, want false", origin)
		}
	}
}

func TestIsLoopbackRemoteAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:12345", true},
		{"[::1]:12345", true},
		{"::1", true},
		{"[::1]", true},
		{"127.0.0.1", true},
		{"8.8.8.8:12345", false},
		{"192.168.1.1:8080", false},
		{"not-an-ip:1234", false},
		{"", false},
		{"garbage", false},
	}
	for _, tc := range cases {
		if got := isLoopbackRemoteAddr(tc.addr); got != tc.want {
			t.Errorf("isLoopbackRemoteAddr(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSAllowlist_AllowedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:9999")
	rr := httptest.NewRecorder()

	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:9999" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:9999")
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want %q", got, "Origin")
	}
}

func TestCORSAllowlist_ExtraOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://stash.lan:9999")
	rr := httptest.NewRecorder()

	CORSAllowlist("http://stash.lan:9999/")(okHandler()).ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://stash.lan:9999" {
		t.Errorf("ACAO = %q, want %q", got, "http://stash.lan:9999")
	}
}

func TestCORSAllowlist_DeniedOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (request still served, just no ACAO)", rr.Code, http.StatusOK)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("ACAO = %q, want empty for denied origin", got)
	}
}

func TestCORSAllowlist_DeniedPreflight(t *testing.T) {
	handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for denied preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/markers/m1/confirm", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	expectCode(t, rr, "FORBIDDEN")
}

func TestCORSAllowlist_AllowedPreflight(t *testing.T) {
	handler := CORSAllowlist()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called for preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/markers/m1", nil)
	req.Header.Set("Origin", "http://localhost:9999")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	for _, m := range []string{"GET", "POST", "PATCH", "DELETE"} {
		if !containsHeader(rr.Header().Get("Access-Control-Allow-Methods"), m) {
			t.Errorf("Access-Control-Allow-Methods missing %q", m)
		}
	}
	for _, h := range []string{"Authorization", "Content-Type", "X-Markerlane-Request-Id"} {
		if !containsHeader(rr.Header().Get("Access-Control-Allow-Headers"), h) {
			t.Errorf("Access-Control-Allow-Headers missing %q", h)
		}
	}
	if !containsHeader(rr.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID") {
		t.Error("Access-Control-Expose-Headers missing X-Request-ID")
	}
}

func TestCORSAllowlist_VaryIsAdditive(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:9999")
	rr := httptest.NewRecorder()
	rr.Header().Set("Vary", "Accept-Encoding")

	CORSAllowlist()(okHandler()).ServeHTTP(rr, req)

	vary := strings.Join(rr.Header().Values("Vary"), ",")
	if !containsHeader(vary, "Accept-Encoding") || !containsHeader(vary, "Origin") {
		t.Errorf("Vary = %q, want Accept-Encoding and Origin", vary)
	}
}

func containsHeader(headerVal, target string) bool {
	for _, part := range splitCSV(headerVal) {
		if part == target {
			return true
		}
	}
	return false
}

func TestLoopbackGuard(t *testing.T) {
	cases := []struct {
		addr string
		want int
	}{
		{"127.0.0.1:12345", http.StatusOK},
		{"[::1]:12345", http.StatusOK},
		{"8.8.8.8:12345", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/scenes", nil)
		req.RemoteAddr = tc.addr
		rr := httptest.NewRecorder()

		LoopbackGuard()(okHandler()).ServeHTTP(rr, req)

		if rr.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.addr, rr.Code, tc.want)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(RequestIDKey).(string)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Markerlane-Request-Id", "from-plugin")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if seen != "from-plugin" {
		t.Errorf("context request id = %q, want %q", seen, "from-plugin")
	}
	if got := rr.Header().Get("X-Request-ID"); got != "from-plugin" {
		t.Errorf("X-Request-ID = %q, want %q", got, "from-plugin")
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(seen) != 8 {
		t.Errorf("generated request id = %q, want 8 characters", seen)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/scenes", nil)
			req.RemoteAddr = "127.0.0.1:40000"
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			env.router.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newTestEnv(t)
	handler := RecoveryMiddleware(env.cfg.Logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	expectStatus(t, rr, http.StatusInternalServerError)
	expectCode(t, rr, "INTERNAL_ERROR")
}
