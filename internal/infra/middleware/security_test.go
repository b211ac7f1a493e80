package middleware

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/setgpio", nil)
	w := httptest.NewRecorder()

	SecurityHeaders(okHandler()).ServeHTTP(w, req)

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Content-Security-Policy": dashboardCSP,
		"Referrer-Policy":         "strict-origin-when-cross-origin",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("Header %s = %q, want %q", header, got, want)
		}
	}
	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS header should not be set without TLS, got: %q", hsts)
	}
}

func TestSecurityHeaders_HSTS_WithTLS(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.TLS = &tls.ConnectionState{}
	w := httptest.NewRecorder()

	SecurityHeaders(okHandler()).ServeHTTP(w, req)

	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestRateLimit_AllowsBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{RequestsPerMin: 60, BurstSize: 10})(okHandler())

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/readgpio", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("Request %d: got status %d, want %d", i+1, w.Code, http.StatusOK)
		}
	}
}

func TestRateLimit_BlocksExcessiveTraffic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{RequestsPerMin: 6, BurstSize: 3})(okHandler())

	var ok, blocked int
	var lastBody string
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/setgpio", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		switch w.Code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			blocked++
			lastBody = w.Body.String()
		}
	}

	if ok != 3 || blocked != 7 {
		t.Errorf("ok=%d blocked=%d, want 3 and 7", ok, blocked)
	}
	if !strings.Contains(lastBody, `"status":"failure"`) {
		t.Errorf("blocked body = %q, want failure JSON", lastBody)
	}
}

func TestRateLimit_SeparatesClientsByIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{RequestsPerMin: 6, BurstSize: 2})(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	send("192.168.1.1:1000")
	send("192.168.1.1:1000")
	if code := send("192.168.1.1:1000"); code != http.StatusTooManyRequests {
		t.Errorf("third request from client 1 = %d, want 429", code)
	}
	if code := send("192.168.1.2:1000"); code != http.StatusOK {
		t.Errorf("client 2 = %d, want 200", code)
	}
}

func TestClientIP(t *testing.T) {
	trusted := parseTrusted([]string{"10.0.0.1", "172.16.0.0/12"})

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		nets   bool
		want   string
	}{
		{"no proxies ignores XFF", "203.0.113.9:4000", "1.2.3.4", "", false, "203.0.113.9"},
		{"untrusted peer ignores XFF", "192.168.1.50:4000", "1.2.3.4", "", true, "192.168.1.50"},
		{"trusted IP uses first XFF hop", "10.0.0.1:4000", "203.0.113.1, 198.51.100.1", "", true, "203.0.113.1"},
		{"trusted CIDR uses XFF", "172.20.1.1:4000", "203.0.113.7", "", true, "203.0.113.7"},
		{"trusted falls back to X-Real-IP", "10.0.0.1:4000", "", "198.51.100.2", true, "198.51.100.2"},
		{"trusted without headers", "10.0.0.1:4000", "", "", true, "10.0.0.1"},
		{"ipv6 peer", "[2001:db8::1]:4000", "", "", false, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			nets := trusted
			if !tt.nets {
				nets = nil
			}
			if got := clientIP(req, nets); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrustedSkipsGarbage(t *testing.T) {
	nets := parseTrusted([]string{"bogus", "10.0.0.0/8", "::1"})
	if len(nets) != 2 {
		t.Fatalf("len = %d, want 2", len(nets))
	}
}
