package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://blog.example"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://blog.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://blog.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://blog.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	wildcard := CORS([]string{"*"})(okHandler)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec = httptest.NewRecorder()
	wildcard.ServeHTTP(rec, req)
	assert.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientIP(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	resolve := func(remote string, headers map[string]string) string {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		var got string
		RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = ClientIP(r)
		})).ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "direct peer", remote: "198.51.100.9:4321", want: "198.51.100.9"},
		{name: "untrusted peer forwarding", remote: "198.51.100.9:4321", headers: map[string]string{"X-Forwarded-For": "10.9.9.1"}, want: "198.51.100.9"},
		{name: "untrusted peer real ip", remote: "198.51.100.9:4321", headers: map[string]string{"X-Real-IP": "172.16.0.1"}, want: "198.51.100.9"},
		{name: "trusted proxy real ip", remote: "10.0.0.5:4321", headers: map[string]string{"X-Real-IP": "172.16.0.1"}, want: "172.16.0.1"},
		{name: "trusted proxy forwarding", remote: "10.0.0.5:4321", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "spoofed leftmost hop", remote: "10.0.0.5:4321", headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.7"}, want: "203.0.113.7"},
		{name: "garbage header", remote: "10.0.0.5:4321", headers: map[string]string{"X-Forwarded-For": "anything"}, want: "10.0.0.5"},
		{name: "no port", remote: "pipe", want: "pipe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolve(tc.remote, tc.headers))
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.9:4321"
	req.Header.Set("X-Forwarded-For", "anything")
	assert.Equal(t, "198.51.100.9", ClientIP(req), "without RealIP only the peer counts")
}

func TestRateLimiterIgnoresForgedForwarding(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	handler := RealIP(nil)(limiter.Limit(okHandler))

	allowed := 0
	for i := range 5 {
		req := httptest.NewRequest(http.MethodPost, "/agree", nil)
		req.RemoteAddr = "198.51.100.9:1000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.9.9.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	handler := limiter.Limit(okHandler)

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/agree", nil)
		req.RemoteAddr = ip + ":1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("1.1.1.1").Code)
	assert.Equal(t, http.StatusOK, call("1.1.1.1").Code)

	rec := call("1.1.1.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusOK, call("2.2.2.2").Code, "buckets are per address")
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)
	limiter.Allow("old")
	limiter.buckets["old"].lastSeen = time.Now().Add(-time.Hour)
	time.Sleep(300 * time.Millisecond)

	limiter.Allow("fresh")
	limiter.Cleanup()

	assert.NotContains(t, limiter.buckets, "old")
	assert.Contains(t, limiter.buckets, "fresh")
}
