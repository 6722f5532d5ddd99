package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)

	if rl == nil {
		t.Fatal("NewRateLimiter returned nil")
	}
	if rl.rate != rate.Limit(10) {
		t.Errorf("Expected rate 10, got %v", rl.rate)
	}
	if rl.burst != 20 {
		t.Errorf("Expected burst 20, got %d", rl.burst)
	}
	if rl.visitors == nil {
		t.Error("Visitors map should be initialized")
	}
}

func TestGetLimiter(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)
	now := time.Now()

	limiter1 := rl.getLimiter("192.168.1.1", now)
	if limiter1 == nil {
		t.Fatal("getLimiter returned nil")
	}

	limiter2 := rl.getLimiter("192.168.1.1", now)
	if limiter1 != limiter2 {
		t.Error("getLimiter should return the same limiter for the same IP")
	}

	limiter3 := rl.getLimiter("192.168.1.2", now)
	if limiter1 == limiter3 {
		t.Error("getLimiter should return different limiters for different IPs")
	}
}

func TestPruneIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(10), 20)
	start := time.Now()

	for i := 0; i < 100; i++ {
		rl.getLimiter(fmt.Sprintf("10.0.0.%d", i), start)
	}
	// one client keeps talking
	rl.getLimiter("10.0.0.7", start.Add(9*time.Minute))

	if remaining := rl.prune(start.Add(5*time.Minute), limiterIdle); remaining != 100 {
		t.Errorf("Expected 100 visitors before the idle timeout, got %d", remaining)
	}
	if remaining := rl.prune(start.Add(11*time.Minute), limiterIdle); remaining != 1 {
		t.Errorf("Expected 1 visitor after the idle timeout, got %d", remaining)
	}
	if _, ok := rl.visitors["10.0.0.7"]; !ok {
		t.Error("Expected the active visitor to survive pruning")
	}
}

func limitedRouter(rl *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(RateLimitMiddleware(rl))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func get(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = remoteAddr
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		requestCount   int
		rateLimit      rate.Limit
		burst          int
		expectedStatus int
	}{
		{"under limit", 5, rate.Limit(10), 10, http.StatusOK},
		{"at burst limit", 10, rate.Limit(1), 10, http.StatusOK},
		{"over limit", 15, rate.Limit(1), 10, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := limitedRouter(NewRateLimiter(tt.rateLimit, tt.burst))

			var lastStatus int
			for i := 0; i < tt.requestCount; i++ {
				lastStatus = get(router, "192.168.1.100:12345").Code
			}

			if lastStatus != tt.expectedStatus {
				t.Errorf("Expected final status %d, got %d", tt.expectedStatus, lastStatus)
			}
		})
	}
}

func TestRateLimitMiddlewareErrorResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := limitedRouter(NewRateLimiter(rate.Limit(1), 1))

	if w := get(router, "192.168.1.100:12345"); w.Code != http.StatusOK {
		t.Errorf("First request should succeed, got status %d", w.Code)
	}

	w := get(router, "192.168.1.100:12345")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be rate limited, got status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Rate limit exceeded") {
		t.Errorf("Expected rate limit error message, got: %s", w.Body.String())
	}
}

func TestRateLimitMiddlewareDifferentIPs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := limitedRouter(NewRateLimiter(rate.Limit(1), 1))

	if w := get(router, "192.168.1.1:12345"); w.Code != http.StatusOK {
		t.Errorf("First IP should succeed, got status %d", w.Code)
	}
	if w := get(router, "192.168.1.2:12345"); w.Code != http.StatusOK {
		t.Errorf("Second IP should succeed, got status %d", w.Code)
	}
}

func TestRateLimitMiddlewareRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := limitedRouter(NewRateLimiter(rate.Limit(10), 1))

	get(router, "192.168.1.1:12345")
	if w := get(router, "192.168.1.1:12345"); w.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be rate limited, got status %d", w.Code)
	}

	// one token every 100ms
	time.Sleep(150 * time.Millisecond)

	if w := get(router, "192.168.1.1:12345"); w.Code != http.StatusOK {
		t.Errorf("Request after waiting should succeed, got status %d", w.Code)
	}
}

func TestMaxBytesMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		maxBytes       int64
		bodySize       int
		chunked        bool
		expectedStatus int
	}{
		{"under limit", 1024, 512, false, http.StatusOK},
		{"at limit", 1024, 1024, false, http.StatusOK},
		{"over limit by content-length", 1024, 2048, false, http.StatusRequestEntityTooLarge},
		{"over limit without content-length", 1024, 2048, true, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(MaxBytesMiddleware(tt.maxBytes))
			router.POST("/test", func(c *gin.Context) {
				if _, err := c.GetRawData(); err != nil {
					c.Status(http.StatusRequestEntityTooLarge)
					return
				}
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", tt.bodySize)))
			if tt.chunked {
				req.ContentLength = -1
			}
			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

func TestMaxBytesMiddlewareErrorMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(MaxBytesMiddleware(100))
	router.POST("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 200)))
	router.ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Request body too large") {
		t.Errorf("Expected error message about body size, got: %s", w.Body.String())
	}
}
