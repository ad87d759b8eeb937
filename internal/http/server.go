package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"bugetar/internal/cache"
	applog "bugetar/internal/log"
	"bugetar/internal/services"
)

type Server struct {
	http.Server

	transactions *services.TransactionService
	insights     *services.InsightService
	targets      *services.TargetService
	accountants  *services.AccountantService

	rateLimiter *rateLimiter

	// insightCache holds marshaled insight responses keyed by scope and
	// route. Entries age out via TTL; recording a transaction purges it.
	insightCache *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	log *applog.Logger

	shutdownOnce sync.Once
}

// Options tunes the server's caching behavior.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

func DefaultOptions() Options {
	return Options{CacheSize: 256, CacheTTL: time.Minute}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(
	addr string,
	transactions *services.TransactionService,
	insights *services.InsightService,
	targets *services.TargetService,
	accountants *services.AccountantService,
	opts Options,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		transactions: transactions,
		insights:     insights,
		targets:      targets,
		accountants:  accountants,
		rateLimiter:  newRateLimiter(),
		log:          applog.Default(applog.ComponentHTTP),
		insightCache: cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.insightCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/api/transactions", s.withMiddleware(s.handleTransactions))

	mux.HandleFunc("/api/insights/summary", s.withMiddleware(s.cached(s.handleSummary)))
	mux.HandleFunc("/api/insights/trends", s.withMiddleware(s.cached(s.handleTrends)))
	mux.HandleFunc("/api/insights/forecasts", s.withMiddleware(s.cached(s.handleForecasts)))
	mux.HandleFunc("/api/insights/anomalies", s.withMiddleware(s.cached(s.handleAnomalies)))
	mux.HandleFunc("/api/insights/behavior", s.withMiddleware(s.cached(s.handleBehavior)))
	mux.HandleFunc("/api/insights/patterns", s.withMiddleware(s.cached(s.handlePatterns)))
	mux.HandleFunc("/api/insights/optimize", s.withMiddleware(s.handleOptimize))

	mux.HandleFunc("/api/targets", s.withMiddleware(s.handleTargets))
	mux.HandleFunc("/api/targets/status", s.withMiddleware(s.handleTargetStatus))

	mux.HandleFunc("/api/accountants/associate", s.withMiddleware(s.handleAssociate))
	mux.HandleFunc("/api/accountants/", s.withMiddleware(s.handleAccountantBusinesses))

	// Every request carries a context logger stamped with its request ID, so
	// handlers and services log through applog.FromContext without threading
	// the ID by hand.
	s.Server.Handler = applog.Middleware(s.log)(applog.RequestIDMiddleware(requestIDFromRequest)(mux))

	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds security headers, rate limiting and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		r = r.WithContext(ctx)

		logger := applog.FromContext(ctx)
		logger.InfoContext(ctx, "Request started",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP)

		// Rate limit writes only
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logger.InfoContext(ctx, "Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds())
	}
}

// requestTimeout bounds storage and analytics work per request. The goal
// search carries its own shorter deadline inside this one.
const requestTimeout = 7 * time.Second

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestIDFromRequest honors an upstream X-Request-ID when the gateway set
// one and mints a fresh ID otherwise.
func requestIDFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); id != "" {
		return id
	}
	return generateRequestID()
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.insights == nil || s.transactions == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}
