// Package http exposes the transaction store and the derived-data
// pipeline as a JSON API for the external dashboard frontend.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/pipeline"
	"bilancio/internal/store"
)

type Server struct {
	http.Server

	store *store.Store
	memo  *pipeline.Memo

	rateLimiter *ratelimit.Limiter
	cacheMgr    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and the middleware chain, returning a
// ready-to-run http.Server. The cache manager owns periodic cleanup of
// the memoized selector caches and is stopped on Shutdown.
func NewServer(addr string, st *store.Store, memo *pipeline.Memo) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:       st,
		memo:        memo,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		cacheMgr:    cache.NewManager(),
	}

	memo.RegisterWith(s.cacheMgr)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/transactions/", s.handleTransactionByID)
	mux.HandleFunc("/api/categories", s.handleCategories)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/charts/categories", s.handleCategoryChart)
	mux.HandleFunc("/api/charts/trend", s.handleTrend)
	mux.HandleFunc("/api/filters", s.handleFilters)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/errors/clear", s.handleClearError)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	traceMW := trace.NewMiddleware(trace.ExtractClientIP)
	headersMW := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limitMW := s.rateLimiter.Middleware(trace.ExtractClientIP)

	handler := traceMW.Middleware(headersMW.Middleware(limitMW(mux)))

	s.Server = http.Server{
		Addr:    addr,
		Handler: handler,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheMgr != nil {
			s.cacheMgr.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the initial load has completed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store.Snapshot().State != store.StateReady {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
