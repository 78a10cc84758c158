// Package admin exposes a small plain-HTTP observability endpoint next to
// the chat listener: liveness, counters and the room table. It is meant
// for localhost or an internal network, not for end users.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/chatrelay/internal/logger"
	"github.com/codefionn/chatrelay/internal/room"
)

// ServerStats is the source the endpoint reads from; the chat server
// implements it.
type ServerStats interface {
	ClientCount() int
	SessionCount() int
	Rooms() *room.Registry
	Uptime() time.Duration
}

// Admin serves the observability endpoint.
type Admin struct {
	stats ServerStats
	srv   *http.Server
}

// New builds the endpoint bound to addr. With profiling enabled the
// standard pprof handlers are mounted under /debug/pprof/.
func New(addr string, stats ServerStats, profiling bool) *Admin {
	a := &Admin{stats: stats}

	router := httprouter.New()
	router.GET("/healthz", a.handleHealthz)
	router.GET("/v1/stats", a.handleStats)
	router.GET("/v1/rooms", a.handleRooms)

	if profiling {
		router.HandlerFunc(http.MethodGet, "/debug/pprof/", pprof.Index)
		router.HandlerFunc(http.MethodGet, "/debug/pprof/cmdline", pprof.Cmdline)
		router.HandlerFunc(http.MethodGet, "/debug/pprof/profile", pprof.Profile)
		router.HandlerFunc(http.MethodGet, "/debug/pprof/symbol", pprof.Symbol)
		router.HandlerFunc(http.MethodGet, "/debug/pprof/trace", pprof.Trace)
		router.Handler(http.MethodGet, "/debug/pprof/heap", pprof.Handler("heap"))
		router.Handler(http.MethodGet, "/debug/pprof/goroutine", pprof.Handler("goroutine"))
		router.Handler(http.MethodGet, "/debug/pprof/block", pprof.Handler("block"))
		router.Handler(http.MethodGet, "/debug/pprof/mutex", pprof.Handler("mutex"))
	}

	a.srv = &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
	}
	// CPU profiles stream for their whole sampling window, so no write
	// timeout when profiling is on.
	if !profiling {
		a.srv.WriteTimeout = 5 * time.Second
	}
	return a
}

// Start begins serving in the background.
func (a *Admin) Start() {
	go func() {
		logger.Info("Admin endpoint listening on %s", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Admin endpoint failed: %v", err)
		}
	}()
}

// Stop shuts the endpoint down gracefully.
func (a *Admin) Stop(ctx context.Context) error {
	return a.srv.Shutdown(ctx)
}

func (a *Admin) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

func (a *Admin) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]interface{}{
		"connections":    a.stats.ClientCount(),
		"sessions":       a.stats.SessionCount(),
		"rooms":          a.stats.Rooms().Count(),
		"uptime_seconds": int64(a.stats.Uptime().Seconds()),
	})
}

func (a *Admin) handleRooms(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, map[string]interface{}{
		"rooms": a.stats.Rooms().Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode admin response: %v", err)
	}
}
