package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

// ScorecardSource provides the live scorecard of the run in progress.
type ScorecardSource interface {
	Snapshot() types.Scorecard
}

type StatusServer struct {
	ctx    context.Context
	server *http.Server

	mu     sync.RWMutex
	source ScorecardSource
}

// SetSource points /scorecard at the given run.
func (h *StatusServer) SetSource(src ScorecardSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = src
}

func (h *StatusServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.HandleHealthz)
	hdlr.HandleFunc("/scorecard", h.HandleScorecard)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

func (h *StatusServer) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Handler: h.Handler(),
		Addr:    addr,
	}
	h.mu.Lock()
	h.server = server
	h.ctx = ctx
	h.mu.Unlock()
	return server.ListenAndServe()
}

func (h *StatusServer) Shutdown() error {
	h.mu.RLock()
	server, ctx := h.server, h.ctx
	h.mu.RUnlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

func (h *StatusServer) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

func (h *StatusServer) HandleScorecard(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	src := h.source
	h.mu.RUnlock()

	if src == nil {
		http.Error(w, "no run in progress", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(src.Snapshot()); err != nil {
		log.Error("failed to write scorecard", "err", err)
	}
}
