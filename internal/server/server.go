package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"lending-regime-advisor/internal/attest"
	"lending-regime-advisor/internal/report"
	"lending-regime-advisor/internal/state"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
	shutdownTimeout     = 5 * time.Second
)

// Options tunes the HTTP surface. MetricsHandler is mounted at MetricsPath
// when both are set.
type Options struct {
	MetricsPath    string
	MetricsHandler http.Handler
	MinConfidence  float64
	MaxAge         time.Duration
}

type Server struct {
	log     *zap.Logger
	history state.History
	hub     *Hub
	opts    Options
	now     func() time.Time
	mux     *http.ServeMux

	mu     sync.RWMutex
	latest *report.Report
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// recommendationView adds the follow/freshness verdicts to a report.
type recommendationView struct {
	report.Report
	Actionable bool `json:"actionable"`
	Fresh      bool `json:"fresh"`
}

func New(history state.History, log *zap.Logger, opts Options) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:     log,
		history: history,
		hub:     NewHub(log),
		opts:    opts,
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/recommendation", s.handleRecommendation)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/ws", s.handleWS)
	if opts.MetricsPath != "" && opts.MetricsHandler != nil {
		s.mux.Handle(opts.MetricsPath, opts.MetricsHandler)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish records r as the latest report and pushes it to websocket clients.
func (s *Server) Publish(r report.Report) {
	s.mu.Lock()
	s.latest = &r
	s.mu.Unlock()
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Warn("report encode failed", zap.Error(err))
		return
	}
	s.hub.Broadcast(payload)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) current(ctx context.Context) (report.Report, bool) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return *latest, true
	}
	if s.history == nil {
		return report.Report{}, false
	}
	r, ok, err := s.history.LatestReport(ctx)
	if err != nil {
		s.log.Warn("latest report load failed", zap.Error(err))
		return report.Report{}, false
	}
	return r, ok
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "method not allowed"})
		return
	}
	_, ready := s.current(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"ready":       ready,
		"subscribers": s.hub.Subscribers(),
		"time":        s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "method not allowed"})
		return
	}
	latest, ok := s.current(r.Context())
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, envelope{Error: "no recommendation computed yet"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: recommendationView{
		Report:     latest,
		Actionable: attest.ShouldFollow(latest, s.opts.MinConfidence),
		Fresh:      attest.IsFresh(latest, s.now(), s.opts.MaxAge),
	}})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "method not allowed"})
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, envelope{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	if s.history == nil {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: []report.Report{}})
		return
	}
	reports, err := s.history.RecentReports(r.Context(), limit)
	if err != nil {
		s.log.Warn("history load failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "history unavailable"})
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: reports})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Debug("ws accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	var initial []byte
	if latest, ok := s.current(r.Context()); ok {
		initial, _ = json.Marshal(latest)
	}
	s.hub.serve(r.Context(), conn, initial)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
