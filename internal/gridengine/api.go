package gridengine

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Shubhamshinde5080/DogeBOT/internal/metrics"

	"github.com/pquerna/otp/totp"
)

// Handler returns the HTTP API:
//
//	GET  /healthz             liveness and dependency health
//	GET  /status              cycle, ladders, PnL and indicators
//	GET  /metrics             Prometheus metrics
//	GET  /trades?limit=N      journaled fills, newest first
//	GET  /events?limit=N      journaled strategy events, newest first
//	GET  /ws?since=N          live event stream
//	POST /control/{pause,resume,liquidate}
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", s.health)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler(s.reg))
	mux.HandleFunc("/trades", s.handleTrades)
	mux.HandleFunc("/events", s.handleEvents)
	mux.Handle("/ws", s.hub)
	mux.HandleFunc("/control/", s.requireTOTP(s.handleControl))
	return mux
}

func (s *Service) serveHTTP(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[gridbot] HTTP server on %s (/healthz, /status, /metrics, /trades, /ws, /control)", s.cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Service) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "trade journal disabled", http.StatusServiceUnavailable)
		return
	}
	trades, err := s.journal.GetTrades(queryLimit(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, "trade journal disabled", http.StatusServiceUnavailable)
		return
	}
	events, err := s.journal.GetEvents(queryLimit(r, 50))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	kind := strings.TrimPrefix(r.URL.Path, "/control/")
	switch kind {
	case CmdPause, CmdResume, CmdLiquidate:
	default:
		http.NotFound(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.Control(ctx, kind); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrNoCycle) {
			code = http.StatusConflict
		}
		writeJSON(w, code, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	s.log.Info("control", "command", kind, "remote", r.RemoteAddr)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "command": kind})
}

// requireTOTP rejects requests without a valid one-time code when an admin
// secret is configured. The code is read from X-TOTP or ?code=.
func (s *Service) requireTOTP(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := s.cfg.AdminTOTPSecret
		if secret == "" {
			next(w, r)
			return
		}
		code := r.Header.Get("X-TOTP")
		if code == "" {
			code = r.URL.Query().Get("code")
		}
		if code == "" || !totp.Validate(code, secret) {
			s.log.Warn("control_rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, "invalid or missing TOTP code", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > 1000 {
		n = 1000
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
