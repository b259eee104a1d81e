package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/wallet-kernel/metrics"
	"go.uber.org/atomic"
)

type HTTPServerConfig struct {
	ListenAddr  string
	MetricsAddr string
	EnablePprof bool
	Log         *slog.Logger

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
	handler    *Handler
}

// New builds the API server. metricsSrv is shared with the SDK so kernel
// counters and the metrics endpoint use one registry.
func New(cfg *HTTPServerConfig, handler *Handler, metricsSrv *metrics.MetricsServer) (*Server, error) {
	if handler == nil {
		return nil, errors.New("httpserver: handler is required")
	}
	if metricsSrv == nil {
		return nil, errors.New("httpserver: metrics server is required")
	}

	srv := &Server{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
		handler:    handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()
	h := srv.handler

	mux.Group(func(r chi.Router) {
		r.Use(srv.httpLogger)

		r.Post("/api/users", h.HandleCreateUser)
		r.Delete("/api/user", h.HandleDeleteUser)
		r.Post("/api/session", h.HandleInitUser)
		r.Delete("/api/session", h.HandleLogout)
		r.Put("/api/session/token", h.HandleRefreshToken)

		r.Get("/api/wallet/password", h.HandlePasswordStatus)
		r.Put("/api/wallet/password", h.HandleSetPassword)
		r.Post("/api/wallet/pin/verify", h.HandleVerifyPin)
		r.Put("/api/wallet/pin", h.HandleChangePin)

		r.Post("/api/wallet", h.HandleCreateWallet)
		r.Delete("/api/wallet", h.HandleDeleteWallet)
		r.Post("/api/wallet/shares", h.HandleCreateShares)
		r.Post("/api/wallet/shares/guardians", h.HandleCreateGuardianShares)
		r.Post("/api/wallet/recovery/shares", h.HandleSubmitShare)
		r.Delete("/api/wallet/recovery", h.HandleResetRecovery)
		r.Post("/api/wallet/backup", h.HandleBackup)
		r.Post("/api/wallet/restore", h.HandleRestore)

		r.Get("/api/networks", h.HandleGetNetworks)
		r.Put("/api/network", h.HandleSetNetwork)
		r.Post("/api/wallet/address", h.HandleNewAddress)
		r.Get("/api/wallet/transactions", h.HandleTransactions)
		r.Post("/api/wallet/send", h.HandleSend)
		r.Get("/api/kyc", h.HandleKyc)

		r.Get("/livez", srv.handleLivenessCheck)
		r.Get("/readyz", srv.handleReadinessCheck)
		r.Get("/drain", srv.handleDrain)
		r.Get("/undrain", srv.handleUndrain)
	})

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already draining"})
		return
	}

	srv.log.Info("Server marked as not ready")

	go func() {
		// load balancers need DrainDuration to notice
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already ready"})
		return
	}

	srv.log.Info("Server marked as ready")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (srv *Server) RunInBackground() {
	// metrics
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("HTTP server failed", "err", err)
			}
		}()
	}

	// api
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

func (srv *Server) Shutdown() {
	// api
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	// metrics
	if len(srv.cfg.MetricsAddr) != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
