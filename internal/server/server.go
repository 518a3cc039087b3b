// Package server hosts the HTTP surface of gridhud: the signed register
// and scan endpoints, the health probe, the admin listing, and the
// operator event feed. Every signed request passes the same gate: rate
// limit, signature verification, freshness check, then the business
// operation against the registry store.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	stdlog "log"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go/http3"
	"golang.org/x/crypto/acme/autocert"

	"github.com/helewild/gridhud/internal/config"
	"github.com/helewild/gridhud/internal/netutil"
	"github.com/helewild/gridhud/internal/ratelimit"
	"github.com/helewild/gridhud/internal/registry"
)

type Server struct {
	cfg     config.ServerConfig
	store   registry.Store
	limiter ratelimit.Limiter
	log     *slog.Logger
	hub     *hub

	sessionSeq atomic.Uint64
}

// sweeper is implemented by limiter backends that support periodic
// eviction of expired windows.
type sweeper interface {
	Sweep()
}

func New(cfg config.ServerConfig, store registry.Store, limiter ratelimit.Limiter, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		limiter: limiter,
		log:     logger,
		hub:     &hub{sessions: map[string]*session{}},
	}
}

// Handler builds the route table. Exposed separately from Run so tests
// can drive the full request gate through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.gate("register", s.cfg.RegisterLimit, s.registerOp))
	mux.HandleFunc("/v1/hud/register", s.gate("register", s.cfg.RegisterLimit, s.registerOp))
	mux.HandleFunc("/api/scan", s.gate("scan", s.cfg.ScanLimit, s.scanOp))
	mux.HandleFunc("/v1/hud/list", s.handleList)
	mux.HandleFunc("/v1/hud/events", s.handleEvents)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	go s.runJanitor(ctx)

	handler := s.Handler()
	if normalizeTLSMode(s.cfg.TLSMode) == tlsModeOff {
		return s.runPlain(ctx, handler)
	}
	return s.runTLS(ctx, handler)
}

func (s *Server) runPlain(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenHTTP,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", "addr", s.cfg.ListenHTTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return shutdownServer(srv, 5*time.Second)
	case err := <-errCh:
		_ = shutdownServer(srv, 5*time.Second)
		return err
	}
}

func (s *Server) runTLS(ctx context.Context, handler http.Handler) error {
	mode := normalizeTLSMode(s.cfg.TLSMode)

	var manager *autocert.Manager
	var tlsConfig *tls.Config
	switch mode {
	case tlsModeAuto:
		manager = &autocert.Manager{
			Cache:  autocert.DirCache(s.cfg.CertCacheDir),
			Prompt: autocert.AcceptTOS,
			HostPolicy: func(_ context.Context, host string) error {
				if netutil.NormalizeAddr(host) == netutil.NormalizeAddr(s.cfg.Domain) {
					return nil
				}
				return fmt.Errorf("host %q not allowed", host)
			},
		}
		tlsConfig = manager.TLSConfig()
	case tlsModeStatic:
		staticCert, err := loadStaticCertificate(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			return err
		}
		s.log.Info("static TLS certificate loaded",
			"cert_file", s.cfg.TLSCertFile, "key_file", s.cfg.TLSKeyFile, "subject", staticCert.subject())
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{staticCert.cert},
			MinVersion:   tls.VersionTLS12,
		}
	default:
		return fmt.Errorf("unsupported TLS mode %q", s.cfg.TLSMode)
	}

	var h3srv *http3.Server
	if s.cfg.EnableH3 {
		h3srv = &http3.Server{
			Addr:      s.cfg.ListenHTTPS,
			Handler:   handler,
			TLSConfig: http3.ConfigureTLSConfig(tlsConfig.Clone()),
		}
		tcpHandler := handler
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h3srv.SetQuicHeaders(w.Header()); err != nil {
				s.log.Debug("alt-svc advertisement skipped", "err", err)
			}
			tcpHandler.ServeHTTP(w, r)
		})
	}

	httpsServer := &http.Server{
		Addr:              s.cfg.ListenHTTPS,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         tlsConfig,
		ErrorLog:          stdlog.New(newTLSErrorLogWriter(s.log), "", 0),
	}

	errChSize := 1
	if manager != nil {
		errChSize++
	}
	if h3srv != nil {
		errChSize++
	}
	errCh := make(chan error, errChSize)

	var challengeServer *http.Server
	if manager != nil {
		challengeServer = &http.Server{
			Addr:              s.cfg.ListenHTTP,
			Handler:           manager.HTTPHandler(http.NotFoundHandler()),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.log.Info("starting ACME challenge server", "addr", s.cfg.ListenHTTP)
			if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("challenge server: %w", err)
			}
		}()
	}

	if h3srv != nil {
		go func() {
			s.log.Info("starting HTTP/3 server", "addr", s.cfg.ListenHTTPS)
			// http3.Server returns net/http's sentinel after Close/Shutdown.
			if err := h3srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http3 server: %w", err)
			}
		}()
	}

	go func() {
		s.log.Info("starting HTTPS server", "addr", s.cfg.ListenHTTPS, "tls_mode", mode)
		if err := httpsServer.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("https server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		var firstErr error
		if err := shutdownServer(httpsServer, 5*time.Second); err != nil {
			firstErr = err
		}
		if challengeServer != nil {
			if err := shutdownServer(challengeServer, 5*time.Second); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if h3srv != nil {
			if err := h3srv.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	case err := <-errCh:
		_ = shutdownServer(httpsServer, 5*time.Second)
		if challengeServer != nil {
			_ = shutdownServer(challengeServer, 5*time.Second)
		}
		if h3srv != nil {
			_ = h3srv.Close()
		}
		return err
	}
}

// runJanitor periodically evicts expired limiter windows and drops
// monitor sessions that stopped sending heartbeats.
func (s *Server) runJanitor(ctx context.Context) {
	sweepTicker := time.NewTicker(s.cfg.SweepInterval)
	monitorTicker := time.NewTicker(monitorCheckInterval)
	defer sweepTicker.Stop()
	defer monitorTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepTicker.C:
			if sw, ok := s.limiter.(sweeper); ok {
				sw.Sweep()
			}
		case <-monitorTicker.C:
			s.expireStaleMonitors()
		}
	}
}

func shutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
