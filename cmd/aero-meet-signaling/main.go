package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/auth"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/httpserver"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/origin"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/ratelimit"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/room"
	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/signaling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger.Info("starting aero-meet-signaling",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"auth_mode", cfg.AuthMode,
		"signaling_ws_idle_timeout", cfg.SignalingWSIdleTimeout,
		"signaling_ws_ping_interval", cfg.SignalingWSPingInterval,
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
		"max_connections_per_ip_per_minute", cfg.MaxConnectionsPerIPPerMinute,
		"max_room_members", cfg.MaxRoomMembers,
		"ice_servers", len(cfg.ICEServers),
		"turn_rest_enabled", cfg.TURNREST.Enabled(),
		"translate_enabled", cfg.Translate.Enabled,
	)

	logStartupSecurityWarnings(logger, cfg)

	m := metrics.New()

	authz, err := auth.NewAuthorizer(cfg)
	if err != nil {
		logger.Error("failed to configure auth", "err", err)
		os.Exit(2)
	}

	commit, buildTime := resolveBuildInfo(buildCommit, buildTime)
	srv, err := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: buildTime}, httpserver.Options{
		Metrics:    m,
		Authorizer: authz,
	})
	if err != nil {
		logger.Error("failed to configure http server", "err", err)
		os.Exit(2)
	}

	sig := signaling.NewServer(signaling.Config{
		Registry:             room.NewRegistry(room.Config{MaxMembers: cfg.MaxRoomMembers}),
		Logger:               logger,
		Metrics:              m,
		Origins:              origin.Policy{AllowedOrigins: cfg.AllowedOrigins},
		Authorizer:           authz,
		ConnLimiter:          ratelimit.NewPerMinute(cfg.MaxConnectionsPerIPPerMinute, ratelimit.DefaultMaxKeys),
		IdleTimeout:          cfg.SignalingWSIdleTimeout,
		PingInterval:         cfg.SignalingWSPingInterval,
		MaxMessageBytes:      cfg.MaxSignalingMessageBytes,
		MaxMessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
	})
	sig.RegisterRoutes(srv.Mux())
	// Hijacked WebSockets are invisible to http.Server.Shutdown.
	srv.RegisterOnShutdown(sig.Close)

	if cfg.Translate.Enabled {
		tr, closeTranslator, err := newTranslator(cfg.Translate, m, logger)
		if err != nil {
			logger.Error("failed to configure translation", "err", err)
			os.Exit(2)
		}
		defer closeTranslator()
		srv.HandleBrowserAPI("POST /translate", tr.Handler())
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server exited: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "err", err)
		stop()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values but fall back to the Go build info for
	// `go run` and dev builds.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
