package main

import (
	"log/slog"
	"slices"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: AUTH_MODE=none disables authentication",
			"warning_code", "auth_mode_none",
			"auth_mode", cfg.AuthMode,
			"mode", cfg.Mode,
		)
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxConnectionsPerIPPerMinute <= 0 {
		logger.Warn("startup security warning: MAX_CONNECTIONS_PER_IP_PER_MINUTE is unset/0 (unlimited) while --mode=prod",
			"warning_code", "connection_rate_unlimited_in_prod",
			"max_connections_per_ip_per_minute", cfg.MaxConnectionsPerIPPerMinute,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxRoomMembers <= 0 {
		logger.Warn("startup security warning: MAX_ROOM_MEMBERS is unset/0 (unlimited) while --mode=prod",
			"warning_code", "room_members_unlimited_in_prod",
			"max_room_members", cfg.MaxRoomMembers,
			"mode", cfg.Mode,
		)
	}

	// Relay fan-out copies each frame to every room member.
	if cfg.MaxSignalingMessageBytes > 1<<20 { // 1MiB
		logger.Warn("startup security warning: MAX_SIGNALING_MESSAGE_BYTES is very large (increases per-message fan-out allocation)",
			"warning_code", "signaling_message_limit_large",
			"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
			"mode", cfg.Mode,
		)
	}

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("startup warning: ICE server config is invalid; /webrtc/ice and /readyz will report 503",
			"warning_code", "ice_config_invalid",
			"err", err,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.Translate.Enabled && cfg.Translate.MyMemoryURL == config.DefaultTranslateMyMemoryURL {
		logger.Warn("startup warning: translation uses the public MyMemory API (caption text leaves this deployment)",
			"warning_code", "translate_public_provider",
			"translate_mymemory_url", cfg.Translate.MyMemoryURL,
			"mode", cfg.Mode,
		)
	}
}
