package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
)

type recordedLog struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

type recordingHandler struct {
	mu      *sync.Mutex
	records *[]recordedLog
	attrs   []slog.Attr
	groups  []string
}

func newRecordingLogger() (*slog.Logger, func() []recordedLog) {
	mu := &sync.Mutex{}
	records := &[]recordedLog{}
	h := &recordingHandler{mu: mu, records: records}
	return slog.New(h), func() []recordedLog {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedLog, len(*records))
		copy(out, *records)
		return out
	}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	rec := recordedLog{
		level: r.Level,
		msg:   r.Message,
		attrs: map[string]any{},
	}
	for _, a := range h.attrs {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := h.clone()
	nh.attrs = append(nh.attrs, attrs...)
	return nh
}

func (h *recordingHandler) WithGroup(name string) slog.Handler {
	nh := h.clone()
	nh.groups = append(nh.groups, name)
	return nh
}

func (h *recordingHandler) clone() *recordingHandler {
	return &recordingHandler{
		mu:      h.mu,
		records: h.records,
		attrs:   append([]slog.Attr(nil), h.attrs...),
		groups:  append([]string(nil), h.groups...),
	}
}

func (h *recordingHandler) key(k string) string {
	if len(h.groups) == 0 {
		return k
	}
	return strings.Join(h.groups, ".") + "." + k
}

func warningCodes(records []recordedLog) map[string]recordedLog {
	out := map[string]recordedLog{}
	for _, r := range records {
		if r.level != slog.LevelWarn {
			continue
		}
		if code, ok := r.attrs["warning_code"].(string); ok {
			out[code] = r
		}
	}
	return out
}

func TestStartupSecurityWarnings_AuthModeNone(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:     config.ModeDev,
		AuthMode: config.AuthModeNone,
	})

	r, ok := warningCodes(records())["auth_mode_none"]
	if !ok {
		t.Fatalf("expected warning_code=auth_mode_none, got %#v", records())
	}
	if r.attrs["auth_mode"] != config.AuthModeNone {
		t.Fatalf("auth_mode attr = %#v, want %q", r.attrs["auth_mode"], config.AuthModeNone)
	}
}

func TestStartupSecurityWarnings_AllowedOriginsWildcard(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:           config.ModeDev,
		AuthMode:       config.AuthModeAPIKey,
		APIKey:         "secret",
		AllowedOrigins: []string{"https://meet.example.com", "*"},
	})

	if _, ok := warningCodes(records())["allowed_origins_wildcard"]; !ok {
		t.Fatalf("expected warning_code=allowed_origins_wildcard, got %#v", records())
	}
}

func TestStartupSecurityWarnings_ProdUnlimitedLimits(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:     config.ModeProd,
		AuthMode: config.AuthModeJWT,
	})

	codes := warningCodes(records())
	for _, want := range []string{"connection_rate_unlimited_in_prod", "room_members_unlimited_in_prod"} {
		if _, ok := codes[want]; !ok {
			t.Fatalf("expected warning_code=%s, got %#v", want, records())
		}
	}
}

func TestStartupSecurityWarnings_DevUnlimitedLimitsAreQuiet(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:     config.ModeDev,
		AuthMode: config.AuthModeJWT,
	})

	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("unexpected warnings: %#v", codes)
	}
}

func TestStartupSecurityWarnings_LargeMessageLimit(t *testing.T) {
	logger, records := newRecordingLogger()

	logStartupSecurityWarnings(logger, config.Config{
		Mode:                     config.ModeDev,
		AuthMode:                 config.AuthModeAPIKey,
		APIKey:                   "secret",
		MaxSignalingMessageBytes: 4 << 20,
	})

	r, ok := warningCodes(records())["signaling_message_limit_large"]
	if !ok {
		t.Fatalf("expected warning_code=signaling_message_limit_large, got %#v", records())
	}
	if got := r.attrs["max_signaling_message_bytes"]; got != int64(4<<20) {
		t.Fatalf("max_signaling_message_bytes attr = %#v, want %d", got, 4<<20)
	}
}

func TestStartupSecurityWarnings_InvalidICEConfig(t *testing.T) {
	t.Setenv("MEET_ICE_SERVERS_JSON", "[")
	t.Setenv("AUTH_MODE", "api_key")
	t.Setenv("API_KEY", "secret")

	cfg, err := config.Load(nil)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}

	logger, records := newRecordingLogger()
	logStartupSecurityWarnings(logger, cfg)

	if _, ok := warningCodes(records())["ice_config_invalid"]; !ok {
		t.Fatalf("expected warning_code=ice_config_invalid, got %#v", records())
	}
}

func TestStartupSecurityWarnings_PublicTranslationProviderInProd(t *testing.T) {
	logger, records := newRecordingLogger()

	cfg := config.Config{
		Mode:                         config.ModeProd,
		AuthMode:                     config.AuthModeJWT,
		MaxConnectionsPerIPPerMinute: 60,
		MaxRoomMembers:               16,
		Translate: config.TranslateConfig{
			Enabled:     true,
			MyMemoryURL: config.DefaultTranslateMyMemoryURL,
		},
	}
	logStartupSecurityWarnings(logger, cfg)

	codes := warningCodes(records())
	if _, ok := codes["translate_public_provider"]; !ok {
		t.Fatalf("expected warning_code=translate_public_provider, got %#v", records())
	}
	if len(codes) != 1 {
		t.Fatalf("unexpected extra warnings: %#v", codes)
	}

	cfg.Translate.MyMemoryURL = "https://mymemory.internal.example/get"
	logger, records = newRecordingLogger()
	logStartupSecurityWarnings(logger, cfg)
	if codes := warningCodes(records()); len(codes) != 0 {
		t.Fatalf("unexpected warnings for self-hosted provider: %#v", codes)
	}
}
