// Package translate implements the caption translation endpoint used by
// meeting clients. It fronts one or more machine translation providers with a
// cache and never fails a request: when every provider errors the input text
// is returned untranslated.
package translate

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
)

// Request results reported to metrics.
const (
	ResultTranslated  = "translated"
	ResultCached      = "cached"
	ResultPassthrough = "passthrough"
	ResultEmpty       = "empty"
)

type Request struct {
	Text       string
	SourceLang string
	TargetLang string
}

func (r Request) cacheKey() string {
	return r.Text + "|" + r.SourceLang + "|" + r.TargetLang
}

// Provider is a machine translation backend.
type Provider interface {
	Name() string
	// Supports reports whether the provider handles the language pair
	// natively. Unsupported providers are still tried as a fallback.
	Supports(source, target string) bool
	Translate(ctx context.Context, req Request) (string, error)
}

var ErrNoProviders = errors.New("no translation providers configured")

type Config struct {
	// Providers in order of preference.
	Providers []Provider
	// Cache defaults to an in-memory cache with default bounds.
	Cache   Cache
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Service struct {
	providers []Provider
	cache     Cache
	metrics   *metrics.Metrics
	log       *slog.Logger
	group     singleflight.Group
}

func NewService(cfg Config) (*Service, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache(0, 0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		providers: cfg.Providers,
		cache:     cfg.Cache,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
	}, nil
}

// Translate returns req.Text translated into req.TargetLang, or req.Text
// unchanged if no provider could translate it.
func (s *Service) Translate(ctx context.Context, req Request) string {
	if strings.TrimSpace(req.Text) == "" {
		s.metrics.TranslateRequest(ResultEmpty)
		return req.Text
	}
	req.SourceLang = normalizeLang(req.SourceLang)
	req.TargetLang = normalizeLang(req.TargetLang)

	key := req.cacheKey()
	if v, err := s.cache.Get(ctx, key); err == nil {
		s.metrics.TranslateCache(true)
		s.metrics.TranslateRequest(ResultCached)
		return v
	} else if !errors.Is(err, ErrCacheMiss) {
		s.log.Warn("translation cache read failed", "err", err)
	}
	s.metrics.TranslateCache(false)

	// Identical concurrent captions share one provider round trip.
	v, _, _ := s.group.Do(key, func() (any, error) {
		return s.translateUncached(ctx, key, req), nil
	})
	return v.(string)
}

func (s *Service) translateUncached(ctx context.Context, key string, req Request) string {
	for _, p := range s.order(req) {
		out, err := p.Translate(ctx, req)
		if err != nil {
			s.log.Warn("translation provider failed", "provider", p.Name(), "source", req.SourceLang, "target", req.TargetLang, "err", err)
			continue
		}
		if err := s.cache.Set(ctx, key, out); err != nil {
			s.log.Warn("translation cache write failed", "err", err)
		}
		s.metrics.TranslateRequest(ResultTranslated)
		return out
	}
	s.metrics.TranslateRequest(ResultPassthrough)
	return req.Text
}

// order puts providers that natively support the pair first, keeping the
// configured preference within each group.
func (s *Service) order(req Request) []Provider {
	out := make([]Provider, 0, len(s.providers))
	var rest []Provider
	for _, p := range s.providers {
		if p.Supports(req.SourceLang, req.TargetLang) {
			out = append(out, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(out, rest...)
}

// normalizeLang canonicalizes a BCP 47 tag ("EN" -> "en", "zh-cn" -> "zh-CN").
// Values that do not parse are passed through trimmed.
func normalizeLang(raw string) string {
	raw = strings.TrimSpace(raw)
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}

// baseLang returns the primary language subtag of a tag, or "" if it does not
// parse.
func baseLang(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, conf := t.Base()
	if conf == language.No {
		return ""
	}
	return base.String()
}
