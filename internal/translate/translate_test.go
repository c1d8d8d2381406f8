package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/metrics"
)

type fakeProvider struct {
	name     string
	supports bool
	err      error

	mu    sync.Mutex
	calls []Request
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Supports(string, string) bool { return p.supports }

func (p *fakeProvider) Translate(_ context.Context, req Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("[%s:%s>%s] %s", p.name, req.SourceLang, req.TargetLang, req.Text), nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func newTestService(t *testing.T, providers ...Provider) *Service {
	t.Helper()
	svc, err := NewService(Config{Providers: providers, Metrics: metrics.New()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewService_RequiresProvider(t *testing.T) {
	if _, err := NewService(Config{}); !errors.Is(err, ErrNoProviders) {
		t.Fatalf("err=%v, want ErrNoProviders", err)
	}
}

func TestTranslate_CachesByTextAndPair(t *testing.T) {
	p := &fakeProvider{name: "a", supports: true}
	svc := newTestService(t, p)
	ctx := context.Background()

	first := svc.Translate(ctx, Request{Text: "hello", SourceLang: "en", TargetLang: "es"})
	second := svc.Translate(ctx, Request{Text: "hello", SourceLang: "en", TargetLang: "es"})
	if first != second || first != "[a:en>es] hello" {
		t.Fatalf("got %q then %q", first, second)
	}
	if n := p.callCount(); n != 1 {
		t.Fatalf("provider calls=%d, want 1", n)
	}

	svc.Translate(ctx, Request{Text: "hello", SourceLang: "en", TargetLang: "fr"})
	if n := p.callCount(); n != 2 {
		t.Fatalf("provider calls=%d, want 2", n)
	}
}

func TestTranslate_NormalizesLanguageTags(t *testing.T) {
	p := &fakeProvider{name: "a", supports: true}
	svc := newTestService(t, p)

	got := svc.Translate(context.Background(), Request{Text: "hi", SourceLang: " EN ", TargetLang: "zh-cn"})
	if got != "[a:en>zh-CN] hi" {
		t.Fatalf("got %q", got)
	}
	// Unparseable tags are passed through.
	got = svc.Translate(context.Background(), Request{Text: "hi", SourceLang: "en", TargetLang: "not a tag"})
	if !strings.Contains(got, ">not a tag]") {
		t.Fatalf("got %q", got)
	}
}

func TestTranslate_FallsBackAndPassesThrough(t *testing.T) {
	bad := &fakeProvider{name: "bad", supports: true, err: errors.New("down")}
	good := &fakeProvider{name: "good", supports: true}
	svc := newTestService(t, bad, good)

	if got := svc.Translate(context.Background(), Request{Text: "x", SourceLang: "en", TargetLang: "de"}); got != "[good:en>de] x" {
		t.Fatalf("got %q", got)
	}

	allBad := newTestService(t, bad)
	if got := allBad.Translate(context.Background(), Request{Text: "untouched", SourceLang: "en", TargetLang: "de"}); got != "untouched" {
		t.Fatalf("got %q, want input text", got)
	}
	// Failures are not cached.
	before := bad.callCount()
	allBad.Translate(context.Background(), Request{Text: "untouched", SourceLang: "en", TargetLang: "de"})
	if bad.callCount() != before+1 {
		t.Fatalf("failed translation was cached")
	}
}

func TestTranslate_PrefersSupportingProvider(t *testing.T) {
	narrow := &fakeProvider{name: "narrow", supports: false}
	wide := &fakeProvider{name: "wide", supports: true}
	svc := newTestService(t, narrow, wide)

	got := svc.Translate(context.Background(), Request{Text: "x", SourceLang: "en", TargetLang: "sw"})
	if !strings.HasPrefix(got, "[wide:") {
		t.Fatalf("got %q, want wide provider", got)
	}
	if narrow.callCount() != 0 {
		t.Fatalf("unsupported provider was tried first")
	}
}

func TestTranslate_EmptyTextSkipsProviders(t *testing.T) {
	p := &fakeProvider{name: "a", supports: true}
	svc := newTestService(t, p)
	for _, text := range []string{"", "   "} {
		if got := svc.Translate(context.Background(), Request{Text: text, SourceLang: "en", TargetLang: "es"}); got != text {
			t.Fatalf("got %q, want %q", got, text)
		}
	}
	if p.callCount() != 0 {
		t.Fatalf("provider called for empty text")
	}
}

func TestHandler(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "a", supports: true})
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/translate", "application/json", strings.NewReader(`{"text":"hello","source_lang":"en","target_lang":"es"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var body translateResponse
	if err := decodeBody(resp, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Translated != "[a:en>es] hello" {
		t.Fatalf("translated=%q", body.Translated)
	}

	bad, err := http.Post(ts.URL+"/translate", "application/json", strings.NewReader(`{"text":`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", bad.StatusCode)
	}

	get, err := http.Get(ts.URL + "/translate")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", get.StatusCode)
	}
}
