package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultTimeout = 5 * time.Second

	// maxResponseBytes bounds provider response bodies.
	maxResponseBytes = 1 << 20
)

// MyMemory calls the MyMemory GET API:
//
//	GET <url>?q=<text>&langpair=<source>|<target>
type MyMemory struct {
	URL    string
	Client *http.Client
}

func NewMyMemory(endpoint string, timeout time.Duration) *MyMemory {
	return &MyMemory{URL: endpoint, Client: newHTTPClient(timeout)}
}

func (p *MyMemory) Name() string { return "mymemory" }

// Supports is always true: MyMemory accepts any language pair.
func (p *MyMemory) Supports(string, string) bool { return true }

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText *string `json:"translatedText"`
	} `json:"responseData"`
	// MyMemory reports some errors with a string status, which never
	// equals the numeric 200.
	ResponseStatus any `json:"responseStatus"`
}

func (p *MyMemory) Translate(ctx context.Context, req Request) (string, error) {
	u, err := url.Parse(p.URL)
	if err != nil {
		return "", fmt.Errorf("mymemory url: %w", err)
	}
	q := u.Query()
	q.Set("q", req.Text)
	q.Set("langpair", req.SourceLang+"|"+req.TargetLang)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	var out myMemoryResponse
	if err := doJSON(p.Client, httpReq, &out); err != nil {
		return "", fmt.Errorf("mymemory: %w", err)
	}
	if status, ok := out.ResponseStatus.(float64); !ok || status != 200 {
		return "", fmt.Errorf("mymemory: responseStatus %v", out.ResponseStatus)
	}
	if out.ResponseData.TranslatedText == nil {
		return req.Text, nil
	}
	return *out.ResponseData.TranslatedText, nil
}

// libreLanguages are the base languages a stock LibreTranslate deployment
// ships models for.
var libreLanguages = map[string]bool{
	"ar": true, "de": true, "en": true, "es": true, "fr": true, "hi": true,
	"it": true, "ja": true, "ko": true, "nl": true, "pl": true, "pt": true,
	"ru": true, "tr": true, "uk": true, "zh": true,
}

// Libre calls a LibreTranslate instance:
//
//	POST <url> {"q", "source", "target", "format":"text", "api_key"}
type Libre struct {
	URL    string
	APIKey string
	Client *http.Client
}

func NewLibre(endpoint, apiKey string, timeout time.Duration) *Libre {
	return &Libre{URL: endpoint, APIKey: apiKey, Client: newHTTPClient(timeout)}
}

func (p *Libre) Name() string { return "libretranslate" }

func (p *Libre) Supports(source, target string) bool {
	return libreLanguages[baseLang(source)] && libreLanguages[baseLang(target)]
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (p *Libre) Translate(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(libreRequest{
		Q:      req.Text,
		Source: baseLang(req.SourceLang),
		Target: baseLang(req.TargetLang),
		Format: "text",
		APIKey: p.APIKey,
	})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out libreResponse
	if err := doJSON(p.Client, httpReq, &out); err != nil {
		return "", fmt.Errorf("libretranslate: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("libretranslate: %s", out.Error)
	}
	return out.TranslatedText, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func doJSON(client *http.Client, req *http.Request, v any) error {
	if client == nil {
		client = newHTTPClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
