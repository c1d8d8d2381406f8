package turnrest

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func expectedCredential(t *testing.T, secret []byte, username string) string {
	t.Helper()
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestGenerate_DeterministicWithFixedTime(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{
		SharedSecret:   "shared-secret",
		TTLSeconds:     3600,
		UsernamePrefix: "meet",
		Now:            func() time.Time { return time.Unix(1_700_000_000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	creds, err := g.Generate("session123")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if creds.ExpiryUnix != 1_700_003_600 {
		t.Fatalf("ExpiryUnix=%d, want %d", creds.ExpiryUnix, 1_700_003_600)
	}
	wantUsername := "1700003600:meet:session123"
	if creds.Username != wantUsername {
		t.Fatalf("Username=%q, want %q", creds.Username, wantUsername)
	}
	if want := expectedCredential(t, []byte("shared-secret"), wantUsername); creds.Credential != want {
		t.Fatalf("Credential=%q, want %q", creds.Credential, want)
	}
}

func TestGenerateRandom_UsesUUID(t *testing.T) {
	g, err := NewGenerator(GeneratorConfig{SharedSecret: "s", TTLSeconds: 60, UsernamePrefix: "meet"})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	a, err := g.GenerateRandom()
	if err != nil {
		t.Fatalf("GenerateRandom: %v", err)
	}
	b, _ := g.GenerateRandom()
	if a.Username == b.Username {
		t.Fatalf("random usernames collide: %q", a.Username)
	}
	parts := strings.Split(a.Username, ":")
	if len(parts) != 3 || parts[1] != "meet" {
		t.Fatalf("username=%q", a.Username)
	}
	if _, err := uuid.Parse(parts[2]); err != nil {
		t.Fatalf("id %q is not a uuid: %v", parts[2], err)
	}
}

func TestNewGenerator_Validates(t *testing.T) {
	cases := []GeneratorConfig{
		{TTLSeconds: 60, UsernamePrefix: "p"},
		{SharedSecret: "s", UsernamePrefix: "p"},
		{SharedSecret: "s", TTLSeconds: 60},
		{SharedSecret: "s", TTLSeconds: 60, UsernamePrefix: "a:b"},
	}
	for i, cfg := range cases {
		if _, err := NewGenerator(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestGenerate_RejectsBadID(t *testing.T) {
	g, _ := NewGenerator(GeneratorConfig{SharedSecret: "s", TTLSeconds: 60, UsernamePrefix: "p"})
	for _, id := range []string{"", "a:b"} {
		if _, err := g.Generate(id); err == nil {
			t.Fatalf("Generate(%q): expected error", id)
		}
	}
}
