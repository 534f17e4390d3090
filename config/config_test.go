package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func write(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlayd.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := write(t, `
listen = ":9000"
log_level = "debug"
strict = true

[mdns]
enabled = true
instance = "scanner-room"

[limits]
max_overlays = 20
max_payload_pixels = 1_000_000
compose_timeout = "30s"
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.Listen = ":9000"
	want.LogLevel = "debug"
	want.Strict = true
	want.MDNS = MDNS{Enabled: true, Instance: "scanner-room"}
	want.Limits.MaxOverlays = 20
	want.Limits.MaxPayloadPixels = 1_000_000
	want.Limits.ComposeTimeout = 30 * time.Second
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name, body, want string
	}{
		{"unknown key", `listne = ":1"`, "unknown keys listne"},
		{"bad level", `log_level = "loud"`, "log_level"},
		{"bad format", `log_format = "xml"`, "log_format"},
		{"negative limit", "[limits]\nmax_pages = -1", "max_pages"},
		{"syntax", `listen = `, "config:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(write(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"
	var buf bytes.Buffer
	cfg.NewLogger(&buf).Info("ready", "port", 8080)
	if !strings.Contains(buf.String(), `"port":8080`) {
		t.Fatalf("json output = %s", buf.String())
	}
	cfg.LogLevel = "warn"
	buf.Reset()
	cfg.NewLogger(&buf).Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %s", buf.String())
	}
}
