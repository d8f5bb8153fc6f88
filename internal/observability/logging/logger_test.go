package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewWritesServiceAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "invoice-agent", "warn")

	logger.Info("hidden")
	logger.Warn("ocr_fallback", "path", "/tmp/a.pdf")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "ocr_fallback" || entry["service"] != "invoice-agent" || entry["path"] != "/tmp/a.pdf" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "svc", "info").Info("settings_saved", "api_key", "secret-value")

	if bytes.Contains(buf.Bytes(), []byte("secret-value")) {
		t.Fatalf("api key leaked into log: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
