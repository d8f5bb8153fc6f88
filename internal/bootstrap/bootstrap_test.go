package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/invoice-agent/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SETTINGS_PATH", filepath.Join(dir, "store.yaml"))
	t.Setenv("WATCH_DIR", filepath.Join(dir, "inbox"))
	t.Setenv("LEDGER_DSN", "file:"+filepath.Join(dir, "ledger.db"))
	t.Setenv("NATS_URL", "")
	return config.Load()
}

func TestNewWiresCoreUseCases(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), Options{Version: "1.0.0"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer app.Close()

	if app.ParseUC == nil || app.UpdateUC == nil || app.Settings == nil || app.Metrics == nil {
		t.Fatalf("expected core use cases to be wired: %#v", app)
	}
	if app.IngestUC != nil {
		t.Fatalf("ingestion must stay disabled unless requested")
	}
}

func TestNewWithIngestionCreatesInboxAndLedger(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, Options{Version: "1.0.0", Ingestion: true})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer app.Close()

	if app.IngestUC == nil {
		t.Fatalf("expected ingestion use case")
	}
	if app.Events != nil {
		t.Fatalf("expected event bus to stay disabled without NATS_URL")
	}
	for _, dir := range []string{"processed", "failed"} {
		if _, err := os.Stat(filepath.Join(cfg.WatchDir, dir)); err != nil {
			t.Fatalf("expected %s inbox dir: %v", dir, err)
		}
	}
}
