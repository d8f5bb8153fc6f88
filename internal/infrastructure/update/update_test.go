package update

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

func TestManifestSourceDecodesManifest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"version":"1.4.0","url":"https://dl.example.com/agent","size":42,"sha256":"abc","notes":"fixes"}`))
	}))
	defer server.Close()

	manifest, err := NewManifestSource(server.URL, 0, nil).Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if manifest.Version != "1.4.0" || manifest.URL != "https://dl.example.com/agent" || manifest.Size != 42 {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
}

func TestManifestSourceRejectsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewManifestSource(server.URL, 0, nil).Latest(context.Background())
	if !domain.IsKind(err, domain.ErrNonSuccessStatus) {
		t.Fatalf("expected ErrNonSuccessStatus, got %v", err)
	}
}

func TestManifestSourceRequiresURL(t *testing.T) {
	_, err := NewManifestSource("", 0, nil).Latest(context.Background())
	if !domain.IsKind(err, domain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func packageServer(t *testing.T, payload []byte, announceLength bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if announceLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		}
		flusher, _ := w.(http.Flusher)
		for i := 0; i < len(payload); i += 7 {
			end := i + 7
			if end > len(payload) {
				end = len(payload)
			}
			_, _ = w.Write(payload[i:end])
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDownloadReportsEveryChunkThenFinishesOnce(t *testing.T) {
	payload := bytes.Repeat([]byte("update-bytes-"), 100)
	sum := sha256.Sum256(payload)
	server := packageServer(t, payload, true)

	downloader := NewHTTPDownloader(0)
	downloader.chunkSize = 64

	var (
		seen      int64
		lastTotal int64
		chunks    int
		finished  int
		orderErr  bool
		dst       bytes.Buffer
	)
	written, err := downloader.Download(context.Background(),
		domain.UpdateManifest{URL: server.URL, SHA256: hex.EncodeToString(sum[:])},
		&dst,
		func(n int, total int64) {
			if finished > 0 {
				orderErr = true
			}
			chunks++
			seen += int64(n)
			lastTotal = total
		},
		func() { finished++ },
	)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if written != int64(len(payload)) || seen != written || !bytes.Equal(dst.Bytes(), payload) {
		t.Fatalf("byte accounting mismatch: written=%d seen=%d", written, seen)
	}
	if lastTotal != int64(len(payload)) {
		t.Fatalf("expected total %d, got %d", len(payload), lastTotal)
	}
	if chunks < 2 || finished != 1 || orderErr {
		t.Fatalf("unexpected callbacks: chunks=%d finished=%d orderErr=%v", chunks, finished, orderErr)
	}
}

func TestDownloadFallsBackToManifestSizeWhenLengthUnknown(t *testing.T) {
	payload := bytes.Repeat([]byte("z"), 50)
	server := packageServer(t, payload, false)

	var lastTotal int64
	_, err := NewHTTPDownloader(0).Download(context.Background(),
		domain.UpdateManifest{URL: server.URL, Size: 50},
		&bytes.Buffer{},
		func(_ int, total int64) { lastTotal = total },
		nil,
	)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if lastTotal != 50 {
		t.Fatalf("expected manifest size as total, got %d", lastTotal)
	}
}

func TestDownloadRejectsChecksumMismatchWithoutFinishing(t *testing.T) {
	server := packageServer(t, []byte("tampered"), true)

	finished := false
	_, err := NewHTTPDownloader(0).Download(context.Background(),
		domain.UpdateManifest{URL: server.URL, SHA256: strings.Repeat("0", 64)},
		&bytes.Buffer{},
		nil,
		func() { finished = true },
	)
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if finished {
		t.Fatalf("finish callback must not fire for a rejected package")
	}
}

func TestDownloadRejectsFailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewHTTPDownloader(0).Download(context.Background(), domain.UpdateManifest{URL: server.URL}, &bytes.Buffer{}, nil, nil)
	if !domain.IsKind(err, domain.ErrNonSuccessStatus) {
		t.Fatalf("expected ErrNonSuccessStatus, got %v", err)
	}
}

func TestSelfInstallerReplacesTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "agent")
	if err := os.WriteFile(target, []byte("old binary"), 0o755); err != nil {
		t.Fatalf("write target: %v", err)
	}
	next := []byte("new binary")
	sum := sha256.Sum256(next)

	err := NewSelfInstaller(target).Install(context.Background(), bytes.NewReader(next),
		domain.UpdateManifest{Version: "2.0.0", SHA256: hex.EncodeToString(sum[:])})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read target: %v", err)
	}
	if string(got) != "new binary" {
		t.Fatalf("target not replaced, got %q", got)
	}
}

func TestSelfInstallerRejectsChecksumMismatch(t *testing.T) {
	target := filepath.Join(t.TempDir(), "agent")
	if err := os.WriteFile(target, []byte("old binary"), 0o755); err != nil {
		t.Fatalf("write target: %v", err)
	}

	err := NewSelfInstaller(target).Install(context.Background(), bytes.NewReader([]byte("new binary")),
		domain.UpdateManifest{SHA256: strings.Repeat("ab", 32)})
	if err == nil {
		t.Fatalf("expected checksum error")
	}
	got, _ := os.ReadFile(target)
	if string(got) != "old binary" {
		t.Fatalf("target must be untouched on failure, got %q", got)
	}
}
