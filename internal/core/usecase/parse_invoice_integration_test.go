package usecase

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/ocr/httpocr"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/settings/yamlstore"
	"github.com/kirillkom/invoice-agent/internal/testutil"
)

type ocrServer struct {
	*httptest.Server
	calls       atomic.Int32
	lastPath    string
	lastType    string
	lastPayload []byte
}

func newOCRServer(t *testing.T, status int, body string) *ocrServer {
	t.Helper()
	srv := &ocrServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.calls.Add(1)
		srv.lastPath = r.URL.Path
		srv.lastType = r.Header.Get("Content-Type")
		srv.lastPayload, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newWiredParser(t *testing.T, baseURL string, maxSize int64) *ParseInvoiceUseCase {
	t.Helper()
	store, err := yamlstore.New(filepath.Join(t.TempDir(), "store.yaml"))
	if err != nil {
		t.Fatalf("yamlstore.New() error = %v", err)
	}
	if err := store.Set(context.Background(), domain.SettingAPIBaseURL, baseURL); err != nil {
		t.Fatalf("store.Set() error = %v", err)
	}
	extractor := pdftext.NewExtractor(maxSize)
	return NewParseInvoiceUseCase(extractor, extractor, httpocr.New(httpocr.Options{}), store)
}

func TestParseInvoiceEndToEndUsesEmbeddedText(t *testing.T) {
	srv := newOCRServer(t, http.StatusOK, `{"text":"should not be used"}`)
	path := testutil.WriteFile(t, "invoice.pdf", testutil.PDF("Client: Jane Doe", "Invoice No INV-7"))

	result, err := newWiredParser(t, srv.URL, 0).ParseInvoice(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseInvoice() error = %v", err)
	}
	if !strings.Contains(result.Text, "INV-7") || result.Provenance != domain.ProvenanceLocal {
		t.Fatalf("unexpected result %+v", result)
	}
	if srv.calls.Load() != 0 {
		t.Fatalf("expected zero OCR calls, got %d", srv.calls.Load())
	}
}

func TestParseInvoiceEndToEndSendsScannedDocumentToOCR(t *testing.T) {
	srv := newOCRServer(t, http.StatusOK, `{"text":"hello"}`)
	raw := testutil.PDF()
	path := testutil.WriteFile(t, "scan.pdf", raw)

	result, err := newWiredParser(t, srv.URL+"/", 0).ParseInvoice(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseInvoice() error = %v", err)
	}
	if result.Text != "hello" || result.Provenance != domain.ProvenanceOCR {
		t.Fatalf("unexpected result %+v", result)
	}
	if srv.calls.Load() != 1 || srv.lastPath != "/ocr/pdf" || srv.lastType != "application/pdf" {
		t.Fatalf("unexpected OCR call: calls=%d path=%q type=%q", srv.calls.Load(), srv.lastPath, srv.lastType)
	}
	if !bytes.Equal(srv.lastPayload, raw) {
		t.Fatalf("OCR payload differs from document bytes")
	}
}

func TestParseInvoiceEndToEndServerErrorIsGenericFailure(t *testing.T) {
	srv := newOCRServer(t, http.StatusInternalServerError, `{"text":"ignored"}`)
	path := testutil.WriteFile(t, "scan.pdf", testutil.PDF())

	_, err := newWiredParser(t, srv.URL, 0).ParseInvoice(context.Background(), path)
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected generic extraction error, got %v", err)
	}
}

func TestParseInvoiceEndToEndRejectsOversizedFile(t *testing.T) {
	srv := newOCRServer(t, http.StatusOK, `{"text":"x"}`)
	path := testutil.WriteFile(t, "big.pdf", testutil.PDF("Invoice text that makes the file bigger than the limit"))

	_, err := newWiredParser(t, srv.URL, 64).ParseInvoice(context.Background(), path)
	if !domain.IsKind(err, domain.ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if srv.calls.Load() != 0 {
		t.Fatalf("expected zero OCR calls")
	}
}
