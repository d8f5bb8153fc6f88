package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

// ExtractionObserver receives the outcome of every parse call.
type ExtractionObserver interface {
	ObserveParse(provenance domain.Provenance, err error, duration time.Duration)
	ObserveOCR(statusCode int, err error)
}

type ParseOption func(*ParseInvoiceUseCase)

// WithOCROnLocalError controls whether a document the local extractor could
// not parse is still sent to OCR. Enabled by default.
func WithOCROnLocalError(enabled bool) ParseOption {
	return func(uc *ParseInvoiceUseCase) { uc.ocrOnLocalError = enabled }
}

func WithExtractionObserver(observer ExtractionObserver) ParseOption {
	return func(uc *ParseInvoiceUseCase) { uc.observer = observer }
}

// ParseInvoiceUseCase runs local extraction first and falls back to OCR when
// local extraction fails or yields only whitespace.
type ParseInvoiceUseCase struct {
	local     ports.LocalExtractor
	documents ports.DocumentReader
	ocr       ports.OCRClient
	settings  ports.SettingsStore
	observer  ExtractionObserver

	ocrOnLocalError bool
	inflight        singleflight.Group
}

func NewParseInvoiceUseCase(
	local ports.LocalExtractor,
	documents ports.DocumentReader,
	ocr ports.OCRClient,
	settings ports.SettingsStore,
	opts ...ParseOption,
) *ParseInvoiceUseCase {
	uc := &ParseInvoiceUseCase{
		local:           local,
		documents:       documents,
		ocr:             ocr,
		settings:        settings,
		ocrOnLocalError: true,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ParseInvoice extracts the text of the document at filePath. Concurrent calls
// for the same path share one extraction; the shared work is detached from any
// single caller, so a caller that gives up only stops waiting for itself.
func (uc *ParseInvoiceUseCase) ParseInvoice(ctx context.Context, filePath string) (domain.ExtractionResult, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.ExtractionResult{}, domain.WrapError(domain.ErrInvalidInput, "parse invoice", errors.New("file path is required"))
	}

	started := time.Now()
	shared := context.WithoutCancel(ctx)
	ch := uc.inflight.DoChan(path, func() (any, error) {
		return uc.parse(shared, path)
	})

	var (
		result domain.ExtractionResult
		err    error
	)
	select {
	case res := <-ch:
		result, _ = res.Val.(domain.ExtractionResult)
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if uc.observer != nil {
		uc.observer.ObserveParse(result.Provenance, err, time.Since(started))
	}
	if err != nil {
		return domain.ExtractionResult{}, err
	}
	return result, nil
}

func (uc *ParseInvoiceUseCase) parse(ctx context.Context, path string) (domain.ExtractionResult, error) {
	text, localErr := uc.local.ExtractFile(ctx, path)
	if localErr == nil && strings.TrimSpace(text) != "" {
		return domain.ExtractionResult{Text: text, Provenance: domain.ProvenanceLocal}, nil
	}

	if localErr != nil {
		// Nothing can be sent to OCR for these: the bytes are unavailable or
		// deliberately never read.
		if domain.IsKind(localErr, domain.ErrFileTooLarge) || domain.IsKind(localErr, domain.ErrFileRead) {
			return domain.ExtractionResult{}, fmt.Errorf("parse invoice: %w", localErr)
		}
		if !uc.ocrOnLocalError {
			return domain.ExtractionResult{}, uc.fail(path, localErr)
		}
		slog.Warn("local_extraction_failed", "path", path, "error", localErr)
	} else {
		slog.Info("local_extraction_empty", "path", path)
	}

	return uc.ocrFallback(ctx, path)
}

func (uc *ParseInvoiceUseCase) ocrFallback(ctx context.Context, path string) (domain.ExtractionResult, error) {
	settings, err := loadSettings(ctx, uc.settings)
	if err != nil {
		return domain.ExtractionResult{}, uc.fail(path, err)
	}
	endpoint, err := ocrEndpoint(settings.APIBaseURL)
	if err != nil {
		return domain.ExtractionResult{}, uc.fail(path, err)
	}

	body, err := uc.documents.ReadDocument(ctx, path)
	if err != nil {
		return domain.ExtractionResult{}, uc.fail(path, err)
	}

	slog.Info("ocr_fallback", "path", path, "url", endpoint, "bytes", len(body))
	resp, err := uc.ocr.Send(ctx, domain.OCRRequest{
		URL:         endpoint,
		ContentType: domain.PDFContentType,
		APIKey:      settings.APIKey,
		Body:        body,
	})
	if err != nil {
		uc.observeOCR(0, err)
		return domain.ExtractionResult{}, uc.fail(path, err)
	}

	text, err := decodeOCRResponse(resp)
	uc.observeOCR(resp.StatusCode, err)
	if err != nil {
		return domain.ExtractionResult{}, uc.fail(path, err)
	}
	return domain.ExtractionResult{Text: text, Provenance: domain.ProvenanceOCR}, nil
}

// fail logs the specific cause and returns it wrapped in the generic kind.
func (uc *ParseInvoiceUseCase) fail(path string, cause error) error {
	kind := "unknown"
	if k := domain.KindOf(cause); k != nil {
		kind = k.Error()
	}
	slog.Warn("invoice_extraction_failed", "path", path, "kind", kind, "error", cause)
	return domain.WrapError(domain.ErrExtractionFailed, "parse invoice", cause)
}

func (uc *ParseInvoiceUseCase) observeOCR(statusCode int, err error) {
	if uc.observer != nil {
		uc.observer.ObserveOCR(statusCode, err)
	}
}

func ocrEndpoint(baseURL string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", domain.WrapError(domain.ErrNotConfigured, "resolve ocr endpoint", errors.New("apiBaseUrl is empty"))
	}
	return base + domain.OCRPath, nil
}

// decodeOCRResponse accepts only a 2xx JSON object carrying a string "text".
// An empty string is a valid result.
func decodeOCRResponse(resp domain.OCRResponse) (string, error) {
	if !resp.Success() {
		return "", domain.WrapError(domain.ErrNonSuccessStatus, "ocr response",
			fmt.Errorf("status %d: %s", resp.StatusCode, resp.Snippet()))
	}
	if !utf8.Valid(resp.Body) {
		return "", domain.WrapError(domain.ErrResponseDecode, "ocr response", errors.New("body is not valid utf-8"))
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", domain.WrapError(domain.ErrResponseDecode, "ocr response",
			fmt.Errorf("%w: %s", err, resp.Snippet()))
	}

	raw, ok := payload["text"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", domain.WrapError(domain.ErrMissingTextField, "ocr response", errors.New(`no "text" field`))
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", domain.WrapError(domain.ErrMissingTextField, "ocr response", fmt.Errorf(`"text" is not a string: %w`, err))
	}
	return text, nil
}
