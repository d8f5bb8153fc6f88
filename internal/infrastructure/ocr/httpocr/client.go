package httpocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/resilience"
)

const defaultMaxResponseSize = 32 << 20

type Client struct {
	httpClient      *http.Client
	executor        *resilience.Executor
	maxResponseSize int64
}

type Options struct {
	Timeout            time.Duration
	MaxResponseSize    int64
	ResilienceExecutor *resilience.Executor
	HTTPClient         *http.Client
}

func New(options Options) *Client {
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxResponseSize := options.MaxResponseSize
	if maxResponseSize <= 0 {
		maxResponseSize = defaultMaxResponseSize
	}
	return &Client{
		httpClient:      httpClient,
		executor:        options.ResilienceExecutor,
		maxResponseSize: maxResponseSize,
	}
}

// Send posts the raw document bytes and hands back status and body untouched.
// A non-2xx status is not an error here; interpreting it is the caller's job.
func (c *Client) Send(ctx context.Context, req domain.OCRRequest) (domain.OCRResponse, error) {
	var out domain.OCRResponse
	call := func(callCtx context.Context) error {
		resp, err := c.do(callCtx, req)
		if err != nil {
			return err
		}
		out = resp
		if countsAsOutage(resp.StatusCode) {
			return &HTTPStatusError{StatusCode: resp.StatusCode, Body: resp.Snippet()}
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ocr.pdf", call, recordOCRFailure)
	} else {
		err = call(ctx)
	}

	var statusErr *HTTPStatusError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &statusErr):
		return out, nil
	case resilience.IsCircuitOpen(err):
		return domain.OCRResponse{}, domain.WrapError(domain.ErrNetwork, "ocr request",
			domain.WrapError(domain.ErrTemporary, "circuit open", err))
	default:
		return domain.OCRResponse{}, domain.WrapError(domain.ErrNetwork, "ocr request", err)
	}
}

func (c *Client) do(ctx context.Context, in domain.OCRRequest) (domain.OCRResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.URL, bytes.NewReader(in.Body))
	if err != nil {
		return domain.OCRResponse{}, fmt.Errorf("create ocr request: %w", err)
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if in.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+in.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OCRResponse{}, fmt.Errorf("send ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return domain.OCRResponse{}, fmt.Errorf("read ocr response: %w", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		slog.Warn("ocr_response_truncated", "url", in.URL, "limit_bytes", c.maxResponseSize)
		body = body[:c.maxResponseSize]
	}

	slog.Debug("ocr_response",
		"url", in.URL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"body_snippet", domain.Snippet(body),
	)
	return domain.OCRResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
