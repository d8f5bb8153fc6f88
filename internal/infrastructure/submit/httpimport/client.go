package httpimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/resilience"
)

const (
	ImportPath        = "/api/invoices/import"
	duplicateMarker   = "No new records inserted"
	maxImportResponse = 1 << 20
)

type Client struct {
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type importResponse struct {
	Message string `json:"message"`
}

type statusError struct {
	statusCode int
	body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("import status: %d %s: %s", e.statusCode, http.StatusText(e.statusCode), e.body)
}

// Submit posts one file worth of invoice data to the import endpoint.
func (c *Client) Submit(ctx context.Context, settings domain.Settings, submission domain.Submission) (domain.SubmissionResult, error) {
	base := strings.TrimRight(strings.TrimSpace(settings.APIBaseURL), "/")
	if base == "" {
		return domain.SubmissionResult{}, domain.WrapError(domain.ErrNotConfigured, "submit invoice",
			fmt.Errorf("%s is empty", domain.SettingAPIBaseURL))
	}
	payload, err := json.Marshal(submission)
	if err != nil {
		return domain.SubmissionResult{}, domain.WrapError(domain.ErrInvalidInput, "encode submission", err)
	}

	var body []byte
	err = c.executor.Execute(ctx, "invoice.import", func(callCtx context.Context) error {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, base+ImportPath, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create import request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if settings.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+settings.APIKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.WrapError(domain.ErrNetwork, "send import request", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxImportResponse))
		if err != nil {
			return domain.WrapError(domain.ErrNetwork, "read import response", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return domain.WrapError(domain.ErrNonSuccessStatus, "import invoice",
				&statusError{statusCode: resp.StatusCode, body: domain.Snippet(body)})
		}
		return nil
	}, recordImportFailure)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return domain.SubmissionResult{}, domain.WrapError(domain.ErrNetwork, "import invoice",
				domain.WrapError(domain.ErrTemporary, "circuit open", err))
		}
		return domain.SubmissionResult{}, err
	}

	var decoded importResponse
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			slog.Warn("import_response_not_json", "file_name", submission.FileName, "body_snippet", domain.Snippet(body))
		}
	}
	return domain.SubmissionResult{
		Message:   decoded.Message,
		Duplicate: strings.Contains(decoded.Message, duplicateMarker),
	}, nil
}

// recordImportFailure counts transport errors and server-side failures only.
func recordImportFailure(err error) bool {
	if !resilience.DefaultFailureClassifier(err) {
		return false
	}
	if domain.IsKind(err, domain.ErrNetwork) {
		return true
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode >= 500 || statusErr.statusCode == http.StatusTooManyRequests
	}
	return false
}
