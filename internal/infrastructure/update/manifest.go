package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/resilience"
)

const maxManifestSize = 1 << 20

// ManifestSource reads a JSON release manifest from a fixed URL.
type ManifestSource struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewManifestSource(url string, timeout time.Duration, executor *resilience.Executor) *ManifestSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ManifestSource{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (s *ManifestSource) Latest(ctx context.Context) (domain.UpdateManifest, error) {
	if s.url == "" {
		return domain.UpdateManifest{}, domain.WrapError(domain.ErrNotConfigured, "fetch manifest", errors.New("update manifest url is empty"))
	}

	var manifest domain.UpdateManifest
	call := func(callCtx context.Context) error {
		m, err := s.fetch(callCtx)
		if err != nil {
			return err
		}
		manifest = m
		return nil
	}

	var err error
	if s.executor != nil {
		err = s.executor.Execute(ctx, "update.manifest", call, resilience.DefaultFailureClassifier)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.UpdateManifest{}, err
	}
	return manifest, nil
}

func (s *ManifestSource) fetch(ctx context.Context) (domain.UpdateManifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return domain.UpdateManifest{}, fmt.Errorf("create manifest request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.UpdateManifest{}, domain.WrapError(domain.ErrNetwork, "fetch manifest", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return domain.UpdateManifest{}, domain.WrapError(domain.ErrNetwork, "read manifest", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.UpdateManifest{}, domain.WrapError(domain.ErrNonSuccessStatus, "fetch manifest",
			fmt.Errorf("status %s: %s", resp.Status, domain.Snippet(body)))
	}

	var manifest domain.UpdateManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		return domain.UpdateManifest{}, domain.WrapError(domain.ErrResponseDecode, "decode manifest", err)
	}
	return manifest, nil
}
