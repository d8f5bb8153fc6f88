package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

const defaultChunkSize = 32 * 1024

type HTTPDownloader struct {
	httpClient *http.Client
	chunkSize  int
}

func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPDownloader{
		httpClient: &http.Client{Timeout: timeout},
		chunkSize:  defaultChunkSize,
	}
}

// Download streams the package into dst, calling onChunk for every chunk and
// onFinish once after the last one. The sha256 from the manifest is verified
// before onFinish fires.
func (d *HTTPDownloader) Download(
	ctx context.Context,
	manifest domain.UpdateManifest,
	dst io.Writer,
	onChunk ports.ChunkFunc,
	onFinish func(),
) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifest.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, domain.WrapError(domain.ErrNetwork, "download package", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, domain.WrapError(domain.ErrNonSuccessStatus, "download package",
			fmt.Errorf("status %s: %s", resp.Status, domain.Snippet(snippet)))
	}

	total := resp.ContentLength
	if total <= 0 {
		total = manifest.Size
	}
	if total < 0 {
		total = 0
	}

	var digest hash.Hash
	if manifest.SHA256 != "" {
		digest = sha256.New()
	}

	written, err := d.copyChunks(resp.Body, dst, digest, total, onChunk)
	if err != nil {
		return written, err
	}
	if total > 0 && written != total {
		return written, fmt.Errorf("size mismatch: got %d bytes, expected %d", written, total)
	}
	if digest != nil {
		got := hex.EncodeToString(digest.Sum(nil))
		if !strings.EqualFold(got, strings.TrimSpace(manifest.SHA256)) {
			return written, fmt.Errorf("checksum mismatch: got %s, expected %s", got, manifest.SHA256)
		}
	}

	if onFinish != nil {
		onFinish()
	}
	return written, nil
}

func (d *HTTPDownloader) copyChunks(src io.Reader, dst io.Writer, digest hash.Hash, total int64, onChunk ports.ChunkFunc) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if _, err := dst.Write(chunk); err != nil {
				return written, fmt.Errorf("write package: %w", err)
			}
			if digest != nil {
				_, _ = digest.Write(chunk)
			}
			written += int64(n)
			if onChunk != nil {
				onChunk(n, total)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, domain.WrapError(domain.ErrNetwork, "read package", readErr)
		}
	}
}
