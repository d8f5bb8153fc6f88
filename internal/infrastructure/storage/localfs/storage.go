package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Archive owns the inbox layout: <root>/processed and <root>/failed.
type Archive struct {
	root string
}

func New(root string) (*Archive, error) {
	if strings.TrimSpace(root) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create archive", errors.New("root is empty"))
	}
	for _, dir := range []string{root, filepath.Join(root, ProcessedDir), filepath.Join(root, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
	}
	return &Archive{root: root}, nil
}

func (a *Archive) Root() string {
	return a.root
}

func (a *Archive) Hash(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "open file", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "hash file", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Archive moves path into processed/ (success, skipped) or failed/ (anything
// else) and returns the new location. Existing names get a numeric suffix.
func (a *Archive) Archive(_ context.Context, path string, status domain.ProcessingStatus) (string, error) {
	dir := FailedDir
	if status == domain.ProcessingSuccess || status == domain.ProcessingSkipped {
		dir = ProcessedDir
	}

	dst, err := freeName(filepath.Join(a.root, dir), filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := os.Rename(path, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("archive %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove archived source: %w", err)
	}
	return dst, nil
}

func freeName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat archive target: %w", err)
		}
		candidate = filepath.Join(dir, stem+"-"+strconv.Itoa(i)+ext)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("write file: %w", err)
	}
	return out.Close()
}
