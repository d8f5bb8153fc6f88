package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

type Extractor struct {
	maxFileSize int64
}

// NewExtractor builds an extractor rejecting files above maxFileSize bytes.
// A non-positive limit falls back to domain.DefaultMaxFileSize.
func NewExtractor(maxFileSize int64) *Extractor {
	if maxFileSize <= 0 {
		maxFileSize = domain.DefaultMaxFileSize
	}
	return &Extractor{maxFileSize: maxFileSize}
}

func (e *Extractor) MaxFileSize() int64 {
	return e.maxFileSize
}

// ExtractFile returns the embedded text of the PDF at path. The size limit is
// checked against file metadata before the file is opened.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "stat document", err)
	}
	if info.IsDir() {
		return "", domain.WrapError(domain.ErrFileRead, "stat document", fmt.Errorf("%s is a directory", path))
	}
	if info.Size() > e.maxFileSize {
		return "", domain.WrapError(domain.ErrFileTooLarge, "check document size",
			fmt.Errorf("%d bytes exceeds limit of %d bytes", info.Size(), e.maxFileSize))
	}

	f, err := os.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "open document", err)
	}
	defer f.Close()

	return extract(f, info.Size())
}

// extract guards the parser: malformed input can panic deep inside it.
func extract(r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = domain.WrapError(domain.ErrLocalExtraction, "parse pdf", fmt.Errorf("parser panic: %v", rec))
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", domain.WrapError(domain.ErrLocalExtraction, "open pdf", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrLocalExtraction, "read pdf text", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", domain.WrapError(domain.ErrLocalExtraction, "read pdf text", err)
	}
	return buf.String(), nil
}

// ReadDocument returns the raw bytes of the document at path under the same
// size limit as ExtractFile.
func (e *Extractor) ReadDocument(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "stat document", err)
	}
	if info.Size() > e.maxFileSize {
		return nil, domain.WrapError(domain.ErrFileTooLarge, "check document size",
			fmt.Errorf("%d bytes exceeds limit of %d bytes", info.Size(), e.maxFileSize))
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileRead, "read document", err)
	}
	return raw, nil
}
