package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotConfigured = errors.New("not configured")
	ErrTemporary     = errors.New("temporary failure")

	ErrFileRead        = errors.New("file read failed")
	ErrFileTooLarge    = errors.New("file too large")
	ErrLocalExtraction = errors.New("local extraction failed")

	ErrNetwork          = errors.New("network failure")
	ErrResponseDecode   = errors.New("response decode failed")
	ErrMissingTextField = errors.New("missing text field")
	ErrNonSuccessStatus = errors.New("non-success status")

	// ErrExtractionFailed is the single kind returned by the orchestrator when
	// neither the local extractor nor the OCR fallback produced text. The
	// specific cause stays wrapped next to it.
	ErrExtractionFailed = errors.New("failed to extract text")

	ErrUpdateCheck    = errors.New("update check failed")
	ErrUpdateDownload = errors.New("update download failed")
	ErrUpdateInstall  = errors.New("update install failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf returns the most specific known kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range specificKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

var specificKinds = []error{
	ErrFileTooLarge,
	ErrFileRead,
	ErrLocalExtraction,
	ErrNotConfigured,
	ErrNonSuccessStatus,
	ErrMissingTextField,
	ErrResponseDecode,
	ErrNetwork,
	ErrUpdateCheck,
	ErrUpdateDownload,
	ErrUpdateInstall,
	ErrInvalidInput,
	ErrTemporary,
}

// PublicMessage flattens err for callers outside the process. Extraction
// failures collapse to the generic message; the cause stays in the logs.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrExtractionFailed) {
		return ErrExtractionFailed.Error()
	}
	return err.Error()
}
