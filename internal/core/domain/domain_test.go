package domain

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestWrapErrorKeepsKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrNetwork, "ocr request", cause)

	if !IsKind(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to stay reachable, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "ocr request: network failure: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if WrapError(ErrNetwork, "noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestKindOfPrefersSpecificKind(t *testing.T) {
	inner := WrapError(ErrMissingTextField, "ocr response", errors.New(`no "text" field`))
	err := WrapError(ErrExtractionFailed, "parse invoice", inner)

	if got := KindOf(err); got != ErrMissingTextField {
		t.Fatalf("KindOf() = %v, want ErrMissingTextField", got)
	}
	if got := KindOf(errors.New("plain")); got != nil {
		t.Fatalf("KindOf(plain) = %v, want nil", got)
	}
}

func TestPublicMessageFlattensExtractionFailures(t *testing.T) {
	inner := WrapError(ErrNonSuccessStatus, "ocr response", errors.New("status 500: boom"))
	err := WrapError(ErrExtractionFailed, "parse invoice", inner)

	if got := PublicMessage(err); got != "failed to extract text" {
		t.Fatalf("PublicMessage() = %q", got)
	}
	tooLarge := WrapError(ErrFileTooLarge, "check document size", errors.New("11 bytes"))
	if got := PublicMessage(tooLarge); got != tooLarge.Error() {
		t.Fatalf("PublicMessage() = %q, want %q", got, tooLarge.Error())
	}
	if PublicMessage(nil) != "" {
		t.Fatalf("expected empty message for nil")
	}
}

func TestSnippetIsBoundedAndValidUTF8(t *testing.T) {
	body := append([]byte(strings.Repeat("a", snippetLimit-1)), 0xe2, 0x82, 0xac, 'z')
	got := Snippet(body)

	if !utf8.ValidString(got) {
		t.Fatalf("snippet is not valid utf-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected truncation marker, got %q", got[len(got)-8:])
	}
	if Snippet([]byte("  short  ")) != "short" {
		t.Fatalf("expected trimmed short snippet")
	}
}

func TestOCRResponseSuccess(t *testing.T) {
	for status, want := range map[int]bool{199: false, 200: true, 204: true, 299: true, 300: false, 500: false} {
		if got := (OCRResponse{StatusCode: status}).Success(); got != want {
			t.Fatalf("Success() for %d = %v, want %v", status, got, want)
		}
	}
}

func TestInvoiceFieldsValidateListsMissingFields(t *testing.T) {
	err := InvoiceFields{Name: "Jane", Value: "100"}.Validate()
	if !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "Record Number, Service, Sub Service") {
		t.Fatalf("unexpected message %q", err.Error())
	}

	complete := InvoiceFields{Name: "Jane", Value: "100", RecordNumber: "INV-1", Service: "Rents", Subservice: "Houses"}
	if err := complete.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
