package domain

import (
	"strings"
	"time"
)

type Provenance string

const (
	ProvenanceLocal Provenance = "local"
	ProvenanceOCR   Provenance = "ocr"
)

// DefaultMaxFileSize is the largest document accepted for extraction.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

type ExtractionResult struct {
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
}

type OCRRequest struct {
	URL         string
	ContentType string
	APIKey      string
	Body        []byte
}

type OCRResponse struct {
	StatusCode int
	Body       []byte
}

func (r OCRResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// snippetLimit bounds how much of a response body ever reaches a log line or error.
const snippetLimit = 256

// Snippet renders at most snippetLimit bytes of the body as valid UTF-8.
func (r OCRResponse) Snippet() string {
	return Snippet(r.Body)
}

func Snippet(body []byte) string {
	truncated := false
	if len(body) > snippetLimit {
		body = body[:snippetLimit]
		truncated = true
	}
	out := strings.TrimSpace(strings.ToValidUTF8(string(body), "\uFFFD"))
	if truncated {
		out += "..."
	}
	return out
}

const (
	SettingAPIKey     = "apiKey"
	SettingAPIBaseURL = "apiBaseUrl"

	OCRPath        = "/ocr/pdf"
	PDFContentType = "application/pdf"
)

// Settings mirrors the two values the core reads from the key-value store.
type Settings struct {
	APIKey     string `yaml:"apiKey" json:"apiKey"`
	APIBaseURL string `yaml:"apiBaseUrl" json:"apiBaseUrl"`
}

type ProcessingStatus string

const (
	ProcessingStarted ProcessingStatus = "started"
	ProcessingSuccess ProcessingStatus = "success"
	ProcessingError   ProcessingStatus = "error"
	ProcessingSkipped ProcessingStatus = "skipped"
)

type ProcessingEvent struct {
	FileName  string           `json:"file_name"`
	FullPath  string           `json:"full_path,omitempty"`
	Status    ProcessingStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

type LedgerEntry struct {
	Path        string
	SHA256      string
	Status      ProcessingStatus
	Provenance  Provenance
	Error       string
	ProcessedAt time.Time
}
