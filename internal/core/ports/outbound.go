package ports

import (
	"context"
	"io"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

// LocalExtractor pulls embedded text out of a document on disk.
type LocalExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// DocumentReader returns the raw bytes of a document, enforcing the same size
// limit as the extractor.
type DocumentReader interface {
	ReadDocument(ctx context.Context, path string) ([]byte, error)
}

// OCRClient sends raw document bytes and returns the undecoded response.
type OCRClient interface {
	Send(ctx context.Context, req domain.OCRRequest) (domain.OCRResponse, error)
}

// SettingsStore is the key-value store holding apiKey and apiBaseUrl.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ReleaseSource answers the "is there something newer" question.
type ReleaseSource interface {
	Latest(ctx context.Context) (domain.UpdateManifest, error)
}

// ChunkFunc receives the length of every chunk and the expected total (0 if unknown).
type ChunkFunc func(chunkLen int, total int64)

// PackageDownloader streams an update package into dst.
type PackageDownloader interface {
	Download(ctx context.Context, manifest domain.UpdateManifest, dst io.Writer, onChunk ChunkFunc, onFinish func()) (int64, error)
}

// PackageInstaller applies a downloaded package to the running installation.
type PackageInstaller interface {
	Install(ctx context.Context, pkg io.Reader, manifest domain.UpdateManifest) error
}

// Restarter replaces the current process with a fresh instance.
type Restarter interface {
	Restart() error
}

// FieldExtractor turns invoice text or a spreadsheet row into structured fields.
type FieldExtractor interface {
	Extract(text string) domain.InvoiceFields
	ExtractRow(row map[string]string) domain.InvoiceFields
}

// SpreadsheetReader reads invoice rows from a workbook.
type SpreadsheetReader interface {
	ReadRows(ctx context.Context, path string) ([]map[string]string, error)
}

// InvoiceSubmitter sends parsed invoices to the backend.
type InvoiceSubmitter interface {
	Submit(ctx context.Context, settings domain.Settings, submission domain.Submission) (domain.SubmissionResult, error)
}

// EventPublisher fans out processing events.
type EventPublisher interface {
	PublishProcessingEvent(ctx context.Context, event domain.ProcessingEvent) error
}

// Ledger remembers which files were already processed.
type Ledger interface {
	Record(ctx context.Context, entry domain.LedgerEntry) error
	FindSuccessfulByHash(ctx context.Context, sha256 string) (*domain.LedgerEntry, error)
}

// FileArchive fingerprints incoming files and moves them out of the inbox
// once they are handled.
type FileArchive interface {
	Hash(ctx context.Context, path string) (string, error)
	Archive(ctx context.Context, path string, status domain.ProcessingStatus) (string, error)
}
