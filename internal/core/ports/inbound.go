package ports

import (
	"context"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

// InvoiceParser is the inbound contract behind parse_invoice.
type InvoiceParser interface {
	ParseInvoice(ctx context.Context, filePath string) (domain.ExtractionResult, error)
}

// Updater runs the self-update flow to completion.
type Updater interface {
	Update(ctx context.Context) (domain.UpdateOutcome, error)
}

// SettingsService exposes the save/load operations for the two user settings.
type SettingsService interface {
	SaveAPIKey(ctx context.Context, key string) error
	LoadAPIKey(ctx context.Context) (string, error)
	SaveAPIBaseURL(ctx context.Context, url string) error
	LoadAPIBaseURL(ctx context.Context) (string, error)
}

// InvoiceProcessor handles one file discovered by the folder watcher.
type InvoiceProcessor interface {
	ProcessFile(ctx context.Context, path string) (domain.ProcessingEvent, error)
}
