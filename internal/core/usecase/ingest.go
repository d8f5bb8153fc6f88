package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
)

// FileObserver is notified around every processed file.
type FileObserver interface {
	StartFile()
	FinishFile(status domain.ProcessingStatus, duration time.Duration)
}

type IngestOption func(*IngestInvoiceUseCase)

func WithLedger(ledger ports.Ledger) IngestOption {
	return func(uc *IngestInvoiceUseCase) { uc.ledger = ledger }
}

func WithEventPublisher(events ports.EventPublisher) IngestOption {
	return func(uc *IngestInvoiceUseCase) { uc.events = events }
}

func WithFileObserver(observer FileObserver) IngestOption {
	return func(uc *IngestInvoiceUseCase) { uc.observer = observer }
}

// IngestInvoiceUseCase turns a dropped .pdf or .xlsx into an import request,
// then archives the file and records the outcome.
type IngestInvoiceUseCase struct {
	parser    ports.InvoiceParser
	fields    ports.FieldExtractor
	sheets    ports.SpreadsheetReader
	submitter ports.InvoiceSubmitter
	settings  ports.SettingsStore
	archive   ports.FileArchive
	ledger    ports.Ledger
	events    ports.EventPublisher
	observer  FileObserver
	now       func() time.Time
}

func NewIngestInvoiceUseCase(
	parser ports.InvoiceParser,
	fields ports.FieldExtractor,
	sheets ports.SpreadsheetReader,
	submitter ports.InvoiceSubmitter,
	settings ports.SettingsStore,
	archive ports.FileArchive,
	opts ...IngestOption,
) *IngestInvoiceUseCase {
	uc := &IngestInvoiceUseCase{
		parser:    parser,
		fields:    fields,
		sheets:    sheets,
		submitter: submitter,
		settings:  settings,
		archive:   archive,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type ingestOutcome struct {
	status     domain.ProcessingStatus
	provenance domain.Provenance
	hash       string
}

// ProcessFile returns the final event; the error is non-nil only when the
// event status is error.
func (uc *IngestInvoiceUseCase) ProcessFile(ctx context.Context, filePath string) (domain.ProcessingEvent, error) {
	path := strings.TrimSpace(filePath)
	kind, err := submissionKind(path)
	if err != nil {
		return domain.ProcessingEvent{}, err
	}

	started := time.Now()
	if uc.observer != nil {
		uc.observer.StartFile()
	}
	uc.emit(ctx, uc.event(path, domain.ProcessingStarted, nil))

	outcome, err := uc.process(ctx, path, kind)
	if err != nil {
		outcome.status = domain.ProcessingError
	}

	if _, archiveErr := uc.archive.Archive(ctx, path, outcome.status); archiveErr != nil {
		slog.Error("invoice_archive_failed", "path", path, "error", archiveErr)
		if err == nil {
			err = archiveErr
			outcome.status = domain.ProcessingError
		}
	}
	uc.record(ctx, path, outcome, err)

	event := uc.event(path, outcome.status, err)
	uc.emit(ctx, event)
	if uc.observer != nil {
		uc.observer.FinishFile(outcome.status, time.Since(started))
	}
	return event, err
}

func (uc *IngestInvoiceUseCase) process(ctx context.Context, path string, kind domain.SubmissionKind) (ingestOutcome, error) {
	var outcome ingestOutcome

	hash, err := uc.archive.Hash(ctx, path)
	if err != nil {
		return outcome, fmt.Errorf("fingerprint file: %w", err)
	}
	outcome.hash = hash

	if uc.ledger != nil {
		prior, err := uc.ledger.FindSuccessfulByHash(ctx, hash)
		if err != nil {
			slog.Warn("invoice_ledger_lookup_failed", "path", path, "error", err)
		} else if prior != nil {
			slog.Info("invoice_already_processed", "path", path, "previous_path", prior.Path)
			outcome.status = domain.ProcessingSkipped
			return outcome, nil
		}
	}

	settings, err := loadSettings(ctx, uc.settings)
	if err != nil {
		return outcome, err
	}

	submission := domain.Submission{Type: kind, FileName: filepath.Base(path)}
	switch kind {
	case domain.SubmissionPDF:
		result, err := uc.parser.ParseInvoice(ctx, path)
		if err != nil {
			return outcome, err
		}
		outcome.provenance = result.Provenance
		fields := uc.fields.Extract(result.Text)
		if err := fields.Validate(); err != nil {
			return outcome, err
		}
		submission.Content = result.Text
		submission.Fields = []domain.InvoiceFields{fields}
	case domain.SubmissionExcel:
		rows, err := uc.sheets.ReadRows(ctx, path)
		if err != nil {
			return outcome, err
		}
		fields, err := uc.rowFields(path, rows)
		if err != nil {
			return outcome, err
		}
		submission.Content = rows
		submission.Fields = fields
	}

	result, err := uc.submitter.Submit(ctx, settings, submission)
	if err != nil {
		return outcome, fmt.Errorf("submit invoice: %w", err)
	}
	outcome.status = domain.ProcessingSuccess
	if result.Duplicate {
		outcome.status = domain.ProcessingSkipped
	}
	slog.Info("invoice_submitted",
		"path", path,
		"type", string(kind),
		"records", len(submission.Fields),
		"duplicate", result.Duplicate,
		"message", result.Message,
	)
	return outcome, nil
}

// rowFields drops rows that miss required fields; a workbook with no valid
// rows is an error.
func (uc *IngestInvoiceUseCase) rowFields(path string, rows []map[string]string) ([]domain.InvoiceFields, error) {
	out := make([]domain.InvoiceFields, 0, len(rows))
	for i, row := range rows {
		fields := uc.fields.ExtractRow(row)
		if err := fields.Validate(); err != nil {
			slog.Warn("invoice_row_invalid", "path", path, "row", i+2, "error", err)
			continue
		}
		out = append(out, fields)
	}
	if len(out) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read invoice rows", errors.New("workbook has no valid invoice rows"))
	}
	return out, nil
}

func (uc *IngestInvoiceUseCase) record(ctx context.Context, path string, outcome ingestOutcome, cause error) {
	if uc.ledger == nil || outcome.hash == "" {
		return
	}
	entry := domain.LedgerEntry{
		Path:        path,
		SHA256:      outcome.hash,
		Status:      outcome.status,
		Provenance:  outcome.provenance,
		ProcessedAt: uc.now(),
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	if err := uc.ledger.Record(ctx, entry); err != nil {
		slog.Warn("invoice_ledger_record_failed", "path", path, "error", err)
	}
}

func (uc *IngestInvoiceUseCase) event(path string, status domain.ProcessingStatus, cause error) domain.ProcessingEvent {
	event := domain.ProcessingEvent{
		FileName:  filepath.Base(path),
		FullPath:  path,
		Status:    status,
		Timestamp: uc.now(),
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	return event
}

func (uc *IngestInvoiceUseCase) emit(ctx context.Context, event domain.ProcessingEvent) {
	level := slog.LevelInfo
	if event.Status == domain.ProcessingError {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "invoice_processing",
		"file_name", event.FileName,
		"full_path", event.FullPath,
		"status", string(event.Status),
		"error", event.Error,
	)

	if uc.events == nil {
		return
	}
	if err := uc.events.PublishProcessingEvent(ctx, event); err != nil {
		slog.Warn("invoice_event_publish_failed", "file_name", event.FileName, "status", string(event.Status), "error", err)
	}
}

func submissionKind(path string) (domain.SubmissionKind, error) {
	if path == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "process invoice file", errors.New("file path is required"))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return domain.SubmissionPDF, nil
	case ".xlsx":
		return domain.SubmissionExcel, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "process invoice file",
			fmt.Errorf("unsupported file type %q", filepath.Ext(path)))
	}
}
