package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/invoice-agent/internal/config"
	"github.com/kirillkom/invoice-agent/internal/core/ports"
	"github.com/kirillkom/invoice-agent/internal/core/usecase"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/fields"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/ocr/httpocr"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/queue/nats"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/settings/yamlstore"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/spreadsheet"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/submit/httpimport"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/update"
	"github.com/kirillkom/invoice-agent/internal/observability/metrics"
)

const ServiceName = "invoice-agent"

type Options struct {
	Version string
	// Ingestion opens the ledger, the event bus and the inbox archive needed
	// by the folder worker.
	Ingestion bool
}

type App struct {
	Config  config.Config
	Version string
	Metrics *metrics.Metrics

	Settings *usecase.SettingsUseCase
	ParseUC  *usecase.ParseInvoiceUseCase
	UpdateUC *usecase.UpdateUseCase
	IngestUC *usecase.IngestInvoiceUseCase
	Events   *nats.EventBus

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Version: opts.Version,
		Metrics: metrics.New(ServiceName),
	}

	store, err := yamlstore.New(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("init settings store: %w", err)
	}
	app.Settings = usecase.NewSettingsUseCase(store)

	executor := resilience.NewExecutor(resilience.Config{
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      cfg.BreakerMinRequests,
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: cfg.BreakerHalfOpenMaxCalls,
	})

	extractor := pdftext.NewExtractor(cfg.MaxFileSize)
	ocrClient := httpocr.New(httpocr.Options{
		Timeout:            cfg.OCRTimeout,
		MaxResponseSize:    cfg.OCRMaxResponseSize,
		ResilienceExecutor: executor,
	})
	app.ParseUC = usecase.NewParseInvoiceUseCase(extractor, extractor, ocrClient, store,
		usecase.WithOCROnLocalError(cfg.OCROnLocalError),
		usecase.WithExtractionObserver(app.Metrics),
	)

	app.UpdateUC = usecase.NewUpdateUseCase(
		opts.Version,
		update.NewManifestSource(cfg.UpdateManifestURL, cfg.UpdateTimeout, executor),
		update.NewHTTPDownloader(cfg.UpdateTimeout),
		update.NewSelfInstaller(""),
		update.NewProcessRestarter(cfg.UpdateRestartGrace),
		app.Metrics,
	)

	if opts.Ingestion {
		if err := app.initIngestion(ctx, cfg, store, executor); err != nil {
			app.Close()
			return nil, err
		}
	}
	return app, nil
}

func (a *App) initIngestion(ctx context.Context, cfg config.Config, store ports.SettingsStore, executor *resilience.Executor) error {
	archive, err := localfs.New(cfg.WatchDir)
	if err != nil {
		return fmt.Errorf("init inbox archive: %w", err)
	}

	db, dialect, err := sqlstore.OpenDB(cfg.LedgerDSN)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	a.closers = append(a.closers, func() { _ = db.Close() })
	ledger := sqlstore.NewLedgerRepository(db, dialect)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}

	extractor, err := fields.NewExtractor(nil)
	if err != nil {
		return fmt.Errorf("init field extractor: %w", err)
	}

	ingestOpts := []usecase.IngestOption{
		usecase.WithLedger(ledger),
		usecase.WithFileObserver(a.Metrics),
	}
	if cfg.NATSURL != "" {
		bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return fmt.Errorf("init event bus: %w", err)
		}
		a.Events = bus
		a.closers = append(a.closers, bus.Close)
		ingestOpts = append(ingestOpts, usecase.WithEventPublisher(bus))
	} else {
		slog.Info("event_bus_disabled", "reason", "NATS_URL is empty")
	}

	a.IngestUC = usecase.NewIngestInvoiceUseCase(
		a.ParseUC,
		extractor,
		spreadsheet.NewReader(cfg.MaxFileSize),
		httpimport.New(cfg.SubmitTimeout, executor),
		store,
		archive,
		ingestOpts...,
	)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
