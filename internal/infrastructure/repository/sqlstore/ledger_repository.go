package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/invoice-agent/internal/core/domain"
)

type LedgerRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewLedgerRepository(db *sql.DB, dialect Dialect) *LedgerRepository {
	if dialect == "" {
		dialect = DialectSQLite
	}
	return &LedgerRepository{db: db, dialect: dialect}
}

func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	timestamp := "TIMESTAMP"
	if r.dialect == DialectPostgres {
		// Serialize bootstrap DDL across concurrent agents sharing one database.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
		timestamp = "TIMESTAMPTZ"
	}

	query := `
CREATE TABLE IF NOT EXISTS processed_files (
	sha256 TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	status TEXT NOT NULL,
	provenance TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	processed_at ` + timestamp + ` NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_files_status ON processed_files(status)`
	for _, stmt := range strings.Split(query, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Record upserts by content hash. A successful entry is never overwritten.
func (r *LedgerRepository) Record(ctx context.Context, entry domain.LedgerEntry) error {
	if strings.TrimSpace(entry.SHA256) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record ledger entry", errors.New("sha256 is empty"))
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now().UTC()
	}

	p := r.dialect.placeholder
	query := fmt.Sprintf(`
INSERT INTO processed_files (sha256, path, status, provenance, error_message, processed_at)
VALUES (%s, %s, %s, %s, %s, %s)
ON CONFLICT (sha256) DO UPDATE SET
	path = excluded.path,
	status = excluded.status,
	provenance = excluded.provenance,
	error_message = excluded.error_message,
	processed_at = excluded.processed_at
WHERE processed_files.status <> 'success'
`, p(1), p(2), p(3), p(4), p(5), p(6))

	_, err := r.db.ExecContext(ctx, query,
		entry.SHA256,
		entry.Path,
		string(entry.Status),
		string(entry.Provenance),
		entry.Error,
		entry.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// FindSuccessfulByHash returns nil when the content was never processed successfully.
func (r *LedgerRepository) FindSuccessfulByHash(ctx context.Context, sha256 string) (*domain.LedgerEntry, error) {
	query := fmt.Sprintf(`
SELECT sha256, path, status, provenance, error_message, processed_at
FROM processed_files
WHERE sha256 = %s AND status = 'success'
`, r.dialect.placeholder(1))

	var (
		entry      domain.LedgerEntry
		status     string
		provenance string
	)
	err := r.db.QueryRowContext(ctx, query, sha256).Scan(
		&entry.SHA256,
		&entry.Path,
		&status,
		&provenance,
		&entry.Error,
		&entry.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ledger entry: %w", err)
	}
	entry.Status = domain.ProcessingStatus(status)
	entry.Provenance = domain.Provenance(provenance)
	return &entry, nil
}
