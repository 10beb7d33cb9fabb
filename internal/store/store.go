package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taintscope/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var findingColumns = []string{
	"id", "scan_id", "rule_id", "rule_title", "severity", "confidence",
	"file", "line_start", "line_end", "message", "remediation", "cwe",
	"path", "observed_at",
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS findings (
    id          TEXT PRIMARY KEY,
    scan_id     TEXT NOT NULL,
    rule_id     TEXT NOT NULL,
    rule_title  TEXT NOT NULL DEFAULT '',
    severity    TEXT NOT NULL,
    confidence  TEXT NOT NULL,
    file        TEXT NOT NULL,
    line_start  INTEGER NOT NULL,
    line_end    INTEGER NOT NULL,
    message     TEXT NOT NULL DEFAULT '',
    remediation TEXT NOT NULL DEFAULT '',
    cwe         TEXT[] NOT NULL DEFAULT '{}',
    path        JSONB NOT NULL DEFAULT '[]',
    observed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS findings_scan_id_idx ON findings (scan_id);
`

// Store persists scan findings in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// InitSchema creates the findings table if it does not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveFindings writes all findings of a completed scan in one transaction.
func (s *Store) SaveFindings(ctx context.Context, scanID string, findings []schemas.Finding) error {
	if len(findings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed; that is not
		// worth an error log.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	rows := make([][]interface{}, len(findings))
	for i, f := range findings {
		pathJSON, err := json.Marshal(f.Path)
		if err != nil {
			return fmt.Errorf("failed to encode path for finding %s: %w", f.ID, err)
		}

		cwe := f.CWE
		if cwe == nil {
			cwe = []string{}
		}

		rows[i] = []interface{}{
			f.ID, scanID, f.RuleID, f.RuleTitle,
			string(f.Severity), string(f.Confidence),
			f.File, f.StartLine, f.EndLine,
			f.Message, f.Remediation, cwe,
			pathJSON,
			f.ObservedAt.UTC(),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"findings"}, findingColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy findings: %w", err)
	}
	if int(copyCount) != len(findings) {
		return fmt.Errorf("mismatch in copied findings count: expected %d, got %d", len(findings), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Persisted findings.",
		zap.String("scan_id", scanID),
		zap.Int("count", len(findings)))
	return nil
}

// GetFindingsByScanID loads all findings recorded for a scan, ordered by
// observation time.
func (s *Store) GetFindingsByScanID(ctx context.Context, scanID string) ([]schemas.Finding, error) {
	query := `
        SELECT id, rule_id, rule_title, severity, confidence, file, line_start, line_end, message, remediation, cwe, path, observed_at
        FROM findings
        WHERE scan_id = $1
        ORDER BY observed_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []schemas.Finding
	for rows.Next() {
		var f schemas.Finding
		var severityStr, confidenceStr string
		var pathJSON []byte

		err := rows.Scan(
			&f.ID, &f.RuleID, &f.RuleTitle,
			&severityStr, &confidenceStr,
			&f.File, &f.StartLine, &f.EndLine,
			&f.Message, &f.Remediation, &f.CWE,
			&pathJSON, &f.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding row: %w", err)
		}

		if len(pathJSON) > 0 {
			if err := json.Unmarshal(pathJSON, &f.Path); err != nil {
				return nil, fmt.Errorf("failed to decode path for finding %s: %w", f.ID, err)
			}
		}

		f.Severity = schemas.Severity(severityStr)
		f.Confidence = schemas.Confidence(confidenceStr)
		f.ScanID = scanID
		findings = append(findings, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return findings, nil
}
