// Package store provides the SQLite-backed delivery audit trail, using
// SQLite for durability across restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Store persists delivery records and per-integration delivery status.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the delivery database at dbPath and initializes
// the schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// WAL mode for concurrent readers; SQLite works best with a single writer.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open delivery database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("Delivery store initialized")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS delivery_records (
			id               TEXT PRIMARY KEY,
			incident_id      TEXT NOT NULL,
			organization_id  TEXT NOT NULL,
			integration_id   TEXT,
			integration_type TEXT NOT NULL,
			integration_name TEXT NOT NULL,
			status           TEXT NOT NULL,
			attempt          INTEGER NOT NULL,
			request_url      TEXT,
			request_payload  TEXT,
			response_code    INTEGER,
			response_body    TEXT,
			error_message    TEXT,
			started_at       INTEGER NOT NULL,
			completed_at     INTEGER,
			duration_ms      INTEGER NOT NULL,
			metadata         TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_records_incident
			ON delivery_records(incident_id);
		CREATE INDEX IF NOT EXISTS idx_records_integration
			ON delivery_records(integration_id, started_at);

		CREATE TABLE IF NOT EXISTS integration_status (
			integration_id   TEXT PRIMARY KEY,
			last_delivery_at INTEGER NOT NULL,
			last_status      TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append inserts one delivery record. Records are never updated or deleted;
// retries append new rows.
func (s *Store) Append(ctx context.Context, r *delivery.Record) error {
	var completedAt any
	if r.CompletedAt != nil {
		completedAt = r.CompletedAt.UnixMilli()
	}
	var metadata any
	if len(r.Metadata) > 0 {
		b, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal record metadata: %w", err)
		}
		metadata = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO delivery_records (
			id, incident_id, organization_id, integration_id,
			integration_type, integration_name, status, attempt,
			request_url, request_payload, response_code, response_body,
			error_message, started_at, completed_at, duration_ms, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.IncidentID, r.OrganizationID, nullable(r.IntegrationID),
		r.IntegrationType, r.IntegrationName, string(r.Status), r.Attempt,
		r.RequestURL, r.RequestPayload, r.ResponseCode, r.ResponseBody,
		r.ErrorMessage, r.StartedAt.UnixMilli(), completedAt, r.DurationMS, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	return nil
}

// ByIncident returns every record for an incident, oldest first.
func (s *Store) ByIncident(ctx context.Context, incidentID string) ([]*delivery.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, incident_id, organization_id, integration_id,
		       integration_type, integration_name, status, attempt,
		       request_url, request_payload, response_code, response_body,
		       error_message, started_at, completed_at, duration_ms, metadata
		FROM delivery_records
		WHERE incident_id = ?
		ORDER BY id`, incidentID)
	if err != nil {
		return nil, fmt.Errorf("query delivery records: %w", err)
	}
	defer rows.Close()

	var records []*delivery.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// UpdateDelivery upserts the last-delivery bookkeeping for an integration.
func (s *Store) UpdateDelivery(ctx context.Context, integrationID string, at time.Time, status delivery.Status) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integration_status (integration_id, last_delivery_at, last_status)
		VALUES (?, ?, ?)
		ON CONFLICT(integration_id) DO UPDATE SET
			last_delivery_at = excluded.last_delivery_at,
			last_status = excluded.last_status`,
		integrationID, at.UnixMilli(), string(status),
	)
	if err != nil {
		return fmt.Errorf("update integration status: %w", err)
	}
	return nil
}

// LastDelivery returns the last-delivery timestamp and status for an
// integration, or (zero, "", nil) when it has never delivered.
func (s *Store) LastDelivery(ctx context.Context, integrationID string) (time.Time, delivery.Status, error) {
	var at int64
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_delivery_at, last_status FROM integration_status
		WHERE integration_id = ?`, integrationID).Scan(&at, &status)
	if err == sql.ErrNoRows {
		return time.Time{}, "", nil
	}
	if err != nil {
		return time.Time{}, "", fmt.Errorf("query integration status: %w", err)
	}
	return time.UnixMilli(at), delivery.Status(status), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (*delivery.Record, error) {
	var r delivery.Record
	var integrationID, metadata sql.NullString
	var startedAt int64
	var completedAt sql.NullInt64
	var status string

	err := rows.Scan(
		&r.ID, &r.IncidentID, &r.OrganizationID, &integrationID,
		&r.IntegrationType, &r.IntegrationName, &status, &r.Attempt,
		&r.RequestURL, &r.RequestPayload, &r.ResponseCode, &r.ResponseBody,
		&r.ErrorMessage, &startedAt, &completedAt, &r.DurationMS, &metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("scan delivery record: %w", err)
	}
	r.Status = delivery.Status(status)
	r.IntegrationID = integrationID.String
	r.StartedAt = time.UnixMilli(startedAt).UTC()
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64).UTC()
		r.CompletedAt = &t
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal record metadata: %w", err)
		}
	}
	return &r, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
