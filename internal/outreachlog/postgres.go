// Package outreachlog records every fired reminder for audit. The log is
// append-only; entries are written after dispatch and never updated.
package outreachlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/cohort-outreach-mcp-server/internal/notify"
)

// Entry is one audited reminder dispatch.
type Entry struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	Cohort       string    `json:"cohort,omitempty"`
	ReminderType string    `json:"reminder_type"`
	Priority     string    `json:"priority"`
	Channels     []string  `json:"channels"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Entry statuses.
const (
	StatusDelivered    = "delivered"
	StatusFailed       = "failed"
	StatusDeduplicated = "deduplicated"
)

// PostgresStore persists the outreach log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates an outreach log store over an existing
// connection. It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates an outreach log store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Record writes one log entry derived from a delivery receipt.
func (s *PostgresStore) Record(ctx context.Context, receipt *notify.DeliveryReceipt) error {
	status := StatusFailed
	if receipt.Deduplicated {
		status = StatusDeduplicated
	} else if receipt.Delivered() {
		status = StatusDelivered
	}

	channels := make([]string, 0, len(receipt.Channels))
	for _, result := range receipt.Channels {
		if result.Delivered {
			channels = append(channels, string(result.Channel))
		}
	}

	query := `
		INSERT INTO outreach_log (
			id, patient_id, cohort, reminder_type, priority,
			channels, message, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.db.ExecContext(ctx, query,
		receipt.ID,
		receipt.PatientID,
		receipt.Cohort,
		string(receipt.Type),
		string(receipt.Priority),
		pq.Array(channels),
		receipt.Message,
		status,
		receipt.FiredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record outreach entry: %w", err)
	}

	return nil
}

const entryColumns = `id, patient_id, cohort, reminder_type, priority, channels, message, status, created_at`

// ListByPatient returns a patient's outreach history, newest first.
func (s *PostgresStore) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + entryColumns + `
		FROM outreach_log
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list outreach entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// List returns recent outreach entries across all patients, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + entryColumns + `
		FROM outreach_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list outreach entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Count returns the total number of log entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM outreach_log").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outreach entries: %w", err)
	}
	return count, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var result []*Entry
	for rows.Next() {
		entry := &Entry{}
		err := rows.Scan(
			&entry.ID, &entry.PatientID, &entry.Cohort, &entry.ReminderType,
			&entry.Priority, pq.Array(&entry.Channels), &entry.Message,
			&entry.Status, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, entry)
	}

	return result, rows.Err()
}
