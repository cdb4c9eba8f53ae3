package patients

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite patient store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS patients (
		patient_id TEXT PRIMARY KEY,
		name TEXT DEFAULT '',
		age INTEGER NOT NULL,
		supporting_facts TEXT NOT NULL DEFAULT '[]',
		medications TEXT NOT NULL DEFAULT '[]',
		last_hba1c REAL,
		last_bmi REAL,
		last_systolic_bp REAL,
		last_diastolic_bp REAL,
		last_screening_months REAL,
		phone TEXT DEFAULT '',
		email TEXT DEFAULT '',
		last_visit TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_patients_age ON patients(age);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPatient scans a row into a PatientRecord.
func scanPatient(s scanner) (*domain.PatientRecord, error) {
	p := &domain.PatientRecord{}
	var facts, meds string
	var hba1c, bmi, systolic, diastolic, screening sql.NullFloat64

	err := s.Scan(
		&p.PatientID, &p.Name, &p.Age, &facts, &meds,
		&hba1c, &bmi, &systolic, &diastolic, &screening,
		&p.Phone, &p.Email, &p.LastVisit, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(facts), &p.SupportingFacts); err != nil {
		return nil, fmt.Errorf("failed to decode supporting facts: %w", err)
	}
	if err := json.Unmarshal([]byte(meds), &p.Medications); err != nil {
		return nil, fmt.Errorf("failed to decode medications: %w", err)
	}

	p.LastHbA1c = nullableFloat(hba1c)
	p.LastBMI = nullableFloat(bmi)
	p.LastSystolicBP = nullableFloat(systolic)
	p.LastDiastolicBP = nullableFloat(diastolic)
	p.LastScreeningMonths = nullableFloat(screening)

	return p, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

const patientColumns = `patient_id, name, age, supporting_facts, medications,
	last_hba1c, last_bmi, last_systolic_bp, last_diastolic_bp, last_screening_months,
	phone, email, last_visit, created_at, updated_at`

// Save stores or updates a patient record. Records are validated before
// they enter the registry.
func (s *SQLiteStore) Save(ctx context.Context, patient *domain.PatientRecord) error {
	if err := patient.Validate(); err != nil {
		return err
	}

	facts, err := json.Marshal(patient.SupportingFacts)
	if err != nil {
		return fmt.Errorf("failed to encode supporting facts: %w", err)
	}
	if patient.SupportingFacts == nil {
		facts = []byte("[]")
	}
	meds, err := json.Marshal(patient.Medications)
	if err != nil {
		return fmt.Errorf("failed to encode medications: %w", err)
	}
	if patient.Medications == nil {
		meds = []byte("[]")
	}

	now := time.Now().UTC()
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = now
	}
	patient.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			supporting_facts = excluded.supporting_facts,
			medications = excluded.medications,
			last_hba1c = excluded.last_hba1c,
			last_bmi = excluded.last_bmi,
			last_systolic_bp = excluded.last_systolic_bp,
			last_diastolic_bp = excluded.last_diastolic_bp,
			last_screening_months = excluded.last_screening_months,
			phone = excluded.phone,
			email = excluded.email,
			last_visit = excluded.last_visit,
			updated_at = excluded.updated_at`,
		patient.PatientID, patient.Name, patient.Age, string(facts), string(meds),
		nullFloat(patient.LastHbA1c), nullFloat(patient.LastBMI),
		nullFloat(patient.LastSystolicBP), nullFloat(patient.LastDiastolicBP),
		nullFloat(patient.LastScreeningMonths),
		patient.Phone, patient.Email, patient.LastVisit,
		patient.CreatedAt, patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}

	return nil
}

// Get retrieves a patient by ID.
func (s *SQLiteStore) Get(ctx context.Context, patientID string) (*domain.PatientRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE patient_id = ?", patientID)

	patient, err := scanPatient(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFoundError("patient", patientID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	return patient, nil
}

// List returns patient records ordered by patient ID with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.PatientRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+patientColumns+" FROM patients ORDER BY patient_id LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var result []*domain.PatientRecord
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		result = append(result, patient)
	}

	return result, rows.Err()
}

// Count returns the total number of patient records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}

// Delete removes a patient record by ID.
func (s *SQLiteStore) Delete(ctx context.Context, patientID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM patients WHERE patient_id = ?", patientID)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFoundError("patient", patientID)
	}

	return nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
