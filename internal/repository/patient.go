// Package repository provides the Postgres-backed patient registry used by
// the full server deployment.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// PatientRepository handles patient record persistence over pgx.
// It implements patients.Store.
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

const patientColumns = `patient_id, name, age, supporting_facts, medications,
	last_hba1c, last_bmi, last_systolic_bp, last_diastolic_bp, last_screening_months,
	phone, email, last_visit, created_at, updated_at`

// Save inserts or updates a patient record keyed by patient ID.
func (r *PatientRepository) Save(ctx context.Context, patient *domain.PatientRecord) error {
	if err := patient.Validate(); err != nil {
		return err
	}

	facts := patient.SupportingFacts
	if facts == nil {
		facts = []string{}
	}
	meds := patient.Medications
	if meds == nil {
		meds = []string{}
	}

	query := `
		INSERT INTO patients (
			patient_id, name, age, supporting_facts, medications,
			last_hba1c, last_bmi, last_systolic_bp, last_diastolic_bp, last_screening_months,
			phone, email, last_visit
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		ON CONFLICT (patient_id) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			supporting_facts = EXCLUDED.supporting_facts,
			medications = EXCLUDED.medications,
			last_hba1c = EXCLUDED.last_hba1c,
			last_bmi = EXCLUDED.last_bmi,
			last_systolic_bp = EXCLUDED.last_systolic_bp,
			last_diastolic_bp = EXCLUDED.last_diastolic_bp,
			last_screening_months = EXCLUDED.last_screening_months,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			last_visit = EXCLUDED.last_visit,
			updated_at = NOW()`

	_, err := r.db.Exec(ctx, query,
		patient.PatientID,
		patient.Name,
		patient.Age,
		facts,
		meds,
		patient.LastHbA1c,
		patient.LastBMI,
		patient.LastSystolicBP,
		patient.LastDiastolicBP,
		patient.LastScreeningMonths,
		patient.Phone,
		patient.Email,
		patient.LastVisit,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": patient.PatientID,
			"error":      err,
		}).Error("Failed to save patient")
		return fmt.Errorf("saving patient: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": patient.PatientID,
	}).Info("Patient saved successfully")

	return nil
}

// Get retrieves a patient by ID.
func (r *PatientRepository) Get(ctx context.Context, patientID string) (*domain.PatientRecord, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patients
		WHERE patient_id = $1`

	patient, err := scanPatient(r.db.QueryRow(ctx, query, patientID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.NewNotFoundError("patient", patientID)
		}
		r.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to get patient")
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	return patient, nil
}

// List returns patient records ordered by patient ID with pagination.
func (r *PatientRepository) List(ctx context.Context, limit, offset int) ([]*domain.PatientRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + patientColumns + `
		FROM patients
		ORDER BY patient_id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.log.WithError(err).Error("Failed to list patients")
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var result []*domain.PatientRecord
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			r.log.WithError(err).Error("Failed to scan patient row")
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		result = append(result, patient)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating patient rows: %w", err)
	}

	return result, nil
}

// Count returns the total number of patient records.
func (r *PatientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM patients").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting patients: %w", err)
	}
	return count, nil
}

// Delete removes a patient record by ID.
func (r *PatientRepository) Delete(ctx context.Context, patientID string) error {
	result, err := r.db.Exec(ctx, "DELETE FROM patients WHERE patient_id = $1", patientID)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": patientID,
			"error":      err,
		}).Error("Failed to delete patient")
		return fmt.Errorf("deleting patient: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("patient", patientID)
	}

	r.log.WithFields(logrus.Fields{
		"patient_id": patientID,
	}).Info("Patient deleted successfully")

	return nil
}

// Close is a no-op; the pool lifecycle is owned by the caller.
func (r *PatientRepository) Close() error {
	return nil
}

func scanPatient(row pgx.Row) (*domain.PatientRecord, error) {
	p := &domain.PatientRecord{}
	err := row.Scan(
		&p.PatientID,
		&p.Name,
		&p.Age,
		&p.SupportingFacts,
		&p.Medications,
		&p.LastHbA1c,
		&p.LastBMI,
		&p.LastSystolicBP,
		&p.LastDiastolicBP,
		&p.LastScreeningMonths,
		&p.Phone,
		&p.Email,
		&p.LastVisit,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
