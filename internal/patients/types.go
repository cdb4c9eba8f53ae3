// Package patients provides the patient registry backing the outreach
// workflow. Two implementations exist: SQLite for standalone operation and
// Postgres (internal/repository) for the full server.
package patients

import (
	"context"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// Store defines the interface for patient registry operations.
type Store interface {
	// Save stores or updates a patient record keyed by patient ID.
	Save(ctx context.Context, patient *domain.PatientRecord) error

	// Get retrieves a patient by ID. Returns a NotFoundError when absent.
	Get(ctx context.Context, patientID string) (*domain.PatientRecord, error)

	// List returns patient records ordered by patient ID with pagination.
	List(ctx context.Context, limit, offset int) ([]*domain.PatientRecord, error)

	// Count returns the total number of patient records.
	Count(ctx context.Context) (int64, error)

	// Delete removes a patient record by ID. Returns a NotFoundError when absent.
	Delete(ctx context.Context, patientID string) error

	// Close closes the store and releases resources.
	Close() error
}
