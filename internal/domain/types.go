// Package domain contains core business entities and types for clinical
// cohort classification and outreach.
//
// Patients are classified into predefined cohorts (diabetic, obesity,
// cancer_screening, hypertension) by an evidence-weighted rules engine;
// the winning cohort's thresholds determine the outreach risk tier.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// RiskTier represents the coarse urgency classification derived from
// cohort membership confidence. Ordering matters: Urgent > High > Medium > Low.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
	RiskUrgent RiskTier = "urgent"
)

// Physiological plausibility bounds for optional lab values.
// Values outside these ranges are rejected, never clamped.
const (
	MinHbA1c       = 3.0
	MaxHbA1c       = 20.0
	MinBMI         = 10.0
	MaxBMI         = 100.0
	MinSystolicBP  = 60.0
	MaxSystolicBP  = 260.0
	MinDiastolicBP = 30.0
	MaxDiastolicBP = 160.0
)

// Validation errors for clinical data integrity
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRiskTier = errors.New("invalid risk tier")
	ErrEmptyPatientID  = errors.New("patient ID is required")
)

// IsValid validates the risk tier.
func (t RiskTier) IsValid() bool {
	switch t {
	case RiskLow, RiskMedium, RiskHigh, RiskUrgent:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk tier.
func (t RiskTier) String() string {
	return string(t)
}

// Rank returns the ordering of the tier; higher means more urgent.
// Used for boundary tie-breaks (the higher tier wins on an exact boundary).
func (t RiskTier) Rank() int {
	switch t {
	case RiskUrgent:
		return 3
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// RequiresOutreach determines if the tier warrants proactive outreach.
func (t RiskTier) RequiresOutreach() bool {
	return t.Rank() >= RiskMedium.Rank()
}

// Tiers lists all risk tiers in ascending order of urgency.
func Tiers() []RiskTier {
	return []RiskTier{RiskLow, RiskMedium, RiskHigh, RiskUrgent}
}

// PatientRecord represents one patient's clinical snapshot as consumed by
// the classifier. Numeric lab fields are pointers: absence means "unknown",
// not zero.
type PatientRecord struct {
	PatientID       string   `json:"patient_id" validate:"required"`
	Name            string   `json:"name,omitempty"`
	Age             int      `json:"age" validate:"min=0"`
	SupportingFacts []string `json:"supporting_facts"`
	Medications     []string `json:"medications,omitempty"`

	// Optional lab values; nil means unknown
	LastHbA1c           *float64 `json:"last_hba1c,omitempty"`
	LastBMI             *float64 `json:"last_bmi,omitempty"`
	LastSystolicBP      *float64 `json:"last_systolic_bp,omitempty"`
	LastDiastolicBP     *float64 `json:"last_diastolic_bp,omitempty"`
	LastScreeningMonths *float64 `json:"last_screening_months,omitempty"`

	// Contact details for the outreach boundary
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`

	LastVisit string    `json:"last_visit,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Validate ensures the patient record meets clinical data requirements.
// Runs before any cohort evaluation; the first offending field is reported.
func (p *PatientRecord) Validate() error {
	if p.PatientID == "" {
		return NewValidationError("patient_id", "patient ID is required", p.PatientID)
	}

	if p.Age < 0 {
		return NewValidationError("age", "age must be non-negative", p.Age)
	}

	if p.LastHbA1c != nil && (*p.LastHbA1c < MinHbA1c || *p.LastHbA1c > MaxHbA1c) {
		return NewValidationError("last_hba1c",
			fmt.Sprintf("HbA1c must be within [%.1f, %.1f]", MinHbA1c, MaxHbA1c), *p.LastHbA1c)
	}

	if p.LastBMI != nil && (*p.LastBMI < MinBMI || *p.LastBMI > MaxBMI) {
		return NewValidationError("last_bmi",
			fmt.Sprintf("BMI must be within [%.1f, %.1f]", MinBMI, MaxBMI), *p.LastBMI)
	}

	if p.LastSystolicBP != nil && (*p.LastSystolicBP < MinSystolicBP || *p.LastSystolicBP > MaxSystolicBP) {
		return NewValidationError("last_systolic_bp",
			fmt.Sprintf("systolic BP must be within [%.0f, %.0f]", MinSystolicBP, MaxSystolicBP), *p.LastSystolicBP)
	}

	if p.LastDiastolicBP != nil && (*p.LastDiastolicBP < MinDiastolicBP || *p.LastDiastolicBP > MaxDiastolicBP) {
		return NewValidationError("last_diastolic_bp",
			fmt.Sprintf("diastolic BP must be within [%.0f, %.0f]", MinDiastolicBP, MaxDiastolicBP), *p.LastDiastolicBP)
	}

	if p.LastScreeningMonths != nil && *p.LastScreeningMonths < 0 {
		return NewValidationError("last_screening_months", "screening interval must be non-negative", *p.LastScreeningMonths)
	}

	return nil
}

// LabValue returns the named lab field and whether it is known.
// Field names match the JSON wire names used in criteria definitions.
func (p *PatientRecord) LabValue(field string) (float64, bool) {
	switch field {
	case "last_hba1c":
		if p.LastHbA1c != nil {
			return *p.LastHbA1c, true
		}
	case "last_bmi":
		if p.LastBMI != nil {
			return *p.LastBMI, true
		}
	case "last_systolic_bp":
		if p.LastSystolicBP != nil {
			return *p.LastSystolicBP, true
		}
	case "last_diastolic_bp":
		if p.LastDiastolicBP != nil {
			return *p.LastDiastolicBP, true
		}
	case "last_screening_months":
		if p.LastScreeningMonths != nil {
			return *p.LastScreeningMonths, true
		}
	case "age":
		return float64(p.Age), true
	}
	return 0, false
}

// ClassificationResult is the immutable outcome of evaluating one patient
// against the loaded cohort catalog.
type ClassificationResult struct {
	PatientID                string             `json:"patient_id"`
	CohortMemberships        map[string]float64 `json:"cohort_memberships"`
	BestCohort               string             `json:"best_cohort,omitempty"`
	RiskTier                 RiskTier           `json:"risk_tier"`
	RecommendedInterventions []string           `json:"recommended_interventions"`
	SupportingEvidence       []string           `json:"supporting_evidence,omitempty"`
	CatalogVersion           string             `json:"catalog_version"`
	EvaluatedAt              time.Time          `json:"evaluated_at"`
}

// Validate checks result invariants before the result leaves the service.
func (r *ClassificationResult) Validate() error {
	if r.PatientID == "" {
		return fmt.Errorf("classification result validation: %w", ErrEmptyPatientID)
	}

	if !r.RiskTier.IsValid() {
		return fmt.Errorf("classification result validation: %w", ErrInvalidRiskTier)
	}

	for name, score := range r.CohortMemberships {
		if score < 0 || score > 1 {
			return fmt.Errorf("classification result validation: membership %q out of range: %f", name, score)
		}
	}

	return nil
}
