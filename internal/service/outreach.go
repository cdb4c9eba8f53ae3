package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/domain"
	"github.com/cohort-outreach-mcp-server/internal/patients"
)

// UnmetPatient pairs a registry entry with the classification that flagged it.
type UnmetPatient struct {
	Patient        *domain.PatientRecord        `json:"patient"`
	Classification *domain.ClassificationResult `json:"classification"`
}

// FindUnmetPatients scans the registry and returns every patient whose
// classification lands at medium tier or above, optionally filtered to one
// cohort. Patients failing validation are skipped with a warning rather than
// aborting the sweep; a single bad record must not block outreach for the rest.
func (s *ClassifierService) FindUnmetPatients(ctx context.Context, store patients.Store, cohortFilter string) ([]UnmetPatient, error) {
	if cohortFilter != "" {
		if _, err := s.catalog.Cohort(cohortFilter); err != nil {
			return nil, err
		}
	}

	const pageSize = 200
	var unmet []UnmetPatient

	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := store.List(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list patients: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, patient := range page {
			result, err := s.ClassifyPatient(patient)
			if err != nil {
				s.logger.WithError(err).WithField("patient_id", patient.PatientID).
					Warn("Skipping patient that failed classification")
				continue
			}

			if !result.RiskTier.RequiresOutreach() {
				continue
			}
			if cohortFilter != "" && result.BestCohort != cohortFilter {
				continue
			}

			unmet = append(unmet, UnmetPatient{Patient: patient, Classification: result})
		}

		if len(page) < pageSize {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"unmet_count":   len(unmet),
		"cohort_filter": cohortFilter,
	}).Info("Unmet patient sweep completed")

	return unmet, nil
}
