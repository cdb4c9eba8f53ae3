package service

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/catalog"
	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// defaultCacheSize bounds the classification result cache. Results are pure
// functions of (patient, catalog version), so cached entries never go stale
// while the catalog is unchanged.
const defaultCacheSize = 1024

// ClassifierService implements the cohort classification workflow: validate
// the record, score every cohort, resolve the risk tier, and rank the
// recommended interventions.
type ClassifierService struct {
	logger     *logrus.Logger
	catalog    *catalog.Catalog
	ruleEngine *CohortRuleEngine
	cache      *lru.Cache
}

// NewClassifierService creates a new classifier service bound to an
// immutable catalog.
func NewClassifierService(logger *logrus.Logger, cat *catalog.Catalog) (*ClassifierService, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &ClassifierService{
		logger:     logger,
		catalog:    cat,
		ruleEngine: NewCohortRuleEngine(logger),
		cache:      cache,
	}, nil
}

// Catalog returns the catalog this service classifies against.
func (s *ClassifierService) Catalog() *catalog.Catalog {
	return s.catalog
}

// RuleEngine exposes the underlying engine for single-operation callers
// (MCP tools invoke evaluate/analyze/match individually).
func (s *ClassifierService) RuleEngine() *CohortRuleEngine {
	return s.ruleEngine
}

// ClassifyPatient performs the complete classification workflow.
func (s *ClassifierService) ClassifyPatient(patient *domain.PatientRecord) (*domain.ClassificationResult, error) {
	startTime := time.Now()

	if err := patient.Validate(); err != nil {
		return nil, fmt.Errorf("invalid patient record: %w", err)
	}

	cacheKey := s.cacheKey(patient)
	if cached, ok := s.cache.Get(cacheKey); ok {
		if result, ok := cached.(*domain.ClassificationResult); ok {
			s.logger.WithField("patient_id", patient.PatientID).Debug("Classification served from cache")
			return result, nil
		}
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":      patient.PatientID,
		"catalog_version": s.catalog.Version(),
		"fact_count":      len(patient.SupportingFacts),
	}).Info("Starting patient classification")

	memberships, err := s.ruleEngine.ClassifyPatientToCohorts(patient, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate cohort memberships: %w", err)
	}

	tier, bestCohort := s.ruleEngine.AnalyzeInterventionNeed(memberships, s.catalog)

	var interventions []string
	if bestCohort != "" {
		interventions, err = s.ruleEngine.MatchPatientToInterventions(bestCohort, s.catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to match interventions: %w", err)
		}
	}

	scores := make(map[string]float64, len(memberships))
	var evidence []string
	for name, eval := range memberships {
		scores[name] = eval.Confidence
		if name == bestCohort {
			evidence = eval.Evidence
		}
	}

	result := &domain.ClassificationResult{
		PatientID:                patient.PatientID,
		CohortMemberships:        scores,
		BestCohort:               bestCohort,
		RiskTier:                 tier,
		RecommendedInterventions: interventions,
		SupportingEvidence:       evidence,
		CatalogVersion:           s.catalog.Version(),
		EvaluatedAt:              time.Now().UTC(),
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	s.cache.Add(cacheKey, result)

	s.logger.WithFields(logrus.Fields{
		"patient_id":      result.PatientID,
		"risk_tier":       result.RiskTier,
		"best_cohort":     result.BestCohort,
		"interventions":   len(result.RecommendedInterventions),
		"processing_time": time.Since(startTime),
	}).Info("Patient classification completed")

	return result, nil
}

// GenerateCohortSummary projects the loaded catalog for display.
func (s *ClassifierService) GenerateCohortSummary() *domain.CatalogSummary {
	return s.catalog.Summary()
}

// cacheKey derives a stable cache key from the patient's clinical content
// and the catalog version. Contact details do not affect classification and
// are excluded deliberately.
func (s *ClassifierService) cacheKey(patient *domain.PatientRecord) string {
	key := fmt.Sprintf("%s|%s|%d", s.catalog.Version(), patient.PatientID, patient.Age)
	for _, f := range patient.SupportingFacts {
		key += "|f:" + f
	}
	for _, m := range patient.Medications {
		key += "|m:" + m
	}
	for _, lab := range []string{"last_hba1c", "last_bmi", "last_systolic_bp", "last_diastolic_bp", "last_screening_months"} {
		if v, ok := patient.LabValue(lab); ok {
			key += fmt.Sprintf("|%s:%g", lab, v)
		}
	}
	return key
}
