package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cohort-outreach-mcp-server/internal/catalog"
	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// MinReportingConfidence is the floor below which a cohort membership is
// informational only: no cohort wins and the risk tier stays low.
const MinReportingConfidence = 0.2

// CohortRuleEngine evaluates the weighted membership criteria of the loaded
// catalog against patient records. All evaluations are pure functions of
// their inputs: no randomness, no hidden state, no I/O.
type CohortRuleEngine struct {
	logger *logrus.Logger
}

// NewCohortRuleEngine creates a new rule engine.
func NewCohortRuleEngine(logger *logrus.Logger) *CohortRuleEngine {
	return &CohortRuleEngine{logger: logger}
}

// MembershipEvaluation carries the confidence score plus the evidence that
// produced it, for audit trails and clinician review.
type MembershipEvaluation struct {
	Cohort     string   `json:"cohort"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence,omitempty"`
	Missing    []string `json:"missing,omitempty"`
}

// EvaluateCohortMembership scores one patient against one cohort definition.
//
// Criteria are deduplicated by signal key before accumulation (first
// declared wins), so alternate phrasings of the same clinical signal never
// double-count. Confidence is accumulated weight over total declared weight,
// clamped to [0,1].
func (e *CohortRuleEngine) EvaluateCohortMembership(patient *domain.PatientRecord, cohort *domain.CohortDefinition) (*MembershipEvaluation, error) {
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	eval := &MembershipEvaluation{Cohort: cohort.Name}

	total := cohort.TotalWeight()
	if total <= 0 {
		return eval, nil
	}

	// Group criteria by signal key, preserving declaration order. A signal
	// counts when any of its phrasings matches; its weight is the first
	// declared weight for that key.
	type signal struct {
		key     string
		weight  float64
		matched bool
		note    string
		desc    string
	}
	order := make([]string, 0, len(cohort.Criteria))
	signals := make(map[string]*signal, len(cohort.Criteria))

	for i := range cohort.Criteria {
		crit := &cohort.Criteria[i]
		s, ok := signals[crit.SignalKey]
		if !ok {
			s = &signal{key: crit.SignalKey, weight: crit.Weight, desc: crit.Description}
			signals[crit.SignalKey] = s
			order = append(order, crit.SignalKey)
		}
		if s.matched {
			continue
		}
		if matched, note := crit.Matches(patient); matched {
			s.matched = true
			s.note = note
		}
	}

	accumulated := 0.0
	for _, key := range order {
		s := signals[key]
		if s.matched {
			accumulated += s.weight
			eval.Evidence = append(eval.Evidence, s.note)
		} else {
			label := s.desc
			if label == "" {
				label = s.key
			}
			eval.Missing = append(eval.Missing, label)
		}
	}

	confidence := accumulated / total
	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	eval.Confidence = confidence

	e.logger.WithFields(logrus.Fields{
		"patient_id": patient.PatientID,
		"cohort":     cohort.Name,
		"confidence": eval.Confidence,
		"signals":    len(eval.Evidence),
	}).Debug("Evaluated cohort membership")

	return eval, nil
}

// ClassifyPatientToCohorts evaluates the patient against every cohort in the
// catalog. All scores are returned, zero-confidence entries included, so
// callers can distinguish "evaluated, not a member" from "not evaluated".
// An empty catalog yields an empty map, not an error.
func (e *CohortRuleEngine) ClassifyPatientToCohorts(patient *domain.PatientRecord, cat *catalog.Catalog) (map[string]*MembershipEvaluation, error) {
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	memberships := make(map[string]*MembershipEvaluation, len(cat.Cohorts()))
	cohorts := cat.Cohorts()
	for i := range cohorts {
		eval, err := e.EvaluateCohortMembership(patient, &cohorts[i])
		if err != nil {
			return nil, err
		}
		memberships[cohorts[i].Name] = eval
	}

	return memberships, nil
}

// AnalyzeInterventionNeed resolves the risk tier from the membership scores.
//
// The highest-confidence cohort wins, catalog declaration order breaking
// ties. If no cohort reaches the reporting floor the tier is low and no
// cohort is selected. Otherwise the winning confidence is mapped through the
// cohort's thresholds, taking the highest tier whose minimum is met; an
// exact boundary resolves to the higher tier.
func (e *CohortRuleEngine) AnalyzeInterventionNeed(memberships map[string]*MembershipEvaluation, cat *catalog.Catalog) (domain.RiskTier, string) {
	bestCohort := ""
	bestConfidence := 0.0

	cohorts := cat.Cohorts()
	for i := range cohorts {
		eval, ok := memberships[cohorts[i].Name]
		if !ok {
			continue
		}
		if eval.Confidence > bestConfidence {
			bestConfidence = eval.Confidence
			bestCohort = cohorts[i].Name
		}
	}

	if bestCohort == "" || bestConfidence < MinReportingConfidence {
		return domain.RiskLow, ""
	}

	def, err := cat.Cohort(bestCohort)
	if err != nil {
		// Memberships were produced from this catalog; a miss here is a bug.
		return domain.RiskLow, ""
	}

	tier := domain.RiskLow
	for _, candidate := range domain.Tiers() {
		min, ok := def.RiskThresholds[candidate]
		if !ok {
			continue
		}
		if bestConfidence >= min && candidate.Rank() >= tier.Rank() {
			tier = candidate
		}
	}

	return tier, bestCohort
}

// MatchPatientToInterventions returns the intervention ids tagged for the
// cohort, ranked by relevance descending; ties keep catalog declaration
// order and duplicates are removed.
func (e *CohortRuleEngine) MatchPatientToInterventions(cohortName string, cat *catalog.Catalog) ([]string, error) {
	if _, err := cat.Cohort(cohortName); err != nil {
		return nil, err
	}

	type ranked struct {
		id        string
		relevance float64
		index     int
	}

	matched := make([]ranked, 0, 8)
	seen := make(map[string]bool, 8)
	for i, iv := range cat.Interventions() {
		if !iv.AppliesTo(cohortName) || seen[iv.ID] {
			continue
		}
		seen[iv.ID] = true
		matched = append(matched, ranked{id: iv.ID, relevance: iv.Relevance, index: i})
	}

	sort.SliceStable(matched, func(a, b int) bool {
		if matched[a].relevance != matched[b].relevance {
			return matched[a].relevance > matched[b].relevance
		}
		return matched[a].index < matched[b].index
	})

	ids := make([]string, len(matched))
	for i := range matched {
		ids[i] = matched[i].id
	}
	return ids, nil
}
