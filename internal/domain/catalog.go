package domain

import (
	"fmt"
	"strings"
)

// CriterionKind distinguishes the two predicate families a criterion can use.
type CriterionKind string

const (
	// CriterionKeyword matches a phrase against supporting facts and medications.
	CriterionKeyword CriterionKind = "keyword"
	// CriterionThreshold compares a numeric lab field against a bound.
	CriterionThreshold CriterionKind = "threshold"
)

// ThresholdOp is the comparison applied by a threshold criterion.
type ThresholdOp string

const (
	OpGTE ThresholdOp = "gte"
	OpLTE ThresholdOp = "lte"
	OpGT  ThresholdOp = "gt"
	OpLT  ThresholdOp = "lt"
)

// Criterion is one weighted membership predicate over a PatientRecord.
//
// Criteria sharing a SignalKey describe the same underlying clinical signal
// (two phrasings of "diabetes", say) and must never both contribute weight:
// the engine deduplicates by SignalKey before accumulation, first declared wins.
type Criterion struct {
	SignalKey   string        `json:"signal_key" mapstructure:"signal_key"`
	Kind        CriterionKind `json:"kind" mapstructure:"kind"`
	Weight      float64       `json:"weight" mapstructure:"weight"`
	Description string        `json:"description,omitempty" mapstructure:"description"`

	// Keyword criteria: any keyword found in supporting facts or medications satisfies
	Keywords []string `json:"keywords,omitempty" mapstructure:"keywords"`

	// Threshold criteria: lab field compared against Value; unknown labs never satisfy
	Field string      `json:"field,omitempty" mapstructure:"field"`
	Op    ThresholdOp `json:"op,omitempty" mapstructure:"op"`
	Value float64     `json:"value,omitempty" mapstructure:"value"`
}

// Validate ensures the criterion is well-formed for catalog load.
func (c *Criterion) Validate() error {
	if c.SignalKey == "" {
		return fmt.Errorf("criterion validation: signal key is required")
	}

	if c.Weight < 0 || c.Weight > 1 {
		return fmt.Errorf("criterion validation: weight %f for signal %q out of [0,1]", c.Weight, c.SignalKey)
	}

	switch c.Kind {
	case CriterionKeyword:
		if len(c.Keywords) == 0 {
			return fmt.Errorf("criterion validation: keyword criterion %q has no keywords", c.SignalKey)
		}
	case CriterionThreshold:
		if c.Field == "" {
			return fmt.Errorf("criterion validation: threshold criterion %q has no field", c.SignalKey)
		}
		switch c.Op {
		case OpGTE, OpLTE, OpGT, OpLT:
		default:
			return fmt.Errorf("criterion validation: threshold criterion %q has invalid op %q", c.SignalKey, c.Op)
		}
	default:
		return fmt.Errorf("criterion validation: unknown criterion kind %q", c.Kind)
	}

	return nil
}

// Matches tests the criterion against a patient record. Pure and deterministic.
func (c *Criterion) Matches(patient *PatientRecord) (bool, string) {
	switch c.Kind {
	case CriterionKeyword:
		for _, kw := range c.Keywords {
			needle := strings.ToLower(kw)
			for _, fact := range patient.SupportingFacts {
				if strings.Contains(strings.ToLower(fact), needle) {
					return true, fmt.Sprintf("found %q in: %s", kw, fact)
				}
			}
			for _, med := range patient.Medications {
				if strings.Contains(strings.ToLower(med), needle) {
					return true, fmt.Sprintf("found %q in medications: %s", kw, med)
				}
			}
		}
	case CriterionThreshold:
		value, known := patient.LabValue(c.Field)
		if !known {
			return false, ""
		}
		var satisfied bool
		switch c.Op {
		case OpGTE:
			satisfied = value >= c.Value
		case OpLTE:
			satisfied = value <= c.Value
		case OpGT:
			satisfied = value > c.Value
		case OpLT:
			satisfied = value < c.Value
		}
		if satisfied {
			return true, fmt.Sprintf("%s %.1f %s %.1f", c.Field, value, c.Op, c.Value)
		}
	}
	return false, ""
}

// CohortDefinition describes one named clinical cohort: its weighted
// membership criteria and the confidence thresholds for each risk tier.
type CohortDefinition struct {
	Name           string               `json:"name" mapstructure:"name"`
	DisplayName    string               `json:"display_name,omitempty" mapstructure:"display_name"`
	Description    string               `json:"description,omitempty" mapstructure:"description"`
	Criteria       []Criterion          `json:"criteria" mapstructure:"criteria"`
	RiskThresholds map[RiskTier]float64 `json:"risk_thresholds" mapstructure:"risk_thresholds"`
}

// Validate ensures the cohort definition is internally consistent.
func (d *CohortDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("cohort validation: name is required")
	}

	if len(d.Criteria) == 0 {
		return fmt.Errorf("cohort validation: cohort %q has no criteria", d.Name)
	}

	for i := range d.Criteria {
		if err := d.Criteria[i].Validate(); err != nil {
			return fmt.Errorf("cohort %q: %w", d.Name, err)
		}
	}

	for tier, min := range d.RiskThresholds {
		if !tier.IsValid() {
			return fmt.Errorf("cohort validation: cohort %q: %w", d.Name, ErrInvalidRiskTier)
		}
		if min < 0 || min > 1 {
			return fmt.Errorf("cohort validation: cohort %q tier %q threshold %f out of [0,1]", d.Name, tier, min)
		}
	}

	return nil
}

// TotalWeight returns the sum of declared weights after SignalKey
// deduplication. This is the confidence denominator.
func (d *CohortDefinition) TotalWeight() float64 {
	seen := make(map[string]bool, len(d.Criteria))
	total := 0.0
	for i := range d.Criteria {
		if seen[d.Criteria[i].SignalKey] {
			continue
		}
		seen[d.Criteria[i].SignalKey] = true
		total += d.Criteria[i].Weight
	}
	return total
}

// Intervention is one recommended clinical action tied to one or more cohorts.
// Relevance ranks interventions within a cohort; ties keep declaration order.
type Intervention struct {
	ID        string   `json:"id" mapstructure:"id"`
	Name      string   `json:"name" mapstructure:"name"`
	Cohorts   []string `json:"cohorts" mapstructure:"cohorts"`
	Relevance float64  `json:"relevance" mapstructure:"relevance"`
	Priority  string   `json:"priority,omitempty" mapstructure:"priority"`
	Timeline  string   `json:"timeline,omitempty" mapstructure:"timeline"`
}

// AppliesTo reports whether the intervention is tagged for the cohort.
func (iv *Intervention) AppliesTo(cohortName string) bool {
	for _, c := range iv.Cohorts {
		if c == cohortName {
			return true
		}
	}
	return false
}

// Validate ensures the intervention entry is well-formed.
func (iv *Intervention) Validate() error {
	if iv.ID == "" {
		return fmt.Errorf("intervention validation: id is required")
	}
	if len(iv.Cohorts) == 0 {
		return fmt.Errorf("intervention validation: intervention %q is tagged for no cohort", iv.ID)
	}
	return nil
}

// CohortSummary is the read-only projection of a loaded cohort used by the
// generate_cohort_summary operation. No patient data is involved.
type CohortSummary struct {
	Name              string               `json:"name"`
	DisplayName       string               `json:"display_name,omitempty"`
	Description       string               `json:"description,omitempty"`
	CriteriaCount     int                  `json:"criteria_count"`
	RiskThresholds    map[RiskTier]float64 `json:"risk_thresholds"`
	InterventionCount int                  `json:"intervention_count"`
}

// CatalogSummary aggregates per-cohort summaries plus catalog metadata.
type CatalogSummary struct {
	Version      string          `json:"version"`
	TotalCohorts int             `json:"total_cohorts"`
	Cohorts      []CohortSummary `json:"cohorts"`
}
