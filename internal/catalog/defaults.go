package catalog

import (
	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// DefaultVersion identifies the built-in catalog baseline.
const DefaultVersion = "2024.2"

// Default returns the built-in cohort and intervention catalog. The keyword
// lists and numeric thresholds are the shipped clinical baseline; deployments
// substitute expert-sourced criteria via a catalog file without code changes.
func Default() (*Catalog, error) {
	return New(DefaultVersion, defaultCohorts(), defaultInterventions())
}

// MustDefault returns the built-in catalog and panics if it fails to
// validate. The defaults are covered by tests, so a failure here is a
// programming error.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

func defaultCohorts() []domain.CohortDefinition {
	return []domain.CohortDefinition{
		{
			Name:        "diabetic",
			DisplayName: "Diabetic Management",
			Description: "Patients with diabetes requiring ongoing management and monitoring",
			Criteria: []domain.Criterion{
				{
					SignalKey:   "hba1c_elevated",
					Kind:        domain.CriterionThreshold,
					Field:       "last_hba1c",
					Op:          domain.OpGTE,
					Value:       7.0,
					Weight:      0.6,
					Description: "HbA1c at or above 7.0% indicates inadequate glucose control",
				},
				{
					SignalKey: "diabetes_diagnosis",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"diabetes", "diabetic"},
					Weight:    0.4,
				},
				{
					// Alternate phrasing of the diagnosis signal; deduplicated
					// by signal key so it never double-counts.
					SignalKey: "diabetes_diagnosis",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"insulin", "metformin", "glipizide", "pioglitazone", "hba1c", "glucose", "blood sugar"},
					Weight:    0.4,
				},
			},
			RiskThresholds: map[domain.RiskTier]float64{
				domain.RiskUrgent: 0.8,
				domain.RiskHigh:   0.5,
				domain.RiskMedium: 0.2,
			},
		},
		{
			Name:        "obesity",
			DisplayName: "Obesity Management",
			Description: "Patients requiring weight management and metabolic interventions",
			Criteria: []domain.Criterion{
				{
					SignalKey:   "bmi_elevated",
					Kind:        domain.CriterionThreshold,
					Field:       "last_bmi",
					Op:          domain.OpGTE,
					Value:       30.0,
					Weight:      0.5,
					Description: "BMI at or above 30 (Class I obesity or higher)",
				},
				{
					SignalKey: "obesity_diagnosis",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"obesity", "overweight", "weight"},
					Weight:    0.3,
				},
				{
					SignalKey: "metabolic_comorbidity",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"sleep apnea", "metabolic syndrome"},
					Weight:    0.2,
				},
			},
			RiskThresholds: map[domain.RiskTier]float64{
				domain.RiskUrgent: 0.9,
				domain.RiskHigh:   0.6,
				domain.RiskMedium: 0.2,
			},
		},
		{
			Name:        "cancer_screening",
			DisplayName: "Cancer Screening",
			Description: "Patients due for preventive cancer screening based on age and risk factors",
			Criteria: []domain.Criterion{
				{
					SignalKey: "screening_history",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"screening", "mammography", "colonoscopy", "pap smear", "cancer prevention"},
					Weight:    0.35,
				},
				{
					SignalKey: "family_history",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"family history"},
					Weight:    0.35,
				},
				{
					SignalKey:   "screening_overdue",
					Kind:        domain.CriterionThreshold,
					Field:       "last_screening_months",
					Op:          domain.OpGTE,
					Value:       12,
					Weight:      0.3,
					Description: "More than twelve months since the last age-appropriate screening",
				},
			},
			RiskThresholds: map[domain.RiskTier]float64{
				domain.RiskUrgent: 0.9,
				domain.RiskHigh:   0.65,
				domain.RiskMedium: 0.2,
			},
		},
		{
			Name:        "hypertension",
			DisplayName: "Hypertension Management",
			Description: "Patients with high blood pressure requiring monitoring and management",
			Criteria: []domain.Criterion{
				{
					SignalKey:   "systolic_elevated",
					Kind:        domain.CriterionThreshold,
					Field:       "last_systolic_bp",
					Op:          domain.OpGTE,
					Value:       140,
					Weight:      0.35,
					Description: "Systolic blood pressure at or above 140 mmHg",
				},
				{
					SignalKey:   "diastolic_elevated",
					Kind:        domain.CriterionThreshold,
					Field:       "last_diastolic_bp",
					Op:          domain.OpGTE,
					Value:       90,
					Weight:      0.25,
					Description: "Diastolic blood pressure at or above 90 mmHg",
				},
				{
					SignalKey: "hypertension_diagnosis",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"hypertension", "high blood pressure", "blood pressure", "bp"},
					Weight:    0.25,
				},
				{
					SignalKey: "bp_medication",
					Kind:      domain.CriterionKeyword,
					Keywords:  []string{"lisinopril", "metoprolol", "amlodipine", "hydrochlorothiazide", "ace inhibitor", "beta blocker"},
					Weight:    0.15,
				},
			},
			RiskThresholds: map[domain.RiskTier]float64{
				domain.RiskUrgent: 0.85,
				domain.RiskHigh:   0.55,
				domain.RiskMedium: 0.2,
			},
		},
	}
}

func defaultInterventions() []domain.Intervention {
	return []domain.Intervention{
		{ID: "medication_adjustment", Name: "Medication adjustment", Cohorts: []string{"diabetic"}, Relevance: 0.9, Priority: "high", Timeline: "1 week"},
		{ID: "lab_follow_up", Name: "Lab follow-up", Cohorts: []string{"diabetic"}, Relevance: 0.85, Priority: "high", Timeline: "3 days"},
		{ID: "diabetes_education", Name: "Diabetes education", Cohorts: []string{"diabetic"}, Relevance: 0.6, Priority: "medium", Timeline: "2 weeks"},
		{ID: "nutritional_counseling", Name: "Nutritional counseling", Cohorts: []string{"diabetic"}, Relevance: 0.5, Priority: "medium", Timeline: "1 month"},
		{ID: "exercise_program", Name: "Exercise program", Cohorts: []string{"diabetic", "obesity"}, Relevance: 0.3, Priority: "low", Timeline: "ongoing"},

		{ID: "nutrition_consult", Name: "Nutrition consult", Cohorts: []string{"obesity"}, Relevance: 0.9, Priority: "high", Timeline: "1 week"},
		{ID: "behavioral_support", Name: "Behavioral support", Cohorts: []string{"obesity"}, Relevance: 0.55, Priority: "medium", Timeline: "ongoing"},
		{ID: "medical_weight_management", Name: "Medical weight management", Cohorts: []string{"obesity"}, Relevance: 0.5, Priority: "medium", Timeline: "1 month"},
		{ID: "bariatric_evaluation", Name: "Bariatric evaluation", Cohorts: []string{"obesity"}, Relevance: 0.3, Priority: "low", Timeline: "3 months"},

		{ID: "screening_appointment", Name: "Screening appointment", Cohorts: []string{"cancer_screening"}, Relevance: 0.9, Priority: "high", Timeline: "2 weeks"},
		{ID: "risk_counseling", Name: "Risk counseling", Cohorts: []string{"cancer_screening"}, Relevance: 0.55, Priority: "medium", Timeline: "1 month"},
		{ID: "genetic_counseling", Name: "Genetic counseling", Cohorts: []string{"cancer_screening"}, Relevance: 0.3, Priority: "low", Timeline: "3 months"},

		{ID: "medication_review", Name: "Medication review", Cohorts: []string{"hypertension"}, Relevance: 0.9, Priority: "high", Timeline: "3 days"},
		{ID: "bp_monitoring", Name: "Blood pressure monitoring", Cohorts: []string{"hypertension"}, Relevance: 0.85, Priority: "high", Timeline: "1 week"},
		{ID: "lifestyle_counseling", Name: "Lifestyle counseling", Cohorts: []string{"hypertension"}, Relevance: 0.55, Priority: "medium", Timeline: "2 weeks"},
		{ID: "cardiology_referral", Name: "Cardiology referral", Cohorts: []string{"hypertension"}, Relevance: 0.5, Priority: "medium", Timeline: "1 month"},
	}
}
