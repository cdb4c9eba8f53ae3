package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-outreach-mcp-server/internal/catalog"
	"github.com/cohort-outreach-mcp-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func ptr(v float64) *float64 { return &v }

func TestEvaluateCohortMembershipFullMatch(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	diabetic, err := cat.Cohort("diabetic")
	require.NoError(t, err)

	patient := &domain.PatientRecord{
		PatientID:       "P-1",
		Age:             58,
		SupportingFacts: []string{"Type 2 Diabetes diagnosed 2019"},
		LastHbA1c:       ptr(9.5),
	}

	eval, err := engine.EvaluateCohortMembership(patient, diabetic)
	require.NoError(t, err)

	// 0.6 (hba1c >= 7.0) + 0.4 (diagnosis keyword) over total 1.0
	assert.InDelta(t, 1.0, eval.Confidence, 0.0001)
	assert.Len(t, eval.Evidence, 2)
	assert.Empty(t, eval.Missing)
}

func TestEvaluateCohortMembershipSignalDedup(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	diabetic, err := cat.Cohort("diabetic")
	require.NoError(t, err)

	// Both phrasings of the diagnosis signal match; the signal still counts once.
	patient := &domain.PatientRecord{
		PatientID:       "P-2",
		Age:             58,
		SupportingFacts: []string{"diabetes"},
		Medications:     []string{"Metformin 500mg"},
	}

	eval, err := engine.EvaluateCohortMembership(patient, diabetic)
	require.NoError(t, err)

	assert.InDelta(t, 0.4, eval.Confidence, 0.0001)
	assert.Len(t, eval.Evidence, 1)
}

func TestEvaluateCohortMembershipAlternatePhrasing(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	diabetic, err := cat.Cohort("diabetic")
	require.NoError(t, err)

	// Only the medication phrasing matches; the signal still earns its
	// first-declared weight.
	patient := &domain.PatientRecord{
		PatientID:   "P-3",
		Age:         58,
		Medications: []string{"insulin glargine"},
	}

	eval, err := engine.EvaluateCohortMembership(patient, diabetic)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, eval.Confidence, 0.0001)
}

func TestEvaluateCohortMembershipNoSignals(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	diabetic, err := cat.Cohort("diabetic")
	require.NoError(t, err)

	eval, err := engine.EvaluateCohortMembership(&domain.PatientRecord{PatientID: "P-4", Age: 30}, diabetic)
	require.NoError(t, err)

	assert.Zero(t, eval.Confidence)
	assert.Empty(t, eval.Evidence)
	assert.NotEmpty(t, eval.Missing)
}

func TestEvaluateCohortMembershipRejectsInvalidPatient(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	diabetic, err := cat.Cohort("diabetic")
	require.NoError(t, err)

	_, err = engine.EvaluateCohortMembership(&domain.PatientRecord{PatientID: "P-5", Age: -5}, diabetic)
	assert.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestEvaluateCohortMembershipMonotonicity(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	hypertension, err := cat.Cohort("hypertension")
	require.NoError(t, err)

	base := &domain.PatientRecord{
		PatientID:      "P-6",
		Age:            65,
		LastSystolicBP: ptr(150.0),
	}
	baseline, err := engine.EvaluateCohortMembership(base, hypertension)
	require.NoError(t, err)

	richer := &domain.PatientRecord{
		PatientID:       "P-6",
		Age:             65,
		LastSystolicBP:  ptr(150.0),
		SupportingFacts: []string{"hypertension"},
		Medications:     []string{"lisinopril"},
	}
	improved, err := engine.EvaluateCohortMembership(richer, hypertension)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, improved.Confidence, baseline.Confidence)
	assert.LessOrEqual(t, improved.Confidence, 1.0)
	assert.GreaterOrEqual(t, baseline.Confidence, 0.0)
}

func TestEvaluateCohortMembershipIdempotent(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	obesity, err := cat.Cohort("obesity")
	require.NoError(t, err)

	patient := &domain.PatientRecord{
		PatientID:       "P-7",
		Age:             50,
		SupportingFacts: []string{"obesity", "sleep apnea"},
		LastBMI:         ptr(34.0),
	}

	first, err := engine.EvaluateCohortMembership(patient, obesity)
	require.NoError(t, err)
	second, err := engine.EvaluateCohortMembership(patient, obesity)
	require.NoError(t, err)

	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Evidence, second.Evidence)
}

func TestClassifyPatientToCohortsIncludesZeroEntries(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	memberships, err := engine.ClassifyPatientToCohorts(&domain.PatientRecord{PatientID: "P-8", Age: 30}, cat)
	require.NoError(t, err)

	assert.Len(t, memberships, 4)
	for name, eval := range memberships {
		assert.Zero(t, eval.Confidence, "cohort %s", name)
	}
}

func TestClassifyPatientToCohortsEmptyCatalog(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())

	empty, err := catalog.New("test", nil, nil)
	require.NoError(t, err)

	memberships, err := engine.ClassifyPatientToCohorts(&domain.PatientRecord{PatientID: "P-9", Age: 30}, empty)
	require.NoError(t, err)
	assert.Empty(t, memberships)

	tier, best := engine.AnalyzeInterventionNeed(memberships, empty)
	assert.Equal(t, domain.RiskLow, tier)
	assert.Empty(t, best)
}

func TestAnalyzeInterventionNeedTierMapping(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	tests := []struct {
		name       string
		confidence float64
		wantTier   domain.RiskTier
		wantCohort string
	}{
		{"below reporting floor", 0.1, domain.RiskLow, ""},
		{"exactly at medium boundary", 0.2, domain.RiskMedium, "diabetic"},
		{"between medium and high", 0.4, domain.RiskMedium, "diabetic"},
		{"exactly at high boundary", 0.5, domain.RiskHigh, "diabetic"},
		{"exactly at urgent boundary", 0.8, domain.RiskUrgent, "diabetic"},
		{"full confidence", 1.0, domain.RiskUrgent, "diabetic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memberships := map[string]*MembershipEvaluation{
				"diabetic": {Cohort: "diabetic", Confidence: tt.confidence},
			}
			tier, cohort := engine.AnalyzeInterventionNeed(memberships, cat)
			assert.Equal(t, tt.wantTier, tier)
			assert.Equal(t, tt.wantCohort, cohort)
		})
	}
}

func TestAnalyzeInterventionNeedTieBreaksByDeclarationOrder(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	// diabetic is declared before hypertension, so it wins an exact tie.
	memberships := map[string]*MembershipEvaluation{
		"diabetic":     {Cohort: "diabetic", Confidence: 0.6},
		"hypertension": {Cohort: "hypertension", Confidence: 0.6},
	}

	tier, cohort := engine.AnalyzeInterventionNeed(memberships, cat)
	assert.Equal(t, "diabetic", cohort)
	assert.Equal(t, domain.RiskHigh, tier)
}

func TestMatchPatientToInterventionsRanking(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	ids, err := engine.MatchPatientToInterventions("diabetic", cat)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"medication_adjustment",
		"lab_follow_up",
		"diabetes_education",
		"nutritional_counseling",
		"exercise_program",
	}, ids)
}

func TestMatchPatientToInterventionsUnknownCohort(t *testing.T) {
	engine := NewCohortRuleEngine(testLogger())
	cat := catalog.MustDefault()

	_, err := engine.MatchPatientToInterventions("nope", cat)
	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
