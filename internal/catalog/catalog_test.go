package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func sampleCohort(name string) domain.CohortDefinition {
	return domain.CohortDefinition{
		Name: name,
		Criteria: []domain.Criterion{
			{SignalKey: "dx", Kind: domain.CriterionKeyword, Weight: 0.5, Keywords: []string{name}},
		},
		RiskThresholds: map[domain.RiskTier]float64{
			domain.RiskHigh:   0.6,
			domain.RiskMedium: 0.2,
		},
	}
}

func TestNewRejectsEmptyVersion(t *testing.T) {
	_, err := New("", nil, nil)
	assert.Error(t, err)
}

func TestNewRejectsDuplicateCohort(t *testing.T) {
	_, err := New("test", []domain.CohortDefinition{
		sampleCohort("diabetic"),
		sampleCohort("diabetic"),
	}, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate cohort")
}

func TestNewRejectsDuplicateIntervention(t *testing.T) {
	_, err := New("test", []domain.CohortDefinition{sampleCohort("diabetic")}, []domain.Intervention{
		{ID: "one", Name: "One", Cohorts: []string{"diabetic"}, Relevance: 0.5},
		{ID: "one", Name: "One again", Cohorts: []string{"diabetic"}, Relevance: 0.4},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate intervention")
}

func TestNewRejectsInvalidCohort(t *testing.T) {
	_, err := New("test", []domain.CohortDefinition{{Name: "empty"}}, nil)
	assert.Error(t, err)
}

func TestCohortLookup(t *testing.T) {
	cat, err := New("test", []domain.CohortDefinition{sampleCohort("diabetic")}, nil)
	require.NoError(t, err)

	def, err := cat.Cohort("diabetic")
	require.NoError(t, err)
	assert.Equal(t, "diabetic", def.Name)

	_, err = cat.Cohort("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	assert.Equal(t, DefaultVersion, cat.Version())
	assert.Len(t, cat.Cohorts(), 4)
	assert.Len(t, cat.Interventions(), 16)

	for _, name := range []string{"diabetic", "obesity", "cancer_screening", "hypertension"} {
		def, err := cat.Cohort(name)
		require.NoError(t, err, "cohort %s", name)
		assert.NotEmpty(t, def.Criteria)
		assert.NotEmpty(t, def.RiskThresholds)
	}
}

func TestDefaultInterventionsReferenceKnownCohorts(t *testing.T) {
	cat := MustDefault()

	for _, iv := range cat.Interventions() {
		for _, cohort := range iv.Cohorts {
			_, err := cat.Cohort(cohort)
			assert.NoError(t, err, "intervention %s references unknown cohort %s", iv.ID, cohort)
		}
	}
}

func TestSummary(t *testing.T) {
	cat := MustDefault()

	summary := cat.Summary()
	require.NotNil(t, summary)

	assert.Equal(t, DefaultVersion, summary.Version)
	assert.Equal(t, 4, summary.TotalCohorts)
	require.Len(t, summary.Cohorts, 4)

	// Declaration order is preserved in the projection.
	assert.Equal(t, "diabetic", summary.Cohorts[0].Name)
	assert.Equal(t, 5, summary.Cohorts[0].InterventionCount)
	assert.Equal(t, 3, summary.Cohorts[0].CriteriaCount)
}

func TestLoadDefaultsWhenPathEmpty(t *testing.T) {
	cat, err := Load("", testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, cat.Version())
}

func TestLoadFile(t *testing.T) {
	content := `version: "2025.1"
cohorts:
  - name: diabetic
    display_name: Diabetic Management
    criteria:
      - signal_key: hba1c_elevated
        kind: threshold
        field: last_hba1c
        op: gte
        value: 7.0
        weight: 0.6
      - signal_key: diabetes_diagnosis
        kind: keyword
        keywords: ["diabetes"]
        weight: 0.4
    risk_thresholds:
      urgent: 0.8
      high: 0.5
      medium: 0.2
interventions:
  - id: medication_adjustment
    name: Medication adjustment
    cohorts: ["diabetic"]
    relevance: 0.9
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cat, err := LoadFile(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "2025.1", cat.Version())
	require.Len(t, cat.Cohorts(), 1)
	assert.Len(t, cat.Interventions(), 1)

	def, err := cat.Cohort("diabetic")
	require.NoError(t, err)
	assert.Len(t, def.Criteria, 2)
	assert.Equal(t, 0.8, def.RiskThresholds[domain.RiskUrgent])
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), testLogger())
	assert.Error(t, err)
}

func TestLoadFileInvalidCatalog(t *testing.T) {
	content := `version: "2025.1"
cohorts:
  - name: broken
`
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadFile(path, testLogger())
	assert.Error(t, err)
}
