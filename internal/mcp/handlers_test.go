package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-outreach-mcp-server/internal/config"
	"github.com/cohort-outreach-mcp-server/internal/domain"
)

func newTestMCPServer(t *testing.T) *Server {
	cfg := &config.LiteConfig{
		DataDir:   filepath.Join(t.TempDir(), "data"),
		DedupeTTL: time.Minute,
		LogLevel:  "panic",
		LogFormat: "text",
	}

	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	return server
}

func callTool(t *testing.T, handler mcp.ToolHandler, args interface{}) *mcp.CallToolResult {
	raw, err := json.Marshal(args)
	require.NoError(t, err)

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParams{
			Arguments: json.RawMessage(raw),
		},
	}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult(t *testing.T, result *mcp.CallToolResult, target interface{}) {
	require.False(t, result.IsError, "unexpected tool error: %s", resultText(t, result))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), target))
}

func TestNewServerLogLevelFallback(t *testing.T) {
	cfg := &config.LiteConfig{
		DataDir:   filepath.Join(t.TempDir(), "data"),
		DedupeTTL: time.Minute,
		LogLevel:  "verbose",
		LogFormat: "text",
	}

	server, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	// Unparseable levels must not silence logging entirely
	assert.Equal(t, logrus.InfoLevel, server.logger.GetLevel())
}

func TestToolRegistryComplete(t *testing.T) {
	server := newTestMCPServer(t)

	defs := toolDefinitions(server)
	names := make(map[string]bool, len(defs))
	for _, def := range defs {
		assert.NotEmpty(t, def.Description)
		assert.NotNil(t, def.Handler)
		names[def.Name] = true
	}

	expected := []string{
		"classify_patient", "evaluate_cohort_membership", "analyze_intervention_need",
		"match_interventions", "get_cohort_summary", "get_all_cohorts", "get_cohort_info",
		"get_all_patients", "find_patient", "find_unmet_patients", "fire_reminder",
	}
	for _, name := range expected {
		assert.True(t, names[name], "missing tool %s", name)
	}
	assert.Len(t, defs, len(expected))
}

func TestHandleClassifyPatientTool(t *testing.T) {
	server := newTestMCPServer(t)

	hba1c := 9.5
	patient := &domain.PatientRecord{
		PatientID:       "P-8001",
		Name:            "Tool Test",
		Age:             55,
		SupportingFacts: []string{"Type 2 Diabetes"},
		LastHbA1c:       &hba1c,
	}

	result := callTool(t, server.handleClassifyPatient, patient)

	var classification domain.ClassificationResult
	decodeResult(t, result, &classification)
	assert.Equal(t, "diabetic", classification.BestCohort)
	assert.Equal(t, domain.RiskUrgent, classification.RiskTier)
}

func TestHandleClassifyPatientToolRejectsInvalid(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleClassifyPatient, &domain.PatientRecord{
		PatientID: "P-8002",
		Age:       -5,
	})
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "age")
}

func TestHandleEvaluateCohortMembershipTool(t *testing.T) {
	server := newTestMCPServer(t)

	hba1c := 8.0
	result := callTool(t, server.handleEvaluateCohortMembership, EvaluateCohortMembershipParams{
		Patient: domain.PatientRecord{
			PatientID: "P-8003",
			Age:       60,
			LastHbA1c: &hba1c,
		},
		CohortName: "diabetic",
	})

	var evaluation struct {
		Confidence float64  `json:"confidence"`
		Evidence   []string `json:"evidence"`
	}
	decodeResult(t, result, &evaluation)
	assert.InDelta(t, 0.6, evaluation.Confidence, 0.001)
	assert.NotEmpty(t, evaluation.Evidence)
}

func TestHandleEvaluateCohortMembershipUnknownCohort(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleEvaluateCohortMembership, EvaluateCohortMembershipParams{
		Patient:    domain.PatientRecord{PatientID: "P-8004", Age: 40},
		CohortName: "nope",
	})
	assert.True(t, result.IsError)
}

func TestHandleMatchInterventionsTool(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleMatchInterventions, MatchInterventionsParams{CohortName: "diabetic"})

	var body struct {
		Cohort        string   `json:"cohort"`
		Interventions []string `json:"interventions"`
	}
	decodeResult(t, result, &body)
	assert.Equal(t, "diabetic", body.Cohort)
	assert.NotEmpty(t, body.Interventions)
}

func TestHandleGetAllCohortsTool(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleGetAllCohorts, map[string]interface{}{})

	var body struct {
		CatalogVersion string                     `json:"catalog_version"`
		Cohorts        []*domain.CohortDefinition `json:"cohorts"`
	}
	decodeResult(t, result, &body)
	assert.NotEmpty(t, body.CatalogVersion)
	assert.Len(t, body.Cohorts, 4)
}

func TestHandleFindPatientTool(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleFindPatient, FindPatientParams{PatientID: "P-1001"})

	var patient domain.PatientRecord
	decodeResult(t, result, &patient)
	assert.Equal(t, "Alice Johnson", patient.Name)

	missing := callTool(t, server.handleFindPatient, FindPatientParams{PatientID: "P-0000"})
	assert.True(t, missing.IsError)
}

func TestHandleGetAllPatientsTool(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleGetAllPatients, GetAllPatientsParams{Limit: 3})

	var body struct {
		Patients []*domain.PatientRecord `json:"patients"`
		Total    int64                   `json:"total"`
	}
	decodeResult(t, result, &body)
	assert.Len(t, body.Patients, 3)
	assert.Equal(t, int64(6), body.Total)
}

func TestHandleFindUnmetPatientsTool(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleFindUnmetPatients, FindUnmetPatientsParams{})

	var body struct {
		Count int `json:"count"`
	}
	decodeResult(t, result, &body)
	assert.Greater(t, body.Count, 0)
}

func TestToolArgumentsDecodedFromWireForm(t *testing.T) {
	server := newTestMCPServer(t)

	// The SDK hands handlers the raw JSON payload boxed in the any-typed
	// arguments field
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParams{
			Arguments: json.RawMessage(`{"patient_id":"P-1001"}`),
		},
	}

	result, err := server.handleFindPatient(context.Background(), req)
	require.NoError(t, err)

	var patient domain.PatientRecord
	decodeResult(t, result, &patient)
	assert.Equal(t, "Alice Johnson", patient.Name)
}

func TestToolArgumentsAcceptDecodedValues(t *testing.T) {
	server := newTestMCPServer(t)

	// In-process callers may pass already-decoded arguments
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParams{
			Arguments: map[string]interface{}{"patient_id": "P-1001"},
		},
	}

	result, err := server.handleFindPatient(context.Background(), req)
	require.NoError(t, err)

	var patient domain.PatientRecord
	decodeResult(t, result, &patient)
	assert.Equal(t, "Alice Johnson", patient.Name)
}

func TestToolArgumentsAbsent(t *testing.T) {
	server := newTestMCPServer(t)

	// Optional-parameter tools fall back to defaults when no arguments arrive
	result, err := server.handleGetAllPatients(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParams{},
	})
	require.NoError(t, err)

	var body struct {
		Total int64 `json:"total"`
	}
	decodeResult(t, result, &body)
	assert.Equal(t, int64(6), body.Total)
}

func TestHandleFireReminderTool(t *testing.T) {
	server := newTestMCPServer(t)

	result := callTool(t, server.handleFireReminder, map[string]interface{}{
		"patient_id": "P-1001",
	})

	var receipt struct {
		ID       string `json:"id"`
		Priority string `json:"priority"`
		Cohort   string `json:"cohort"`
		Channels []struct {
			Channel   string `json:"channel"`
			Delivered bool   `json:"delivered"`
		} `json:"channels"`
	}
	decodeResult(t, result, &receipt)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "urgent", receipt.Priority)
	assert.Equal(t, "diabetic", receipt.Cohort)
	assert.Len(t, receipt.Channels, 4)
}
