package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cohort-outreach-mcp-server/internal/domain"
	"github.com/cohort-outreach-mcp-server/internal/notify"
)

// EvaluateCohortMembershipParams defines parameters for evaluate_cohort_membership
type EvaluateCohortMembershipParams struct {
	Patient    domain.PatientRecord `json:"patient"`
	CohortName string               `json:"cohort_name"`
}

// MatchInterventionsParams defines parameters for match_interventions
type MatchInterventionsParams struct {
	CohortName string `json:"cohort_name"`
}

// GetCohortInfoParams defines parameters for get_cohort_info
type GetCohortInfoParams struct {
	CohortName string `json:"cohort_name"`
}

// GetAllPatientsParams defines parameters for get_all_patients
type GetAllPatientsParams struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// FindPatientParams defines parameters for find_patient
type FindPatientParams struct {
	PatientID string `json:"patient_id"`
}

// FindUnmetPatientsParams defines parameters for find_unmet_patients
type FindUnmetPatientsParams struct {
	Cohort string `json:"cohort,omitempty"`
}

// rawArguments extracts the JSON payload of a tool call. The SDK decodes
// wire arguments into an any holding a json.RawMessage; in-process callers
// may hand us any marshallable value instead.
func rawArguments(req *mcp.CallToolRequest) json.RawMessage {
	if req.Params == nil || req.Params.Arguments == nil {
		return nil
	}
	if raw, ok := req.Params.Arguments.(json.RawMessage); ok {
		return raw
	}
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return nil
	}
	return raw
}

// handleClassifyPatient handles the classify_patient tool invocation
func (s *Server) handleClassifyPatient(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "classify_patient").Info("Tool invoked")

	var patient domain.PatientRecord
	if err := json.Unmarshal(rawArguments(req), &patient); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	result, err := s.classifier.ClassifyPatient(&patient)
	if err != nil {
		return s.createErrorResult("Classification failed", err), nil
	}

	return s.jsonResult(result)
}

// handleEvaluateCohortMembership handles the evaluate_cohort_membership tool invocation
func (s *Server) handleEvaluateCohortMembership(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "evaluate_cohort_membership").Info("Tool invoked")

	var params EvaluateCohortMembershipParams
	if err := json.Unmarshal(rawArguments(req), &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.CohortName == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("cohort_name is required")), nil
	}

	cohort, err := s.classifier.Catalog().Cohort(params.CohortName)
	if err != nil {
		return s.createErrorResult("Unknown cohort", err), nil
	}

	evaluation, err := s.classifier.RuleEngine().EvaluateCohortMembership(&params.Patient, cohort)
	if err != nil {
		return s.createErrorResult("Evaluation failed", err), nil
	}

	return s.jsonResult(evaluation)
}

// handleAnalyzeInterventionNeed handles the analyze_intervention_need tool invocation
func (s *Server) handleAnalyzeInterventionNeed(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "analyze_intervention_need").Info("Tool invoked")

	var patient domain.PatientRecord
	if err := json.Unmarshal(rawArguments(req), &patient); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	memberships, err := s.classifier.RuleEngine().ClassifyPatientToCohorts(&patient, s.classifier.Catalog())
	if err != nil {
		return s.createErrorResult("Evaluation failed", err), nil
	}

	tier, bestCohort := s.classifier.RuleEngine().AnalyzeInterventionNeed(memberships, s.classifier.Catalog())

	scores := make(map[string]float64, len(memberships))
	for name, eval := range memberships {
		scores[name] = eval.Confidence
	}

	return s.jsonResult(map[string]interface{}{
		"patient_id":         patient.PatientID,
		"risk_tier":          tier,
		"best_cohort":        bestCohort,
		"cohort_memberships": scores,
		"requires_outreach":  tier.RequiresOutreach(),
	})
}

// handleMatchInterventions handles the match_interventions tool invocation
func (s *Server) handleMatchInterventions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "match_interventions").Info("Tool invoked")

	var params MatchInterventionsParams
	if err := json.Unmarshal(rawArguments(req), &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.CohortName == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("cohort_name is required")), nil
	}

	interventions, err := s.classifier.RuleEngine().MatchPatientToInterventions(params.CohortName, s.classifier.Catalog())
	if err != nil {
		return s.createErrorResult("Matching failed", err), nil
	}

	return s.jsonResult(map[string]interface{}{
		"cohort":        params.CohortName,
		"interventions": interventions,
	})
}

// handleGetCohortSummary handles the get_cohort_summary tool invocation
func (s *Server) handleGetCohortSummary(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "get_cohort_summary").Info("Tool invoked")
	return s.jsonResult(s.classifier.GenerateCohortSummary())
}

// handleGetAllCohorts handles the get_all_cohorts tool invocation
func (s *Server) handleGetAllCohorts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "get_all_cohorts").Info("Tool invoked")

	return s.jsonResult(map[string]interface{}{
		"catalog_version": s.classifier.Catalog().Version(),
		"cohorts":         s.classifier.Catalog().Cohorts(),
	})
}

// handleGetCohortInfo handles the get_cohort_info tool invocation
func (s *Server) handleGetCohortInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "get_cohort_info").Info("Tool invoked")

	var params GetCohortInfoParams
	if err := json.Unmarshal(rawArguments(req), &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.CohortName == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("cohort_name is required")), nil
	}

	cohort, err := s.classifier.Catalog().Cohort(params.CohortName)
	if err != nil {
		return s.createErrorResult("Unknown cohort", err), nil
	}

	return s.jsonResult(cohort)
}

// handleGetAllPatients handles the get_all_patients tool invocation
func (s *Server) handleGetAllPatients(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "get_all_patients").Info("Tool invoked")

	var params GetAllPatientsParams
	if raw := rawArguments(req); len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return s.createErrorResult("Invalid parameters", err), nil
		}
	}
	if params.Limit <= 0 {
		params.Limit = 50
	}

	records, err := s.store.List(ctx, params.Limit, params.Offset)
	if err != nil {
		return s.createErrorResult("Failed to list patients", err), nil
	}

	total, err := s.store.Count(ctx)
	if err != nil {
		return s.createErrorResult("Failed to count patients", err), nil
	}

	return s.jsonResult(map[string]interface{}{
		"patients": records,
		"total":    total,
		"limit":    params.Limit,
		"offset":   params.Offset,
	})
}

// handleFindPatient handles the find_patient tool invocation
func (s *Server) handleFindPatient(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "find_patient").Info("Tool invoked")

	var params FindPatientParams
	if err := json.Unmarshal(rawArguments(req), &params); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}
	if params.PatientID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("patient_id is required")), nil
	}

	patient, err := s.store.Get(ctx, params.PatientID)
	if err != nil {
		return s.createErrorResult("Patient lookup failed", err), nil
	}

	return s.jsonResult(patient)
}

// handleFindUnmetPatients handles the find_unmet_patients tool invocation
func (s *Server) handleFindUnmetPatients(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "find_unmet_patients").Info("Tool invoked")

	var params FindUnmetPatientsParams
	if raw := rawArguments(req); len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return s.createErrorResult("Invalid parameters", err), nil
		}
	}

	unmet, err := s.classifier.FindUnmetPatients(ctx, s.store, params.Cohort)
	if err != nil {
		return s.createErrorResult("Unmet patient sweep failed", err), nil
	}

	return s.jsonResult(map[string]interface{}{
		"unmet_patients": unmet,
		"count":          len(unmet),
		"cohort_filter":  params.Cohort,
	})
}

// handleFireReminder handles the fire_reminder tool invocation
func (s *Server) handleFireReminder(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.logger.WithField("tool", "fire_reminder").Info("Tool invoked")

	var reminder notify.ReminderRequest
	if err := json.Unmarshal(rawArguments(req), &reminder); err != nil {
		return s.createErrorResult("Invalid parameters", err), nil
	}

	// Fill omitted priority and cohort from the classification result
	if reminder.Priority == "" || reminder.Cohort == "" {
		patient, err := s.store.Get(ctx, reminder.PatientID)
		if err != nil {
			return s.createErrorResult("Patient lookup failed", err), nil
		}
		result, err := s.classifier.ClassifyPatient(patient)
		if err != nil {
			return s.createErrorResult("Classification failed", err), nil
		}
		if reminder.Priority == "" {
			reminder.Priority = result.RiskTier
		}
		if reminder.Cohort == "" {
			reminder.Cohort = result.BestCohort
		}
	}

	receipt, err := s.dispatcher.FireReminder(ctx, &reminder)
	if err != nil {
		if receipt != nil {
			// Partial failure still carries a receipt worth returning
			return s.jsonResult(map[string]interface{}{
				"receipt": receipt,
				"error":   err.Error(),
			})
		}
		return s.createErrorResult("Reminder dispatch failed", err), nil
	}

	return s.jsonResult(receipt)
}

// jsonResult marshals a value as an indented JSON text block.
func (s *Server) jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}

// createErrorResult builds an error tool result.
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
