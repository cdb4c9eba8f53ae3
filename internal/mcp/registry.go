package mcp

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition is one entry in the server's capability table.
type ToolDefinition struct {
	Name        string
	Description string
	Handler     mcp.ToolHandler
}

// toolDefinitions is the static capability table: every tool the server
// exposes, in the order they are registered.
func toolDefinitions(s *Server) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "classify_patient",
			Description: "Run the full classification workflow for a patient record: cohort membership scores, risk tier, and recommended interventions.",
			Handler:     s.handleClassifyPatient,
		},
		{
			Name:        "evaluate_cohort_membership",
			Description: "Evaluate one cohort's criteria against a patient record and return the confidence score with supporting evidence.",
			Handler:     s.handleEvaluateCohortMembership,
		},
		{
			Name:        "analyze_intervention_need",
			Description: "Determine a patient's risk tier and best-matching cohort from their cohort membership scores.",
			Handler:     s.handleAnalyzeInterventionNeed,
		},
		{
			Name:        "match_interventions",
			Description: "List the interventions applicable to a cohort, ranked by relevance.",
			Handler:     s.handleMatchInterventions,
		},
		{
			Name:        "get_cohort_summary",
			Description: "Summarize the loaded cohort catalog: cohorts, criteria counts, and intervention counts.",
			Handler:     s.handleGetCohortSummary,
		},
		{
			Name:        "get_all_cohorts",
			Description: "Return every cohort definition in the catalog.",
			Handler:     s.handleGetAllCohorts,
		},
		{
			Name:        "get_cohort_info",
			Description: "Return one cohort's full definition by name.",
			Handler:     s.handleGetCohortInfo,
		},
		{
			Name:        "get_all_patients",
			Description: "List patient records from the registry with pagination.",
			Handler:     s.handleGetAllPatients,
		},
		{
			Name:        "find_patient",
			Description: "Look up a patient record by patient ID.",
			Handler:     s.handleFindPatient,
		},
		{
			Name:        "find_unmet_patients",
			Description: "Scan the registry for patients whose classification warrants outreach (medium tier or above), optionally filtered by cohort.",
			Handler:     s.handleFindUnmetPatients,
		},
		{
			Name:        "fire_reminder",
			Description: "Dispatch an outreach reminder to a patient over the channels implied by its priority, with duplicate suppression.",
			Handler:     s.handleFireReminder,
		},
	}
}
