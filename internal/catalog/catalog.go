// Package catalog holds the versioned cohort and intervention definitions.
//
// The catalog is loaded once at process start and treated as read-only for
// the process lifetime; evaluation code receives it by reference and never
// mutates it, so concurrent readers need no locking.
package catalog

import (
	"fmt"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// Catalog is the immutable set of cohort definitions and interventions the
// classifier evaluates against. Declaration order is preserved: it breaks
// ties both between equally-confident cohorts and between equally-relevant
// interventions.
type Catalog struct {
	version       string
	cohorts       []domain.CohortDefinition
	interventions []domain.Intervention
	byName        map[string]*domain.CohortDefinition
}

// New builds a catalog from definitions, validating every entry.
func New(version string, cohorts []domain.CohortDefinition, interventions []domain.Intervention) (*Catalog, error) {
	if version == "" {
		return nil, fmt.Errorf("catalog version is required")
	}

	byName := make(map[string]*domain.CohortDefinition, len(cohorts))
	for i := range cohorts {
		if err := cohorts[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		if _, dup := byName[cohorts[i].Name]; dup {
			return nil, fmt.Errorf("invalid catalog: duplicate cohort name %q", cohorts[i].Name)
		}
		byName[cohorts[i].Name] = &cohorts[i]
	}

	seen := make(map[string]bool, len(interventions))
	for i := range interventions {
		if err := interventions[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		if seen[interventions[i].ID] {
			return nil, fmt.Errorf("invalid catalog: duplicate intervention id %q", interventions[i].ID)
		}
		seen[interventions[i].ID] = true
	}

	return &Catalog{
		version:       version,
		cohorts:       cohorts,
		interventions: interventions,
		byName:        byName,
	}, nil
}

// Version returns the catalog version string.
func (c *Catalog) Version() string {
	return c.version
}

// Cohorts returns the cohort definitions in declaration order.
func (c *Catalog) Cohorts() []domain.CohortDefinition {
	return c.cohorts
}

// Interventions returns the intervention entries in declaration order.
func (c *Catalog) Interventions() []domain.Intervention {
	return c.interventions
}

// Cohort looks up a cohort definition by name.
func (c *Catalog) Cohort(name string) (*domain.CohortDefinition, error) {
	def, ok := c.byName[name]
	if !ok {
		return nil, domain.NewNotFoundError("cohort", name)
	}
	return def, nil
}

// Summary produces the read-only projection of the loaded catalog for
// display. No patient data is involved.
func (c *Catalog) Summary() *domain.CatalogSummary {
	summaries := make([]domain.CohortSummary, 0, len(c.cohorts))
	for i := range c.cohorts {
		def := &c.cohorts[i]
		count := 0
		for j := range c.interventions {
			if c.interventions[j].AppliesTo(def.Name) {
				count++
			}
		}
		summaries = append(summaries, domain.CohortSummary{
			Name:              def.Name,
			DisplayName:       def.DisplayName,
			Description:       def.Description,
			CriteriaCount:     len(def.Criteria),
			RiskThresholds:    def.RiskThresholds,
			InterventionCount: count,
		})
	}

	return &domain.CatalogSummary{
		Version:      c.version,
		TotalCohorts: len(c.cohorts),
		Cohorts:      summaries,
	}
}
