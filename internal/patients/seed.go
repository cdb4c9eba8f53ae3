package patients

import (
	"context"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

func ptr(v float64) *float64 { return &v }

// DemoPatients returns the bundled demonstration registry used when a store
// is started empty. Each cohort has one patient with unmet needs and one
// well-managed counterpart.
func DemoPatients() []*domain.PatientRecord {
	return []*domain.PatientRecord{
		{
			PatientID:       "P-1001",
			Name:            "Alice Johnson",
			Age:             58,
			SupportingFacts: []string{"Type 2 Diabetes", "Hypertension"},
			Medications:     []string{"Metformin", "Lisinopril"},
			LastHbA1c:       ptr(8.2),
			LastBMI:         ptr(28.5),
			LastSystolicBP:  ptr(140),
			LastDiastolicBP: ptr(90),
			Phone:           "555-0101",
			Email:           "alice.johnson@example.com",
			LastVisit:       "2024-05-15",
		},
		{
			PatientID:       "P-1002",
			Name:            "Grace Thompson",
			Age:             62,
			SupportingFacts: []string{"Type 2 Diabetes", "Excellent Glycemic Control"},
			Medications:     []string{"Metformin"},
			LastHbA1c:       ptr(6.5),
			LastBMI:         ptr(25.8),
			LastSystolicBP:  ptr(118),
			LastDiastolicBP: ptr(72),
			Phone:           "555-0102",
			Email:           "grace.thompson@example.com",
			LastVisit:       "2024-06-20",
		},
		{
			PatientID:       "P-1003",
			Name:            "David Wilson",
			Age:             42,
			SupportingFacts: []string{"Morbid Obesity", "Sleep Apnea", "Metabolic Syndrome"},
			Medications:     []string{"CPAP"},
			LastBMI:         ptr(35.2),
			Phone:           "555-0103",
			Email:           "david.wilson@example.com",
			LastVisit:       "2024-03-15",
		},
		{
			PatientID:       "P-1004",
			Name:            "Henry Rodriguez",
			Age:             46,
			SupportingFacts: []string{"Obesity Class I", "Active Weight Management"},
			Medications:     []string{"Multivitamin"},
			LastBMI:         ptr(31.2),
			Phone:           "555-0104",
			Email:           "henry.rodriguez@example.com",
			LastVisit:       "2024-06-15",
		},
		{
			PatientID:           "P-1005",
			Name:                "Frank Miller",
			Age:                 52,
			SupportingFacts:     []string{"Family History of Colorectal Cancer", "Overdue for screening"},
			LastScreeningMonths: ptr(22),
			Phone:               "555-0105",
			Email:               "frank.miller@example.com",
			LastVisit:           "2024-01-10",
		},
		{
			PatientID:           "P-1006",
			Name:                "Irene Kim",
			Age:                 48,
			SupportingFacts:     []string{"Family History of Breast Cancer", "Current with Screenings"},
			LastScreeningMonths: ptr(3),
			Phone:               "555-0106",
			Email:               "irene.kim@example.com",
			LastVisit:           "2024-06-01",
		},
	}
}

// SeedIfEmpty loads the demo patients into an empty store. A non-empty
// store is left untouched.
func SeedIfEmpty(ctx context.Context, store Store) (int, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	seeded := 0
	for _, p := range DemoPatients() {
		if err := store.Save(ctx, p); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}
