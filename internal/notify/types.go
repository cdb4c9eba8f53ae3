// Package notify implements the outreach boundary: reminder construction,
// channel fan-out, delivery dedupe, and delivery receipts. Classification
// results are never invalidated by delivery failures; errors here surface
// as DeliveryError and stop at this boundary.
package notify

import (
	"fmt"
	"time"

	"github.com/cohort-outreach-mcp-server/internal/domain"
)

// ReminderType identifies the message template used for a reminder.
type ReminderType string

const (
	ReminderAppointment        ReminderType = "appointment"
	ReminderMedication         ReminderType = "medication"
	ReminderScreening          ReminderType = "screening"
	ReminderLabWork            ReminderType = "lab_work"
	ReminderFollowUp           ReminderType = "follow_up"
	ReminderIntervention       ReminderType = "intervention"
	ReminderDiabetesManagement ReminderType = "diabetes_management"
	ReminderWeightManagement   ReminderType = "weight_management"
	ReminderGeneral            ReminderType = "general"
)

// IsValid checks whether the reminder type has a template.
func (rt ReminderType) IsValid() bool {
	_, ok := messageTemplates[rt]
	return ok
}

// Channel identifies an outreach delivery channel.
type Channel string

const (
	ChannelPortal    Channel = "portal"
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
	ChannelPhoneCall Channel = "phone_call"
)

// messageTemplates maps each reminder type to its patient-facing message.
// The single %s is the patient's name.
var messageTemplates = map[ReminderType]string{
	ReminderAppointment:        "Hi %s, this is a reminder from your care team to schedule your upcoming appointment. Please call us or use the patient portal.",
	ReminderMedication:         "Hi %s, please remember to take your prescribed medications as directed and request refills before you run out.",
	ReminderScreening:          "Hi %s, our records show you are due for a preventive screening. Please contact us to schedule at your earliest convenience.",
	ReminderLabWork:            "Hi %s, lab work has been ordered for you. Please visit the lab before your next appointment.",
	ReminderFollowUp:           "Hi %s, your care team would like to schedule a follow-up visit to review your progress.",
	ReminderIntervention:       "Hi %s, your care team has identified a recommended care program for you. Please reach out to discuss next steps.",
	ReminderDiabetesManagement: "Hi %s, a reminder from your diabetes care team: please check your blood sugar regularly and log your readings this week.",
	ReminderWeightManagement:   "Hi %s, this is a check-in from your weight management program. Keep up with your activity plan and log your progress.",
	ReminderGeneral:            "Hi %s, your care team is checking in. Please contact us if you have any questions about your care plan.",
}

// cohortDefaultTypes maps a cohort to the reminder type used when a request
// does not name one.
var cohortDefaultTypes = map[string]ReminderType{
	"diabetic":         ReminderDiabetesManagement,
	"obesity":          ReminderWeightManagement,
	"cancer_screening": ReminderScreening,
	"hypertension":     ReminderMedication,
}

// DefaultTypeForCohort resolves the reminder type for a cohort, falling back
// to the general template for unknown cohorts.
func DefaultTypeForCohort(cohort string) ReminderType {
	if rt, ok := cohortDefaultTypes[cohort]; ok {
		return rt
	}
	return ReminderGeneral
}

// ChannelsForTier expands a risk tier into the delivery channels used for a
// reminder at that tier. The portal channel is always included; escalation
// adds channels, never removes them.
func ChannelsForTier(tier domain.RiskTier) []Channel {
	channels := []Channel{ChannelPortal}
	if tier.Rank() >= domain.RiskHigh.Rank() {
		channels = append(channels, ChannelEmail, ChannelSMS)
	}
	if tier == domain.RiskUrgent {
		channels = append(channels, ChannelPhoneCall)
	}
	return channels
}

// ReminderRequest describes a reminder to dispatch.
type ReminderRequest struct {
	PatientID string          `json:"patient_id"`
	Cohort    string          `json:"cohort,omitempty"`
	Type      ReminderType    `json:"reminder_type,omitempty"`
	Priority  domain.RiskTier `json:"priority"`
	Message   string          `json:"message,omitempty"`
}

// Validate checks the reminder request for structural errors.
func (r *ReminderRequest) Validate() error {
	if r.PatientID == "" {
		return domain.NewValidationError("patient_id", "patient_id is required", "")
	}
	if !r.Priority.IsValid() {
		return domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", r.Priority), string(r.Priority))
	}
	if r.Type != "" && !r.Type.IsValid() {
		return domain.NewValidationError("reminder_type", fmt.Sprintf("unknown reminder type %q", r.Type), string(r.Type))
	}
	return nil
}

// ChannelResult records one channel's delivery outcome.
type ChannelResult struct {
	Channel   Channel `json:"channel"`
	Delivered bool    `json:"delivered"`
	Error     string  `json:"error,omitempty"`
}

// DeliveryReceipt records what a FireReminder call attempted and delivered.
type DeliveryReceipt struct {
	ID           string          `json:"id"`
	PatientID    string          `json:"patient_id"`
	Cohort       string          `json:"cohort,omitempty"`
	Type         ReminderType    `json:"reminder_type"`
	Priority     domain.RiskTier `json:"priority"`
	Message      string          `json:"message"`
	Channels     []ChannelResult `json:"channels"`
	Deduplicated bool            `json:"deduplicated"`
	FiredAt      time.Time       `json:"fired_at"`
}

// Delivered reports whether at least one channel accepted the reminder.
func (r *DeliveryReceipt) Delivered() bool {
	for _, c := range r.Channels {
		if c.Delivered {
			return true
		}
	}
	return false
}

// BuildMessage renders the reminder message for a patient. An explicit
// message on the request wins over the template.
func BuildMessage(req *ReminderRequest, patientName string) (ReminderType, string) {
	rt := req.Type
	if rt == "" {
		rt = DefaultTypeForCohort(req.Cohort)
	}
	if req.Message != "" {
		return rt, req.Message
	}
	name := patientName
	if name == "" {
		name = req.PatientID
	}
	return rt, fmt.Sprintf(messageTemplates[rt], name)
}
