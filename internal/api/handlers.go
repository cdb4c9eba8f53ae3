package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cohort-outreach-mcp-server/internal/domain"
	"github.com/cohort-outreach-mcp-server/internal/notify"
)

// handleHealth reports liveness plus dependency health.
func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}

	if s.deps.DB != nil {
		if err := s.deps.DB.Health(c.Request.Context()); err != nil {
			status = "degraded"
			checks["database"] = err.Error()
		} else {
			checks["database"] = "ok"
		}
	}
	if s.deps.Portal != nil {
		checks["portal_clients"] = s.deps.Portal.ClientCount()
	}
	if s.deps.Dispatcher != nil {
		checks["delivery_breakers"] = s.deps.Dispatcher.BreakerStates()
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":          status,
		"timestamp":       time.Now().UTC(),
		"catalog_version": s.deps.Classifier.Catalog().Version(),
		"checks":          checks,
	})
}

// handleClassify classifies a patient record supplied in the request body.
// The record is not persisted; use the registry endpoints for that.
func (s *Server) handleClassify(c *gin.Context) {
	var patient domain.PatientRecord
	if err := c.ShouldBindJSON(&patient); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body: "+err.Error(), nil))
		return
	}

	result, err := s.deps.Classifier.ClassifyPatient(&patient)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListPatients(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	records, err := s.deps.Store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	count, err := s.deps.Store.Count(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patients": records,
		"total":    count,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleGetPatient(c *gin.Context) {
	patient, err := s.deps.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, patient)
}

// handleUnmetPatients sweeps the registry for patients whose classification
// warrants outreach, optionally filtered by cohort.
func (s *Server) handleUnmetPatients(c *gin.Context) {
	cohortFilter := c.Query("cohort")

	unmet, err := s.deps.Classifier.FindUnmetPatients(c.Request.Context(), s.deps.Store, cohortFilter)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"unmet_patients": unmet,
		"count":          len(unmet),
		"cohort_filter":  cohortFilter,
	})
}

// handlePatientOutreach returns a patient's outreach history from the audit
// log, newest first.
func (s *Server) handlePatientOutreach(c *gin.Context) {
	if s.deps.OutreachLog == nil {
		s.respondError(c, domain.NewAPIError(domain.ErrCodeInternalServer,
			"outreach log not configured", "", s.requestID(c)))
		return
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	entries, err := s.deps.OutreachLog.ListByPatient(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patient_id": c.Param("id"),
		"entries":    entries,
		"count":      len(entries),
	})
}

func (s *Server) handleListCohorts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"catalog_version": s.deps.Classifier.Catalog().Version(),
		"cohorts":         s.deps.Classifier.Catalog().Cohorts(),
	})
}

func (s *Server) handleGetCohort(c *gin.Context) {
	cohort, err := s.deps.Classifier.Catalog().Cohort(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cohort)
}

func (s *Server) handleCohortSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Classifier.GenerateCohortSummary())
}

// handleFireReminder dispatches an outreach reminder. When the request omits
// priority or cohort, the patient is classified and the result fills them in.
func (s *Server) handleFireReminder(c *gin.Context) {
	var req notify.ReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "invalid request body: "+err.Error(), nil))
		return
	}

	if req.Priority == "" || req.Cohort == "" {
		patient, err := s.deps.Store.Get(c.Request.Context(), req.PatientID)
		if err != nil {
			s.respondError(c, err)
			return
		}
		result, err := s.deps.Classifier.ClassifyPatient(patient)
		if err != nil {
			s.respondError(c, err)
			return
		}
		if req.Priority == "" {
			req.Priority = result.RiskTier
		}
		if req.Cohort == "" {
			req.Cohort = result.BestCohort
		}
	}

	receipt, err := s.deps.Dispatcher.FireReminder(c.Request.Context(), &req)

	if receipt != nil && s.deps.OutreachLog != nil {
		if logErr := s.deps.OutreachLog.Record(c.Request.Context(), receipt); logErr != nil {
			s.log.WithError(logErr).Error("Failed to record outreach log entry")
		}
	}

	if err != nil {
		if domain.IsDeliveryError(err) && receipt != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   domain.NewAPIError(domain.ErrCodeDelivery, err.Error(), "", s.requestID(c)),
				"receipt": receipt,
			})
			return
		}
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, receipt)
}

// handlePortalUpgrade hands the connection to the portal websocket hub.
func (s *Server) handlePortalUpgrade(c *gin.Context) {
	if s.deps.Portal == nil {
		s.respondError(c, domain.NewAPIError(domain.ErrCodeInternalServer,
			"portal channel not configured", "", s.requestID(c)))
		return
	}

	if err := s.deps.Portal.HandleUpgrade(c.Writer, c.Request); err != nil {
		s.log.WithError(err).Warn("Portal websocket upgrade failed")
	}
}

func (s *Server) requestID(c *gin.Context) string {
	return c.GetString("correlation_id")
}

// respondError maps domain errors onto HTTP status codes with the standard
// error envelope.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := s.requestID(c)

	var apiErr *domain.APIError
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &apiErr):
		// pass through
	case domain.IsValidationError(err):
		status = http.StatusBadRequest
		apiErr = domain.NewAPIError(domain.ErrCodeValidation, err.Error(), "", requestID)
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		apiErr = domain.NewAPIError(domain.ErrCodeNotFound, err.Error(), "", requestID)
	case domain.IsDeliveryError(err):
		status = http.StatusBadGateway
		apiErr = domain.NewAPIError(domain.ErrCodeDelivery, err.Error(), "", requestID)
	default:
		apiErr = domain.NewAPIError(domain.ErrCodeInternalServer, "internal server error", err.Error(), requestID)
	}

	s.log.WithFields(map[string]interface{}{
		"request_id": requestID,
		"status":     status,
		"error":      err.Error(),
	}).Warn("Request failed")

	c.JSON(status, gin.H{"error": apiErr})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}
