package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohort-outreach-mcp-server/internal/catalog"
	"github.com/cohort-outreach-mcp-server/internal/config"
	"github.com/cohort-outreach-mcp-server/internal/domain"
	"github.com/cohort-outreach-mcp-server/internal/notify"
	"github.com/cohort-outreach-mcp-server/internal/patients"
	"github.com/cohort-outreach-mcp-server/internal/service"
)

type memStore struct {
	records map[string]*domain.PatientRecord
	order   []string
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.PatientRecord)}
}

func (s *memStore) Save(ctx context.Context, p *domain.PatientRecord) error {
	if _, ok := s.records[p.PatientID]; !ok {
		s.order = append(s.order, p.PatientID)
	}
	s.records[p.PatientID] = p
	return nil
}

func (s *memStore) Get(ctx context.Context, id string) (*domain.PatientRecord, error) {
	p, ok := s.records[id]
	if !ok {
		return nil, domain.NewNotFoundError("patient", id)
	}
	return p, nil
}

func (s *memStore) List(ctx context.Context, limit, offset int) ([]*domain.PatientRecord, error) {
	var out []*domain.PatientRecord
	for i := offset; i < len(s.order) && len(out) < limit; i++ {
		out = append(out, s.records[s.order[i]])
	}
	return out, nil
}

func (s *memStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.records[id]; !ok {
		return domain.NewNotFoundError("patient", id)
	}
	delete(s.records, id)
	return nil
}

func (s *memStore) Close() error { return nil }

type nullSender struct{ channel notify.Channel }

func (n *nullSender) Channel() notify.Channel { return n.channel }
func (n *nullSender) Send(ctx context.Context, r *notify.DeliveryReceipt) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	classifier, err := service.NewClassifierService(logger, catalog.MustDefault())
	require.NoError(t, err)

	store := newMemStore()
	for _, p := range patients.DemoPatients() {
		require.NoError(t, store.Save(context.Background(), p))
	}

	dispatcher := notify.NewDispatcher(logger, store, notify.NewMemoryDeduper(),
		notify.DispatcherConfig{RatePerSecond: 1000, RateBurst: 100},
		&nullSender{channel: notify.ChannelPortal},
		&nullSender{channel: notify.ChannelEmail},
		&nullSender{channel: notify.ChannelSMS},
		&nullSender{channel: notify.ChannelPhoneCall},
	)

	cfg := &config.Config{}
	cfg.Logging.Level = "error"

	srv := NewServer(cfg, logger, Deps{
		Classifier: classifier,
		Store:      store,
		Dispatcher: dispatcher,
	})

	return srv, store
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["catalog_version"])
}

func TestHandleClassify(t *testing.T) {
	srv, _ := newTestServer(t)

	hba1c := 9.5
	patient := &domain.PatientRecord{
		PatientID:       "P-9001",
		Name:            "Test Patient",
		Age:             60,
		SupportingFacts: []string{"Type 2 Diabetes"},
		LastHbA1c:       &hba1c,
	}

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/classify", patient)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.ClassificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "diabetic", result.BestCohort)
	assert.Equal(t, domain.RiskUrgent, result.RiskTier)
	assert.InDelta(t, 1.0, result.CohortMemberships["diabetic"], 0.001)
}

func TestHandleClassifyRejectsInvalid(t *testing.T) {
	srv, _ := newTestServer(t)

	patient := &domain.PatientRecord{PatientID: "P-9002", Age: -5}
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/classify", patient)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPatient(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/patients/P-1001", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var patient domain.PatientRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patient))
	assert.Equal(t, "Alice Johnson", patient.Name)
}

func TestHandleGetPatientNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/patients/P-0000", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListPatients(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/patients?limit=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Patients []*domain.PatientRecord `json:"patients"`
		Total    int64                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Patients, 3)
	assert.Equal(t, int64(6), body.Total)
}

func TestHandleUnmetPatients(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/patients/unmet", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UnmetPatients []service.UnmetPatient `json:"unmet_patients"`
		Count         int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Greater(t, body.Count, 0)
	for _, u := range body.UnmetPatients {
		assert.True(t, u.Classification.RiskTier.RequiresOutreach())
	}
}

func TestHandleUnmetPatientsUnknownCohort(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/patients/unmet?cohort=nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCohorts(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/cohorts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Cohorts []*domain.CohortDefinition `json:"cohorts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Cohorts, 4)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/cohorts/diabetic", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/cohorts/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/cohorts/summary", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleFireReminder(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/reminders", map[string]interface{}{
		"patient_id": "P-1001",
		"priority":   "urgent",
		"cohort":     "diabetic",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt notify.DeliveryReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, notify.ReminderDiabetesManagement, receipt.Type)
	assert.Len(t, receipt.Channels, 4)
}

func TestHandleFireReminderDerivesPriority(t *testing.T) {
	srv, _ := newTestServer(t)

	// P-1001 classifies as urgent diabetic; omitted fields come from the
	// classification result
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/reminders", map[string]interface{}{
		"patient_id": "P-1001",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var receipt notify.DeliveryReceipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, domain.RiskUrgent, receipt.Priority)
	assert.Equal(t, "diabetic", receipt.Cohort)
}

func TestHandleFireReminderUnknownPatient(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/reminders", map[string]interface{}{
		"patient_id": "P-0000",
		"priority":   "low",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
