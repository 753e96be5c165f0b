package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"yatri/internal/identity/handler"
	"yatri/internal/identity/models"
	"yatri/internal/identity/qr"
	"yatri/internal/identity/service"
	"yatri/internal/identity/store"
	"yatri/pkg/platform/httputil"
)

const handlerSubject = "0x5555555555555555555555555555555555555555"

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	st, err := store.NewFile(filepath.Join(s.T().TempDir(), "identities.json"), nil, nil)
	s.Require().NoError(err)

	svc := service.NewService(st, "testnet", nil, slog.Default())
	h := handler.New(svc, qr.NewBuilder(st, nil), slog.Default())

	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) submitBody() map[string]any {
	return map[string]any{
		"subject_id":  handlerSubject,
		"trip_id":     "trip-kerala-01",
		"full_name":   "Asha Nair",
		"destination": "Kerala",
		"start_date":  "2026-09-01",
		"end_date":    "2026-09-14",
		"contacts": []map[string]string{
			{"name": "Ravi", "phone": "+91-98765-43210"},
		},
	}
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestSubmitCreatesRecord() {
	rec := s.do(http.MethodPost, "/api/v1/identity", s.submitBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.SubmitIdentityResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(handlerSubject, resp.SubjectID)
	s.Equal(int64(1), resp.Version)
	s.NotEmpty(resp.AnchorHash)
	s.False(resp.Anchored)
}

func (s *HandlerSuite) TestResubmitReturnsOKWithBumpedVersion() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	body := s.submitBody()
	body["destination"] = "Goa"
	rec := s.do(http.MethodPost, "/api/v1/identity", body)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp models.SubmitIdentityResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(int64(2), resp.Version)
}

func (s *HandlerSuite) TestSubmitMalformedJSONIsBadRequest() {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/identity", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSubmitValidationFailureListsFields() {
	body := s.submitBody()
	body["full_name"] = ""
	body["start_date"] = "01-09-2026"

	rec := s.do(http.MethodPost, "/api/v1/identity", body)
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	var resp httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("validation_failed", resp.Error)
	s.GreaterOrEqual(len(resp.Fields), 2)
}

func (s *HandlerSuite) TestListFiltersAndCounts() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	rec := s.do(http.MethodGet, "/api/v1/identity?subject="+handlerSubject, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		Records []*models.IdentityRecord `json:"records"`
		Count   int                      `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Count)
	s.Require().Len(resp.Records, 1)
	s.Equal("trip-kerala-01", resp.Records[0].TripID.String())
}

func (s *HandlerSuite) TestListEmptyIsNotNull() {
	rec := s.do(http.MethodGet, "/api/v1/identity", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"records":[]`)
}

func (s *HandlerSuite) TestGetReturnsExactTripRecord() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	rec := s.do(http.MethodGet, "/api/v1/identity/"+handlerSubject+"/trips/trip-kerala-01", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var record models.IdentityRecord
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &record))
	s.Equal(handlerSubject, record.SubjectID.String())
	s.Equal("trip-kerala-01", record.TripID.String())
	s.Equal(int64(1), record.Version)
}

func (s *HandlerSuite) TestGetUnknownTripIs404() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	rec := s.do(http.MethodGet, "/api/v1/identity/"+handlerSubject+"/trips/trip-goa-09", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestVerifyStoredRecordMatches() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	rec := s.do(http.MethodGet, "/api/v1/identity/"+handlerSubject+"/verify", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp models.VerifyResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Match)
	s.Require().NotNil(resp.Stored)
	s.Nil(resp.OnChain)
}

func (s *HandlerSuite) TestVerifyUnknownSubjectIs404() {
	rec := s.do(http.MethodGet, "/api/v1/identity/0x6666666666666666666666666666666666666666/verify", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestQRDefaultsToJSONEnvelope() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	rec := s.do(http.MethodGet, "/api/v1/identity/"+handlerSubject+"/qr", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var resp models.QRResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(handlerSubject, resp.Payload.SubjectID)
	s.NotEmpty(resp.PNG)
}

func (s *HandlerSuite) TestQRPNGFormatReturnsImage() {
	s.do(http.MethodPost, "/api/v1/identity", s.submitBody())

	rec := s.do(http.MethodGet, "/api/v1/identity/"+handlerSubject+"/qr?format=png&trip_id=trip-kerala-01", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("image/png", rec.Header().Get("Content-Type"))
	// PNG magic bytes.
	s.True(bytes.HasPrefix(rec.Body.Bytes(), []byte{0x89, 'P', 'N', 'G'}))
}

func TestMethodNotAllowed(t *testing.T) {
	st, err := store.NewFile(filepath.Join(t.TempDir(), "identities.json"), nil, nil)
	require.NoError(t, err)
	svc := service.NewService(st, "testnet", nil, slog.Default())
	h := handler.New(svc, qr.NewBuilder(st, nil), slog.Default())
	router := chi.NewRouter()
	h.Register(router)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/identity", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
