package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"docket/internal/objectstore"
	"docket/internal/objectstore/urlsigner"
)

type DeliveryHandlerSuite struct {
	suite.Suite
	objects *objectstore.MemoryStore
	grants  *urlsigner.Signer
	router  chi.Router
}

func TestDeliveryHandlerSuite(t *testing.T) {
	suite.Run(t, new(DeliveryHandlerSuite))
}

func (s *DeliveryHandlerSuite) SetupTest() {
	s.objects = objectstore.NewMemory()
	s.grants = urlsigner.New("test-url-key", "docket-test")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.objects, s.grants, logger, WithMaxUploadBytes(1<<20)).Register(s.router)
}

func (s *DeliveryHandlerSuite) signGrant(grant urlsigner.Grant, expiry time.Duration) string {
	token, err := s.grants.Sign(grant, time.Now(), expiry)
	s.Require().NoError(err)
	return token
}

func (s *DeliveryHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *DeliveryHandlerSuite) errorBody(w *httptest.ResponseRecorder) string {
	var resp map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error"]
}

func (s *DeliveryHandlerSuite) TestDownload() {
	data := []byte("%PDF-1.7 delivered fixture")
	key := "sources/11111111-1111-1111-1111-111111111111/abcd1234.pdf"
	s.Require().NoError(s.objects.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), "application/pdf"))

	token := s.signGrant(urlsigner.Grant{Key: key, Method: http.MethodGet, Filename: "annual-report.pdf"}, time.Minute)
	w := s.serve(httptest.NewRequest(http.MethodGet, "/objects/"+key+"?grant="+token, nil))

	s.Equal(http.StatusOK, w.Code)
	s.Equal(data, w.Body.Bytes())
	s.Equal("application/pdf", w.Header().Get("Content-Type"))
	s.Equal(`attachment; filename="annual-report.pdf"`, w.Header().Get("Content-Disposition"))
}

func (s *DeliveryHandlerSuite) TestDownloadRequiresGrant() {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/objects/staging/abc.pdf", nil))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("missing grant", s.errorBody(w))
}

func (s *DeliveryHandlerSuite) TestDownloadRejectsExpiredGrant() {
	key := "staging/abc.pdf"
	token, err := s.grants.Sign(urlsigner.Grant{Key: key, Method: http.MethodGet}, time.Now().Add(-2*time.Hour), time.Hour)
	s.Require().NoError(err)

	w := s.serve(httptest.NewRequest(http.MethodGet, "/objects/"+key+"?grant="+token, nil))
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("grant expired", s.errorBody(w))
}

func (s *DeliveryHandlerSuite) TestDownloadRejectsForeignGrant() {
	data := []byte("secret bytes")
	s.Require().NoError(s.objects.Put(context.Background(), "sources/a/1.pdf", bytes.NewReader(data), int64(len(data)), "application/pdf"))

	s.Run("grant for another key", func() {
		token := s.signGrant(urlsigner.Grant{Key: "sources/b/2.pdf", Method: http.MethodGet}, time.Minute)
		w := s.serve(httptest.NewRequest(http.MethodGet, "/objects/sources/a/1.pdf?grant="+token, nil))
		s.Equal(http.StatusForbidden, w.Code)
		s.Equal("grant does not cover this request", s.errorBody(w))
	})

	s.Run("upload grant on download route", func() {
		token := s.signGrant(urlsigner.Grant{Key: "sources/a/1.pdf", Method: http.MethodPut}, time.Minute)
		w := s.serve(httptest.NewRequest(http.MethodGet, "/objects/sources/a/1.pdf?grant="+token, nil))
		s.Equal(http.StatusForbidden, w.Code)
		s.Equal("grant does not cover this request", s.errorBody(w))
	})
}

func (s *DeliveryHandlerSuite) TestDownloadMissingObject() {
	key := "sources/a/gone.pdf"
	token := s.signGrant(urlsigner.Grant{Key: key, Method: http.MethodGet}, time.Minute)

	w := s.serve(httptest.NewRequest(http.MethodGet, "/objects/"+key+"?grant="+token, nil))
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("object not found", s.errorBody(w))
}

func (s *DeliveryHandlerSuite) TestUpload() {
	key := "staging/22222222-2222-2222-2222-222222222222.pdf"
	token := s.signGrant(urlsigner.Grant{Key: key, Method: http.MethodPut}, time.Minute)
	data := []byte("%PDF-1.7 staged upload")

	req := httptest.NewRequest(http.MethodPut, "/objects/"+key+"?grant="+token, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/pdf")
	w := s.serve(req)
	s.Equal(http.StatusOK, w.Code)

	body, info, err := s.objects.Get(context.Background(), key)
	s.Require().NoError(err)
	defer body.Close()
	stored, err := io.ReadAll(body)
	s.Require().NoError(err)
	s.Equal(data, stored)
	s.Equal("application/pdf", info.ContentType)
}

func (s *DeliveryHandlerSuite) TestUploadRejectsOversizeBody() {
	key := "staging/33333333-3333-3333-3333-333333333333.pdf"
	token := s.signGrant(urlsigner.Grant{Key: key, Method: http.MethodPut}, time.Minute)
	oversize := bytes.Repeat([]byte("x"), 1<<20+1)

	req := httptest.NewRequest(http.MethodPut, "/objects/"+key+"?grant="+token, bytes.NewReader(oversize))
	w := s.serve(req)
	s.Equal(http.StatusRequestEntityTooLarge, w.Code)
	s.Equal("upload exceeds size limit", s.errorBody(w))

	_, err := s.objects.Head(context.Background(), key)
	s.Error(err, "rejected upload must not be stored")
}
