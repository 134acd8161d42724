package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "docket/pkg/domain-errors"
	"docket/pkg/requestcontext"
)

type FetcherSuite struct {
	suite.Suite
	fetcher *HTTPFetcher
	now     time.Time
}

func (s *FetcherSuite) SetupTest() {
	s.fetcher = NewHTTPFetcher()
	s.now = time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
}

func TestFetcherSuite(t *testing.T) {
	suite.Run(t, new(FetcherSuite))
}

func (s *FetcherSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *FetcherSuite) TestFetch() {
	var gotUserAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html>minutes</html>")
	}))
	defer srv.Close()

	doc, err := s.fetcher.Fetch(s.ctx(), srv.URL, 1<<20)
	s.Require().NoError(err)
	s.Equal("docket-snapshot/1.0", gotUserAgent)
	s.Equal([]byte("<html>minutes</html>"), doc.Body)
	s.Equal("text/html; charset=utf-8", doc.ContentType)
	s.True(doc.RetrievedAt.Equal(s.now))
}

func (s *FetcherSuite) TestFetchRejectsNonSuccessStatus() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := s.fetcher.Fetch(s.ctx(), srv.URL, 1<<20)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
	s.ErrorContains(err, "status 404")
}

func (s *FetcherSuite) TestFetchRejectsDeclaredLength() {
	// A single buffered write lets the server declare Content-Length, so the
	// bound trips before the body is read.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(make([]byte, 2000))
	}))
	defer srv.Close()

	_, err := s.fetcher.Fetch(s.ctx(), srv.URL, 1024)
	s.True(dErrors.HasCode(err, dErrors.CodeFileTooLarge), "got %v", err)
}

func (s *FetcherSuite) TestFetchRejectsOversizeChunkedBody() {
	// Flushing mid-body forces chunked encoding with no declared length; the
	// limit must still hold against the bytes actually read.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		w.Write(make([]byte, 600))
		flusher.Flush()
		w.Write(make([]byte, 600))
	}))
	defer srv.Close()

	_, err := s.fetcher.Fetch(s.ctx(), srv.URL, 1024)
	s.True(dErrors.HasCode(err, dErrors.CodeFileTooLarge), "got %v", err)
	s.ErrorContains(err, "exceeds limit 1024")
}

func (s *FetcherSuite) TestFetchFollowsBoundedRedirects() {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/hop1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hop2", http.StatusFound)
	})
	mux.HandleFunc("/hop2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "arrived")
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})

	doc, err := s.fetcher.Fetch(s.ctx(), srv.URL+"/hop1", 1<<20)
	s.Require().NoError(err)
	s.Equal([]byte("arrived"), doc.Body)

	_, err = s.fetcher.Fetch(s.ctx(), srv.URL+"/loop", 1<<20)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable), "got %v", err)
}

func (s *FetcherSuite) TestFetchRejectsMalformedURL() {
	_, err := s.fetcher.Fetch(s.ctx(), "http://\x00invalid", 1<<20)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "got %v", err)
}
