package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dErrors "docket/pkg/domain-errors"
	"docket/pkg/requestcontext"
)

const (
	fetchTimeout  = 30 * time.Second
	fetchRedirects = 3
	fetchUserAgent = "docket-snapshot/1.0"
)

// FetchedDocument is a snapshot fetched from an origin URL.
type FetchedDocument struct {
	Body        []byte
	ContentType string
	RetrievedAt time.Time
}

// SnapshotFetcher retrieves a document under a byte bound. Implementations
// must enforce the bound against both the declared length and the actual
// bytes read.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, rawURL string, maxBytes int64) (*FetchedDocument, error)
}

// HTTPFetcher fetches snapshots over HTTP with a wall-clock timeout and a
// redirect cap.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= fetchRedirects {
					return fmt.Errorf("stopped after %d redirects", fetchRedirects)
				}
				return nil
			},
		},
	}
}

// Fetch retrieves rawURL. The declared Content-Length is rejected before the
// body is read; the actual byte count is checked again afterwards because a
// declared header is untrusted.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (*FetchedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid snapshot URL")
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "snapshot fetch failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("snapshot fetch returned status %d", resp.StatusCode))
	}
	if resp.ContentLength > maxBytes {
		return nil, dErrors.New(dErrors.CodeFileTooLarge, fmt.Sprintf("declared length %d exceeds limit %d", resp.ContentLength, maxBytes))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "read snapshot body")
	}
	if int64(len(body)) > maxBytes {
		return nil, dErrors.New(dErrors.CodeFileTooLarge, fmt.Sprintf("snapshot exceeds limit %d", maxBytes))
	}

	return &FetchedDocument{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		RetrievedAt: requestcontext.Now(ctx),
	}, nil
}
