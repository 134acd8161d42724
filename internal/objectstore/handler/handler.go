// Package handler is the delivery edge for grant-backed object access on the
// memory and file backends. Presigned URLs minted by those backends point at
// /objects/{key}?grant=...; this handler verifies the grant and moves the
// bytes. The S3 backend presigns against S3 directly and never routes here.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docket/internal/objectstore"
	"docket/internal/objectstore/urlsigner"
	"docket/internal/platform/middleware"
	"docket/pkg/platform/sentinel"
)

// DefaultMaxUploadBytes bounds PUT bodies accepted through upload grants.
// Deployments align it with the verifier's upload limit so oversize uploads
// fail at the edge instead of at finalize.
const DefaultMaxUploadBytes = 25 << 20

// Handler serves grant-backed object downloads and staged uploads.
type Handler struct {
	logger         *slog.Logger
	objects        objectstore.Store
	grants         *urlsigner.Signer
	maxUploadBytes int64
}

type Option func(h *Handler)

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// New creates a delivery Handler.
func New(objects objectstore.Store, grants *urlsigner.Signer, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		objects:        objects,
		grants:         grants,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the delivery routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/objects", func(r chi.Router) {
		r.Get("/*", h.handleDownload)
		r.Put("/*", h.handleUpload)
	})
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, grant, ok := h.verifyGrant(w, r, http.MethodGet)
	if !ok {
		return
	}

	body, info, err := h.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "object not found")
			return
		}
		h.logger.ErrorContext(ctx, "failed to read object",
			"request_id", middleware.GetRequestID(ctx),
			"key", key,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "failed to read object")
		return
	}
	defer body.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	if grant.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", grant.Filename))
	}
	if _, err := io.Copy(w, body); err != nil {
		// Headers are gone; all that is left is the log line.
		h.logger.WarnContext(ctx, "object download interrupted",
			"request_id", middleware.GetRequestID(ctx),
			"key", key,
			"error", err,
		)
	}
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, _, ok := h.verifyGrant(w, r, http.MethodPut)
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	body := http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := h.objects.Put(ctx, key, body, r.ContentLength, r.Header.Get("Content-Type")); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		h.logger.ErrorContext(ctx, "failed to store upload",
			"request_id", middleware.GetRequestID(ctx),
			"key", key,
			"error", err,
		)
		writeJSONError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// verifyGrant checks the grant token against the requested key and method.
// On failure it writes the response and returns ok=false.
func (h *Handler) verifyGrant(w http.ResponseWriter, r *http.Request, method string) (string, urlsigner.Grant, bool) {
	ctx := r.Context()
	key := chi.URLParam(r, "*")
	token := r.URL.Query().Get("grant")
	if token == "" {
		writeJSONError(w, http.StatusForbidden, "missing grant")
		return "", urlsigner.Grant{}, false
	}
	grant, err := h.grants.Verify(token)
	if err != nil {
		msg := "invalid grant"
		if errors.Is(err, sentinel.ErrExpired) {
			msg = "grant expired"
		}
		h.logger.WarnContext(ctx, "rejected object grant",
			"request_id", middleware.GetRequestID(ctx),
			"key", key,
			"error", err,
		)
		writeJSONError(w, http.StatusForbidden, msg)
		return "", urlsigner.Grant{}, false
	}
	if grant.Key != key || grant.Method != method {
		h.logger.WarnContext(ctx, "grant does not cover request",
			"request_id", middleware.GetRequestID(ctx),
			"key", key,
			"grant_key", grant.Key,
			"grant_method", grant.Method,
		)
		writeJSONError(w, http.StatusForbidden, "grant does not cover this request")
		return "", urlsigner.Grant{}, false
	}
	return key, grant, true
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
