// Package handler exposes the identity registry over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"yatri/internal/identity/models"
	dErrors "yatri/pkg/domain-errors"
	"yatri/pkg/platform/httputil"
	"yatri/pkg/requestcontext"
)

// Service defines the registry operations the transport needs.
type Service interface {
	Submit(ctx context.Context, req *models.SubmitIdentityRequest) (*models.SubmitIdentityResponse, error)
	Get(ctx context.Context, subject, trip string) (*models.IdentityRecord, error)
	List(ctx context.Context, subject string) ([]*models.IdentityRecord, error)
	Verify(ctx context.Context, subject string) (*models.VerifyResponse, error)
}

// QRBuilder renders scannable payloads for stored records.
type QRBuilder interface {
	Build(ctx context.Context, subject, trip string) (*models.QRResponse, error)
}

// Handler handles identity registry endpoints.
type Handler struct {
	service Service
	qr      QRBuilder
	logger  *slog.Logger
}

// New creates a new identity Handler.
func New(service Service, qr QRBuilder, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		qr:      qr,
		logger:  logger,
	}
}

// Register registers the identity routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/v1/identity", h.handleSubmit)
	r.Get("/api/v1/identity", h.handleList)
	r.Get("/api/v1/identity/{subject}/trips/{trip}", h.handleGet)
	r.Get("/api/v1/identity/{subject}/verify", h.handleVerify)
	r.Get("/api/v1/identity/{subject}/qr", h.handleQR)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req models.SubmitIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode identity submission",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.service.Submit(ctx, &req)
	if err != nil {
		h.logger.WarnContext(ctx, "identity submission rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if resp.Version == 1 {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.service.List(ctx, r.URL.Query().Get("subject"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*models.IdentityRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := h.service.Get(ctx, chi.URLParam(r, "subject"), chi.URLParam(r, "trip"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.Verify(ctx, chi.URLParam(r, "subject"))
	if err != nil {
		h.logger.WarnContext(ctx, "verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleQR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.qr.Build(ctx, chi.URLParam(r, "subject"), r.URL.Query().Get("trip_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(resp.PNG); err != nil {
			h.logger.WarnContext(ctx, "failed to write qr png", "error", err)
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
