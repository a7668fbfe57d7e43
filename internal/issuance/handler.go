package issuance

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcrelay/internal/entra"
	"vcrelay/internal/platform/middleware"
	"vcrelay/internal/transport/http/shared"
	derrors "vcrelay/pkg/domain-errors"
)

// Handler exposes the issuer endpoints.
type Handler struct {
	service  *Service
	manifest *entra.Manifest
	logger   *slog.Logger
}

// NewHandler builds the issuer HTTP handler. manifest may be nil when the
// manifest could not be fetched at startup.
func NewHandler(service *Service, manifest *entra.Manifest, logger *slog.Logger) *Handler {
	return &Handler{service: service, manifest: manifest, logger: logger}
}

// Register mounts the issuer routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/issuer/issuance-request", h.handleCreateRequest)
	r.Get("/api/issuer/issuance-response", h.handleStatus)
	r.Get("/api/issuer/get-manifest", h.handleGetManifest)
	r.Post("/api/issuer/selfie", h.handleSelfie)
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp, err := h.service.CreateRequest(ctx, RequestInput{
		ID:        r.URL.Query().Get("id"),
		Host:      r.Host,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "issuance request failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Status(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	if h.manifest == nil {
		shared.WriteError(w, derrors.New(derrors.CodeNotFound, "credential manifest not loaded"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, h.manifest.Claims)
}

func (h *Handler) handleSelfie(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID    string `json:"id"`
		Photo string `json:"photo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.service.StoreSelfie(r.Context(), body.ID, body.Photo); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
