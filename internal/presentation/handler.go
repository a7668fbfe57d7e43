package presentation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcrelay/internal/platform/middleware"
	"vcrelay/internal/transport/http/shared"
	derrors "vcrelay/pkg/domain-errors"
)

// Handler exposes the verifier endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds the verifier HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the verifier routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/verifier/presentation-request", h.handleCreateRequest)
	r.Get("/api/verifier/presentation-response", h.handleStatus)
	r.Post("/api/verifier/presentation-response-b2c", h.handleB2C)
	r.Get("/api/verifier/get-presentation-details", h.handleDetails)
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	faceCheck := r.URL.Query().Get("faceCheck")
	resp, err := h.service.CreateRequest(ctx, RequestInput{
		ID:        r.URL.Query().Get("id"),
		Host:      r.Host,
		FaceCheck: faceCheck == "1" || faceCheck == "true",
	})
	if err != nil {
		h.logger.WarnContext(ctx, "presentation request failed",
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

// handleB2C serves the federation bridge: one POST with the correlation id
// returns the verified claims exactly once, or a 409 envelope the B2C
// policy understands when nothing was presented yet.
func (h *Handler) handleB2C(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, derrors.New(derrors.CodeBadRequest, "invalid request body"))
		return
	}
	claims, err := h.service.VerifiedClaims(r.Context(), body.ID)
	if errors.Is(err, ErrNotVerified) {
		shared.WriteJSON(w, http.StatusConflict, map[string]any{
			"version":     "1.0.0",
			"status":      400,
			"userMessage": "Verifiable Credentials not presented",
		})
		return
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, claims)
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.service.Details())
}
