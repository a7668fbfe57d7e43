package callback

import (
	"io"
	"log/slog"
	"net/http"

	"vcrelay/internal/platform/middleware"
	"vcrelay/internal/transport/http/shared"
)

// Handler is the HTTP face of the webhook endpoints. Issuance and
// presentation callbacks share one implementation; they are registered
// under both paths because the request service is configured with a
// per-flow callback URL.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds the webhook handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// ServeHTTP accepts one webhook delivery and acknowledges with an empty 200
// once the result is stored.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "callback body read failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.service.Handle(ctx, r.Header.Get(APIKeyHeader), body); err != nil {
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
