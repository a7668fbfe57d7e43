// Package callback receives the request service's asynchronous webhooks,
// gates them on the shared secret, and folds their result into the
// correlation store for the browser's polling loop to pick up.
package callback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vcrelay/internal/audit"
	"vcrelay/internal/correlation/models"
	"vcrelay/internal/correlation/store"
	"vcrelay/internal/platform/metrics"
	derrors "vcrelay/pkg/domain-errors"
	"vcrelay/pkg/platform/sentinel"
)

// AuditPublisher records terminal callback outcomes. Nil disables auditing.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service applies gated callback events to the correlation store.
type Service struct {
	store   store.Store
	gate    *Gate
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditPublisher
}

// New builds the callback service. audit may be nil.
func New(st store.Store, gate *Gate, logger *slog.Logger, m *metrics.Metrics, auditPub AuditPublisher) *Service {
	return &Service{
		store:   st,
		gate:    gate,
		logger:  logger,
		metrics: m,
		audit:   auditPub,
	}
}

// Handle processes one webhook delivery. The error's domain code carries the
// HTTP status the handler must relay; on any error the store is untouched.
func (s *Service) Handle(ctx context.Context, presentedKey string, body []byte) error {
	if !s.gate.Authorize(presentedKey) {
		s.metrics.IncCallbackAuthFailure()
		s.logger.WarnContext(ctx, "callback rejected: api-key mismatch")
		return derrors.New(derrors.CodeUnauthorized, "api-key wrong or missing")
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return derrors.New(derrors.CodeBadRequest, "invalid callback body")
	}

	result, err := s.resultFor(&event, body)
	if err != nil {
		return err
	}

	err = s.store.Update(ctx, event.State, func(record *models.Record) error {
		// Idempotent overwrite: a redelivered terminal callback applies
		// the same result again instead of being rejected. Photo survives
		// so a selfie taken earlier in the session stays usable.
		record.Status = result.Status
		record.Message = result.Message
		record.Payload = result.Payload
		record.Subject = result.Subject
		record.JTI = result.JTI
		record.IAT = result.IAT
		record.EXP = result.EXP
		record.PresentationResponse = result.PresentationResponse
		return nil
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return derrors.New(derrors.CodeBadRequest, fmt.Sprintf("Unknown state: %s", event.State))
	}
	if err != nil {
		return fmt.Errorf("apply callback: %w", err)
	}

	s.metrics.IncCallback(string(result.Status))
	s.logger.InfoContext(ctx, "callback applied",
		"state", event.State,
		"status", result.Status,
	)

	if s.audit != nil && result.Status.Terminal() {
		auditErr := s.audit.Emit(ctx, audit.Event{
			State:      event.State,
			Status:     string(result.Status),
			Subject:    result.Subject,
			JTI:        result.JTI,
			ReceivedAt: time.Now(),
		})
		if auditErr != nil {
			s.logger.WarnContext(ctx, "audit emit failed",
				"state", event.State,
				"error", auditErr,
			)
		}
	}
	return nil
}

// resultFor is the closed dispatch over the known status tags. Unrecognized
// tags are rejected so a platform-side vocabulary change cannot silently
// corrupt records.
func (s *Service) resultFor(event *Event, body []byte) (*models.Record, error) {
	switch models.Status(event.Status()) {
	case models.StatusRequestRetrieved:
		return &models.Record{
			Status:  models.StatusRequestRetrieved,
			Message: "QR Code is scanned. Waiting for validation...",
		}, nil

	case models.StatusIssuanceSuccessful:
		return &models.Record{
			Status:  models.StatusIssuanceSuccessful,
			Message: "Credential successfully issued",
		}, nil

	case models.StatusIssuanceError:
		return errorRecord(models.StatusIssuanceError, event.Error), nil

	case models.StatusPresentationError:
		return errorRecord(models.StatusPresentationError, event.Error), nil

	case models.StatusPresentationVerified:
		record := &models.Record{
			Status:  models.StatusPresentationVerified,
			Message: "Presentation received",
			Payload: event.VerifiedCredentialsData,
			Subject: event.Subject,
		}
		var full map[string]any
		if err := json.Unmarshal(body, &full); err == nil {
			record.PresentationResponse = full
		}
		details, err := DecodeReceipt(event.Receipt)
		if err != nil {
			s.logger.Warn("receipt decode failed", "state", event.State, "error", err)
		}
		if details != nil {
			record.JTI = details.JTI
			record.IAT = details.IAT
			record.EXP = details.EXP
		}
		return record, nil

	default:
		return nil, derrors.New(derrors.CodeBadRequest,
			fmt.Sprintf("Unsupported requestStatus: %s", event.Status()))
	}
}

func errorRecord(status models.Status, detail *EventError) *models.Record {
	record := &models.Record{Status: status}
	if detail != nil {
		record.Message = detail.Message
		record.Payload = detail.Code
	}
	return record
}
