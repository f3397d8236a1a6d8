package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/gateway"
)

// Ledger is the idempotent store of received webhook events.
type Ledger struct {
	repos *repository.Repositories
	clock Clock
}

func NewLedger(repos *repository.Repositories, clock Clock) *Ledger {
	return &Ledger{repos: repos, clock: clock}
}

// RecordIfNew stores the event unless (gateway, eventID) is already known.
// alreadyProcessed is true only when a stored duplicate finished processing;
// a failed duplicate has its retry_count bumped and should be run again.
func (l *Ledger) RecordIfNew(
	ctx context.Context,
	gatewaySlug,
	eventID,
	eventType,
	reference string,
	payload []byte,
	signatureValid bool,
) (*models.WebhookEvent, bool, error) {
	slug := strings.ToLower(strings.TrimSpace(gatewaySlug))
	if slug == "" {
		return nil, false, errors.New("gateway is required")
	}
	id := strings.TrimSpace(eventID)
	if id == "" {
		id = gateway.FallbackEventID(payload)
	}

	repo := l.repos.WithContext(ctx).WebhookEvent
	created, stored, err := repo.CreateIfNotExists(&models.WebhookEvent{
		Gateway:        slug,
		EventID:        id,
		EventType:      strings.TrimSpace(eventType),
		Reference:      strings.TrimSpace(reference),
		Payload:        string(payload),
		SignatureValid: signatureValid,
		Status:         models.WebhookStatusPending,
	})
	if err != nil {
		return nil, false, fmt.Errorf("record webhook event: %w", err)
	}
	if created {
		return stored, false, nil
	}

	switch stored.Status {
	case models.WebhookStatusProcessed:
		return stored, true, nil
	case models.WebhookStatusFailed:
		if err := repo.IncrementRetry(stored.ID); err != nil {
			return nil, false, fmt.Errorf("bump webhook retry: %w", err)
		}
		stored.RetryCount++
	}
	return stored, false, nil
}

func (l *Ledger) MarkProcessed(ctx context.Context, id uint) error {
	return l.repos.WithContext(ctx).WebhookEvent.MarkProcessed(id, l.clock.Now())
}

func (l *Ledger) MarkFailed(ctx context.Context, id uint, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return l.repos.WithContext(ctx).WebhookEvent.MarkFailed(id, msg)
}

// Get loads a stored event for a manual retry.
func (l *Ledger) Get(ctx context.Context, id uint) (*models.WebhookEvent, error) {
	e, err := l.repos.WithContext(ctx).WebhookEvent.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	return e, err
}

func (l *Ledger) ListFailed(ctx context.Context, limit int) ([]models.WebhookEvent, error) {
	return l.repos.WithContext(ctx).WebhookEvent.ListFailed(limit)
}

// IncrementRetry counts a manual re-run of a stored event.
func (l *Ledger) IncrementRetry(ctx context.Context, id uint) error {
	return l.repos.WithContext(ctx).WebhookEvent.IncrementRetry(id)
}
