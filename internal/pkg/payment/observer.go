package payment

import (
	"context"

	"github.com/localbiz/bizhub/app/models"
)

// Observer is told about committed payment outcomes. Implementations must
// not block; they run on the request path after the database commit.
type Observer interface {
	TransactionCompleted(ctx context.Context, tx *models.Transaction)
	TransactionFailed(ctx context.Context, tx *models.Transaction)
	WebhookRecorded(ctx context.Context, event *models.WebhookEvent)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) TransactionCompleted(context.Context, *models.Transaction) {}
func (NopObserver) TransactionFailed(context.Context, *models.Transaction)    {}
func (NopObserver) WebhookRecorded(context.Context, *models.WebhookEvent)     {}
