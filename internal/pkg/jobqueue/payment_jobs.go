package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/localbiz/bizhub/app/models"
	"github.com/localbiz/bizhub/app/repository"
	"github.com/localbiz/bizhub/internal/pkg/auditarchive"
	"github.com/localbiz/bizhub/internal/pkg/mail"
	"github.com/localbiz/bizhub/internal/pkg/payment"
)

const enqueueTimeout = 2 * time.Second

// Enqueuer is the producer side of Queue.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

// WebhookArchiver copies a ledger row to long-term storage.
type WebhookArchiver interface {
	ArchiveWebhook(ctx context.Context, event *models.WebhookEvent) (*auditarchive.UploadResult, error)
}

// PaymentObserver turns committed payment outcomes into background jobs.
// Enqueue failures are logged and dropped; the payment itself is already
// committed.
type PaymentObserver struct {
	queue           Enqueuer
	archiveWebhooks bool
}

var _ payment.Observer = (*PaymentObserver)(nil)

func NewPaymentObserver(queue Enqueuer, archiveWebhooks bool) *PaymentObserver {
	return &PaymentObserver{queue: queue, archiveWebhooks: archiveWebhooks}
}

func (o *PaymentObserver) TransactionCompleted(ctx context.Context, tx *models.Transaction) {
	o.enqueue(ctx, JobTypePaymentNotification, PaymentNotificationPayload{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Kind:          NotifyCompleted,
	}.ToMap())
}

func (o *PaymentObserver) TransactionFailed(ctx context.Context, tx *models.Transaction) {
	o.enqueue(ctx, JobTypePaymentNotification, PaymentNotificationPayload{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Kind:          NotifyFailed,
	}.ToMap())
}

func (o *PaymentObserver) WebhookRecorded(ctx context.Context, event *models.WebhookEvent) {
	if !o.archiveWebhooks {
		return
	}
	o.enqueue(ctx, JobTypeWebhookArchive, WebhookArchivePayload{
		EventID: event.ID,
		Gateway: event.Gateway,
	}.ToMap())
}

func (o *PaymentObserver) enqueue(ctx context.Context, jobType JobType, payload map[string]interface{}) {
	if o == nil || o.queue == nil {
		return
	}
	// The job must be queued even when the request that produced it is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if _, err := o.queue.EnqueueJob(ctx, jobType, payload); err != nil {
		log.Errorf("[JobQueue] Failed to enqueue %s: %v", jobType, err)
	}
}

// RegisterPaymentProcessors wires the payment job types. A nil archiver
// leaves webhook archiving unregistered.
func RegisterPaymentProcessors(q *Queue, repos *repository.Repositories, mailer mail.Mailer, archiver WebhookArchiver) {
	q.RegisterProcessor(JobTypePaymentNotification, NewNotificationProcessor(repos, mailer))
	if archiver != nil {
		q.RegisterProcessor(JobTypeWebhookArchive, NewWebhookArchiveProcessor(repos, archiver))
	}
}

// NewNotificationProcessor emails the payer about a completed or failed transaction.
func NewNotificationProcessor(repos *repository.Repositories, mailer mail.Mailer) Processor {
	return func(ctx context.Context, job *Job) error {
		p, err := DecodePayload[PaymentNotificationPayload](job.Payload)
		if err != nil {
			return Permanent(fmt.Errorf("invalid notification payload: %w", err))
		}
		r := repos.WithContext(ctx)

		tx, err := r.Transaction.GetByID(p.TransactionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Permanent(fmt.Errorf("transaction %d not found", p.TransactionID))
			}
			return err
		}
		user, err := r.User.GetByID(tx.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Permanent(fmt.Errorf("user %d not found", tx.UserID))
			}
			return err
		}
		if user.Email == "" {
			log.Warnf("[JobQueue] User %d has no email, skipping notification for %s", user.ID, tx.Reference)
			return nil
		}

		subject, body := notificationMessage(p.Kind, user, tx)
		if err := mailer.Send(user.Email, subject, body); err != nil {
			if errors.Is(err, mail.ErrNotConfigured) {
				log.Debugf("[JobQueue] SMTP not configured, dropping notification for %s", tx.Reference)
				return nil
			}
			return err
		}
		return nil
	}
}

func notificationMessage(kind string, user *models.User, tx *models.Transaction) (string, string) {
	amount := fmt.Sprintf("%s %s", tx.Amount.StringFixed(2), tx.Currency)
	name := html.EscapeString(user.Name)
	ref := html.EscapeString(tx.Reference)
	if kind == NotifyFailed {
		return "Payment failed: " + tx.Reference,
			fmt.Sprintf("<p>Hello %s,</p><p>Your payment of %s (reference %s) could not be completed. No funds were taken for this attempt.</p>", name, amount, ref)
	}
	return "Payment received: " + tx.Reference,
		fmt.Sprintf("<p>Hello %s,</p><p>We received your payment of %s (reference %s). Thank you.</p>", name, amount, ref)
}

// NewWebhookArchiveProcessor copies a webhook ledger row to the audit archive.
func NewWebhookArchiveProcessor(repos *repository.Repositories, archiver WebhookArchiver) Processor {
	return func(ctx context.Context, job *Job) error {
		p, err := DecodePayload[WebhookArchivePayload](job.Payload)
		if err != nil {
			return Permanent(fmt.Errorf("invalid archive payload: %w", err))
		}
		event, err := repos.WithContext(ctx).WebhookEvent.GetByID(p.EventID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return Permanent(fmt.Errorf("webhook event %d not found", p.EventID))
			}
			return err
		}
		_, err = archiver.ArchiveWebhook(ctx, event)
		return err
	}
}
