// internal/notify/notify.go
package notify

import (
	"context"
	stderrors "errors"
	"fmt"

	awsclient "loan-workers/internal/common/aws"
	"loan-workers/internal/common/config"
	"loan-workers/internal/common/logger"
	"loan-workers/internal/common/metrics"
	"loan-workers/internal/models"
	"loan-workers/internal/store"
)

const emailSubject = "Loan application update"

// Create persists an unread notification through s, which is normally the
// transactional view of the operation that caused it.
func Create(ctx context.Context, s store.Store, n models.Notification) (*models.Notification, error) {
	n.ID = ""
	n.Read = false
	created, err := store.CreateAs(ctx, s, store.KindNotification, &n)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return created, nil
}

// Dispatcher pushes committed notifications to SNS and to the recipient's
// email. Either channel may be disabled.
type Dispatcher struct {
	store     store.Store
	sns       awsclient.SNSService
	ses       awsclient.SESService
	topicARN  string
	fromEmail string
	logger    logger.Logger
}

// NewDispatcher wires the enabled channels of cfg. Pass nil clients for disabled channels.
func NewDispatcher(s store.Store, snsClient awsclient.SNSService, sesClient awsclient.SESService, cfg config.NotificationConfig, log logger.Logger) *Dispatcher {
	d := &Dispatcher{
		store:  s,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
	if cfg.SNS.Enabled && snsClient != nil {
		d.sns = snsClient
		d.topicARN = cfg.SNS.TopicARN
	}
	if cfg.Email.Enabled && sesClient != nil {
		d.ses = sesClient
		d.fromEmail = cfg.Email.FromEmail
	}
	return d
}

// Dispatch delivers every notification on each enabled channel. Failures are
// logged and returned joined; stored notifications are never rolled back.
func (d *Dispatcher) Dispatch(ctx context.Context, notes []models.Notification) error {
	if d == nil || (d.sns == nil && d.ses == nil) {
		return nil
	}
	var errs []error
	for _, n := range notes {
		if err := d.publish(ctx, n); err != nil {
			errs = append(errs, err)
		}
		if err := d.email(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (d *Dispatcher) publish(ctx context.Context, n models.Notification) error {
	if d.sns == nil {
		return nil
	}
	attrs := map[string]string{"recipient": n.For}
	if n.TaskRef != "" {
		attrs["taskRef"] = n.TaskRef
	}
	if _, err := d.sns.Publish(ctx, awsclient.TopicMessage(d.topicARN, n.Message, attrs)); err != nil {
		metrics.SideEffectFailures.WithLabelValues("sns").Inc()
		d.logger.Error("sns publish failed", map[string]interface{}{"notification": n.ID, "error": err})
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

func (d *Dispatcher) email(ctx context.Context, n models.Notification) error {
	if d.ses == nil {
		return nil
	}
	account, err := store.GetAs[models.Account](ctx, d.store, store.KindAccount, store.Filter{"user": n.For})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve recipient %s: %w", n.For, err)
	}
	if account.Email == "" {
		d.logger.Debug("recipient has no email", map[string]interface{}{"user": n.For})
		return nil
	}
	if _, err := d.ses.SendEmail(ctx, awsclient.PlainEmail(d.fromEmail, account.Email, emailSubject, n.Message)); err != nil {
		metrics.SideEffectFailures.WithLabelValues("email").Inc()
		d.logger.Error("email send failed", map[string]interface{}{"notification": n.ID, "error": err})
		return fmt.Errorf("email notification %s: %w", n.ID, err)
	}
	return nil
}
