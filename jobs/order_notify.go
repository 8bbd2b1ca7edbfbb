package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/bigelephant/storefront/internal/jobs"
	"github.com/bigelephant/storefront/internal/orders"
)

// Notification is a rendered customer message.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// RecipientLookup resolves the email address of a customer.
type RecipientLookup interface {
	EmailFor(ctx context.Context, userID int64) (string, error)
}

// ErrRecipientNotFound is returned when the customer no longer exists.
var ErrRecipientNotFound = errors.New("jobs: recipient not found")

// LogNotifier writes notifications to the structured log. It stands in for a mail relay.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n.
func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "customer notification",
		slog.String("to", n.To),
		slog.String("subject", n.Subject),
		slog.String("body", n.Body),
	)
	return nil
}

// PGRecipients looks customers up in the users table.
type PGRecipients struct {
	Pool *pgxpool.Pool
}

// EmailFor returns the customer's email address.
func (p PGRecipients) EmailFor(ctx context.Context, userID int64) (string, error) {
	var email string
	err := p.Pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrRecipientNotFound
	}
	return email, err
}

// OrderNotifyJob turns order events into customer notifications.
type OrderNotifyJob struct {
	Recipients RecipientLookup
	Notifier   Notifier
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewOrderNotifyJob wires dependencies for the notification handlers.
func NewOrderNotifyJob(recipients RecipientLookup, notifier Notifier, logger *slog.Logger, metrics *jobmetrics.Metrics) *OrderNotifyJob {
	return &OrderNotifyJob{Recipients: recipients, Notifier: notifier, Logger: logger, Metrics: metrics}
}

// HandlePlaced processes order:placed tasks.
func (j *OrderNotifyJob) HandlePlaced(ctx context.Context, t *asynq.Task) error {
	var evt orders.PlacedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil || evt.OrderID <= 0 {
		return asynq.SkipRetry
	}
	return j.deliver(ctx, TaskOrderPlaced, evt.UserID, Notification{
		Subject: fmt.Sprintf("Order #%d received", evt.OrderID),
		Body:    fmt.Sprintf("We received your order #%d with %d item(s), total %s.", evt.OrderID, evt.Items, evt.Total.StringFixed(2)),
	})
}

// HandleStatusChanged processes order:status_changed tasks.
func (j *OrderNotifyJob) HandleStatusChanged(ctx context.Context, t *asynq.Task) error {
	var evt orders.StatusChangedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil || evt.OrderID <= 0 {
		return asynq.SkipRetry
	}
	body := fmt.Sprintf("Your order #%d is now %s.", evt.OrderID, evt.To)
	if evt.Restocked {
		body += " The reserved items were released."
	}
	return j.deliver(ctx, TaskOrderStatusChanged, evt.UserID, Notification{
		Subject: fmt.Sprintf("Order #%d: %s", evt.OrderID, evt.To),
		Body:    body,
	})
}

func (j *OrderNotifyJob) deliver(ctx context.Context, kind string, userID int64, n Notification) (resultErr error) {
	if j == nil || j.Recipients == nil || j.Notifier == nil {
		return errors.New("order notify: handler not configured")
	}
	tracker := j.Metrics.Track(kind)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	to, err := j.Recipients.EmailFor(ctx, userID)
	if errors.Is(err, ErrRecipientNotFound) {
		j.logger().Warn("notification recipient missing", slog.String("kind", kind), slog.Int64("user_id", userID))
		return fmt.Errorf("user %d: %w", userID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	n.To = to
	if err := j.Notifier.Notify(ctx, n); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	j.Metrics.AddNotification(kind)
	return nil
}

func (j *OrderNotifyJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
