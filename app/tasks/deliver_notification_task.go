package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/notify"
)

// DeliverNotificationTask sends one stored notification to one recipient.
// A transient SMTP failure is retried with backoff before the row is
// marked failed.
type DeliverNotificationTask struct {
	Task
	Notification     database.Notification
	deliverer        notify.Deliverer
	notificationRepo database.NotificationRepository
}

func NewDeliverNotificationTask(n database.Notification, deliverer notify.Deliverer,
	notificationRepo database.NotificationRepository) *DeliverNotificationTask {
	return &DeliverNotificationTask{
		Task:             NewTask(TaskTypeDeliverNotification, ""),
		Notification:     n,
		deliverer:        deliverer,
		notificationRepo: notificationRepo,
	}
}

func (t *DeliverNotificationTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := t.deliverer.Deliver(ctx, t.Notification.UserEmail, t.Notification.Subject, t.Notification.Body)
	if err != nil {
		if !t.CanRetry() {
			if markErr := t.notificationRepo.MarkNotificationFailed(t.Notification.ID, err.Error()); markErr != nil {
				slog.Error("Failed to mark notification failed", "id", t.Notification.ID, "error", markErr)
			}
		}
		return fmt.Errorf("failed to deliver notification %s: %w", t.Notification.ID, err)
	}

	if err := t.notificationRepo.MarkNotificationSent(t.Notification.ID); err != nil {
		slog.Error("Failed to mark notification sent", "id", t.Notification.ID, "error", err)
	}

	slog.Info("Task completed",
		"type", "DeliverNotification",
		"id", t.Notification.ID,
		"recipient", t.Notification.UserEmail,
		"duration", t.GetDuration())

	return nil
}
