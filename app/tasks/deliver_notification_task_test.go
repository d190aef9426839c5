package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/serpwatch/serp-watch/app/database"
)

type fakeDeliverer struct {
	err        error
	recipients []string
}

func (f *fakeDeliverer) Deliver(ctx context.Context, recipient, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.recipients = append(f.recipients, recipient)
	return nil
}

type fakeNotificationRepo struct {
	sent   []string
	failed map[string]string
}

func (f *fakeNotificationRepo) InsertNotification(n database.Notification) error {
	return nil
}

func (f *fakeNotificationRepo) MarkNotificationSent(id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeNotificationRepo) MarkNotificationFailed(id string, errMsg string) error {
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[id] = errMsg
	return nil
}

func (f *fakeNotificationRepo) GetProjectNotifications(projectID int64, limit int) ([]database.Notification, error) {
	return nil, nil
}

func testNotification() database.Notification {
	return database.Notification{
		ID:        "n-1",
		ProjectID: 1,
		UserID:    1,
		UserEmail: "a@example.com",
		Subject:   "subject",
		Body:      "body",
	}
}

func TestDeliverNotificationTask_Execute_MarksSent(t *testing.T) {
	deliverer := &fakeDeliverer{}
	repo := &fakeNotificationRepo{}
	task := NewDeliverNotificationTask(testNotification(), deliverer, repo)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(deliverer.recipients) != 1 || deliverer.recipients[0] != "a@example.com" {
		t.Errorf("Unexpected recipients: %v", deliverer.recipients)
	}
	if len(repo.sent) != 1 || repo.sent[0] != "n-1" {
		t.Errorf("Notification should be marked sent, got %v", repo.sent)
	}
	if len(repo.failed) != 0 {
		t.Errorf("Nothing should be marked failed, got %v", repo.failed)
	}
}

func TestDeliverNotificationTask_Execute_FailureWithRetriesLeft(t *testing.T) {
	deliverer := &fakeDeliverer{err: errors.New("connection refused")}
	repo := &fakeNotificationRepo{}
	task := NewDeliverNotificationTask(testNotification(), deliverer, repo)

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected delivery error")
	}

	// Retries remain, so the row stays pending for the next attempt.
	if len(repo.failed) != 0 {
		t.Errorf("Row should not be marked failed while retries remain, got %v", repo.failed)
	}
	if !task.CanRetry() {
		t.Error("Fresh delivery task should still have retries")
	}
}

func TestDeliverNotificationTask_Execute_FinalFailureMarksFailed(t *testing.T) {
	deliverer := &fakeDeliverer{err: errors.New("550 mailbox unavailable")}
	repo := &fakeNotificationRepo{}
	task := NewDeliverNotificationTask(testNotification(), deliverer, repo)

	// Exhaust the retry budget the way the worker does.
	for task.CanRetry() {
		task.IncrementRetryCount()
	}

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected delivery error")
	}

	if repo.failed["n-1"] == "" {
		t.Error("Final failure should mark the notification failed with the error message")
	}
	if len(repo.sent) != 0 {
		t.Errorf("Nothing should be marked sent, got %v", repo.sent)
	}
}
