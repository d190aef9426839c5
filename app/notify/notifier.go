package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/serpwatch/serp-watch/app/database"
	"github.com/serpwatch/serp-watch/app/ranking"
)

// Deliverer sends one rendered message to one recipient.
type Deliverer interface {
	Deliver(ctx context.Context, recipient, subject, body string) error
}

// Service fans a change event or weekly summary out to every user of the
// project: one stored notification row per recipient, handed to the
// dispatcher for asynchronous delivery. A failure for one recipient never
// blocks the others.
type Service struct {
	userRepo         database.UserRepository
	notificationRepo database.NotificationRepository
	dispatch         func(n database.Notification)
}

var _ ranking.Notifier = (*Service)(nil)

// NewService creates the notifier. dispatch hands a stored notification to
// the delivery queue and must not block.
func NewService(userRepo database.UserRepository, notificationRepo database.NotificationRepository,
	dispatch func(n database.Notification)) *Service {
	return &Service{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		dispatch:         dispatch,
	}
}

func (s *Service) NotifyChange(ctx context.Context, event ranking.ChangeEvent) error {
	subject, body := renderChange(event)
	return s.fanOut(ctx, event.ProjectID, string(event.Category), subject, body)
}

func (s *Service) NotifySummary(ctx context.Context, summary ranking.Summary) error {
	subject, body := renderSummary(summary)
	return s.fanOut(ctx, summary.ProjectID, "weekly_summary", subject, body)
}

func (s *Service) fanOut(ctx context.Context, projectID int64, category, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	users, err := s.userRepo.GetProjectUsers(projectID)
	if err != nil {
		return fmt.Errorf("failed to load project users: %w", err)
	}
	if len(users) == 0 {
		slog.Debug("No recipients for notification", "project_id", projectID, "category", category)
		return nil
	}

	failures := 0
	for _, user := range users {
		n := database.Notification{
			ID:        uuid.NewString(),
			ProjectID: projectID,
			UserID:    user.ID,
			UserEmail: user.Email,
			Category:  category,
			Subject:   subject,
			Body:      body,
		}

		if err := s.notificationRepo.InsertNotification(n); err != nil {
			slog.Error("Failed to store notification", "project_id", projectID, "user", user.Email, "error", err)
			failures++
			continue
		}

		s.dispatch(n)
	}

	if failures == len(users) {
		return fmt.Errorf("all %d notifications failed to store", failures)
	}

	return nil
}
