package database

import (
	"fmt"
)

var _ NotificationRepository = (*NotificationRepo)(nil)

// NotificationRepo stores rendered notifications and their delivery status
type NotificationRepo struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) InsertNotification(n Notification) error {
	_, err := r.db.Exec(`
		INSERT INTO notifications (id, project_id, user_id, category, subject, body, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.ProjectID, n.UserID, n.Category, n.Subject, n.Body, NotificationPending)

	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

func (r *NotificationRepo) MarkNotificationSent(id string) error {
	_, err := r.db.Exec(`
		UPDATE notifications
		SET status = ?, error = '', sent_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, NotificationSent, id)

	if err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	return nil
}

func (r *NotificationRepo) MarkNotificationFailed(id string, errMsg string) error {
	_, err := r.db.Exec(`
		UPDATE notifications
		SET status = ?, error = ?
		WHERE id = ?
	`, NotificationFailed, errMsg, id)

	if err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}

	return nil
}

func (r *NotificationRepo) GetProjectNotifications(projectID int64, limit int) ([]Notification, error) {
	rows, err := r.db.Query(`
		SELECT n.id, n.project_id, n.user_id, u.email, n.category, n.subject, n.body,
		       n.status, n.error, n.created_at, n.sent_at
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		WHERE n.project_id = ?
		ORDER BY n.created_at DESC
		LIMIT ?
	`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		var n Notification
		err := rows.Scan(&n.ID, &n.ProjectID, &n.UserID, &n.UserEmail, &n.Category,
			&n.Subject, &n.Body, &n.Status, &n.Error, &n.CreatedAt, &n.SentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}

	return notifications, nil
}
