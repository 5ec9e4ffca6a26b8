package models

import "time"

type NotificationType string

const (
	NotificationReminder NotificationType = "reminder"
	NotificationInvite   NotificationType = "invite"
	NotificationSystem   NotificationType = "system"
)

type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"userId" db:"user_id"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	Type      NotificationType `json:"type" db:"type"`
	MeetingID *string          `json:"meetingId" db:"meeting_id"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"createdAt" db:"created_at"`
}
