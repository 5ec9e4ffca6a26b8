package service

import (
	"context"
	"time"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

type TokenStore interface {
	GetToken(ctx context.Context, userID string) (models.OAuthToken, error)
	UpsertToken(ctx context.Context, token models.OAuthToken) error
	UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresAt time.Time) error
	SetCalendarEventID(ctx context.Context, meetingID, eventID string) error
}

type CalendarProvider interface {
	AuthCodeURL(redirectURI, state string) string
	Exchange(ctx context.Context, code, redirectURI string) (models.ProviderToken, error)
	Refresh(ctx context.Context, refreshToken string) (models.ProviderToken, error)
	InsertEvent(ctx context.Context, accessToken string, event models.CalendarEvent) (models.CreatedEvent, error)
	DeleteEvent(ctx context.Context, accessToken, eventID string) error
}

type MeetingStore interface {
	UpsertProfile(ctx context.Context, p models.Profile) error
	CreateMeeting(ctx context.Context, meeting models.ScheduledMeeting, participants []models.MeetingParticipant) (models.ScheduledMeeting, error)
	GetMeeting(ctx context.Context, id string) (models.ScheduledMeeting, error)
	ListMeetings(ctx context.Context, hostID string) ([]models.ScheduledMeeting, error)
	DeleteMeeting(ctx context.Context, id string) (models.ScheduledMeeting, error)
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// CalendarSync is the part of CalendarService the scheduling flow relies on.
type CalendarSync interface {
	CheckConnection(ctx context.Context, userID string) bool
	CreateEvent(ctx context.Context, userID string, req models.CalendarEventRequest) (models.CreatedEvent, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}
