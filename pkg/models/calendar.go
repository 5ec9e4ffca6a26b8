package models

import "time"

type OAuthToken struct {
	UserID       string    `json:"userId" db:"user_id"`
	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken *string   `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expiresAt" db:"expires_at"`
}

func (t OAuthToken) CanRefresh() bool {
	return t.RefreshToken != nil && *t.RefreshToken != ""
}

// ProviderToken is what the calendar provider hands back from a code exchange or a refresh.
type ProviderToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

type CalendarEventRequest struct {
	MeetingID   string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

type CalendarEvent struct {
	Title               string
	Description         string
	Start               time.Time
	End                 time.Time
	Attendees           []string
	ConferenceRequestID string
}

type CreatedEvent struct {
	ID   string `json:"eventId"`
	Link string `json:"eventLink"`
}
