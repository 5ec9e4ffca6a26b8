package models

import "time"

type ParticipantStatus string

const (
	ParticipantPending  ParticipantStatus = "pending"
	ParticipantAccepted ParticipantStatus = "accepted"
	ParticipantDeclined ParticipantStatus = "declined"
)

type ParticipantRequest struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

type MeetingRequest struct {
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	ScheduledAt     time.Time            `json:"scheduledAt"`
	DurationMinutes int                  `json:"durationMinutes"`
	Participants    []ParticipantRequest `json:"participants"`
	SyncToCalendar  bool                 `json:"syncToCalendar"`
}

type ScheduledMeeting struct {
	ID                    string    `json:"id" db:"id"`
	HostID                string    `json:"hostId" db:"host_id"`
	Title                 string    `json:"title" db:"title"`
	Description           string    `json:"description" db:"description"`
	MeetingLink           string    `json:"meetingLink" db:"meeting_link"`
	ScheduledAt           time.Time `json:"scheduledAt" db:"scheduled_at"`
	DurationMinutes       int       `json:"durationMinutes" db:"duration_minutes"`
	GoogleCalendarEventID *string   `json:"googleCalendarEventId" db:"google_calendar_event_id"`
	ReminderSent          bool      `json:"reminderSent" db:"reminder_sent"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
}

func (m ScheduledMeeting) EndsAt() time.Time {
	return m.ScheduledAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

type MeetingParticipant struct {
	ID           string            `json:"id" db:"id"`
	MeetingID    string            `json:"meetingId" db:"meeting_id"`
	Email        string            `json:"email" db:"email"`
	Name         *string           `json:"name" db:"name"`
	Status       ParticipantStatus `json:"status" db:"status"`
	ReminderSent bool              `json:"reminderSent" db:"reminder_sent"`
}

// DueMeeting is a meeting selected for reminders, joined with its host and participants.
type DueMeeting struct {
	ScheduledMeeting
	Host         Profile `db:"host"`
	Participants []MeetingParticipant
}
