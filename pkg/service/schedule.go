package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

const (
	notificationsLimit = 50
	roomIDLength       = 8
)

// ScheduleService manages a host's scheduled meetings and in-app notifications.
type ScheduleService struct {
	log      *logrus.Entry
	store    MeetingStore
	calendar CalendarSync
	appURL   string
	now      func() time.Time
	roomID   func() string
}

func NewScheduleService(log *logrus.Logger, store MeetingStore, calendar CalendarSync, appURL string) *ScheduleService {
	return &ScheduleService{
		log:      log.WithField("component", "schedule-service"),
		store:    store,
		calendar: calendar,
		appURL:   strings.TrimRight(appURL, "/"),
		now:      time.Now,
		roomID:   newRoomID,
	}
}

func newRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:roomIDLength]
}

func (s *ScheduleService) validate(req models.MeetingRequest) error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return models.InvalidRequest("title is required")
	case req.DurationMinutes <= 0:
		return models.InvalidRequest("duration must be positive")
	case req.ScheduledAt.IsZero():
		return models.InvalidRequest("scheduled time is required")
	case !req.ScheduledAt.After(s.now()):
		return models.InvalidRequest("meeting must be scheduled in the future")
	}
	emails := make([]string, 0, len(req.Participants))
	for _, p := range req.Participants {
		emails = append(emails, strings.TrimSpace(p.Email))
	}
	if invalid := models.InvalidEmails(emails); len(invalid) > 0 {
		return &models.InvalidAttendeeError{Emails: invalid}
	}
	return nil
}

func (s *ScheduleService) CreateMeeting(ctx context.Context, hostID string, req models.MeetingRequest) (models.ScheduledMeeting, error) {
	if err := s.validate(req); err != nil {
		return models.ScheduledMeeting{}, err
	}
	meeting := models.ScheduledMeeting{
		HostID:          hostID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		MeetingLink:     fmt.Sprintf("%s/?room=%s", s.appURL, s.roomID()),
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
	}
	participants := make([]models.MeetingParticipant, 0, len(req.Participants))
	attendees := make([]string, 0, len(req.Participants))
	for _, p := range req.Participants {
		email := strings.TrimSpace(p.Email)
		participants = append(participants, models.MeetingParticipant{
			Email:  email,
			Name:   p.Name,
			Status: models.ParticipantPending,
		})
		attendees = append(attendees, email)
	}
	created, err := s.store.CreateMeeting(ctx, meeting, participants)
	if err != nil {
		return models.ScheduledMeeting{}, fmt.Errorf("err creating meeting: %w", err)
	}
	s.log.Infof("meeting %s scheduled by %s at %s", created.ID, hostID, created.ScheduledAt.Format(time.RFC3339))

	if !req.SyncToCalendar {
		return created, nil
	}
	if !s.calendar.CheckConnection(ctx, hostID) {
		s.log.Debugf("host %s not connected to google calendar, skipping sync", hostID)
		return created, nil
	}
	description := created.Description
	if description != "" {
		description += "\n\n"
	}
	description += "Join meeting: " + created.MeetingLink
	event, err := s.calendar.CreateEvent(ctx, hostID, models.CalendarEventRequest{
		MeetingID:   created.ID,
		Title:       created.Title,
		Description: description,
		Start:       created.ScheduledAt,
		End:         created.EndsAt(),
		Attendees:   attendees,
	})
	if err != nil {
		s.log.Warnf("err syncing meeting %s to calendar: %v", created.ID, err)
		return created, nil
	}
	created.GoogleCalendarEventID = &event.ID
	return created, nil
}

// EnsureProfile records the caller's email and name so reminders can reach the host.
func (s *ScheduleService) EnsureProfile(ctx context.Context, profile models.Profile) error {
	if profile.ID == "" {
		return models.ErrUnauthenticated
	}
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("err storing profile: %w", err)
	}
	return nil
}

func (s *ScheduleService) ListMeetings(ctx context.Context, hostID string) ([]models.ScheduledMeeting, error) {
	meetings, err := s.store.ListMeetings(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("err listing meetings: %w", err)
	}
	return meetings, nil
}

// DeleteMeeting removes a meeting owned by hostID. Meetings of other hosts are reported as
// not found. The linked calendar event is removed first on a best-effort basis.
func (s *ScheduleService) DeleteMeeting(ctx context.Context, hostID, meetingID string) error {
	meeting, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	if meeting.HostID != hostID {
		return models.ErrMeetingNotFound
	}
	if meeting.GoogleCalendarEventID != nil && *meeting.GoogleCalendarEventID != "" {
		if err = s.calendar.DeleteEvent(ctx, hostID, *meeting.GoogleCalendarEventID); err != nil {
			s.log.Warnf("err deleting calendar event of meeting %s: %v", meetingID, err)
		}
	}
	if _, err = s.store.DeleteMeeting(ctx, meetingID); err != nil {
		if errors.Is(err, models.ErrMeetingNotFound) {
			return err
		}
		return fmt.Errorf("err deleting meeting: %w", err)
	}
	s.log.Infof("meeting %s deleted by %s", meetingID, hostID)
	return nil
}

func (s *ScheduleService) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.store.ListNotifications(ctx, userID, notificationsLimit)
	if err != nil {
		return nil, fmt.Errorf("err listing notifications: %w", err)
	}
	return notifications, nil
}

func (s *ScheduleService) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, userID, id)
}

func (s *ScheduleService) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("err marking notifications read: %w", err)
	}
	return n, nil
}
