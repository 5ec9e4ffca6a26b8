// Package memstore keeps the whole data model in memory. It backs local development
// and the package tests; it offers no durability.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

type Store struct {
	mu            sync.Mutex
	profiles      map[string]models.Profile
	tokens        map[string]models.OAuthToken
	meetings      map[string]models.ScheduledMeeting
	participants  map[string][]models.MeetingParticipant
	notifications []models.Notification
	now           func() time.Time
}

func New() *Store {
	return &Store{
		profiles:     make(map[string]models.Profile),
		tokens:       make(map[string]models.OAuthToken),
		meetings:     make(map[string]models.ScheduledMeeting),
		participants: make(map[string][]models.MeetingParticipant),
		now:          time.Now,
	}
}

func (s *Store) UpsertProfile(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) GetToken(_ context.Context, userID string) (models.OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[userID]
	if !ok {
		return models.OAuthToken{}, models.ErrTokenNotFound
	}
	return t, nil
}

func (s *Store) UpsertToken(_ context.Context, token models.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.UserID] = token
	return nil
}

func (s *Store) UpdateAccessToken(_ context.Context, userID, accessToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[userID]
	if !ok {
		return models.ErrTokenNotFound
	}
	t.AccessToken = accessToken
	t.ExpiresAt = expiresAt
	s.tokens[userID] = t
	return nil
}

// TokenCount reports how many token rows exist.
func (s *Store) TokenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *Store) SetCalendarEventID(_ context.Context, meetingID, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return models.ErrMeetingNotFound
	}
	m.GoogleCalendarEventID = &eventID
	s.meetings[meetingID] = m
	return nil
}

func (s *Store) CreateMeeting(_ context.Context, meeting models.ScheduledMeeting, participants []models.MeetingParticipant) (models.ScheduledMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = s.now()
	}
	s.meetings[meeting.ID] = meeting
	rows := make([]models.MeetingParticipant, 0, len(participants))
	for _, p := range participants {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Status == "" {
			p.Status = models.ParticipantPending
		}
		p.MeetingID = meeting.ID
		rows = append(rows, p)
	}
	s.participants[meeting.ID] = rows
	return meeting, nil
}

func (s *Store) GetMeeting(_ context.Context, id string) (models.ScheduledMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return models.ScheduledMeeting{}, models.ErrMeetingNotFound
	}
	return m, nil
}

func (s *Store) ListMeetings(_ context.Context, hostID string) ([]models.ScheduledMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.ScheduledMeeting, 0)
	for _, m := range s.meetings {
		if m.HostID == hostID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

func (s *Store) DeleteMeeting(_ context.Context, id string) (models.ScheduledMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return models.ScheduledMeeting{}, models.ErrMeetingNotFound
	}
	delete(s.meetings, id)
	delete(s.participants, id)
	return m, nil
}

func (s *Store) ListParticipants(_ context.Context, meetingID string) ([]models.MeetingParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.MeetingParticipant(nil), s.participants[meetingID]...), nil
}

func (s *Store) DueMeetings(_ context.Context, from, to time.Time) ([]models.DueMeeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.DueMeeting, 0)
	for _, m := range s.meetings {
		if m.ReminderSent || m.ScheduledAt.Before(from) || m.ScheduledAt.After(to) {
			continue
		}
		result = append(result, models.DueMeeting{
			ScheduledMeeting: m,
			Host:             s.profiles[m.HostID],
			Participants:     append([]models.MeetingParticipant(nil), s.participants[m.ID]...),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

func (s *Store) MarkParticipantReminded(_ context.Context, meetingID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.participants[meetingID]
	for i := range rows {
		if rows[i].Email == email {
			rows[i].ReminderSent = true
		}
	}
	return nil
}

func (s *Store) MarkMeetingReminded(_ context.Context, meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[meetingID]
	if !ok {
		return models.ErrMeetingNotFound
	}
	m.ReminderSent = true
	s.meetings[meetingID] = m
	return nil
}

func (s *Store) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications = append(s.notifications, n)
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.Notification, 0)
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID != userID {
			continue
		}
		result = append(result, s.notifications[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == userID {
			s.notifications[i].Read = true
			return nil
		}
	}
	return models.ErrNotificationNotFound
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for i := range s.notifications {
		if s.notifications[i].UserID == userID && !s.notifications[i].Read {
			s.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

// Participant returns the stored participant row for email, matched case-insensitively.
func (s *Store) Participant(meetingID, email string) (models.MeetingParticipant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants[meetingID] {
		if strings.EqualFold(p.Email, email) {
			return p, true
		}
	}
	return models.MeetingParticipant{}, false
}
