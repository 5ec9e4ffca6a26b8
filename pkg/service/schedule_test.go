package service

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/Olami1998/connectnow-suite/pkg/memstore"
	"github.com/Olami1998/connectnow-suite/pkg/models"
)

type ScheduleTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memstore.Store
	provider *fakeProvider
	calendar *CalendarService
	schedule *ScheduleService
}

func TestScheduleSuite(t *testing.T) {
	suite.Run(t, new(ScheduleTestSuite))
}

func (s *ScheduleTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memstore.New()
	s.provider = &fakeProvider{}
	log := logrus.New()
	s.calendar = NewCalendarService(log, s.store, s.provider, NewRedirectAllowList([]string{"http://localhost:5173"}))
	s.calendar.now = func() time.Time { return testNow }
	s.schedule = NewScheduleService(log, s.store, s.calendar, "https://meet.example.com/")
	s.schedule.now = func() time.Time { return testNow }
	s.schedule.roomID = func() string { return "abcd1234" }
}

func (s *ScheduleTestSuite) connect(userID string) {
	s.Require().NoError(s.store.UpsertToken(s.ctx, models.OAuthToken{
		UserID: userID, AccessToken: "a-" + userID, ExpiresAt: testNow.Add(time.Hour),
	}))
}

func (s *ScheduleTestSuite) request() models.MeetingRequest {
	return models.MeetingRequest{
		Title:           " Planning ",
		Description:     "Q3 roadmap",
		ScheduledAt:     testNow.Add(2 * time.Hour),
		DurationMinutes: 45,
		Participants: []models.ParticipantRequest{
			{Email: "ann@example.com"},
			{Email: " bob@example.com "},
		},
	}
}

func (s *ScheduleTestSuite) TestCreateMeeting() {
	meeting, err := s.schedule.CreateMeeting(s.ctx, "host-1", s.request())
	s.Require().NoError(err)
	s.Equal("Planning", meeting.Title)
	s.Equal("https://meet.example.com/?room=abcd1234", meeting.MeetingLink)
	s.Nil(meeting.GoogleCalendarEventID)
	s.False(meeting.ReminderSent)

	participants, err := s.store.ListParticipants(s.ctx, meeting.ID)
	s.Require().NoError(err)
	s.Require().Len(participants, 2)
	s.Equal("bob@example.com", participants[1].Email)
	s.Equal(models.ParticipantPending, participants[1].Status)
	s.Empty(s.provider.inserted)
}

func (s *ScheduleTestSuite) TestCreateMeetingSyncsCalendar() {
	s.connect("host-1")
	req := s.request()
	req.SyncToCalendar = true

	meeting, err := s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.Require().NoError(err)
	s.Require().NotNil(meeting.GoogleCalendarEventID)
	s.Equal("evt-1", *meeting.GoogleCalendarEventID)

	s.Require().Len(s.provider.inserted, 1)
	event := s.provider.inserted[0]
	s.Equal(testNow.Add(2*time.Hour+45*time.Minute), event.End)
	s.Contains(event.Description, "Join meeting: https://meet.example.com/?room=abcd1234")
	s.Equal([]string{"ann@example.com", "bob@example.com"}, event.Attendees)

	stored, err := s.store.GetMeeting(s.ctx, meeting.ID)
	s.Require().NoError(err)
	s.Equal("evt-1", *stored.GoogleCalendarEventID)
}

func (s *ScheduleTestSuite) TestCreateMeetingSyncWithoutConnection() {
	req := s.request()
	req.SyncToCalendar = true

	meeting, err := s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.Require().NoError(err)
	s.Nil(meeting.GoogleCalendarEventID)
	s.Empty(s.provider.tokens)
}

func (s *ScheduleTestSuite) TestCreateMeetingValidation() {
	req := s.request()
	req.Title = "  "
	_, err := s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.ErrorIs(err, models.ErrInvalidRequest)

	req = s.request()
	req.DurationMinutes = 0
	_, err = s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.ErrorIs(err, models.ErrInvalidRequest)

	req = s.request()
	req.ScheduledAt = testNow.Add(-time.Minute)
	_, err = s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.ErrorIs(err, models.ErrInvalidRequest)

	req = s.request()
	req.Participants = append(req.Participants, models.ParticipantRequest{Email: "nope"})
	_, err = s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.ErrorIs(err, models.ErrInvalidAttendee)

	meetings, err := s.schedule.ListMeetings(s.ctx, "host-1")
	s.Require().NoError(err)
	s.Empty(meetings)
}

func (s *ScheduleTestSuite) TestDeleteMeeting() {
	s.connect("host-1")
	req := s.request()
	req.SyncToCalendar = true
	meeting, err := s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.Require().NoError(err)

	s.ErrorIs(s.schedule.DeleteMeeting(s.ctx, "host-2", meeting.ID), models.ErrMeetingNotFound)

	s.Require().NoError(s.schedule.DeleteMeeting(s.ctx, "host-1", meeting.ID))
	s.Equal([]string{"evt-1"}, s.provider.deleted)
	_, err = s.store.GetMeeting(s.ctx, meeting.ID)
	s.ErrorIs(err, models.ErrMeetingNotFound)
	participants, err := s.store.ListParticipants(s.ctx, meeting.ID)
	s.Require().NoError(err)
	s.Empty(participants)

	s.ErrorIs(s.schedule.DeleteMeeting(s.ctx, "host-1", meeting.ID), models.ErrMeetingNotFound)
}

func (s *ScheduleTestSuite) TestDeleteMeetingCalendarFailure() {
	s.connect("host-1")
	req := s.request()
	req.SyncToCalendar = true
	meeting, err := s.schedule.CreateMeeting(s.ctx, "host-1", req)
	s.Require().NoError(err)

	s.provider.deleteErr = models.ErrUpstreamAPI
	s.Require().NoError(s.schedule.DeleteMeeting(s.ctx, "host-1", meeting.ID))
	_, err = s.store.GetMeeting(s.ctx, meeting.ID)
	s.ErrorIs(err, models.ErrMeetingNotFound)
}

func (s *ScheduleTestSuite) TestNotifications() {
	for i := 0; i < 55; i++ {
		_, err := s.store.CreateNotification(s.ctx, models.Notification{
			UserID: "host-1", Title: "n", Type: models.NotificationSystem,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		s.Require().NoError(err)
	}
	other, err := s.store.CreateNotification(s.ctx, models.Notification{UserID: "host-2", Title: "x", Type: models.NotificationSystem})
	s.Require().NoError(err)

	list, err := s.schedule.ListNotifications(s.ctx, "host-1")
	s.Require().NoError(err)
	s.Len(list, 50)
	s.True(list[0].CreatedAt.After(list[49].CreatedAt))

	s.ErrorIs(s.schedule.MarkNotificationRead(s.ctx, "host-1", other.ID), models.ErrNotificationNotFound)
	s.Require().NoError(s.schedule.MarkNotificationRead(s.ctx, "host-1", list[0].ID))

	n, err := s.schedule.MarkAllNotificationsRead(s.ctx, "host-1")
	s.Require().NoError(err)
	s.Equal(54, n)

	n, err = s.schedule.MarkAllNotificationsRead(s.ctx, "host-1")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ScheduleTestSuite) TestEnsureProfile() {
	s.ErrorIs(s.schedule.EnsureProfile(s.ctx, models.Profile{}), models.ErrUnauthenticated)

	name := "Hana Host"
	s.Require().NoError(s.schedule.EnsureProfile(s.ctx, models.Profile{ID: "host-1", Email: "hana@example.com", FullName: &name}))
	meeting, err := s.schedule.CreateMeeting(s.ctx, "host-1", s.request())
	s.Require().NoError(err)

	due, err := s.store.DueMeetings(s.ctx, testNow, testNow.Add(3*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(meeting.ID, due[0].ID)
	s.Equal("hana@example.com", due[0].Host.Email)
	s.Equal("Hana Host", due[0].Host.DisplayName(""))
}
