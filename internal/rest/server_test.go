package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/Olami1998/connectnow-suite/pkg/memstore"
	"github.com/Olami1998/connectnow-suite/pkg/models"
	"github.com/Olami1998/connectnow-suite/pkg/ratelimit"
	"github.com/Olami1998/connectnow-suite/pkg/service"
)

const (
	jwtSecret  = "test-jwt-secret"
	cronSecret = "test-cron-secret"
	version    = "test"
)

type fakeCalendar struct {
	connected bool
	createErr error
	deleteErr error
	lastEvent models.CalendarEventRequest
	deleted   []string
}

func (f *fakeCalendar) BuildAuthorizationURL(redirectURI, userID string) (string, error) {
	if redirectURI != "http://localhost:5173/calendar-callback" {
		return "", models.ErrInvalidRedirect
	}
	return "https://accounts.example/auth?state=" + userID, nil
}

func (f *fakeCalendar) ExchangeCode(_ context.Context, code, _, _ string) error {
	if code == "bad" {
		return models.ErrUpstreamAuth
	}
	return nil
}

func (f *fakeCalendar) CheckConnection(context.Context, string) bool {
	return f.connected
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ string, req models.CalendarEventRequest) (models.CreatedEvent, error) {
	f.lastEvent = req
	if f.createErr != nil {
		return models.CreatedEvent{}, f.createErr
	}
	return models.CreatedEvent{ID: "evt-1", Link: "https://calendar.example/evt-1"}, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, _, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return f.deleteErr
}

type fakeReminder struct {
	calls int
	err   error
}

func (f *fakeReminder) Run(context.Context) (models.ReminderReport, error) {
	f.calls++
	if f.err != nil {
		return models.ReminderReport{}, f.err
	}
	return models.ReminderReport{
		Success:   true,
		Processed: 1,
		Results:   []models.MeetingResult{{MeetingID: "m-1", Title: "Standup", Status: models.ReminderStatusSent}},
	}, nil
}

type ServerTestSuite struct {
	suite.Suite
	store    *memstore.Store
	calendar *fakeCalendar
	reminder *fakeReminder
	server   *Server
	http     *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	log := logrus.New()
	s.store = memstore.New()
	s.calendar = &fakeCalendar{}
	s.reminder = &fakeReminder{}
	schedule := service.NewScheduleService(log, s.store, s.calendar, "https://meet.example.com")
	s.server = NewServer(log, s.calendar, schedule, s.reminder, ratelimit.NewWindow(20, time.Minute), Config{
		Version:        version,
		JWTSecret:      jwtSecret,
		CronSecret:     cronSecret,
		AllowedOrigins: []string{"http://localhost:5173", "https://meet.example.com"},
	})
	s.http = httptest.NewServer(s.server.routes())
}

func (s *ServerTestSuite) TearDownTest() {
	s.http.Close()
}

func (s *ServerTestSuite) token(userID string) string {
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: models.RoleAuthenticated,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	s.Require().NoError(err)
	return signed
}

func (s *ServerTestSuite) do(method, path, auth string, body any, result any) *http.Response {
	s.T().Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.http.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := s.http.Client().Do(req)
	s.Require().NoError(err)
	defer func() {
		s.Require().NoError(resp.Body.Close())
	}()
	if result != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(result))
	}
	return resp
}

func (s *ServerTestSuite) calendarCall(userID string, body map[string]any, result any) *http.Response {
	return s.do(http.MethodPost, "/functions/v1/google-calendar", "Bearer "+s.token(userID), body, result)
}

func (s *ServerTestSuite) TestVersion() {
	resp, err := s.http.Client().Get(s.http.URL + "/version")
	s.Require().NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal("test\n", string(body))
}

func (s *ServerTestSuite) TestCalendarRequiresAuth() {
	var errResp models.ErrorResponse
	resp := s.do(http.MethodPost, "/functions/v1/google-calendar", "", map[string]any{"action": "check-connection"}, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal(models.ErrUnauthenticated.Error(), errResp.Error)

	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte("other"))
	s.Require().NoError(err)
	resp = s.do(http.MethodPost, "/functions/v1/google-calendar", "Bearer "+wrongKey, map[string]any{"action": "check-connection"}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *ServerTestSuite) TestEmptySecretRejectsEveryToken() {
	s.server.jwtSecret = nil
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "victim",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(""))
	s.Require().NoError(err)

	var errResp models.ErrorResponse
	resp := s.do(http.MethodPost, "/functions/v1/google-calendar", "Bearer "+forged, map[string]any{"action": "check-connection"}, &errResp)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Equal(models.ErrServerMisconfigured.Error(), errResp.Error)

	resp = s.do(http.MethodGet, "/api/v1/meetings", "Bearer "+forged, nil, &errResp)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Equal(models.ErrServerMisconfigured.Error(), errResp.Error)
}

func (s *ServerTestSuite) TestTokenWithoutExpiry() {
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	}).SignedString([]byte(jwtSecret))
	s.Require().NoError(err)

	var errResp models.ErrorResponse
	resp := s.do(http.MethodPost, "/functions/v1/google-calendar", "Bearer "+noExp, map[string]any{"action": "check-connection"}, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal(models.ErrUnauthenticated.Error(), errResp.Error)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(jwtSecret))
	s.Require().NoError(err)
	resp = s.do(http.MethodPost, "/functions/v1/google-calendar", "Bearer "+expired, map[string]any{"action": "check-connection"}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *ServerTestSuite) TestCalendarActions() {
	var authResp authURLResponse
	resp := s.calendarCall("user-1", map[string]any{
		"action": "get-auth-url", "redirectUri": "http://localhost:5173/calendar-callback",
	}, &authResp)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("https://accounts.example/auth?state=user-1", authResp.AuthURL)

	var errResp models.ErrorResponse
	resp = s.calendarCall("user-1", map[string]any{"action": "get-auth-url", "redirectUri": "https://evil.io"}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(models.ErrInvalidRedirect.Error(), errResp.Error)

	var ok models.SuccessResponse
	resp = s.calendarCall("user-1", map[string]any{"action": "exchange-code", "code": "good", "redirectUri": "x"}, &ok)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(ok.Success)

	resp = s.calendarCall("user-1", map[string]any{"action": "exchange-code", "code": "bad", "redirectUri": "x"}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(models.ErrUpstreamAuth.Error(), errResp.Error)

	var conn connectionResponse
	s.calendar.connected = true
	resp = s.calendarCall("user-1", map[string]any{"action": "check-connection"}, &conn)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(conn.Connected)

	var created map[string]any
	resp = s.calendarCall("user-1", map[string]any{
		"action":    "create-event",
		"meetingId": "m-1",
		"title":     "Sync",
		"startTime": "2026-03-01T15:00:00.000Z",
		"endTime":   "2026-03-01T15:30:00.000Z",
		"attendees": []string{"a@example.com"},
	}, &created)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(map[string]any{"success": true, "eventId": "evt-1", "eventLink": "https://calendar.example/evt-1"}, created)
	s.Equal("m-1", s.calendar.lastEvent.MeetingID)
	s.Equal(time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC), s.calendar.lastEvent.Start.UTC())

	resp = s.calendarCall("user-1", map[string]any{"action": "delete-event", "eventId": "evt-1"}, &ok)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal([]string{"evt-1"}, s.calendar.deleted)

	resp = s.calendarCall("user-1", map[string]any{"action": "frobnicate"}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("unknown action: frobnicate", errResp.Error)
}

func (s *ServerTestSuite) TestCalendarErrorMapping() {
	var errResp models.ErrorResponse
	s.calendar.createErr = &models.InvalidAttendeeError{Emails: []string{"bad"}}
	resp := s.calendarCall("user-1", map[string]any{"action": "create-event", "title": "x"}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("invalid email format: bad", errResp.Error)

	s.calendar.createErr = models.ErrNotConnected
	resp = s.calendarCall("user-1", map[string]any{"action": "create-event", "title": "x"}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(models.ErrNotConnected.Error(), errResp.Error)

	s.calendar.createErr = errors.New("pq: connection refused")
	resp = s.calendarCall("user-1", map[string]any{"action": "create-event", "title": "x"}, &errResp)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Equal(internalErrorMessage, errResp.Error)
}

func (s *ServerTestSuite) TestRateLimit() {
	for i := 0; i < 20; i++ {
		resp := s.calendarCall("user-1", map[string]any{"action": "check-connection"}, nil)
		s.Require().Equal(http.StatusOK, resp.StatusCode)
	}
	var errResp models.ErrorResponse
	resp := s.calendarCall("user-1", map[string]any{"action": "check-connection"}, &errResp)
	s.Equal(http.StatusTooManyRequests, resp.StatusCode)
	s.Equal(models.ErrRateLimited.Error(), errResp.Error)

	resp = s.calendarCall("user-2", map[string]any{"action": "check-connection"}, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *ServerTestSuite) TestCORS() {
	req, err := http.NewRequest(http.MethodOptions, s.http.URL+"/functions/v1/google-calendar", nil)
	s.Require().NoError(err)
	req.Header.Set("Origin", "https://meet.example.com")
	resp, err := s.http.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("https://meet.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.io")
	resp, err = s.http.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal("http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodPost, s.http.URL+"/functions/v1/send-reminder", nil)
	s.Require().NoError(err)
	req.Header.Set("Origin", "https://meet.example.com")
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	resp, err = s.http.Client().Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Empty(resp.Header.Get("Access-Control-Allow-Origin"))
	s.Empty(resp.Header.Get("Access-Control-Allow-Credentials"))
}

func (s *ServerTestSuite) TestSendReminder() {
	var errResp models.ErrorResponse
	resp := s.do(http.MethodPost, "/functions/v1/send-reminder", "", nil, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodPost, "/functions/v1/send-reminder", "Bearer wrong", nil, &errResp)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Zero(s.reminder.calls)

	var report map[string]any
	resp = s.do(http.MethodPost, "/functions/v1/send-reminder", "Bearer "+cronSecret, nil, &report)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, report["success"])
	s.Equal(float64(1), report["processed"])
	s.Equal([]any{map[string]any{"meetingId": "m-1", "title": "Standup", "status": "sent"}}, report["results"])

	s.reminder.err = errors.New("db down")
	resp = s.do(http.MethodPost, "/functions/v1/send-reminder", "Bearer "+cronSecret, nil, &errResp)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
}

func (s *ServerTestSuite) TestSendReminderMisconfigured() {
	s.server.cronSecret = ""
	var errResp models.ErrorResponse
	resp := s.do(http.MethodPost, "/functions/v1/send-reminder", "Bearer ", nil, &errResp)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Equal(models.ErrServerMisconfigured.Error(), errResp.Error)
	s.Zero(s.reminder.calls)
}

func (s *ServerTestSuite) TestMeetingsAPI() {
	auth := "Bearer " + s.token("host-1")
	var meeting models.ScheduledMeeting
	resp := s.do(http.MethodPost, "/api/v1/meetings", auth, models.MeetingRequest{
		Title:           "Retro",
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 30,
		Participants:    []models.ParticipantRequest{{Email: "ann@example.com"}},
	}, &meeting)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("host-1", meeting.HostID)
	s.Contains(meeting.MeetingLink, "https://meet.example.com/?room=")

	var errResp models.ErrorResponse
	resp = s.do(http.MethodPost, "/api/v1/meetings", auth, models.MeetingRequest{
		Title: "Late", ScheduledAt: time.Now().Add(-time.Hour), DurationMinutes: 30,
	}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var meetings []models.ScheduledMeeting
	resp = s.do(http.MethodGet, "/api/v1/meetings", auth, nil, &meetings)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Len(meetings, 1)

	resp = s.do(http.MethodDelete, "/api/v1/meetings/"+meeting.ID, "Bearer "+s.token("host-2"), nil, &errResp)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	var ok models.SuccessResponse
	resp = s.do(http.MethodDelete, "/api/v1/meetings/"+meeting.ID, auth, nil, &ok)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(ok.Success)
}

func (s *ServerTestSuite) TestNotificationsAPI() {
	ctx := context.Background()
	first, err := s.store.CreateNotification(ctx, models.Notification{UserID: "host-1", Title: "a", Type: models.NotificationSystem})
	s.Require().NoError(err)
	_, err = s.store.CreateNotification(ctx, models.Notification{UserID: "host-1", Title: "b", Type: models.NotificationReminder})
	s.Require().NoError(err)
	auth := "Bearer " + s.token("host-1")

	var list []models.Notification
	resp := s.do(http.MethodGet, "/api/v1/notifications", auth, nil, &list)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().Len(list, 2)
	s.Equal("b", list[0].Title)

	var ok models.SuccessResponse
	resp = s.do(http.MethodPost, "/api/v1/notifications/"+first.ID+"/read", auth, nil, &ok)
	s.Equal(http.StatusOK, resp.StatusCode)

	var errResp models.ErrorResponse
	resp = s.do(http.MethodPost, "/api/v1/notifications/"+first.ID+"/read", "Bearer "+s.token("host-2"), nil, &errResp)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	var all readAllResponse
	resp = s.do(http.MethodPost, "/api/v1/notifications/read-all", auth, nil, &all)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, all.Updated)
}
