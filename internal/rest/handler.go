package rest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

const internalErrorMessage = "internal server error"

type CalendarApp interface {
	BuildAuthorizationURL(redirectURI, userID string) (string, error)
	ExchangeCode(ctx context.Context, code, redirectURI, userID string) error
	CheckConnection(ctx context.Context, userID string) bool
	CreateEvent(ctx context.Context, userID string, req models.CalendarEventRequest) (models.CreatedEvent, error)
	DeleteEvent(ctx context.Context, userID, eventID string) error
}

type ScheduleApp interface {
	EnsureProfile(ctx context.Context, profile models.Profile) error
	CreateMeeting(ctx context.Context, hostID string, req models.MeetingRequest) (models.ScheduledMeeting, error)
	ListMeetings(ctx context.Context, hostID string) ([]models.ScheduledMeeting, error)
	DeleteMeeting(ctx context.Context, hostID, meetingID string) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

type Reminder interface {
	Run(ctx context.Context) (models.ReminderReport, error)
}

const (
	actionGetAuthURL      = "get-auth-url"
	actionExchangeCode    = "exchange-code"
	actionCheckConnection = "check-connection"
	actionCreateEvent     = "create-event"
	actionDeleteEvent     = "delete-event"
)

type calendarRequest struct {
	Action      string    `json:"action"`
	Code        string    `json:"code"`
	RedirectURI string    `json:"redirectUri"`
	MeetingID   string    `json:"meetingId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Attendees   []string  `json:"attendees"`
	EventID     string    `json:"eventId"`
}

type authURLResponse struct {
	AuthURL string `json:"authUrl"`
}

type connectionResponse struct {
	Connected bool `json:"connected"`
}

type createEventResponse struct {
	Success bool `json:"success"`
	models.CreatedEvent
}

type readAllResponse struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, err := fmt.Fprintf(w, "%s\n", s.version)
	if err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}

func (s *Server) calendarHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getClaims(ctx).UserID()
	var req calendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, models.InvalidRequest("malformed json body"))
		return
	}
	s.log.Infof("processing action: %s for user: %s", req.Action, userID)

	switch req.Action {
	case actionGetAuthURL:
		authURL, err := s.calendar.BuildAuthorizationURL(req.RedirectURI, userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, http.StatusOK, authURLResponse{AuthURL: authURL})
	case actionExchangeCode:
		if err := s.calendar.ExchangeCode(ctx, req.Code, req.RedirectURI, userID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
	case actionCheckConnection:
		s.writeResponse(w, http.StatusOK, connectionResponse{Connected: s.calendar.CheckConnection(ctx, userID)})
	case actionCreateEvent:
		created, err := s.calendar.CreateEvent(ctx, userID, models.CalendarEventRequest{
			MeetingID:   req.MeetingID,
			Title:       req.Title,
			Description: req.Description,
			Start:       req.StartTime,
			End:         req.EndTime,
			Attendees:   req.Attendees,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, http.StatusOK, createEventResponse{Success: true, CreatedEvent: created})
	case actionDeleteEvent:
		if err := s.calendar.DeleteEvent(ctx, userID, req.EventID); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
	default:
		s.writeError(w, fmt.Errorf("%w: %s", models.ErrUnknownAction, req.Action))
	}
}

func (s *Server) reminderHandler(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" {
		s.log.Error("CRON_SECRET is not configured")
		s.writeError(w, models.ErrServerMisconfigured)
		return
	}
	expected := "Bearer " + s.cronSecret
	if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(expected)) != 1 {
		s.log.Warn("unauthorized attempt to call send-reminder")
		s.writeError(w, models.ErrUnauthorized)
		return
	}
	report, err := s.reminder.Run(r.Context())
	if err != nil {
		s.log.Errorf("err in reminder run: %v", err)
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, report)
}

func (s *Server) listMeetingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meetings, err := s.schedule.ListMeetings(ctx, s.getClaims(ctx).UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, meetings)
}

func (s *Server) createMeetingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.MeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, models.InvalidRequest("malformed json body"))
		return
	}
	claims := s.getClaims(ctx)
	if err := s.schedule.EnsureProfile(ctx, claims.Profile()); err != nil {
		s.writeError(w, err)
		return
	}
	meeting, err := s.schedule.CreateMeeting(ctx, claims.UserID(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusCreated, meeting)
}

func (s *Server) deleteMeetingHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.schedule.DeleteMeeting(ctx, s.getClaims(ctx).UserID(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

func (s *Server) listNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	notifications, err := s.schedule.ListNotifications(ctx, s.getClaims(ctx).UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, notifications)
}

func (s *Server) readNotificationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.schedule.MarkNotificationRead(ctx, s.getClaims(ctx).UserID(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, models.SuccessResponse{Success: true})
}

func (s *Server) readAllNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.schedule.MarkAllNotificationsRead(ctx, s.getClaims(ctx).UserID())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeResponse(w, http.StatusOK, readAllResponse{Success: true, Updated: n})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated), errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrMeetingNotFound), errors.Is(err, models.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, models.ErrInvalidRedirect),
		errors.Is(err, models.ErrInvalidAttendee),
		errors.Is(err, models.ErrNotConnected),
		errors.Is(err, models.ErrUnknownAction),
		errors.Is(err, models.ErrUpstreamAuth),
		errors.Is(err, models.ErrUpstreamAPI):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrServerMisconfigured):
		return http.StatusInternalServerError
	default:
		return 0
	}
}

// writeError maps domain errors to their status; anything unrecognized is logged and
// reported as a bare 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == 0 {
		s.log.Errorf("unhandled error: %v", err)
		s.writeResponse(w, http.StatusInternalServerError, errors.New(internalErrorMessage))
		return
	}
	s.writeResponse(w, status, err)
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if x, ok := data.(error); ok {
		if err := json.NewEncoder(w).Encode(models.ErrorResponse{Error: x.Error()}); err != nil {
			s.log.Warnf("err during encoding error: %v", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("err during encoding responce: %v", err)
	}
}
