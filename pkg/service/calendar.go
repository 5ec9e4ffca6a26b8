package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/metrics"
	"github.com/Olami1998/connectnow-suite/pkg/models"
)

// RefreshMargin is how close to expiry a stored access token may get before it is refreshed.
const RefreshMargin = 5 * time.Minute

// CalendarService owns each user's Google OAuth credential: it obtains it, keeps it
// fresh and uses it to mutate the user's primary calendar.
type CalendarService struct {
	log       *logrus.Entry
	store     TokenStore
	provider  CalendarProvider
	redirects RedirectAllowList
	now       func() time.Time
	requestID func() string
}

func NewCalendarService(log *logrus.Logger, store TokenStore, provider CalendarProvider, redirects RedirectAllowList) *CalendarService {
	return &CalendarService{
		log:       log.WithField("component", "calendar-service"),
		store:     store,
		provider:  provider,
		redirects: redirects,
		now:       time.Now,
		requestID: uuid.NewString,
	}
}

// BuildAuthorizationURL embeds userID as the OAuth state. The state is not signed and the
// callback does not check it against the session.
func (s *CalendarService) BuildAuthorizationURL(redirectURI, userID string) (string, error) {
	if redirectURI == "" {
		return "", models.InvalidRequest("redirect uri is required")
	}
	if !s.redirects.Allows(redirectURI) {
		s.log.Warnf("invalid redirect uri attempted: %s", redirectURI)
		return "", models.ErrInvalidRedirect
	}
	return s.provider.AuthCodeURL(redirectURI, userID), nil
}

// ExchangeCode trades an authorization code for tokens and overwrites the stored token of userID.
func (s *CalendarService) ExchangeCode(ctx context.Context, code, redirectURI, userID string) error {
	if code == "" || redirectURI == "" {
		return models.InvalidRequest("code and redirect uri are required")
	}
	if !s.redirects.Allows(redirectURI) {
		s.log.Warnf("invalid redirect uri in exchange: %s", redirectURI)
		return models.ErrInvalidRedirect
	}
	tok, err := s.provider.Exchange(ctx, code, redirectURI)
	if err != nil {
		s.log.Errorf("err exchanging code for user %s: %v", userID, err)
		return models.ErrUpstreamAuth
	}
	stored := models.OAuthToken{
		UserID:      userID,
		AccessToken: tok.AccessToken,
		ExpiresAt:   s.now().Add(tok.ExpiresIn),
	}
	if tok.RefreshToken != "" {
		refresh := tok.RefreshToken
		stored.RefreshToken = &refresh
	}
	if err = s.store.UpsertToken(ctx, stored); err != nil {
		return fmt.Errorf("err storing token: %w", err)
	}
	s.log.Infof("google calendar connected for user %s", userID)
	return nil
}

func (s *CalendarService) CheckConnection(ctx context.Context, userID string) bool {
	return s.GetValidAccessToken(ctx, userID) != ""
}

// GetValidAccessToken returns an access token valid for at least RefreshMargin, or ""
// when none can be produced. Calendar sync is optional, so every failure degrades to "".
func (s *CalendarService) GetValidAccessToken(ctx context.Context, userID string) string {
	tok, err := s.store.GetToken(ctx, userID)
	switch {
	case errors.Is(err, models.ErrTokenNotFound):
		s.log.Debugf("no google tokens for user %s", userID)
		return ""
	case err != nil:
		s.log.Errorf("err loading token for user %s: %v", userID, err)
		return ""
	}
	now := s.now()
	if tok.ExpiresAt.Sub(now) >= RefreshMargin {
		return tok.AccessToken
	}
	if !tok.CanRefresh() {
		s.log.Infof("token of user %s expired and has no refresh token", userID)
		metrics.TokenRefreshes.WithLabelValues("no_refresh_token").Inc()
		return ""
	}
	refreshed, err := s.provider.Refresh(ctx, *tok.RefreshToken)
	if err != nil {
		s.log.Errorf("err refreshing token for user %s: %v", userID, err)
		metrics.TokenRefreshes.WithLabelValues("error").Inc()
		return ""
	}
	expiresAt := now.Add(refreshed.ExpiresIn)
	if err = s.store.UpdateAccessToken(ctx, userID, refreshed.AccessToken, expiresAt); err != nil {
		s.log.Errorf("err persisting refreshed token for user %s: %v", userID, err)
		metrics.TokenRefreshes.WithLabelValues("persist_error").Inc()
		return ""
	}
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	return refreshed.AccessToken
}

func (s *CalendarService) CreateEvent(ctx context.Context, userID string, req models.CalendarEventRequest) (models.CreatedEvent, error) {
	if req.Title == "" || req.Start.IsZero() || req.End.IsZero() {
		return models.CreatedEvent{}, models.InvalidRequest("title, start time, and end time are required")
	}
	if invalid := models.InvalidEmails(req.Attendees); len(invalid) > 0 {
		return models.CreatedEvent{}, &models.InvalidAttendeeError{Emails: invalid}
	}
	accessToken := s.GetValidAccessToken(ctx, userID)
	if accessToken == "" {
		return models.CreatedEvent{}, models.ErrNotConnected
	}
	created, err := s.provider.InsertEvent(ctx, accessToken, models.CalendarEvent{
		Title:               req.Title,
		Description:         req.Description,
		Start:               req.Start,
		End:                 req.End,
		Attendees:           req.Attendees,
		ConferenceRequestID: s.requestID(),
	})
	if err != nil {
		s.log.Errorf("err creating calendar event for user %s: %v", userID, err)
		return models.CreatedEvent{}, models.ErrUpstreamAPI
	}
	if req.MeetingID != "" {
		if err = s.store.SetCalendarEventID(ctx, req.MeetingID, created.ID); err != nil {
			s.log.Warnf("err linking event %s to meeting %s: %v", created.ID, req.MeetingID, err)
		}
	}
	return created, nil
}

// DeleteEvent is idempotent: an event the provider no longer knows counts as deleted.
func (s *CalendarService) DeleteEvent(ctx context.Context, userID, eventID string) error {
	if eventID == "" {
		return models.InvalidRequest("event id is required")
	}
	accessToken := s.GetValidAccessToken(ctx, userID)
	if accessToken == "" {
		return models.ErrNotConnected
	}
	err := s.provider.DeleteEvent(ctx, accessToken, eventID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrEventNotFound):
		s.log.Debugf("calendar event %s already gone", eventID)
		return nil
	default:
		s.log.Errorf("err deleting calendar event %s for user %s: %v", eventID, userID, err)
		return models.ErrUpstreamAPI
	}
}
