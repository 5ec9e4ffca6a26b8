package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated     = errors.New("invalid user token")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("too many requests, please try again later")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidRedirect     = errors.New("invalid redirect uri")
	ErrInvalidAttendee     = errors.New("invalid email format")
	ErrUpstreamAuth        = errors.New("failed to exchange authorization code")
	ErrUpstreamAPI         = errors.New("calendar provider request failed")
	ErrNotConnected        = errors.New("not connected to google calendar")
	ErrServerMisconfigured = errors.New("server configuration error")
	ErrUnknownAction       = errors.New("unknown action")

	ErrTokenNotFound        = errors.New("token not found")
	ErrMeetingNotFound      = errors.New("meeting not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrEventNotFound        = errors.New("calendar event not found")
)

// InvalidAttendeeError names every address that failed validation.
type InvalidAttendeeError struct {
	Emails []string
}

func (e *InvalidAttendeeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidAttendee, strings.Join(e.Emails, ", "))
}

func (e *InvalidAttendeeError) Is(target error) bool {
	return target == ErrInvalidAttendee
}

func InvalidRequest(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
