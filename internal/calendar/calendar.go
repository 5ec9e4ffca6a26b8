package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Olami1998/connectnow-suite/pkg/metrics"
	"github.com/Olami1998/connectnow-suite/pkg/models"
)

const primaryCalendar = "primary"

var Scopes = []string{
	calendar.CalendarEventsScope,
	calendar.CalendarReadonlyScope,
}

// Google talks to Google's OAuth endpoints and the Calendar API on behalf of one user
// at a time; it keeps no per-user state.
type Google struct {
	log         *logrus.Entry
	oauth       oauth2.Config
	httpClient  *http.Client
	apiEndpoint string
}

type Option func(*Google)

// WithEndpoints points the provider at non-Google token and API endpoints.
func WithEndpoints(authURL, tokenURL, apiEndpoint string) Option {
	return func(g *Google) {
		g.oauth.Endpoint = oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}
		g.apiEndpoint = apiEndpoint
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(g *Google) {
		g.httpClient = client
	}
}

func New(log *logrus.Logger, clientID, clientSecret string, opts ...Option) *Google {
	g := &Google{
		log: log.WithField("module", "calendar"),
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       Scopes,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Google) config(redirectURI string) *oauth2.Config {
	c := g.oauth
	c.RedirectURL = redirectURI
	return &c
}

func (g *Google) context(ctx context.Context) context.Context {
	if g.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

// AuthCodeURL asks for offline access with a forced consent prompt so Google always
// returns a refresh token.
func (g *Google) AuthCodeURL(redirectURI, state string) string {
	return g.config(redirectURI).AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (g *Google) Exchange(ctx context.Context, code, redirectURI string) (models.ProviderToken, error) {
	tok, err := g.config(redirectURI).Exchange(g.context(ctx), code)
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("exchange", "error").Inc()
		g.logRetrieveError("token exchange failed", err)
		return models.ProviderToken{}, fmt.Errorf("exchange code: %w", err)
	}
	metrics.UpstreamCalls.WithLabelValues("exchange", "ok").Inc()
	return toProviderToken(tok), nil
}

func (g *Google) Refresh(ctx context.Context, refreshToken string) (models.ProviderToken, error) {
	src := g.oauth.TokenSource(g.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("refresh", "error").Inc()
		g.logRetrieveError("token refresh failed", err)
		return models.ProviderToken{}, fmt.Errorf("refresh token: %w", err)
	}
	metrics.UpstreamCalls.WithLabelValues("refresh", "ok").Inc()
	return toProviderToken(tok), nil
}

func (g *Google) logRetrieveError(msg string, err error) {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		g.log.WithField("status", status).Errorf("%s: %s", msg, string(rErr.Body))
		return
	}
	g.log.Errorf("%s: %v", msg, err)
}

// toProviderToken prefers the raw expires_in the token endpoint reported over the
// absolute expiry oauth2 derives from the local clock.
func toProviderToken(tok *oauth2.Token) models.ProviderToken {
	result := models.ProviderToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		result.ExpiresIn = time.Duration(v) * time.Second
	case int64:
		result.ExpiresIn = time.Duration(v) * time.Second
	default:
		if !tok.Expiry.IsZero() {
			result.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
		}
	}
	return result
}

func (g *Google) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	ctx = g.context(ctx)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(g.apiEndpoint))
	}
	srv, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar client: %w", err)
	}
	return srv, nil
}

func (g *Google) InsertEvent(ctx context.Context, accessToken string, event models.CalendarEvent) (models.CreatedEvent, error) {
	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return models.CreatedEvent{}, err
	}
	attendees := make([]*calendar.EventAttendee, 0, len(event.Attendees))
	for _, email := range event.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	item := &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Start: &calendar.EventDateTime{
			DateTime: event.Start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: event.End.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Attendees: attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: event.ConferenceRequestID,
			},
		},
	}
	created, err := srv.Events.Insert(primaryCalendar, item).ConferenceDataVersion(1).Context(ctx).Do()
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("insert_event", "error").Inc()
		g.logAPIError("calendar insert failed", err)
		return models.CreatedEvent{}, fmt.Errorf("insert event: %w", err)
	}
	metrics.UpstreamCalls.WithLabelValues("insert_event", "ok").Inc()
	return models.CreatedEvent{ID: created.Id, Link: created.HtmlLink}, nil
}

// DeleteEvent returns models.ErrEventNotFound when Google reports 404.
func (g *Google) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	srv, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}
	err = srv.Events.Delete(primaryCalendar, eventID).Context(ctx).Do()
	var apiErr *googleapi.Error
	switch {
	case err == nil:
		metrics.UpstreamCalls.WithLabelValues("delete_event", "ok").Inc()
		return nil
	case errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound:
		metrics.UpstreamCalls.WithLabelValues("delete_event", "not_found").Inc()
		return fmt.Errorf("delete event %s: %w", eventID, models.ErrEventNotFound)
	default:
		metrics.UpstreamCalls.WithLabelValues("delete_event", "error").Inc()
		g.logAPIError("calendar delete failed", err)
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
}

func (g *Google) logAPIError(msg string, err error) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		g.log.WithField("status", apiErr.Code).Errorf("%s: %s", msg, apiErr.Body)
		return
	}
	g.log.Errorf("%s: %v", msg, err)
}
