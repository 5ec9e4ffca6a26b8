// Package worker dispatches meeting reminders: it finds meetings starting soon, emails the
// host and participants once each and records in-app notifications.
package worker

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/metrics"
	"github.com/Olami1998/connectnow-suite/pkg/models"
)

const (
	DefaultLookahead = 15 * time.Minute
	DefaultFrom      = "MeetFlow <onboarding@resend.dev>"

	timeLayout = "Monday, January 2, 2006 at 3:04 PM MST"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type Store interface {
	DueMeetings(ctx context.Context, from, to time.Time) ([]models.DueMeeting, error)
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	MarkParticipantReminded(ctx context.Context, meetingID, email string) error
	MarkMeetingReminded(ctx context.Context, meetingID string) error
}

type Mailer interface {
	Send(ctx context.Context, email models.Email) error
}

// ReportSink receives the report of every completed run.
type ReportSink interface {
	Report(ctx context.Context, report models.ReminderReport)
}

type Worker struct {
	log       *logrus.Entry
	store     Store
	mailer    Mailer
	from      string
	lookahead time.Duration
	sinks     []ReportSink
	now       func() time.Time
	mu        sync.Mutex
}

type Option func(*Worker)

func WithFrom(from string) Option {
	return func(w *Worker) {
		if from != "" {
			w.from = from
		}
	}
}

func WithLookahead(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.lookahead = d
		}
	}
}

func WithSink(sink ReportSink) Option {
	return func(w *Worker) {
		w.sinks = append(w.sinks, sink)
	}
}

func New(log *logrus.Logger, store Store, mailer Mailer, opts ...Option) *Worker {
	w := &Worker{
		log:       log.WithField("component", "reminder"),
		store:     store,
		mailer:    mailer,
		from:      DefaultFrom,
		lookahead: DefaultLookahead,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type emailData struct {
	RecipientName   string
	Title           string
	Time            string
	DurationMinutes int
	HostName        string
	Link            string
}

// Run performs one reminder pass. Runs are serialized within the process.
// Only a failure to fetch due meetings aborts the run; delivery and bookkeeping failures
// are recorded per meeting and the pass moves on.
func (w *Worker) Run(ctx context.Context) (models.ReminderReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	meetings, err := w.store.DueMeetings(ctx, now, now.Add(w.lookahead))
	if err != nil {
		metrics.ReminderRuns.WithLabelValues("error").Inc()
		return models.ReminderReport{}, fmt.Errorf("err fetching due meetings: %w", err)
	}
	w.log.Infof("found %d upcoming meetings to send reminders for", len(meetings))

	report := models.ReminderReport{Success: true, Results: make([]models.MeetingResult, 0, len(meetings))}
	for _, meeting := range meetings {
		report.Results = append(report.Results, w.remind(ctx, meeting))
	}
	report.Processed = len(report.Results)
	metrics.ReminderRuns.WithLabelValues("ok").Inc()

	if failed := report.Failed(); failed > 0 {
		w.log.Warnf("reminder run processed %d meetings, %d deliveries failed", report.Processed, failed)
	}
	if failed := report.StoreFailures(); failed > 0 {
		w.log.Warnf("reminder run processed %d meetings, %d with store failures", report.Processed, failed)
	}
	for _, sink := range w.sinks {
		sink.Report(ctx, report)
	}
	return report, nil
}

// remind always flags the meeting, so a failed write never causes a second round of emails.
func (w *Worker) remind(ctx context.Context, meeting models.DueMeeting) models.MeetingResult {
	var storeErrs []error
	result := models.MeetingResult{
		MeetingID: meeting.ID,
		Title:     meeting.Title,
		Status:    models.ReminderStatusSent,
	}
	data := emailData{
		Title:           meeting.Title,
		Time:            meeting.ScheduledAt.UTC().Format(timeLayout),
		DurationMinutes: meeting.DurationMinutes,
		HostName:        meeting.Host.DisplayName("Unknown"),
		Link:            meeting.MeetingLink,
	}

	host := meeting.Host
	switch {
	case host.Email == "":
		w.log.Warnf("meeting %s has no host email", meeting.ID)
	case !models.IsValidEmail(host.Email):
		w.log.Warnf("invalid host email format, skipping: %s", host.Email)
		result.Recipients = append(result.Recipients, models.RecipientResult{
			Email: host.Email, Role: models.RecipientHost, Outcome: models.DeliverySkipped,
		})
	default:
		data.RecipientName = host.DisplayName("there")
		result.Recipients = append(result.Recipients, w.deliver(ctx, host.Email, models.RecipientHost, meeting, data))
		meetingID := meeting.ID
		if _, err := w.store.CreateNotification(ctx, models.Notification{
			UserID:    meeting.HostID,
			Title:     "Meeting starting soon",
			Message:   fmt.Sprintf("Your meeting \"%s\" starts in %d minutes", meeting.Title, w.lookaheadMinutes()),
			Type:      models.NotificationReminder,
			MeetingID: &meetingID,
		}); err != nil {
			w.log.Errorf("err creating host notification for meeting %s: %v", meeting.ID, err)
			storeErrs = append(storeErrs, fmt.Errorf("err creating host notification: %w", err))
		}
	}

	for _, p := range meeting.Participants {
		if p.ReminderSent || p.Email == "" {
			continue
		}
		if !models.IsValidEmail(p.Email) {
			w.log.Warnf("invalid participant email format, skipping: %s", p.Email)
			result.Recipients = append(result.Recipients, models.RecipientResult{
				Email: p.Email, Role: models.RecipientParticipant, Outcome: models.DeliverySkipped,
			})
			continue
		}
		data.RecipientName = "there"
		if p.Name != nil && *p.Name != "" {
			data.RecipientName = *p.Name
		}
		result.Recipients = append(result.Recipients, w.deliver(ctx, p.Email, models.RecipientParticipant, meeting, data))
		// A failed send is not retried on the next run.
		if err := w.store.MarkParticipantReminded(ctx, meeting.ID, p.Email); err != nil {
			w.log.Errorf("err flagging participant %s of meeting %s: %v", p.Email, meeting.ID, err)
			storeErrs = append(storeErrs, fmt.Errorf("err flagging participant %s: %w", p.Email, err))
		}
	}

	if err := w.store.MarkMeetingReminded(ctx, meeting.ID); err != nil {
		w.log.Errorf("err flagging meeting %s: %v", meeting.ID, err)
		storeErrs = append(storeErrs, fmt.Errorf("err flagging meeting: %w", err))
	}
	result.Err = errors.Join(storeErrs...)
	return result
}

func (w *Worker) deliver(ctx context.Context, to string, role models.RecipientRole, meeting models.DueMeeting, data emailData) models.RecipientResult {
	rr := models.RecipientResult{Email: to, Role: role, Outcome: models.DeliverySent}
	html, err := render(role, data)
	if err == nil {
		err = w.mailer.Send(ctx, models.Email{
			From:    w.from,
			To:      []string{to},
			Subject: fmt.Sprintf("Reminder: \"%s\" starts in %d minutes", meeting.Title, w.lookaheadMinutes()),
			HTML:    html,
		})
	}
	if err != nil {
		w.log.Errorf("failed to send reminder to %s %s: %v", role, to, err)
		rr.Outcome = models.DeliveryFailed
		rr.Err = err
	} else {
		w.log.Infof("sent reminder to %s: %s", role, to)
	}
	metrics.ReminderEmails.WithLabelValues(string(role), string(rr.Outcome)).Inc()
	return rr
}

func (w *Worker) lookaheadMinutes() int {
	return int(w.lookahead / time.Minute)
}

func render(role models.RecipientRole, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(role)+".html", data); err != nil {
		return "", fmt.Errorf("render %s email: %w", role, err)
	}
	return buf.String(), nil
}

// Loop runs the reminder pass every interval until ctx is done.
func (w *Worker) Loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	w.log.Infof("reminder loop started, interval %s", interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("reminder loop stopped")
			return
		case <-ticker.C:
			if _, err := w.Run(ctx); err != nil {
				w.log.Errorf("reminder run failed: %v", err)
			}
		}
	}
}
