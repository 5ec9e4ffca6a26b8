package pgstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	"github.com/Olami1998/connectnow-suite/pkg/metrics"
	"github.com/Olami1998/connectnow-suite/pkg/models"
	"github.com/Olami1998/connectnow-suite/pkg/secret"
)

//go:embed migrations
var migrations embed.FS

const retries = 3

type Store struct {
	log    *logrus.Entry
	db     *sqlx.DB
	sealer secret.Sealer
}

func NewStore(ctx context.Context, log *logrus.Logger, dsn string, sealer secret.Sealer) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, err
	}
	if sealer == nil {
		sealer = secret.Plain{}
	}
	return &Store{
		log:    log.WithField("component", "pgstore"),
		db:     db,
		sealer: sealer,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(direction migrate.MigrationDirection) error {
	assetDir := func() func(string) ([]string, error) {
		return func(path string) ([]string, error) {
			dirEntry, er := migrations.ReadDir(path)
			if er != nil {
				return nil, er
			}
			entries := make([]string, 0)
			for _, e := range dirEntry {
				entries = append(entries, e.Name())
			}

			return entries, nil
		}
	}()
	asset := migrate.AssetMigrationSource{
		Asset:    migrations.ReadFile,
		AssetDir: assetDir,
		Dir:      "migrations",
	}
	_, err := migrate.Exec(s.db.DB, "postgres", asset, direction)
	return err
}

// validID reports whether id can name a row; meeting and notification ids are UUIDs.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// observe records duration and failures of one store method.
func observe(method string, started time.Time, err error) {
	metrics.PgDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		metrics.PgErrCount.WithLabelValues(method).Inc()
	}
}

func (s *Store) UpsertProfile(ctx context.Context, p models.Profile) (err error) {
	defer func(started time.Time) { observe("UpsertProfile", started, err) }(time.Now())
	query := `
INSERT INTO profiles (id, email, full_name)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE
    SET email = EXCLUDED.email,
    full_name = EXCLUDED.full_name;`
	for i := 0; i < retries; i++ {
		if _, err = s.db.ExecContext(ctx, query, p.ID, p.Email, p.FullName); err != nil {
			continue
		}
		return nil
	}
	return fmt.Errorf("err upserting profile %s: %w", p.ID, err)
}

func (s *Store) GetToken(ctx context.Context, userID string) (models.OAuthToken, error) {
	var (
		token models.OAuthToken
		err   error
	)
	defer func(started time.Time) { observe("GetToken", started, err) }(time.Now())
	query := `
SELECT user_id, access_token, refresh_token, expires_at FROM google_tokens
WHERE user_id = $1;`
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &token, query, userID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.OAuthToken{}, models.ErrTokenNotFound
		case err != nil:
			continue
		}
		return s.openToken(token)
	}
	return models.OAuthToken{}, fmt.Errorf("err getting token for user %s: %w", userID, err)
}

func (s *Store) openToken(token models.OAuthToken) (models.OAuthToken, error) {
	access, err := s.sealer.Open(token.AccessToken)
	if err != nil {
		return models.OAuthToken{}, fmt.Errorf("err opening access token: %w", err)
	}
	token.AccessToken = access
	if token.RefreshToken != nil {
		refresh, err := s.sealer.Open(*token.RefreshToken)
		if err != nil {
			return models.OAuthToken{}, fmt.Errorf("err opening refresh token: %w", err)
		}
		token.RefreshToken = &refresh
	}
	return token, nil
}

func (s *Store) UpsertToken(ctx context.Context, token models.OAuthToken) (err error) {
	defer func(started time.Time) { observe("UpsertToken", started, err) }(time.Now())
	access, err := s.sealer.Seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("err sealing access token: %w", err)
	}
	var refresh *string
	if token.RefreshToken != nil {
		sealed, err := s.sealer.Seal(*token.RefreshToken)
		if err != nil {
			return fmt.Errorf("err sealing refresh token: %w", err)
		}
		refresh = &sealed
	}
	query := `
INSERT INTO google_tokens (user_id, access_token, refresh_token, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
    SET access_token = EXCLUDED.access_token,
    refresh_token = EXCLUDED.refresh_token,
    expires_at = EXCLUDED.expires_at,
    updated_at = now();`
	for i := 0; i < retries; i++ {
		if _, err = s.db.ExecContext(ctx, query, token.UserID, access, refresh, token.ExpiresAt); err != nil {
			continue
		}
		return nil
	}
	return fmt.Errorf("err upserting token for user %s: %w", token.UserID, err)
}

func (s *Store) UpdateAccessToken(ctx context.Context, userID, accessToken string, expiresAt time.Time) (err error) {
	defer func(started time.Time) { observe("UpdateAccessToken", started, err) }(time.Now())
	access, err := s.sealer.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("err sealing access token: %w", err)
	}
	query := `
UPDATE google_tokens
    SET access_token = $2,
    expires_at = $3,
    updated_at = now()
WHERE user_id = $1;`
	var res sql.Result
	for i := 0; i < retries; i++ {
		if res, err = s.db.ExecContext(ctx, query, userID, access, expiresAt); err != nil {
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrTokenNotFound
		}
		return nil
	}
	return fmt.Errorf("err updating token for user %s: %w", userID, err)
}

func (s *Store) SetCalendarEventID(ctx context.Context, meetingID, eventID string) (err error) {
	defer func(started time.Time) { observe("SetCalendarEventID", started, err) }(time.Now())
	if !validID(meetingID) {
		return models.ErrMeetingNotFound
	}
	query := `
UPDATE scheduled_meetings
    SET google_calendar_event_id = $2
WHERE id = $1;`
	var res sql.Result
	for i := 0; i < retries; i++ {
		if res, err = s.db.ExecContext(ctx, query, meetingID, eventID); err != nil {
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrMeetingNotFound
		}
		return nil
	}
	return fmt.Errorf("err setting event for meeting %s: %w", meetingID, err)
}

func (s *Store) CreateMeeting(ctx context.Context, meeting models.ScheduledMeeting, participants []models.MeetingParticipant) (models.ScheduledMeeting, error) {
	var (
		created models.ScheduledMeeting
		err     error
	)
	defer func(started time.Time) { observe("CreateMeeting", started, err) }(time.Now())
	for i := 0; i < retries; i++ {
		if created, err = s.createMeeting(ctx, meeting, participants); err != nil {
			continue
		}
		return created, nil
	}
	return models.ScheduledMeeting{}, fmt.Errorf("err creating meeting: %w", err)
}

func (s *Store) createMeeting(ctx context.Context, meeting models.ScheduledMeeting, participants []models.MeetingParticipant) (models.ScheduledMeeting, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ScheduledMeeting{}, err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warnf("err during rollback: %v", rbErr)
		}
	}()
	var created models.ScheduledMeeting
	query := `
INSERT INTO scheduled_meetings (host_id, title, description, meeting_link, scheduled_at, duration_minutes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING *;`
	if err = tx.GetContext(ctx, &created, query, meeting.HostID, meeting.Title, meeting.Description,
		meeting.MeetingLink, meeting.ScheduledAt, meeting.DurationMinutes); err != nil {
		return models.ScheduledMeeting{}, err
	}
	for _, p := range participants {
		status := p.Status
		if status == "" {
			status = models.ParticipantPending
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO meeting_participants (meeting_id, email, name, status)
VALUES ($1, $2, $3, $4);`, created.ID, p.Email, p.Name, status); err != nil {
			return models.ScheduledMeeting{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return models.ScheduledMeeting{}, err
	}
	return created, nil
}

func (s *Store) GetMeeting(ctx context.Context, id string) (models.ScheduledMeeting, error) {
	var (
		meeting models.ScheduledMeeting
		err     error
	)
	defer func(started time.Time) { observe("GetMeeting", started, err) }(time.Now())
	if !validID(id) {
		return models.ScheduledMeeting{}, models.ErrMeetingNotFound
	}
	query := `
SELECT * FROM scheduled_meetings
WHERE id = $1;`
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &meeting, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.ScheduledMeeting{}, models.ErrMeetingNotFound
		case err != nil:
			continue
		}
		return meeting, nil
	}
	return models.ScheduledMeeting{}, fmt.Errorf("err getting meeting %s: %w", id, err)
}

func (s *Store) ListMeetings(ctx context.Context, hostID string) ([]models.ScheduledMeeting, error) {
	var (
		meetings []models.ScheduledMeeting
		err      error
	)
	defer func(started time.Time) { observe("ListMeetings", started, err) }(time.Now())
	query := `
SELECT * FROM scheduled_meetings
WHERE host_id = $1
ORDER BY scheduled_at;`
	for i := 0; i < retries; i++ {
		meetings = make([]models.ScheduledMeeting, 0)
		if err = s.db.SelectContext(ctx, &meetings, query, hostID); err != nil {
			continue
		}
		return meetings, nil
	}
	return nil, fmt.Errorf("err listing meetings for host %s: %w", hostID, err)
}

func (s *Store) DeleteMeeting(ctx context.Context, id string) (models.ScheduledMeeting, error) {
	var (
		deleted models.ScheduledMeeting
		err     error
	)
	defer func(started time.Time) { observe("DeleteMeeting", started, err) }(time.Now())
	if !validID(id) {
		return models.ScheduledMeeting{}, models.ErrMeetingNotFound
	}
	query := `
DELETE FROM scheduled_meetings
WHERE id = $1
RETURNING *;`
	for i := 0; i < retries; i++ {
		err = s.db.GetContext(ctx, &deleted, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return models.ScheduledMeeting{}, models.ErrMeetingNotFound
		case err != nil:
			continue
		}
		return deleted, nil
	}
	return models.ScheduledMeeting{}, fmt.Errorf("err deleting meeting %s: %w", id, err)
}

func (s *Store) ListParticipants(ctx context.Context, meetingID string) ([]models.MeetingParticipant, error) {
	var (
		participants []models.MeetingParticipant
		err          error
	)
	defer func(started time.Time) { observe("ListParticipants", started, err) }(time.Now())
	query := `
SELECT * FROM meeting_participants
WHERE meeting_id = $1
ORDER BY email;`
	for i := 0; i < retries; i++ {
		participants = make([]models.MeetingParticipant, 0)
		if err = s.db.SelectContext(ctx, &participants, query, meetingID); err != nil {
			continue
		}
		return participants, nil
	}
	return nil, fmt.Errorf("err listing participants of meeting %s: %w", meetingID, err)
}

// DueMeetings returns meetings starting within [from, to] whose reminder is still pending,
// joined with the host profile and the participant list.
func (s *Store) DueMeetings(ctx context.Context, from, to time.Time) ([]models.DueMeeting, error) {
	var (
		meetings []models.DueMeeting
		err      error
	)
	defer func(started time.Time) { observe("DueMeetings", started, err) }(time.Now())
	query := `
SELECT m.*,
       m.host_id                AS "host.id",
       COALESCE(p.email, '')    AS "host.email",
       p.full_name              AS "host.full_name"
FROM scheduled_meetings m
LEFT JOIN profiles p ON p.id = m.host_id
WHERE m.scheduled_at >= $1
  AND m.scheduled_at <= $2
  AND m.reminder_sent = false
ORDER BY m.scheduled_at;`
	for i := 0; i < retries; i++ {
		meetings = make([]models.DueMeeting, 0)
		if err = s.db.SelectContext(ctx, &meetings, query, from, to); err != nil {
			continue
		}
		if err = s.attachParticipants(ctx, meetings); err != nil {
			continue
		}
		return meetings, nil
	}
	return nil, fmt.Errorf("err selecting due meetings: %w", err)
}

func (s *Store) attachParticipants(ctx context.Context, meetings []models.DueMeeting) error {
	if len(meetings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(meetings))
	index := make(map[string]int, len(meetings))
	for i, m := range meetings {
		ids = append(ids, m.ID)
		index[m.ID] = i
	}
	query, args, err := sqlx.In(`
SELECT * FROM meeting_participants
WHERE meeting_id IN (?)
ORDER BY email;`, ids)
	if err != nil {
		return err
	}
	var participants []models.MeetingParticipant
	if err = s.db.SelectContext(ctx, &participants, s.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, p := range participants {
		i := index[p.MeetingID]
		meetings[i].Participants = append(meetings[i].Participants, p)
	}
	return nil
}

func (s *Store) MarkParticipantReminded(ctx context.Context, meetingID, email string) (err error) {
	defer func(started time.Time) { observe("MarkParticipantReminded", started, err) }(time.Now())
	query := `
UPDATE meeting_participants
    SET reminder_sent = true
WHERE meeting_id = $1 AND email = $2;`
	for i := 0; i < retries; i++ {
		if _, err = s.db.ExecContext(ctx, query, meetingID, email); err != nil {
			continue
		}
		return nil
	}
	return fmt.Errorf("err flagging participant %s of meeting %s: %w", email, meetingID, err)
}

func (s *Store) MarkMeetingReminded(ctx context.Context, meetingID string) (err error) {
	defer func(started time.Time) { observe("MarkMeetingReminded", started, err) }(time.Now())
	query := `
UPDATE scheduled_meetings
    SET reminder_sent = true
WHERE id = $1;`
	for i := 0; i < retries; i++ {
		if _, err = s.db.ExecContext(ctx, query, meetingID); err != nil {
			continue
		}
		return nil
	}
	return fmt.Errorf("err flagging meeting %s: %w", meetingID, err)
}

func (s *Store) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var (
		created models.Notification
		err     error
	)
	defer func(started time.Time) { observe("CreateNotification", started, err) }(time.Now())
	query := `
INSERT INTO notifications (user_id, title, message, type, meeting_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING *;`
	for i := 0; i < retries; i++ {
		if err = s.db.GetContext(ctx, &created, query, n.UserID, n.Title, n.Message, n.Type, n.MeetingID); err != nil {
			continue
		}
		return created, nil
	}
	return models.Notification{}, fmt.Errorf("err creating notification for user %s: %w", n.UserID, err)
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var (
		notifications []models.Notification
		err           error
	)
	defer func(started time.Time) { observe("ListNotifications", started, err) }(time.Now())
	query := `
SELECT * FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`
	for i := 0; i < retries; i++ {
		notifications = make([]models.Notification, 0)
		if err = s.db.SelectContext(ctx, &notifications, query, userID, limit); err != nil {
			continue
		}
		return notifications, nil
	}
	return nil, fmt.Errorf("err listing notifications for user %s: %w", userID, err)
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (err error) {
	defer func(started time.Time) { observe("MarkNotificationRead", started, err) }(time.Now())
	if !validID(id) {
		return models.ErrNotificationNotFound
	}
	query := `
UPDATE notifications
    SET read = true
WHERE id = $1 AND user_id = $2;`
	var res sql.Result
	for i := 0; i < retries; i++ {
		if res, err = s.db.ExecContext(ctx, query, id, userID); err != nil {
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return models.ErrNotificationNotFound
		}
		return nil
	}
	return fmt.Errorf("err marking notification %s read: %w", id, err)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	var err error
	defer func(started time.Time) { observe("MarkAllNotificationsRead", started, err) }(time.Now())
	query := `
UPDATE notifications
    SET read = true
WHERE user_id = $1 AND read = false;`
	var res sql.Result
	for i := 0; i < retries; i++ {
		if res, err = s.db.ExecContext(ctx, query, userID); err != nil {
			continue
		}
		n, _ := res.RowsAffected()
		return int(n), nil
	}
	return 0, fmt.Errorf("err marking notifications of user %s read: %w", userID, err)
}

func (s *Store) ResetTables(ctx context.Context, tables []string) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE TABLE `+strings.Join(tables, `, `)+` CASCADE`)
	return err
}
