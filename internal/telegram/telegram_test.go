package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

var runAt = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func TestFormatDigest(t *testing.T) {
	report := models.ReminderReport{
		Success:   true,
		Processed: 2,
		Results: []models.MeetingResult{
			{
				Title: "Design review",
				Recipients: []models.RecipientResult{
					{Email: "h@example.com", Role: models.RecipientHost, Outcome: models.DeliverySent},
					{Email: "p@example.com", Role: models.RecipientParticipant, Outcome: models.DeliveryFailed, Err: errors.New("550")},
					{Email: "bad", Role: models.RecipientParticipant, Outcome: models.DeliverySkipped},
				},
			},
			{
				Title: "Standup",
				Recipients: []models.RecipientResult{
					{Email: "h@example.com", Role: models.RecipientHost, Outcome: models.DeliverySent},
				},
			},
		},
	}

	want := "Reminder run at 2026-06-01 09:00 UTC\n" +
		"Meetings processed: 2\n" +
		"Failed deliveries: 1\n" +
		"- Design review: 1 sent, 1 failed, 1 skipped\n" +
		"- Standup: 1 sent"
	require.Equal(t, want, formatDigest(report, runAt))
}

func TestFormatDigestEmpty(t *testing.T) {
	require.Equal(t, "Reminder run at 2026-06-01 09:00 UTC\nMeetings processed: 0",
		formatDigest(models.ReminderReport{Success: true, Results: []models.MeetingResult{}}, runAt))
}

func TestReportKeepsLastRun(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	tg, err := New(logrus.New(), bot, 0)
	require.NoError(t, err)
	tg.now = func() time.Time { return runAt }

	require.Equal(t, "No reminder runs yet.", tg.lastDigest())

	tg.Report(context.Background(), models.ReminderReport{Success: true, Processed: 0})
	require.Equal(t, "Reminder run at 2026-06-01 09:00 UTC\nMeetings processed: 0", tg.lastDigest())
}

func TestOperatorOnly(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	tg, err := New(logrus.New(), bot, 42)
	require.NoError(t, err)

	var calls int
	handler := tg.operatorOnly(func(tele.Context) error {
		calls++
		return nil
	})
	update := func(chatID int64) tele.Context {
		return bot.NewContext(tele.Update{Message: &tele.Message{Text: cmdLast, Chat: &tele.Chat{ID: chatID}}})
	}

	require.NoError(t, handler(update(7)))
	require.Zero(t, calls)
	require.NoError(t, handler(bot.NewContext(tele.Update{})))
	require.Zero(t, calls)
	require.NoError(t, handler(update(42)))
	require.Equal(t, 1, calls)

	unset, err := New(logrus.New(), bot, 0)
	require.NoError(t, err)
	calls = 0
	require.NoError(t, unset.operatorOnly(func(tele.Context) error {
		calls++
		return nil
	})(update(0)))
	require.Zero(t, calls)
}

func TestFormatDigestStoreFailures(t *testing.T) {
	report := models.ReminderReport{
		Success:   true,
		Processed: 1,
		Results:   []models.MeetingResult{{Title: "Standup", Err: errors.New("connection reset")}},
	}
	require.Equal(t, "Reminder run at 2026-06-01 09:00 UTC\nMeetings processed: 1\nStore failures: 1\n- Standup: 0 sent",
		formatDigest(report, runAt))
}

func TestNewRequiresBot(t *testing.T) {
	_, err := New(logrus.New(), nil, 0)
	require.Error(t, err)
}
