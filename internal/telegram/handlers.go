package telegram

import (
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

func (t *Telegram) initHandlers() {
	t.bot.Handle(cmdStart, t.startHandler)
	ops := t.bot.Group()
	ops.Use(t.operatorOnly)
	ops.Handle(cmdLast, t.lastHandler)
	ops.Handle(&refreshBtn, t.refreshHandler)
	ops.Handle(tele.OnText, t.textHandler)
}

// operatorOnly drops updates from any chat other than the configured operator chat.
func (t *Telegram) operatorOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(ctx tele.Context) error {
		chat := ctx.Chat()
		if t.chatID == 0 || chat == nil || chat.ID != t.chatID {
			if chat != nil {
				t.log.Warnf("ignoring update from chat %d", chat.ID)
			}
			return nil
		}
		return next(ctx)
	}
}

func (t *Telegram) startHandler(ctx tele.Context) error {
	msg := fmt.Sprintf("Reminder digests are posted here.\nThis chat id: %d\nUse %s for the latest run.", ctx.Chat().ID, cmdLast)
	if err := ctx.Send(msg); err != nil {
		return fmt.Errorf("tg send message faild: %w", err)
	}
	return nil
}

func (t *Telegram) lastHandler(ctx tele.Context) error {
	if err := ctx.Send(t.lastDigest(), digestMarkup); err != nil {
		return fmt.Errorf("tg send message faild: %w", err)
	}
	return nil
}

func (t *Telegram) refreshHandler(ctx tele.Context) error {
	return ctx.Edit(t.lastDigest(), digestMarkup)
}

func (t *Telegram) textHandler(ctx tele.Context) error {
	if err := ctx.Send("Unknown command, try " + cmdLast); err != nil {
		return fmt.Errorf("tg send message faild: %w", err)
	}
	return nil
}

func formatDigest(report models.ReminderReport, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reminder run at %s\n", at.UTC().Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Meetings processed: %d\n", report.Processed)
	if failed := report.Failed(); failed > 0 {
		fmt.Fprintf(&b, "Failed deliveries: %d\n", failed)
	}
	if failed := report.StoreFailures(); failed > 0 {
		fmt.Fprintf(&b, "Store failures: %d\n", failed)
	}
	for _, m := range report.Results {
		var sent, failed, skipped int
		for _, rc := range m.Recipients {
			switch rc.Outcome {
			case models.DeliverySent:
				sent++
			case models.DeliveryFailed:
				failed++
			case models.DeliverySkipped:
				skipped++
			}
		}
		fmt.Fprintf(&b, "- %s: %d sent", m.Title, sent)
		if failed > 0 {
			fmt.Fprintf(&b, ", %d failed", failed)
		}
		if skipped > 0 {
			fmt.Fprintf(&b, ", %d skipped", skipped)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
