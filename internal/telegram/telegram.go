// Package telegram posts reminder run digests to an operator chat and answers /last.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/Olami1998/connectnow-suite/pkg/models"
)

const cmdStart = "/start"
const cmdLast = "/last"

type Telegram struct {
	log    *logrus.Entry
	bot    *tele.Bot
	chatID int64
	now    func() time.Time

	mu     sync.Mutex
	last   *models.ReminderReport
	lastAt time.Time
}

func New(log *logrus.Logger, bot *tele.Bot, chatID int64) (*Telegram, error) {
	if bot == nil {
		return nil, fmt.Errorf("new telegram faild: nil bot")
	}
	t := Telegram{
		log:    log.WithField("component", "telegram"),
		bot:    bot,
		chatID: chatID,
		now:    time.Now,
	}
	t.initButtons()
	t.initHandlers()
	return &t, nil
}

func NewBot(token string) (*tele.Bot, error) {
	config := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(config)
	if err != nil {
		return nil, fmt.Errorf("new bot faild: %w", err)
	}
	return b, nil
}

// Report keeps the report for /last and posts its digest to the operator chat, if one is set.
func (t *Telegram) Report(_ context.Context, report models.ReminderReport) {
	t.mu.Lock()
	t.last = &report
	t.lastAt = t.now()
	msg := formatDigest(report, t.lastAt)
	t.mu.Unlock()

	if t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tele.ChatID(t.chatID), msg, digestMarkup); err != nil {
		t.log.Errorf("tg send digest faild: %v", err)
	}
}

func (t *Telegram) lastDigest() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return "No reminder runs yet."
	}
	return formatDigest(*t.last, t.lastAt)
}

func (t *Telegram) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		t.bot.Stop()
	}()
	t.log.Infof("Starting telegram bot as %v", t.bot.Me.Username)
	t.bot.Start()
}
