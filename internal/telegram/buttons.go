package telegram

import tele "gopkg.in/telebot.v3"

func (t *Telegram) initButtons() {
	digestMarkup.Inline(
		digestMarkup.Row(refreshBtn))
}

var (
	digestMarkup = &tele.ReplyMarkup{}
	refreshBtn   = digestMarkup.Data("Refresh", "refresh")
)
