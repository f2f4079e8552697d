package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdNews   = "news"
	cmdSocial = "social"
)

// handleCallback turns a Prev/Next press into an edit of the page message.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	pc, err := ParsePageCallback(cb.Data)
	if err != nil {
		b.log.Warn("bad callback", "data", cb.Data, "error", err)
		return
	}

	b.log.Info("callback",
		"kind", pc.Kind,
		"page", pc.Page,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	text, kb := b.renderPage(b.svc.Headlines(), pc.Kind, pc.Page, pc.Category)
	edit := tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID, text)
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = kb
	b.send(edit)
}
