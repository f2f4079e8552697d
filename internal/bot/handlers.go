package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"headlines/internal/model"
	"headlines/internal/paginate"
	"headlines/internal/pipeline"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to the headlines bot!

Financial news and social chatter from several sources, deduplicated and newest first.

Quick start:
/news - latest news
/social - latest social posts

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Headlines:
/news [page] [category] - news headlines
/social [page] [category] - social posts

Sources:
/status - refresh state of every source
/refresh - fetch all sources now

Categories: markets, crypto, politics, tech, personal-finance, earnings, general`)
}

func (b *Bot) handleNews(chatID int64, args string) {
	b.handlePageCommand(chatID, model.KindNews, args)
}

func (b *Bot) handleSocial(chatID int64, args string) {
	b.handlePageCommand(chatID, model.KindSocial, args)
}

func (b *Bot) handlePageCommand(chatID int64, kind model.Kind, args string) {
	pa, err := ParsePageArgs(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s [page] [category]\n%v", kind, err))
		return
	}

	records := b.svc.Headlines()
	if len(records) == 1 && records[0].ID == pipeline.NoDataID {
		b.reply(chatID, fmt.Sprintf("%s\n%s", records[0].Headline, records[0].Summary))
		return
	}

	text, kb := b.renderPage(records, kind, pa.Page, pa.Category)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = kb
	}
	b.send(msg)
}

func (b *Bot) renderPage(records []model.Record, kind model.Kind, page int, cat model.Category) (string, *tgbotapi.InlineKeyboardMarkup) {
	p := paginate.Paginate(records, paginate.Filter{Kind: kind, Category: cat}, page, b.pageSize)
	return FormatPage(kind, cat, p), pageKeyboard(kind, cat, p)
}

func (b *Bot) handleStatus(chatID int64) {
	b.reply(chatID, FormatStatus(b.svc.Status()))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64) {
	res, err := b.svc.Refresh(ctx, true)
	text := FormatRefresh(res)
	if err != nil {
		b.log.Error("refresh from chat", "chat_id", chatID, "error", err)
		text += fmt.Sprintf("\nSaving failed: %v", err)
	}
	b.reply(chatID, text)
}
