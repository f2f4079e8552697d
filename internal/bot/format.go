package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"headlines/internal/model"
	"headlines/internal/paginate"
	"headlines/internal/pipeline"
)

const timeLayout = "2006-01-02 15:04 UTC"

// FormatPage renders one page of headlines.
func FormatPage(kind model.Kind, cat model.Category, p paginate.Page) string {
	title := "News"
	if kind == model.KindSocial {
		title = "Social"
	}
	if cat != "" {
		title += " [" + string(cat) + "]"
	}

	if p.Total == 0 {
		return fmt.Sprintf("%s: nothing to show yet.", title)
	}
	if len(p.Items) == 0 {
		return fmt.Sprintf("%s: page %d is past the end (%d pages).", title, p.Page, p.TotalPages)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s, page %d of %d (%d total)\n", title, p.Page, p.TotalPages, p.Total)
	offset := (p.Page - 1) * p.PageSize
	for i, r := range p.Items {
		b.WriteString("\n")
		b.WriteString(FormatRecord(offset+i+1, r))
	}
	return b.String()
}

// FormatRecord renders a single numbered headline.
func FormatRecord(n int, r model.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s\n", n, r.Headline)
	fmt.Fprintf(&b, "   %s, %s, %s", r.Source, time.UnixMilli(r.Timestamp).UTC().Format(timeLayout), r.Category)
	if len(r.Tickers) > 0 {
		fmt.Fprintf(&b, ", $%s", strings.Join(r.Tickers, " $"))
	}
	b.WriteString("\n")
	if r.URL != "" {
		fmt.Fprintf(&b, "   %s\n", r.URL)
	}
	return b.String()
}

// FormatStatus renders per-source refresh state.
func FormatStatus(st pipeline.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sources (%d fetches total):\n", st.TotalFetches)
	for _, t := range model.SourceTypes() {
		s, ok := st.Sources[t]
		if !ok {
			continue
		}
		last := "never"
		if s.LastRefresh > 0 {
			last = time.UnixMilli(s.LastRefresh).UTC().Format(timeLayout)
		}
		fmt.Fprintf(&b, "\n%s: every %d min, last refresh %s, %d fetches\n", t, s.RefreshInterval, last, s.TotalFetches)
		if n := len(s.RecentErrors); n > 0 {
			fmt.Fprintf(&b, "   last error: %s\n", s.RecentErrors[n-1])
		}
	}
	return b.String()
}

// FormatRefresh summarizes a refresh cycle.
func FormatRefresh(res pipeline.RefreshResult) string {
	if len(res.Due) == 0 {
		return "Nothing to refresh."
	}

	due := make([]string, len(res.Due))
	for i, t := range res.Due {
		due[i] = string(t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Refreshed %s: %d new, %d duplicates.", strings.Join(due, ", "), res.Admitted, res.Rejected)
	for _, s := range res.Sources {
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "\n%s: %s", s.Source, e)
		}
	}
	return b.String()
}

// pageKeyboard returns Prev/Next buttons, or nil when there is a single page.
func pageKeyboard(kind model.Kind, cat model.Category, p paginate.Page) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if p.HasPrevPage {
		prev := min(p.Page-1, p.TotalPages)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Prev", PageCallback{Kind: kind, Page: prev, Category: cat}.Data()))
	}
	if p.HasNextPage {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next", PageCallback{Kind: kind, Page: p.Page + 1, Category: cat}.Data()))
	}
	if len(row) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(row)
	return &markup
}
