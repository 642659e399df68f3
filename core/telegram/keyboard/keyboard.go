// Package keyboard turns compiled button rows into telebot inline markup.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one compiled inline button. Exactly one of Data, URL and WebApp
// is expected to be set.
type Button struct {
	Text   string
	Data   string
	URL    string
	WebApp string
}

// Inline builds an inline keyboard from rows. Empty rows are skipped; nil is
// returned when nothing is left.
func Inline(rows [][]Button) *tele.ReplyMarkup {
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, b.inline())
		}
		inline = append(inline, r)
	}
	if len(inline) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

func (b Button) inline() tele.InlineButton {
	btn := tele.InlineButton{Text: b.Text}
	switch {
	case b.URL != "":
		btn.URL = b.URL
	case b.WebApp != "":
		btn.WebApp = &tele.WebApp{URL: b.WebApp}
	default:
		btn.Data = b.Data
	}
	return btn
}

// Chunk splits a flat list into rows of up to n items. n <= 1 yields one item per row.
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		end := i + n
		if end > len(items) {
			end = len(items)
		}
		rows = append(rows, items[i:end])
	}
	return rows
}

// Count returns the number of buttons in rows.
func Count(rows [][]Button) int {
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	return n
}
