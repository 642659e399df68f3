package ui

import tele "gopkg.in/telebot.v4"

// Article is one inline query answer.
type Article struct {
	ID          string
	Title       string
	Description string
	Text        string
}

// NewSimpleArticleResult creates an ArticleResult with given ID, title and content.
func NewSimpleArticleResult(id, title, text string) *tele.ArticleResult {
	result := &tele.ArticleResult{
		Title: title,
		Text:  text,
	}
	result.SetResultID(id)
	return result
}

// Results converts articles into telebot inline results, skipping ones without text.
func Results(articles []Article) tele.Results {
	out := make(tele.Results, 0, len(articles))
	for _, a := range articles {
		if a.ID == "" || a.Text == "" {
			continue
		}
		r := NewSimpleArticleResult(a.ID, a.Title, a.Text)
		r.Description = a.Description
		out = append(out, r)
	}
	return out
}
