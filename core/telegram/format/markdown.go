package format

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

// Parse modes as Telegram spells them.
const (
	ModeMarkdown   = "Markdown"
	ModeMarkdownV2 = "MarkdownV2"
	ModeHTML       = "HTML"
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

var (
	mdV1Re       = regexp.MustCompile(`([_*\\\[` + "`" + `])`)
	mdV2Replacer = newEscaper(mdV2Specials)
)

func newEscaper(specials string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(specials))
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		if entityType == "pre" || entityType == "code" {
			return strings.NewReplacer(`\`, `\\`, "`", "\\`").Replace(text), nil
		}
		return mdV2Replacer.Replace(text), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Escape escapes text for the given parse mode. Unknown or empty modes leave
// text untouched.
func Escape(text, parseMode string) string {
	var out string
	switch parseMode {
	case ModeMarkdown:
		out, _ = EscapeMarkdown(text, MarkdownV1, "")
	case ModeMarkdownV2:
		out, _ = EscapeMarkdown(text, MarkdownV2, "")
	case ModeHTML:
		out = html.EscapeString(text)
	default:
		out = text
	}
	return out
}

// Bold wraps already escaped text in the bold markup of parseMode.
func Bold(text, parseMode string) string {
	if text == "" {
		return ""
	}
	switch parseMode {
	case ModeMarkdown, ModeMarkdownV2:
		return "*" + text + "*"
	case ModeHTML:
		return "<b>" + text + "</b>"
	default:
		return text
	}
}

// Italic wraps already escaped text in the italic markup of parseMode.
func Italic(text, parseMode string) string {
	if text == "" {
		return ""
	}
	switch parseMode {
	case ModeMarkdown, ModeMarkdownV2:
		return "_" + text + "_"
	case ModeHTML:
		return "<i>" + text + "</i>"
	default:
		return text
	}
}
