package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Data returns the raw callback data of the update, if any.
// Telebot-style "\f<unique>|<payload>" data is reduced to its payload part.
func Data(c tele.Context) string {
	if c == nil {
		return ""
	}
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	raw := cb.Data
	if strings.HasPrefix(raw, "\f") {
		raw = strings.TrimPrefix(raw, "\f")
		if i := strings.IndexByte(raw, '|'); i >= 0 {
			return raw[i+1:]
		}
		return ""
	}
	return raw
}

// PayloadOf decodes the callback data carried by c.
func PayloadOf(c tele.Context) Payload {
	return Decode(Data(c))
}
