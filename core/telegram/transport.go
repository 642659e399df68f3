package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/keyboard"
	"github.com/m3rciful/menubot/core/telegram/middleware"
	"github.com/m3rciful/menubot/core/telegram/screen"
	tgsender "github.com/m3rciful/menubot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Render is a compiled screen ready for delivery.
type Render struct {
	Text      string
	ParseMode string
	Keyboard  [][]keyboard.Button
	// Screen names the compiled screen, used for logging.
	Screen string
}

// Transport delivers compiled screens to the chat platform.
type Transport interface {
	// Send posts a new message and returns its id.
	Send(ctx context.Context, chatID int64, r Render) (int, error)
	// Edit replaces text and keyboard of an existing message.
	Edit(ctx context.Context, chatID int64, messageID int, r Render) error
	// Ack answers a button press so the client stops its spinner.
	Ack(ctx context.Context, ev *screen.Event) error
}

// BotAPI is the subset of *tele.Bot the transport calls.
type BotAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// TeleTransport delivers through telebot. Sends and edits go through the
// sender's synchronous retry path; acks are queued.
type TeleTransport struct {
	api    BotAPI
	sender *tgsender.Dispatcher
}

// NewTeleTransport wraps api. A nil dispatcher calls the API directly.
func NewTeleTransport(api BotAPI, d *tgsender.Dispatcher) *TeleTransport {
	return &TeleTransport{api: api, sender: d}
}

func sendOptions(r Render) *tele.SendOptions {
	opts := &tele.SendOptions{ParseMode: tele.ParseMode(r.ParseMode)}
	if kb := keyboard.Inline(r.Keyboard); kb != nil {
		opts.ReplyMarkup = kb
	}
	return opts
}

func (t *TeleTransport) do(ctx context.Context, action, endpoint string, fn func() error) error {
	if t.sender == nil {
		return fn()
	}
	return t.sender.Do(ctx, action, endpoint, fn)
}

func (t *TeleTransport) Send(ctx context.Context, chatID int64, r Render) (int, error) {
	var msg *tele.Message
	err := t.do(ctx, "send", r.Screen, func() error {
		m, err := t.api.Send(tele.ChatID(chatID), r.Text, sendOptions(r))
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return 0, err
	}
	middleware.Track(ctx, false, len(r.Keyboard) > 0)
	if msg == nil {
		return 0, nil
	}
	return msg.ID, nil
}

func (t *TeleTransport) Edit(ctx context.Context, chatID int64, messageID int, r Render) error {
	target := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	err := t.do(ctx, "edit", r.Screen, func() error {
		_, err := t.api.Edit(target, r.Text, sendOptions(r))
		return err
	})
	if err != nil {
		if tgsender.NotModified(err) && !errors.Is(err, tgsender.ErrNotModified) {
			err = fmt.Errorf("%w: %w", tgsender.ErrNotModified, err)
		}
		return err
	}
	middleware.Track(ctx, true, len(r.Keyboard) > 0)
	return nil
}

func (t *TeleTransport) Ack(ctx context.Context, ev *screen.Event) error {
	if ev == nil || !ev.IsCallback() {
		return nil
	}
	cb, ok := ev.Raw.(*tele.Callback)
	if !ok || cb == nil {
		if ev.CallbackID == "" {
			return nil
		}
		cb = &tele.Callback{ID: ev.CallbackID}
	}
	run := func() error { return t.api.Respond(cb) }
	if t.sender == nil {
		return run()
	}
	return t.sender.Enqueue(ctx, "answer_callback", "callback", run)
}

// EventFromContext converts a telebot update into an engine event.
func EventFromContext(c tele.Context) *screen.Event {
	ev := &screen.Event{UpdateID: c.Update().ID}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.Username = u.Username
		ev.FirstName = u.FirstName
		ev.LastName = u.LastName
		ev.LanguageCode = u.LanguageCode
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}

	switch {
	case c.Callback() != nil:
		cb := c.Callback()
		ev.Kind = screen.KindCallback
		ev.Data = callbacks.Data(c)
		ev.CallbackID = cb.ID
		ev.Raw = cb
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
			if ev.ChatID == 0 && cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
	case c.Query() != nil:
		ev.Kind = screen.KindInlineQuery
		ev.Query = c.Query().Text
		ev.Raw = c.Query()
	case c.Message() != nil:
		m := c.Message()
		ev.Text = m.Text
		ev.Raw = m
		if cmd, args, ok := splitCommand(m.Text); ok {
			ev.Kind = screen.KindCommand
			ev.Command = cmd
			ev.Args = args
		} else {
			ev.Kind = screen.KindText
		}
	}
	return ev
}

// splitCommand parses "/name@bot args" into name and args.
func splitCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}
	head, args, _ := strings.Cut(text, " ")
	head = strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(args), true
}
