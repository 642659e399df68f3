package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/keyboard"
	"github.com/m3rciful/menubot/core/telegram/screen"
	tgsender "github.com/m3rciful/menubot/core/telegram/sender"
	"github.com/m3rciful/menubot/core/telegram/session"

	tele "gopkg.in/telebot.v4"
)

type fakeBot struct {
	sent      []*tele.SendOptions
	texts     []interface{}
	edited    []tele.Editable
	responded []*tele.Callback
	editErr   error
}

func (f *fakeBot) Send(_ tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.texts = append(f.texts, what)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.sent = append(f.sent, so)
		}
	}
	return &tele.Message{ID: 77}, nil
}

func (f *fakeBot) Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error) {
	f.edited = append(f.edited, msg)
	f.texts = append(f.texts, what)
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &tele.Message{}, nil
}

func (f *fakeBot) Respond(c *tele.Callback, _ ...*tele.CallbackResponse) error {
	f.responded = append(f.responded, c)
	return nil
}

func TestTeleTransportSendAndEdit(t *testing.T) {
	ctx := context.Background()
	bot := &fakeBot{}
	tr := NewTeleTransport(bot, nil)
	out := Render{
		Text:      "*Menu*",
		ParseMode: "Markdown",
		Keyboard:  [][]keyboard.Button{{{Text: "Go", Data: "abc"}}},
		Screen:    "Menu",
	}

	id, err := tr.Send(ctx, 5, out)
	if err != nil || id != 77 {
		t.Fatalf("send = %d, %v", id, err)
	}
	if len(bot.sent) != 1 || bot.sent[0].ParseMode != tele.ModeMarkdown || bot.sent[0].ReplyMarkup == nil {
		t.Fatalf("send options = %+v", bot.sent)
	}

	if err := tr.Edit(ctx, 5, 12, out); err != nil {
		t.Fatal(err)
	}
	msgID, chatID := bot.edited[0].MessageSig()
	if msgID != "12" || chatID != 5 {
		t.Fatalf("edited %s in %d", msgID, chatID)
	}
}

func TestTeleTransportUnchangedEditFails(t *testing.T) {
	bot := &fakeBot{editErr: errors.New("telegram: Bad Request: message is not modified (400)")}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1})
	defer d.Close()
	out := Render{Text: "same", Screen: "Menu"}

	err := NewTeleTransport(bot, d).Edit(context.Background(), 5, 12, out)
	if !errors.Is(err, tgsender.ErrNotModified) {
		t.Fatalf("unchanged edit = %v, want ErrNotModified", err)
	}
	err = NewTeleTransport(bot, nil).Edit(context.Background(), 5, 12, out)
	if !errors.Is(err, tgsender.ErrNotModified) {
		t.Fatalf("unchanged edit without sender = %v", err)
	}
	if d.Failed() != 0 {
		t.Fatalf("failed = %d", d.Failed())
	}
}

func TestUnchangedEditSendsNewMessage(t *testing.T) {
	ctx := context.Background()
	menu := &screen.Base{TypeName: "Menu", TitleText: "Menu"}
	reg := NewRegistry(nil)
	if err := reg.Register(ctx, menu); err != nil {
		t.Fatal(err)
	}
	id, _ := reg.ID("Menu")
	store := session.NewMemoryStore()
	sess, err := store.Load(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	sess.StandingMessageID = 12
	if err := store.Commit(ctx, sess); err != nil {
		t.Fatal(err)
	}

	bot := &fakeBot{editErr: errors.New("telegram: Bad Request: message is not modified (400)")}
	engine, err := NewEngine(EngineOptions{Registry: reg, Sessions: store, Transport: NewTeleTransport(bot, nil)})
	if err != nil {
		t.Fatal(err)
	}
	ev := &screen.Event{
		Kind:      screen.KindCallback,
		UserID:    5,
		ChatID:    5,
		MessageID: 12,
		Data:      callbacks.MustEncode(callbacks.Payload{Target: id}),
	}
	if err := engine.Handle(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if len(bot.edited) != 1 || len(bot.sent) != 1 {
		t.Fatalf("edits=%d sends=%d, want an edit then a send", len(bot.edited), len(bot.sent))
	}
	after, _ := store.Load(ctx, 5)
	if after.StandingMessageID != 77 {
		t.Fatalf("standing message = %d, want 77", after.StandingMessageID)
	}
}

func TestTeleTransportAckThroughSender(t *testing.T) {
	bot := &fakeBot{}
	d := tgsender.NewDispatcher(tgsender.Options{Workers: 1, QueueSize: 4})
	tr := NewTeleTransport(bot, d)

	cb := &tele.Callback{ID: "q1"}
	if err := tr.Ack(context.Background(), &screen.Event{Kind: screen.KindCallback, CallbackID: "q1", Raw: cb}); err != nil {
		t.Fatal(err)
	}
	if err := tr.Ack(context.Background(), &screen.Event{Kind: screen.KindText}); err != nil {
		t.Fatal(err)
	}
	d.Close()
	if len(bot.responded) != 1 || bot.responded[0] != cb {
		t.Fatalf("responded = %+v", bot.responded)
	}
}

type eventContext struct {
	tele.Context
	upd tele.Update
}

func (c eventContext) Update() tele.Update      { return c.upd }
func (c eventContext) Callback() *tele.Callback { return c.upd.Callback }
func (c eventContext) Query() *tele.Query       { return c.upd.Query }
func (c eventContext) Message() *tele.Message   { return c.upd.Message }

func (c eventContext) Sender() *tele.User {
	switch {
	case c.upd.Callback != nil:
		return c.upd.Callback.Sender
	case c.upd.Query != nil:
		return c.upd.Query.Sender
	case c.upd.Message != nil:
		return c.upd.Message.Sender
	}
	return nil
}

func (c eventContext) Chat() *tele.Chat {
	if c.upd.Message != nil {
		return c.upd.Message.Chat
	}
	return nil
}

func TestEventFromContext(t *testing.T) {
	user := &tele.User{ID: 9, Username: "neo", FirstName: "Thomas", LanguageCode: "ru"}

	cmd := EventFromContext(eventContext{upd: tele.Update{ID: 1, Message: &tele.Message{
		ID: 3, Text: "/Start@menubot ref42", Sender: user, Chat: &tele.Chat{ID: 9},
	}}})
	if cmd.Kind != screen.KindCommand || cmd.Command != "start" || cmd.Args != "ref42" {
		t.Fatalf("command event = %+v", cmd)
	}
	if cmd.UserID != 9 || cmd.ChatID != 9 || cmd.LanguageCode != "ru" || cmd.Username != "neo" {
		t.Fatalf("sender fields = %+v", cmd)
	}

	text := EventFromContext(eventContext{upd: tele.Update{ID: 2, Message: &tele.Message{
		Text: "12.5", Sender: user, Chat: &tele.Chat{ID: 9},
	}}})
	if text.Kind != screen.KindText || text.Text != "12.5" {
		t.Fatalf("text event = %+v", text)
	}

	cb := &tele.Callback{ID: "c1", Data: "payload", Sender: user, Message: &tele.Message{ID: 44, Chat: &tele.Chat{ID: 9}}}
	press := EventFromContext(eventContext{upd: tele.Update{ID: 3, Callback: cb}})
	if press.Kind != screen.KindCallback || press.Data != "payload" || press.MessageID != 44 || press.ChatID != 9 {
		t.Fatalf("callback event = %+v", press)
	}
	if press.Raw != cb || press.CallbackID != "c1" {
		t.Fatal("callback not kept for acknowledgement")
	}

	q := EventFromContext(eventContext{upd: tele.Update{Query: &tele.Query{Text: "pay", Sender: user}}})
	if q.Kind != screen.KindInlineQuery || q.Query != "pay" {
		t.Fatalf("inline event = %+v", q)
	}
}

func TestSplitCommand(t *testing.T) {
	cases := map[string][3]string{
		"/start":      {"start", "", "true"},
		"/help@bot":   {"help", "", "true"},
		"/pay 10 usd": {"pay", "10 usd", "true"},
		"  /MENU  ":   {"menu", "", "true"},
		"hello":       {"", "", "false"},
		"/":           {"", "", "false"},
		"/@bot":       {"", "", "false"},
	}
	for in, want := range cases {
		cmd, args, ok := splitCommand(in)
		got := [3]string{cmd, args, "false"}
		if ok {
			got[2] = "true"
		}
		if got != want {
			t.Fatalf("%q -> %v, want %v", in, got, want)
		}
	}
}
