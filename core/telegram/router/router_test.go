package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	tg "github.com/m3rciful/menubot/core/telegram"
	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/session"
	"github.com/m3rciful/menubot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

type recordingTransport struct {
	mu      sync.Mutex
	screens []string
	acks    int
}

func (r *recordingTransport) Send(_ context.Context, _ int64, out tg.Render) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screens = append(r.screens, out.Screen)
	return len(r.screens), nil
}

func (r *recordingTransport) Edit(_ context.Context, _ int64, _ int, out tg.Render) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screens = append(r.screens, out.Screen)
	return nil
}

func (r *recordingTransport) Ack(context.Context, *screen.Event) error {
	r.mu.Lock()
	r.acks++
	r.mu.Unlock()
	return nil
}

type updateContext struct {
	tele.Context
	upd    tele.Update
	store  map[string]any
	answer *tele.QueryResponse
}

func (c *updateContext) Update() tele.Update      { return c.upd }
func (c *updateContext) Callback() *tele.Callback { return c.upd.Callback }
func (c *updateContext) Query() *tele.Query       { return c.upd.Query }

func (c *updateContext) Message() *tele.Message {
	if c.upd.Callback != nil {
		return c.upd.Callback.Message
	}
	return c.upd.Message
}

func (c *updateContext) Sender() *tele.User {
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

func (c *updateContext) Chat() *tele.Chat {
	if m := c.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (c *updateContext) Text() string {
	if m := c.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (c *updateContext) Answer(resp *tele.QueryResponse) error {
	c.answer = resp
	return nil
}

func (c *updateContext) Get(key string) interface{} { return c.store[key] }

func (c *updateContext) Set(key string, val interface{}) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = val
}

var user = &tele.User{ID: 5, LanguageCode: "en"}

func message(text string) *updateContext {
	return &updateContext{upd: tele.Update{ID: 1, Message: &tele.Message{
		ID: 9, Text: text, Sender: user, Chat: &tele.Chat{ID: 5},
	}}}
}

func press(data string) *updateContext {
	return &updateContext{upd: tele.Update{ID: 2, Callback: &tele.Callback{
		ID: "cb", Data: data, Sender: user,
		Message: &tele.Message{ID: 1, Chat: &tele.Chat{ID: 5}},
	}}}
}

func newEngine(t *testing.T, screens ...screen.Screen) (*tg.Engine, *recordingTransport) {
	t.Helper()
	reg := tg.NewRegistry(nil)
	for _, s := range screens {
		if err := reg.Register(context.Background(), s); err != nil {
			t.Fatal(err)
		}
	}
	tr := &recordingTransport{}
	engine, err := tg.NewEngine(tg.EngineOptions{Registry: reg, Sessions: session.NewMemoryStore(), Transport: tr})
	if err != nil {
		t.Fatal(err)
	}
	return engine, tr
}

func TestCommandAndCallbackRoutesReachScreens(t *testing.T) {
	settings := &screen.Base{TypeName: "Settings", TitleText: "Settings"}
	main := &screen.Base{
		TypeName:  "Main",
		TitleText: "Main",
		Opts:      screen.Options{Commands: []string{"start"}},
		Rows:      [][]screen.Button{{screen.To(settings)}},
	}
	engine, tr := newEngine(t, main)

	routes := CommandRoutes(engine)
	if len(routes) != 1 || routes[0].Endpoint != "/start" {
		t.Fatalf("routes = %+v", routes)
	}
	if err := routes[0].Handler(message("/start")); err != nil {
		t.Fatal(err)
	}

	id, _ := engine.Registry().ID("Settings")
	cb := CallbackRoute(engine)
	if cb.Endpoint != tele.OnCallback {
		t.Fatalf("endpoint = %v", cb.Endpoint)
	}
	if err := cb.Handler(press(callbacks.MustEncode(callbacks.Payload{Target: id}))); err != nil {
		t.Fatal(err)
	}

	if len(tr.screens) != 2 || tr.screens[0] != "Main" || tr.screens[1] != "Settings" {
		t.Fatalf("rendered %v", tr.screens)
	}
	if tr.acks != 1 {
		t.Fatalf("acks = %d", tr.acks)
	}
}

func TestTextRouteFallsBackWithoutListener(t *testing.T) {
	engine, tr := newEngine(t)
	routes := TextRoutes(engine, TextOptions{})
	if len(routes) != 2 || routes[0].Endpoint != tele.OnText {
		t.Fatalf("routes = %+v", routes)
	}
	if err := routes[0].Handler(message("hello")); err != nil {
		t.Fatal(err)
	}
	if len(tr.screens) != 1 || tr.screens[0] != screen.ErrorScreenName {
		t.Fatalf("rendered %v", tr.screens)
	}
}

func TestInlineRouteAnswersWithArticles(t *testing.T) {
	provider := InlineProviderFunc(func(_ context.Context, ev *screen.Event) ([]ui.Article, error) {
		if ev.Query == "" {
			return nil, errors.New("empty query")
		}
		return []ui.Article{{ID: "1", Title: "Echo", Text: ev.Query}}, nil
	})
	route := InlineRoute(provider, InlineOptions{CacheTime: 5})

	c := &updateContext{upd: tele.Update{ID: 3, Query: &tele.Query{ID: "q", Text: "ping", Sender: user}}}
	if err := route.Handler(c); err != nil {
		t.Fatal(err)
	}
	if c.answer == nil || len(c.answer.Results) != 1 || c.answer.CacheTime != 5 || !c.answer.IsPersonal {
		t.Fatalf("answer = %+v", c.answer)
	}
}

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(tg.ErrRedirectLoop); got != "REDIRECT_LOOP" {
		t.Fatalf("code = %s", got)
	}
	if got := deriveErrorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("code = %s", got)
	}
	if deriveErrorCode(nil) != "" {
		t.Fatal("nil error must have no code")
	}
}

func TestNormalizeHandlerName(t *testing.T) {
	for in, want := range map[string]string{"/Start": "start", " Main Menu ": "main_menu", "": "unknown", "/": "unknown"} {
		if got := normalizeHandlerName(in); got != want {
			t.Fatalf("%q -> %q, want %q", in, got, want)
		}
	}
}
