package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/ids"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/session"
)

func base(name string, opts screen.Options, rows ...[]screen.Button) *screen.Base {
	return &screen.Base{TypeName: name, TitleText: name, Opts: opts, Rows: rows}
}

func TestRegisterDiamondWiresEveryScreenOnce(t *testing.T) {
	ctx := context.Background()
	d := base("D", screen.Options{})
	b := base("B", screen.Options{}, []screen.Button{screen.To(d)})
	c := base("C", screen.Options{}, []screen.Button{screen.To(d)})
	a := base("A", screen.Options{}, []screen.Button{screen.To(b), screen.To(c)})

	reg := NewRegistry(nil)
	if err := reg.Register(ctx, a); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 4 {
		t.Fatalf("Len = %d, want 4", reg.Len())
	}
	first, _ := reg.ID("D")

	if err := reg.Register(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, c); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 4 {
		t.Fatalf("Len after re-registration = %d", reg.Len())
	}
	if again, _ := reg.ID("D"); again != first {
		t.Fatalf("D id changed %d -> %d", first, again)
	}
	if got := strings.Join(reg.Names(), ","); got != "A,B,D,C" {
		t.Fatalf("order = %s", got)
	}
}

func TestRegisterCycle(t *testing.T) {
	a := base("A", screen.Options{})
	b := base("B", screen.Options{}, []screen.Button{screen.To(a)})
	a.Rows = [][]screen.Button{{screen.To(b)}}

	reg := NewRegistry(nil)
	if err := reg.Register(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 2 {
		t.Fatalf("Len = %d", reg.Len())
	}
}

func TestRegisterRejectsOversizedStaticButton(t *testing.T) {
	target := base("Target", screen.Options{})
	src := base("Source", screen.Options{}, []screen.Button{screen.To(target, screen.P("blob", strings.Repeat("y", 90)))})

	err := NewRegistry(nil).Register(context.Background(), src)
	if !errors.Is(err, callbacks.ErrEncodingTooLarge) {
		t.Fatalf("err = %v, want ErrEncodingTooLarge", err)
	}
}

func TestRegisterRejectsNamelessScreen(t *testing.T) {
	if err := NewRegistry(nil).Register(context.Background(), base("", screen.Options{})); err == nil {
		t.Fatal("expected error")
	}
}

func TestRegistryIDsComeFromAllocator(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "screen_ids.json")
	first := NewRegistry(ids.NewAllocator(ids.NewFileStore(path)))
	if err := first.Register(ctx, base("Menu", screen.Options{})); err != nil {
		t.Fatal(err)
	}
	menuID, _ := first.ID("Menu")

	second := NewRegistry(ids.NewAllocator(ids.NewFileStore(path)))
	if err := second.Register(ctx, base("Extra", screen.Options{})); err != nil {
		t.Fatal(err)
	}
	if err := second.Register(ctx, base("Menu", screen.Options{})); err != nil {
		t.Fatal(err)
	}
	if id, _ := second.ID("Menu"); id != menuID {
		t.Fatalf("Menu id %d after restart, want %d", id, menuID)
	}
}

func TestCommandIndex(t *testing.T) {
	reg := NewRegistry(nil)
	ctx := context.Background()
	screens := []screen.Screen{
		base("Main", screen.Options{Commands: []string{"start", "/menu"}, Description: "Open the menu"}),
		base("Help", screen.Options{Commands: []string{"help"}}),
		base("Secret", screen.Options{Commands: []string{"debug"}, HiddenCommand: true}),
		base("Stats", screen.Options{Commands: []string{"stats"}, AdminOnly: true}),
		base("Clash", screen.Options{Commands: []string{"start"}}),
	}
	for _, s := range screens {
		if err := reg.Register(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	cmd, ok := reg.LookupCommand("START")
	if !ok || cmd.Screen != "Main" {
		t.Fatalf("start -> %+v %v", cmd, ok)
	}
	if cmd, ok := reg.LookupCommand("/menu"); !ok || cmd.Description != "Open the menu" {
		t.Fatalf("menu -> %+v %v", cmd, ok)
	}
	if cmd, _ := reg.LookupCommand("help"); cmd.Description != "Help" {
		t.Fatalf("description should default to the header, got %q", cmd.Description)
	}

	var visible []string
	for _, c := range reg.ListCommands(true) {
		visible = append(visible, c.Text)
	}
	if got := strings.Join(visible, ","); got != "help,menu,start" {
		t.Fatalf("visible commands = %s", got)
	}
	if n := len(reg.ListCommands(false)); n != 5 {
		t.Fatalf("all commands = %d", n)
	}
	if got := strings.Join(reg.CommandEndpoints(), ","); got != "/debug,/help,/menu,/start,/stats" {
		t.Fatalf("endpoints = %s", got)
	}
}

func TestRouteByKind(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	main := base("Main", screen.Options{Commands: []string{"start"}})
	input := base("Input", screen.Options{OnText: true})
	fb := screen.NewErrorScreen("")
	for _, s := range []screen.Screen{main, input} {
		if err := reg.Register(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.SetFallback(ctx, fb); err != nil {
		t.Fatal(err)
	}
	mainID, _ := reg.ID("Main")
	inputID, _ := reg.ID("Input")

	cases := []struct {
		name    string
		ev      *screen.Event
		sess    *session.Session
		want    string
		matched bool
	}{
		{"command", &screen.Event{Kind: screen.KindCommand, Command: "start"}, nil, "Main", true},
		{"unknown command", &screen.Event{Kind: screen.KindCommand, Command: "nope"}, nil, screen.ErrorScreenName, false},
		{"callback", &screen.Event{Kind: screen.KindCallback, Data: callbacks.MustEncode(callbacks.Payload{Target: inputID})}, nil, "Input", true},
		{"stale callback", &screen.Event{Kind: screen.KindCallback, Data: callbacks.MustEncode(callbacks.Payload{Target: 999})}, nil, screen.ErrorScreenName, false},
		{"garbage callback", &screen.Event{Kind: screen.KindCallback, Data: "%%%"}, nil, screen.ErrorScreenName, false},
		{"text to listener", &screen.Event{Kind: screen.KindText, Text: "5"}, &session.Session{State: inputID}, "Input", true},
		{"text elsewhere", &screen.Event{Kind: screen.KindText, Text: "5"}, &session.Session{State: mainID}, screen.ErrorScreenName, false},
		{"text without state", &screen.Event{Kind: screen.KindText, Text: "5"}, &session.Session{}, screen.ErrorScreenName, false},
	}
	for _, tc := range cases {
		got, matched := reg.Route(tc.ev, tc.sess)
		if got == nil || got.Name() != tc.want || matched != tc.matched {
			t.Fatalf("%s: got %v,%v want %s,%v", tc.name, got, matched, tc.want, tc.matched)
		}
	}
}

func TestEncodeButtonByName(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	if err := reg.Register(ctx, base("Settings", screen.Options{})); err != nil {
		t.Fatal(err)
	}
	data, err := reg.EncodeButton(ctx, screen.Ref("Settings", "⚙️", screen.P("tab", "lang")))
	if err != nil {
		t.Fatal(err)
	}
	id, _ := reg.ID("Settings")
	p := callbacks.Decode(data)
	if p.Target != id || p.Props["tab"] != "lang" {
		t.Fatalf("payload = %+v", p)
	}
	if _, err := reg.EncodeButton(ctx, screen.Button{}); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v", err)
	}
}

func TestEncodeButtonNeverAllocatesUnknownNames(t *testing.T) {
	ctx := context.Background()
	store := ids.NewFileStore(filepath.Join(t.TempDir(), "ids.json"))
	reg := NewRegistry(ids.NewAllocator(store))
	if err := reg.Register(ctx, base("Menu", screen.Options{})); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.EncodeButton(ctx, screen.Ref("Typo", "x")); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	if _, ok := reg.ID("Typo"); ok {
		t.Fatal("unknown name got an identifier")
	}
	table, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table["Typo"]; ok {
		t.Fatalf("unknown name persisted: %v", table)
	}
}

func TestValidateReportsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	src := base("Source", screen.Options{BackTo: "Missing"}, []screen.Button{screen.Ref("Later", "go")})
	if err := reg.Register(ctx, src); err != nil {
		t.Fatalf("forward reference rejected at register: %v", err)
	}
	reg.SetRoot("Nowhere")

	err := reg.Validate(ctx)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}
	for _, name := range []string{"Missing", "Later", "Nowhere"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("%q not reported in %v", name, err)
		}
	}

	for _, s := range []screen.Screen{base("Missing", screen.Options{}), base("Later", screen.Options{}), base("Nowhere", screen.Options{})} {
		if err := reg.Register(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := reg.Validate(ctx); err != nil {
		t.Fatalf("complete tree: %v", err)
	}
	if _, err := NewEngine(EngineOptions{Registry: reg, Sessions: session.NewMemoryStore(), Transport: &fakeTransport{}}); err != nil {
		t.Fatal(err)
	}
}
