package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/menubot/core/telegram/format"
	"github.com/m3rciful/menubot/core/telegram/keyboard"
	"github.com/m3rciful/menubot/core/telegram/screen"
)

const (
	backPrefix = "< "
	menuPrefix = "🏠 "
)

// compile builds the message text and keyboard of s for one request.
func (e *Engine) compile(ctx context.Context, s screen.Screen, req *screen.Request) (Render, error) {
	opts := s.Options()
	mode := opts.ParseMode
	if mode == "" {
		mode = format.ModeMarkdown
	}

	body, err := s.Body(ctx, req)
	if err != nil {
		return Render{}, fmt.Errorf("telegram: body of %s: %w", s.Name(), err)
	}

	parts := make([]string, 0, 3)
	if !opts.HideHeader {
		if h := screen.Header(s, req); h != "" {
			parts = append(parts, format.Bold(h, mode))
		}
	}
	if body = strings.TrimSpace(body); body != "" {
		parts = append(parts, body)
	}
	if !opts.HideFooter {
		if f := s.Footer(req); f != "" {
			parts = append(parts, format.Bold(f, mode))
		}
	}

	rows, err := e.compileKeyboard(ctx, e.rows(s, opts, req), req)
	if err != nil {
		return Render{}, fmt.Errorf("telegram: keyboard of %s: %w", s.Name(), err)
	}
	return Render{
		Text:      strings.Join(parts, "\n\n"),
		ParseMode: mode,
		Keyboard:  rows,
		Screen:    s.Name(),
	}, nil
}

// rows are the screen's buttons followed by the back and menu rows.
func (e *Engine) rows(s screen.Screen, opts screen.Options, req *screen.Request) [][]screen.Button {
	src := s.Buttons(req)
	rows := make([][]screen.Button, 0, len(src)+2)
	rows = append(rows, src...)
	if opts.BackTo != "" {
		rows = append(rows, []screen.Button{screen.Ref(opts.BackTo, backPrefix+req.T(screen.MsgBack))})
	}
	if root := e.reg.Root(); opts.MenuButton && root != "" {
		rows = append(rows, []screen.Button{screen.Ref(root, menuPrefix+req.T(screen.MsgMenu))})
	}
	return rows
}

func (e *Engine) compileKeyboard(ctx context.Context, rows [][]screen.Button, req *screen.Request) ([][]keyboard.Button, error) {
	out := make([][]keyboard.Button, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		compiled := make([]keyboard.Button, 0, len(row))
		for _, b := range row {
			if !b.IsTransition() {
				compiled = append(compiled, keyboard.Button{Text: b.Label(req), URL: b.URL, WebApp: b.WebApp})
				continue
			}
			if b.Screen == nil {
				if target, ok := e.reg.ByName(b.Target); ok {
					b.Screen = target
				}
			}
			data, err := e.reg.EncodeButton(ctx, b)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, keyboard.Button{Text: b.Label(req), Data: data})
		}
		out = append(out, compiled)
	}
	return out, nil
}
