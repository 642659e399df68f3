// Package locale translates the strings rendered by the menu engine and the
// bundled screens. Messages are flat JSON files embedded into the binary.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localedata embed.FS

const (
	En = "en"
	Ru = "ru"
)

var files = []string{"en.json", "ru.json"}

// Translator resolves message ids per language. It is safe for concurrent use.
type Translator struct {
	bundle   *i18n.Bundle
	fallback string

	mu         sync.Mutex
	localizers map[string]*i18n.Localizer
}

// New loads the embedded catalogs. defaultLang is used for users without a
// language and for languages without a catalog.
func New(defaultLang string) (*Translator, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, f := range files {
		data, err := localedata.ReadFile("locales/" + f)
		if err != nil {
			return nil, fmt.Errorf("locale: read %s: %w", f, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, f); err != nil {
			return nil, fmt.Errorf("locale: parse %s: %w", f, err)
		}
	}
	fallback := normalize(defaultLang)
	if fallback == "" {
		fallback = En
	}
	return &Translator{
		bundle:     bundle,
		fallback:   fallback,
		localizers: make(map[string]*i18n.Localizer),
	}, nil
}

// Translate returns the message for id in lang, or id itself when no catalog has it.
func (t *Translator) Translate(lang, id string) string {
	return t.Format(lang, id, nil)
}

// Format is Translate with template data.
func (t *Translator) Format(lang, id string, data map[string]any) string {
	if t == nil || id == "" {
		return id
	}
	msg, err := t.localizer(lang).Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil || msg == "" {
		return id
	}
	return msg
}

// Languages lists the languages with a catalog.
func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		out = append(out, normalize(tag.String()))
	}
	return out
}

// Supported reports whether lang has a catalog.
func (t *Translator) Supported(lang string) bool {
	lang = normalize(lang)
	for _, l := range t.Languages() {
		if l == lang {
			return true
		}
	}
	return false
}

// Default is the fallback language.
func (t *Translator) Default() string { return t.fallback }

func (t *Translator) localizer(lang string) *i18n.Localizer {
	key := normalize(lang)
	t.mu.Lock()
	defer t.mu.Unlock()
	if l, ok := t.localizers[key]; ok {
		return l
	}
	l := i18n.NewLocalizer(t.bundle, key, t.fallback)
	t.localizers[key] = l
	return l
}

func normalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	base, _ := tag.Base()
	return base.String()
}
