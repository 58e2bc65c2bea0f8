package lang

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var defaultLocales []byte

// Key names a localized template.
type Key string

const (
	Greeting    Key = "greeting"
	Scholarship Key = "scholarship"
	Internship  Key = "internship"
	Help        Key = "help"
	Fallback    Key = "fallback"
	Welcome     Key = "welcome"
	VoiceOn     Key = "voice_enabled"
	AckFilter   Key = "ack_filter"
	AckSettings Key = "ack_settings"
	AckLogout   Key = "ack_logout"
)

// Keys every language has to define.
var requiredKeys = []Key{Greeting, Scholarship, Internship, Help, Fallback, Welcome, VoiceOn}

var ErrUnknownLanguage = errors.New("unknown language")

// Profile is the static description of one supported language.
type Profile struct {
	Code       string `yaml:"code"`
	Locale     string `yaml:"locale"`
	Name       string `yaml:"name"`
	NativeName string `yaml:"native"`
}

// Primary returns the primary subtag of the locale ("hi" for "hi-IN").
func (p Profile) Primary() string { return Base(p.Locale) }

// Base returns the base language of a locale tag ("or" for "or_IN"), or ""
// when the tag names no language. Inferred languages do not count.
func Base(locale string) string {
	base, conf := language.Make(strings.TrimSpace(locale)).Base()
	if conf != language.Exact {
		return ""
	}
	return base.String()
}

type entry struct {
	Profile   `yaml:",inline"`
	Templates map[Key]string `yaml:"templates"`
}

type document struct {
	Default   string  `yaml:"default"`
	Languages []entry `yaml:"languages"`
}

// Table is the read-only language lookup table. It is safe for concurrent use
// once loaded.
type Table struct {
	def      string
	order    []string
	profiles map[string]Profile
	texts    map[string]map[Key]*template.Template
}

// Default loads the embedded table. It panics on a malformed embed, which can
// only happen at build time.
func Default() *Table {
	t, err := Parse(defaultLocales)
	if err != nil {
		panic(fmt.Sprintf("lang: embedded locales: %v", err))
	}
	return t
}

// Parse reads a locale table in YAML form.
func Parse(data []byte) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode locales: %w", err)
	}
	if len(doc.Languages) == 0 {
		return nil, errors.New("no languages defined")
	}

	t := &Table{
		def:      doc.Default,
		profiles: make(map[string]Profile, len(doc.Languages)),
		texts:    make(map[string]map[Key]*template.Template, len(doc.Languages)),
	}

	for _, e := range doc.Languages {
		if e.Code == "" || e.Locale == "" {
			return nil, fmt.Errorf("language %q: code and locale are required", e.Code)
		}
		if _, dup := t.profiles[e.Code]; dup {
			return nil, fmt.Errorf("language %q defined twice", e.Code)
		}
		for _, k := range requiredKeys {
			if e.Templates[k] == "" {
				return nil, fmt.Errorf("language %q: missing template %q", e.Code, k)
			}
		}

		texts := make(map[Key]*template.Template, len(e.Templates))
		for k, src := range e.Templates {
			tpl, err := template.New(string(k)).Option("missingkey=zero").Parse(src)
			if err != nil {
				return nil, fmt.Errorf("language %q template %q: %w", e.Code, k, err)
			}
			texts[k] = tpl
		}

		t.profiles[e.Code] = e.Profile
		t.texts[e.Code] = texts
		t.order = append(t.order, e.Code)
	}

	if t.def == "" {
		t.def = t.order[0]
	}
	if _, ok := t.profiles[t.def]; !ok {
		return nil, fmt.Errorf("default language %q: %w", t.def, ErrUnknownLanguage)
	}

	return t, nil
}

// Codes lists the language codes in table order.
func (t *Table) Codes() []string {
	return append([]string(nil), t.order...)
}

// DefaultCode is the language used when a lookup misses.
func (t *Table) DefaultCode() string { return t.def }

// Lookup returns the profile for code.
func (t *Table) Lookup(code string) (Profile, bool) {
	p, ok := t.profiles[code]
	return p, ok
}

// Profile returns the profile for code, or the default language's profile.
func (t *Table) Profile(code string) Profile {
	if p, ok := t.profiles[code]; ok {
		return p
	}
	return t.profiles[t.def]
}

// Locale maps a language code to its locale tag, falling back to the default.
func (t *Table) Locale(code string) string {
	return t.Profile(code).Locale
}

// Text renders a template without data.
func (t *Table) Text(code string, key Key) string {
	s, _ := t.Render(code, key, nil)
	return s
}

// Render executes the template key for language code. Missing templates fall
// back to the default language.
func (t *Table) Render(code string, key Key, data any) (string, error) {
	tpl := t.lookup(code, key)
	if tpl == nil {
		return "", fmt.Errorf("template %q for %q not found", key, code)
	}

	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %q: %w", key, err)
	}
	return sb.String(), nil
}

func (t *Table) lookup(code string, key Key) *template.Template {
	if texts, ok := t.texts[code]; ok {
		if tpl, ok := texts[key]; ok {
			return tpl
		}
	}
	return t.texts[t.def][key]
}
