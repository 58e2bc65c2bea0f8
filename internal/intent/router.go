// Package intent maps transcripts to actions with fixed, per-language
// keyword grammars.
package intent

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"lily/internal/lang"
)

//go:embed rules.yaml
var defaultRules []byte

// Category names one slot of a language's priority list.
type Category string

const (
	CatScholarship Category = "scholarship"
	CatInternship  Category = "internship"
	CatScheme      Category = "scheme"
	CatAll         Category = "all"
	CatSettings    Category = "settings"
	CatLogout      Category = "logout"
	CatHelp        Category = "help"
	CatFallback    Category = "fallback"
)

// Priority is the evaluation order shared by every language. The first rule
// with a matching keyword wins.
var Priority = []Category{
	CatScholarship,
	CatInternship,
	CatScheme,
	CatAll,
	CatSettings,
	CatLogout,
	CatHelp,
	CatFallback,
}

// Rule binds a keyword set to an action.
type Rule struct {
	Language string
	Category Category
	Keywords []string // folded
	Action   Action
}

func (r Rule) matches(folded string) bool {
	if r.Category == CatFallback {
		return true
	}
	for _, kw := range r.Keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

type ruleSpec struct {
	Keywords []string `yaml:"keywords"`
	Action   string   `yaml:"action"`
	Filter   string   `yaml:"filter"`
	Template string   `yaml:"template"`
}

// Router classifies transcripts. It is immutable after construction.
type Router struct {
	texts *lang.Table
	rules map[string][]Rule
}

// NewRouter builds a router from the embedded grammars.
func NewRouter(texts *lang.Table) (*Router, error) {
	return Parse(texts, defaultRules)
}

// Parse builds a router from a YAML grammar document.
func Parse(texts *lang.Table, data []byte) (*Router, error) {
	var doc map[string]map[Category]ruleSpec
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	r := &Router{texts: texts, rules: make(map[string][]Rule, len(doc))}

	for code, specs := range doc {
		if _, ok := texts.Lookup(code); !ok {
			return nil, fmt.Errorf("rules for %q: %w", code, lang.ErrUnknownLanguage)
		}

		for cat := range specs {
			if !known(cat) {
				return nil, fmt.Errorf("%s: unknown category %q", code, cat)
			}
		}

		list := make([]Rule, 0, len(Priority))
		for _, cat := range Priority {
			spec, ok := specs[cat]
			if !ok {
				if cat == CatFallback {
					return nil, fmt.Errorf("%s: fallback rule is required", code)
				}
				continue
			}
			rule, err := compile(code, cat, spec)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", code, cat, err)
			}
			list = append(list, rule)
		}
		r.rules[code] = list
	}

	for _, code := range texts.Codes() {
		if _, ok := r.rules[code]; !ok {
			return nil, fmt.Errorf("no rules for language %q", code)
		}
	}

	return r, nil
}

func compile(code string, cat Category, spec ruleSpec) (Rule, error) {
	rule := Rule{Language: code, Category: cat}

	for _, kw := range spec.Keywords {
		kw = fold(strings.TrimSpace(kw))
		if kw == "" {
			return Rule{}, errors.New("empty keyword")
		}
		rule.Keywords = append(rule.Keywords, kw)
	}

	if cat == CatFallback && len(rule.Keywords) > 0 {
		return Rule{}, errors.New("fallback takes no keywords")
	}
	if cat != CatFallback && len(rule.Keywords) == 0 {
		return Rule{}, errors.New("no keywords")
	}

	switch spec.Action {
	case "filter":
		f := Filter(spec.Filter)
		if !f.Valid() {
			return Rule{}, fmt.Errorf("invalid filter %q", spec.Filter)
		}
		rule.Action = Action{Kind: SetFilter, Filter: f}
	case "settings":
		rule.Action = Action{Kind: OpenSettings}
	case "logout":
		rule.Action = Action{Kind: Logout}
	case "reply":
		if spec.Template == "" {
			return Rule{}, errors.New("reply without template")
		}
		rule.Action = Action{Kind: Reply, Template: lang.Key(spec.Template)}
	default:
		return Rule{}, fmt.Errorf("unknown action %q", spec.Action)
	}

	if cat == CatFallback && rule.Action.Kind != Reply {
		return Rule{}, errors.New("fallback must reply")
	}

	return rule, nil
}

func known(cat Category) bool {
	for _, c := range Priority {
		if c == cat {
			return true
		}
	}
	return false
}

// Rules returns the priority list for a language.
func (r *Router) Rules(code string) []Rule {
	return append([]Rule(nil), r.rules[code]...)
}

// Classify maps a transcript to an action using the grammar of language
// code. Unknown codes use the default language.
func (r *Router) Classify(transcript, code string) Action {
	rules, ok := r.rules[code]
	if !ok {
		code = r.texts.DefaultCode()
		rules = r.rules[code]
	}

	folded := fold(transcript)
	for _, rule := range rules {
		if !rule.matches(folded) {
			continue
		}
		act := rule.Action
		if act.Kind == Reply {
			act.Text = r.texts.Text(code, act.Template)
		}
		return act
	}

	// Unreachable with a validated grammar: every list ends in a fallback.
	return Action{Kind: Reply, Template: lang.Fallback, Text: r.texts.Text(code, lang.Fallback)}
}

func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
