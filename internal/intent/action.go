package intent

import (
	"fmt"

	"lily/internal/lang"
)

// Kind tags an Action.
type Kind int

const (
	Reply Kind = iota
	SetFilter
	OpenSettings
	Logout
)

func (k Kind) String() string {
	switch k {
	case Reply:
		return "reply"
	case SetFilter:
		return "filter"
	case OpenSettings:
		return "settings"
	case Logout:
		return "logout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Filter is an opportunity-listing filter.
type Filter string

const (
	FilterAll         Filter = "all"
	FilterScholarship Filter = "scholarship"
	FilterInternship  Filter = "internship"
	FilterScheme      Filter = "scheme"
)

func (f Filter) Valid() bool {
	switch f {
	case FilterAll, FilterScholarship, FilterInternship, FilterScheme:
		return true
	}
	return false
}

// Action is the outcome of classifying one utterance.
type Action struct {
	Kind   Kind
	Filter Filter // SetFilter only
	Text   string // Reply only

	// Template is the reply template Text was rendered from.
	Template lang.Key
}

// Command reports whether the action is handled by the application rather
// than answered in the conversation.
func (a Action) Command() bool { return a.Kind != Reply }

func (a Action) String() string {
	switch a.Kind {
	case SetFilter:
		return "filter(" + string(a.Filter) + ")"
	case Reply:
		return "reply(" + string(a.Template) + ")"
	default:
		return a.Kind.String()
	}
}
