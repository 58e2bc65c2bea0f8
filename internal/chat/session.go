// Package chat keeps the conversation shown in the assistant panel.
package chat

import (
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lily/internal/intent"
	"lily/internal/lang"
)

type Source int

const (
	User Source = iota
	Assistant
)

func (s Source) String() string {
	if s == User {
		return "user"
	}
	return "assistant"
}

// Utterance is one turn of the conversation. It is never modified after it
// has been appended.
type Utterance struct {
	ID        uuid.UUID
	Source    Source
	Text      string
	Timestamp time.Time
}

// Classifier is satisfied by *intent.Router.
type Classifier interface {
	Classify(transcript, code string) intent.Action
}

// Dispatcher receives command actions.
type Dispatcher func(intent.Action)

// Session is the conversation state: visibility plus an append-only history.
// Not safe for concurrent use.
type Session struct {
	texts    *lang.Table
	router   Classifier
	dispatch Dispatcher

	lang    string
	open    bool
	history []Utterance

	// Now is overridable for tests.
	Now func() time.Time
}

func New(texts *lang.Table, router Classifier, dispatch Dispatcher) *Session {
	return &Session{
		texts:    texts,
		router:   router,
		dispatch: dispatch,
		lang:     texts.DefaultCode(),
		Now:      time.Now,
	}
}

func (s *Session) Open()  { s.open = true }
func (s *Session) Close() { s.open = false }

func (s *Session) Toggle() { s.open = !s.open }

func (s *Session) IsOpen() bool { return s.open }

func (s *Session) Language() string { return s.lang }

// SetLanguage switches the conversation language. An empty history is seeded
// with the greeting of the new language; existing history is kept as is.
func (s *Session) SetLanguage(code string) {
	if _, ok := s.texts.Lookup(code); !ok {
		log.Warn("Unknown language, keeping current", "lang", code, "current", s.lang)
		return
	}
	s.lang = code

	if len(s.history) == 0 {
		s.append(Assistant, s.texts.Text(code, lang.Greeting))
	}
}

// Submit records a user turn and answers it. Replies are appended to the
// history; commands go to the dispatcher and add nothing.
func (s *Session) Submit(text string) (intent.Action, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return intent.Action{}, false
	}

	s.append(User, text)

	act := s.router.Classify(text, s.lang)
	if act.Kind == intent.Reply {
		s.append(Assistant, act.Text)
		return act, true
	}

	if s.dispatch != nil {
		s.dispatch(act)
	}
	return act, true
}

// Say appends an assistant turn that did not answer a user turn.
func (s *Session) Say(text string) Utterance {
	return s.append(Assistant, text)
}

// History returns a copy of the conversation in arrival order.
func (s *Session) History() []Utterance {
	return append([]Utterance(nil), s.history...)
}

func (s *Session) Len() int { return len(s.history) }

func (s *Session) append(src Source, text string) Utterance {
	u := Utterance{
		ID:        uuid.New(),
		Source:    src,
		Text:      text,
		Timestamp: s.Now(),
	}
	s.history = append(s.history, u)
	return u
}
