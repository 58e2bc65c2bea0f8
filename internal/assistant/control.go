package assistant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lily/internal/ipc"
)

// Control serves one lily-ctl request.
func (a *Assistant) Control(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	text := strings.Join(msg.Args, " ")

	switch msg.Cmd {
	case "listen":
		return reply("listening", a.EnableVoice(ctx))
	case "mute":
		return reply("muted", a.DisableVoice(ctx))

	case "say":
		if text == "" {
			return ipc.Fail(errors.New("say: nothing to say"))
		}
		return reply("", a.Say(ctx, text))

	case "ask":
		act, ok, err := a.Submit(ctx, text)
		if err != nil {
			return ipc.Fail(err)
		}
		if !ok {
			return ipc.Fail(errors.New("ask: empty input"))
		}
		if act.Command() {
			return ipc.Ok(act.String())
		}
		return ipc.Ok(act.Text)

	case "lang":
		if len(msg.Args) != 1 {
			return ipc.Fail(fmt.Errorf("lang: want one of %s", strings.Join(a.texts.Codes(), ", ")))
		}
		return reply("language "+msg.Args[0], a.SetLanguage(ctx, msg.Args[0]))

	case "welcome":
		n, err := strconv.Atoi(text)
		if err != nil || n < 0 {
			return ipc.Fail(fmt.Errorf("welcome: bad count %q", text))
		}
		return reply("", a.Announce(ctx, n))

	case "open":
		return reply("open", a.Open(ctx))
	case "close":
		return reply("closed", a.Close(ctx))
	case "toggle":
		return reply("", a.Toggle(ctx))

	case "history":
		h, err := a.History(ctx)
		if err != nil {
			return ipc.Fail(err)
		}
		var sb strings.Builder
		for _, u := range h {
			fmt.Fprintf(&sb, "[%s] %s: %s\n", u.Timestamp.Format("15:04:05"), u.Source, u.Text)
		}
		return ipc.Ok(strings.TrimSuffix(sb.String(), "\n"))

	case "state":
		st, err := a.Status(ctx)
		if err != nil {
			return ipc.Fail(err)
		}
		return ipc.Ok(fmt.Sprintf("state=%s voice=%t lang=%s locale=%s open=%t turns=%d capture=%t synthesis=%t",
			st.State, st.Voice, st.Language, st.Locale, st.Open, st.Turns, st.Capture, st.Synthesis))

	default:
		return ipc.Fail(fmt.Errorf("unknown command %q", msg.Cmd))
	}
}

func reply(text string, err error) ipc.Reply {
	if err != nil {
		return ipc.Fail(err)
	}
	return ipc.Ok(text)
}
