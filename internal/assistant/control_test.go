package assistant_test

import (
	"context"
	"strings"
	"testing"

	"lily/internal/assistant"
	"lily/internal/ipc"
)

func TestControl(t *testing.T) {
	f := start(t, assistant.Config{})
	ctx := context.Background()

	tests := []struct {
		cmd     string
		args    []string
		ok      bool
		contain string
	}{
		{"listen", nil, true, "listening"},
		{"state", nil, true, "state=speaking voice=true lang=en"},
		{"ask", []string{"open", "settings"}, true, "settings"},
		{"ask", []string{"I", "need", "help"}, true, "I can help you"},
		{"lang", []string{"od"}, true, "language od"},
		{"lang", []string{"xx"}, false, "unknown language"},
		{"lang", nil, false, "en, hi, od, bn, mr"},
		{"welcome", []string{"12"}, true, ""},
		{"welcome", []string{"many"}, false, "bad count"},
		{"say", nil, false, "nothing to say"},
		{"toggle", nil, true, ""},
		{"history", nil, true, "user: open settings"},
		{"mute", nil, true, "muted"},
		{"state", nil, true, "voice=false"},
		{"dance", nil, false, "unknown command"},
	}

	for _, tt := range tests {
		r := f.a.Control(ctx, ipc.ControlMessage{Cmd: tt.cmd, Args: tt.args})
		if r.OK != tt.ok {
			t.Fatalf("%s %v: reply = %+v", tt.cmd, tt.args, r)
		}
		got := r.Text
		if !r.OK {
			got = r.Error
		}
		if !strings.Contains(got, tt.contain) {
			t.Errorf("%s %v: %q does not contain %q", tt.cmd, tt.args, got, tt.contain)
		}
	}
}
