package audio

import (
	"context"
	"strings"
	"testing"
)

const sinkInputs = `Sink Input #41
	Driver: PipeWire
	Volume: front-left: 65536 / 100% / 0.00 dB,   front-right: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "Firefox"
Sink Input #42
	Volume: front-left: 39322 /  60% / -13.31 dB
	Properties:
		application.name = "lily"
Sink Input #43
	Volume: mono: 52429 /  80% / -5.81 dB
	Properties:
		application.name = "mpv"
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(sinkInputs)
	want := []sinkInput{
		{ID: 41, Volume: 100, AppName: "Firefox"},
		{ID: 42, Volume: 60, AppName: "lily"},
		{ID: 43, Volume: 80, AppName: "mpv"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("input %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	if parseSinkInputs("") != nil {
		t.Error("empty output parsed to inputs")
	}
}

// fakePactl serves a fixed listing and records volume changes.
type fakePactl struct {
	listing string
	set     map[string]string
}

func (f *fakePactl) run(_ context.Context, args ...string) ([]byte, error) {
	if args[0] == "list" {
		return []byte(f.listing), nil
	}
	f.set[args[1]] = args[2]
	return nil, nil
}

func TestDuckAndRestore(t *testing.T) {
	p := &fakePactl{listing: sinkInputs, set: map[string]string{}}
	d := NewDucker([]string{"lily"}, 0.3, 25, 0)
	d.run = p.run
	ctx := context.Background()

	if err := d.Duck(ctx); err != nil {
		t.Fatal(err)
	}
	if p.set["41"] != "30%" || p.set["43"] != "25%" {
		t.Errorf("ducked volumes = %v", p.set)
	}
	if _, touched := p.set["42"]; touched {
		t.Error("own stream was ducked")
	}

	// The listing now reflects the ducked volumes.
	p.listing = strings.NewReplacer("100%", "30%", "80%", "25%").Replace(sinkInputs)
	p.set = map[string]string{}

	if err := d.Duck(ctx); err != nil || len(p.set) != 0 {
		t.Fatalf("second Duck changed %v (err %v)", p.set, err)
	}

	if err := d.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	if p.set["41"] != "100%" || p.set["43"] != "80%" {
		t.Errorf("restored volumes = %v", p.set)
	}
}
