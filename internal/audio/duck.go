package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id       int
	from, to int
}

// Ducker lowers the volume of other applications while Lily speaks, through
// pactl. Streams whose application.name is in own are never touched.
type Ducker struct {
	mu     sync.Mutex
	ducked bool
	saved  map[int]int // sink input -> volume before ducking

	own      []string
	factor   float64
	floor    int
	duration time.Duration

	// run executes pactl; replaced in tests.
	run func(ctx context.Context, args ...string) ([]byte, error)
}

// NewDucker scales foreign streams by factor, never below floor percent, over
// a fade of the given duration.
func NewDucker(own []string, factor float64, floor int, duration time.Duration) *Ducker {
	return &Ducker{
		saved:    make(map[int]int),
		own:      append([]string(nil), own...),
		factor:   factor,
		floor:    min(max(floor, 0), maxVolume),
		duration: duration,
		run:      pactl,
	}
}

// Duck fades foreign streams down. Calling it while ducked is a no-op.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ducked {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	d.saved = make(map[int]int, len(inputs))
	fades := make([]fade, 0, len(inputs))
	for _, in := range inputs {
		to := int(math.Round(float64(in.Volume) * d.factor))
		to = min(max(to, d.floor), maxVolume)

		d.saved[in.ID] = in.Volume
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: to})
	}

	if err := d.fade(ctx, fades); err != nil {
		return err
	}
	d.ducked = true
	return nil
}

// Restore fades the streams ducked earlier back to their volume. Streams
// that appeared in between are left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ducked {
		return nil
	}

	inputs, err := d.list(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		if orig, ok := d.saved[in.ID]; ok {
			fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
		}
	}

	if err := d.fade(ctx, fades); err != nil {
		return err
	}
	d.saved = make(map[int]int)
	d.ducked = false
	return nil
}

func (d *Ducker) list(ctx context.Context) ([]sinkInput, error) {
	out, err := d.run(ctx, "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("list sink inputs: %w", err)
	}

	var foreign []sinkInput
	for _, in := range parseSinkInputs(string(out)) {
		if !d.isOwn(in) {
			foreign = append(foreign, in)
		}
	}
	return foreign, nil
}

func (d *Ducker) isOwn(in sinkInput) bool {
	for _, name := range d.own {
		if in.AppName == name {
			return true
		}
	}
	return false
}

func (d *Ducker) fade(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}

	const step = 10 * time.Millisecond
	steps := max(int(d.duration/step), 1)
	if d.duration <= 0 {
		steps = 1
	}
	pause := d.duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.setVolume(ctx, f.id, v); err != nil {
				return err
			}
		}

		if i < steps && pause > 0 {
			time.Sleep(pause)
		}
	}
	return nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	percent = min(max(percent, 0), maxVolume)
	_, err := d.run(ctx, "set-sink-input-volume", strconv.Itoa(id), fmt.Sprintf("%d%%", percent))
	if err != nil {
		return fmt.Errorf("set volume of sink input %d: %w", id, err)
	}
	return nil
}

func pactl(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "pactl", args...).Output()
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []sinkInput
	for _, block := range blocks[1:] {
		head, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(head))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			switch {
			case strings.HasPrefix(line, "Volume:") && in.Volume == 0:
				if m := percentRe.FindStringSubmatch(line); m != nil {
					in.Volume, _ = strconv.Atoi(m[1])
				}
			case strings.HasPrefix(line, "application.name =") && in.AppName == "":
				_, v, _ := strings.Cut(line, "=")
				in.AppName = strings.Trim(strings.TrimSpace(v), `"`)
			}
		}

		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}
	return res
}
