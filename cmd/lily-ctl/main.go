package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/spf13/pflag"

	"lily/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Daemon control socket")
	timeout := cli.DurationP("timeout", "t", 10*time.Second, "Reply timeout")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lily-ctl [flags] <listen|mute|say|ask|lang|welcome|open|close|toggle|history|state> [args...]")
		cli.PrintDefaults()
	}
	cli.Parse()

	if cli.NArg() == 0 {
		cli.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	r, err := ipc.Send(ctx, *socket, ipc.ControlMessage{Cmd: cli.Arg(0), Args: cli.Args()[1:]})
	if err != nil {
		fmt.Fprintln(os.Stderr, "lily-daemon not running:", err)
		os.Exit(1)
	}
	if !r.OK {
		fmt.Fprintln(os.Stderr, r.Error)
		os.Exit(1)
	}
	if r.Text != "" {
		fmt.Println(r.Text)
	}
}
