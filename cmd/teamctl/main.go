// teamctl inspects and controls Linux team devices.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-team/cmd/teamctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.CLI{Out: os.Stdout}
	opts := append(cli.KongOptions(), kong.BindTo(ctx, (*context.Context)(nil)))
	parser, err := kong.New(&c, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: %v\n", err)
		os.Exit(2)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := kctx.Run(&c); err != nil {
		fmt.Fprintf(os.Stderr, "teamctl: %v\n", err)
		os.Exit(1)
	}
}
