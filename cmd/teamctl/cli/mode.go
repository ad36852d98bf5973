package cli

import (
	"context"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/lock"
)

// ModeCmd shows or changes the team mode.
type ModeCmd struct {
	Get ModeGetCmd `cmd:"" default:"1" help:"Print the current mode."`
	Set ModeSetCmd `cmd:"" help:"Switch to another mode."`
}

// ModeGetCmd prints the mode.
type ModeGetCmd struct{}

// Run executes the mode get command.
func (c *ModeGetCmd) Run(cli *CLI) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	mode, err := rt.Session.ModeName()
	if err != nil {
		return err
	}
	return cli.PrintOutf("%s\n", mode)
}

// ModeSetCmd changes the mode.
type ModeSetCmd struct {
	Mode string `arg:"" help:"Mode name (e.g. roundrobin, activebackup, loadbalance)."`
}

// Run executes the mode set command.
func (c *ModeSetCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.Change(ctx, func(scope lock.Scope) error {
		return rt.SetOptionString(scope, team.ModeOption, c.Mode)
	}); err != nil {
		return err
	}
	rt.Logger.Info("mode changed", "component", "cli", "mode", c.Mode)
	return nil
}
