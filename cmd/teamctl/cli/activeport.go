package cli

import (
	"context"
	"fmt"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/lock"
)

// ActivePortCmd shows the active port, or sets it when a port is
// given.
type ActivePortCmd struct {
	Port Interface `arg:"" optional:"" help:"Port name or ifindex to make active."`
}

// Run executes the active-port command.
func (c *ActivePortCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()
	s := rt.Session

	if c.Port.IsZero() {
		ifindex, err := s.ActivePort()
		if err != nil {
			return err
		}
		if ifindex == 0 {
			return cli.PrintOut("none\n")
		}
		if name, err := s.IfindexToIfname(ifindex); err == nil {
			return cli.PrintOutf("%d %s\n", ifindex, name)
		}
		return cli.PrintOutf("%d\n", ifindex)
	}

	ifindex := c.Port.Index
	if ifindex == 0 {
		if ifindex = s.IfnameToIfindex(c.Port.Name); ifindex == 0 {
			return fmt.Errorf("port %s not found", c.Port.Name)
		}
	}
	if err := rt.Change(ctx, func(scope lock.Scope) error {
		return rt.SetOptionU32(scope, team.ActivePortOption, ifindex)
	}); err != nil {
		return err
	}
	rt.Logger.Info("active port changed", "component", "cli", "ifindex", ifindex)
	return nil
}
