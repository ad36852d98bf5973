package cli

import (
	"context"
	"fmt"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/lock"
)

// OptionCmd reads or writes a single option.
type OptionCmd struct {
	Get OptionGetCmd `cmd:"" help:"Print one option."`
	Set OptionSetCmd `cmd:"" help:"Change one option."`
}

// OptionGetCmd prints one option.
type OptionGetCmd struct {
	OutputFlags

	Name string `arg:"" help:"Option name."`
}

// Run executes the option get command.
func (c *OptionGetCmd) Run(cli *CLI) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	o := rt.Session.OptionByName(c.Name)
	if o == nil {
		return fmt.Errorf("%s: %w", c.Name, team.ErrOptionNotFound)
	}
	v := NewOptionView(o)
	out, err := Render(v, &c.OutputFlags, optionTable([]OptionView{v}))
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}

// OptionSetCmd changes one option.
type OptionSetCmd struct {
	Name  string `arg:"" help:"Option name."`
	Value string `arg:"" help:"New value."`
	Type  string `help:"Value type: auto, u32 or string. auto uses the type the driver reports." enum:"auto,u32,string" default:"auto"`
}

// Run executes the option set command.
func (c *OptionSetCmd) Run(cli *CLI, ctx context.Context) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	typ, err := c.valueType(rt.Session)
	if err != nil {
		return err
	}
	var set func(lock.Scope) error
	switch typ {
	case team.OptionTypeU32:
		v, err := ParseU32(c.Value)
		if err != nil {
			return err
		}
		set = func(scope lock.Scope) error { return rt.SetOptionU32(scope, c.Name, v) }
	default:
		set = func(scope lock.Scope) error { return rt.SetOptionString(scope, c.Name, c.Value) }
	}
	if err := rt.Change(ctx, set); err != nil {
		return fmt.Errorf("set %s: %w", c.Name, err)
	}
	rt.Logger.Info("option set", "component", "cli", "name", c.Name, "value", c.Value)
	return nil
}

func (c *OptionSetCmd) valueType(s *team.Session) (team.OptionType, error) {
	if c.Type != "" && c.Type != "auto" {
		return team.ParseOptionType(c.Type)
	}
	o := s.OptionByName(c.Name)
	if o == nil {
		return 0, fmt.Errorf("%s: %w", c.Name, team.ErrOptionNotFound)
	}
	return o.Type, nil
}
