package cli

import (
	"fmt"
)

// ResolveCmd translates interface names to ifindexes and back without
// touching any team device.
type ResolveCmd struct {
	Interfaces []Interface `arg:"" help:"Interface names or ifindexes."`
}

// Run executes the resolve command.
func (c *ResolveCmd) Run(cli *CLI) error {
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := cli.Logger(cfg)
	if err != nil {
		return err
	}
	s, err := cli.NewSession(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var missing []string
	for _, i := range c.Interfaces {
		if i.Index != 0 {
			name, err := s.IfindexToIfname(i.Index)
			if err != nil {
				missing = append(missing, i.String())
				continue
			}
			if err := cli.PrintOutf("%d\t%s\n", i.Index, name); err != nil {
				return err
			}
			continue
		}
		idx := s.IfnameToIfindex(i.Name)
		if idx == 0 {
			missing = append(missing, i.Name)
			continue
		}
		if err := cli.PrintOutf("%s\t%d\n", i.Name, idx); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no such interface: %v", missing)
	}
	return nil
}
