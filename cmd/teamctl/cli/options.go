package cli

// OptionsCmd lists the options of the team device.
type OptionsCmd struct {
	OutputFlags

	Changed bool `help:"Only list options the driver flagged as changed."`
}

// Run executes the options command.
func (c *OptionsCmd) Run(cli *CLI) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	views := []OptionView{}
	for o := range rt.Session.Options() {
		if c.Changed && !o.Changed {
			continue
		}
		views = append(views, NewOptionView(o))
	}
	out, err := Render(views, &c.OutputFlags, optionTable(views))
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}
