package cli

// PortsCmd lists the ports of the team device.
type PortsCmd struct {
	OutputFlags
}

// Run executes the ports command.
func (c *PortsCmd) Run(cli *CLI) error {
	rt, err := cli.Open(false, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	views := []PortView{}
	for p := range rt.Session.Ports() {
		views = append(views, NewPortView(rt.Session, p))
	}
	out, err := Render(views, &c.OutputFlags, portTable(views))
	if err != nil {
		return err
	}
	return cli.PrintOut(out)
}
