// Package cli implements the teamctl command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"

	"github.com/alecthomas/kong"

	team "github.com/frobware/go-team"
	"github.com/frobware/go-team/config"
	"github.com/frobware/go-team/lock"
	"github.com/frobware/go-team/logging"
	"github.com/frobware/go-team/metrics"
	"github.com/frobware/go-team/netns"
)

// CLI is the root command structure for teamctl.
type CLI struct {
	Team   Interface `name:"team" short:"t" help:"Team device name or ifindex." env:"TEAM_DEVICE"`
	NetNS  string    `name:"netns" help:"Network namespace path (e.g. /run/netns/blue)."`
	Config string    `name:"config" help:"Config file path." default:"${default_config_path}"`
	Log    string    `name:"log" help:"Log spec (e.g. 'warn,codec=debug')." env:"TEAM_LOG"`

	Ports      PortsCmd      `cmd:"" help:"List the ports of the team device."`
	Options    OptionsCmd    `cmd:"" help:"List the options of the team device."`
	Option     OptionCmd     `cmd:"" help:"Get or set one option."`
	Mode       ModeCmd       `cmd:"" help:"Show or change the team mode."`
	ActivePort ActivePortCmd `cmd:"" name:"active-port" help:"Show or change the active port."`
	Monitor    MonitorCmd    `cmd:"" help:"Follow change notifications."`
	Replay     ReplayCmd     `cmd:"" help:"Print a recorded change log."`
	Resolve    ResolveCmd    `cmd:"" help:"Translate between interface names and indexes."`

	// Out receives command output. Defaults to os.Stdout.
	Out io.Writer `kong:"-"`

	// Bus and Links replace the kernel transport and link table.
	Bus   team.Bus          `kong:"-"`
	Links team.LinkResolver `kong:"-"`
}

// KongOptions returns the Kong configuration for teamctl.
func KongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("teamctl"),
		kong.Description("Inspect and control Linux team devices."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.TypeMapper(reflect.TypeOf(Interface{}), interfaceMapper()),
		kong.Vars{
			"default_config_path": config.DefaultPath,
		},
	}
}

// LoadConfig loads the configuration file.
func (c *CLI) LoadConfig() (config.Config, error) {
	return config.Load(c.Config)
}

// Logger creates the logger for one-shot commands: warn unless --log
// or $TEAM_LOG says otherwise.
func (c *CLI) Logger(cfg config.Config) (*slog.Logger, error) {
	spec := c.Log
	if spec == "" {
		spec = "warn"
	}
	return c.logger(cfg, spec)
}

// MonitorLogger creates the logger for monitor, which honours the
// configured level.
func (c *CLI) MonitorLogger(cfg config.Config) (*slog.Logger, error) {
	return c.logger(cfg, c.Log)
}

func (c *CLI) logger(cfg config.Config, cliSpec string) (*slog.Logger, error) {
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		CLISpec:    cliSpec,
		ConfigSpec: cfg.Logging.Spec(),
		Format:     format,
		Output:     os.Stderr,
	})
}

// Runtime is an opened session plus the configuration and logger it
// was built from.
type Runtime struct {
	Config  config.Config
	Logger  *slog.Logger
	Session *team.Session
}

// Close closes the session.
func (r *Runtime) Close() error {
	return r.Session.Close()
}

// NewSession allocates a session without binding it to a team device.
func (c *CLI) NewSession(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (*team.Session, error) {
	nsPath := c.NetNS
	if nsPath == "" {
		nsPath = cfg.Team.NetNS
	}
	if err := netns.Check(nsPath); err != nil {
		return nil, err
	}
	opts := []team.SessionOption{
		team.WithLogger(logger),
		team.WithNetNS(nsPath),
	}
	if c.Bus != nil {
		opts = append(opts, team.WithBus(c.Bus))
	}
	if c.Links != nil {
		opts = append(opts, team.WithLinkResolver(c.Links))
	}
	if m != nil {
		opts = append(opts, team.WithMetrics(m))
	}
	return team.New(opts...)
}

// Open loads configuration, resolves the team device and returns an
// initialised session. The caller must Close the runtime.
func (c *CLI) Open(monitor bool, m *metrics.Metrics) (*Runtime, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}
	var logger *slog.Logger
	if monitor {
		logger, err = c.MonitorLogger(cfg)
	} else {
		logger, err = c.Logger(cfg)
	}
	if err != nil {
		return nil, err
	}

	dev := c.Team
	if dev.IsZero() && cfg.Team.Device != "" {
		if dev, err = ParseInterface(cfg.Team.Device); err != nil {
			return nil, fmt.Errorf("config team.device: %w", err)
		}
	}
	if dev.IsZero() {
		return nil, errors.New("no team device given (use --team or team.device in the config)")
	}

	s, err := c.NewSession(cfg, logger, m)
	if err != nil {
		return nil, err
	}
	ifindex := dev.Index
	if ifindex == 0 {
		if ifindex = s.IfnameToIfindex(dev.Name); ifindex == 0 {
			s.Close()
			return nil, fmt.Errorf("team device %s not found", dev.Name)
		}
	}
	if err := s.Init(ifindex); err != nil {
		s.Close()
		return nil, fmt.Errorf("team device %s: %w", dev, err)
	}
	logger.Debug("session opened", "component", "cli", "team", dev.String(), "ifindex", ifindex)
	return &Runtime{Config: cfg, Logger: logger, Session: s}, nil
}

// Change runs fn while holding the configured writer lock.
func (r *Runtime) Change(ctx context.Context, fn func(lock.Scope) error) error {
	return lock.Run(ctx, r.Config.Team.LockFile, func(ctx context.Context, scope lock.Scope) error {
		r.Logger.Debug("holding writer lock", "component", "cli", "path", scope.Path(), "fd", scope.FD())
		return fn(scope)
	})
}

// SetOptionU32 changes a u32 option. Only callable under Change.
func (r *Runtime) SetOptionU32(_ lock.Scope, name string, v uint32) error {
	return r.Session.SetOptionU32(name, v)
}

// SetOptionString changes a string option. Only callable under Change.
func (r *Runtime) SetOptionString(_ lock.Scope, name, v string) error {
	return r.Session.SetOptionString(name, v)
}

func (c *CLI) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// WriteOut writes b in full. A short write without an error is
// reported as io.ErrShortWrite.
func (c *CLI) WriteOut(b []byte) error {
	n, err := c.out().Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}

// PrintOut writes s to the output.
func (c *CLI) PrintOut(s string) error {
	return c.WriteOut([]byte(s))
}

// PrintOutf formats to the output.
func (c *CLI) PrintOutf(format string, args ...any) error {
	return c.PrintOut(fmt.Sprintf(format, args...))
}
