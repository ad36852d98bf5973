package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/jsonpath"

	team "github.com/frobware/go-team"
)

// PortView is the rendered form of a port.
type PortView struct {
	Ifindex uint32 `json:"ifindex" yaml:"ifindex"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	LinkUp  bool   `json:"linkup" yaml:"linkup"`
	Speed   uint32 `json:"speed" yaml:"speed"`
	Duplex  string `json:"duplex" yaml:"duplex"`
	Changed bool   `json:"changed" yaml:"changed"`
}

// OptionView is the rendered form of an option.
type OptionView struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Value   any    `json:"value" yaml:"value"`
	Changed bool   `json:"changed" yaml:"changed"`
}

func duplexName(d uint8) string {
	if d == 0 {
		return "half"
	}
	return "full"
}

// NewPortView converts p. Names come from the session's link table
// and are left empty when the link is unknown.
func NewPortView(s *team.Session, p *team.Port) PortView {
	name, _ := s.IfindexToIfname(p.Ifindex)
	return PortView{
		Ifindex: p.Ifindex,
		Name:    name,
		LinkUp:  p.LinkUp,
		Speed:   p.Speed,
		Duplex:  duplexName(p.Duplex),
		Changed: p.Changed,
	}
}

// NewOptionView converts o.
func NewOptionView(o *team.Option) OptionView {
	return OptionView{
		Name:    o.Name,
		Type:    o.Type.String(),
		Value:   o.Value(),
		Changed: o.Changed,
	}
}

// Render formats v according to flags. table writes the tabular form.
func Render(v any, flags *OutputFlags, table func(io.Writer)) (string, error) {
	switch flags.Format() {
	case OutputFormatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
		return string(out) + "\n", nil
	case OutputFormatYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal result: %w", err)
		}
		return string(out), nil
	case OutputFormatJSONPath:
		return renderJSONPath(v, flags.JSONPathExpr())
	default:
		var buf bytes.Buffer
		table(&buf)
		return buf.String(), nil
	}
}

func renderJSONPath(v any, expr string) (string, error) {
	jp := jsonpath.New("output")
	if err := jp.Parse(expr); err != nil {
		return "", fmt.Errorf("invalid jsonpath expression %q: %w", expr, err)
	}
	// jsonpath walks generic values, so round-trip through JSON to get
	// the field names the json tags declare.
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", fmt.Errorf("failed to unmarshal: %w", err)
	}
	var buf bytes.Buffer
	if err := jp.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("jsonpath execution failed: %w", err)
	}
	return buf.String() + "\n", nil
}

func portTable(ports []PortView) func(io.Writer) {
	return func(out io.Writer) {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IFINDEX\tNAME\tLINK\tSPEED\tDUPLEX\tCHANGED")
		for _, p := range ports {
			link := "down"
			if p.LinkUp {
				link = "up"
			}
			name := p.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%t\n", p.Ifindex, name, link, p.Speed, p.Duplex, p.Changed)
		}
		w.Flush()
	}
}

func optionTable(options []OptionView) func(io.Writer) {
	return func(out io.Writer) {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tVALUE\tCHANGED")
		for _, o := range options {
			fmt.Fprintf(w, "%s\t%s\t%v\t%t\n", o.Name, o.Type, o.Value, o.Changed)
		}
		w.Flush()
	}
}
