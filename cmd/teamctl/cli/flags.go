package cli

import "strings"

// OutputFormat is the rendering of command results.
type OutputFormat string

const (
	OutputFormatTable    OutputFormat = "table"
	OutputFormatJSON     OutputFormat = "json"
	OutputFormatYAML     OutputFormat = "yaml"
	OutputFormatJSONPath OutputFormat = "jsonpath"
)

const jsonpathPrefix = "jsonpath="

// OutputFlags provides -o.
type OutputFlags struct {
	Output string `short:"o" help:"Output format: table, json, yaml, jsonpath=EXPR." default:"table"`
}

// Format returns the selected format; unknown values render as tables.
func (f *OutputFlags) Format() OutputFormat {
	switch {
	case f.Output == "json":
		return OutputFormatJSON
	case f.Output == "yaml":
		return OutputFormatYAML
	case strings.HasPrefix(f.Output, jsonpathPrefix) && len(f.Output) > len(jsonpathPrefix):
		return OutputFormatJSONPath
	default:
		return OutputFormatTable
	}
}

// JSONPathExpr returns EXPR from jsonpath=EXPR.
func (f *OutputFlags) JSONPathExpr() string {
	if f.Format() != OutputFormatJSONPath {
		return ""
	}
	return strings.TrimPrefix(f.Output, jsonpathPrefix)
}
