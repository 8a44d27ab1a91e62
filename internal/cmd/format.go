package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/mozilla-ai/mcphub/internal/cmd/output"
)

// defaultIndent is the indentation used for structured command output.
const defaultIndent = 2

// OutputFormat selects how a command renders its results.
type OutputFormat string

type OutputFormats []OutputFormat

const (
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
	FormatText OutputFormat = "text"
)

func AllowedOutputFormats() OutputFormats {
	formats := []OutputFormat{
		FormatJSON,
		FormatText,
		FormatYAML,
	}

	slices.Sort(formats)

	return formats
}

// NewOutputHandler returns the output.Handler rendering results in the given format.
// The printer is only used by the text format.
func NewOutputHandler[T any](format OutputFormat, w io.Writer, printer output.Printer[T]) (output.Handler[T], error) {
	switch format {
	case FormatJSON:
		return output.NewJSONHandler[T](w, defaultIndent), nil
	case FormatYAML:
		return output.NewYAMLHandler[T](w, defaultIndent), nil
	case FormatText:
		if printer == nil {
			return nil, fmt.Errorf("text output requires a printer")
		}
		return output.NewTextHandler[T](w, printer), nil
	default:
		return nil, fmt.Errorf("invalid format '%s', must be one of %v", format, AllowedOutputFormats().String())
	}
}

// String implements fmt.Stringer for a collection of output formats,
// converting them to a comma separated string.
func (f OutputFormats) String() string {
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].String()
	}
	return strings.Join(out, ", ")
}

// String implements fmt.Stringer for an output format.
// This is also required by Cobra as part of implementing flag.Value.
func (f *OutputFormat) String() string {
	return strings.ToLower(string(*f))
}

// Set is used by Cobra to set the output format value from a string.
// This is also required by Cobra as part of implementing flag.Value.
func (f *OutputFormat) Set(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	allowed := AllowedOutputFormats()

	for _, a := range allowed {
		if string(a) == v {
			*f = OutputFormat(v)
			return nil
		}
	}

	return fmt.Errorf("invalid format '%s', must be one of %v", v, allowed.String())
}

// Type is used by Cobra to get the 'type' of an output format for display purposes.
// This is also required by Cobra as part of implementing flag.Value.
func (f *OutputFormat) Type() string {
	return "format"
}
