package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// FormatOptions controls diagnostic rendering.
type FormatOptions struct {
	Color bool
	Notes bool
}

var codeColor = color.New(color.Faint)

// Format writes one line per diagnostic:
//
//	<location>: <SEV> <ID>: <message>
//
// followed by indented notes when opts.Notes is set.
func Format(w io.Writer, diags []Diagnostic, opts FormatOptions) error {
	for _, d := range diags {
		sev := d.Severity.String()
		id := d.Code.ID()
		if opts.Color {
			sev = d.Severity.paint(sev)
			id = codeColor.Sprint(id)
		}
		msg := d.Message
		if msg == "" {
			msg = d.Code.Title()
		}
		if _, err := fmt.Fprintf(w, "%s: %s %s: %s\n", d.Primary, sev, id, msg); err != nil {
			return err
		}
		if !opts.Notes {
			continue
		}
		for _, n := range d.Notes {
			if _, err := fmt.Fprintf(w, "    note: %s\n", n.Msg); err != nil {
				return err
			}
		}
	}
	return nil
}
