package version

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Build information for the framekit CLI, overridable via -ldflags.
var (
	Version    = "0.1.0-dev"
	GitCommit  = ""
	GitMessage = ""
	BuildDate  = ""
)

var (
	nameColor   = color.New(color.FgCyan, color.Bold)
	majorColor  = color.New(color.FgYellow, color.Bold)
	minorColor  = color.New(color.FgGreen, color.Bold)
	patchColor  = color.New(color.FgBlue, color.Bold)
	detailColor = color.New(color.Faint)
)

// Colored renders Version with one color per numeric component. Versions
// that are not major.minor.patch are returned unchanged.
func Colored() string {
	core, suffix, _ := strings.Cut(Version, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		return Version
	}
	out := majorColor.Sprint(parts[0]) + "." + minorColor.Sprint(parts[1]) + "." + patchColor.Sprint(parts[2])
	if suffix != "" {
		out += "-" + suffix
	}
	return out
}

// WriteBanner prints the version line followed by optional build details.
func WriteBanner(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", nameColor.Sprint("framekit"), Colored()); err != nil {
		return err
	}
	details := []struct{ key, value string }{
		{"commit", GitCommit},
		{"message", GitMessage},
		{"built", BuildDate},
	}
	for _, d := range details {
		if d.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  %s %s\n", detailColor.Sprintf("%-8s", d.key+":"), d.value); err != nil {
			return err
		}
	}
	return nil
}
