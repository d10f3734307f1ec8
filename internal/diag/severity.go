package diag

import "github.com/fatih/color"

// Severity ranks a diagnostic. Only SevError fails a unit.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

var severities = [...]struct {
	name  string
	color *color.Color
}{
	SevInfo:    {"INFO", color.New(color.FgCyan)},
	SevWarning: {"WARNING", color.New(color.FgYellow, color.Bold)},
	SevError:   {"ERROR", color.New(color.FgRed, color.Bold)},
}

func (s Severity) String() string {
	if int(s) < len(severities) {
		return severities[s].name
	}
	return "UNKNOWN"
}

// Fails reports whether a diagnostic of this severity fails its unit.
func (s Severity) Fails() bool { return s >= SevError }

func (s Severity) paint(text string) string {
	if int(s) < len(severities) {
		return severities[s].color.Sprint(text)
	}
	return text
}
