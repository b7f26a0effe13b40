package meeting

import (
	"fmt"
	"strings"
)

func Subject(channel, network string) string {
	if network == "" {
		return fmt.Sprintf("Minutes from the Status Meeting in %s", channel)
	}
	return fmt.Sprintf("Minutes from the Status Meeting in %s on %s IRC network", channel, network)
}

// FormatMinutes renders the plain-text mail body.
func FormatMinutes(m Minutes) string {
	var b strings.Builder

	b.WriteString("Updates:\n")
	for _, r := range m.Reports {
		fmt.Fprintf(&b, "  * %s %s\n", r.Nick, r.Text)
	}
	if len(m.Missing) > 0 {
		fmt.Fprintf(&b, "\nMissing updates from: %s\n", strings.Join(m.Missing, ", "))
	}

	return b.String()
}
