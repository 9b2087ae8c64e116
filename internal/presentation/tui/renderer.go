// Package tui renders the CLI's post-run mesh report.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/meshpart/meshpart/pkg/domain"
)

// NewRenderer returns a function that renders markdown for the terminal.
// On a TTY it uses glamour with auto-detected background; piped output gets
// the plain markdown unchanged.
func NewRenderer() func(string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) || termenv.EnvNoColor() {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	return r.Render
}

// ReportMarkdown formats every rank's snapshot as one markdown report.
func ReportMarkdown(snapshots []domain.MeshSnapshot) string {
	var b strings.Builder
	b.WriteString("# Mesh report\n\n")
	for _, snap := range snapshots {
		fmt.Fprintf(&b, "## Rank %d (%d entities)\n\n", snap.Rank, len(snap.Entities))
		if len(snap.Entities) == 0 {
			b.WriteString("_empty_\n\n")
			continue
		}
		b.WriteString("| Entity | Owner | Parts | Roster |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, e := range snap.Entities {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n",
				e.Key, e.Owner, strings.Join(e.Parts, ", "), formatRoster(e.Roster))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatRoster(roster []domain.RosterEntry) string {
	if len(roster) == 0 {
		return "-"
	}
	parts := make([]string, len(roster))
	for i, e := range roster {
		parts[i] = fmt.Sprintf("L%d:r%d", e.Level, e.Rank)
	}
	return strings.Join(parts, " ")
}
