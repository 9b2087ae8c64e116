package tui

import (
	"strings"
	"testing"

	"github.com/meshpart/meshpart/pkg/domain"
)

func TestReportMarkdown(t *testing.T) {
	snaps := []domain.MeshSnapshot{
		{
			Rank: 0,
			Size: 2,
			Entities: []domain.EntitySnapshot{
				{
					Key:    domain.EntityKey{Kind: domain.KindCell, ID: 1},
					Owner:  0,
					Parts:  []string{domain.PartOwned},
					Roster: []domain.RosterEntry{{Level: 0, Rank: 1}},
				},
			},
		},
		{Rank: 1, Size: 2},
	}

	md := ReportMarkdown(snaps)

	for _, want := range []string{
		"## Rank 0 (1 entities)",
		"| cell/1 | 0 | owned | L0:r1 |",
		"## Rank 1 (0 entities)",
		"_empty_",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q:\n%s", want, md)
		}
	}
}

func TestFormatRosterEmpty(t *testing.T) {
	if got := formatRoster(nil); got != "-" {
		t.Errorf("formatRoster(nil) = %q, want \"-\"", got)
	}
}
