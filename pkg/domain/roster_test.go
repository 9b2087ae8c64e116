package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeRoster(t *testing.T) {
	cases := []struct {
		name string
		in   []RosterEntry
		want []RosterEntry
	}{
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
		{
			name: "sorts by rank then level",
			in: []RosterEntry{
				{Level: 1, Rank: 2},
				{Level: 0, Rank: 1},
				{Level: 1, Rank: 1},
			},
			want: []RosterEntry{
				{Level: 0, Rank: 1},
				{Level: 1, Rank: 1},
				{Level: 1, Rank: 2},
			},
		},
		{
			name: "drops exact duplicates only",
			in: []RosterEntry{
				{Level: 0, Rank: 1},
				{Level: 0, Rank: 1},
				{Level: 1, Rank: 1},
			},
			want: []RosterEntry{
				{Level: 0, Rank: 1},
				{Level: 1, Rank: 1},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeRoster(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("NormalizeRoster(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeRosterDoesNotAliasInput(t *testing.T) {
	in := []RosterEntry{{Level: 1, Rank: 2}, {Level: 0, Rank: 0}}
	out := NormalizeRoster(in)
	in[0].Rank = 99
	if out[1].Rank == 99 {
		t.Error("normalized roster aliases the caller's slice")
	}
}

func TestEqualRosters(t *testing.T) {
	a := []RosterEntry{{Level: 0, Rank: 1}}
	b := []RosterEntry{{Level: 0, Rank: 1}, {Level: 1, Rank: 1}}
	if EqualRosters(a, b) {
		t.Error("rosters of different length compare equal")
	}
	if !EqualRosters(a, []RosterEntry{{Level: 0, Rank: 1}}) {
		t.Error("identical rosters compare unequal")
	}
	if !EqualRosters(nil, nil) {
		t.Error("two empty rosters must be equal")
	}
}
