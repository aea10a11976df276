/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import "testing"

func TestVoteTargetColumn(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)
	c := mustPublish(t, r, woes.ID, "c", alice)
	group := mustGroup(t, r, a.ID, b.ID)

	tests := []struct {
		name     string
		targetID string
		wantCol  string
		wantOK   bool
	}{
		{"card resolves to its column", c.ID, woes.ID, true},
		{"grouped card still resolves", a.ID, wins.ID, true},
		{"group resolves via first member", group.ID, wins.ID, true},
		{"unknown target does not resolve", "bogus", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, ok := voteTargetColumn(r, tt.targetID)
			if col != tt.wantCol || ok != tt.wantOK {
				t.Fatalf("voteTargetColumn(%q) = %q, %t, want %q, %t",
					tt.targetID, col, ok, tt.wantCol, tt.wantOK)
			}
		})
	}
}

func TestVotesInColumn(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)
	c := mustPublish(t, r, woes.ID, "c", alice)

	r.Votes[bob.ID] = []string{a.ID, b.ID, c.ID}

	if got := votesInColumn(r, bob.ID, wins.ID); got != 2 {
		t.Fatalf("votesInColumn(wins) = %d, want 2", got)
	}
	if got := votesInColumn(r, bob.ID, woes.ID); got != 1 {
		t.Fatalf("votesInColumn(woes) = %d, want 1", got)
	}
	if got := votesInColumn(r, alice.ID, wins.ID); got != 0 {
		t.Fatalf("votesInColumn for non-voter = %d, want 0", got)
	}
}

func TestExistingGroupID(t *testing.T) {
	grouped := &Card{ID: "a", GroupID: "g1"}
	loose := &Card{ID: "b"}

	if got := existingGroupID([]*Card{loose, grouped}); got != "g1" {
		t.Fatalf("existingGroupID = %q, want g1", got)
	}
	if got := existingGroupID([]*Card{loose}); got != "" {
		t.Fatalf("existingGroupID = %q, want empty", got)
	}
}
