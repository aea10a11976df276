/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"strings"
	"testing"
)

func testBoard(t *testing.T) *RetroState {
	t.Helper()
	return newRetroState("board1", "Sprint Retro")
}

func mustAddColumn(t *testing.T, r *RetroState, name string) Column {
	t.Helper()
	event, opErr := r.addColumn(name)
	if opErr != nil || event == nil {
		t.Fatalf("addColumn(%q) = %v, %v", name, event, opErr)
	}
	return r.Columns[len(r.Columns)-1]
}

func mustPublish(t *testing.T, r *RetroState, columnID, content string, author Identity) *Card {
	t.Helper()
	event, opErr := r.publishCard(columnID, content, author)
	if opErr != nil || event == nil {
		t.Fatalf("publishCard(%q) = %v, %v", content, event, opErr)
	}
	return r.Cards[len(r.Cards)-1]
}

func mustGroup(t *testing.T, r *RetroState, ids ...string) *CardGroup {
	t.Helper()
	event, opErr := r.groupCards(ids)
	if opErr != nil || event == nil {
		t.Fatalf("groupCards(%v) = %v, %v", ids, event, opErr)
	}
	return r.Groups[len(r.Groups)-1]
}

var (
	alice = Identity{ID: "alice", Name: "Agile Otter"}
	bob   = Identity{ID: "bob", Name: "Bold Heron"}
)

func TestSetPhase(t *testing.T) {
	r := testBoard(t)

	event, opErr := r.setPhase(PhaseVote)
	if opErr != nil || event == nil {
		t.Fatalf("setPhase(vote) = %v, %v", event, opErr)
	}
	if r.Phase != PhaseVote {
		t.Fatalf("phase = %q, want %q", r.Phase, PhaseVote)
	}

	// Backward moves are allowed for the owner.
	if event, opErr := r.setPhase(PhaseSetup); opErr != nil || event == nil {
		t.Fatalf("setPhase(setup) = %v, %v", event, opErr)
	}

	// Unknown phases are a silent no-op.
	if event, opErr := r.setPhase(Phase("afterparty")); event != nil || opErr != nil {
		t.Fatalf("setPhase(afterparty) = %v, %v, want silent no-op", event, opErr)
	}
	if r.Phase != PhaseSetup {
		t.Fatalf("phase changed on invalid transition: %q", r.Phase)
	}
}

func TestColumnLifecycle(t *testing.T) {
	r := testBoard(t)

	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")
	ideas := mustAddColumn(t, r, "Ideas")

	if wins.Order != 0 || woes.Order != 1 || ideas.Order != 2 {
		t.Fatalf("orders not dense: %d %d %d", wins.Order, woes.Order, ideas.Order)
	}

	// Empty names no-op.
	if event, _ := r.addColumn("   "); event != nil {
		t.Fatal("addColumn of blank name should be a no-op")
	}
	if event, _ := r.renameColumn(wins.ID, "  ", ""); event != nil {
		t.Fatal("renameColumn to blank should be a no-op")
	}

	if event, _ := r.renameColumn(wins.ID, "Went Well", "things to celebrate"); event == nil {
		t.Fatal("renameColumn failed")
	}
	if r.Columns[0].Name != "Went Well" || r.Columns[0].Description != "things to celebrate" {
		t.Fatalf("rename not applied: %+v", r.Columns[0])
	}

	// Reorder only applies when the id set matches exactly.
	if event, _ := r.reorderColumns([]string{woes.ID, wins.ID}); event != nil {
		t.Fatal("reorder with missing id should be a no-op")
	}
	if event, _ := r.reorderColumns([]string{woes.ID, wins.ID, "bogus"}); event != nil {
		t.Fatal("reorder with unknown id should be a no-op")
	}
	if event, _ := r.reorderColumns([]string{ideas.ID, wins.ID, woes.ID}); event == nil {
		t.Fatal("valid reorder rejected")
	}
	if r.Columns[0].ID != ideas.ID || r.Columns[0].Order != 0 ||
		r.Columns[2].ID != woes.ID || r.Columns[2].Order != 2 {
		t.Fatalf("reorder not applied: %+v", r.Columns)
	}

	// Delete re-packs orders densely.
	if event, _ := r.deleteColumn(wins.ID); event == nil {
		t.Fatal("deleteColumn failed")
	}
	if len(r.Columns) != 2 {
		t.Fatalf("columns = %d, want 2", len(r.Columns))
	}
	for i, col := range r.Columns {
		if col.Order != i {
			t.Fatalf("order not re-packed: %+v", r.Columns)
		}
	}
}

func TestDeleteColumnCascades(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")

	c1 := mustPublish(t, r, wins.ID, "shipped", alice)
	c2 := mustPublish(t, r, wins.ID, "on time", bob)
	keeper := mustPublish(t, r, woes.ID, "flaky CI", alice)
	group := mustGroup(t, r, c1.ID, c2.ID)

	if _, opErr := r.toggleVote(group.ID, "group", alice.ID); opErr != nil {
		t.Fatalf("vote on group: %v", opErr)
	}

	if event, _ := r.deleteColumn(wins.ID); event == nil {
		t.Fatal("deleteColumn failed")
	}

	if len(r.Cards) != 1 || r.Cards[0].ID != keeper.ID {
		t.Fatalf("cascade left cards: %+v", r.Cards)
	}
	if len(r.Groups) != 0 {
		t.Fatalf("cascade left groups: %+v", r.Groups)
	}
	if got := len(r.Votes[alice.ID]); got != 0 {
		t.Fatalf("stale votes survived cascade: %v", r.Votes[alice.ID])
	}
}

func TestPublishCardValidation(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")

	if event, _ := r.publishCard(wins.ID, "   ", alice); event != nil {
		t.Fatal("blank content should be a no-op")
	}
	if event, _ := r.publishCard("bogus", "hello", alice); event != nil {
		t.Fatal("unknown column should be a no-op")
	}

	long := strings.Repeat("x", maxCardContent+1)
	if _, opErr := r.publishCard(wins.ID, long, alice); opErr == nil || opErr.Code != codeContentTooLong {
		t.Fatalf("oversized content = %v, want %s", opErr, codeContentTooLong)
	}

	exact := strings.Repeat("x", maxCardContent)
	if event, opErr := r.publishCard(wins.ID, exact, alice); event == nil || opErr != nil {
		t.Fatalf("content at the limit rejected: %v", opErr)
	}

	// Limits count runes, not bytes: a full-width card is three bytes per
	// character but still within the limit.
	wide := strings.Repeat("見", maxCardContent)
	if event, opErr := r.publishCard(wins.ID, wide, alice); event == nil || opErr != nil {
		t.Fatalf("multi-byte content at the limit rejected: %v", opErr)
	}
	if _, opErr := r.publishCard(wins.ID, wide+"見", alice); opErr == nil || opErr.Code != codeContentTooLong {
		t.Fatalf("multi-byte content over the limit = %v, want %s", opErr, codeContentTooLong)
	}
}

func TestEditCardRoundTrip(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	card := mustPublish(t, r, wins.ID, "Shipped v2", alice)

	if _, opErr := r.editCard(card.ID, "tweak", bob); opErr == nil || opErr.Code != codeUnauthorized {
		t.Fatalf("non-author edit = %v, want %s", opErr, codeUnauthorized)
	}

	if event, opErr := r.editCard(card.ID, "Shipped v2.1", alice); event == nil || opErr != nil {
		t.Fatalf("author edit rejected: %v", opErr)
	}

	got := r.cardByID(card.ID)
	if got.Content != "Shipped v2.1" {
		t.Fatalf("content = %q", got.Content)
	}
	if got.AuthorID != alice.ID || got.AuthorName != alice.Name {
		t.Fatalf("author changed on edit: %+v", got)
	}
}

func TestDeleteCardAuthorization(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	card := mustPublish(t, r, wins.ID, "Shipped v2", alice)

	if _, opErr := r.deleteCard(card.ID, bob); opErr == nil || opErr.Code != codeUnauthorized {
		t.Fatalf("non-author delete = %v, want %s", opErr, codeUnauthorized)
	}
	if event, opErr := r.deleteCard(card.ID, alice); event == nil || opErr != nil {
		t.Fatalf("author delete rejected: %v", opErr)
	}
	if len(r.Cards) != 0 {
		t.Fatalf("card survived delete: %+v", r.Cards)
	}
}

func TestGroupCardsSameColumnOnly(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, woes.ID, "b", bob)

	if event, opErr := r.groupCards([]string{a.ID, b.ID}); event != nil || opErr != nil {
		t.Fatalf("cross-column group = %v, %v, want silent no-op", event, opErr)
	}
	if len(r.Groups) != 0 || a.GroupID != "" || b.GroupID != "" {
		t.Fatal("cross-column group mutated state")
	}

	// A single distinct card is also a no-op.
	if event, _ := r.groupCards([]string{a.ID, a.ID}); event != nil {
		t.Fatal("group of one card should be a no-op")
	}
}

func TestGroupCardsMergesIntoExistingGroup(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)
	c := mustPublish(t, r, wins.ID, "c", alice)

	group := mustGroup(t, r, a.ID, b.ID)
	if event, _ := r.groupCards([]string{c.ID, a.ID}); event == nil {
		t.Fatal("merge into existing group rejected")
	}

	if len(r.Groups) != 1 {
		t.Fatalf("groups = %d, want 1 (merge, not create)", len(r.Groups))
	}
	if c.GroupID != group.ID {
		t.Fatalf("merged card group = %q, want %q", c.GroupID, group.ID)
	}
	if len(group.CardIDs) != 3 {
		t.Fatalf("group members = %v", group.CardIDs)
	}
}

func TestGroupDissolvesBelowTwoMembers(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)
	group := mustGroup(t, r, a.ID, b.ID)

	if _, opErr := r.toggleVote(group.ID, "group", alice.ID); opErr != nil {
		t.Fatalf("vote on group: %v", opErr)
	}

	event, opErr := r.deleteCard(a.ID, alice)
	if event == nil || opErr != nil {
		t.Fatalf("delete grouped card: %v", opErr)
	}
	deleted := event.(*CardDeletedMessage)
	if deleted.DissolvedGroupID != group.ID || deleted.ClearedCardID != b.ID {
		t.Fatalf("dissolution not reported: %+v", deleted)
	}

	if len(r.Groups) != 0 {
		t.Fatalf("group survived with <2 members: %+v", r.Groups)
	}
	if b.GroupID != "" {
		t.Fatalf("remaining card still references group %q", b.GroupID)
	}
	if len(r.Votes[alice.ID]) != 0 {
		t.Fatalf("votes on dissolved group survived: %v", r.Votes[alice.ID])
	}
}

func TestUngroupCard(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)
	c := mustPublish(t, r, wins.ID, "c", alice)
	group := mustGroup(t, r, a.ID, b.ID, c.ID)

	if event, _ := r.ungroupCard("bogus"); event != nil {
		t.Fatal("ungroup of unknown card should be a no-op")
	}

	if event, _ := r.ungroupCard(a.ID); event == nil {
		t.Fatal("ungroup rejected")
	}
	if a.GroupID != "" || len(group.CardIDs) != 2 {
		t.Fatalf("ungroup not applied: %+v", group.CardIDs)
	}

	// Dropping to one member dissolves the group entirely.
	if event, _ := r.ungroupCard(b.ID); event == nil {
		t.Fatal("ungroup rejected")
	}
	if len(r.Groups) != 0 || c.GroupID != "" {
		t.Fatalf("group not dissolved: groups=%v c.GroupID=%q", r.Groups, c.GroupID)
	}
}

func TestToggleVoteParity(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	card := mustPublish(t, r, wins.ID, "a", alice)

	for i := 1; i <= 5; i++ {
		event, opErr := r.toggleVote(card.ID, "card", bob.ID)
		if opErr != nil {
			t.Fatalf("toggle %d: %v", i, opErr)
		}
		want := i % 2
		if got := event.(*VoteResultMessage).Votes; got != want {
			t.Fatalf("toggle %d: votes = %d, want %d", i, got, want)
		}
	}
}

func TestVoteOnGroupedCardRejected(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)

	// A pre-grouping vote on a card is cleared when the card is grouped,
	// so it cannot pin a slot the voter can no longer toggle off.
	if _, opErr := r.toggleVote(a.ID, "card", bob.ID); opErr != nil {
		t.Fatalf("vote on loose card: %v", opErr)
	}
	group := mustGroup(t, r, a.ID, b.ID)
	if len(r.Votes[bob.ID]) != 0 {
		t.Fatalf("grouping left card votes pinned: %v", r.Votes[bob.ID])
	}

	if _, opErr := r.toggleVote(a.ID, "card", bob.ID); opErr == nil || opErr.Code != codeCardGrouped {
		t.Fatalf("vote on grouped card = %v, want %s", opErr, codeCardGrouped)
	}

	event, opErr := r.toggleVote(group.ID, "group", bob.ID)
	if opErr != nil {
		t.Fatalf("vote on group: %v", opErr)
	}
	if got := event.(*VoteResultMessage).Votes; got != 1 {
		t.Fatalf("group votes = %d, want 1", got)
	}
}

func TestTotalVoteCeiling(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)

	one := 1
	if _, opErr := r.setVoteSettings(&one, nil); opErr != nil {
		t.Fatalf("setVoteSettings: %v", opErr)
	}

	if _, opErr := r.toggleVote(a.ID, "card", alice.ID); opErr != nil {
		t.Fatalf("first vote: %v", opErr)
	}
	if _, opErr := r.toggleVote(b.ID, "card", alice.ID); opErr == nil || opErr.Code != codeVoteLimit {
		t.Fatalf("second vote = %v, want %s", opErr, codeVoteLimit)
	}
	if len(r.Votes[alice.ID]) != 1 {
		t.Fatalf("active votes = %v, want exactly one", r.Votes[alice.ID])
	}

	// Removal needs no ceiling headroom, and frees the slot.
	if _, opErr := r.toggleVote(a.ID, "card", alice.ID); opErr != nil {
		t.Fatalf("toggle off: %v", opErr)
	}
	if _, opErr := r.toggleVote(b.ID, "card", alice.ID); opErr != nil {
		t.Fatalf("vote after freeing slot: %v", opErr)
	}
}

func TestPerColumnVoteCeiling(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")

	a := mustPublish(t, r, wins.ID, "a", alice)
	b := mustPublish(t, r, wins.ID, "b", bob)
	other := mustPublish(t, r, woes.ID, "c", alice)

	one := 1
	if _, opErr := r.setVoteSettings(nil, &one); opErr != nil {
		t.Fatalf("setVoteSettings: %v", opErr)
	}

	if _, opErr := r.toggleVote(a.ID, "card", alice.ID); opErr != nil {
		t.Fatalf("first vote: %v", opErr)
	}
	if _, opErr := r.toggleVote(b.ID, "card", alice.ID); opErr == nil || opErr.Code != codeColumnVoteLimit {
		t.Fatalf("second in-column vote = %v, want %s", opErr, codeColumnVoteLimit)
	}

	// A different column still has headroom.
	if _, opErr := r.toggleVote(other.ID, "card", alice.ID); opErr != nil {
		t.Fatalf("cross-column vote: %v", opErr)
	}
}

func TestSetVoteSettingsReplacesWholesale(t *testing.T) {
	r := testBoard(t)

	five, two := 5, 2
	if _, opErr := r.setVoteSettings(&five, &two); opErr != nil {
		t.Fatalf("setVoteSettings: %v", opErr)
	}
	if r.VoteSettings.MaxVotes != 5 || r.VoteSettings.MaxPerCol != 2 {
		t.Fatalf("settings = %+v", r.VoteSettings)
	}

	// Omitting a value clears it.
	if _, opErr := r.setVoteSettings(&five, nil); opErr != nil {
		t.Fatalf("setVoteSettings: %v", opErr)
	}
	if r.VoteSettings.MaxPerCol != 0 {
		t.Fatalf("per-column ceiling not cleared: %+v", r.VoteSettings)
	}
}

func TestRenameParticipantPropagates(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	card := mustPublish(t, r, wins.ID, "a", alice)
	other := mustPublish(t, r, wins.ID, "b", bob)

	if _, opErr := r.renameParticipant(alice.ID, "   "); opErr == nil || opErr.Code != codeInvalidName {
		t.Fatalf("blank rename = %v, want %s", opErr, codeInvalidName)
	}
	if _, opErr := r.renameParticipant(alice.ID, strings.Repeat("n", maxDisplayName+1)); opErr == nil || opErr.Code != codeInvalidName {
		t.Fatalf("oversized rename accepted")
	}
	// Name length counts runes, not bytes.
	if _, opErr := r.renameParticipant(alice.ID, strings.Repeat("ö", maxDisplayName)); opErr != nil {
		t.Fatalf("multi-byte name at the limit rejected: %v", opErr)
	}

	if _, opErr := r.renameParticipant(alice.ID, "Alice"); opErr != nil {
		t.Fatalf("rename: %v", opErr)
	}
	if card.AuthorName != "Alice" {
		t.Fatalf("authored card not renamed: %q", card.AuthorName)
	}
	if other.AuthorName != bob.Name {
		t.Fatalf("unrelated card renamed: %q", other.AuthorName)
	}
	if r.DisplayNames[alice.ID] != "Alice" {
		t.Fatalf("name map = %v", r.DisplayNames)
	}
}

func TestFocusAndActionItems(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	card := mustPublish(t, r, wins.ID, "a", alice)

	if event, _ := r.setFocus("bogus"); event != nil {
		t.Fatal("focus on unknown card should be a no-op")
	}
	if event, _ := r.setFocus(card.ID); event == nil {
		t.Fatal("setFocus rejected")
	}
	if r.FocusedCardID != card.ID {
		t.Fatalf("focus = %q", r.FocusedCardID)
	}

	if event, _ := r.addActionItem(card.ID, "  "); event != nil {
		t.Fatal("blank action item should be a no-op")
	}
	if event, _ := r.addActionItem("bogus", "do it"); event != nil {
		t.Fatal("action item on unknown card should be a no-op")
	}
	if event, _ := r.addActionItem(card.ID, "Celebrate at standup"); event == nil {
		t.Fatal("addActionItem rejected")
	}
	if len(card.ActionItems) != 1 || card.ActionItems[0].Text != "Celebrate at standup" {
		t.Fatalf("action items = %+v", card.ActionItems)
	}

	// Deleting the focused card clears focus.
	if _, opErr := r.deleteCard(card.ID, alice); opErr != nil {
		t.Fatalf("delete: %v", opErr)
	}
	if r.FocusedCardID != "" {
		t.Fatalf("focus not cleared: %q", r.FocusedCardID)
	}

	if event, _ := r.setFocus(""); event == nil {
		t.Fatal("clearing focus should broadcast")
	}
}
