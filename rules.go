/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

// Pure helpers backing the vote and grouping rules. Nothing here mutates
// room state.

// voteTargetColumn resolves the column a vote target lives in: a card
// maps to its own column, a group to its first member's column. Groups
// never span columns, so any member would do.
func voteTargetColumn(r *RetroState, targetID string) (string, bool) {
	if card := r.cardByID(targetID); card != nil {
		return card.ColumnID, true
	}
	if group := r.groupByID(targetID); group != nil && len(group.CardIDs) > 0 {
		if first := r.cardByID(group.CardIDs[0]); first != nil {
			return first.ColumnID, true
		}
	}
	return "", false
}

// votesInColumn counts how many of a participant's current votes resolve
// to targets in the given column, using the same resolution rule as the
// target itself.
func votesInColumn(r *RetroState, participantID, columnID string) int {
	n := 0
	for _, target := range r.Votes[participantID] {
		if col, ok := voteTargetColumn(r, target); ok && col == columnID {
			n++
		}
	}
	return n
}

// existingGroupID scans grouping candidates for a group one of them
// already belongs to. Merging into that group wins over creating a new
// one; with no existing membership it returns "".
func existingGroupID(cards []*Card) string {
	for _, c := range cards {
		if c.GroupID != "" {
			return c.GroupID
		}
	}
	return ""
}
