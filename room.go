/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Phase is the current stage of the retro workflow.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseCollect Phase = "collect"
	PhaseGroup   Phase = "group"
	PhaseVote    Phase = "vote"
	PhaseDiscuss Phase = "discuss"
	PhaseReview  Phase = "review"
)

// The UI walks phases forward, but the owner may jump anywhere; the store
// only rejects names that aren't phases at all.
func validPhase(p Phase) bool {
	switch p {
	case PhaseSetup, PhaseCollect, PhaseGroup, PhaseVote, PhaseDiscuss, PhaseReview:
		return true
	}
	return false
}

const (
	maxCardContent = 1000
	maxDisplayName = 50
)

// Column is one board column. Order values stay dense and zero-based;
// every delete and reorder re-packs them.
type Column struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Order       int    `json:"order"`
}

// ActionItem is an append-only note attached to a card.
type ActionItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Card is a single retro card. Votes is derived from the vote sets and
// refreshed whenever votes or membership change. AuthorName is a
// denormalized snapshot, updated when the author renames themselves.
type Card struct {
	ID          string       `json:"id"`
	ColumnID    string       `json:"column_id"`
	Content     string       `json:"content"`
	AuthorID    string       `json:"author_id"`
	AuthorName  string       `json:"author_name"`
	Votes       int          `json:"votes"`
	GroupID     string       `json:"group_id,omitempty"`
	ActionItems []ActionItem `json:"action_items,omitempty"`
}

// CardGroup holds ≥2 cards from a single column. Membership below two
// dissolves the group.
type CardGroup struct {
	ID      string   `json:"id"`
	CardIDs []string `json:"card_ids"`
	Votes   int      `json:"votes"`
}

// VoteSettings holds the vote ceilings. Zero means no ceiling.
type VoteSettings struct {
	MaxVotes  int `json:"max_votes"`
	MaxPerCol int `json:"max_per_column"`
}

// RetroState is the authoritative room state. All mutation goes through
// the operation methods below, and only ever on the owning hub goroutine.
// The owner secret is kept out of the struct entirely (it lives in its own
// store column) so no snapshot or broadcast can leak it.
type RetroState struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Phase         Phase               `json:"phase"`
	Columns       []Column            `json:"columns"`
	Cards         []*Card             `json:"cards"`
	Groups        []*CardGroup        `json:"groups"`
	FocusedCardID string              `json:"focused_card_id,omitempty"`
	VoteSettings  VoteSettings        `json:"vote_settings"`
	Votes         map[string][]string `json:"votes"` // participant id -> toggled target ids
	DisplayNames  map[string]string   `json:"display_names"`
}

// newRetroState initializes a room: Setup phase, empty collections.
func newRetroState(id, name string) *RetroState {
	return &RetroState{
		ID:           id,
		Name:         name,
		Phase:        PhaseSetup,
		Columns:      []Column{},
		Cards:        []*Card{},
		Groups:       []*CardGroup{},
		Votes:        make(map[string][]string),
		DisplayNames: make(map[string]string),
	}
}

// newEntityID mints ids for columns, cards, groups and action items.
func newEntityID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

func (r *RetroState) cardByID(id string) *Card {
	for _, c := range r.Cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (r *RetroState) groupByID(id string) *CardGroup {
	for _, g := range r.Groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

func (r *RetroState) columnIndex(id string) int {
	for i, col := range r.Columns {
		if col.ID == id {
			return i
		}
	}
	return -1
}

// voteCount returns the number of participants whose vote set contains
// the target. Always a set-membership count, never an increment, so
// toggling stays idempotent and reversible.
func (r *RetroState) voteCount(targetID string) int {
	n := 0
	for _, targets := range r.Votes {
		for _, t := range targets {
			if t == targetID {
				n++
				break
			}
		}
	}
	return n
}

// refreshVoteCounts recomputes the derived Votes field on every card and
// group.
func (r *RetroState) refreshVoteCounts() {
	for _, c := range r.Cards {
		c.Votes = r.voteCount(c.ID)
	}
	for _, g := range r.Groups {
		g.Votes = r.voteCount(g.ID)
	}
}

// clearTargetVotes removes a no-longer-votable target (deleted card,
// dissolved group) from every participant's vote set, so stale entries
// never count against ceilings.
func (r *RetroState) clearTargetVotes(targetID string) {
	for pid, targets := range r.Votes {
		dst := targets[:0]
		for _, t := range targets {
			if t != targetID {
				dst = append(dst, t)
			}
		}
		r.Votes[pid] = dst
	}
}

// --- Operations -------------------------------------------------------

// Owner-only operations rely on the hub's authorization gate; by the time
// these run, the caller has already proven ownership.

// setPhase moves the room to any valid phase. Unknown phase names are a
// silent no-op.
func (r *RetroState) setPhase(p Phase) (any, *opError) {
	if !validPhase(p) {
		return nil, nil
	}
	r.Phase = p
	return &PhaseMessage{Type: "phase_changed", Phase: p}, nil
}

// addColumn appends a column at the end of the board.
func (r *RetroState) addColumn(name string) (any, *opError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	r.Columns = append(r.Columns, Column{
		ID:    newEntityID(),
		Name:  name,
		Order: len(r.Columns),
	})
	return &ColumnsMessage{Type: "columns_changed", Columns: r.Columns}, nil
}

func (r *RetroState) renameColumn(id, name, description string) (any, *opError) {
	name = strings.TrimSpace(name)
	i := r.columnIndex(id)
	if i < 0 || name == "" {
		return nil, nil
	}
	r.Columns[i].Name = name
	r.Columns[i].Description = strings.TrimSpace(description)
	return &ColumnsMessage{Type: "columns_changed", Columns: r.Columns}, nil
}

// deleteColumn removes a column, cascades deletion of its cards (with the
// same group cleanup a direct card delete runs), and re-packs the
// remaining order values.
func (r *RetroState) deleteColumn(id string) (any, *opError) {
	i := r.columnIndex(id)
	if i < 0 {
		return nil, nil
	}
	for _, c := range r.Cards {
		if c.ColumnID == id {
			r.removeCard(c.ID)
		}
	}
	dst := r.Cards[:0]
	for _, c := range r.Cards {
		if c.ColumnID != id {
			dst = append(dst, c)
		}
	}
	r.Cards = dst

	r.Columns = append(r.Columns[:i], r.Columns[i+1:]...)
	for j := range r.Columns {
		r.Columns[j].Order = j
	}
	r.refreshVoteCounts()
	return &ColumnsMessage{
		Type:    "columns_changed",
		Columns: r.Columns,
		Cards:   r.Cards,
		Groups:  r.Groups,
	}, nil
}

// reorderColumns assigns order by position in the given list. The id set
// must exactly match the existing columns or nothing happens.
func (r *RetroState) reorderColumns(ids []string) (any, *opError) {
	if len(ids) != len(r.Columns) {
		return nil, nil
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] || r.columnIndex(id) < 0 {
			return nil, nil
		}
		seen[id] = true
	}
	reordered := make([]Column, 0, len(ids))
	for pos, id := range ids {
		col := r.Columns[r.columnIndex(id)]
		col.Order = pos
		reordered = append(reordered, col)
	}
	r.Columns = reordered
	return &ColumnsMessage{Type: "columns_changed", Columns: r.Columns}, nil
}

// publishCard adds a card authored by the given participant.
func (r *RetroState) publishCard(columnID, content string, author Identity) (any, *opError) {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > maxCardContent {
		return nil, errContentTooLong()
	}
	if content == "" || r.columnIndex(columnID) < 0 {
		return nil, nil
	}
	card := &Card{
		ID:         newEntityID(),
		ColumnID:   columnID,
		Content:    content,
		AuthorID:   author.ID,
		AuthorName: author.Name,
	}
	r.Cards = append(r.Cards, card)
	return &CardMessage{Type: "card_added", Card: card}, nil
}

func (r *RetroState) editCard(cardID, content string, requester Identity) (any, *opError) {
	card := r.cardByID(cardID)
	if card == nil {
		return nil, nil
	}
	if card.AuthorID != requester.ID {
		return nil, errUnauthorized("only the author can edit a card")
	}
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) > maxCardContent {
		return nil, errContentTooLong()
	}
	if content == "" {
		return nil, nil
	}
	card.Content = content
	return &CardMessage{Type: "card_updated", Card: card}, nil
}

// removeCard detaches a card from its group (dissolving the group when
// membership drops below 2) and clears any votes cast on it. It does not
// remove the card from r.Cards; callers do that themselves so cascades
// can batch the slice rewrite.
func (r *RetroState) removeCard(cardID string) (dissolvedGroup, clearedCard string) {
	card := r.cardByID(cardID)
	if card == nil {
		return "", ""
	}
	if card.GroupID != "" {
		dissolvedGroup, clearedCard = r.detachFromGroup(card)
	}
	r.clearTargetVotes(cardID)
	if r.FocusedCardID == cardID {
		r.FocusedCardID = ""
	}
	return dissolvedGroup, clearedCard
}

// detachFromGroup pulls a card out of its group and dissolves the group
// if fewer than two members remain, clearing the last member's reference
// and its votes. Stored state never holds a group with <2 members.
func (r *RetroState) detachFromGroup(card *Card) (dissolvedGroup, clearedCard string) {
	group := r.groupByID(card.GroupID)
	card.GroupID = ""
	if group == nil {
		return "", ""
	}
	dst := group.CardIDs[:0]
	for _, id := range group.CardIDs {
		if id != card.ID {
			dst = append(dst, id)
		}
	}
	group.CardIDs = dst

	if len(group.CardIDs) >= 2 {
		return "", ""
	}
	if len(group.CardIDs) == 1 {
		if last := r.cardByID(group.CardIDs[0]); last != nil {
			last.GroupID = ""
			clearedCard = last.ID
		}
	}
	r.clearTargetVotes(group.ID)
	groups := r.Groups[:0]
	for _, g := range r.Groups {
		if g.ID != group.ID {
			groups = append(groups, g)
		}
	}
	r.Groups = groups
	return group.ID, clearedCard
}

func (r *RetroState) deleteCard(cardID string, requester Identity) (any, *opError) {
	card := r.cardByID(cardID)
	if card == nil {
		return nil, nil
	}
	if card.AuthorID != requester.ID {
		return nil, errUnauthorized("only the author can delete a card")
	}
	dissolved, cleared := r.removeCard(cardID)
	dst := r.Cards[:0]
	for _, c := range r.Cards {
		if c.ID != cardID {
			dst = append(dst, c)
		}
	}
	r.Cards = dst
	r.refreshVoteCounts()
	return &CardDeletedMessage{
		Type:             "card_deleted",
		CardID:           cardID,
		DissolvedGroupID: dissolved,
		ClearedCardID:    cleared,
	}, nil
}

// groupCards merges the given cards into one group. If any of them
// already belongs to a group, everything merges into that group;
// otherwise a new group is created. Requires ≥2 distinct existing cards
// sharing one column.
func (r *RetroState) groupCards(cardIDs []string) (any, *opError) {
	cards := make([]*Card, 0, len(cardIDs))
	seen := make(map[string]bool, len(cardIDs))
	for _, id := range cardIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		card := r.cardByID(id)
		if card == nil {
			return nil, nil
		}
		cards = append(cards, card)
	}
	if len(cards) < 2 {
		return nil, nil
	}
	column := cards[0].ColumnID
	for _, c := range cards[1:] {
		if c.ColumnID != column {
			return nil, nil
		}
	}

	group := r.groupByID(existingGroupID(cards))
	if group == nil {
		group = &CardGroup{ID: newEntityID()}
		r.Groups = append(r.Groups, group)
	}
	for _, c := range cards {
		if c.GroupID == group.ID {
			continue
		}
		if c.GroupID != "" {
			// Merging out of another group runs the usual cleanup there.
			r.detachFromGroup(c)
		}
		// A grouped card is no longer votable, so votes already cast on it
		// are cleared rather than left pinned in vote sets.
		r.clearTargetVotes(c.ID)
		c.GroupID = group.ID
		group.CardIDs = append(group.CardIDs, c.ID)
	}
	r.refreshVoteCounts()
	return &GroupsMessage{Type: "groups_changed", Groups: r.Groups, Cards: r.Cards}, nil
}

func (r *RetroState) ungroupCard(cardID string) (any, *opError) {
	card := r.cardByID(cardID)
	if card == nil || card.GroupID == "" {
		return nil, nil
	}
	r.detachFromGroup(card)
	r.refreshVoteCounts()
	return &GroupsMessage{Type: "groups_changed", Groups: r.Groups, Cards: r.Cards}, nil
}

// toggleVote flips a participant's vote on a card or group. Adding a vote
// checks the configured ceilings; removing never does.
func (r *RetroState) toggleVote(targetID, targetType, participantID string) (any, *opError) {
	switch targetType {
	case "card":
		card := r.cardByID(targetID)
		if card == nil {
			return nil, nil
		}
		if card.GroupID != "" {
			return nil, errCardGrouped()
		}
	case "group":
		if r.groupByID(targetID) == nil {
			return nil, nil
		}
	default:
		return nil, nil
	}

	targets := r.Votes[participantID]
	for i, t := range targets {
		if t == targetID {
			// Already voted: toggle off, no ceiling check on removal.
			r.Votes[participantID] = append(targets[:i], targets[i+1:]...)
			r.refreshVoteCounts()
			return &VoteResultMessage{
				Type:       "vote_result",
				TargetID:   targetID,
				TargetType: targetType,
				Votes:      r.voteCount(targetID),
			}, nil
		}
	}

	if limit := r.VoteSettings.MaxVotes; limit > 0 && len(targets)+1 > limit {
		return nil, errVoteLimit()
	}
	if limit := r.VoteSettings.MaxPerCol; limit > 0 {
		column, ok := voteTargetColumn(r, targetID)
		if ok && votesInColumn(r, participantID, column)+1 > limit {
			return nil, errColumnVoteLimit()
		}
	}

	r.Votes[participantID] = append(targets, targetID)
	r.refreshVoteCounts()
	return &VoteResultMessage{
		Type:       "vote_result",
		TargetID:   targetID,
		TargetType: targetType,
		Votes:      r.voteCount(targetID),
	}, nil
}

// setVoteSettings replaces both ceilings wholesale; nil clears.
func (r *RetroState) setVoteSettings(maxVotes, maxPerCol *int) (any, *opError) {
	settings := VoteSettings{}
	if maxVotes != nil && *maxVotes > 0 {
		settings.MaxVotes = *maxVotes
	}
	if maxPerCol != nil && *maxPerCol > 0 {
		settings.MaxPerCol = *maxPerCol
	}
	r.VoteSettings = settings
	return &VoteSettingsMessage{Type: "vote_settings", Settings: settings}, nil
}

// renameParticipant updates a participant's display name, propagating the
// new name onto every card they authored and into the persisted name map.
func (r *RetroState) renameParticipant(participantID, newName string) (any, *opError) {
	newName = strings.TrimSpace(newName)
	if n := utf8.RuneCountInString(newName); n < 1 || n > maxDisplayName {
		return nil, errInvalidName()
	}
	r.DisplayNames[participantID] = newName
	for _, c := range r.Cards {
		if c.AuthorID == participantID {
			c.AuthorName = newName
		}
	}
	return &ParticipantMessage{Type: "participant_renamed", ID: participantID, Name: newName}, nil
}

// setFocus points every client at one card, or clears focus with an
// empty id.
func (r *RetroState) setFocus(cardID string) (any, *opError) {
	if cardID != "" && r.cardByID(cardID) == nil {
		return nil, nil
	}
	r.FocusedCardID = cardID
	return &FocusMessage{Type: "focus_changed", CardID: cardID}, nil
}

// addActionItem appends an action item to a card. The UI only offers this
// for the focused card; the item itself persists regardless of focus.
func (r *RetroState) addActionItem(cardID, content string) (any, *opError) {
	content = strings.TrimSpace(content)
	card := r.cardByID(cardID)
	if card == nil || content == "" {
		return nil, nil
	}
	item := ActionItem{ID: newEntityID(), Text: content}
	card.ActionItems = append(card.ActionItems, item)
	return &ActionItemMessage{Type: "action_item_added", CardID: cardID, Item: item}, nil
}
