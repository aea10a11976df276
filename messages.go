/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

// Inbound message types. Unknown types are ignored by the hub.
const (
	msgSetPhase       = "set_phase"
	msgAddColumn      = "add_column"
	msgRenameColumn   = "rename_column"
	msgDeleteColumn   = "delete_column"
	msgReorderColumns = "reorder_columns"
	msgAddCard        = "add_card"
	msgEditCard       = "edit_card"
	msgDeleteCard     = "delete_card"
	msgGroupCards     = "group_cards"
	msgUngroupCard    = "ungroup_card"
	msgToggleVote     = "toggle_vote"
	msgVoteSettings   = "vote_settings"
	msgRename         = "rename"
	msgSetFocus       = "set_focus"
	msgAddActionItem  = "add_action_item"
)

// ClientMessage is the union of everything a client can send. The Type
// field selects the operation; the remaining fields are per-type payload.
type ClientMessage struct {
	Type string `json:"type"`

	Phase       string   `json:"phase,omitempty"`          // set_phase
	ColumnID    string   `json:"column_id,omitempty"`      // rename_column / delete_column / add_card
	ColumnIDs   []string `json:"column_ids,omitempty"`     // reorder_columns
	CardID      string   `json:"card_id,omitempty"`        // edit_card / delete_card / ungroup_card / set_focus / add_action_item
	CardIDs     []string `json:"card_ids,omitempty"`       // group_cards
	TargetID    string   `json:"target_id,omitempty"`      // toggle_vote
	TargetType  string   `json:"target_type,omitempty"`    // toggle_vote: "card" or "group"
	Name        string   `json:"name,omitempty"`           // add_column / rename_column / rename
	Description string   `json:"description,omitempty"`    // rename_column
	Content     string   `json:"content,omitempty"`        // add_card / edit_card / add_action_item
	MaxVotes    *int     `json:"max_votes,omitempty"`      // vote_settings (absent clears)
	MaxPerCol   *int     `json:"max_per_column,omitempty"` // vote_settings (absent clears)
}

// ParticipantInfo is one roster entry in a snapshot.
type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SnapshotMessage is sent once, to the connecting client only. It carries
// the full room state plus everything private to this participant: their
// resolved identity, owner standing, and their own vote set.
type SnapshotMessage struct {
	Type         string            `json:"type"` // "snapshot"
	Retro        *RetroState       `json:"retro"`
	You          ParticipantInfo   `json:"you"`
	IsOwner      bool              `json:"is_owner"`
	YourVotes    []string          `json:"your_votes"`
	Participants []ParticipantInfo `json:"participants"`
}

// ParticipantMessage announces roster changes ("participant_joined",
// "participant_left", "participant_renamed").
type ParticipantMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PhaseMessage broadcasts a phase transition.
type PhaseMessage struct {
	Type  string `json:"type"` // "phase_changed"
	Phase Phase  `json:"phase"`
}

// ColumnsMessage broadcasts the canonical column list after any column
// mutation. Order re-packing makes per-column deltas fiddly for clients,
// so the whole list ships every time. Column deletion cascades into cards
// and groups, in which case those lists ride along too.
type ColumnsMessage struct {
	Type    string       `json:"type"` // "columns_changed"
	Columns []Column     `json:"columns"`
	Cards   []*Card      `json:"cards,omitempty"`
	Groups  []*CardGroup `json:"groups,omitempty"`
}

// CardMessage broadcasts a single new or updated card
// ("card_added", "card_updated").
type CardMessage struct {
	Type string `json:"type"`
	Card *Card  `json:"card"`
}

// CardDeletedMessage broadcasts a card removal, including any group
// cleanup the removal triggered.
type CardDeletedMessage struct {
	Type             string `json:"type"` // "card_deleted"
	CardID           string `json:"card_id"`
	DissolvedGroupID string `json:"dissolved_group_id,omitempty"`
	ClearedCardID    string `json:"cleared_card_id,omitempty"` // last member whose group ref was cleared
}

// GroupsMessage broadcasts the group list plus the cards whose group
// references changed alongside it ("groups_changed").
type GroupsMessage struct {
	Type   string       `json:"type"`
	Groups []*CardGroup `json:"groups"`
	Cards  []*Card      `json:"cards"`
}

// VoteResultMessage broadcasts the post-validation aggregate count for a
// target. It goes to everyone, including the voter, so every client shows
// the canonical number rather than an optimistic guess.
type VoteResultMessage struct {
	Type       string `json:"type"` // "vote_result"
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	Votes      int    `json:"votes"`
}

// YourVotesMessage is sent to the voter only, after a toggle, with their
// complete current vote set.
type YourVotesMessage struct {
	Type    string   `json:"type"` // "your_votes"
	Targets []string `json:"targets"`
}

// VoteSettingsMessage broadcasts replaced vote ceilings.
type VoteSettingsMessage struct {
	Type     string       `json:"type"` // "vote_settings"
	Settings VoteSettings `json:"settings"`
}

// FocusMessage broadcasts the focused card (empty id clears focus).
type FocusMessage struct {
	Type   string `json:"type"` // "focus_changed"
	CardID string `json:"card_id"`
}

// ActionItemMessage broadcasts a new action item on a card.
type ActionItemMessage struct {
	Type   string     `json:"type"` // "action_item_added"
	CardID string     `json:"card_id"`
	Item   ActionItem `json:"item"`
}

// ErrorMessage is sent to the offending client only, never broadcast.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}
