/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"fmt"
	"sort"
	"strings"
)

// exportMarkdown renders a board snapshot as a Markdown document. It is
// a pure reader over the generic snapshot; no store operation exists for
// export.
func exportMarkdown(r *RetroState) string {
	var doc strings.Builder

	doc.WriteString("# " + r.Name + "\n\n")
	doc.WriteString("Phase: " + string(r.Phase) + "\n\n")

	columns := append([]Column{}, r.Columns...)
	sort.Slice(columns, func(i, j int) bool {
		return columns[i].Order < columns[j].Order
	})

	for _, col := range columns {
		doc.WriteString("## " + col.Name + "\n\n")
		if col.Description != "" {
			doc.WriteString(col.Description + "\n\n")
		}

		grouped := make(map[string]bool)
		for _, g := range r.Groups {
			if len(g.CardIDs) == 0 {
				continue
			}
			first := r.cardByID(g.CardIDs[0])
			if first == nil || first.ColumnID != col.ID {
				continue
			}
			doc.WriteString(fmt.Sprintf("- **Group** (%d %s)\n", g.Votes, voteLabel(g.Votes)))
			for _, id := range g.CardIDs {
				card := r.cardByID(id)
				if card == nil {
					continue
				}
				grouped[id] = true
				writeCard(&doc, card, "  ")
			}
		}

		for _, card := range r.Cards {
			if card.ColumnID != col.ID || grouped[card.ID] {
				continue
			}
			writeCard(&doc, card, "")
		}

		doc.WriteString("\n")
	}

	return doc.String()
}

func writeCard(doc *strings.Builder, card *Card, indent string) {
	doc.WriteString(fmt.Sprintf("%s- %s (%s, %d %s)\n",
		indent, card.Content, card.AuthorName, card.Votes, voteLabel(card.Votes)))
	for _, item := range card.ActionItems {
		doc.WriteString(fmt.Sprintf("%s  - [ ] %s\n", indent, item.Text))
	}
}

func voteLabel(n int) string {
	if n == 1 {
		return "vote"
	}
	return "votes"
}
