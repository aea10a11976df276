/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"strings"
	"testing"
)

func TestExportMarkdown(t *testing.T) {
	r := testBoard(t)
	wins := mustAddColumn(t, r, "Wins")
	woes := mustAddColumn(t, r, "Woes")

	a := mustPublish(t, r, wins.ID, "Shipped v2", alice)
	b := mustPublish(t, r, wins.ID, "Great demo", bob)
	loose := mustPublish(t, r, woes.ID, "Flaky CI", alice)
	group := mustGroup(t, r, a.ID, b.ID)

	if _, opErr := r.toggleVote(group.ID, "group", alice.ID); opErr != nil {
		t.Fatalf("vote: %v", opErr)
	}
	if _, opErr := r.toggleVote(loose.ID, "card", bob.ID); opErr != nil {
		t.Fatalf("vote: %v", opErr)
	}
	if event, _ := r.addActionItem(loose.ID, "Stabilize the pipeline"); event == nil {
		t.Fatal("addActionItem rejected")
	}

	doc := exportMarkdown(r)

	for _, want := range []string{
		"# Sprint Retro",
		"Phase: setup",
		"## Wins",
		"## Woes",
		"**Group** (1 vote)",
		"Shipped v2 (Agile Otter, 0 votes)",
		"Great demo",
		"Flaky CI (Agile Otter, 1 vote)",
		"- [ ] Stabilize the pipeline",
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("export missing %q:\n%s", want, doc)
		}
	}

	// Grouped cards render inside their group, not a second time loose.
	if got := strings.Count(doc, "Shipped v2"); got != 1 {
		t.Fatalf("grouped card rendered %d times:\n%s", got, doc)
	}

	// Columns render in order.
	if strings.Index(doc, "## Wins") > strings.Index(doc, "## Woes") {
		t.Fatalf("columns out of order:\n%s", doc)
	}
}
