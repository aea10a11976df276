/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"strings"
	"testing"
)

func TestRandomDisplayName(t *testing.T) {
	for i := 0; i < 100; i++ {
		name := randomDisplayName()
		parts := strings.Split(name, " ")
		if len(parts) != 2 {
			t.Fatalf("display name %q is not two words", name)
		}
	}
}

func TestIDGenerators(t *testing.T) {
	if got := len(newParticipantID()); got != 32 {
		t.Fatalf("participant id length = %d, want 32", got)
	}
	if got := len(newRetroID()); got != 8 {
		t.Fatalf("retro id length = %d, want 8", got)
	}
	if got := len(newOwnerSecret()); got != 48 {
		t.Fatalf("owner secret length = %d, want 48", got)
	}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newParticipantID()
		if seen[id] {
			t.Fatalf("duplicate participant id %q", id)
		}
		seen[id] = true
	}
}
