package agent

import (
	"fmt"
	"testing"
)

func TestHistory_SystemPromptStaysFirst(t *testing.T) {
	h := NewHistory("be helpful", 40, 20)
	h.AddUser("hi")
	h.AddAssistant("hello")
	h.SetSystem("be terse")

	snap := h.Snapshot()
	if snap.Messages[0].Role != "system" || snap.Messages[0].Content != "be terse" {
		t.Errorf("slot 0 = %+v, want replaced system prompt", snap.Messages[0])
	}
	if snap.Len() != 3 {
		t.Errorf("len = %d, want 3", snap.Len())
	}
}

func TestHistory_TruncatesToSystemPlusRecent(t *testing.T) {
	h := NewHistory("sys", 40, 20)
	for i := 0; i < 60; i++ {
		h.AddUser(fmt.Sprintf("u%d", i))
		h.AddAssistant(fmt.Sprintf("a%d", i))
	}

	snap := h.Snapshot()
	if snap.Len() > 40 {
		t.Fatalf("len = %d, want <= 40", snap.Len())
	}
	if snap.Messages[0].Content != "sys" {
		t.Errorf("system prompt lost: %+v", snap.Messages[0])
	}
	// The most recent entry always survives truncation.
	last := snap.Messages[snap.Len()-1]
	if last.Content != "a59" {
		t.Errorf("last = %q, want a59", last.Content)
	}
	// Everything kept is from the recent end of the window.
	second := snap.Messages[1]
	if second.Content == "u0" {
		t.Error("oldest entry survived truncation")
	}
}

func TestHistory_SnapshotIsIndependent(t *testing.T) {
	h := NewHistory("sys", 40, 20)
	h.AddUser("one")
	snap := h.Snapshot()
	h.AddUser("two")

	if snap.Len() != 2 {
		t.Errorf("snapshot grew with the history: len = %d", snap.Len())
	}
	snap.Messages[1] = snap.Messages[0]
	if h.Snapshot().Messages[1].Content != "one" {
		t.Error("mutating a snapshot leaked into the history")
	}
}

func TestHistory_NoteEntriesUseSystemRole(t *testing.T) {
	h := NewHistory("sys", 40, 20)
	h.AddUser("what's new?")
	h.AddNote("Web search results for \"news\": …")

	snap := h.Snapshot()
	if snap.Messages[2].Role != "system" {
		t.Errorf("note role = %q, want system", snap.Messages[2].Role)
	}
}
