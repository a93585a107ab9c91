package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "inkwell.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImages_SaveAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, prompt := range []string{"a lighthouse", "a fox in snow"} {
		rec := &ImageRecord{
			ID:        string(rune('a' + i)),
			Prompt:    prompt,
			Size:      "1024x1024",
			URL:       "https://img.example/" + prompt,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := s.SaveImage(ctx, rec); err != nil {
			t.Fatalf("SaveImage: %v", err)
		}
	}

	images, err := s.ListImages(ctx, 10)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("len = %d, want 2", len(images))
	}
	// Newest first.
	if images[0].Prompt != "a fox in snow" {
		t.Errorf("order wrong: %q first", images[0].Prompt)
	}
}

func TestResumes_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &ResumeRecord{
		ID:        "r1",
		SourceURL: "https://example.com/cv",
		Input:     "10 years of Go experience…",
		Analysis:  "Strong backend profile.",
		CreatedAt: time.Now(),
	}
	if err := s.SaveResume(ctx, rec); err != nil {
		t.Fatalf("SaveResume: %v", err)
	}

	got, err := s.GetResume(ctx, "r1")
	if err != nil {
		t.Fatalf("GetResume: %v", err)
	}
	if got == nil || got.Analysis != rec.Analysis || got.SourceURL != rec.SourceURL {
		t.Errorf("got %+v", got)
	}

	missing, err := s.GetResume(ctx, "nope")
	if err != nil {
		t.Fatalf("GetResume missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing id, got %+v", missing)
	}
}
