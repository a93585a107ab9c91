// Package imagen turns prompts into hosted images and keeps a record of
// every generation.
package imagen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/inkwell/internal/store"
)

// Generator is the image backend (satisfied by providers.OpenAIProvider).
type Generator interface {
	GenerateImage(ctx context.Context, prompt, size string) (string, error)
}

// Service generates images and persists the resulting records.
type Service struct {
	gen  Generator
	repo store.Repository
}

func NewService(gen Generator, repo store.Repository) *Service {
	return &Service{gen: gen, repo: repo}
}

// Generate creates one image for prompt and stores its record.
func (s *Service) Generate(ctx context.Context, prompt, size string) (*store.ImageRecord, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	url, err := s.gen.GenerateImage(ctx, prompt, size)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	rec := &store.ImageRecord{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Size:      size,
		URL:       url,
		CreatedAt: time.Now(),
	}
	if err := s.repo.SaveImage(ctx, rec); err != nil {
		// The image exists upstream even if the record write failed.
		slog.Warn("image record write failed", "id", rec.ID, "err", err)
	}
	return rec, nil
}

// List returns the most recent image records.
func (s *Service) List(ctx context.Context, limit int) ([]store.ImageRecord, error) {
	return s.repo.ListImages(ctx, limit)
}
