// Package resume analyzes resumes against a fixed rubric, accepting either
// raw text or a URL to fetch.
package resume

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell/inkwell/internal/schema"
	"github.com/inkwell/inkwell/internal/shared/llmutils"
	"github.com/inkwell/inkwell/internal/store"
	"github.com/inkwell/inkwell/internal/tools"
)

const rubricPrompt = `You are an experienced technical recruiter. Analyze the resume below and respond with:

1. A two-sentence summary of the candidate.
2. Top 3 strengths, each with the evidence from the resume.
3. Top 3 gaps or red flags.
4. Suggested roles and seniority level.
5. Three concrete suggestions to improve the resume itself.

Be specific and quote the resume where it supports a point.`

const maxResumeChars = 30000

// Analyzer runs one-shot resume analyses.
type Analyzer struct {
	llm   schema.Completer
	fetch *tools.PageFetcher
	repo  store.Repository
	opts  schema.ChatOptions
}

func NewAnalyzer(llm schema.Completer, fetch *tools.PageFetcher, repo store.Repository, opts schema.ChatOptions) *Analyzer {
	return &Analyzer{llm: llm, fetch: fetch, repo: repo, opts: opts}
}

// Analyze takes raw resume text or a URL (exactly one must be set), runs the
// rubric against it and persists the result.
func (a *Analyzer) Analyze(ctx context.Context, text, sourceURL string) (*store.ResumeRecord, error) {
	text = strings.TrimSpace(text)
	sourceURL = strings.TrimSpace(sourceURL)

	switch {
	case text == "" && sourceURL == "":
		return nil, fmt.Errorf("either text or url is required")
	case text != "" && sourceURL != "":
		return nil, fmt.Errorf("provide text or url, not both")
	}

	if sourceURL != "" {
		fetched, err := a.fetch.Fetch(ctx, sourceURL)
		if err != nil {
			return nil, fmt.Errorf("fetch resume: %w", err)
		}
		text = fetched
	}
	text = llmutils.Truncate(text, maxResumeChars)

	msgs := schema.NewMessages(
		schema.NewSystemMessage(rubricPrompt),
		schema.NewUserMessage(text),
	)
	analysis, err := a.llm.Complete(ctx, msgs, a.opts)
	if err != nil {
		return nil, fmt.Errorf("analyze resume: %w", err)
	}
	analysis = strings.TrimSpace(llmutils.StripThink(analysis))

	rec := &store.ResumeRecord{
		ID:        uuid.NewString(),
		SourceURL: sourceURL,
		Input:     text,
		Analysis:  analysis,
		CreatedAt: time.Now(),
	}
	if err := a.repo.SaveResume(ctx, rec); err != nil {
		return nil, fmt.Errorf("save resume analysis: %w", err)
	}
	return rec, nil
}

// Get returns a stored analysis, or nil when the id is unknown.
func (a *Analyzer) Get(ctx context.Context, id string) (*store.ResumeRecord, error) {
	return a.repo.GetResume(ctx, id)
}
