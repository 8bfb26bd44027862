// Package research enriches high-scoring stories with a deep research pass:
// a web search for corroborating coverage plus a provider-written brief.
// The capability is gated on configuration at startup and every failure is
// non-fatal; a story without research is still a valid story.
package research

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
	"github.com/hotstory/radar/provider"
)

const maxSearchResults = 8

// Searcher finds recent web coverage for a query.
type Searcher interface {
	Discover(ctx context.Context, query string, k int) ([]models.ResearchSource, error)
}

// Researcher runs the deep research pass when configured.
type Researcher struct {
	provider provider.Provider
	searcher Searcher
	logger   *log.Logger
	enabled  bool
}

// New wires a researcher. It is disabled when deep research is switched off
// or when either the provider key or the search key is missing.
func New(cfg config.ProviderConfig, pipeline config.PipelineConfig, p provider.Provider, logger *log.Logger) *Researcher {
	r := &Researcher{provider: p, logger: logger}
	if !pipeline.EnableDeepResearch {
		return r
	}
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.SearchAPIKey) == "" {
		logger.Printf("deep research disabled: provider or search key not configured")
		return r
	}
	r.searcher = &serperSearch{apiKey: cfg.SearchAPIKey}
	r.enabled = true
	return r
}

// NewWithSearcher is the test seam for injecting a fake searcher.
func NewWithSearcher(p provider.Provider, s Searcher, logger *log.Logger) *Researcher {
	return &Researcher{provider: p, searcher: s, logger: logger, enabled: s != nil}
}

// Enabled reports whether the deep research pass will run at all.
func (r *Researcher) Enabled() bool { return r.enabled }

// Enrich attaches a research brief and extra sources to the story. On any
// failure the story is returned unchanged with HasDeepResearch false.
func (r *Researcher) Enrich(ctx context.Context, story models.Story) models.Story {
	if !r.enabled {
		return story
	}
	query := story.Headline
	for i, entity := range story.Entities {
		if i >= 2 {
			break
		}
		query += " " + entity.Name
	}

	sources, err := r.searcher.Discover(ctx, query, maxSearchResults)
	if err != nil {
		r.logger.Printf("research search failed for %q: %v", story.Headline, err)
		return story
	}
	if len(sources) == 0 {
		return story
	}

	brief, err := r.provider.SynthesizeResearch(ctx, story.Headline, story.WhyNow, sources)
	if err != nil {
		r.logger.Printf("research synthesis failed for %q: %v", story.Headline, err)
		return story
	}
	brief = strings.TrimSpace(brief)
	if brief == "" {
		return story
	}

	story.ResearchSummary = brief
	story.HasDeepResearch = true
	seen := make(map[string]bool, len(story.Sources))
	for _, src := range story.Sources {
		seen[src] = true
	}
	for _, src := range sources {
		if src.URL == "" || seen[src.URL] {
			continue
		}
		seen[src.URL] = true
		story.Sources = append(story.Sources, src.URL)
	}
	return story
}

func searchError(status string) error {
	return fmt.Errorf("search backend returned %s", status)
}
