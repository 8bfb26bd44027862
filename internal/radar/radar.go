// Package radar runs the hot-news pipeline: collect recent articles, embed
// and cluster them, score each cluster for hotness, draft the survivors and
// optionally deepen them with web research. One Run produces one
// RadarResponse holding the top stories of the time window.
package radar

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/cluster"
	"github.com/hotstory/radar/internal/limiter"
	"github.com/hotstory/radar/internal/metrics"
	"github.com/hotstory/radar/internal/similarity"
	"github.com/hotstory/radar/models"
	"github.com/hotstory/radar/provider"
)

// analysisSampleSize bounds how many cluster members feed hotness analysis.
const analysisSampleSize = 3

// ArticleSource supplies the raw articles for a run.
type ArticleSource interface {
	FetchSince(ctx context.Context, cutoff time.Time) ([]models.Article, error)
}

// Enricher deepens a drafted story; Enabled reports whether it will act.
type Enricher interface {
	Enabled() bool
	Enrich(ctx context.Context, story models.Story) models.Story
}

// ContentUpgrader replaces an article excerpt with richer page content.
type ContentUpgrader interface {
	Enrich(ctx context.Context, article models.Article) models.Article
}

// Pipeline orchestrates one radar run end to end.
type Pipeline struct {
	cfg        config.PipelineConfig
	source     ArticleSource
	provider   provider.Provider
	engine     *cluster.Engine
	researcher Enricher
	upgrader   ContentUpgrader
	logger     *log.Logger

	now func() time.Time
}

// New assembles a pipeline. upgrader may be nil when full-content fetching
// is disabled.
func New(cfg config.PipelineConfig, source ArticleSource, p provider.Provider, researcher Enricher, upgrader ContentUpgrader, logger *log.Logger) (*Pipeline, error) {
	engine, err := cluster.NewEngine(cfg.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("building cluster engine: %w", err)
	}
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		provider:   p,
		engine:     engine,
		researcher: researcher,
		upgrader:   upgrader,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run executes the full pipeline for the configured time window.
func (p *Pipeline) Run(ctx context.Context) (models.RadarResponse, error) {
	start := p.now()
	cutoff := start.Add(-time.Duration(p.cfg.TimeWindowHours) * time.Hour)

	articles, err := p.source.FetchSince(ctx, cutoff)
	if err != nil {
		metrics.RadarRuns.WithLabelValues("error").Inc()
		return models.RadarResponse{}, fmt.Errorf("collecting articles: %w", err)
	}
	p.logger.Printf("collected %d articles since %s", len(articles), cutoff.Format(time.RFC3339))

	response := models.RadarResponse{
		TotalArticlesProcessed: len(articles),
		TimeWindowHours:        p.cfg.TimeWindowHours,
		GeneratedAt:            start.UTC(),
	}
	if len(articles) == 0 {
		response.ProcessingTime = p.now().Sub(start).Seconds()
		metrics.RadarRuns.WithLabelValues("ok").Inc()
		return response, nil
	}

	embeddings := similarity.NewStore(p.provider, p.logger)
	vectors := embeddings.BatchVectors(ctx, articles, limiter.New(p.cfg.MaxConcurrentEmbeddings))
	clusters := p.engine.Cluster(articles, vectors)
	p.logger.Printf("grouped %d articles into %d clusters", len(articles), len(clusters))

	stories := p.enrichClusters(ctx, clusters)

	sort.SliceStable(stories, func(i, j int) bool { return stories[i].Hotness > stories[j].Hotness })
	if len(stories) > p.cfg.TopK {
		stories = stories[:p.cfg.TopK]
	}
	response.Stories = stories
	response.ProcessingTime = p.now().Sub(start).Seconds()

	metrics.RadarRuns.WithLabelValues("ok").Inc()
	metrics.RadarRunDuration.Observe(response.ProcessingTime)
	metrics.StoriesEmitted.Add(float64(len(stories)))
	p.logger.Printf("run finished: %d stories in %.1fs", len(stories), response.ProcessingTime)
	return response, nil
}

// enrichClusters scores and drafts clusters concurrently. A failing cluster
// drops out of the run without touching its siblings.
func (p *Pipeline) enrichClusters(ctx context.Context, clusters []cluster.Cluster) []models.Story {
	results := make([]*models.Story, len(clusters))
	lim := limiter.New(p.cfg.MaxConcurrentClusterRuns)
	var wg sync.WaitGroup
	for i, c := range clusters {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lim.Do(ctx, func() error {
				if story, ok := p.buildStory(ctx, c); ok {
					results[i] = &story
				}
				return nil
			})
			if err != nil {
				p.logger.Printf("cluster %s skipped: %v", c.ID, err)
			}
		}()
	}
	wg.Wait()

	var stories []models.Story
	for _, res := range results {
		if res != nil {
			stories = append(stories, *res)
		}
	}
	return stories
}

func (p *Pipeline) buildStory(ctx context.Context, c cluster.Cluster) (models.Story, bool) {
	sample := c.Articles
	if len(sample) > analysisSampleSize {
		sample = sample[:analysisSampleSize]
	}
	analysis, err := p.provider.AnalyzeHotness(ctx, sample)
	if err != nil {
		p.logger.Printf("cluster %s dropped, analysis failed: %v", c.ID, err)
		metrics.ClustersDropped.WithLabelValues("analysis_failed").Inc()
		return models.Story{}, false
	}
	overall := analysis.Hotness.Overall
	if overall < p.cfg.HotnessThreshold {
		metrics.ClustersDropped.WithLabelValues("below_threshold").Inc()
		return models.Story{}, false
	}

	members := c.Articles
	if p.upgrader != nil {
		members = p.upgradeRepresentative(ctx, c)
	}

	sources := make([]string, 0, len(members))
	for _, article := range members {
		sources = append(sources, article.URL)
	}

	story := models.Story{
		ID:             c.ID,
		Headline:       analysis.Headline,
		Hotness:        overall,
		HotnessDetails: analysis.Hotness,
		WhyNow:         analysis.WhyNow,
		Entities:       analysis.Entities,
		Sources:        sources,
		Timeline:       analysis.Timeline,
		DedupGroup:     c.ID,
		CreatedAt:      p.now().UTC(),
		ArticleCount:   len(c.Articles),
	}

	deepWorthy := overall >= p.cfg.DeepResearchThreshold
	if deepWorthy || !p.researcher.Enabled() {
		story.Draft = p.fullDraft(ctx, analysis, members)
	} else {
		story.Draft = plainDraft(analysis, sources)
	}
	if p.researcher.Enabled() && deepWorthy {
		story = p.researcher.Enrich(ctx, story)
	}
	return story, true
}

// upgradeRepresentative swaps the cluster representative for its full-page
// version so drafting sees the richest available content.
func (p *Pipeline) upgradeRepresentative(ctx context.Context, c cluster.Cluster) []models.Article {
	upgraded := p.upgrader.Enrich(ctx, c.Representative)
	members := make([]models.Article, len(c.Articles))
	copy(members, c.Articles)
	for i, article := range members {
		if article.ID == upgraded.ID {
			members[i] = upgraded
			break
		}
	}
	return members
}

func (p *Pipeline) fullDraft(ctx context.Context, analysis models.HotnessAnalysis, members []models.Article) string {
	draft, err := p.provider.GenerateDraft(ctx, models.DraftRequest{
		Headline:  analysis.Headline,
		Articles:  members,
		Entities:  analysis.Entities,
		Timeline:  analysis.Timeline,
		WhyNow:    analysis.WhyNow,
		Reasoning: analysis.Hotness.Reasoning,
	})
	if err != nil || strings.TrimSpace(draft) == "" {
		if err != nil {
			p.logger.Printf("draft failed for %q: %v", analysis.Headline, err)
		}
		return failureDraft(analysis)
	}
	return draft
}

// failureDraft stands in when the draft model errors out or returns nothing.
func failureDraft(analysis models.HotnessAnalysis) string {
	return fmt.Sprintf("# %s\n\n%s\n\nFull draft generation failed.", analysis.Headline, analysis.WhyNow)
}

// plainDraft renders a templated summary for stories that do not warrant a
// full drafted piece.
func plainDraft(analysis models.HotnessAnalysis, sources []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", analysis.Headline)
	if analysis.WhyNow != "" {
		fmt.Fprintf(&sb, "Why now: %s\n\n", analysis.WhyNow)
	}
	if len(analysis.Entities) > 0 {
		top := analysis.Entities
		if len(top) > 5 {
			top = top[:5]
		}
		names := make([]string, 0, len(top))
		for _, entity := range top {
			names = append(names, entity.Name)
		}
		fmt.Fprintf(&sb, "Key entities: %s\n\n", strings.Join(names, ", "))
	}
	if len(sources) > 0 {
		sb.WriteString("Sources:\n")
		for _, src := range sources {
			fmt.Fprintf(&sb, "- %s\n", src)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Full draft not produced: hotness below the deep research threshold.")
	return strings.TrimSpace(sb.String())
}
