// Package aggregator builds a user's personal feed from a batch of
// articles: preference filtering, full-text keyword matching, relevance
// scoring with learned weights, then bounded summarization of whatever
// survives the cap.
package aggregator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/index"
	"github.com/hotstory/radar/internal/learning"
	"github.com/hotstory/radar/internal/limiter"
	"github.com/hotstory/radar/internal/summary"
	"github.com/hotstory/radar/models"
)

const (
	keywordBoost  = 0.2
	categoryBoost = 0.1
)

// Aggregator scores and assembles personal feeds.
type Aggregator struct {
	summarizer   *summary.Generator
	feedCfg      config.FeedConfig
	summarySlots int
	logger       *log.Logger

	now func() time.Time
}

func New(summarizer *summary.Generator, feedCfg config.FeedConfig, pipelineCfg config.PipelineConfig, logger *log.Logger) *Aggregator {
	return &Aggregator{
		summarizer:   summarizer,
		feedCfg:      feedCfg,
		summarySlots: pipelineCfg.MaxConcurrentSummaries,
		logger:       logger,
		now:          time.Now,
	}
}

// BuildFeed produces one user's feed from the candidate articles.
// clusterSizes carries article id -> size of its duplicate group; absent
// ids count as singletons.
func (a *Aggregator) BuildFeed(ctx context.Context, prefs models.Preferences, weights map[string]float64,
	articles []models.Article, clusterSizes map[string]int) (models.FeedResponse, error) {

	start := a.now()
	candidates := filterSources(articles, prefs.Sources)

	idx, err := index.New(candidates)
	if err != nil {
		return models.FeedResponse{}, fmt.Errorf("indexing candidates: %w", err)
	}
	defer idx.Close()

	excluded := make(map[string]bool)
	for _, kw := range prefs.ExcludedKeywords {
		ids, err := idx.Match(kw)
		if err != nil {
			return models.FeedResponse{}, err
		}
		for _, id := range ids {
			excluded[id] = true
		}
	}

	matchedKeywords := make(map[string][]string)
	for _, kw := range prefs.Keywords {
		ids, err := idx.Match(kw)
		if err != nil {
			return models.FeedResponse{}, err
		}
		for _, id := range ids {
			matchedKeywords[id] = append(matchedKeywords[id], kw)
		}
	}
	inCategory := make(map[string]bool)
	for _, cat := range prefs.Categories {
		ids, err := idx.Match(cat)
		if err != nil {
			return models.FeedResponse{}, err
		}
		for _, id := range ids {
			inCategory[id] = true
		}
	}

	type scored struct {
		article models.Article
		score   float64
	}
	var kept []scored
	for _, article := range candidates {
		if excluded[article.ID] {
			continue
		}
		score := learning.PredictRelevance(weights, article)
		if kws := matchedKeywords[article.ID]; len(kws) > 0 {
			score += float64(len(kws)) * keywordBoost
		} else if inCategory[article.ID] {
			// Category match only counts when no keyword already did.
			score += categoryBoost
		}
		if score > 1 {
			score = 1
		}
		kept = append(kept, scored{article: article, score: score})
	}
	filteredCount := len(kept)

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].article.PublishedAt.After(kept[j].article.PublishedAt)
	})
	limit := prefs.MaxArticlesPerFeed
	if limit <= 0 {
		limit = a.feedCfg.MaxArticlesPerFeed
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}

	capped := make([]models.Article, len(kept))
	for i, s := range kept {
		capped[i] = s.article
	}
	summaries := a.summarizer.SummarizeBatch(ctx, capped, limiter.New(a.summarySlots))

	items := make([]models.FeedItem, len(kept))
	for i, s := range kept {
		size := clusterSizes[s.article.ID]
		if size < 1 {
			size = 1
		}
		items[i] = models.FeedItem{
			ID:              s.article.ID,
			Title:           s.article.Title,
			Summary:         summaries[i],
			URL:             s.article.URL,
			Source:          s.article.Source,
			PublishedAt:     s.article.PublishedAt,
			Author:          s.article.Author,
			RelevanceScore:  s.score,
			MatchedKeywords: matchedKeywords[s.article.ID],
			ClusterSize:     size,
		}
	}

	return models.FeedResponse{
		Items:                  items,
		TotalArticlesProcessed: len(articles),
		FilteredCount:          filteredCount,
		GeneratedAt:            start.UTC(),
		ProcessingTime:         a.now().Sub(start).Seconds(),
		UserID:                 prefs.UserID,
	}, nil
}

func filterSources(articles []models.Article, sources []string) []models.Article {
	if len(sources) == 0 {
		return articles
	}
	allowed := make(map[string]bool, len(sources))
	for _, s := range sources {
		allowed[strings.ToLower(s)] = true
	}
	var out []models.Article
	for _, article := range articles {
		if allowed[strings.ToLower(article.Source)] {
			out = append(out, article)
		}
	}
	return out
}
