package aggregator

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/summary"
	"github.com/hotstory/radar/models"
)

// provider that always fails: summaries come from the excerpt fallback,
// keeping these tests free of canned LLM output.
type downProvider struct{}

func (downProvider) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("down")
}
func (downProvider) AnalyzeHotness(ctx context.Context, articles []models.Article) (models.HotnessAnalysis, error) {
	return models.HotnessAnalysis{}, errors.New("down")
}
func (downProvider) GenerateDraft(ctx context.Context, req models.DraftRequest) (string, error) {
	return "", errors.New("down")
}
func (downProvider) Summarize(ctx context.Context, article models.Article) (string, error) {
	return "", errors.New("down")
}
func (downProvider) SynthesizeResearch(ctx context.Context, headline, whyNow string, sources []models.ResearchSource) (string, error) {
	return "", errors.New("down")
}

func newAggregator() *Aggregator {
	logger := log.New(io.Discard, "", 0)
	return New(
		summary.NewGenerator(downProvider{}, logger),
		config.FeedConfig{MaxArticlesPerFeed: 20},
		config.PipelineConfig{MaxConcurrentSummaries: 2},
		logger,
	)
}

func sampleArticles(now time.Time) []models.Article {
	return []models.Article{
		{ID: "rates", Title: "Fed raises rates again", Content: "Rate decision detail.", Source: "Example Wire", PublishedAt: now.Add(-1 * time.Hour)},
		{ID: "chips", Title: "Semiconductor rally extends", Content: "Chip stocks climb.", Source: "Atom Desk", PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "gossip", Title: "Celebrity gossip special", Content: "Nothing financial here.", Source: "Example Wire", PublishedAt: now.Add(-3 * time.Hour)},
		{ID: "plain", Title: "Quiet municipal update", Content: "Local notes.", Source: "Example Wire", PublishedAt: now.Add(-4 * time.Hour)},
	}
}

func TestBuildFeedScoresAndFilters(t *testing.T) {
	now := time.Now()
	prefs := models.Preferences{
		UserID:             "u1",
		Keywords:           []string{"rates"},
		ExcludedKeywords:   []string{"gossip"},
		MaxArticlesPerFeed: 10,
	}
	feed, err := newAggregator().BuildFeed(context.Background(), prefs, nil, sampleArticles(now), map[string]int{"rates": 3})
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}

	if feed.TotalArticlesProcessed != 4 {
		t.Fatalf("processed count %d", feed.TotalArticlesProcessed)
	}
	if feed.FilteredCount != 3 {
		t.Fatalf("excluded keyword should drop one article, filtered=%d", feed.FilteredCount)
	}
	for _, item := range feed.Items {
		if item.ID == "gossip" {
			t.Fatal("excluded article leaked into the feed")
		}
	}

	top := feed.Items[0]
	if top.ID != "rates" {
		t.Fatalf("keyword match should rank first, got %q", top.ID)
	}
	if top.RelevanceScore <= 0.5 {
		t.Fatalf("keyword boost missing, score %v", top.RelevanceScore)
	}
	if len(top.MatchedKeywords) != 1 || top.MatchedKeywords[0] != "rates" {
		t.Fatalf("matched keywords wrong: %v", top.MatchedKeywords)
	}
	if top.ClusterSize != 3 {
		t.Fatalf("cluster size not carried: %d", top.ClusterSize)
	}
	if top.Summary == "" {
		t.Fatal("summary should fall back to the excerpt")
	}
}

func TestBuildFeedCategoryFallback(t *testing.T) {
	now := time.Now()
	prefs := models.Preferences{
		UserID:             "u1",
		Keywords:           []string{"rates"},
		Categories:         []string{"semiconductor"},
		MaxArticlesPerFeed: 10,
	}
	feed, err := newAggregator().BuildFeed(context.Background(), prefs, nil, sampleArticles(now), nil)
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	scores := map[string]float64{}
	for _, item := range feed.Items {
		scores[item.ID] = item.RelevanceScore
	}
	near := func(got, want float64) bool { return got > want-1e-9 && got < want+1e-9 }
	if !near(scores["chips"], 0.6) {
		t.Fatalf("category-only match should get the small boost, got %v", scores["chips"])
	}
	if !near(scores["rates"], 0.7) {
		t.Fatalf("keyword match should get the full boost, got %v", scores["rates"])
	}
	if !near(scores["plain"], 0.5) {
		t.Fatalf("unmatched article stays at base, got %v", scores["plain"])
	}
}

func TestBuildFeedSourceFilterAndCap(t *testing.T) {
	now := time.Now()
	prefs := models.Preferences{
		UserID:             "u1",
		Sources:            []string{"example wire"},
		MaxArticlesPerFeed: 2,
	}
	feed, err := newAggregator().BuildFeed(context.Background(), prefs, nil, sampleArticles(now), nil)
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("cap not applied, got %d items", len(feed.Items))
	}
	for _, item := range feed.Items {
		if item.Source != "Example Wire" {
			t.Fatalf("source filter leaked %q", item.Source)
		}
	}
	// Equal scores fall back to recency.
	if !feed.Items[0].PublishedAt.After(feed.Items[1].PublishedAt) {
		t.Fatal("ties must break by publish time")
	}
}

func TestBuildFeedLearnedWeightsShiftRanking(t *testing.T) {
	now := time.Now()
	weights := map[string]float64{"semiconductor": 1.0}
	prefs := models.Preferences{UserID: "u1", MaxArticlesPerFeed: 10}
	feed, err := newAggregator().BuildFeed(context.Background(), prefs, weights, sampleArticles(now), nil)
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if feed.Items[0].ID != "chips" {
		t.Fatalf("learned weight should promote chips, got %q first", feed.Items[0].ID)
	}
}

func TestBuildFeedEmptyInput(t *testing.T) {
	feed, err := newAggregator().BuildFeed(context.Background(), models.Preferences{UserID: "u1"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("BuildFeed: %v", err)
	}
	if len(feed.Items) != 0 || feed.TotalArticlesProcessed != 0 {
		t.Fatalf("empty input should make an empty feed: %+v", feed)
	}
}
