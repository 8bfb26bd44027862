package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hotstory/radar/internal/store"
	"github.com/hotstory/radar/models"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("radar"),
		tcPostgres.WithUsername("radar"),
		tcPostgres.WithPassword("radar"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp")),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://radar:radar@%s:%s/radar?sslmode=disable", host, port.Port())

	if err := applySchema(ctx, dsn); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.Close()

	userID, err := st.CreateUser(ctx, "trader@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	gotID, gotHash, err := st.GetUserByEmail(ctx, "trader@example.com")
	if err != nil || gotID != userID || gotHash != "hash" {
		t.Fatalf("lookup user: %v %q %q", err, gotID, gotHash)
	}
	if _, _, err := st.GetUserByEmail(ctx, "missing@example.com"); err != models.ErrNotFound {
		t.Fatalf("missing user should map to ErrNotFound, got %v", err)
	}

	prefs := models.Preferences{
		UserID:                 userID,
		Keywords:               []string{"rates", "banks"},
		ExcludedKeywords:       []string{"crypto"},
		Categories:             []string{"markets"},
		UpdateFrequencyMinutes: 45,
		MaxArticlesPerFeed:     15,
		AutoRefreshEnabled:     true,
	}
	if err := st.UpsertPreferences(ctx, prefs); err != nil {
		t.Fatalf("upsert preferences: %v", err)
	}
	gotPrefs, err := st.GetPreferences(ctx, userID)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if gotPrefs.UpdateFrequencyMinutes != 45 || len(gotPrefs.Keywords) != 2 {
		t.Fatalf("preferences mismatch: %+v", gotPrefs)
	}

	now := time.Now().UTC().Truncate(time.Second)
	article := models.Article{
		ID:          models.ArticleID("https://example.com/a", "Bank fails"),
		Title:       "Bank fails",
		Content:     "original content",
		URL:         "https://example.com/a",
		Source:      "Example Wire",
		PublishedAt: now.Add(-time.Hour),
	}
	if err := st.UpsertArticles(ctx, []models.Article{article}); err != nil {
		t.Fatalf("upsert articles: %v", err)
	}
	article.Content = "fuller content after refetch"
	if err := st.UpsertArticles(ctx, []models.Article{article}); err != nil {
		t.Fatalf("re-upsert articles: %v", err)
	}
	listed, err := st.ListArticles(ctx, store.ArticleFilter{Since: now.Add(-2 * time.Hour)})
	if err != nil {
		t.Fatalf("list articles: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("re-collection must not duplicate, got %d rows", len(listed))
	}
	if listed[0].Content != "fuller content after refetch" {
		t.Fatalf("upsert should refresh content, got %q", listed[0].Content)
	}

	latest, err := st.LatestArticleTime(ctx)
	if err != nil {
		t.Fatalf("latest article time: %v", err)
	}
	if !latest.Equal(article.PublishedAt) {
		t.Fatalf("latest %v want %v", latest, article.PublishedAt)
	}

	item := models.FeedItem{ID: article.ID, RelevanceScore: 0.5, MatchedKeywords: []string{"banks"}, ClusterSize: 2, Summary: "first"}
	if err := st.SaveFeedItems(ctx, userID, []models.FeedItem{item}); err != nil {
		t.Fatalf("save feed items: %v", err)
	}
	item.RelevanceScore = 0.9
	item.Summary = "second"
	if err := st.SaveFeedItems(ctx, userID, []models.FeedItem{item}); err != nil {
		t.Fatalf("re-save feed items: %v", err)
	}
	feed, err := st.ListFeedItems(ctx, userID, 10)
	if err != nil {
		t.Fatalf("list feed items: %v", err)
	}
	if len(feed) != 1 || feed[0].RelevanceScore != 0.9 || feed[0].Summary != "second" {
		t.Fatalf("feed item upsert mismatch: %+v", feed)
	}
	if feed[0].Title != "Bank fails" || len(feed[0].MatchedKeywords) != 1 {
		t.Fatalf("feed item join mismatch: %+v", feed[0])
	}

	if err := st.RecordInteraction(ctx, models.Interaction{UserID: userID, ArticleID: article.ID, Type: store.InteractionLike}); err != nil {
		t.Fatalf("record interaction: %v", err)
	}
	if err := st.RecordInteraction(ctx, models.Interaction{UserID: userID, ArticleID: article.ID, Type: "bogus"}); err == nil {
		t.Fatal("bogus interaction type must be rejected")
	}
	interactions, err := st.ListInteractionsSince(ctx, userID, now.Add(-time.Hour))
	if err != nil || len(interactions) != 1 {
		t.Fatalf("list interactions: %v %d", err, len(interactions))
	}
	engaged, err := st.ListEngagedArticles(ctx, userID, now.Add(-time.Hour))
	if err != nil || len(engaged) != 1 {
		t.Fatalf("engaged articles: %v %d", err, len(engaged))
	}

	weights := map[string]float64{"banks": 0.8, "rates": 0.4}
	if err := st.SaveKeywordWeights(ctx, userID, weights); err != nil {
		t.Fatalf("save weights: %v", err)
	}
	gotWeights, err := st.GetKeywordWeights(ctx, userID)
	if err != nil || gotWeights["banks"] != 0.8 {
		t.Fatalf("get weights: %v %+v", err, gotWeights)
	}

	resp := models.RadarResponse{
		Stories:                []models.Story{{ID: "s1", Headline: "Bank fails", Hotness: 0.9}},
		TotalArticlesProcessed: 1,
		TimeWindowHours:        24,
		GeneratedAt:            now,
	}
	if _, err := st.SaveRadarRun(ctx, resp); err != nil {
		t.Fatalf("save radar run: %v", err)
	}
	gotRun, err := st.GetLatestRadarRun(ctx)
	if err != nil || len(gotRun.Stories) != 1 || gotRun.Stories[0].Headline != "Bank fails" {
		t.Fatalf("latest radar run: %v %+v", err, gotRun)
	}

	active, err := st.ListActiveUserIDs(ctx, now.Add(-time.Hour))
	if err != nil || len(active) != 1 || active[0] != userID {
		t.Fatalf("active users: %v %v", err, active)
	}

	if err := st.Cleanup(ctx, time.Hour, time.Hour); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	feed, err = st.ListFeedItems(ctx, userID, 10)
	if err != nil || len(feed) != 1 {
		t.Fatalf("fresh rows must survive cleanup: %v %d", err, len(feed))
	}
}

func applySchema(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	schemaSQL, err := os.ReadFile("../../migrations/0001_init.up.sql")
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, string(schemaSQL)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
