// Package store persists users, preferences, articles, feed items,
// interactions and radar runs in Postgres. Queries are plain SQL; the
// article listing uses squirrel because its filters are assembled at
// runtime.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
)

// Interaction types accepted by RecordInteraction.
const (
	InteractionRead    = "read"
	InteractionLike    = "like"
	InteractionDislike = "dislike"
	InteractionSave    = "save"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type Store struct {
	DB *sql.DB
}

// New opens a connection pool from the configured Postgres settings.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2) RETURNING id`, email, hash).Scan(&id)
	return id, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		err = models.ErrNotFound
	}
	return
}

// ListActiveUserIDs returns users who interacted or refreshed since the
// given time. The worker batches over this set.
func (s *Store) ListActiveUserIDs(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT DISTINCT u.id FROM users u
        LEFT JOIN interactions i ON i.user_id = u.id AND i.created_at >= $1
        LEFT JOIN feed_items f ON f.user_id = u.id AND f.updated_at >= $1
        WHERE i.user_id IS NOT NULL OR f.user_id IS NOT NULL
        ORDER BY u.id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Preference operations

func (s *Store) GetPreferences(ctx context.Context, userID string) (models.Preferences, error) {
	var p models.Preferences
	err := s.DB.QueryRowContext(ctx, `
        SELECT user_id, sources, keywords, excluded_keywords, categories,
               update_frequency_minutes, max_articles_per_feed, auto_refresh_enabled,
               created_at, updated_at
        FROM preferences WHERE user_id=$1`, userID).Scan(
		&p.UserID, pq.Array(&p.Sources), pq.Array(&p.Keywords), pq.Array(&p.ExcludedKeywords),
		pq.Array(&p.Categories), &p.UpdateFrequencyMinutes, &p.MaxArticlesPerFeed,
		&p.AutoRefreshEnabled, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Preferences{}, models.ErrNotFound
	}
	return p, err
}

func (s *Store) UpsertPreferences(ctx context.Context, p models.Preferences) error {
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO preferences (user_id, sources, keywords, excluded_keywords, categories,
                                 update_frequency_minutes, max_articles_per_feed, auto_refresh_enabled)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (user_id) DO UPDATE SET
            sources = EXCLUDED.sources,
            keywords = EXCLUDED.keywords,
            excluded_keywords = EXCLUDED.excluded_keywords,
            categories = EXCLUDED.categories,
            update_frequency_minutes = EXCLUDED.update_frequency_minutes,
            max_articles_per_feed = EXCLUDED.max_articles_per_feed,
            auto_refresh_enabled = EXCLUDED.auto_refresh_enabled,
            updated_at = now()`,
		p.UserID, pq.Array(p.Sources), pq.Array(p.Keywords), pq.Array(p.ExcludedKeywords),
		pq.Array(p.Categories), p.UpdateFrequencyMinutes, p.MaxArticlesPerFeed, p.AutoRefreshEnabled)
	return err
}

// Article operations

// UpsertArticles stores collected articles idempotently: the deterministic
// id makes re-collection of the same document a no-op content refresh.
func (s *Store) UpsertArticles(ctx context.Context, articles []models.Article) error {
	if len(articles) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO articles (id, title, content, url, source, author, published_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET
            content = EXCLUDED.content,
            source = EXCLUDED.source,
            author = EXCLUDED.author`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range articles {
		if _, err := stmt.ExecContext(ctx, a.ID, a.Title, a.Content, a.URL, a.Source, a.Author, a.PublishedAt); err != nil {
			return fmt.Errorf("upserting article %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// ArticleFilter narrows ListArticles; zero values mean "no constraint".
type ArticleFilter struct {
	Since   time.Time
	Sources []string
	Limit   int
}

func (s *Store) ListArticles(ctx context.Context, filter ArticleFilter) ([]models.Article, error) {
	q := psql.Select("id", "title", "content", "url", "source", "author", "published_at").
		From("articles").
		OrderBy("published_at DESC")
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"published_at": filter.Since})
	}
	if len(filter.Sources) > 0 {
		q = q.Where(sq.Eq{"source": filter.Sources})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.URL, &a.Source, &a.Author, &a.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetArticlesByIDs(ctx context.Context, ids []string) ([]models.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select("id", "title", "content", "url", "source", "author", "published_at").
		From("articles").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.URL, &a.Source, &a.Author, &a.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestArticleTime returns the newest published_at, or zero when the
// table is empty.
func (s *Store) LatestArticleTime(ctx context.Context) (time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx, `SELECT max(published_at) FROM articles`).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// Feed item operations

// SaveFeedItems upserts one user's feed entries keyed by (user_id,
// article_id): scores and keywords refresh, duplicates never accumulate.
func (s *Store) SaveFeedItems(ctx context.Context, userID string, items []models.FeedItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO feed_items (user_id, article_id, summary, relevance_score, matched_keywords, cluster_size)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id, article_id) DO UPDATE SET
            summary = EXCLUDED.summary,
            relevance_score = EXCLUDED.relevance_score,
            matched_keywords = EXCLUDED.matched_keywords,
            cluster_size = EXCLUDED.cluster_size,
            updated_at = now()`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, userID, item.ID, item.Summary, item.RelevanceScore,
			pq.Array(item.MatchedKeywords), item.ClusterSize); err != nil {
			return fmt.Errorf("saving feed item %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) ListFeedItems(ctx context.Context, userID string, limit int) ([]models.FeedItem, error) {
	q := psql.Select("a.id", "a.title", "f.summary", "a.url", "a.source", "a.published_at", "a.author",
		"f.relevance_score", "f.matched_keywords", "f.cluster_size").
		From("feed_items f").
		Join("articles a ON a.id = f.article_id").
		Where(sq.Eq{"f.user_id": userID}).
		OrderBy("f.relevance_score DESC", "a.published_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.FeedItem
	for rows.Next() {
		var item models.FeedItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Summary, &item.URL, &item.Source,
			&item.PublishedAt, &item.Author, &item.RelevanceScore,
			pq.Array(&item.MatchedKeywords), &item.ClusterSize); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// LatestFeedItemTime returns the newest published_at among a user's feed
// items, zero when the user has no items yet. Drives the staleness check.
func (s *Store) LatestFeedItemTime(ctx context.Context, userID string) (time.Time, error) {
	var ts sql.NullTime
	err := s.DB.QueryRowContext(ctx, `
        SELECT max(a.published_at) FROM feed_items f
        JOIN articles a ON a.id = f.article_id
        WHERE f.user_id=$1`, userID).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return ts.Time, nil
}

// Interaction operations

func (s *Store) RecordInteraction(ctx context.Context, in models.Interaction) error {
	switch in.Type {
	case InteractionRead, InteractionLike, InteractionDislike, InteractionSave:
	default:
		return fmt.Errorf("unknown interaction type %q", in.Type)
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO interactions (user_id, article_id, type, read_duration_seconds)
        VALUES ($1,$2,$3,$4)`, in.UserID, in.ArticleID, in.Type, in.ReadDuration)
	return err
}

func (s *Store) ListInteractionsSince(ctx context.Context, userID string, since time.Time) ([]models.Interaction, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT user_id, article_id, type, read_duration_seconds, created_at
        FROM interactions WHERE user_id=$1 AND created_at >= $2
        ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Interaction
	for rows.Next() {
		var in models.Interaction
		if err := rows.Scan(&in.UserID, &in.ArticleID, &in.Type, &in.ReadDuration, &in.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ListEngagedArticles returns the articles a user liked, saved or read
// since the given time. Feeds interest discovery.
func (s *Store) ListEngagedArticles(ctx context.Context, userID string, since time.Time) ([]models.Article, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT DISTINCT a.id, a.title, a.content, a.url, a.source, a.author, a.published_at
        FROM interactions i
        JOIN articles a ON a.id = i.article_id
        WHERE i.user_id=$1 AND i.created_at >= $2 AND i.type IN ('read','like','save')
        ORDER BY a.published_at DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Article
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.URL, &a.Source, &a.Author, &a.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Keyword weight operations

func (s *Store) GetKeywordWeights(ctx context.Context, userID string) (map[string]float64, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT keyword, weight FROM keyword_weights WHERE user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]float64)
	for rows.Next() {
		var kw string
		var w float64
		if err := rows.Scan(&kw, &w); err != nil {
			return nil, err
		}
		out[kw] = w
	}
	return out, rows.Err()
}

// SaveKeywordWeights replaces a user's learned weights in one transaction.
func (s *Store) SaveKeywordWeights(ctx context.Context, userID string, weights map[string]float64) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM keyword_weights WHERE user_id=$1`, userID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO keyword_weights (user_id, keyword, weight) VALUES ($1,$2,$3)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for kw, w := range weights {
		if _, err := stmt.ExecContext(ctx, userID, kw, w); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Radar run operations

// SaveRadarRun stores a finished pipeline run with its stories.
func (s *Store) SaveRadarRun(ctx context.Context, resp models.RadarResponse) (string, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO radar_runs (id, total_articles, time_window_hours, generated_at, processing_seconds)
        VALUES ($1,$2,$3,$4,$5)`,
		runID, resp.TotalArticlesProcessed, resp.TimeWindowHours, resp.GeneratedAt, resp.ProcessingTime); err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO radar_stories (id, run_id, position, payload)
        VALUES ($1,$2,$3,$4)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, story := range resp.Stories {
		payload, err := json.Marshal(story)
		if err != nil {
			return "", fmt.Errorf("encoding story %s: %w", story.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, story.ID, runID, i, payload); err != nil {
			return "", err
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

// GetLatestRadarRun reconstructs the most recent run, ErrNotFound when
// no run has completed yet.
func (s *Store) GetLatestRadarRun(ctx context.Context) (models.RadarResponse, error) {
	var resp models.RadarResponse
	var runID string
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, total_articles, time_window_hours, generated_at, processing_seconds
        FROM radar_runs ORDER BY generated_at DESC LIMIT 1`).
		Scan(&runID, &resp.TotalArticlesProcessed, &resp.TimeWindowHours, &resp.GeneratedAt, &resp.ProcessingTime)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RadarResponse{}, models.ErrNotFound
	}
	if err != nil {
		return models.RadarResponse{}, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT payload FROM radar_stories WHERE run_id=$1 ORDER BY position`, runID)
	if err != nil {
		return models.RadarResponse{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return models.RadarResponse{}, err
		}
		var story models.Story
		if err := json.Unmarshal(payload, &story); err != nil {
			return models.RadarResponse{}, fmt.Errorf("decoding story: %w", err)
		}
		resp.Stories = append(resp.Stories, story)
	}
	return resp, rows.Err()
}

// Retention

// Cleanup removes feed items, interactions and orphaned articles older
// than the configured retention windows.
func (s *Store) Cleanup(ctx context.Context, feedItemRetention, interactionRetention time.Duration) error {
	now := time.Now()
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM feed_items WHERE updated_at < $1`, now.Add(-feedItemRetention)); err != nil {
		return fmt.Errorf("pruning feed items: %w", err)
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM interactions WHERE created_at < $1`, now.Add(-interactionRetention)); err != nil {
		return fmt.Errorf("pruning interactions: %w", err)
	}
	_, err := s.DB.ExecContext(ctx, `
        DELETE FROM articles a WHERE a.published_at < $1
          AND NOT EXISTS (SELECT 1 FROM feed_items f WHERE f.article_id = a.id)
          AND NOT EXISTS (SELECT 1 FROM interactions i WHERE i.article_id = a.id)`,
		now.Add(-feedItemRetention))
	if err != nil {
		return fmt.Errorf("pruning articles: %w", err)
	}
	return nil
}
