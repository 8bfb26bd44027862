package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrCacheMiss is returned when no live cache entry exists for a user.
var ErrCacheMiss = errors.New("cache miss")

// Article is a raw news document from a source. Immutable once ingested;
// the ID is a deterministic hash of (url, title) so re-ingestion of the
// same item is idempotent.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Author      string    `json:"author,omitempty"`
}

// ArticleID derives the deterministic document identity from (url, title).
func ArticleID(url, title string) string {
	sum := sha256.Sum256([]byte(url + title))
	return hex.EncodeToString(sum[:])[:16]
}

// Entity is a named entity mentioned in a story.
type Entity struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"` // company, ticker, sector, country, person
	Relevance float64 `json:"relevance"`
	Ticker    string  `json:"ticker,omitempty"`
}

// TimelineEvent is a single event in a story timeline.
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
	SourceURL   string    `json:"source_url"`
	EventType   string    `json:"event_type"` // first_mention, confirmation, update, correction
}

// HotnessScore is the detailed scoring breakdown for a cluster.
type HotnessScore struct {
	Overall        float64 `json:"overall"`
	Unexpectedness float64 `json:"unexpectedness"`
	Materiality    float64 `json:"materiality"`
	Velocity       float64 `json:"velocity"`
	Breadth        float64 `json:"breadth"`
	Credibility    float64 `json:"credibility"`
	Reasoning      string  `json:"reasoning"`
}

// HotnessAnalysis is the complete structured output of the scoring collaborator.
type HotnessAnalysis struct {
	Hotness  HotnessScore    `json:"hotness"`
	Entities []Entity        `json:"entities"`
	Timeline []TimelineEvent `json:"timeline"`
	WhyNow   string          `json:"why_now"`
	Headline string          `json:"headline"`
}

// DraftRequest carries everything the drafting collaborator needs to write
// a publication draft for one story.
type DraftRequest struct {
	Headline  string
	Articles  []Article
	Entities  []Entity
	Timeline  []TimelineEvent
	WhyNow    string
	Reasoning string
}

// Story is a processed news story built from one cluster.
type Story struct {
	ID              string          `json:"id"`
	Headline        string          `json:"headline"`
	Hotness         float64         `json:"hotness"`
	HotnessDetails  HotnessScore    `json:"hotness_details"`
	WhyNow          string          `json:"why_now"`
	Entities        []Entity        `json:"entities"`
	Sources         []string        `json:"sources"`
	Timeline        []TimelineEvent `json:"timeline"`
	Draft           string          `json:"draft"`
	DedupGroup      string          `json:"dedup_group"`
	CreatedAt       time.Time       `json:"created_at"`
	ArticleCount    int             `json:"article_count"`
	HasDeepResearch bool            `json:"has_deep_research"`
	ResearchSummary string          `json:"research_summary,omitempty"`
}

// ResearchSource is one web result backing a deep research report.
type ResearchSource struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// RadarResponse is the result of one full radar pipeline run.
type RadarResponse struct {
	Stories                []Story   `json:"stories"`
	TotalArticlesProcessed int       `json:"total_articles_processed"`
	TimeWindowHours        int       `json:"time_window_hours"`
	GeneratedAt            time.Time `json:"generated_at"`
	ProcessingTime         float64   `json:"processing_time_seconds"`
}

// FeedItem is a single entry in a user's personal feed.
type FeedItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	PublishedAt     time.Time `json:"published_at"`
	Author          string    `json:"author,omitempty"`
	RelevanceScore  float64   `json:"relevance_score"`
	MatchedKeywords []string  `json:"matched_keywords"`
	ClusterSize     int       `json:"cluster_size"`
}

// FeedResponse is a generated personal feed for one user.
type FeedResponse struct {
	Items                  []FeedItem `json:"items"`
	TotalArticlesProcessed int        `json:"total_articles_processed"`
	FilteredCount          int        `json:"filtered_count"`
	TimeWindowHours        int        `json:"time_window_hours"`
	GeneratedAt            time.Time  `json:"generated_at"`
	ProcessingTime         float64    `json:"processing_time_seconds"`
	UserID                 string     `json:"user_id,omitempty"`
}

// Preferences drive filtering and scoring of a user's personal feed.
type Preferences struct {
	UserID                 string    `json:"user_id"`
	Sources                []string  `json:"sources"`
	Keywords               []string  `json:"keywords"`
	ExcludedKeywords       []string  `json:"excluded_keywords"`
	Categories             []string  `json:"categories"`
	UpdateFrequencyMinutes int       `json:"update_frequency_minutes"`
	MaxArticlesPerFeed     int       `json:"max_articles_per_feed"`
	AutoRefreshEnabled     bool      `json:"auto_refresh_enabled"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Interaction records a single user action against a feed item.
type Interaction struct {
	UserID       string    `json:"user_id"`
	ArticleID    string    `json:"article_id"`
	Type         string    `json:"type"` // read, like, dislike, save
	ReadDuration int       `json:"read_duration_seconds,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
