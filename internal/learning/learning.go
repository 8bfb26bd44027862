// Package learning adjusts per-user keyword weights from interaction
// history and discovers new interests from engaged reading. Weights live
// in [-1,1]: positive terms pull articles up the feed, negative terms
// push them down.
package learning

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/internal/index"
	"github.com/hotstory/radar/internal/store"
	"github.com/hotstory/radar/models"
)

// engagementWeights maps an interaction type to its training signal.
var engagementWeights = map[string]float64{
	store.InteractionRead:    0.3,
	store.InteractionLike:    1.0,
	store.InteractionSave:    0.8,
	store.InteractionDislike: -1.0,
}

// readDurationBonusCap limits how much long reads can add on top of the
// base read signal.
const readDurationBonusCap = 0.4

// Storage is the slice of the record store the engine needs.
type Storage interface {
	ListInteractionsSince(ctx context.Context, userID string, since time.Time) ([]models.Interaction, error)
	GetArticlesByIDs(ctx context.Context, ids []string) ([]models.Article, error)
	ListEngagedArticles(ctx context.Context, userID string, since time.Time) ([]models.Article, error)
	GetKeywordWeights(ctx context.Context, userID string) (map[string]float64, error)
	SaveKeywordWeights(ctx context.Context, userID string, weights map[string]float64) error
	GetPreferences(ctx context.Context, userID string) (models.Preferences, error)
}

// Engine retrains weights and discovers interests.
type Engine struct {
	storage Storage
	cfg     config.WorkerConfig
	logger  *log.Logger
}

func NewEngine(storage Storage, cfg config.WorkerConfig, logger *log.Logger) *Engine {
	return &Engine{storage: storage, cfg: cfg, logger: logger}
}

// Retrain rebuilds one user's keyword weights from their recent
// interactions. Users without any interactions keep their current
// weights untouched.
func (e *Engine) Retrain(ctx context.Context, userID string) error {
	since := time.Now().AddDate(0, 0, -e.cfg.InteractionDaysBack)
	interactions, err := e.storage.ListInteractionsSince(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("loading interactions: %w", err)
	}
	if len(interactions) == 0 {
		return nil
	}

	ids := make([]string, 0, len(interactions))
	seen := make(map[string]bool)
	for _, in := range interactions {
		if !seen[in.ArticleID] {
			seen[in.ArticleID] = true
			ids = append(ids, in.ArticleID)
		}
	}
	articles, err := e.storage.GetArticlesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("loading interacted articles: %w", err)
	}
	byID := make(map[string]models.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	raw := make(map[string]float64)
	for _, in := range interactions {
		article, ok := byID[in.ArticleID]
		if !ok {
			continue
		}
		signal := engagementWeights[in.Type]
		if in.Type == store.InteractionRead && in.ReadDuration > 0 {
			signal += math.Min(float64(in.ReadDuration)/300.0, 1.0) * readDurationBonusCap
		}
		for _, token := range Tokens(article.Title) {
			raw[token] += signal
		}
	}
	if len(raw) == 0 {
		return nil
	}

	// Normalize so the strongest term sits at |1|.
	maxAbs := 0.0
	for _, w := range raw {
		if abs := math.Abs(w); abs > maxAbs {
			maxAbs = abs
		}
	}
	weights := make(map[string]float64, len(raw))
	for token, w := range raw {
		weights[token] = w / maxAbs
	}

	if err := e.storage.SaveKeywordWeights(ctx, userID, weights); err != nil {
		return fmt.Errorf("saving weights: %w", err)
	}
	e.logger.Printf("retrained %d keyword weights for user %s from %d interactions", len(weights), userID, len(interactions))
	return nil
}

// PredictRelevance scores an article against learned weights: 0.5 base
// shifted by the weights of matching title terms, clamped to [0,1].
func PredictRelevance(weights map[string]float64, article models.Article) float64 {
	score := 0.5
	for _, token := range Tokens(article.Title) {
		if w, ok := weights[token]; ok {
			score += w * 0.1
		}
	}
	return math.Max(0, math.Min(1, score))
}

// DiscoverInterests proposes new preference keywords: terms that recur
// across a large enough share of the user's engaged articles and are not
// already tracked.
func (e *Engine) DiscoverInterests(ctx context.Context, userID string) ([]string, error) {
	since := time.Now().AddDate(0, 0, -e.cfg.InteractionDaysBack)
	engaged, err := e.storage.ListEngagedArticles(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("loading engaged articles: %w", err)
	}
	if len(engaged) < 3 {
		return nil, nil
	}

	prefs, err := e.storage.GetPreferences(ctx, userID)
	if err != nil && err != models.ErrNotFound {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}
	tracked := make(map[string]bool)
	for _, kw := range prefs.Keywords {
		tracked[strings.ToLower(kw)] = true
	}

	// Candidate terms: anything appearing in at least two engaged titles.
	counts := make(map[string]int)
	for _, article := range engaged {
		for _, token := range uniqueTokens(article.Title) {
			counts[token]++
		}
	}

	idx, err := index.New(engaged)
	if err != nil {
		return nil, fmt.Errorf("indexing engaged articles: %w", err)
	}
	defer idx.Close()

	type candidate struct {
		term  string
		ratio float64
	}
	var candidates []candidate
	for term, count := range counts {
		if count < 2 || tracked[term] {
			continue
		}
		hits, err := idx.MatchCount(term)
		if err != nil {
			return nil, err
		}
		ratio := float64(hits) / float64(len(engaged))
		if ratio >= e.cfg.DiscoveryMinEngaged {
			candidates = append(candidates, candidate{term: term, ratio: ratio})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].ratio != candidates[j].ratio {
			return candidates[i].ratio > candidates[j].ratio
		}
		return candidates[i].term < candidates[j].term
	})

	var interests []string
	for _, c := range candidates {
		if len(interests) >= e.cfg.DiscoveryMaxInterest {
			break
		}
		interests = append(interests, c.term)
	}
	return interests, nil
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "has": true,
	"have": true, "will": true, "its": true, "after": true, "over": true,
	"into": true, "amid": true, "say": true, "says": true, "new": true,
	"not": true, "but": true, "his": true, "her": true, "their": true,
	"more": true, "than": true, "out": true, "off": true, "about": true,
}

// Tokens lowercases and splits text into indexable terms, dropping
// stopwords and anything shorter than three characters.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	var out []string
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func uniqueTokens(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, token := range Tokens(text) {
		if !seen[token] {
			seen[token] = true
			out = append(out, token)
		}
	}
	return out
}
