// Package similarity caches per-document embedding vectors for the lifetime
// of a single pipeline run and wraps the remote embedding call with bounded
// concurrency. The cache is scoped to one run; concurrent runs for different
// users each build their own Store.
package similarity

import (
	"context"
	"log"
	"math"
	"sync"

	"github.com/hotstory/radar/internal/limiter"
	"github.com/hotstory/radar/models"
	"github.com/hotstory/radar/provider"
)

// DefaultDimensions is the zero-vector fallback length used when every
// embedding call in a run failed and no real vector established the dimension.
const DefaultDimensions = 768

const embedPreviewLen = 500

// Store memoizes embedding vectors by article ID.
type Store struct {
	provider provider.Provider
	logger   *log.Logger

	mu    sync.Mutex
	cache map[string][]float32
}

// NewStore builds a per-run embedding store.
func NewStore(p provider.Provider, logger *log.Logger) *Store {
	return &Store{
		provider: p,
		logger:   logger,
		cache:    make(map[string][]float32),
	}
}

// embeddingText combines title and a content preview for a better vector.
func embeddingText(article models.Article) string {
	preview := article.Content
	if len(preview) > embedPreviewLen {
		preview = preview[:embedPreviewLen]
	}
	return article.Title + "\n\n" + preview
}

// VectorFor returns the embedding for one article, memoized per run. A remote
// failure yields a nil vector which BatchVectors later replaces with zeros;
// it never aborts sibling lookups.
func (s *Store) VectorFor(ctx context.Context, article models.Article) ([]float32, error) {
	s.mu.Lock()
	if vec, ok := s.cache[article.ID]; ok {
		s.mu.Unlock()
		return vec, nil
	}
	s.mu.Unlock()

	vecs, err := s.provider.CreateEmbedding(ctx, []string{embeddingText(article)})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	s.mu.Lock()
	s.cache[article.ID] = vecs[0]
	s.mu.Unlock()
	return vecs[0], nil
}

// BatchVectors fetches embeddings for all articles with at most cap
// concurrent remote calls. A failed call degrades that article to a
// zero vector; it is logged and never fails the batch.
func (s *Store) BatchVectors(ctx context.Context, articles []models.Article, lim *limiter.Limiter) map[string][]float32 {
	out := make(map[string][]float32, len(articles))
	var outMu sync.Mutex
	var wg sync.WaitGroup

	for _, article := range articles {
		article := article
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lim.Do(ctx, func() error {
				vec, err := s.VectorFor(ctx, article)
				if err != nil {
					return err
				}
				outMu.Lock()
				out[article.ID] = vec
				outMu.Unlock()
				return nil
			})
			if err != nil {
				s.logger.Printf("embedding failed for article %s: %v", article.ID, err)
				outMu.Lock()
				out[article.ID] = nil
				outMu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Degrade failures to zero vectors of the run's dimension.
	dim := DefaultDimensions
	for _, vec := range out {
		if len(vec) > 0 {
			dim = len(vec)
			break
		}
	}
	for id, vec := range out {
		if len(vec) == 0 {
			out[id] = make([]float32, dim)
		}
	}
	return out
}

// Cosine computes cosine similarity between two vectors. Mismatched or
// zero-magnitude vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
