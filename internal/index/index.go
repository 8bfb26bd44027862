// Package index wraps an in-memory bleve full-text index over a batch of
// articles. The aggregator uses it for keyword matching and the learning
// engine for interest discovery; both build a fresh index per batch and
// throw it away afterwards.
package index

import (
	"fmt"

	"github.com/blevesearch/bleve"

	"github.com/hotstory/radar/models"
)

type document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Index is a transient full-text index over one article batch.
type Index struct {
	idx  bleve.Index
	size int
}

// New indexes the given articles in memory.
func New(articles []models.Article) (*Index, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("creating index: %w", err)
	}
	batch := idx.NewBatch()
	for _, article := range articles {
		doc := document{Title: article.Title, Content: article.Content, Source: article.Source}
		if err := batch.Index(article.ID, doc); err != nil {
			return nil, fmt.Errorf("indexing article %s: %w", article.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("committing batch: %w", err)
	}
	return &Index{idx: idx, size: len(articles)}, nil
}

// Match returns the ids of articles whose text matches the term.
func (i *Index) Match(term string) ([]string, error) {
	query := bleve.NewMatchQuery(term)
	req := bleve.NewSearchRequest(query)
	req.Size = i.size
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", term, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// MatchCount returns how many indexed articles match the term.
func (i *Index) MatchCount(term string) (int, error) {
	ids, err := i.Match(term)
	return len(ids), err
}

// Size is the number of indexed articles.
func (i *Index) Size() int { return i.size }

func (i *Index) Close() error { return i.idx.Close() }
