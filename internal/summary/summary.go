// Package summary produces short per-article summaries for feed delivery.
// Remote summarization is bounded by a concurrency limiter and degrades to
// a local excerpt when the provider call fails.
package summary

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/hotstory/radar/internal/limiter"
	"github.com/hotstory/radar/models"
	"github.com/hotstory/radar/provider"
)

const (
	fallbackSentences = 3
	fallbackMaxChars  = 300
)

// Generator summarizes articles through the provider.
type Generator struct {
	provider provider.Provider
	logger   *log.Logger
}

func NewGenerator(p provider.Provider, logger *log.Logger) *Generator {
	return &Generator{provider: p, logger: logger}
}

// Summarize returns a short summary for one article, falling back to the
// opening sentences of the content when the provider fails.
func (g *Generator) Summarize(ctx context.Context, article models.Article) string {
	if g.provider != nil {
		out, err := g.provider.Summarize(ctx, article)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		if err != nil {
			g.logger.Printf("summary fallback for article %s: %v", article.ID, err)
		}
	}
	return Excerpt(article.Content)
}

// SummarizeBatch fills in summaries for all articles with at most the
// limiter's cap of concurrent provider calls. Results keep input order.
func (g *Generator) SummarizeBatch(ctx context.Context, articles []models.Article, lim *limiter.Limiter) []string {
	out := make([]string, len(articles))
	var wg sync.WaitGroup
	for i, article := range articles {
		i, article := i, article
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := lim.Do(ctx, func() error {
				out[i] = g.Summarize(ctx, article)
				return nil
			})
			if err != nil {
				out[i] = Excerpt(article.Content)
			}
		}()
	}
	wg.Wait()
	return out
}

// Excerpt takes the first few sentences of content, capped in length.
func Excerpt(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	var sentences []string
	rest := content
	for len(sentences) < fallbackSentences {
		idx := strings.IndexAny(rest, ".!?")
		if idx < 0 {
			sentences = append(sentences, rest)
			break
		}
		sentences = append(sentences, rest[:idx+1])
		rest = strings.TrimSpace(rest[idx+1:])
		if rest == "" {
			break
		}
	}
	excerpt := strings.TrimSpace(strings.Join(sentences, " "))
	if len(excerpt) > fallbackMaxChars {
		excerpt = strings.TrimSpace(excerpt[:fallbackMaxChars]) + "..."
	}
	return excerpt
}
