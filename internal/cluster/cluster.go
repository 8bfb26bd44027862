// Package cluster groups near-duplicate articles into event clusters using
// connected components over a pairwise cosine-similarity graph.
package cluster

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hotstory/radar/internal/similarity"
	"github.com/hotstory/radar/models"
)

// Cluster is one connected component of mutually similar articles. Members
// keep discovery order; the first member list position is not necessarily
// the representative.
type Cluster struct {
	ID             string
	Articles       []models.Article
	Representative models.Article
}

const optimalContentLength = 1000

// reputationSources get full source-reputation credit during representative
// selection; everything else scores 0.5.
var reputationSources = []string{"reuters", "bloomberg", "wsj", "ft.com", "cnbc"}

// Engine partitions article sets by embedding similarity.
type Engine struct {
	threshold float64
}

// NewEngine builds an engine with an inclusive similarity threshold:
// articles i,j join the same component iff similarity(i,j) >= threshold.
func NewEngine(threshold float64) (*Engine, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in [0,1], got %v", threshold)
	}
	return &Engine{threshold: threshold}, nil
}

// Cluster partitions articles into clusters. Every input article lands in
// exactly one cluster; an article with no neighbor at or above the threshold
// forms a singleton. The result is sorted by descending member count (ties
// keep discovery order) and cluster IDs are numbered in that final order.
// Empty input yields an empty slice.
func (e *Engine) Cluster(articles []models.Article, vectors map[string][]float32) []Cluster {
	if len(articles) == 0 {
		return nil
	}

	n := len(articles)
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
		sims[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := similarity.Cosine(vectors[articles[i].ID], vectors[articles[j].ID])
			sims[i][j] = s
			sims[j][i] = s
		}
	}

	visited := make([]bool, n)
	var components [][]models.Article

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		// Iterative depth-first traversal; an explicit stack avoids
		// recursion-depth limits on large batches.
		var members []models.Article
		stack := []int{i}
		visited[i] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, articles[idx])
			for j := n - 1; j >= 0; j-- {
				if !visited[j] && sims[idx][j] >= e.threshold {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}
		components = append(components, members)
	}

	sort.SliceStable(components, func(a, b int) bool {
		return len(components[a]) > len(components[b])
	})

	clusters := make([]Cluster, len(components))
	for i, members := range components {
		clusters[i] = Cluster{
			ID:             fmt.Sprintf("cluster_%04d", i),
			Articles:       members,
			Representative: Representative(members),
		}
	}
	return clusters
}

// Representative picks the single best article of a cluster using a weighted
// blend of recency, content length and source reputation. Singleton clusters
// trivially return their only member.
func Representative(members []models.Article) models.Article {
	if len(members) == 0 {
		return models.Article{}
	}
	if len(members) == 1 {
		return members[0]
	}

	oldest := members[0].PublishedAt
	latest := members[0].PublishedAt
	for _, a := range members[1:] {
		if a.PublishedAt.Before(oldest) {
			oldest = a.PublishedAt
		}
		if a.PublishedAt.After(latest) {
			latest = a.PublishedAt
		}
	}
	timeRange := latest.Sub(oldest).Seconds()

	best := members[0]
	bestScore := -1.0
	for _, a := range members {
		timeScore := 1.0
		if timeRange > 0 {
			timeScore = a.PublishedAt.Sub(oldest).Seconds() / timeRange
		}

		lengthScore := float64(len(a.Content)) / optimalContentLength
		if lengthScore > 1 {
			lengthScore = 1
		}

		reputationScore := 0.5
		lowerSource := strings.ToLower(a.Source)
		for _, s := range reputationSources {
			if strings.Contains(lowerSource, s) {
				reputationScore = 1
				break
			}
		}

		score := timeScore*0.4 + lengthScore*0.3 + reputationScore*0.3
		if score > bestScore {
			bestScore = score
			best = a
		}
	}
	return best
}
