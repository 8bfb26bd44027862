package cluster

import (
	"fmt"
	"testing"
	"time"

	"github.com/hotstory/radar/models"
)

func vecs(m map[string][]float32) map[string][]float32 { return m }

func article(id string, published time.Time) models.Article {
	return models.Article{ID: id, Title: id, Content: "content " + id, PublishedAt: published}
}

// axis returns a unit vector along the given axis of a 4-dim space.
func axis(i int) []float32 {
	v := make([]float32, 4)
	v[i] = 1
	return v
}

// blend returns a normalized mix of two axes; cosine against axis(i) is high.
func blend(i, j int, wi, wj float32) []float32 {
	v := make([]float32, 4)
	v[i] = wi
	v[j] = wj
	return v
}

func TestClusterPartitionInvariant(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		article("a", now), article("b", now), article("c", now),
		article("d", now), article("e", now),
	}
	vectors := vecs(map[string][]float32{
		"a": axis(0),
		"b": blend(0, 1, 0.95, 0.1),
		"c": axis(1),
		"d": axis(2),
		"e": blend(2, 3, 0.9, 0.2),
	})

	eng, err := NewEngine(0.85)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	clusters := eng.Cluster(articles, vectors)

	seen := map[string]int{}
	for _, c := range clusters {
		for _, a := range c.Articles {
			seen[a.ID]++
		}
	}
	if len(seen) != len(articles) {
		t.Fatalf("expected %d distinct members, got %d", len(articles), len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("article %s appears in %d clusters", id, count)
		}
	}
}

func TestClusterThresholdMonotonicity(t *testing.T) {
	now := time.Now()
	var articles []models.Article
	vectors := map[string][]float32{}
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("a%d", i)
		articles = append(articles, article(id, now))
		vectors[id] = blend(0, 1, 1, float32(i)*0.3)
	}

	maxSizeAt := func(threshold float64) int {
		eng, err := NewEngine(threshold)
		if err != nil {
			t.Fatalf("NewEngine: %v", err)
		}
		clusters := eng.Cluster(articles, vectors)
		if len(clusters) == 0 {
			return 0
		}
		return len(clusters[0].Articles)
	}

	if low, high := maxSizeAt(0.7), maxSizeAt(0.99); high > low {
		t.Fatalf("raising the threshold grew the largest cluster: %d -> %d", low, high)
	}
}

func TestClusterDeterminism(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		article("a", now), article("b", now), article("c", now), article("d", now),
	}
	vectors := vecs(map[string][]float32{
		"a": axis(0), "b": blend(0, 1, 0.97, 0.05), "c": axis(1), "d": axis(2),
	})

	eng, _ := NewEngine(0.85)
	first := eng.Cluster(articles, vectors)
	second := eng.Cluster(articles, vectors)

	if len(first) != len(second) {
		t.Fatalf("cluster counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || len(first[i].Articles) != len(second[i].Articles) {
			t.Fatalf("cluster %d differs between runs", i)
		}
		for j := range first[i].Articles {
			if first[i].Articles[j].ID != second[i].Articles[j].ID {
				t.Fatalf("cluster %d member %d differs between runs", i, j)
			}
		}
	}
}

func TestSingletonCluster(t *testing.T) {
	now := time.Now()
	articles := []models.Article{article("lonely", now)}
	vectors := vecs(map[string][]float32{"lonely": axis(3)})

	eng, _ := NewEngine(0.85)
	clusters := eng.Cluster(articles, vectors)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0].Articles) != 1 || clusters[0].Representative.ID != "lonely" {
		t.Fatalf("singleton cluster must represent itself")
	}
}

func TestClusterOrderingAndIDs(t *testing.T) {
	now := time.Now()
	articles := []models.Article{
		article("solo", now),
		article("x1", now), article("x2", now), article("x3", now),
	}
	vectors := vecs(map[string][]float32{
		"solo": axis(3),
		"x1":   axis(0), "x2": blend(0, 1, 0.98, 0.05), "x3": blend(0, 1, 0.97, 0.08),
	})

	eng, _ := NewEngine(0.85)
	clusters := eng.Cluster(articles, vectors)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if len(clusters[0].Articles) != 3 {
		t.Fatalf("largest cluster must come first, got size %d", len(clusters[0].Articles))
	}
	if clusters[0].ID != "cluster_0000" || clusters[1].ID != "cluster_0001" {
		t.Fatalf("ids must be zero-padded and assigned after sorting: %s, %s", clusters[0].ID, clusters[1].ID)
	}
}

func TestEmptyInput(t *testing.T) {
	eng, _ := NewEngine(0.85)
	if clusters := eng.Cluster(nil, nil); len(clusters) != 0 {
		t.Fatalf("expected no clusters for empty input, got %d", len(clusters))
	}
}

func TestZeroVectorsFormSingletons(t *testing.T) {
	now := time.Now()
	articles := []models.Article{article("z1", now), article("z2", now)}
	vectors := vecs(map[string][]float32{
		"z1": make([]float32, 4),
		"z2": make([]float32, 4),
	})
	eng, _ := NewEngine(0.85)
	clusters := eng.Cluster(articles, vectors)
	if len(clusters) != 2 {
		t.Fatalf("zero vectors must not merge, got %d clusters", len(clusters))
	}
}

func TestRepresentativePrefersFresherLongerReputable(t *testing.T) {
	now := time.Now()
	members := []models.Article{
		{ID: "old", Title: "old", Content: "short", Source: "blog.example.com", PublishedAt: now.Add(-4 * time.Hour)},
		{ID: "best", Title: "best", Content: string(make([]byte, 1200)), Source: "reuters.com", PublishedAt: now},
		{ID: "mid", Title: "mid", Content: string(make([]byte, 400)), Source: "blog.example.com", PublishedAt: now.Add(-time.Hour)},
	}
	if rep := Representative(members); rep.ID != "best" {
		t.Fatalf("expected best, got %s", rep.ID)
	}
}

func TestNewEngineRejectsInvalidThreshold(t *testing.T) {
	if _, err := NewEngine(1.5); err == nil {
		t.Fatal("expected threshold validation error")
	}
	if _, err := NewEngine(-0.1); err == nil {
		t.Fatal("expected threshold validation error")
	}
}
