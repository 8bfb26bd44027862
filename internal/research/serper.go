package research

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hotstory/radar/models"
)

const serperEndpoint = "https://google.serper.dev/search"

// serperSearch queries serper.dev for recent web coverage.
type serperSearch struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

func (s *serperSearch) Discover(ctx context.Context, query string, k int) ([]models.ResearchSource, error) {
	payload, _ := json.Marshal(map[string]any{"q": query, "num": k, "tbs": "qdr:d"})
	endpoint := s.endpoint
	if endpoint == "" {
		endpoint = serperEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := s.client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, searchError(resp.Status)
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	var out []models.ResearchSource
	for i, item := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, models.ResearchSource{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return out, nil
}
