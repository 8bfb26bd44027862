// Package collector pulls recent articles from configured RSS and Atom
// feeds. Every document gets a deterministic id derived from its URL and
// title so repeated collection runs converge on the same records.
package collector

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
)

const defaultFetchTimeout = 20 * time.Second

// Collector fetches feeds concurrently and normalizes entries into articles.
type Collector struct {
	feeds  []string
	client *http.Client
	logger *log.Logger
}

// New builds a collector over the configured feed URLs.
func New(cfg config.SourcesConfig, logger *log.Logger) *Collector {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Collector{
		feeds:  cfg.RSSFeeds,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchSince collects every article published after cutoff from all feeds.
// One broken feed is logged and skipped; the call fails only when every
// configured feed failed.
func (c *Collector) FetchSince(ctx context.Context, cutoff time.Time) ([]models.Article, error) {
	if len(c.feeds) == 0 {
		return nil, nil
	}

	type feedResult struct {
		articles []models.Article
		err      error
	}
	results := make([]feedResult, len(c.feeds))
	var wg sync.WaitGroup
	for i, feed := range c.feeds {
		i, feed := i, feed
		wg.Add(1)
		go func() {
			defer wg.Done()
			articles, err := c.fetchFeed(ctx, feed)
			results[i] = feedResult{articles: articles, err: err}
		}()
	}
	wg.Wait()

	var out []models.Article
	seen := make(map[string]bool)
	failures := 0
	for i, res := range results {
		if res.err != nil {
			failures++
			c.logger.Printf("feed %s failed: %v", c.feeds[i], res.err)
			continue
		}
		for _, article := range res.articles {
			if article.PublishedAt.Before(cutoff) || seen[article.ID] {
				continue
			}
			seen[article.ID] = true
			out = append(out, article)
		}
	}
	if failures == len(c.feeds) {
		return nil, fmt.Errorf("all %d feeds failed", len(c.feeds))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return out, nil
}

func (c *Collector) fetchFeed(ctx context.Context, feedURL string) ([]models.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "radar/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading feed body: %w", err)
	}
	return ParseFeed(body, feedURL)
}

// ParseFeed decodes an RSS 2.0 or Atom document into normalized articles.
func ParseFeed(data []byte, feedURL string) ([]models.Article, error) {
	var rss rssDocument
	if err := xml.Unmarshal(data, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return fromRSS(rss, feedURL), nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(data, &atom); err == nil && len(atom.Entries) > 0 {
		return fromAtom(atom, feedURL), nil
	}
	return nil, fmt.Errorf("unrecognized feed format for %s", feedURL)
}

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"encoded"`
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"creator"`
}

type atomFeed struct {
	Title   string `xml:"title"`
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
		Updated string `xml:"updated"`
		Author  struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

func fromRSS(doc rssDocument, feedURL string) []models.Article {
	source := doc.Channel.Title
	if source == "" {
		source = hostOf(feedURL)
	}
	var out []models.Article
	for _, item := range doc.Channel.Items {
		content := item.Content
		if content == "" {
			content = item.Description
		}
		title := strings.TrimSpace(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}
		out = append(out, models.Article{
			ID:          models.ArticleID(link, title),
			Title:       title,
			Content:     StripHTML(content),
			URL:         link,
			Source:      source,
			Author:      strings.TrimSpace(item.Author),
			PublishedAt: parseFeedTime(item.PubDate),
		})
	}
	return out
}

func fromAtom(feed atomFeed, feedURL string) []models.Article {
	source := feed.Title
	if source == "" {
		source = hostOf(feedURL)
	}
	var out []models.Article
	for _, entry := range feed.Entries {
		link := ""
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0].Href
		}
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		title := strings.TrimSpace(entry.Title)
		if title == "" || link == "" {
			continue
		}
		out = append(out, models.Article{
			ID:          models.ArticleID(link, title),
			Title:       title,
			Content:     StripHTML(content),
			URL:         link,
			Source:      source,
			Author:      strings.TrimSpace(entry.Author.Name),
			PublishedAt: parseFeedTime(entry.Updated),
		})
	}
	return out
}

var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
}

func parseFeedTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range feedTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

// StripHTML reduces a feed entry body to plain text.
func StripHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
