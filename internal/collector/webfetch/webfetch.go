// Package webfetch upgrades an article to its full page text by rendering
// the page in headless Chrome and running readability extraction. It is an
// optional stage: callers treat any failure as "keep the feed excerpt".
package webfetch

import (
	"context"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"

	"github.com/hotstory/radar/models"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxChars = 20000
)

// Fetcher renders pages and extracts readable text.
type Fetcher struct {
	Timeout  time.Duration
	MaxChars int
	logger   *log.Logger

	// renderHTML is swappable in tests to avoid a real browser.
	renderHTML func(ctx context.Context, url string) (string, error)
}

// New builds a fetcher with default timeout and size limits applied.
func New(logger *log.Logger) *Fetcher {
	return &Fetcher{
		Timeout:    defaultTimeout,
		MaxChars:   defaultMaxChars,
		logger:     logger,
		renderHTML: renderWithChrome,
	}
}

// Enrich replaces article.Content with extracted full text when the page
// yields more than the feed excerpt. The input article is returned unchanged
// on any failure.
func (f *Fetcher) Enrich(ctx context.Context, article models.Article) models.Article {
	if strings.TrimSpace(article.URL) == "" {
		return article
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	html, err := f.renderHTML(ctx, article.URL)
	if err != nil {
		f.logger.Printf("web fetch failed for %s: %v", article.URL, err)
		return article
	}
	text, err := extractText(html, article.URL, f.MaxChars)
	if err != nil {
		f.logger.Printf("readability failed for %s: %v", article.URL, err)
		return article
	}
	if len(text) <= len(article.Content) {
		return article
	}
	article.Content = text
	return article
}

func extractText(html, pageURL string, maxChars int) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", errors.New("no readable content")
	}
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}

func renderWithChrome(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("radar/1.0"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
