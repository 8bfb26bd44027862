package webfetch

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/hotstory/radar/models"
)

const pageHTML = `<html><head><title>Full Story</title></head><body>
<article><p>` + "The complete article body with considerably more detail than the feed excerpt ever carries. " +
	"It runs for several sentences so readability treats it as the main content block of the page. " +
	"Extraction should surface all of this text to the caller." + `</p></article>
</body></html>`

func newTestFetcher(render func(context.Context, string) (string, error)) *Fetcher {
	f := New(log.New(io.Discard, "", 0))
	f.renderHTML = render
	return f
}

func TestEnrichUpgradesContent(t *testing.T) {
	f := newTestFetcher(func(ctx context.Context, url string) (string, error) {
		return pageHTML, nil
	})
	in := models.Article{URL: "https://example.com/story", Content: "short excerpt"}
	out := f.Enrich(context.Background(), in)
	if !strings.Contains(out.Content, "complete article body") {
		t.Fatalf("content not upgraded: %q", out.Content)
	}
}

func TestEnrichKeepsExcerptOnRenderFailure(t *testing.T) {
	f := newTestFetcher(func(ctx context.Context, url string) (string, error) {
		return "", errors.New("browser crashed")
	})
	in := models.Article{URL: "https://example.com/story", Content: "short excerpt"}
	out := f.Enrich(context.Background(), in)
	if out.Content != "short excerpt" {
		t.Fatalf("render failure must not lose the excerpt, got %q", out.Content)
	}
}

func TestEnrichKeepsLongerExcerpt(t *testing.T) {
	long := strings.Repeat("already rich feed content. ", 400)
	f := newTestFetcher(func(ctx context.Context, url string) (string, error) {
		return pageHTML, nil
	})
	out := f.Enrich(context.Background(), models.Article{URL: "https://example.com/story", Content: long})
	if out.Content != long {
		t.Fatal("shorter extraction must not replace a longer excerpt")
	}
}

func TestEnrichSkipsEmptyURL(t *testing.T) {
	called := false
	f := newTestFetcher(func(ctx context.Context, url string) (string, error) {
		called = true
		return pageHTML, nil
	})
	f.Enrich(context.Background(), models.Article{Content: "no url"})
	if called {
		t.Fatal("must not render without a URL")
	}
}

func TestEnrichTruncatesToMaxChars(t *testing.T) {
	f := newTestFetcher(func(ctx context.Context, url string) (string, error) {
		return pageHTML, nil
	})
	f.MaxChars = 40
	out := f.Enrich(context.Background(), models.Article{URL: "https://example.com/story", Content: "x"})
	if len(out.Content) > 40 {
		t.Fatalf("content length %d exceeds cap", len(out.Content))
	}
}
