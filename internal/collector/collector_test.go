package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
)

func rssBody(pub time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>Example Wire</title>
  <item>
    <title>Fed surprises markets</title>
    <link>https://example.com/fed</link>
    <description>&lt;p&gt;An &lt;b&gt;unexpected&lt;/b&gt; rate move.&lt;/p&gt;</description>
    <pubDate>%s</pubDate>
  </item>
  <item>
    <title>Old story</title>
    <link>https://example.com/old</link>
    <description>stale</description>
    <pubDate>%s</pubDate>
  </item>
</channel></rss>`, pub.Format(time.RFC1123Z), pub.Add(-72*time.Hour).Format(time.RFC1123Z))
}

const atomBody = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Desk</title>
  <entry>
    <title>Chip maker guidance cut</title>
    <link rel="alternate" href="https://atom.example.com/chips"/>
    <summary>Guidance &lt;em&gt;reduced&lt;/em&gt; sharply.</summary>
    <updated>2026-08-29T10:00:00Z</updated>
    <author><name>Desk</name></author>
  </entry>
</feed>`

func newCollector(t *testing.T, feeds ...string) *Collector {
	t.Helper()
	return New(config.SourcesConfig{RSSFeeds: feeds, FetchTimeout: 5 * time.Second}, log.New(io.Discard, "", 0))
}

func TestFetchSinceFiltersAndStrips(t *testing.T) {
	now := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(now.Add(-time.Hour)))
	}))
	defer srv.Close()

	articles, err := newCollector(t, srv.URL).FetchSince(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article inside the window, got %d", len(articles))
	}
	got := articles[0]
	if got.Title != "Fed surprises markets" {
		t.Fatalf("unexpected title %q", got.Title)
	}
	if got.Content != "An unexpected rate move." {
		t.Fatalf("HTML not stripped: %q", got.Content)
	}
	if got.Source != "Example Wire" {
		t.Fatalf("unexpected source %q", got.Source)
	}
	if want := models.ArticleID(got.URL, got.Title); got.ID != want {
		t.Fatalf("id %q, want deterministic %q", got.ID, want)
	}
}

func TestFetchSinceSkipsBrokenFeed(t *testing.T) {
	now := time.Now().UTC()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(now))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer bad.Close()

	articles, err := newCollector(t, good.URL, bad.URL).FetchSince(context.Background(), now.Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("one healthy feed should carry the run: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
}

func TestFetchSinceAllFeedsFailed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer bad.Close()

	if _, err := newCollector(t, bad.URL).FetchSince(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error when every feed failed")
	}
}

func TestParseFeedAtom(t *testing.T) {
	articles, err := ParseFeed([]byte(atomBody), "https://atom.example.com/feed")
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(articles))
	}
	got := articles[0]
	if got.URL != "https://atom.example.com/chips" {
		t.Fatalf("unexpected link %q", got.URL)
	}
	if got.Content != "Guidance reduced sharply." {
		t.Fatalf("HTML not stripped: %q", got.Content)
	}
	if got.Author != "Desk" {
		t.Fatalf("unexpected author %q", got.Author)
	}
	if got.PublishedAt.IsZero() {
		t.Fatal("updated timestamp not parsed")
	}
}

func TestParseFeedRejectsGarbage(t *testing.T) {
	if _, err := ParseFeed([]byte("not xml at all"), "https://example.com"); err == nil {
		t.Fatal("expected error for non-feed payload")
	}
}

func TestStripHTMLCollapsesWhitespace(t *testing.T) {
	got := StripHTML("<div>\n  <p>two\n  lines</p>  <span>here</span>\n</div>")
	if got != "two lines here" {
		t.Fatalf("got %q", got)
	}
}
