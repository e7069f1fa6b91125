// Package crawler walks the configured news sources looking for article
// links worth reading, then downloads and extracts the queued articles.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/newsherd/newsherd/internal/config"
	"github.com/newsherd/newsherd/internal/extract"
	"github.com/newsherd/newsherd/internal/fetch"
	"github.com/newsherd/newsherd/internal/metrics"
	"github.com/newsherd/newsherd/internal/storage"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)
	// Tracking parameter some syndication platforms append to links.
	reTrackingParam = regexp.MustCompile(`&TM=[.0-9]+$`)
)

// Crawler discovers and downloads articles for one crawl profile.
type Crawler struct {
	store     storage.Store
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	profile   *config.Profile
	feeds     *gofeed.Parser
}

func New(store storage.Store, fetcher *fetch.Fetcher, profile *config.Profile) *Crawler {
	return &Crawler{
		store:     store,
		fetcher:   fetcher,
		extractor: extract.New(),
		profile:   profile,
		feeds:     gofeed.NewParser(),
	}
}

type foundLink struct {
	title string
	url   string
}

// CrawlSources scans every enabled source for links whose text matches
// the profile and queues them. Seen titles accumulate across sources
// within a run, so the same story syndicated to several outlets is only
// queued once.
func (c *Crawler) CrawlSources(ctx context.Context) error {
	sources, err := c.store.EnabledSources(ctx)
	if err != nil {
		return fmt.Errorf("loading sources: %w", err)
	}
	slog.Info("crawling sources", "count", len(sources))

	seenTitles := make(map[string]struct{})
	var crawled []int64

	for _, src := range sources {
		var links []foundLink
		switch src.Kind {
		case "rss":
			links, err = c.feedLinks(ctx, src.URL)
		default:
			links, err = c.pageLinks(ctx, src.URL)
		}
		if err != nil {
			slog.Error("source crawl failed", "url", src.URL, "error", err)
			continue
		}

		queued := 0
		uniqueURLs := make(map[string]struct{})
		for _, link := range links {
			if !c.profile.WordsRe.MatchString(link.title) {
				continue
			}
			if _, seen := seenTitles[link.title]; seen {
				continue
			}
			seenTitles[link.title] = struct{}{}
			if c.profile.ExcludeTitlesRe != nil && c.profile.ExcludeTitlesRe.MatchString(link.title) {
				continue
			}
			if c.profile.ExcludeURLsRe != nil && c.profile.ExcludeURLsRe.MatchString(link.url) {
				continue
			}
			if _, dup := uniqueURLs[link.url]; dup {
				continue
			}
			uniqueURLs[link.url] = struct{}{}

			if err := c.store.Enqueue(ctx, src.ID, link.title, link.url, src.Location); err != nil {
				slog.Error("enqueue failed", "url", link.url, "error", err)
				continue
			}
			queued++
		}

		metrics.Global.AddSourcesCrawled(1)
		metrics.Global.AddArticlesQueued(queued)
		slog.Debug("source crawled", "url", src.URL, "links", len(links), "queued", queued)
		crawled = append(crawled, src.ID)
	}

	return c.store.MarkSourcesCrawled(ctx, crawled)
}

// pageLinks collects the anchors of an HTML listing page.
func (c *Crawler) pageLinks(ctx context.Context, sourceURL string) ([]foundLink, error) {
	page, err := c.fetcher.Get(ctx, sourceURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return nil, err
	}

	var links []foundLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link, ok := cleanLink(base, href)
		if !ok {
			return
		}
		title := normalizeTitle(sel.Text())
		if title == "" {
			return
		}
		links = append(links, foundLink{title: title, url: link})
	})
	return links, nil
}

// feedLinks collects the items of an RSS or Atom feed.
func (c *Crawler) feedLinks(ctx context.Context, feedURL string) ([]foundLink, error) {
	feed, err := c.feeds.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	base, err := url.Parse(feedURL)
	if err != nil {
		return nil, err
	}

	var links []foundLink
	for _, item := range feed.Items {
		link, ok := cleanLink(base, item.Link)
		if !ok {
			continue
		}
		title := normalizeTitle(item.Title)
		if title == "" {
			continue
		}
		links = append(links, foundLink{title: title, url: link})
	}
	return links, nil
}

// CrawlArticles downloads every queued article that has no content yet.
// Articles that fail to fetch or yield no text get a placeholder so they
// are not retried on the next run.
func (c *Crawler) CrawlArticles(ctx context.Context) error {
	pending, err := c.store.PendingArticles(ctx)
	if err != nil {
		return fmt.Errorf("loading pending articles: %w", err)
	}
	slog.Info("crawling articles", "count", len(pending))

	for i, article := range pending {
		slog.Debug("fetching article", "n", i+1, "of", len(pending), "url", article.URL)

		if err := c.crawlArticle(ctx, article); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("article crawl failed", "url", article.URL, "error", err)
		}
	}
	return nil
}

func (c *Crawler) crawlArticle(ctx context.Context, article storage.PendingArticle) error {
	page, err := c.fetcher.Get(ctx, article.URL)
	if err != nil {
		metrics.Global.IncrementExtractionsFailed()
		// Leave a placeholder so the article is not fetched again.
		if saveErr := c.store.SaveContent(ctx, article.ID, nil); saveErr != nil {
			return saveErr
		}
		return err
	}

	result, err := c.extractor.Extract(page.Body, page.FinalURL)
	if err != nil && !errors.Is(err, extract.ErrNoContent) {
		metrics.Global.IncrementExtractionsFailed()
		if saveErr := c.store.SaveContent(ctx, article.ID, nil); saveErr != nil {
			return saveErr
		}
		return err
	}

	// A canonical URL that differs from the fetched one replaces the
	// queued URL, so the same story reached by two paths dedupes.
	if canonical := result.Meta.CanonicalURL; canonical != "" && canonical != page.FinalURL && canonical != article.URL {
		switch replaceErr := c.store.ReplaceURL(ctx, article.ID, canonical); {
		case errors.Is(replaceErr, storage.ErrDuplicateURL):
			slog.Debug("article already crawled under canonical URL", "url", article.URL, "canonical", canonical)
			return nil
		case replaceErr != nil:
			return replaceErr
		}
	}

	if result.Text == "" {
		metrics.Global.IncrementExtractionsFailed()
		return c.store.SaveContent(ctx, article.ID, nil)
	}

	if err := c.store.SaveContent(ctx, article.ID, &result.Text); err != nil {
		return err
	}
	metrics.Global.IncrementArticlesExtracted()
	return nil
}

func normalizeTitle(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}

// cleanLink resolves href against the page URL, drops fragments and
// tracking parameters, and keeps only http(s) links.
func cleanLink(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""

	switch strings.ToLower(abs.Scheme) {
	case "http", "https":
	default:
		return "", false
	}
	return reTrackingParam.ReplaceAllString(abs.String(), ""), true
}
