// Package news searches an RSS news aggregator for industry headlines.
package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/iwvelando/tireintel/internal/cache"
	"github.com/iwvelando/tireintel/internal/config"
	"github.com/iwvelando/tireintel/pkg/constants"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

// ErrBlocked is returned when the provider refuses the request or answers
// with a web page instead of a feed.
var ErrBlocked = errors.New("blocked by provider")

// Status describes how a Result was produced.
type Status string

const (
	// StatusOK means at least one article was found.
	StatusOK Status = "ok"
	// StatusEmpty means the feed parsed but had no items.
	StatusEmpty Status = "empty"
	// StatusFailed means the feed could not be fetched or parsed.
	StatusFailed Status = "failed"
)

const (
	maxFeedBytes    = 4 << 20
	maxSnippetRunes = 280
	titleSeparator  = " - "
	userAgent       = "tireintel/1.0 (+https://github.com/iwvelando/tireintel)"
)

// Article is one headline from the feed.
type Article struct {
	Title     string     `json:"title" msgpack:"title"`
	Source    string     `json:"source,omitempty" msgpack:"source"`
	Link      string     `json:"link" msgpack:"link"`
	Published *time.Time `json:"published,omitempty" msgpack:"published"`
	Snippet   string     `json:"snippet,omitempty" msgpack:"snippet"`
}

// Result is the outcome of a Search.
type Result struct {
	Query    string    `json:"query"`
	Status   Status    `json:"status"`
	Articles []Article `json:"articles"`
	Reason   string    `json:"reason,omitempty"`
	Err      error     `json:"-"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCache memoizes non-empty searches in store for ttl.
func WithCache(store cache.Store, ttl time.Duration) Option {
	return func(c *Client) {
		c.store = store
		c.ttl = ttl
	}
}

// Client searches the news RSS endpoint.
type Client struct {
	baseURL    string
	language   string
	region     string
	maxItems   int
	httpClient *http.Client
	store      cache.Store
	ttl        time.Duration
	memo       *cache.Memo[[]Article]
	logger     *zap.Logger
}

// NewClient creates a news client from configuration.
func NewClient(conf config.NewsConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultFetchTimeout
	}
	baseURL := conf.BaseURL
	if baseURL == "" {
		baseURL = constants.DefaultNewsBaseURL
	}
	maxItems := conf.MaxItems
	if maxItems <= 0 {
		maxItems = constants.DefaultNewsMaxItems
	}
	language, region := splitLocale(conf.Locale)

	c := &Client{
		baseURL:    baseURL,
		language:   language,
		region:     region,
		maxItems:   maxItems,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.memo = cache.NewMemo[[]Article](c.store, "news.Search", c.ttl, logger)
	return c
}

// splitLocale turns "en-US" into ("en", "US").
func splitLocale(locale string) (string, string) {
	if locale == "" {
		locale = constants.DefaultNewsLocale
	}
	parts := strings.SplitN(locale, "-", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "en", "US"
	}
	return strings.ToLower(parts[0]), strings.ToUpper(parts[1])
}

// Search returns up to the configured number of articles matching query.
// Search never fails: problems are reported through the Result status.
func (c *Client) Search(ctx context.Context, query string) Result {
	query = strings.TrimSpace(query)
	result := Result{Query: query, Articles: []Article{}}
	if query == "" {
		result.Status = StatusFailed
		result.Err = fmt.Errorf("query cannot be empty")
		result.Reason = result.Err.Error()
		return result
	}

	articles, err := c.memo.Do(ctx, []interface{}{c.baseURL, c.language, c.region, c.maxItems, query},
		func(ctx context.Context) ([]Article, bool, error) {
			articles, err := c.fetch(ctx, query)
			return articles, len(articles) > 0, err
		})

	switch {
	case err != nil:
		c.logger.Warn("news search failed",
			zap.String("op", "news.Search"),
			zap.String("query", query),
			zap.Error(err),
		)
		result.Status = StatusFailed
		result.Err = err
		result.Reason = err.Error()
	case len(articles) == 0:
		result.Status = StatusEmpty
	default:
		for i := range articles {
			if articles[i].Published != nil {
				published := articles[i].Published.UTC()
				articles[i].Published = &published
			}
		}
		result.Status = StatusOK
		result.Articles = articles
	}
	return result
}

func (c *Client) searchURL(query string) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", c.language+"-"+c.region)
	params.Set("gl", c.region)
	params.Set("ceid", c.region+":"+c.language)

	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + params.Encode()
}

func (c *Client) fetch(ctx context.Context, query string) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.5")

	c.logger.Debug("fetching news feed",
		zap.String("op", "news.fetch"),
		zap.String("query", query),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrBlocked
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	if isHTML(resp.Header.Get("Content-Type"), body) {
		return nil, ErrBlocked
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	articles := make([]Article, 0, c.maxItems)
	for _, item := range feed.Items {
		if len(articles) == c.maxItems {
			break
		}
		if item == nil {
			continue
		}
		title, source := SplitTitle(item.Title)
		article := Article{
			Title:   title,
			Source:  source,
			Link:    item.Link,
			Snippet: Snippet(item.Description),
		}
		if item.PublishedParsed != nil {
			published := item.PublishedParsed.UTC()
			article.Published = &published
		}
		articles = append(articles, article)
	}

	c.logger.Info("fetched news feed",
		zap.String("op", "news.fetch"),
		zap.String("query", query),
		zap.Int("items", len(feed.Items)),
		zap.Int("kept", len(articles)),
	)
	return articles, nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(string(bytes.TrimSpace(body[:min(len(body), 512)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

// SplitTitle splits an aggregator headline "Headline - Source" on the last
// separator. Titles without a separator have no source.
func SplitTitle(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, titleSeparator)
	if idx <= 0 {
		return raw, ""
	}
	return strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+len(titleSeparator):])
}

// Snippet reduces an HTML item description to plain text of bounded length.
func Snippet(description string) string {
	if strings.TrimSpace(description) == "" {
		return ""
	}

	text := description
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(description)); err == nil {
		text = doc.Text()
	}
	text = strings.Join(strings.Fields(text), " ")

	if utf8.RuneCountInString(text) <= maxSnippetRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxSnippetRunes])) + "…"
}
