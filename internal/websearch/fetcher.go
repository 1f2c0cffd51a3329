package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
)

// FetcherConfig configures page fetching
type FetcherConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
	UserAgent string        `mapstructure:"user_agent"`
}

func (c *FetcherConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 2 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "context-tailor/1.0"
	}
}

// Fetcher downloads a page and converts its main HTML to markdown
type Fetcher struct {
	httpw  *circuitbreaker.HTTPWrapper
	cfg    FetcherConfig
	md     *converter.Converter
	now    func() time.Time
	logger *zap.Logger
}

// NewFetcher creates a fetcher that follows at most 5 redirects
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return nil
		},
	}
	return &Fetcher{
		httpw: circuitbreaker.NewHTTPWrapper(client, "websearch-fetch", "websearch", logger),
		cfg:   cfg,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		now:    time.Now,
		logger: logger,
	}
}

// Fetch retrieves url. HTML is reduced to its body without scripts and navigation and then
// converted to markdown; plain text passes through.
func (f *Fetcher) Fetch(ctx context.Context, url string) (page Page, err error) {
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodGet, url)
	defer func() { tracing.EndSpan(span, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Page{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	tracing.InjectTraceparent(ctx, req)

	resp, err := f.httpw.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, fmt.Errorf("http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes))
	if err != nil {
		return Page{}, fmt.Errorf("read body: %w", err)
	}

	page = Page{URL: url, FetchedAt: f.now()}
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		page.Content = strings.TrimSpace(string(body))
		return page, nil
	}
	page.Title, page.Content, err = f.ConvertHTML(string(body), url)
	if err != nil {
		return Page{}, err
	}
	return page, nil
}

// ConvertHTML extracts the title and main content of an HTML page as markdown. baseURL
// resolves relative links.
func (f *Fetcher) ConvertHTML(raw, baseURL string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	inner, err := root.Html()
	if err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	md, err := f.md.ConvertString(inner, converter.WithDomain(baseURL))
	if err != nil {
		return "", "", fmt.Errorf("convert markdown: %w", err)
	}
	return title, strings.TrimSpace(md), nil
}
