package webpage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/ports"
)

const (
	DefaultTimeout   = 30 * time.Second
	MaxResponseSize  = 5 * 1024 * 1024
	MaxRedirects     = 5
	DefaultUserAgent = "Mozilla/5.0 (compatible; VoicedeskKB/1.0)"
)

// Fetcher turns a web page into a knowledge base item body
type Fetcher struct {
	client       *http.Client
	allowPrivate bool
}

// NewFetcher returns a fetcher that refuses loopback and private addresses
// unless allowPrivate is set.
func NewFetcher(timeout time.Duration, allowPrivate bool) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	f := &Fetcher{allowPrivate: allowPrivate}
	f.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return fmt.Errorf("too many redirects (max %d)", MaxRedirects)
			}
			return f.validateURL(req.URL)
		},
	}
	return f
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*ports.FetchedPage, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "invalid url")
	}
	if err := f.validateURL(parsed); err != nil {
		return nil, err
	}

	body, finalURL, err := f.download(ctx, parsed.String())
	if err != nil {
		return nil, err
	}

	title, html := extractArticle(body, finalURL)
	if title == "" {
		title = documentTitle(body)
	}

	md, err := htmltomarkdown.ConvertString(html, converter.WithDomain(finalURL.Scheme+"://"+finalURL.Host))
	if err != nil {
		return nil, fmt.Errorf("converting %s to markdown: %w", finalURL, err)
	}
	md = demoteHeadings(cleanMarkdown(md))
	if md == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "page has no readable content")
	}

	return &ports.FetchedPage{
		URL:      finalURL.String(),
		Title:    strings.TrimSpace(title),
		Markdown: md,
	}, nil
}

func (f *Fetcher) download(ctx context.Context, pageURL string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetching %s: %v", domain.ErrUpstreamUnavailable, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("%w: fetching %s: HTTP %d", domain.ErrUpstreamUnavailable, pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.Request.URL, nil
}

func (f *Fetcher) validateURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.NewDomainError(domain.ErrInvalidInput, "url must use http or https")
	}
	host := u.Hostname()
	if host == "" {
		return domain.NewDomainError(domain.ErrInvalidInput, "url has no host")
	}
	if f.allowPrivate {
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return domain.NewDomainError(domain.ErrInvalidInput, "url points to a private address")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return domain.NewDomainError(domain.ErrInvalidInput, "url points to a private address")
		}
	}
	return nil
}

// extractArticle runs readability over the page. When it fails the whole
// body is converted instead.
func extractArticle(body []byte, pageURL *url.URL) (string, string) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", string(body)
	}
	var buf bytes.Buffer
	if err := article.RenderHTML(&buf); err != nil || strings.TrimSpace(buf.String()) == "" {
		return article.Title(), string(body)
	}
	return article.Title(), buf.String()
}

func documentTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// cleanMarkdown trims trailing spaces and collapses runs of blank lines.
func cleanMarkdown(md string) string {
	lines := strings.Split(md, "\n")
	result := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank <= 1 {
				result = append(result, "")
			}
			continue
		}
		blank = 0
		result = append(result, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(result, "\n"))
}

// demoteHeadings rewrites level-1 and level-2 headings to level 4 so page
// content never starts a new prompt section.
func demoteHeadings(md string) string {
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "## "):
			lines[i] = "####" + line[2:]
		case strings.HasPrefix(line, "# "):
			lines[i] = "####" + line[1:]
		}
	}
	return strings.Join(lines, "\n")
}
