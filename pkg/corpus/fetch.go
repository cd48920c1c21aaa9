package corpus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/go-shiori/go-readability"
)

// maxBodySize bounds how much HTML is read from an untrusted URL.
const maxBodySize = 10 * 1024 * 1024

// Article is the readable part of a fetched web page.
type Article struct {
	URL      string
	Title    string
	Byline   string
	SiteName string
	Text     string
}

// Fetcher downloads pages for corpus import.
type Fetcher struct {
	Client *http.Client
}

// NewFetcher returns a Fetcher with a 30 second timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{Client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads rawURL and extracts its article text with readability.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Article, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// Some sites block requests without browser-like headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,de;q=0.8")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if resp.ContentLength > maxBodySize {
		return nil, fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) >= maxBodySize {
		return nil, fmt.Errorf("response body exceeded maximum size limit of %d bytes", maxBodySize)
	}

	article, err := readability.FromReader(bytes.NewReader(SanitizeRuby(body)), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}
	return &Article{
		URL:      rawURL,
		Title:    article.Title,
		Byline:   article.Byline,
		SiteName: article.SiteName,
		Text:     article.TextContent,
	}, nil
}

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby annotations (<rt>, <rp>) from HTML so readability
// does not duplicate furigana into the extracted text.
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	return reRP.ReplaceAll(cleaned, []byte{})
}
