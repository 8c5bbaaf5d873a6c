package research

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/cryptopilot/internal/logger"
)

const (
	defaultMaxBytes = 2 << 20
	defaultMaxChars = 4000
)

var (
	reSpaces   = re2.MustCompile(`[ \t]+`)
	reNewlines = re2.MustCompile(`\n{3,}`)
)

// Article is a fetched page reduced to markdown.
type Article struct {
	URL      string
	Title    string
	Markdown string
}

// ArticleReader fetches news pages and extracts their main content as
// markdown, used as context for post generation.
type ArticleReader struct {
	http     *http.Client
	maxBytes int64
	maxChars int
	logger   *logger.Logger
}

// NewArticleReader creates a reader. Zero limits use defaults.
func NewArticleReader(timeout time.Duration, maxChars int, log *logger.Logger) *ArticleReader {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if maxChars <= 0 {
		maxChars = defaultMaxChars
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ArticleReader{
		http:     &http.Client{Timeout: timeout},
		maxBytes: defaultMaxBytes,
		maxChars: maxChars,
		logger:   log.Component("article_reader"),
	}
}

// Read downloads url and converts its main content to markdown.
func (r *ArticleReader) Read(ctx context.Context, url string) (*Article, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported url %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "cryptopilot/1.0 (+article-reader)")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	article, err := r.extract(body)
	if err != nil {
		return nil, err
	}
	article.URL = url
	r.logger.Debug("article read",
		logger.Field{Key: "url", Value: url},
		logger.Field{Key: "chars", Value: len(article.Markdown)})
	return article, nil
}

func (r *ArticleReader) extract(body []byte) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("meta[property='og:title']").AttrOr("content", ""))
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find("script, style, nav, footer, aside, header, form, iframe, noscript").Remove()

	main := doc.Find("article").First()
	if main.Length() == 0 {
		main = doc.Find("main").First()
	}
	if main.Length() == 0 {
		main = doc.Find("body").First()
	}
	html, err := goquery.OuterHtml(main)
	if err != nil {
		return nil, fmt.Errorf("failed to render content: %w", err)
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:    "atx",
		CodeBlockStyle:  "fenced",
		EmDelimiter:     "*",
		StrongDelimiter: "**",
	})
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("failed to convert html: %w", err)
	}

	markdown = reSpaces.ReplaceAllString(markdown, " ")
	markdown = reNewlines.ReplaceAllString(markdown, "\n\n")
	markdown = strings.TrimSpace(markdown)
	if runes := []rune(markdown); len(runes) > r.maxChars {
		markdown = string(runes[:r.maxChars]) + "..."
	}

	return &Article{Title: title, Markdown: markdown}, nil
}
