package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// MentionFetcher fills in body text for mentions submitted with a URL
// but no content. Fetching is strictly best effort: a mention whose page
// cannot be fetched keeps its empty text and flows on through the
// pipeline unchanged.
type MentionFetcher struct {
	collector *colly.Collector
	limiter   chan struct{}
	config    config.FetcherConfig
	logger    *logger.Logger
}

func NewMentionFetcher(cfg config.FetcherConfig, log *logger.Logger) *MentionFetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.Timeout)

	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.MaxConcurrency,
		Delay:       500 * time.Millisecond,
	})

	return &MentionFetcher{
		collector: collector,
		limiter:   make(chan struct{}, cfg.MaxConcurrency),
		config:    cfg,
		logger:    log,
	}
}

// FillMissingText fetches page content for every mention that has a URL
// but no text, with bounded concurrency. The input order is preserved.
func (fetcher *MentionFetcher) FillMissingText(ctx context.Context, mentions []models.Mention) []models.Mention {
	startTime := time.Now()

	filled := make([]models.Mention, len(mentions))
	copy(filled, mentions)

	var wg sync.WaitGroup
	fetched := 0
	var mu sync.Mutex

	for i := range filled {
		if strings.TrimSpace(filled[i].Text) != "" || filled[i].URL == "" {
			continue
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			select {
			case fetcher.limiter <- struct{}{}:
				defer func() { <-fetcher.limiter }()
			case <-ctx.Done():
				return
			}

			title, text, err := fetcher.fetchPage(filled[index].URL)
			if err != nil {
				fetcher.logger.WithError(err).Warn("mention fetch failed, keeping empty text",
					"url", filled[index].URL)
				return
			}

			mu.Lock()
			filled[index].Text = text
			if filled[index].Title == "" {
				filled[index].Title = title
			}
			fetched++
			mu.Unlock()
		}(i)
	}

	wg.Wait()

	fetcher.logger.LogService("fetcher", "fill_missing_text", time.Since(startTime), map[string]interface{}{
		"mentions": len(mentions),
		"fetched":  fetched,
	}, nil)

	return filled
}

func (fetcher *MentionFetcher) fetchPage(targetURL string) (title, text string, err error) {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid URL %q: %w", targetURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	c := fetcher.collector.Clone()
	var fetchErr error

	c.OnHTML("html", func(e *colly.HTMLElement) {
		title = strings.TrimSpace(e.DOM.Find("title").First().Text())
		if og, ok := e.DOM.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
			title = og
		}
		text = extractBodyText(e.DOM)
	})

	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch failed with status %d: %w", status, err)
	})

	if err := c.Visit(targetURL); err != nil {
		return "", "", err
	}
	c.Wait()

	if fetchErr != nil {
		return "", "", fetchErr
	}
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("no extractable content at %q", targetURL)
	}
	return title, text, nil
}

// extractBodyText prefers semantic content containers and falls back to
// collecting paragraphs. Script and style subtrees are ignored.
func extractBodyText(doc *goquery.Selection) string {
	for _, selector := range []string{"article", "main", `div[class*="content"]`, `div[class*="post"]`} {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		if text := collectParagraphs(container); len(text) > 100 {
			return text
		}
	}
	return collectParagraphs(doc)
}

func collectParagraphs(selection *goquery.Selection) string {
	var parts []string
	selection.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); len(text) > 20 {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
