package tools

import (
	"context"
	"strings"

	"github.com/gocolly/colly/v2"
)

const defaultLinkLimit = 20

type ScrapeLinksInput struct {
	URL   string `json:"url" validate:"required,http_url" jsonschema_description:"Absolute http(s) URL of the page to scan"`
	Limit int    `json:"limit,omitempty" validate:"gte=0,lte=200" jsonschema_description:"Maximum number of links to return, default 20"`
}

type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// ScrapeLinks visits a single page and returns its distinct absolute links in
// document order. The request is cancelled with ctx.
func (w *Web) ScrapeLinks(ctx context.Context, input ScrapeLinksInput) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := input.Limit
	if limit == 0 {
		limit = defaultLinkLimit
	}

	c := colly.NewCollector(colly.MaxDepth(1), colly.StdlibContext(ctx))
	if w.Client != nil && w.Client.Transport != nil {
		c.WithTransport(w.Client.Transport)
	}

	var links []Link
	seen := make(map[string]bool)
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(links) >= limit {
			return
		}
		href := e.Request.AbsoluteURL(e.Attr("href"))
		if href == "" || seen[href] || !strings.HasPrefix(href, "http") {
			return
		}
		seen[href] = true
		links = append(links, Link{
			Text: strings.Join(strings.Fields(e.Text), " "),
			URL:  href,
		})
	})

	var visitErr error
	c.OnError(func(r *colly.Response, err error) {
		visitErr = err
	})

	if err := c.Visit(input.URL); err != nil {
		return nil, err
	}
	if visitErr != nil {
		return nil, visitErr
	}
	return links, nil
}
