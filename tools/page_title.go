package tools

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type PageTitleInput struct {
	URL string `json:"url" validate:"required,http_url" jsonschema_description:"Absolute http(s) URL of the page"`
}

// PageSummary holds the headline information of an HTML page.
type PageSummary struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Headings    []string `json:"headings,omitempty"`
}

// Web fetches pages over HTTP.
type Web struct {
	Client *http.Client
}

func (w *Web) client() *http.Client {
	if w.Client != nil {
		return w.Client
	}
	return http.DefaultClient
}

// PageTitle fetches a page and extracts its title, meta description and h1 headings.
func (w *Web) PageTitle(ctx context.Context, input PageTitleInput) (PageSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return PageSummary{}, err
	}
	resp, err := w.client().Do(req)
	if err != nil {
		return PageSummary{}, fmt.Errorf("fetch %s: %w", input.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PageSummary{}, fmt.Errorf("fetch %s: status %d %s", input.URL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return PageSummary{}, fmt.Errorf("parse %s: %w", input.URL, err)
	}

	summary := PageSummary{
		Title: strings.TrimSpace(doc.Find("head title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		summary.Description = strings.TrimSpace(desc)
	}
	doc.Find("h1").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			summary.Headings = append(summary.Headings, text)
		}
	})
	return summary, nil
}
