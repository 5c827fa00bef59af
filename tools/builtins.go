// Package tools holds the capabilities the harness registers by default.
package tools

import (
	"net/http"
	"time"

	"github.com/victorstack-ai/codex-agent-harness/core"
)

type Options struct {
	WorkspaceRoot string
	HTTPClient    *http.Client
	Clock         func() time.Time
}

// RegisterBuiltins registers list_files, get_current_time, page_title and scrape_links on r.
func RegisterBuiltins(r *core.Registry, opts Options) error {
	root := opts.WorkspaceRoot
	if root == "" {
		root = "."
	}
	files := NewFiles(root)
	web := &Web{Client: opts.HTTPClient}
	clock := Clock(opts.Clock)

	if err := core.RegisterFunc(r, "list_files", "List the files of a workspace directory, optionally filtered by a glob pattern.", files.ListFiles); err != nil {
		return err
	}
	if err := core.RegisterFunc(r, "get_current_time", "Get the current time in a given time zone and format.", clock.GetCurrentTime); err != nil {
		return err
	}
	if err := core.RegisterFunc(r, "page_title", "Fetch a web page and return its title, description and main headings.", web.PageTitle); err != nil {
		return err
	}
	return core.RegisterFunc(r, "scrape_links", "Fetch a web page and return the links it contains.", web.ScrapeLinks)
}
