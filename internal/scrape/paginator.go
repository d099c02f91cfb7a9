package scrape

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/FacetGrab/internal/browser"
	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/site"
)

// Paginator loads every entry of an infinite listing into the DOM.
type Paginator struct {
	adapter *site.Adapter
	cfg     config.ScrapeConfig
	logger  *slog.Logger
}

// NewPaginator creates a paginator using the adapter's selectors.
func NewPaginator(adapter *site.Adapter, cfg config.ScrapeConfig, logger *slog.Logger) *Paginator {
	return &Paginator{
		adapter: adapter,
		cfg:     cfg,
		logger:  logger.With("component", "paginator"),
	}
}

// Expand alternates load-more clicks and scrolls until the document
// height stops changing and returns the number of cycles run. It never
// fails: on any scroll or measure error it stops with whatever is loaded.
func (p *Paginator) Expand(ctx context.Context, tab browser.Tab) int {
	last, err := tab.ScrollHeight(ctx)
	if err != nil {
		p.logger.Error("could not measure listing", "error", err)
		return 0
	}

	loadMore := true
	cycles := 0
	for {
		if p.cfg.MaxScrolls > 0 && cycles >= p.cfg.MaxScrolls {
			p.logger.Warn("expansion stopped at max_scrolls", "cycles", cycles, "height", last)
			return cycles
		}
		if ctx.Err() != nil {
			return cycles
		}

		if loadMore {
			if err := tab.Click(ctx, p.adapter.Selectors.LoadMore, p.cfg.LoadMoreTimeout); err != nil {
				// The control disappears once every entry is listed.
				p.logger.Warn("no load-more control, scrolling only", "error", err)
				loadMore = false
			} else if err := sleep(ctx, p.cfg.LoadMoreSettle); err != nil {
				return cycles
			}
		}

		if err := tab.ScrollToBottom(ctx); err != nil {
			p.logger.Error("scroll failed, keeping what is loaded", "error", err)
			return cycles
		}
		cycles++

		if err := sleep(ctx, p.cfg.ScrollWait); err != nil {
			return cycles
		}

		height, err := tab.ScrollHeight(ctx)
		if err != nil {
			p.logger.Error("could not measure listing, keeping what is loaded", "error", err)
			return cycles
		}
		p.logger.Debug("listing expanded", "cycle", cycles, "height", height)

		if height == last {
			return cycles
		}
		last = height
	}
}

// Collect returns one anchor locator per list item in DOM order.
func (p *Paginator) Collect(ctx context.Context, tab browser.Tab) ([]string, error) {
	n, err := tab.Count(ctx, p.adapter.Selectors.ListItems)
	if err != nil {
		return nil, fmt.Errorf("count list items: %w", err)
	}

	anchors := make([]string, n)
	for i := range anchors {
		anchors[i] = p.adapter.ItemAnchor(i + 1)
	}
	return anchors, nil
}
