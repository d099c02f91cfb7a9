package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/FacetGrab/internal/browser"
	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/observability"
	"github.com/IshaanNene/FacetGrab/internal/site"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

// Scraper runs one pass over the listing for a metal type.
type Scraper struct {
	session   browser.Session
	paginator *Paginator
	processor *Processor
	baseURL   string
	cfg       config.ScrapeConfig
	runID     string
	metrics   *observability.Metrics
	logger    *slog.Logger
	state     atomic.Int32
}

// NewScraper wires the paginator and processor around one session.
func NewScraper(cfg *config.Config, deps ProcessorDeps, runID string, logger *slog.Logger) *Scraper {
	if deps.Adapter == nil {
		deps.Adapter = site.NewAdapter(cfg.Site)
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetrics(logger)
	}

	return &Scraper{
		session:   deps.Session,
		paginator: NewPaginator(deps.Adapter, cfg.Scrape, logger),
		processor: NewProcessor(deps, cfg.Scrape, runID, logger),
		baseURL:   cfg.Settings.BaseURL,
		cfg:       cfg.Scrape,
		runID:     runID,
		metrics:   deps.Metrics,
		logger:    logger.With("component", "scraper", "run_id", runID),
	}
}

// State returns the current phase of the run.
func (s *Scraper) State() State {
	return State(s.state.Load())
}

func (s *Scraper) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Info("scrape state", "state", st)
}

// Run loads the listing, expands it and processes every product in DOM
// order. Failures of single items are logged and counted. Only a listing
// that cannot be opened, or cancellation of ctx, ends the run with an error.
func (s *Scraper) Run(ctx context.Context, metal string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: s.runID, MetalType: metal}
	defer func() { sum.Elapsed = time.Since(start) }()

	s.setState(StateLoading)
	listing, err := s.session.Open(ctx, s.baseURL)
	if err != nil {
		s.setState(StateDone)
		return sum, fmt.Errorf("load listing: %w", err)
	}
	defer func() {
		if err := listing.Close(); err != nil {
			s.logger.Warn("failed to close listing tab", "error", err)
		}
		s.setState(StateDone)
	}()

	if err := sleep(ctx, s.cfg.InitialRenderWait); err != nil {
		return sum, err
	}

	s.setState(StateExpanding)
	sum.Cycles = s.paginator.Expand(ctx, listing)
	s.metrics.ExpandCycles.Add(int64(sum.Cycles))

	anchors, err := s.paginator.Collect(ctx, listing)
	if err != nil {
		s.logger.Error("could not read list items", "error", err)
	}
	sum.Listed = len(anchors)
	s.metrics.ListingItems.Add(int64(sum.Listed))
	s.logger.Info("listing expanded", "cycles", sum.Cycles, "items", sum.Listed)

	s.setState(StateIterating)
	for i, anchor := range anchors {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("run cancelled", "done", i, "remaining", len(anchors)-i)
			return sum, err
		}
		s.processItem(ctx, listing, i+1, anchor, metal, sum)
	}

	s.logger.Info("scrape complete",
		"listed", sum.Listed,
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"not_found", sum.NotFound,
		"images_saved", sum.ImagesSaved,
		"images_failed", sum.ImagesFailed,
		"bytes", sum.Bytes,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return sum, nil
}

// processItem resolves one list item and processes its product page.
func (s *Scraper) processItem(ctx context.Context, listing browser.Tab, n int, anchor, metal string, sum *Summary) {
	link, err := itemLink(ctx, listing, anchor, s.cfg.ElementTimeout)
	if err != nil {
		sum.Skipped++
		s.metrics.ItemsFailed.Add(1)
		s.logger.Error("error processing product in list", "item", n, "error", err)
		return
	}

	res, err := s.processor.Process(ctx, link, metal)
	sum.ImagesSaved += len(res.Saved)
	sum.ImagesFailed += res.Failed
	sum.Bytes += res.Bytes()

	switch {
	case errors.Is(err, types.ErrPageNotFound):
		sum.NotFound++
		s.metrics.ProductsNotFound.Add(1)
		s.logger.Error("broken link, skipping", "item", n, "url", link)
	case err != nil:
		sum.Skipped++
		s.metrics.ProductsFailed.Add(1)
		s.logger.Error("error processing product page", "item", n, "url", link, "error", err)
	default:
		sum.Processed++
		s.metrics.ProductsProcessed.Add(1)
		s.logger.Info("product done",
			"item", n,
			"name", res.Name,
			"cut", res.Cut,
			"saved", len(res.Saved),
			"failed", res.Failed,
		)
	}
}

// itemLink resolves a list item's product URL.
func itemLink(ctx context.Context, tab browser.Tab, anchor string, timeout time.Duration) (string, error) {
	href, err := tab.Property(ctx, anchor, "href", timeout)
	if err != nil {
		return "", err
	}
	if href == "" {
		return "", &types.ElementError{Selector: anchor, Err: errors.New("empty href")}
	}
	return href, nil
}
