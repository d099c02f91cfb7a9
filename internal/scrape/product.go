package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/FacetGrab/internal/browser"
	"github.com/IshaanNene/FacetGrab/internal/catalog"
	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/observability"
	"github.com/IshaanNene/FacetGrab/internal/site"
	"github.com/IshaanNene/FacetGrab/internal/storage"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

// ImageSaver fetches one image into a product folder.
type ImageSaver interface {
	Save(ctx context.Context, folder, product string, ref types.ImageRef) (*types.ImageRecord, error)
}

// ProductResult describes one processed detail page.
type ProductResult struct {
	URL    string
	Name   string
	Cut    catalog.Cut
	Folder string
	Saved  []*types.ImageRecord
	Failed int
}

// Bytes is the total size of the saved images.
func (r *ProductResult) Bytes() int64 {
	var n int64
	for _, rec := range r.Saved {
		n += rec.Size
	}
	return n
}

// Processor handles a single product detail page.
type Processor struct {
	session browser.Session
	adapter *site.Adapter
	layout  *storage.Layout
	images  ImageSaver
	store   storage.Storage
	metrics *observability.Metrics
	cfg     config.ScrapeConfig
	runID   string
	logger  *slog.Logger
}

// ProcessorDeps are the collaborators a Processor needs. Store and
// Metrics may be nil.
type ProcessorDeps struct {
	Session browser.Session
	Adapter *site.Adapter
	Layout  *storage.Layout
	Images  ImageSaver
	Store   storage.Storage
	Metrics *observability.Metrics
}

// NewProcessor creates a product page processor.
func NewProcessor(deps ProcessorDeps, cfg config.ScrapeConfig, runID string, logger *slog.Logger) *Processor {
	p := &Processor{
		session: deps.Session,
		adapter: deps.Adapter,
		layout:  deps.Layout,
		images:  deps.Images,
		store:   deps.Store,
		metrics: deps.Metrics,
		cfg:     cfg,
		runID:   runID,
		logger:  logger.With("component", "processor"),
	}
	if p.store == nil {
		p.store = storage.NopStorage{}
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics(logger)
	}
	return p
}

// Process opens link in its own tab, classifies the product and saves
// both galleries under the metal/cut/product folder. The tab is closed
// before Process returns. The result is never nil; on error it holds
// whatever was saved before the failure.
func (p *Processor) Process(ctx context.Context, link, metal string) (*ProductResult, error) {
	res := &ProductResult{URL: link}

	tab, err := p.session.Open(ctx, link)
	if err != nil {
		return res, fmt.Errorf("open product: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			p.logger.Warn("failed to close product tab", "url", link, "error", err)
		}
	}()

	sel := p.adapter.Selectors
	timeout := p.cfg.ElementTimeout

	waitErr := tab.WaitPresent(ctx, sel.Details, timeout)
	snapshot, err := tab.HTML(ctx)
	if err != nil {
		return res, fmt.Errorf("read product page: %w", err)
	}
	if site.IsNotFound(snapshot) {
		return res, fmt.Errorf("%s: %w", link, types.ErrPageNotFound)
	}
	if waitErr != nil {
		return res, fmt.Errorf("details section: %w", waitErr)
	}

	heading, err := p.adapter.Heading(snapshot)
	if err != nil {
		return res, fmt.Errorf("product heading: %w", err)
	}
	res.Name = catalog.ProductName(heading)
	if res.Name == "" {
		return res, types.ErrNoProductName
	}
	res.Cut = catalog.Classify(res.Name)

	p.logger.Debug("processing product", "name", res.Name, "cut", res.Cut, "metal", metal, "url", link)

	for _, xp := range []string{sel.ThumbnailContainer, sel.MainContainer} {
		if err := tab.WaitPresent(ctx, xp, timeout); err != nil {
			return res, fmt.Errorf("gallery: %w", err)
		}
	}

	snapshot, err = tab.HTML(ctx)
	if err != nil {
		return res, fmt.Errorf("read product page: %w", err)
	}
	pageURL, err := tab.URL(ctx)
	if err != nil || pageURL == "" {
		pageURL = link
	}
	page, err := p.adapter.ParseProduct(pageURL, snapshot)
	if err != nil {
		return res, err
	}

	res.Folder, err = p.layout.Folder(metal, string(res.Cut), res.Name)
	if err != nil {
		return res, err
	}

	err = p.download(ctx, res, metal, page.Refs())

	if len(res.Saved) > 0 {
		if serr := p.store.Store(ctx, res.Saved); serr != nil {
			p.metrics.StoreErrors.Add(1)
			p.logger.Error("failed to record images", "product", res.Name, "backend", p.store.Name(), "error", serr)
		} else {
			p.metrics.RecordsStored.Add(int64(len(res.Saved)))
		}
	}

	return res, err
}

// download saves every ref in order with a courtesy pause after each
// attempt. A failed image is logged and the loop moves on.
func (p *Processor) download(ctx context.Context, res *ProductResult, metal string, refs []types.ImageRef) error {
	for _, ref := range refs {
		rec, err := p.images.Save(ctx, res.Folder, res.Name, ref)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failed++
			p.metrics.ImagesFailed.Add(1)
			p.logger.Error("image download failed",
				"product", res.Name,
				"type", ref.Type,
				"index", ref.Index,
				"url", ref.URL,
				"error", err,
			)
		} else {
			rec.RunID = p.runID
			rec.MetalType = metal
			rec.Cut = string(res.Cut)
			rec.Product = res.Name
			rec.ProductURL = res.URL
			res.Saved = append(res.Saved, rec)
			p.metrics.ImagesSaved.Add(1)
			p.metrics.BytesDownloaded.Add(rec.Size)
			p.logger.Info("image saved", "file", storage.ImageFilename(res.Name, ref.Type, ref.Index))
		}

		if err := sleep(ctx, p.cfg.CourtesyDelay); err != nil {
			return err
		}
	}
	return nil
}
