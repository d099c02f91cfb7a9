package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks counters for a scrape run.
type Metrics struct {
	// Listing metrics
	ListingItems atomic.Int64
	ExpandCycles atomic.Int64
	ItemsFailed  atomic.Int64

	// Product metrics
	ProductsProcessed atomic.Int64
	ProductsNotFound  atomic.Int64
	ProductsFailed    atomic.Int64

	// Image metrics
	ImagesSaved     atomic.Int64
	ImagesFailed    atomic.Int64
	BytesDownloaded atomic.Int64

	// Manifest metrics
	RecordsStored atomic.Int64
	StoreErrors   atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		value int64
	}{
		{"facetgrab_listing_items_total", "List items found after expansion", m.ListingItems.Load()},
		{"facetgrab_expand_cycles_total", "Load-more and scroll cycles run", m.ExpandCycles.Load()},
		{"facetgrab_items_failed_total", "List items whose link could not be resolved", m.ItemsFailed.Load()},
		{"facetgrab_products_processed_total", "Product pages fully processed", m.ProductsProcessed.Load()},
		{"facetgrab_products_not_found_total", "Product pages detected as not found", m.ProductsNotFound.Load()},
		{"facetgrab_products_failed_total", "Product pages abandoned on error", m.ProductsFailed.Load()},
		{"facetgrab_images_saved_total", "Images written to disk", m.ImagesSaved.Load()},
		{"facetgrab_images_failed_total", "Images that could not be fetched or written", m.ImagesFailed.Load()},
		{"facetgrab_bytes_downloaded_total", "Image bytes written to disk", m.BytesDownloaded.Load()},
		{"facetgrab_records_stored_total", "Manifest records stored", m.RecordsStored.Load()},
		{"facetgrab_store_errors_total", "Manifest store failures", m.StoreErrors.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s counter\n", metric.name)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer binds the metrics endpoint and serves it in the background.
// The caller shuts the returned server down.
func (m *Metrics) StartServer(port int, path string) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	m.logger.Info("metrics server starting", "addr", ln.Addr().String(), "path", path)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv, nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"listing_items":      m.ListingItems.Load(),
		"expand_cycles":      m.ExpandCycles.Load(),
		"items_failed":       m.ItemsFailed.Load(),
		"products_processed": m.ProductsProcessed.Load(),
		"products_not_found": m.ProductsNotFound.Load(),
		"products_failed":    m.ProductsFailed.Load(),
		"images_saved":       m.ImagesSaved.Load(),
		"images_failed":      m.ImagesFailed.Load(),
		"bytes_downloaded":   m.BytesDownloaded.Load(),
		"records_stored":     m.RecordsStored.Load(),
		"store_errors":       m.StoreErrors.Load(),
	}
}
