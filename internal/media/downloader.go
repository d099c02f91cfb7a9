// Package media downloads product images to disk.
package media

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/storage"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

// ErrTooLarge is returned when an image body exceeds the configured limit.
var ErrTooLarge = errors.New("image exceeds max body size")

// Downloader fetches images and writes them under a product folder.
// It never retries: a failed image is reported and the caller moves on.
type Downloader struct {
	client     *http.Client
	maxSize    int64
	userAgents []string
	uaIndex    atomic.Int64
	saved      atomic.Int64
	failed     atomic.Int64
	bytes      atomic.Int64
	logger     *slog.Logger
}

// NewDownloader creates a downloader from the fetcher settings.
func NewDownloader(cfg config.FetcherConfig, logger *slog.Logger) *Downloader {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decoded below, including brotli
	}

	return &Downloader{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		maxSize:    cfg.MaxBodySize,
		userAgents: cfg.UserAgents,
		logger:     logger.With("component", "media_downloader"),
	}
}

// Save downloads ref into folder as ImageFilename(product, ref.Type, ref.Index).
// The body is written verbatim whatever its content type. An existing
// file of the same name is replaced.
func (d *Downloader) Save(ctx context.Context, folder, product string, ref types.ImageRef) (*types.ImageRecord, error) {
	rec, err := d.save(ctx, folder, product, ref)
	if err != nil {
		d.failed.Add(1)
		return nil, err
	}
	d.saved.Add(1)
	d.bytes.Add(rec.Size)
	return rec, nil
}

func (d *Downloader) save(ctx context.Context, folder, product string, ref types.ImageRef) (*types.ImageRecord, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return nil, types.ErrEmptyImageURL
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: ref.URL, Err: err}
	}
	req.Header.Set("User-Agent", d.nextUserAgent())
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &types.FetchError{URL: ref.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &types.FetchError{
			URL:        ref.URL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return nil, &types.FetchError{URL: ref.URL, StatusCode: resp.StatusCode, Err: ErrTooLarge}
	}

	body, err := decompressReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, &types.FetchError{URL: ref.URL, StatusCode: resp.StatusCode, Err: err}
	}
	if d.maxSize > 0 {
		body = io.LimitReader(body, d.maxSize+1)
	}

	localPath := filepath.Join(folder, storage.ImageFilename(product, ref.Type, ref.Index))
	size, hash, err := writeFile(localPath, body, d.maxSize)
	if err != nil {
		return nil, &types.FetchError{URL: ref.URL, StatusCode: resp.StatusCode, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isImage(contentType) {
		d.logger.Warn("saved non-image content", "url", ref.URL, "content_type", contentType)
	}

	d.logger.Debug("image saved",
		"url", ref.URL,
		"path", localPath,
		"size", humanSize(size),
		"hash", hash[:16],
		"duration", time.Since(start),
	)

	return &types.ImageRecord{
		Type:        ref.Type,
		Index:       ref.Index,
		SourceURL:   ref.URL,
		LocalPath:   localPath,
		Size:        size,
		SHA256:      hash,
		ContentType: contentType,
		SavedAt:     time.Now().UTC(),
	}, nil
}

// writeFile streams r into a ".part" sibling of path and renames it into
// place once the copy completes, so path only ever holds a whole image.
func writeFile(path string, r io.Reader, maxSize int64) (int64, string, error) {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, "", fmt.Errorf("create file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if err == nil && maxSize > 0 && size > maxSize {
		err = ErrTooLarge
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, "", fmt.Errorf("write file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, "", fmt.Errorf("rename file: %w", err)
	}
	return size, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Stats returns download statistics.
func (d *Downloader) Stats() map[string]int64 {
	return map[string]int64{
		"images_saved":  d.saved.Load(),
		"images_failed": d.failed.Load(),
		"bytes_written": d.bytes.Load(),
	}
}

// Close releases idle connections.
func (d *Downloader) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *Downloader) nextUserAgent() string {
	if len(d.userAgents) == 0 {
		return "FacetGrab/" + config.Version
	}
	idx := d.uaIndex.Add(1) % int64(len(d.userAgents))
	return d.userAgents[idx]
}

// decompressReader wraps r according to the Content-Encoding header.
func decompressReader(encoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(r)
	case "deflate":
		return flate.NewReader(r), nil
	case "br":
		return brotli.NewReader(r), nil
	default:
		return r, nil
	}
}

func isImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
