package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/FacetGrab/internal/catalog"
	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/media"
	"github.com/IshaanNene/FacetGrab/internal/observability"
	"github.com/IshaanNene/FacetGrab/internal/site"
	"github.com/IshaanNene/FacetGrab/internal/storage"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

const metal = "18k Yellow Gold"

// newImageServer serves "/img/<name>" as "bytes:<name>" and fails
// everything under "/fail/".
func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/img/"):
			w.Header().Set("Content-Type", "image/jpeg")
			fmt.Fprintf(w, "bytes:%s", strings.TrimPrefix(r.URL.Path, "/img/"))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func productHTML(title, heading string, thumbs, mains []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", title)
	fmt.Fprintf(&b, "<section class='details svelte-gwj5u7'><h1 class='svelte-gwj5u7'>%s</h1></section>", heading)
	b.WriteString("<div class='thumbs svelte-1ysrele'>")
	for _, src := range thumbs {
		fmt.Fprintf(&b, `<div class="thumb"><img src="%s"></div>`, src)
	}
	b.WriteString("</div><div class='scroll-content svelte-rexg8n'>")
	for _, src := range mains {
		fmt.Fprintf(&b, `<img src="%s">`, src)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

type recordingStore struct {
	mu      sync.Mutex
	records []*types.ImageRecord
}

func (s *recordingStore) Name() string { return "recording" }

func (s *recordingStore) Store(_ context.Context, r []*types.ImageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r...)
	return nil
}

func (s *recordingStore) Close() error { return nil }

type processorFixture struct {
	root    string
	session *fakeSession
	store   *recordingStore
	metrics *observability.Metrics
	proc    *Processor
	images  *httptest.Server
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	f := &processorFixture{
		root:    t.TempDir(),
		session: newFakeSession(),
		store:   &recordingStore{},
		metrics: observability.NewMetrics(testLogger),
		images:  newImageServer(t),
	}
	f.proc = NewProcessor(ProcessorDeps{
		Session: f.session,
		Adapter: site.NewAdapter(config.DefaultConfig().Site),
		Layout:  storage.NewLayout(f.root),
		Images:  media.NewDownloader(config.DefaultConfig().Fetcher, testLogger),
		Store:   f.store,
		Metrics: f.metrics,
	}, fastScrape(), "run-test", testLogger)
	return f
}

func (f *processorFixture) img(name string) string  { return f.images.URL + "/img/" + name }
func (f *processorFixture) fail(name string) string { return f.images.URL + "/fail/" + name }

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestProcessSavesBothGalleries(t *testing.T) {
	f := newProcessorFixture(t)
	link := "https://shop.example.com/p/evelyn"
	f.session.pages[link] = productHTML("Evelyn", "Evelyn-Oval Engagement Ring",
		[]string{f.img("t1"), f.img("t2"), f.img("t3")},
		[]string{f.img("m1"), f.img("m2")},
	)

	res, err := f.proc.Process(context.Background(), link, metal)
	require.NoError(t, err)

	assert.Equal(t, "Evelyn-Oval", res.Name)
	assert.Equal(t, catalog.Cut("Oval"), res.Cut)
	assert.Equal(t, filepath.Join(f.root, metal, "Oval", "Evelyn-Oval"), res.Folder)
	assert.Len(t, res.Saved, 5)
	assert.Zero(t, res.Failed)

	assert.Equal(t, []string{
		"Evelyn-Oval_img_1.jpg",
		"Evelyn-Oval_img_2.jpg",
		"Evelyn-Oval_thumbnail_1.jpg",
		"Evelyn-Oval_thumbnail_2.jpg",
		"Evelyn-Oval_thumbnail_3.jpg",
	}, listFiles(t, res.Folder))

	data, err := os.ReadFile(filepath.Join(res.Folder, "Evelyn-Oval_thumbnail_2.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "bytes:t2", string(data))

	require.Len(t, f.store.records, 5)
	first := f.store.records[0]
	assert.Equal(t, "run-test", first.RunID)
	assert.Equal(t, metal, first.MetalType)
	assert.Equal(t, "Oval", first.Cut)
	assert.Equal(t, "Evelyn-Oval", first.Product)
	assert.Equal(t, link, first.ProductURL)
	assert.Equal(t, types.ImageThumbnail, first.Type)
	assert.Equal(t, types.ImageMain, f.store.records[4].Type)

	assert.Equal(t, int64(5), f.metrics.ImagesSaved.Load())
	assert.Equal(t, int64(5), f.metrics.RecordsStored.Load())
	assert.Equal(t, 0, f.session.openTabs(), "product tab is closed")
}

func TestProcessNotFoundWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"Not found text", "<html><head><title>Jeweler</title></head><body>" +
			"<section class='details svelte-gwj5u7'><h1 class='svelte-gwj5u7'>Oops</h1>Page Not Found</section></body></html>"},
		{"404 title without details", "<html><head><title>404 | Jeweler</title></head><body>Gone</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProcessorFixture(t)
			link := "https://shop.example.com/p/gone"
			f.session.pages[link] = tt.body

			_, err := f.proc.Process(context.Background(), link, metal)
			assert.ErrorIs(t, err, types.ErrPageNotFound)

			assert.Empty(t, listFiles(t, f.root))
			assert.Empty(t, f.store.records)
			assert.Equal(t, 0, f.session.openTabs())
		})
	}
}

func TestProcessImageFailureDoesNotStopSiblings(t *testing.T) {
	f := newProcessorFixture(t)
	link := "https://shop.example.com/p/aurora"
	f.session.pages[link] = productHTML("Aurora", "PearAurora Halo",
		[]string{f.img("t1"), f.fail("t2"), f.img("t3")},
		[]string{f.fail("m1"), f.img("m2")},
	)

	res, err := f.proc.Process(context.Background(), link, metal)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Failed)
	assert.Len(t, res.Saved, 3)
	assert.Equal(t, []string{
		"PearAurora_img_2.jpg",
		"PearAurora_thumbnail_1.jpg",
		"PearAurora_thumbnail_3.jpg",
	}, listFiles(t, filepath.Join(f.root, metal, "Pear", "PearAurora")))
	assert.Equal(t, int64(2), f.metrics.ImagesFailed.Load())
}

func TestProcessRerunOverwritesIdentically(t *testing.T) {
	f := newProcessorFixture(t)
	link := "https://shop.example.com/p/evelyn"
	f.session.pages[link] = productHTML("Evelyn", "Evelyn Oval", []string{f.img("t1")}, []string{f.img("m1")})

	first, err := f.proc.Process(context.Background(), link, metal)
	require.NoError(t, err)
	second, err := f.proc.Process(context.Background(), link, metal)
	require.NoError(t, err)

	require.Len(t, second.Saved, len(first.Saved))
	for i := range first.Saved {
		assert.Equal(t, first.Saved[i].LocalPath, second.Saved[i].LocalPath)
		assert.Equal(t, first.Saved[i].SHA256, second.Saved[i].SHA256)
	}
	assert.Len(t, listFiles(t, first.Folder), 2)
}

func TestProcessUnclassifiedCut(t *testing.T) {
	f := newProcessorFixture(t)
	link := "https://shop.example.com/p/bezel"
	f.session.pages[link] = productHTML("Bezel", "Bezel Solitaire", []string{f.img("t1")}, nil)

	res, err := f.proc.Process(context.Background(), link, metal)
	require.NoError(t, err)

	assert.Equal(t, catalog.Unclassified, res.Cut)
	assert.Equal(t, filepath.Join(f.root, metal, "N_A", "Bezel"), res.Folder)
	assert.Equal(t, "N/A", f.store.records[0].Cut)
}

func TestProcessFirstCutWins(t *testing.T) {
	f := newProcessorFixture(t)
	link := "https://shop.example.com/p/x"
	f.session.pages[link] = productHTML("X", "ElongatedCushion Ring", []string{f.img("t1")}, nil)

	res, err := f.proc.Process(context.Background(), link, metal)
	require.NoError(t, err)
	assert.Equal(t, catalog.Cut("Cushion"), res.Cut)
}

func TestProcessAbortsBeforeDownloads(t *testing.T) {
	f := newProcessorFixture(t)

	noDetails := "<html><head><title>Evelyn</title></head><body><h1>Evelyn</h1></body></html>"
	noGallery := "<html><head><title>Evelyn</title></head><body>" +
		"<section class='details svelte-gwj5u7'><h1 class='svelte-gwj5u7'>Evelyn Oval</h1></section>" +
		"<div class='thumbs svelte-1ysrele'></div></body></html>"
	blankHeading := productHTML("Blank", "   ", []string{f.img("t1")}, nil)

	tests := []struct {
		name   string
		body   string
		target error
	}{
		{"No details section", noDetails, types.ErrElementTimeout},
		{"No main gallery", noGallery, types.ErrElementTimeout},
		{"Blank heading", blankHeading, types.ErrNoProductName},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := fmt.Sprintf("https://shop.example.com/p/%d", i)
			f.session.pages[link] = tt.body

			_, err := f.proc.Process(context.Background(), link, metal)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, 0, f.session.openTabs())
		})
	}

	assert.Empty(t, listFiles(t, f.root))
}

func TestProcessOpenFailure(t *testing.T) {
	f := newProcessorFixture(t)

	res, err := f.proc.Process(context.Background(), "https://shop.example.com/p/unknown", metal)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Saved)
	assert.Equal(t, 0, f.session.openTabs())
}

func TestProcessCancelledDuringDownloads(t *testing.T) {
	f := newProcessorFixture(t)
	link := "https://shop.example.com/p/evelyn"
	f.session.pages[link] = productHTML("Evelyn", "Evelyn Oval", []string{f.img("t1"), f.img("t2")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	f.proc.images = cancelAfterFirst{next: f.proc.images, cancel: cancel}

	res, err := f.proc.Process(ctx, link, metal)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Saved, 1, "images already saved stay on disk")
	assert.Equal(t, 0, f.session.openTabs())
}

type cancelAfterFirst struct {
	next   ImageSaver
	cancel context.CancelFunc
}

func (c cancelAfterFirst) Save(ctx context.Context, folder, product string, ref types.ImageRef) (*types.ImageRecord, error) {
	rec, err := c.next.Save(ctx, folder, product, ref)
	c.cancel()
	return rec, err
}
