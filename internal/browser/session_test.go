package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const listingHTML = `<!DOCTYPE html>
<html><head><title>Rings</title></head>
<body style="margin:0">
<ul class="root Thumbs">
  <li><a href="/p/evelyn">Evelyn</a></li>
  <li><a href="/p/aurora">Aurora</a></li>
</ul>
<button class="more" onclick="
  var li = document.createElement('li');
  li.innerHTML = '<a href=&quot;/p/luna&quot;>Luna</a>';
  document.querySelector('ul').appendChild(li);
  document.body.style.height = '5000px';
">Load more</button>
<div id="hidden" style="display:none">x</div>
</body></html>`

func newSession(t *testing.T) *RodSession {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	cfg := config.DefaultConfig().Browser
	if !Available(cfg.Bin) {
		t.Skip("no Chromium binary found")
	}
	cfg.Stealth = false

	s, err := NewRodSession(cfg, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRodSessionListing(t *testing.T) {
	s := newSession(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, listingHTML)
	}))
	defer srv.Close()

	ctx := context.Background()
	tab, err := s.Open(ctx, srv.URL+"/rings")
	require.NoError(t, err)
	defer tab.Close()

	u, err := tab.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/rings", u)

	n, err := tab.Count(ctx, `//ul[contains(@class, "Thumbs")]//li`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	href, err := tab.Property(ctx, `(//ul[contains(@class, "Thumbs")]//li)[2]//a`, "href", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/p/aurora", href)

	before, err := tab.ScrollHeight(ctx)
	require.NoError(t, err)

	require.NoError(t, tab.Click(ctx, `//button[@class="more"]`, 5*time.Second))
	require.NoError(t, tab.ScrollToBottom(ctx))

	after, err := tab.ScrollHeight(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)

	n, err = tab.Count(ctx, `//ul[contains(@class, "Thumbs")]//li`)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	html, err := tab.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "Luna")
}

func TestRodSessionTimeouts(t *testing.T) {
	s := newSession(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingHTML)
	}))
	defer srv.Close()

	ctx := context.Background()
	tab, err := s.Open(ctx, srv.URL)
	require.NoError(t, err)

	err = tab.WaitPresent(ctx, `//section[@class="details"]`, 300*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrElementTimeout)

	var ee *types.ElementError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, `//section[@class="details"]`, ee.Selector)

	err = tab.Click(ctx, `//div[@id="hidden"]`, 300*time.Millisecond)
	assert.ErrorIs(t, err, types.ErrElementTimeout, "an invisible element is never clickable")

	require.NoError(t, tab.Close())
	require.NoError(t, tab.Close())
}

func TestRodSessionCloseIsIdempotent(t *testing.T) {
	s := newSession(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, listingHTML)
	}))
	defer srv.Close()

	_, err := s.Open(context.Background(), srv.URL)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Open(context.Background(), srv.URL)
	assert.Error(t, err)
}
