package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/FacetGrab/internal/browser"
	"github.com/IshaanNene/FacetGrab/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeSession serves fixture pages keyed by URL.
type fakeSession struct {
	mu        sync.Mutex
	pages     map[string]string
	openErr   map[string]error
	opened    []string
	active    int
	maxActive int
	tabs      []*fakeTab

	// listing customizes the tab returned for the listing URL.
	listing func(*fakeTab)
}

var _ browser.Session = (*fakeSession)(nil)

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:   make(map[string]string),
		openErr: make(map[string]error),
	}
}

func (s *fakeSession) Open(_ context.Context, u string) (browser.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opened = append(s.opened, u)
	if err := s.openErr[u]; err != nil {
		return nil, err
	}
	body, ok := s.pages[u]
	if !ok {
		return nil, fmt.Errorf("navigate %s: net::ERR_NAME_NOT_RESOLVED", u)
	}

	t := &fakeTab{url: u, html: body, session: s}
	if s.listing != nil && len(s.tabs) == 0 {
		s.listing(t)
	}
	s.tabs = append(s.tabs, t)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	return t, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) openTabs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// fakeTab answers XPath queries against a static HTML snapshot.
type fakeTab struct {
	url     string
	html    string
	session *fakeSession
	closed  bool

	heights    []int
	heightIdx  int
	measureErr error
	scrollErr  error
	scrolls    int

	attempts int
	clicks   map[string]int
	onClick  func(t *fakeTab, xpath string) error
}

var _ browser.Tab = (*fakeTab)(nil)

func (t *fakeTab) doc() (*html.Node, error) {
	return htmlquery.Parse(strings.NewReader(t.html))
}

func (t *fakeTab) find(xpath string) (*html.Node, error) {
	doc, err := t.doc()
	if err != nil {
		return nil, err
	}
	node, err := htmlquery.Query(doc, xpath)
	if err != nil {
		return nil, &types.ElementError{Selector: xpath, Err: err}
	}
	if node == nil {
		return nil, &types.ElementError{Selector: xpath, Err: types.ErrElementTimeout}
	}
	return node, nil
}

func (t *fakeTab) URL(context.Context) (string, error)  { return t.url, nil }
func (t *fakeTab) HTML(context.Context) (string, error) { return t.html, nil }

func (t *fakeTab) ScrollHeight(context.Context) (int, error) {
	if t.measureErr != nil && t.heightIdx > 0 {
		return 0, t.measureErr
	}
	if len(t.heights) == 0 {
		return 1000, nil
	}
	i := t.heightIdx
	if i >= len(t.heights) {
		i = len(t.heights) - 1
	}
	t.heightIdx++
	return t.heights[i], nil
}

func (t *fakeTab) ScrollToBottom(context.Context) error {
	if t.scrollErr != nil {
		return t.scrollErr
	}
	t.scrolls++
	return nil
}

func (t *fakeTab) WaitPresent(ctx context.Context, xpath string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.find(xpath)
	return err
}

func (t *fakeTab) Click(ctx context.Context, xpath string, _ time.Duration) error {
	t.attempts++
	if _, err := t.find(xpath); err != nil {
		return err
	}
	if t.clicks == nil {
		t.clicks = make(map[string]int)
	}
	t.clicks[xpath]++
	if t.onClick != nil {
		return t.onClick(t, xpath)
	}
	return nil
}

func (t *fakeTab) Count(_ context.Context, xpath string) (int, error) {
	doc, err := t.doc()
	if err != nil {
		return 0, err
	}
	nodes, err := htmlquery.QueryAll(doc, xpath)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (t *fakeTab) Property(_ context.Context, xpath, name string, _ time.Duration) (string, error) {
	node, err := t.find(xpath)
	if err != nil {
		return "", err
	}
	v := htmlquery.SelectAttr(node, name)
	if name == "href" && v != "" {
		base, _ := url.Parse(t.url)
		ref, err := url.Parse(v)
		if err == nil {
			v = base.ResolveReference(ref).String()
		}
	}
	return v, nil
}

func (t *fakeTab) Close() error {
	t.session.mu.Lock()
	defer t.session.mu.Unlock()
	if t.closed {
		return errors.New("tab already closed")
	}
	t.closed = true
	t.session.active--
	return nil
}
