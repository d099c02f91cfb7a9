package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/FacetGrab/internal/types"
)

// rodTab adapts a rod page to Tab.
type rodTab struct {
	page    *rod.Page
	session *RodSession
	once    sync.Once
}

func (t *rodTab) URL(ctx context.Context) (string, error) {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}

func (t *rodTab) HTML(ctx context.Context) (string, error) {
	html, err := t.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

func (t *rodTab) ScrollHeight(ctx context.Context) (int, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("measure height: %w", err)
	}
	return res.Value.Int(), nil
}

func (t *rodTab) ScrollToBottom(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (t *rodTab) WaitPresent(ctx context.Context, xpath string, timeout time.Duration) error {
	p, cancel := t.bounded(ctx, timeout)
	defer cancel()

	if _, err := p.ElementX(xpath); err != nil {
		return elementErr(ctx, xpath, err)
	}
	return nil
}

func (t *rodTab) Click(ctx context.Context, xpath string, timeout time.Duration) error {
	p, cancel := t.bounded(ctx, timeout)
	defer cancel()

	el, err := visible(p, xpath)
	if err != nil {
		return elementErr(ctx, xpath, err)
	}
	// A script click is not blocked by overlays the way a synthesized mouse event is.
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return &types.ElementError{Selector: xpath, Err: fmt.Errorf("click: %w", err)}
	}
	return nil
}

func (t *rodTab) Count(ctx context.Context, xpath string) (int, error) {
	els, err := t.page.Context(ctx).ElementsX(xpath)
	if err != nil {
		return 0, &types.ElementError{Selector: xpath, Err: err}
	}
	return len(els), nil
}

func (t *rodTab) Property(ctx context.Context, xpath, name string, timeout time.Duration) (string, error) {
	p, cancel := t.bounded(ctx, timeout)
	defer cancel()

	el, err := visible(p, xpath)
	if err != nil {
		return "", elementErr(ctx, xpath, err)
	}
	v, err := el.Property(name)
	if err != nil {
		return "", &types.ElementError{Selector: xpath, Err: fmt.Errorf("property %s: %w", name, err)}
	}
	return v.Str(), nil
}

// Close closes the tab. Later calls are no-ops.
func (t *rodTab) Close() error {
	var err error
	t.once.Do(func() {
		t.session.forget(t)
		err = t.page.Close()
	})
	return err
}

// bounded scopes the page to ctx and, when timeout is positive, to timeout.
func (t *rodTab) bounded(ctx context.Context, timeout time.Duration) (*rod.Page, func()) {
	p := t.page.Context(ctx)
	if timeout <= 0 {
		return p, func() {}
	}
	p = p.Timeout(timeout)
	return p, func() { p.CancelTimeout() }
}

func visible(p *rod.Page, xpath string) (*rod.Element, error) {
	el, err := p.ElementX(xpath)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, err
	}
	return el, nil
}

// elementErr marks a lookup that ran out of its own time budget as
// types.ErrElementTimeout. Cancellation of ctx itself passes through.
func elementErr(ctx context.Context, xpath string, err error) error {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", types.ErrElementTimeout, err)
	}
	return &types.ElementError{Selector: xpath, Err: err}
}
