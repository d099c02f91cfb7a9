// Package browser drives a real Chromium instance. Scrape logic talks to
// the Session and Tab interfaces so it can be exercised without a browser.
package browser

import (
	"context"
	"time"
)

// Session is a running browser that can open tabs.
type Session interface {
	// Open creates a new tab, navigates it to url and waits for the load event.
	Open(ctx context.Context, url string) (Tab, error)

	// Close closes every open tab and quits the browser.
	Close() error
}

// Tab is one browser tab. Element lookups take XPath expressions.
type Tab interface {
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	// ScrollHeight reports document.body.scrollHeight.
	ScrollHeight(ctx context.Context) (int, error)
	ScrollToBottom(ctx context.Context) error

	// WaitPresent blocks until xpath matches an element or timeout elapses.
	WaitPresent(ctx context.Context, xpath string, timeout time.Duration) error

	// Click waits for the element to be visible and clicks it via JavaScript.
	Click(ctx context.Context, xpath string, timeout time.Duration) error

	// Count returns how many elements currently match xpath.
	Count(ctx context.Context, xpath string) (int, error)

	// Property waits for the element to be visible and returns a DOM
	// property. "href" comes back absolute.
	Property(ctx context.Context, xpath, name string, timeout time.Duration) (string, error)

	Close() error
}
