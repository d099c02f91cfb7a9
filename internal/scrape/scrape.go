// Package scrape walks a listing gallery and saves the images of every
// product it links to. Work is strictly sequential: one listing tab plus
// at most one product tab at a time.
package scrape

import (
	"context"
	"time"
)

// State is the phase a Scraper run is in.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateExpanding
	StateIterating
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateExpanding:
		return "expanding"
	case StateIterating:
		return "iterating"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Summary reports what one run did.
type Summary struct {
	RunID        string        `json:"run_id"`
	MetalType    string        `json:"metal_type"`
	Cycles       int           `json:"expand_cycles"`
	Listed       int           `json:"listed"`
	Processed    int           `json:"processed"`
	Skipped      int           `json:"skipped"`
	NotFound     int           `json:"not_found"`
	ImagesSaved  int           `json:"images_saved"`
	ImagesFailed int           `json:"images_failed"`
	Bytes        int64         `json:"bytes"`
	Elapsed      time.Duration `json:"elapsed"`
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
