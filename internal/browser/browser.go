// Package browser defines the automation capability the robot drives:
// navigate, look elements up by tag and attribute, act on them, and route
// file downloads. Implementations live in subpackages; headless wraps a real
// Chrome via chromedp, scripted is an in-memory double for tests.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrElementNotFound is returned (wrapped) when a lookup budget expires
// before any element matches.
var ErrElementNotFound = errors.New("element not found")

// Element is a handle to a located page element.
type Element interface {
	// Clear empties an input field.
	Clear(ctx context.Context) error
	// SendKeysAndSubmit types text into the element and presses Enter.
	SendKeysAndSubmit(ctx context.Context, text string) error
	// Click activates the element.
	Click(ctx context.Context) error
	// Text returns the element's visible text.
	Text(ctx context.Context) (string, error)
}

// Session is a live browser session. One session serves a whole run; fetches
// borrow it sequentially and never close it themselves.
type Session interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// FindByTagAndAttr polls until at least one element of tag whose attr
	// value contains match exists, bounded by wait. On exhaustion the error
	// wraps ErrElementNotFound.
	FindByTagAndAttr(ctx context.Context, tag, attr, match string, wait time.Duration) ([]Element, error)
	// SetDownloadDir routes subsequent file downloads into dir.
	SetDownloadDir(ctx context.Context, dir string) error
	// Close tears the session down. Safe to call more than once.
	Close() error
}
