// Package scripted provides an in-memory browser.Session programmed with
// element stubs. Tests use it to replay navigation flows without Chrome; it
// journals every interaction for assertions.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/finbots-io/edgarbot/internal/browser"
)

// ErrSessionClosed is returned by any operation after Close.
var ErrSessionClosed = errors.New("scripted session closed")

// scanInterval keeps lookup waits fast under test.
const scanInterval = 5 * time.Millisecond

// Stub describes one element a scripted page exposes. Value is the full
// attribute value; lookups match it by substring, like a CSS [attr*=] query.
type Stub struct {
	Tag   string
	Attr  string
	Value string
	Text  string
	// AppearAfter hides the stub until that long after the page loads,
	// exercising lookup wait loops.
	AppearAfter time.Duration
	// OnClick runs when the element is clicked.
	OnClick func(ctx context.Context) error
	// OnSubmit runs when text is typed and submitted into the element.
	OnSubmit func(text string) error
}

func (st Stub) key() string {
	return fmt.Sprintf("%s[%s=%s]", st.Tag, st.Attr, st.Value)
}

// Session replays a programmed DOM.
type Session struct {
	mu          sync.Mutex
	pages       map[string][]Stub
	currentURL  string
	loadedAt    time.Time
	navigations []string
	journal     []string
	downloadDir string
	closed      bool
	closeCalls  int

	// NavigateErr fails the next Navigate when set.
	NavigateErr error
	// CloseErr is returned by the first Close when set.
	CloseErr error
}

var _ browser.Session = (*Session)(nil)

// NewSession returns an empty scripted session; program it with AddPage.
func NewSession() *Session {
	return &Session{pages: make(map[string][]Stub)}
}

// AddPage registers the stubs visible once url is loaded.
func (s *Session) AddPage(url string, stubs ...Stub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = append(s.pages[url], stubs...)
}

// Load switches the current page without recording a navigation, for
// OnClick/OnSubmit hooks that simulate in-page transitions.
func (s *Session) Load(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentURL = url
	s.loadedAt = time.Now()
}

// Navigate records the visit and makes url the current page. Unknown URLs
// load an empty page, so lookups on them expire with ErrElementNotFound.
func (s *Session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.NavigateErr != nil {
		err := s.NavigateErr
		s.NavigateErr = nil
		return err
	}
	s.navigations = append(s.navigations, url)
	s.currentURL = url
	s.loadedAt = time.Now()
	return nil
}

// FindByTagAndAttr scans the current page's stubs until at least one matches
// or the wait budget expires.
func (s *Session) FindByTagAndAttr(ctx context.Context, tag, attr, match string, wait time.Duration) ([]browser.Element, error) {
	deadline := time.Now().Add(wait)
	for {
		elements, err := s.visibleMatches(tag, attr, match)
		if err != nil {
			return nil, err
		}
		if len(elements) > 0 {
			return elements, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s[%s*=%s] after %v: %w", tag, attr, match, wait, browser.ErrElementNotFound)
		}
		timer := time.NewTimer(scanInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Session) visibleMatches(tag, attr, match string) ([]browser.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	var elements []browser.Element
	for i, st := range s.pages[s.currentURL] {
		if st.Tag != tag || st.Attr != attr || !strings.Contains(st.Value, match) {
			continue
		}
		if time.Since(s.loadedAt) < st.AppearAfter {
			continue
		}
		elements = append(elements, &Element{session: s, page: s.currentURL, index: i})
	}
	return elements, nil
}

// SetDownloadDir records where click hooks should place downloads.
func (s *Session) SetDownloadDir(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.downloadDir = dir
	s.journal = append(s.journal, "download-dir "+dir)
	return nil
}

// DownloadDir returns the most recently routed download directory.
func (s *Session) DownloadDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloadDir
}

// Close marks the session closed. Further operations fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.closed {
		return nil
	}
	s.closed = true
	return s.CloseErr
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CloseCalls counts Close invocations.
func (s *Session) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Navigations returns the URLs visited via Navigate, in order.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Journal returns the recorded interactions, in order.
func (s *Session) Journal() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.journal...)
}

func (s *Session) record(entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.journal = append(s.journal, entry)
	return nil
}

func (s *Session) stubAt(page string, index int) (Stub, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Stub{}, ErrSessionClosed
	}
	stubs := s.pages[page]
	if index < 0 || index >= len(stubs) {
		return Stub{}, fmt.Errorf("stale element %d on %s", index, page)
	}
	return stubs[index], nil
}

// Element is a handle to one stub on one page.
type Element struct {
	session *Session
	page    string
	index   int
}

var _ browser.Element = (*Element)(nil)

func (e *Element) Clear(_ context.Context) error {
	st, err := e.session.stubAt(e.page, e.index)
	if err != nil {
		return err
	}
	return e.session.record("clear " + st.key())
}

func (e *Element) SendKeysAndSubmit(_ context.Context, text string) error {
	st, err := e.session.stubAt(e.page, e.index)
	if err != nil {
		return err
	}
	if err := e.session.record("type " + st.key() + " " + text); err != nil {
		return err
	}
	if st.OnSubmit != nil {
		return st.OnSubmit(text)
	}
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	st, err := e.session.stubAt(e.page, e.index)
	if err != nil {
		return err
	}
	if err := e.session.record("click " + st.key()); err != nil {
		return err
	}
	if st.OnClick != nil {
		return st.OnClick(ctx)
	}
	return nil
}

func (e *Element) Text(_ context.Context) (string, error) {
	st, err := e.session.stubAt(e.page, e.index)
	if err != nil {
		return "", err
	}
	return st.Text, nil
}
