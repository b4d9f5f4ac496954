package robot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Preflight checks that the company-search endpoint answers before a browser
// ever starts, so an EDGAR outage fails the run in seconds instead of after
// a full navigation timeout.
type Preflight struct {
	url       string
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewPreflight builds a probe for the given search URL.
func NewPreflight(url, userAgent string, logger *zap.Logger) *Preflight {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preflight{
		url:       url,
		userAgent: userAgent,
		timeout:   15 * time.Second,
		logger:    logger,
	}
}

// Check visits the search URL once and returns an error when it is
// unreachable or answers outside 2xx.
func (p *Preflight) Check(ctx context.Context) error {
	collector := colly.NewCollector(
		colly.UserAgent(p.userAgent),
		colly.MaxDepth(1),
	)
	collector.SetRequestTimeout(p.timeout)

	resultCh := make(chan error, 1)
	var once sync.Once
	send := func(err error) {
		once.Do(func() {
			resultCh <- err
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		p.logger.Debug("preflight response",
			zap.String("url", p.url),
			zap.Int("status", r.StatusCode),
		)
		send(nil)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown collector error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		send(err)
	})

	if err := collector.Visit(p.url); err != nil {
		return fmt.Errorf("probe %s: %w", p.url, err)
	}
	collector.Wait()

	select {
	case err := <-resultCh:
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			return fmt.Errorf("probe %s: %w", p.url, err)
		}
		return nil
	default:
		return fmt.Errorf("probe %s produced no result", p.url)
	}
}
