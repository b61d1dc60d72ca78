// Package culler finds bookmarks whose URLs no longer resolve and removes
// them through a batch delete.
package culler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/model"
)

// Status represents the health status of a URL.
type Status int

const (
	Healthy     Status = iota // 2xx or 3xx response
	Dead                      // 404 or 410 Gone
	Unreachable               // timeout, DNS failure, connection refused, etc.
)

func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Dead:
		return "dead"
	default:
		return "unreachable"
	}
}

// Result holds the check result for a single bookmark.
type Result struct {
	Bookmark   model.Bookmark
	Status     Status
	StatusCode int    // 0 if the connection failed
	Error      string // reason for unreachable URLs
}

// ProgressFunc is called after each URL is checked.
type ProgressFunc func(completed, total int)

// Options configures a Checker.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	// A 404 on these domains (or their subdomains) usually means a private
	// page, so it is reported as unreachable instead of dead.
	ExcludeDomains []string
	Logger         *zap.Logger
}

// Checker checks bookmark URLs with a bounded worker pool.
type Checker struct {
	client      *http.Client
	concurrency int
	exclude     map[string]bool
	logger      *zap.Logger
}

// NewChecker creates a Checker. Zero options fall back to 10 workers and a
// 10s timeout.
func NewChecker(opts Options) *Checker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 10
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	exclude := make(map[string]bool, len(opts.ExcludeDomains))
	for _, domain := range opts.ExcludeDomains {
		exclude[strings.ToLower(domain)] = true
	}

	return &Checker{
		client: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		concurrency: opts.Concurrency,
		exclude:     exclude,
		logger:      opts.Logger,
	}
}

// Check checks all bookmark URLs concurrently. Results keep input order.
// Cancelling ctx marks the remaining URLs unreachable.
func (c *Checker) Check(ctx context.Context, bookmarks []model.Bookmark, onProgress ProgressFunc) []Result {
	if len(bookmarks) == 0 {
		return nil
	}

	results := make([]Result, len(bookmarks))
	jobs := make(chan int, len(bookmarks))
	var wg sync.WaitGroup

	var progressMu sync.Mutex
	completed := 0

	for w := 0; w < c.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = c.checkURL(ctx, bookmarks[idx])

				if onProgress != nil {
					progressMu.Lock()
					completed++
					onProgress(completed, len(bookmarks))
					progressMu.Unlock()
				}
			}
		}()
	}

	for i := range bookmarks {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}

func (c *Checker) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "bmsync-cull/1.0")
	return c.client.Do(req)
}

// checkURL tries HEAD first and falls back to GET for servers that reject it.
func (c *Checker) checkURL(ctx context.Context, bookmark model.Bookmark) Result {
	result := Result{Bookmark: bookmark}

	resp, err := c.do(ctx, http.MethodHead, bookmark.URL)
	if err == nil && resp.StatusCode == http.StatusMethodNotAllowed {
		resp.Body.Close()
		err = errMethodNotAllowed
	}
	if err != nil {
		resp, err = c.do(ctx, http.MethodGet, bookmark.URL)
		if err != nil {
			result.Status = Unreachable
			result.Error = normalizeError(err.Error())
			c.logger.Debug("url unreachable", zap.String("url", bookmark.URL), zap.Error(err))
			return result
		}
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 400:
		result.Status = Healthy
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if c.isExcludedDomain(bookmark.URL) {
			result.Status = Unreachable
			result.Error = "Possibly private (auth required)"
		} else {
			result.Status = Dead
		}
	default:
		// 5xx, 403 and friends may be temporary or need auth.
		result.Status = Unreachable
		result.Error = http.StatusText(resp.StatusCode)
	}

	return result
}

type sentinel string

func (s sentinel) Error() string { return string(s) }

const errMethodNotAllowed = sentinel("HEAD not allowed")

// isExcludedDomain checks the host and its parent domains.
func (c *Checker) isExcludedDomain(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if c.exclude[host] {
		return true
	}
	for domain := range c.exclude {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// normalizeError simplifies verbose error messages into readable categories.
func normalizeError(errStr string) string {
	lower := strings.ToLower(errStr)

	switch {
	case strings.Contains(lower, "no such host"):
		return "DNS failure"
	case strings.Contains(lower, "context deadline exceeded"),
		strings.Contains(lower, "timeout"):
		return "Timeout"
	case strings.Contains(lower, "context canceled"):
		return "Cancelled"
	case strings.Contains(lower, "connection refused"):
		return "Connection refused"
	case strings.Contains(lower, "certificate"):
		return "TLS/certificate error"
	case strings.Contains(lower, "network is unreachable"):
		return "Network unreachable"
	case strings.Contains(lower, "tls:"):
		return "TLS error"
	default:
		return errStr
	}
}

// Filter returns the results with the given status.
func Filter(results []Result, status Status) []Result {
	var out []Result
	for _, r := range results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// Selector is the selection side of the bookmark store.
type Selector interface {
	EnterSelectionMode()
	ToggleSelection(id string)
	DeleteSelected(ctx context.Context) ([]string, error)
}

// DeleteDead selects every dead bookmark and deletes them in one batch.
func DeleteDead(ctx context.Context, s Selector, results []Result) ([]string, error) {
	dead := Filter(results, Dead)
	if len(dead) == 0 {
		return nil, nil
	}
	s.EnterSelectionMode()
	// ToggleSelection flips, so an id listed twice must only be toggled once.
	toggled := make(map[string]bool, len(dead))
	for _, r := range dead {
		if toggled[r.Bookmark.ID] {
			continue
		}
		toggled[r.Bookmark.ID] = true
		s.ToggleSelection(r.Bookmark.ID)
	}
	return s.DeleteSelected(ctx)
}
