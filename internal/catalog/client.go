package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"

	defaultRetryAfter = time.Second
	maxErrorBody      = 512
)

// Client interface for testability
type Client interface {
	GetArtist(ctx context.Context, artistID string) (*Artist, error)
	GetArtistAlbums(ctx context.Context, artistID string, opts AlbumsOptions) (*AlbumPage, error)
}

type Options struct {
	BaseURL       string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	Timeout       time.Duration
	RetryCount    int           // total attempts for transient failures
	RetryDelay    time.Duration // delay before the second attempt, doubled after each
	RatePerSecond int           // client-side pacing, 0 disables
}

type HTTPClient struct {
	httpClient   *http.Client
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	limiter      *rate.Limiter
	lock         *Lock
	retryCount   int
	retryDelay   time.Duration
	logger       *zap.Logger

	tokenMu sync.Mutex
	token   string
}

func NewClient(opts Options, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.RetryCount < 1 {
		opts.RetryCount = 1
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond*2)
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		baseURL:      strings.TrimSuffix(opts.BaseURL, "/"),
		tokenURL:     opts.TokenURL,
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		limiter:      limiter,
		lock:         NewLock(),
		retryCount:   opts.RetryCount,
		retryDelay:   opts.RetryDelay,
		logger:       logger.With(zap.String("component", "catalog")),
	}
}

func (c *HTTPClient) GetArtist(ctx context.Context, artistID string) (*Artist, error) {
	intent := "fetching artist " + artistID

	var artist Artist
	err := c.get(ctx, intent, "artists/"+url.PathEscape(artistID), nil, func(body []byte) error {
		if err := json.Unmarshal(body, &artist); err != nil {
			return fmt.Errorf("decoding artist: %w", err)
		}
		return artist.Validate()
	})
	if err != nil {
		return nil, err
	}
	return &artist, nil
}

// GetArtistAlbums fetches one page of an artist's albums. Callers paginate
// by advancing opts.Offset until Total items have been read.
func (c *HTTPClient) GetArtistAlbums(ctx context.Context, artistID string, opts AlbumsOptions) (*AlbumPage, error) {
	intent := "fetching albums from artist " + artistID

	query := url.Values{}
	if opts.Market != "" {
		query.Set("market", opts.Market)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		query.Set("offset", strconv.Itoa(opts.Offset))
	}

	var page AlbumPage
	err := c.get(ctx, intent, "artists/"+url.PathEscape(artistID)+"/albums", query, func(body []byte) error {
		page = AlbumPage{}
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("decoding albums: %w", err)
		}
		return page.Validate()
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// get runs one API request under the transient-failure retry budget. Rate
// limiting is handled inside each attempt and does not use up the budget.
func (c *HTTPClient) get(ctx context.Context, intent, path string, query url.Values, decode func([]byte) error) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return c.retry(ctx, intent, func() error {
		body, err := c.send(ctx, intent, u, token)
		if err != nil {
			return err
		}
		return decode(body)
	})
}

func (c *HTTPClient) retry(ctx context.Context, intent string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryCount; attempt++ {
		if attempt > 1 {
			delay := c.retryDelay * time.Duration(1<<(attempt-2)) // Exponential backoff
			c.logger.Info("retrying request", zap.String("intent", intent), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		lastErr = err
		c.logger.Warn("request failed",
			zap.String("intent", intent),
			zap.Int("attempt", attempt),
			zap.Int("retries_left", c.retryCount-attempt),
			zap.Error(err))
	}

	return fmt.Errorf("%s: max retries exceeded: %w", intent, lastErr)
}

// send performs a GET, waiting out the shared backoff before every try and
// repeating for as long as the catalog answers 429.
func (c *HTTPClient) send(ctx context.Context, intent, u, token string) ([]byte, error) {
	for {
		if until, ok := c.lock.ResumeAt(); ok {
			c.logger.Debug("waiting out rate limit", zap.String("intent", intent), zap.Time("resume_at", until))
		}
		if err := c.lock.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRateLimited, intent, err)
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		c.logger.Debug("requesting", zap.String("intent", intent), zap.String("path", req.URL.RequestURI()))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", intent, err)
		}

		// Read body before closing for error messages
		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			wait, resumeAt := retryAfter(resp.Header, time.Now())
			installed := c.lock.Extend(resumeAt, wait)
			c.logger.Info("rate limited",
				zap.String("intent", intent),
				zap.Duration("retry_after", wait),
				zap.Time("resume_at", resumeAt),
				zap.Bool("extended", installed))
			continue
		}

		if readErr != nil {
			return nil, fmt.Errorf("%s: reading response: %w", intent, readErr)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Status:     http.StatusText(resp.StatusCode),
				Intent:     intent,
				Body:       truncate(string(body), maxErrorBody),
			}
		}

		return body, nil
	}
}

// retryAfter reads the Retry-After (seconds) and Date headers of a 429
// response. The wait is the advertised delay; the resume instant is anchored
// to the server clock so concurrent responses compare on the same scale.
func retryAfter(h http.Header, now time.Time) (time.Duration, time.Time) {
	wait := defaultRetryAfter
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			wait = time.Duration(secs) * time.Second
		}
	}

	base := now
	if d := h.Get("Date"); d != "" {
		if t, err := http.ParseTime(d); err == nil {
			base = t
		}
	}

	return wait, base.Add(wait)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
