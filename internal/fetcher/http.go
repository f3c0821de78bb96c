package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"marketing-brain/internal/brain"
)

const snapshotPathFormat = "/v1/organizations/%s/snapshot"

// HTTPOptions parameterise the metrics API client.
type HTTPOptions struct {
	BaseURL   string
	Token     string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
	UserAgent string
}

// HTTP reads snapshots from the metrics API.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewHTTP constructs an API fetcher.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) (*HTTP, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("metrics api base url required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "http_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		baseURL: baseURL,
	}, nil
}

// Fetch retrieves a snapshot of the window [from, to).
func (h *HTTP) Fetch(ctx context.Context, organizationID string, from, to time.Time) (brain.Snapshot, error) {
	if organizationID == "" {
		return brain.Snapshot{}, errors.New("organization id required")
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return brain.Snapshot{}, fmt.Errorf("rate limit wait: %w", err)
	}

	query := url.Values{}
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))
	endpoint := h.baseURL + fmt.Sprintf(snapshotPathFormat, url.PathEscape(organizationID)) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return brain.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "marketing-brain/1.0")
	}
	if h.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.Token)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return brain.Snapshot{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return brain.Snapshot{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return brain.Snapshot{}, parseHTTPError(resp.StatusCode, payload)
	}

	var snapshot brain.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return brain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	h.logger.Debug().
		Str("organization_id", organizationID).
		Int("daily_metrics", len(snapshot.DailyMetrics)).
		Int("creative_metrics", len(snapshot.CreativeDailyMetrics)).
		Dur("elapsed", time.Since(start)).
		Msg("snapshot fetched")
	return snapshot, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("metrics api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("metrics api error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Code != "" {
			return fmt.Errorf("metrics api error (%d): %s", status, apiErr.Code)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("metrics api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("metrics api error (%d)", status)
}

var _ MetricFetcher = (*HTTP)(nil)
