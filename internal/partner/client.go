// Package partner implements the signed HTTP client for the upstream
// job-board API. Every request carries an HMAC-SHA256 signature over
// method, path, timestamp and body; signatures are regenerated on each
// retry because the server rejects timestamps older than five minutes.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/talentbridge/matchsync/internal/config"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/signing"
)

const (
	maxAttempts       = 4
	defaultRetryAfter = 60 * time.Second
	maxJobsPerPage    = 100
	maxPlacementsPage = 500
)

// backoffSchedule spaces 5xx retries; attempt n sleeps schedule[n].
var backoffSchedule = []time.Duration{
	1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
}

// Client talks to the partner job-board API. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	signer  *signing.Signer
	http    *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client from partner credentials.
func NewClient(cfg config.PartnerConfig, log logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("partner base URL is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("partner credentials are required")
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		signer:  signing.NewSigner(cfg.APISecret),
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		// Starts generous; tightened by X-RateLimit observations.
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		logger:  log,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// ListJobs fetches one page of job postings. The board paginates with
// skip/limit; page numbers start at 1.
func (c *Client) ListJobs(ctx context.Context, filter ListFilter, page int) ([]JobDTO, bool, error) {
	limit := filter.PerPage
	if limit <= 0 || limit > maxJobsPerPage {
		limit = maxJobsPerPage
	}

	q := url.Values{}
	q.Set("skip", strconv.Itoa((page-1)*limit))
	q.Set("limit", strconv.Itoa(limit))
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if !filter.CreatedAfter.IsZero() {
		q.Set("created_after", filter.CreatedAfter.UTC().Format(time.RFC3339))
	}

	var result jobsPage
	if err := c.do(ctx, http.MethodGet, "/jobs?"+q.Encode(), nil, &result); err != nil {
		return nil, false, err
	}
	return result.Jobs, result.HasMore, nil
}

// GetJob fetches a single job by its partner-side id.
func (c *Client) GetJob(ctx context.Context, externalID string) (*JobDTO, error) {
	var result struct {
		Job JobDTO `json:"job"`
	}
	path := "/jobs/" + url.PathEscape(externalID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result.Job, nil
}

// SubmitCandidates posts a batch of candidates against a job and
// returns the per-candidate outcomes.
func (c *Client) SubmitCandidates(ctx context.Context, jobExternalID string, payloads []CandidatePayload) ([]SubmissionResult, error) {
	body := struct {
		JobID      string             `json:"job_id"`
		Candidates []CandidatePayload `json:"candidates"`
	}{JobID: jobExternalID, Candidates: payloads}

	var result submitResponse
	if err := c.do(ctx, http.MethodPost, "/placements", body, &result); err != nil {
		return nil, err
	}
	return result.Results, nil
}

// ListPlacements fetches one page of placement states, optionally
// narrowed to a job or a date window.
func (c *Client) ListPlacements(ctx context.Context, filter ListFilter, page int) ([]PlacementDTO, bool, error) {
	limit := filter.PerPage
	if limit <= 0 || limit > maxPlacementsPage {
		limit = maxPlacementsPage
	}

	q := url.Values{}
	q.Set("skip", strconv.Itoa((page-1)*limit))
	q.Set("limit", strconv.Itoa(limit))
	if filter.JobID != "" {
		q.Set("job_id", filter.JobID)
	}
	if !filter.DateFrom.IsZero() {
		q.Set("date_from", filter.DateFrom.UTC().Format(time.RFC3339))
	}
	if !filter.DateTo.IsZero() {
		q.Set("date_to", filter.DateTo.UTC().Format(time.RFC3339))
	}

	var result placementsPage
	if err := c.do(ctx, http.MethodGet, "/placements?"+q.Encode(), nil, &result); err != nil {
		return nil, false, err
	}
	return result.Placements, result.HasMore, nil
}

// UpdatePlacement pushes a status change to the partner.
func (c *Client) UpdatePlacement(ctx context.Context, externalID, status, notes string) error {
	body := struct {
		Status    string `json:"status"`
		Notes     string `json:"notes,omitempty"`
		UpdatedAt string `json:"updated_at"`
	}{Status: status, Notes: notes, UpdatedAt: c.now().UTC().Format(time.RFC3339)}

	path := "/placements/" + url.PathEscape(externalID)
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// do runs one signed request with the retry policy: 429 sleeps
// Retry-After, 5xx and network errors back off 1,2,4,8 s, other 4xx
// fail immediately.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindNetwork, Message: "rate limiter wait", Err: err}
		}

		err := c.doOnce(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var pe *Error
		if !errors.As(err, &pe) || !pe.Retryable() {
			return err
		}

		var wait time.Duration
		if pe.Kind == KindRateLimited {
			wait = pe.retryAfter
			if wait <= 0 {
				wait = defaultRetryAfter
			}
		} else {
			wait = backoffSchedule[attempt]
		}

		c.logger.Warn("partner request failed, retrying",
			logger.String("method", method),
			logger.String("path", path),
			logger.String("kind", string(pe.Kind)),
			logger.Int("attempt", attempt+1),
			logger.Duration("wait", wait),
		)

		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			return &Error{Kind: KindNetwork, Message: "retry wait cancelled", Err: sleepErr}
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, out any) error {
	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "create request", Err: err}
	}

	// Signed fresh per attempt; the server rejects stale timestamps.
	ts := c.now().Unix()
	signPath := req.URL.Path
	if req.URL.RawQuery != "" {
		signPath += "?" + req.URL.RawQuery
	}
	sig := c.signer.Sign(signing.RequestMessage(method, signPath, ts, payload))
	req.Header.Set("Authorization", signing.AuthorizationHeader(c.apiKey, sig, ts))
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	c.observeRateLimit(resp)

	if resp.StatusCode >= 400 {
		return c.errorFromResponse(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return &Error{Kind: KindServer, StatusCode: resp.StatusCode,
			Message: "decode response", Err: decodeErr}
	}
	return nil
}

// observeRateLimit feeds X-RateLimit headers into the client limiter so
// the next window is not burned on requests the server would reject.
func (c *Client) observeRateLimit(resp *http.Response) {
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return
	}

	window := time.Until(time.Unix(resetUnix, 0))
	if window <= 0 || remaining <= 0 {
		return
	}
	c.limiter.SetLimit(rate.Limit(float64(remaining) / window.Seconds()))
}

func (c *Client) errorFromResponse(resp *http.Response) *Error {
	const maxErrBody = 2048
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))

	message := resp.Status
	var wire struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil {
		if wire.Error != "" {
			message = wire.Error
		} else if wire.Message != "" {
			message = wire.Message
		}
	}

	pe := &Error{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    message,
	}
	if pe.Kind == KindRateLimited {
		if secs, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && secs > 0 {
			pe.retryAfter = time.Duration(secs) * time.Second
		}
	}
	return pe
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
