package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/models"
)

// ServiceClient calls the structured bill-search service.
type ServiceClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

type ServiceOption func(*ServiceClient)

func WithHTTPClient(h *http.Client) ServiceOption {
	return func(c *ServiceClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithRateLimit throttles outbound calls to rps with the given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) ServiceOption {
	return func(c *ServiceClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetries sets how many times a POST is retried on 429, 502, 503, 504 or a
// transport timeout. Waits double from base between attempts.
func WithRetries(n int, base time.Duration) ServiceOption {
	return func(c *ServiceClient) {
		if n < 0 {
			n = 0
		}
		c.maxRetries = n
		c.backoff = base
	}
}

func NewServiceClient(baseURL string, opts ...ServiceOption) *ServiceClient {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	c := &ServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		maxRetries: 2,
		backoff:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchBody struct {
	Query       string `json:"query"`
	Page        int    `json:"page"`
	PerPage     int    `json:"per_page"`
	AgeGroup    string `json:"age_group,omitempty"`
	DetailLevel string `json:"detail_level,omitempty"`
}

type searchReply struct {
	Bills      []ingest.ServiceBill `json:"bills"`
	HasMore    bool                 `json:"has_more"`
	TotalFound int                  `json:"total_found"`
	Message    string               `json:"message"`
}

// Search implements Backend.
func (c *ServiceClient) Search(ctx context.Context, req Request) (Page, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 {
		req.PerPage = DefaultPerPage
	}
	body := searchBody{
		Query:       req.Query,
		Page:        req.Page,
		PerPage:     req.PerPage,
		AgeGroup:    string(req.AgeGroup),
		DetailLevel: string(req.DetailLevel),
	}

	var reply searchReply
	if err := c.post(ctx, "/search_bills", body, &reply); err != nil {
		return Page{}, err
	}
	return Page{
		Bills:      ingest.FromServiceBills(reply.Bills),
		HasMore:    reply.HasMore,
		TotalFound: reply.TotalFound,
		Message:    reply.Message,
	}, nil
}

type billNumberBody struct {
	BillNumber string `json:"bill_number"`
}

// Detail fetches the full record for one bill.
func (c *ServiceClient) Detail(ctx context.Context, number string) (models.BillDetail, error) {
	var raw ingest.ServiceDetail
	if err := c.post(ctx, "/bill_details", billNumberBody{BillNumber: number}, &raw); err != nil {
		return models.BillDetail{}, err
	}
	if strings.TrimSpace(string(raw.Number)) == "" {
		raw.Number = ingest.FlexString(number)
	}
	return ingest.FromServiceDetail(raw), nil
}

// Progression returns the legislative actions for a bill, oldest first.
func (c *ServiceClient) Progression(ctx context.Context, number string) ([]models.TimelineEvent, error) {
	var reply struct {
		Actions []ingest.ServiceAction `json:"actions"`
	}
	if err := c.post(ctx, "/bill_progression", billNumberBody{BillNumber: number}, &reply); err != nil {
		return nil, err
	}
	return ingest.BuildTimeline(reply.Actions), nil
}

// Heatmap returns per-state vote tallies for a bill.
func (c *ServiceClient) Heatmap(ctx context.Context, number string) (models.VoteHeatmap, error) {
	var reply struct {
		Votes []ingest.ServiceVote `json:"votes"`
	}
	if err := c.post(ctx, "/voting_heatmap", billNumberBody{BillNumber: number}, &reply); err != nil {
		return models.VoteHeatmap{}, err
	}
	return ingest.BuildHeatmap(number, reply.Votes), nil
}

// Status is the combined health and model readiness of the service.
type Status struct {
	Healthy     bool
	ModelsReady bool
	Message     string
}

func (c *ServiceClient) Status(ctx context.Context) (Status, error) {
	var st Status

	var health struct {
		Status string `json:"status"`
	}
	code, err := c.get(ctx, "/health", &health)
	if err != nil {
		return st, err
	}
	st.Healthy = code == http.StatusOK && health.Status == "healthy"

	var ready struct {
		Ready  bool   `json:"ready"`
		Status string `json:"status"`
	}
	// models_ready answers 503 with a valid body while loading.
	if _, err := c.get(ctx, "/models_ready", &ready); err != nil {
		return st, err
	}
	st.ModelsReady = ready.Ready
	st.Message = ready.Status
	return st, nil
}

func (c *ServiceClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (c *ServiceClient) post(ctx context.Context, path string, in, out any) error {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int63n(int64(c.backoff)/5 + 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff*time.Duration(1<<(attempt-1)) + jitter):
			}
		}

		retry, err := c.postOnce(ctx, path, jsonData, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
	}
	return lastErr
}

func (c *ServiceClient) postOnce(ctx context.Context, path string, jsonData []byte, out any) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return shouldRetry(err, 0) && ctx.Err() == nil, fmt.Errorf("search service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return shouldRetry(nil, resp.StatusCode), readServiceError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

// shouldRetry reports whether a transport error or status code is transient.
func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		var netErr interface{ Timeout() bool }
		return errors.As(err, &netErr) && netErr.Timeout()
	}
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *ServiceClient) get(ctx context.Context, path string, out any) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("search service request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return resp.StatusCode, newServiceError(resp.StatusCode, "")
		}
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func readServiceError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &body)
	return newServiceError(resp.StatusCode, strings.TrimSpace(body.Error))
}
