package trello

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lherron/ttags/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the REST root of the public API
	DefaultBaseURL = "https://api.trello.com/1"

	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64 // requests per second; negative disables limiting
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Client talks to the board, list and card endpoints with an API key and
// member token passed as query parameters.
type Client struct {
	baseURL string
	key     string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

// NewClient creates a client authenticated with the given key and token
func NewClient(key, token string, opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Limit(opts.RateLimit)
	if opts.RateLimit == 0 {
		limit = defaultRateLimit
	}
	if opts.RateLimit < 0 {
		limit = rate.Inf
	}

	return &Client{
		baseURL: baseURL,
		key:     key,
		token:   token,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, 1),
		log:     logging.OrDiscard(opts.Logger),
	}
}

// ListBoards fetches the member's boards together with all of their lists.
func (c *Client) ListBoards(ctx context.Context) ([]RawBoard, error) {
	query := url.Values{}
	query.Set("fields", "name")
	query.Set("lists", "all")

	var boards []RawBoard
	if err := c.do(ctx, "list boards", http.MethodGet, "/members/me/boards", query, nil, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

// ListCards fetches the cards of one list including their labels.
func (c *Client) ListCards(ctx context.Context, listID string) ([]RawCard, error) {
	query := url.Values{}
	query.Set("fields", "name,desc,labels")

	var cards []RawCard
	path := "/lists/" + url.PathEscape(listID) + "/cards"
	if err := c.do(ctx, "list cards", http.MethodGet, path, query, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// AddLabel attaches an existing label to a card.
func (c *Client) AddLabel(ctx context.Context, cardID, labelID string) error {
	form := url.Values{}
	form.Set("value", labelID)

	path := "/cards/" + url.PathEscape(cardID) + "/idLabels"
	return c.do(ctx, "add label", http.MethodPost, path, nil, form, nil)
}

// RemoveLabel detaches a label from a card.
func (c *Client) RemoveLabel(ctx context.Context, cardID, labelID string) error {
	path := "/cards/" + url.PathEscape(cardID) + "/idLabels/" + url.PathEscape(labelID)
	return c.do(ctx, "remove label", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query, form url.Values, out interface{}) error {
	remoteErr := func(status int, body string, err error) error {
		return &RemoteError{Op: op, Method: method, Path: path, StatusCode: status, Body: body, Err: err}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return remoteErr(0, "", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("key", c.key)
	query.Set("token", c.token)
	endpoint := c.baseURL + path + "?" + query.Encode()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return remoteErr(0, "", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithFields(logrus.Fields{"method": method, "path": path}).WithError(err).Warn("trello request failed")
		return remoteErr(0, "", err)
	}
	defer resp.Body.Close()

	c.log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("trello request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return remoteErr(resp.StatusCode, strings.TrimSpace(string(snippet)), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return remoteErr(resp.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}
