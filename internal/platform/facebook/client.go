package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/platform"
)

// DefaultBaseURL is the Graph API root used when no override is configured.
const DefaultBaseURL = "https://graph.facebook.com/v14.0"

// Client implements platform.Ads against the Facebook Graph API. Every call
// carries the access token in the request body, the way the Graph API expects
// it for server-side calls.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	adAccountID   string
	accessToken   string
	importTimeout time.Duration
	log           *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the Graph API root, e.g. for a local stub.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithImportTimeout bounds a single user-import call. Imports carry large
// bodies and get a longer deadline than the resource creation calls.
func WithImportTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.importTimeout = timeout
	}
}

// NewClient creates a new Graph API client for one ad account
func NewClient(adAccountID, accessToken string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       DefaultBaseURL,
		adAccountID:   adAccountID,
		accessToken:   accessToken,
		importTimeout: 30 * time.Second,
		log:           log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type idResponse struct {
	ID string `json:"id"`
}

type importResponse struct {
	NumReceived       int64 `json:"num_received"`
	NumInvalidEntries int64 `json:"num_invalid_entries"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// CreateCustomAudience creates an empty custom audience in the ad account.
func (c *Client) CreateCustomAudience(ctx context.Context, name, description string) (string, error) {
	body := map[string]interface{}{
		"name":                 name,
		"description":          description,
		"subtype":              "CUSTOM",
		"customer_file_source": "USER_PROVIDED_ONLY",
		"access_token":         c.accessToken,
	}

	var resp idResponse
	if err := c.post(ctx, c.accountPath("customaudiences"), body, &resp, 0); err != nil {
		return "", fmt.Errorf("failed to create custom audience: %w", err)
	}

	c.log.Info("Custom audience created", zap.String("audience_id", resp.ID))
	return resp.ID, nil
}

// CreateCampaign creates a paused auction campaign optimized for link clicks.
func (c *Client) CreateCampaign(ctx context.Context, name string) (string, error) {
	body := map[string]interface{}{
		"name":                  name,
		"buying_type":           "AUCTION",
		"objective":             "LINK_CLICKS",
		"status":                "PAUSED",
		"special_ad_categories": []string{"NONE"},
		"access_token":          c.accessToken,
	}

	var resp idResponse
	if err := c.post(ctx, c.accountPath("campaigns"), body, &resp, 0); err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}

	c.log.Info("Ad campaign created", zap.String("campaign_id", resp.ID))
	return resp.ID, nil
}

// CreateAdSet creates a paused ad set targeting the custom audience in the
// given countries.
func (c *Client) CreateAdSet(ctx context.Context, name, campaignID, audienceID string, countries []string) (string, error) {
	body := map[string]interface{}{
		"name":              name,
		"optimization_goal": "LINK_CLICKS",
		"billing_event":     "IMPRESSIONS",
		"bid_strategy":      "COST_CAP",
		"bid_amount":        20,
		"daily_budget":      2000,
		"campaign_id":       campaignID,
		"targeting": map[string]interface{}{
			"custom_audiences": []map[string]string{{"id": audienceID}},
			"geo_locations":    map[string][]string{"countries": countries},
		},
		"status":       "PAUSED",
		"access_token": c.accessToken,
	}

	var resp idResponse
	if err := c.post(ctx, c.accountPath("adsets"), body, &resp, 0); err != nil {
		return "", fmt.Errorf("failed to create ad set: %w", err)
	}

	c.log.Info("Ad set created", zap.String("ad_set_id", resp.ID))
	return resp.ID, nil
}

// CreateAd creates a paused link ad with a minimal creative pointing at the
// configured page and website.
func (c *Client) CreateAd(ctx context.Context, name, adSetID, pageID, link string) (string, error) {
	body := map[string]interface{}{
		"name":     name,
		"adset_id": adSetID,
		"status":   "PAUSED",
		"creative": map[string]interface{}{
			"name": fmt.Sprintf("%s creative", name),
			"object_story_spec": map[string]interface{}{
				"page_id": pageID,
				"link_data": map[string]string{
					"link": link,
				},
			},
		},
		"access_token": c.accessToken,
	}

	var resp idResponse
	if err := c.post(ctx, c.accountPath("ads"), body, &resp, 0); err != nil {
		return "", fmt.Errorf("failed to create ad: %w", err)
	}

	c.log.Info("Ad created", zap.String("ad_id", resp.ID))
	return resp.ID, nil
}

// ImportUsers uploads one batch of hashed attribute rows into the audience
// under the given replace session and batch sequence.
func (c *Client) ImportUsers(ctx context.Context, audienceID string, sessionID, sequence int64, lastBatch bool, schema []string, rows [][]string) (*platform.ImportResult, error) {
	body := map[string]interface{}{
		"session": map[string]interface{}{
			"session_id":      sessionID,
			"batch_seq":       sequence,
			"last_batch_flag": lastBatch,
		},
		"payload": map[string]interface{}{
			"schema": schema,
			"data":   rows,
		},
		"access_token": c.accessToken,
	}

	var resp importResponse
	if err := c.post(ctx, fmt.Sprintf("%s/%s/users", c.baseURL, audienceID), body, &resp, c.importTimeout); err != nil {
		return nil, fmt.Errorf("failed to import users: %w", err)
	}

	c.log.Info("Users imported",
		zap.String("audience_id", audienceID),
		zap.Int64("session_id", sessionID),
		zap.Int64("batch_seq", sequence),
		zap.Int64("received", resp.NumReceived),
		zap.Int64("invalid", resp.NumInvalidEntries))

	return &platform.ImportResult{
		Received: resp.NumReceived,
		Invalid:  resp.NumInvalidEntries,
	}, nil
}

func (c *Client) accountPath(resource string) string {
	return fmt.Sprintf("%s/act_%s/%s", c.baseURL, c.adAccountID, resource)
}

func (c *Client) post(ctx context.Context, url string, body interface{}, out interface{}, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("graph api error: %s", extractGraphError(resp.StatusCode, raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}

// extractGraphError pulls the human-readable message out of a Graph API error
// body, falling back to the HTTP status when the body is not the expected
// shape.
func extractGraphError(status int, raw []byte) string {
	var ge graphError
	if err := json.Unmarshal(raw, &ge); err == nil && ge.Error.Message != "" {
		return ge.Error.Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}
