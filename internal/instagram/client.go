package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const graphHost = "https://graph.facebook.com"

// Client is a thin wrapper over the Graph API endpoints this service needs:
// container create/status/publish, token introspection and exchange, and
// page-account lookup. Every method takes the access token as an argument so
// callers always pass the live credential value.
type Client struct {
	httpClient *http.Client
	host       string // unversioned endpoints (debug_token, oauth)
	baseURL    string // host + API version, e.g. https://graph.facebook.com/v23.0
}

func NewClient(apiVersion string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		host:       graphHost,
		baseURL:    fmt.Sprintf("%s/%s", graphHost, apiVersion),
	}
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("graph api: %s (type=%s, code=%d)", e.Message, e.Type, e.Code)
}

// CreateContainer submits an image and caption for processing and returns
// the backend's container id (phase one of the publish protocol).
func (c *Client) CreateContainer(ctx context.Context, accountID, imageURL, caption, token string) (string, error) {
	form := url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {token},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, fmt.Sprintf("%s/%s/media", c.baseURL, accountID), form, &resp); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create container: response missing id")
	}
	return resp.ID, nil
}

// Container processing states reported by the status_code field.
const (
	ContainerFinished   = "FINISHED"
	ContainerInProgress = "IN_PROGRESS"
	ContainerError      = "ERROR"
)

// ContainerStatus returns the processing state of a container.
func (c *Client) ContainerStatus(ctx context.Context, containerID, token string) (string, error) {
	q := url.Values{
		"fields":       {"status_code"},
		"access_token": {token},
	}

	var resp struct {
		StatusCode string `json:"status_code"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, containerID), q, &resp); err != nil {
		return "", fmt.Errorf("container status: %w", err)
	}
	return resp.StatusCode, nil
}

// PublishContainer commits a processed container and returns the live media
// id (phase two of the publish protocol).
func (c *Client) PublishContainer(ctx context.Context, accountID, containerID, token string) (string, error) {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {token},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", c.baseURL, accountID), form, &resp); err != nil {
		return "", fmt.Errorf("publish container: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("publish container: response missing id")
	}
	return resp.ID, nil
}

// TokenInfo is the subset of debug_token output the lifecycle manager needs.
// ExpiresAt == 0 means the token reports no expiry.
type TokenInfo struct {
	ExpiresAt int64 `json:"expires_at"`
	IsValid   bool  `json:"is_valid"`
}

// DebugToken introspects a token using the app access token
// ("app_id|app_secret"). The debug endpoint is unversioned.
func (c *Client) DebugToken(ctx context.Context, token, appID, appSecret string) (*TokenInfo, error) {
	q := url.Values{
		"input_token":  {token},
		"access_token": {appID + "|" + appSecret},
	}

	var resp struct {
		Data TokenInfo `json:"data"`
	}
	if err := c.get(ctx, c.host+"/debug_token", q, &resp); err != nil {
		return nil, fmt.Errorf("debug token: %w", err)
	}
	return &resp.Data, nil
}

// ExchangedToken is the result of a long-lived token exchange.
type ExchangedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeToken swaps the current token for a fresh long-lived one. The
// oauth endpoint is unversioned.
func (c *Client) ExchangeToken(ctx context.Context, token, appID, appSecret string) (*ExchangedToken, error) {
	q := url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {appID},
		"client_secret":     {appSecret},
		"fb_exchange_token": {token},
	}

	var resp ExchangedToken
	if err := c.get(ctx, c.host+"/oauth/access_token", q, &resp); err != nil {
		return nil, fmt.Errorf("exchange token: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("exchange token: response missing access_token")
	}
	return &resp, nil
}

// PageAccount is one entry from /me/accounts.
type PageAccount struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

// PageAccounts lists the pages the token's user manages.
func (c *Client) PageAccounts(ctx context.Context, userToken string) ([]PageAccount, error) {
	q := url.Values{"access_token": {userToken}}

	var resp struct {
		Data []PageAccount `json:"data"`
	}
	if err := c.get(ctx, c.baseURL+"/me/accounts", q, &resp); err != nil {
		return nil, fmt.Errorf("page accounts: %w", err)
	}
	return resp.Data, nil
}

// PageBusinessAccount returns the Instagram business account id backing a
// page, or "" if the page has none.
func (c *Client) PageBusinessAccount(ctx context.Context, pageID, userToken string) (string, error) {
	q := url.Values{
		"fields":       {"instagram_business_account"},
		"access_token": {userToken},
	}

	var resp struct {
		InstagramBusinessAccount *struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, pageID), q, &resp); err != nil {
		return "", fmt.Errorf("page business account: %w", err)
	}
	if resp.InstagramBusinessAccount == nil {
		return "", nil
	}
	return resp.InstagramBusinessAccount.ID, nil
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Graph errors come back as {"error": {...}} with a useful message.
		var wrapped struct {
			Error *apiError `json:"error"`
		}
		if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil {
			return wrapped.Error
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
