package walmartca

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://marketplace.walmartapis.com"
	tokenPath      = "/v3/token"
	svcName        = "Walmart Marketplace"
)

// Config holds Walmart Marketplace API credentials
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	ChannelType  string
}

// Client is a Walmart Marketplace REST client with token-based auth.
// Tokens refresh automatically shortly before they expire.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient creates a new Walmart API client
func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken fetches or refreshes the OAuth access token
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	body := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenPath, body)
	if err != nil {
		return "", err
	}

	credentials := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, string(data))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("cannot decode token response: %w", err)
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("WM_SVC.NAME", svcName)
	req.Header.Set("WM_QOS.CORRELATION_ID", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if c.cfg.ChannelType != "" {
		req.Header.Set("WM_CONSUMER.CHANNEL.TYPE", c.cfg.ChannelType)
	}
}

// doJSON performs an authenticated request and decodes the JSON response
// into out (when out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out interface{}) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("cannot encode request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	c.setCommonHeaders(req)
	req.Header.Set("WM_SEC.ACCESS_TOKEN", token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("cannot decode response of %s %s: %w", method, path, err)
	}
	return nil
}

// GetOrders fetches orders created after the given time
func (c *Client) GetOrders(ctx context.Context, since time.Time, limit int) (*OrdersResponse, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("createdStartDate", since.UTC().Format(time.RFC3339))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}

	var out OrdersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v3/ca/orders", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcknowledgeOrder acknowledges a purchase order
func (c *Client) AcknowledgeOrder(ctx context.Context, purchaseOrderID string) error {
	path := fmt.Sprintf("/v3/ca/orders/%s/acknowledge", url.PathEscape(purchaseOrderID))
	return c.doJSON(ctx, http.MethodPost, path, nil, nil, nil)
}

// ShipOrder pushes shipment tracking for a purchase order
func (c *Client) ShipOrder(ctx context.Context, purchaseOrderID string, payload interface{}) error {
	path := fmt.Sprintf("/v3/ca/orders/%s/shipping", url.PathEscape(purchaseOrderID))
	return c.doJSON(ctx, http.MethodPost, path, nil, payload, nil)
}

// CancelOrder cancels order lines of a purchase order
func (c *Client) CancelOrder(ctx context.Context, purchaseOrderID string, payload interface{}) error {
	path := fmt.Sprintf("/v3/ca/orders/%s/cancel", url.PathEscape(purchaseOrderID))
	return c.doJSON(ctx, http.MethodPost, path, nil, payload, nil)
}

// GetItems fetches the seller's catalog items
func (c *Client) GetItems(ctx context.Context, limit int) (*ItemsResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}

	var out ItemsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v3/ca/items", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateInventory pushes an on-hand quantity for a SKU
func (c *Client) UpdateInventory(ctx context.Context, sku string, quantity int) error {
	query := url.Values{}
	query.Set("sku", sku)

	payload := map[string]interface{}{
		"sku": sku,
		"quantity": map[string]interface{}{
			"unit":   "EACH",
			"amount": quantity,
		},
	}
	return c.doJSON(ctx, http.MethodPut, "/v3/ca/inventory", query, payload, nil)
}

// UpdatePrice pushes a price for a SKU
func (c *Client) UpdatePrice(ctx context.Context, sku, currency, amount string) error {
	payload := map[string]interface{}{
		"sku": sku,
		"pricing": []map[string]interface{}{
			{
				"currentPriceType": "BASE",
				"currentPrice": map[string]interface{}{
					"currency": currency,
					"amount":   amount,
				},
			},
		},
	}
	return c.doJSON(ctx, http.MethodPut, "/v3/ca/price", nil, payload, nil)
}
