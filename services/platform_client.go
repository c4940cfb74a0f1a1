package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-pos/config"
)

// ExternalOrder is an order as a delivery platform reports it.
type ExternalOrder struct {
	ID       string             `json:"id"`
	Customer ExternalCustomer   `json:"customer"`
	Items    []ExternalItemLine `json:"items"`
	Notes    string             `json:"notes"`
	Total    decimal.Decimal    `json:"total"`
	PlacedAt time.Time          `json:"placed_at"`
}

type ExternalCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ExternalItemLine struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes"`
}

type ItemAvailability struct {
	ItemID    string          `json:"item_id"`
	Available bool            `json:"available"`
	Price     decimal.Decimal `json:"price"`
}

// PlatformAPI is the subset of a delivery platform's partner API we use.
type PlatformAPI interface {
	FetchOrders(ctx context.Context, restaurantID string) ([]ExternalOrder, error)
	UpdateOrderStatus(ctx context.Context, restaurantID, orderID, status string) error
	UpdateItemAvailability(ctx context.Context, restaurantID string, items []ItemAvailability) error
}

// PlatformClient talks to one delivery platform over HTTP with a bearer key.
type PlatformClient struct {
	platform   string
	config     config.PlatformConfig
	httpClient *http.Client
}

func NewPlatformClient(platform string, cfg config.PlatformConfig, timeout time.Duration) *PlatformClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PlatformClient{
		platform:   platform,
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewPlatformClients builds a client for every platform that has an API key.
func NewPlatformClients(cfg *config.Config) map[string]PlatformAPI {
	clients := make(map[string]PlatformAPI)
	for name, pc := range cfg.Platforms {
		client := NewPlatformClient(name, pc, cfg.PlatformHTTPTimeout)
		if err := client.ValidateConfig(); err != nil {
			continue
		}
		clients[name] = client
	}
	return clients
}

func (pc *PlatformClient) ValidateConfig() error {
	if pc.config.BaseURL == "" {
		return fmt.Errorf("%s base url is not set", pc.platform)
	}
	if pc.config.APIKey == "" {
		return fmt.Errorf("%s api key is not set", pc.platform)
	}
	return nil
}

func (pc *PlatformClient) FetchOrders(ctx context.Context, restaurantID string) ([]ExternalOrder, error) {
	endpoint := pc.restaurantURL(restaurantID, "orders") + "?status=placed"

	var resp struct {
		Orders []ExternalOrder `json:"orders"`
	}
	if err := pc.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (pc *PlatformClient) UpdateOrderStatus(ctx context.Context, restaurantID, orderID, status string) error {
	endpoint := pc.restaurantURL(restaurantID, "orders", orderID, "status")
	return pc.do(ctx, http.MethodPost, endpoint, map[string]string{"status": status}, nil)
}

func (pc *PlatformClient) UpdateItemAvailability(ctx context.Context, restaurantID string, items []ItemAvailability) error {
	endpoint := pc.restaurantURL(restaurantID, "items", "availability")
	return pc.do(ctx, http.MethodPost, endpoint, map[string]interface{}{"items": items}, nil)
}

func (pc *PlatformClient) restaurantURL(restaurantID string, parts ...string) string {
	segments := []string{strings.TrimRight(pc.config.BaseURL, "/"), "v1", "restaurants", url.PathEscape(restaurantID)}
	for _, p := range parts {
		segments = append(segments, url.PathEscape(p))
	}
	return strings.Join(segments, "/")
}

func (pc *PlatformClient) do(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+pc.config.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", pc.platform, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s api error (status %d): %s", pc.platform, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}
