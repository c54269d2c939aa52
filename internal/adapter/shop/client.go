package shop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
)

const maxResponseBody = 10 * 1024 * 1024

// route maps a tool name to an admin API endpoint. Path segments in
// braces are filled from the tool input; for GET routes the remaining
// input fields become query parameters, otherwise they form the body.
type route struct {
	method string
	path   string
}

var routes = map[string]route{
	"get_sales_summary": {http.MethodGet, "/reports/sales_summary"},
	"get_order_summary": {http.MethodGet, "/reports/order_summary"},
	"get_top_customers": {http.MethodGet, "/reports/top_customers"},

	"get_order":          {http.MethodGet, "/orders/{id}"},
	"get_orders":         {http.MethodGet, "/orders"},
	"update_order_note":  {http.MethodPost, "/orders/{id}/note"},
	"cancel_order":       {http.MethodPost, "/orders/{id}/cancel"},
	"mark_order_as_paid": {http.MethodPost, "/orders/{id}/mark_as_paid"},

	"get_customer":       {http.MethodGet, "/customers/{id}"},
	"get_customers":      {http.MethodGet, "/customers"},
	"add_customer_tags":  {http.MethodPost, "/customers/{id}/tags"},
	"delete_customer":    {http.MethodDelete, "/customers/{id}"},

	"get_product":    {http.MethodGet, "/products/{id}"},
	"get_products":   {http.MethodGet, "/products"},
	"update_product": {http.MethodPut, "/products/{id}"},
	"delete_product": {http.MethodDelete, "/products/{id}"},

	"get_inventory_levels": {http.MethodGet, "/inventory_levels"},
	"get_locations":        {http.MethodGet, "/locations"},
	"adjust_inventory":     {http.MethodPost, "/inventory_levels/adjust"},

	"get_collections":            {http.MethodGet, "/collections"},
	"add_products_to_collection": {http.MethodPost, "/collections/{id}/products"},
	"delete_collection":          {http.MethodDelete, "/collections/{id}"},

	"get_discounts":       {http.MethodGet, "/discounts"},
	"activate_discount":   {http.MethodPost, "/discounts/{id}/activate"},
	"deactivate_discount": {http.MethodPost, "/discounts/{id}/deactivate"},

	"get_gift_cards":       {http.MethodGet, "/gift_cards"},
	"credit_gift_card":     {http.MethodPost, "/gift_cards/{id}/credit"},
	"deactivate_gift_card": {http.MethodPost, "/gift_cards/{id}/deactivate"},

	"get_fulfillment_orders": {http.MethodGet, "/orders/{order_id}/fulfillment_orders"},
	"create_fulfillment":     {http.MethodPost, "/fulfillments"},
	"create_refund":          {http.MethodPost, "/orders/{order_id}/refunds"},

	"get_payouts":           {http.MethodGet, "/payouts"},
	"get_disputes":          {http.MethodGet, "/disputes"},
	"capture_order_payment": {http.MethodPost, "/orders/{id}/capture"},

	"order_edit_begin":        {http.MethodPost, "/orders/{order_id}/edit"},
	"order_edit_set_quantity": {http.MethodPost, "/order_edits/{calculated_order_id}/set_quantity"},
	"order_edit_commit":       {http.MethodPost, "/order_edits/{calculated_order_id}/commit"},
}

// Client talks to the store's admin API. It implements domain.Store:
// one HTTP call per tool name, input already schema-validated upstream.
type Client struct {
	baseURL     string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

// NewClient creates an admin API client.
func NewClient(cfg config.ShopConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Call executes a single tool against the admin API and returns the raw
// JSON payload.
func (c *Client) Call(ctx context.Context, toolName string, input json.RawMessage) (json.RawMessage, error) {
	rt, ok := routes[toolName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, toolName)
	}

	fields := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &fields); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, toolName, err)
		}
	}

	path, err := fillPath(rt.path, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, toolName, err)
	}

	reqURL := c.baseURL + path
	var body io.Reader
	if rt.method == http.MethodGet {
		if q := encodeQuery(fields); q != "" {
			reqURL += "?" + q
		}
	} else if len(fields) > 0 {
		payload, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, toolName, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, rt.method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolFailure, toolName, err)
	}
	req.Header.Set("X-Shop-Access-Token", c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrToolFailure, toolName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read response: %v", domain.ErrToolFailure, toolName, err)
	}

	if resp.StatusCode >= 400 {
		return nil, c.mapError(toolName, resp.StatusCode, respBody)
	}

	c.logger.Debug("store call completed",
		"tool", toolName, "method", rt.method, "path", path, "status", resp.StatusCode)
	return respBody, nil
}

func (c *Client) mapError(toolName string, status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, toolName)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: store returned %d", domain.ErrAuthInvalid, status)
	case http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfter: 60 * time.Second}
	}
	snippet := string(body)
	if len(snippet) > 512 {
		snippet = snippet[:512]
	}
	return fmt.Errorf("%w: %s: store returned %d: %s", domain.ErrToolFailure, toolName, status, snippet)
}

// fillPath substitutes {name} placeholders from the input fields,
// consuming each used field. A missing placeholder value is an error.
func fillPath(path string, fields map[string]any) (string, error) {
	for {
		start := strings.IndexByte(path, '{')
		if start < 0 {
			return path, nil
		}
		end := strings.IndexByte(path[start:], '}')
		if end < 0 {
			return path, nil
		}
		name := path[start+1 : start+end]
		v, ok := fields[name].(string)
		if !ok || v == "" {
			return "", fmt.Errorf("missing required field: %s", name)
		}
		delete(fields, name)
		path = path[:start] + url.PathEscape(v) + path[start+end+1:]
	}
}

// encodeQuery renders scalar input fields as a query string in stable
// key order. Non-scalar values are skipped.
func encodeQuery(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			q.Set(k, v)
		case bool:
			q.Set(k, fmt.Sprintf("%t", v))
		case float64:
			q.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return q.Encode()
}

var _ domain.Store = (*Client)(nil)
