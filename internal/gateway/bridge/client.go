// Package bridge talks to an exchange sidecar over REST. The sidecar owns the
// real exchange credentials; the agent only sees positions, balances and a rate.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloneexec/internal/gateway/exchange"
	"cloneexec/internal/pkg/convert"
	"cloneexec/internal/pkg/fault"
)

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements exchange.Gateway against the sidecar API:
//
//	POST /positions       new order
//	PUT  /positions/{id}  re-price an order
//	GET  /positions       orders, most recent first
//	GET  /balance         {"asset_a","asset_b"}
//	GET  /rate            {"rate"}
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

var _ exchange.Gateway = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, fault.Configuration("exchange.bridge.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fault.Configuration("parse exchange.bridge.base_url: %v", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		token:      strings.TrimSpace(opts.Token),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) Name() string { return "bridge" }

type wirePosition struct {
	ID        any    `json:"id"`
	Side      string `json:"side"`
	Rate      any    `json:"rate"`
	SizeBase  any    `json:"size_base"`
	SizeQuote any    `json:"size_quote"`
	Status    string `json:"status"`
	OpenedAt  any    `json:"opened_at"`
}

func (w wirePosition) position() exchange.Position {
	return exchange.Position{
		ID:        convert.ToString(w.ID),
		Side:      exchange.Side(strings.ToLower(strings.TrimSpace(w.Side))),
		Rate:      convert.ToFloat64(w.Rate),
		SizeBase:  convert.ToFloat64(w.SizeBase),
		SizeQuote: convert.ToFloat64(w.SizeQuote),
		Status:    exchange.PositionStatus(strings.ToLower(strings.TrimSpace(w.Status))),
		OpenedAt:  convert.ToTime(w.OpenedAt),
	}
}

func (c *Client) PutPosition(ctx context.Context, req exchange.PutRequest) (exchange.Position, error) {
	var out wirePosition
	if err := c.doRequest(ctx, http.MethodPost, "/positions", req, &out); err != nil {
		return exchange.Position{}, err
	}
	pos := out.position()
	if pos.ID == "" {
		return exchange.Position{}, fault.Rejected("bridge returned no position id")
	}
	return pos, nil
}

func (c *Client) MovePosition(ctx context.Context, pos exchange.Position, rate float64) (exchange.Position, error) {
	if strings.TrimSpace(pos.ID) == "" {
		return exchange.Position{}, fault.Rejected("move requires a position id")
	}
	payload := map[string]float64{"rate": rate}
	var out wirePosition
	if err := c.doRequest(ctx, http.MethodPut, "/positions/"+url.PathEscape(pos.ID), payload, &out); err != nil {
		return exchange.Position{}, err
	}
	moved := out.position()
	if moved.ID == "" {
		moved = pos
		moved.Rate = rate
	}
	return moved, nil
}

func (c *Client) Positions(ctx context.Context) ([]exchange.Position, error) {
	var raw json.RawMessage
	if err := c.doRequest(ctx, http.MethodGet, "/positions", nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var list []wirePosition
	if err := json.Unmarshal(raw, &list); err != nil {
		var env struct {
			Positions []wirePosition `json:"positions"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fault.Transient("decode bridge positions: %v", err)
		}
		list = env.Positions
	}
	out := make([]exchange.Position, 0, len(list))
	for _, w := range list {
		out = append(out, w.position())
	}
	return out, nil
}

func (c *Client) AvailableBalance(ctx context.Context) (exchange.Balance, error) {
	var out struct {
		AssetA any `json:"asset_a"`
		AssetB any `json:"asset_b"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/balance", nil, &out); err != nil {
		return exchange.Balance{}, err
	}
	return exchange.Balance{AssetA: convert.ToFloat64(out.AssetA), AssetB: convert.ToFloat64(out.AssetB)}, nil
}

func (c *Client) MarketRate(ctx context.Context) (float64, error) {
	var out struct {
		Rate any `json:"rate"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/rate", nil, &out); err != nil {
		return 0, err
	}
	rate := convert.ToFloat64(out.Rate)
	if rate <= 0 {
		return 0, fault.Transient("bridge returned rate %v", out.Rate)
	}
	return rate, nil
}

// doRequest classifies failures: transport errors and 5xx are transient,
// 4xx on writes means the exchange refused the order.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return fault.Configuration("bridge client not initialized")
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode bridge request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fault.Transient("call bridge %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = resp.Status
		}
		if method != http.MethodGet && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return fault.Rejected("bridge refused %s %s (%s): %s", method, path, resp.Status, msg)
		}
		return fault.Transient("bridge %s %s returned %s: %s", method, path, resp.Status, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fault.Transient("decode bridge response: %v", err)
	}
	return nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fault.Configuration("bridge base url not set")
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &base, nil
}
