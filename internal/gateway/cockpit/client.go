// Package cockpit is the client for the review queue where a human approves
// signals before the agent submits them. It speaks GraphQL over HTTP POST.
package cockpit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloneexec/internal/logger"
	"cloneexec/internal/ordermsg"
	"cloneexec/internal/pkg/convert"
	"cloneexec/internal/pkg/fault"
	"cloneexec/internal/pkg/text"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	querySignals = `query($cloneId: String!, $orderStatus: String){
  cockpit_SignalsByCloneId(cloneId: $cloneId, orderStatus: $orderStatus){
    id
    cloneId
    orderId
    orderCreator
    orderStatus
    orderData
  }
}`
	mutationCreate = `mutation ($cloneId: String!, $message: cockpit_JSON!){
  cockpit_CreateSignal(cloneId: $cloneId, message: $message){
    id
    cloneId
    orderStatus
  }
}`
	mutationUpdate = `mutation ($signalId: ID!, $message: cockpit_JSON!){
  cockpit_UpdateSignal(id: $signalId, message: $message){
    id
    cloneId
    orderStatus
  }
}`
	querySettings = `query($cloneId: String!){
  cockpit_CloneSettingsByCloneId(cloneId: $cloneId){
    id
    cloneId
    autopilot
  }
}`
)

type Options struct {
	Endpoint      string
	Authorization string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Settings is the per-clone configuration held by the cockpit.
type Settings struct {
	ID        string
	CloneID   string
	Autopilot bool
}

type Client struct {
	endpoint   string
	auth       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fault.Configuration("cockpit.endpoint cannot be empty")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perSecond := opts.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		endpoint:   endpoint,
		auth:       strings.TrimSpace(opts.Authorization),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SignalsByCloneID lists the clone's signals in state.
func (c *Client) SignalsByCloneID(ctx context.Context, cloneID string, state State) ([]Signal, error) {
	data, err := c.do(ctx, "cockpit_SignalsByCloneId", querySignals, map[string]any{
		"cloneId":     cloneID,
		"orderStatus": string(state.Status()),
	})
	if err != nil {
		return nil, err
	}
	var out []Signal
	for _, item := range data.Array() {
		sig, err := decodeSignal(item)
		if err != nil {
			return nil, err
		}
		out = append(out, sig)
	}
	logger.Debugf("Cockpit: %d %s signals for clone %s", len(out), state, cloneID)
	return out, nil
}

// CreateSignal opens a new Proposed signal carrying msg.
func (c *Client) CreateSignal(ctx context.Context, cloneID string, msg ordermsg.Message) (Signal, error) {
	data, err := c.do(ctx, "cockpit_CreateSignal", mutationCreate, map[string]any{
		"cloneId": cloneID,
		"message": msg,
	})
	if err != nil {
		return Signal{}, err
	}
	return Signal{
		ID:      convert.ToString(data.Get("id").Value()),
		CloneID: data.Get("cloneId").String(),
		State:   StateOf(data.Get("orderStatus").String()),
		Order:   msg.Order,
	}, nil
}

// UpdateSignal pushes msg to signal id. The order status inside msg decides
// the state the cockpit moves the signal to.
func (c *Client) UpdateSignal(ctx context.Context, id string, msg ordermsg.Message) error {
	_, err := c.do(ctx, "cockpit_UpdateSignal", mutationUpdate, map[string]any{
		"signalId": id,
		"message":  msg,
	})
	return err
}

func (c *Client) CloneSettings(ctx context.Context, cloneID string) (Settings, error) {
	data, err := c.do(ctx, "cockpit_CloneSettingsByCloneId", querySettings, map[string]any{
		"cloneId": cloneID,
	})
	if err != nil {
		return Settings{}, err
	}
	if !data.Exists() || data.Type == gjson.Null {
		return Settings{}, &APIError{Operation: "cockpit_CloneSettingsByCloneId", Messages: []string{"no settings for clone " + cloneID}}
	}
	return Settings{
		ID:        convert.ToString(data.Get("id").Value()),
		CloneID:   data.Get("cloneId").String(),
		Autopilot: data.Get("autopilot").Bool(),
	}, nil
}

// do posts one GraphQL operation and returns data.<operation>.
func (c *Client) do(ctx context.Context, operation, query string, variables map[string]any) (gjson.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, fault.Transient("cockpit %s: %v", operation, err)
	}
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode cockpit %s: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fault.Configuration("build cockpit request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		req.Header.Set("authorization", c.auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fault.Transient("call cockpit %s: %v", operation, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return gjson.Result{}, fault.Transient("read cockpit %s: %v", operation, err)
	}

	if resp.StatusCode >= 300 {
		if msgs := errorMessages(raw); len(msgs) > 0 && resp.StatusCode < 500 {
			return gjson.Result{}, &APIError{Operation: operation, Messages: msgs}
		}
		snippet := text.Truncate(strings.TrimSpace(string(raw)), 512)
		return gjson.Result{}, fault.Transient("cockpit %s returned %s: %s", operation, resp.Status, snippet)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fault.Transient("cockpit %s returned invalid json", operation)
	}
	if msgs := errorMessages(raw); len(msgs) > 0 {
		return gjson.Result{}, &APIError{Operation: operation, Messages: msgs}
	}
	return gjson.GetBytes(raw, "data."+operation), nil
}

func errorMessages(raw []byte) []string {
	errs := gjson.GetBytes(raw, "errors")
	if !errs.IsArray() {
		return nil
	}
	var out []string
	for _, e := range errs.Array() {
		if m := e.Get("message"); m.Exists() {
			out = append(out, m.String())
			continue
		}
		out = append(out, e.String())
	}
	return out
}

func decodeSignal(item gjson.Result) (Signal, error) {
	sig := Signal{
		ID:      convert.ToString(item.Get("id").Value()),
		CloneID: item.Get("cloneId").String(),
		State:   StateOf(item.Get("orderStatus").String()),
	}
	data := item.Get("orderData")
	// cockpit_JSON may come back as an encoded string.
	if data.Type == gjson.String {
		data = gjson.Parse(data.String())
	}
	if data.IsObject() {
		if err := decodeOrder(data.Value(), &sig.Order); err != nil {
			return Signal{}, fault.Transient("decode orderData of signal %s: %v", sig.ID, err)
		}
	}
	if sig.Order.ID == "" {
		sig.Order.ID = convert.ToString(item.Get("orderId").Value())
	}
	if sig.Order.Creator == "" {
		sig.Order.Creator = item.Get("orderCreator").String()
	}
	return sig, nil
}

func decodeOrder(input any, out *ordermsg.Order) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
