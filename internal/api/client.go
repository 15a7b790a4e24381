package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sierrasoftworks/humane-errors-go"

	"github.com/barmeter-community/barmeter-agent/pkg/agent"
)

// Client talks to a running agent's HTTP API.
type Client struct {
	baseUrl string
	http    *http.Client
}

// NewClient builds a client for the given server address. A bare host:port is
// accepted and upgraded to an http URL.
func NewClient(server string) *Client {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return &Client{
		baseUrl: strings.TrimRight(server, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Status(ctx context.Context) (agent.MeterStatus, error) {
	var status agent.MeterStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &status)
	return status, err
}

func (c *Client) SubmitLevel(ctx context.Context, value float64) (LevelResponse, error) {
	var resp LevelResponse
	err := c.do(ctx, http.MethodPut, "/api/v1/level", LevelRequest{Value: value}, &resp)
	return resp, err
}

func (c *Client) SetBrightness(ctx context.Context, level int) error {
	return c.do(ctx, http.MethodPut, "/api/v1/brightness", BrightnessRequest{Level: level}, nil)
}

func (c *Client) SetBlinkRate(ctx context.Context, rate int) error {
	return c.do(ctx, http.MethodPut, "/api/v1/blink", BlinkRequest{Rate: rate}, nil)
}

func (c *Client) SetLowWarnings(ctx context.Context, warn, crit int) error {
	return c.do(ctx, http.MethodPut, "/api/v1/warnings/low", WarningsRequest{Warn: warn, Crit: crit}, nil)
}

func (c *Client) SetHighWarnings(ctx context.Context, warn, crit int) error {
	return c.do(ctx, http.MethodPut, "/api/v1/warnings/high", WarningsRequest{Warn: warn, Crit: crit}, nil)
}

func (c *Client) ClearLowWarnings(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/warnings/low", nil, nil)
}

func (c *Client) ClearHighWarnings(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/warnings/high", nil, nil)
}

func (c *Client) SetNoise(ctx context.Context, value float64) error {
	return c.do(ctx, http.MethodPut, "/api/v1/noise", NoiseRequest{Value: value}, nil)
}

func (c *Client) SetNoiseDefault(ctx context.Context) error {
	return c.do(ctx, http.MethodPut, "/api/v1/noise", NoiseRequest{Default: true}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, into any) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+path, &reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return humane.Wrap(err, "failed to reach the agent",
			"ensure the agent is running and the server address is correct",
		)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			return fmt.Errorf("agent returned status %d", resp.StatusCode)
		}
		return humane.New(apiErr.Error, apiErr.Advice...)
	}

	if into == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
