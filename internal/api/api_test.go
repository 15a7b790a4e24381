package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barmeter-community/barmeter-agent/internal/api"
	"github.com/barmeter-community/barmeter-agent/pkg/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/barmeter-community/barmeter-agent/pkg/meter"
)

// stubAgent records the control calls the API dispatches to it.
type stubAgent struct {
	status agent.MeterStatus

	submitErr     error
	brightnessErr error

	lastLevel    float64
	brightness   int
	blink        bargraph.BlinkRate
	lowWarn      int
	lowCrit      int
	highWarn     int
	highCrit     int
	clearedLow   bool
	clearedHigh  bool
	noise        float64
	noiseDefault bool
}

func (s *stubAgent) RunAsync(context.Context, context.CancelCauseFunc) {}
func (s *stubAgent) Run(context.Context) error                        { return nil }
func (s *stubAgent) GracefulStop(context.Context) error               { return nil }

func (s *stubAgent) SubmitLevel(_ context.Context, level float64) (float64, bool, error) {
	if s.submitErr != nil {
		return 0, false, s.submitErr
	}
	s.lastLevel = level
	return 42.5, true, nil
}

func (s *stubAgent) SetBrightness(_ context.Context, level int) error {
	if s.brightnessErr != nil {
		return s.brightnessErr
	}
	s.brightness = level
	return nil
}

func (s *stubAgent) SetBlinkRate(_ context.Context, rate bargraph.BlinkRate) error {
	s.blink = rate
	return nil
}

func (s *stubAgent) SetLowWarnings(_ context.Context, warn, crit int) error {
	s.lowWarn, s.lowCrit = warn, crit
	return nil
}

func (s *stubAgent) SetHighWarnings(_ context.Context, warn, crit int) error {
	s.highWarn, s.highCrit = warn, crit
	return nil
}

func (s *stubAgent) ClearLowWarnings(context.Context) error {
	s.clearedLow = true
	return nil
}

func (s *stubAgent) ClearHighWarnings(context.Context) error {
	s.clearedHigh = true
	return nil
}

func (s *stubAgent) SetNoise(_ context.Context, value float64) error {
	s.noise = value
	return nil
}

func (s *stubAgent) SetNoiseDefault(context.Context) error {
	s.noiseDefault = true
	return nil
}

func (s *stubAgent) Status(context.Context) (agent.MeterStatus, error) {
	return s.status, nil
}

func newTestClient(t *testing.T, stub *stubAgent) *api.Client {
	t.Helper()
	service := api.NewHttpApiServer(api.WithBarMeterAgent(stub))
	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)
	return api.NewClient(server.URL)
}

func TestHttpApi_StatusRoundTrip(t *testing.T) {
	t.Parallel()

	stub := &stubAgent{
		status: agent.MeterStatus{
			Level:      512,
			HasLevel:   true,
			LitBars:    12,
			BarCount:   24,
			Min:        0,
			Max:        1023,
			Noise:      21.33,
			Thresholds: meter.Thresholds{LowWarn: 6, LowCrit: 3},
			Brightness: 15,
			Blink:      bargraph.Blink2Hz,
		},
	}
	client := newTestClient(t, stub)

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stub.status, status)
}

func TestHttpApi_SubmitLevel(t *testing.T) {
	t.Parallel()

	stub := &stubAgent{}
	client := newTestClient(t, stub)

	resp, err := client.SubmitLevel(context.Background(), 812.5)
	require.NoError(t, err)
	assert.Equal(t, 812.5, stub.lastLevel)
	assert.Equal(t, 42.5, resp.Delta)
	assert.True(t, resp.Accepted)
}

func TestHttpApi_DisplayControls(t *testing.T) {
	t.Parallel()

	stub := &stubAgent{}
	client := newTestClient(t, stub)
	ctx := context.Background()

	require.NoError(t, client.SetBrightness(ctx, 7))
	assert.Equal(t, 7, stub.brightness)

	require.NoError(t, client.SetBlinkRate(ctx, int(bargraph.Blink1Hz)))
	assert.Equal(t, bargraph.Blink1Hz, stub.blink)
}

func TestHttpApi_WarningsRouting(t *testing.T) {
	t.Parallel()

	stub := &stubAgent{}
	client := newTestClient(t, stub)
	ctx := context.Background()

	require.NoError(t, client.SetLowWarnings(ctx, 6, 3))
	assert.Equal(t, 6, stub.lowWarn)
	assert.Equal(t, 3, stub.lowCrit)

	require.NoError(t, client.SetHighWarnings(ctx, 19, 22))
	assert.Equal(t, 19, stub.highWarn)
	assert.Equal(t, 22, stub.highCrit)

	require.NoError(t, client.ClearLowWarnings(ctx))
	assert.True(t, stub.clearedLow)
	require.NoError(t, client.ClearHighWarnings(ctx))
	assert.True(t, stub.clearedHigh)
}

func TestHttpApi_NoiseRouting(t *testing.T) {
	t.Parallel()

	stub := &stubAgent{}
	client := newTestClient(t, stub)
	ctx := context.Background()

	require.NoError(t, client.SetNoise(ctx, 12.5))
	assert.Equal(t, 12.5, stub.noise)
	assert.False(t, stub.noiseDefault)

	require.NoError(t, client.SetNoiseDefault(ctx))
	assert.True(t, stub.noiseDefault)
}

func TestHttpApi_ErrorStatusMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		prepare func(*stubAgent)
		call    func(*api.Client) error
		wantMsg string
	}{
		{
			name: "bus failure surfaces to the client",
			prepare: func(s *stubAgent) {
				s.submitErr = &bargraph.WriteError{Attempts: 3, Err: errors.New("nak")}
			},
			call: func(c *api.Client) error {
				_, err := c.SubmitLevel(context.Background(), 1)
				return err
			},
			wantMsg: "bus write failed after 3 attempts",
		},
		{
			name: "range violation surfaces to the client",
			prepare: func(s *stubAgent) {
				s.brightnessErr = &bargraph.RangeError{Arg: "brightness", Value: 99, Min: 0, Max: 15}
			},
			call: func(c *api.Client) error {
				return c.SetBrightness(context.Background(), 99)
			},
			wantMsg: "brightness 99 out of range [0, 15]",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubAgent{}
			tc.prepare(stub)
			client := newTestClient(t, stub)

			err := tc.call(client)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestHttpApi_RawErrorBodies(t *testing.T) {
	t.Parallel()

	stub := &stubAgent{
		submitErr: &bargraph.WriteError{Attempts: 3, Err: errors.New("nak")},
	}
	service := api.NewHttpApiServer(api.WithBarMeterAgent(stub))
	server := httptest.NewServer(service.Handler())
	t.Cleanup(server.Close)

	req, err := http.NewRequest(http.MethodPut, server.URL+"/api/v1/level",
		strings.NewReader(`{"value": 1}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	// Malformed body never reaches the agent.
	req, err = http.NewRequest(http.MethodPut, server.URL+"/api/v1/level",
		strings.NewReader(`{"value": `))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
