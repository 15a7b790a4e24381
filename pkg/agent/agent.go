// Package agent defines the public contract of the bar-meter agent: its
// configuration schema, the control surface exposed over the API, and the
// status snapshot reported to clients.
package agent

import (
	"context"
	"time"

	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/barmeter-community/barmeter-agent/pkg/meter"
)

// BarMeterAgentConfig is the top-level daemon configuration, loaded via viper
// from file, environment and flags.
type BarMeterAgentConfig struct {
	Listen ListenConfig `mapstructure:"listen" yaml:"listen"`
	I2C    I2CConfig    `mapstructure:"i2c" yaml:"i2c"`
	Meter  MeterConfig  `mapstructure:"meter" yaml:"meter"`
	Source SourceConfig `mapstructure:"source" yaml:"source"`
}

// ListenConfig configures the HTTP control API.
type ListenConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// I2CConfig selects the bus and device. An empty Bus picks the first bus
// registered on the host.
type I2CConfig struct {
	Bus        string `mapstructure:"bus" yaml:"bus"`
	Addr       uint16 `mapstructure:"addr" yaml:"addr"`
	RetryLimit int    `mapstructure:"retry-limit" yaml:"retry-limit"`
}

// MeterConfig configures the level-meter state machine. Noise of zero keeps
// the derived default; threshold values of zero leave the threshold disabled.
type MeterConfig struct {
	Min       float64       `mapstructure:"min" yaml:"min"`
	Max       float64       `mapstructure:"max" yaml:"max"`
	BarCount  int           `mapstructure:"bar-count" yaml:"bar-count"`
	Noise     float64       `mapstructure:"noise" yaml:"noise"`
	RiseDecay time.Duration `mapstructure:"rise-decay" yaml:"rise-decay"`
	LowWarn   int           `mapstructure:"low-warn" yaml:"low-warn"`
	LowCrit   int           `mapstructure:"low-crit" yaml:"low-crit"`
	HighWarn  int           `mapstructure:"high-warn" yaml:"high-warn"`
	HighCrit  int           `mapstructure:"high-crit" yaml:"high-crit"`
}

// SourceConfig points the agent at an optional scalar file (sysfs-style)
// polled on an interval and fed into the meter. An empty Path disables the
// poller.
type SourceConfig struct {
	Path     string        `mapstructure:"path" yaml:"path"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// MeterStatus is the aggregated agent state returned by the status endpoint.
type MeterStatus struct {
	Level      float64            `json:"level"`
	HasLevel   bool               `json:"has_level"`
	LitBars    int                `json:"lit_bars"`
	BarCount   int                `json:"bar_count"`
	Min        float64            `json:"min"`
	Max        float64            `json:"max"`
	Noise      float64            `json:"noise"`
	RiseActive bool               `json:"rise_active"`
	Thresholds meter.Thresholds   `json:"thresholds"`
	Brightness int                `json:"brightness"`
	Blink      bargraph.BlinkRate `json:"blink"`
}

// BarMeterAgent is the control surface the API exposes.
type BarMeterAgent interface {
	// RunAsync starts the agent in a separate goroutine, cancelling the
	// context cause on failure.
	RunAsync(ctx context.Context, cancel context.CancelCauseFunc)
	// Run blocks until the context is cancelled.
	Run(ctx context.Context) error
	// GracefulStop stops the API, restores the display to power-on defaults
	// and releases the bus.
	GracefulStop(ctx context.Context) error

	// SubmitLevel feeds a level sample into the meter and reports the
	// registered delta and whether the sample cleared the noise threshold.
	SubmitLevel(ctx context.Context, level float64) (delta float64, accepted bool, err error)

	SetBrightness(ctx context.Context, level int) error
	SetBlinkRate(ctx context.Context, rate bargraph.BlinkRate) error
	SetLowWarnings(ctx context.Context, warn, crit int) error
	SetHighWarnings(ctx context.Context, warn, crit int) error
	ClearLowWarnings(ctx context.Context) error
	ClearHighWarnings(ctx context.Context) error
	SetNoise(ctx context.Context, value float64) error
	SetNoiseDefault(ctx context.Context) error

	Status(ctx context.Context) (MeterStatus, error)
}
