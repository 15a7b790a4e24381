package internal_agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/barmeter-community/barmeter-agent/internal/api"
	"github.com/barmeter-community/barmeter-agent/pkg/agent"
	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/barmeter-community/barmeter-agent/pkg/log"
	"github.com/barmeter-community/barmeter-agent/pkg/meter"
)

var (
	currentLevel = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "barmeter",
		Subsystem: "agent",
		Name:      "current_level",
		Help:      "Last level accepted by the meter",
	})

	litBars = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "barmeter",
		Subsystem: "agent",
		Name:      "lit_bars",
		Help:      "Number of bars currently lit on the display",
	})

	sampleCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "barmeter",
		Subsystem: "agent",
		Name:      "samples_count",
		Help:      "Level samples processed by the agent, partitioned by outcome",
	}, []string{"outcome"})

	droppedSampleCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "barmeter",
		Subsystem: "agent",
		Name:      "samples_dropped_count",
		Help:      "Source poller samples dropped due to handler backlog",
	})
)

// barMeterAgentImpl is the implementation of the BarMeterAgent interface.
type barMeterAgentImpl struct {
	config     agent.BarMeterAgentConfig
	bus        i2c.BusCloser
	display    *bargraph.Driver
	meter      *meter.Meter
	server     *api.BarMeterHttpService
	sampleChan chan float64
}

// NewBarMeterAgent opens the configured I2C bus, brings up the display and
// builds the meter with the configured thresholds.
func NewBarMeterAgent(ctx context.Context, config agent.BarMeterAgentConfig) (agent.BarMeterAgent, error) {
	if _, err := host.Init(); err != nil {
		return nil, humane.Wrap(err, "failed to initialise host drivers",
			"ensure the agent is running on a supported host with I2C enabled",
		)
	}

	bus, err := i2creg.Open(config.I2C.Bus)
	if err != nil {
		return nil, humane.Wrap(err, "failed to open i2c bus",
			"ensure the configured bus exists (e.g. /dev/i2c-1) and the agent has permission to use it",
		)
	}

	display := bargraph.New(bus, bargraph.Opts{
		Addr:       config.I2C.Addr,
		RetryLimit: config.I2C.RetryLimit,
	})

	m, herr := meter.New(meter.Options{
		Display:   display,
		Min:       config.Meter.Min,
		Max:       config.Meter.Max,
		BarCount:  config.Meter.BarCount,
		RiseDecay: config.Meter.RiseDecay,
		Logger:    log.FromContext(ctx),
	})
	if herr != nil {
		return nil, errors.Join(herr, bus.Close())
	}

	if config.Meter.Noise > 0 {
		m.SetNoise(config.Meter.Noise)
	}
	if config.Meter.LowWarn > 0 || config.Meter.LowCrit > 0 {
		if err := m.SetLowWarnings(config.Meter.LowWarn, config.Meter.LowCrit); err != nil {
			return nil, errors.Join(err, bus.Close())
		}
	}
	if config.Meter.HighWarn > 0 || config.Meter.HighCrit > 0 {
		if err := m.SetHighWarnings(config.Meter.HighWarn, config.Meter.HighCrit); err != nil {
			return nil, errors.Join(err, bus.Close())
		}
	}

	a := &barMeterAgentImpl{
		config:     config,
		bus:        bus,
		display:    display,
		meter:      m,
		sampleChan: make(chan float64, 10),
	}

	a.server = api.NewHttpApiServer(
		api.WithBarMeterAgent(a),
		api.WithListenAddr(config.Listen.Addr),
	)

	return a, nil
}

// RunAsync starts the agent in a separate goroutine and handles errors, allowing cancellation through the provided context.
func (a *barMeterAgentImpl) RunAsync(ctx context.Context, cancel context.CancelCauseFunc) {
	go func() {
		log.FromContext(ctx).Info("Starting agent")
		err := a.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(ctx).Error("Failed to run agent", zap.Error(err))
			cancel(err)
		}
	}()
}

// Run brings the display up, starts the sample handler, the optional source
// poller and the HTTP API, and waits for termination.
func (a *barMeterAgentImpl) Run(origCtx context.Context) error {
	ctx, cancelCtx := context.WithCancelCause(origCtx)
	defer cancelCtx(fmt.Errorf("cancel"))

	log.FromContext(ctx).Info("Starting bar-meter agent")

	if err := a.display.Configure(); err != nil {
		return err
	}

	// Initialise the sample outcome metrics
	sampleCounter.WithLabelValues("accepted").Add(0)
	sampleCounter.WithLabelValues("rejected").Add(0)

	// Start HTTP API
	a.server.ServeAsync(ctx, cancelCtx)

	group, groupCtx := errgroup.WithContext(ctx)

	// Start level sample handler
	group.Go(func() error {
		return a.runSampleHandler(groupCtx)
	})

	// Start source poller
	group.Go(func() error {
		return a.runSourcePoller(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return ctx.Err()
}

// GracefulStop stops the API server, restores the display to its power-on
// defaults and releases the bus.
func (a *barMeterAgentImpl) GracefulStop(ctx context.Context) error {
	if err := a.server.GracefulStop(ctx); err != nil {
		log.FromContext(ctx).Error("Failed to stop API server", zap.Error(err))
	}

	log.FromContext(ctx).Info("Exiting, restoring display defaults")
	a.meter.Close()
	if err := a.display.Clear(); err != nil {
		log.FromContext(ctx).Error("Failed to clear display", zap.Error(err))
	}

	return a.bus.Close()
}

// SubmitLevel feeds a sample into the meter and tracks the outcome metrics.
func (a *barMeterAgentImpl) SubmitLevel(_ context.Context, level float64) (float64, bool, error) {
	delta, accepted, err := a.meter.SetCurrentLevel(level)
	if accepted {
		sampleCounter.WithLabelValues("accepted").Inc()
		currentLevel.Set(level)
		litBars.Set(float64(a.meter.LitBars()))
	} else {
		sampleCounter.WithLabelValues("rejected").Inc()
	}
	return delta, accepted, err
}

// SetBrightness and SetBlinkRate go through the meter, which owns the
// display and serializes manual commands against redraws.
func (a *barMeterAgentImpl) SetBrightness(_ context.Context, level int) error {
	return a.meter.SetDisplayBrightness(level)
}

func (a *barMeterAgentImpl) SetBlinkRate(_ context.Context, rate bargraph.BlinkRate) error {
	return a.meter.SetDisplayBlink(rate)
}

func (a *barMeterAgentImpl) SetLowWarnings(_ context.Context, warn, crit int) error {
	return a.meter.SetLowWarnings(warn, crit)
}

func (a *barMeterAgentImpl) SetHighWarnings(_ context.Context, warn, crit int) error {
	return a.meter.SetHighWarnings(warn, crit)
}

func (a *barMeterAgentImpl) ClearLowWarnings(_ context.Context) error {
	return a.meter.ClearLowWarnings()
}

func (a *barMeterAgentImpl) ClearHighWarnings(_ context.Context) error {
	return a.meter.ClearHighWarnings()
}

func (a *barMeterAgentImpl) SetNoise(_ context.Context, value float64) error {
	if value < 0 {
		return humane.New("noise threshold must not be negative",
			"use a non-negative noise value, or restore the default",
		)
	}
	a.meter.SetNoise(value)
	return nil
}

func (a *barMeterAgentImpl) SetNoiseDefault(context.Context) error {
	a.meter.SetNoiseDefault()
	return nil
}

// Status aggregates the meter and display state.
func (a *barMeterAgentImpl) Status(context.Context) (agent.MeterStatus, error) {
	level, hasLevel := a.meter.Level()
	min, max := a.meter.Bounds()
	brightness, blink := a.meter.DisplayState()

	return agent.MeterStatus{
		Level:      level,
		HasLevel:   hasLevel,
		LitBars:    a.meter.LitBars(),
		BarCount:   a.meter.BarCount(),
		Min:        min,
		Max:        max,
		Noise:      a.meter.Noise(),
		RiseActive: a.meter.RiseActive(),
		Thresholds: a.meter.Thresholds(),
		Brightness: brightness,
		Blink:      blink,
	}, nil
}

// runSampleHandler consumes polled samples and applies them to the meter.
func (a *barMeterAgentImpl) runSampleHandler(ctx context.Context) error {
	log.FromContext(ctx).Info("Starting level sample handler")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case level := <-a.sampleChan:
			_, _, err := a.SubmitLevel(ctx, level)
			if err != nil {
				log.FromContext(ctx).Error("Sample handler failed", zap.Error(err))
				return err
			}
		}
	}
}

// runSourcePoller periodically reads the configured scalar file and feeds it
// to the sample handler. A read failure is logged and skipped; the source may
// disappear and come back (e.g. a hotplugged sensor).
func (a *barMeterAgentImpl) runSourcePoller(ctx context.Context) error {
	if a.config.Source.Path == "" {
		log.FromContext(ctx).Info("No level source configured, skipping poller")
		return nil
	}

	interval := a.config.Source.Interval
	if interval <= 0 {
		interval = time.Second
	}

	log.FromContext(ctx).Info("Starting level source poller",
		zap.String("path", a.config.Source.Path),
		zap.Duration("interval", interval),
	)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		level, err := readScalarFile(a.config.Source.Path)
		if err != nil {
			log.FromContext(ctx).Error("Failed to read level source", zap.Error(err))
			continue
		}

		select {
		case a.sampleChan <- level:
		default:
			log.FromContext(ctx).Warn("Level sample dropped due to backlog")
			droppedSampleCounter.Inc()
		}
	}
}

// readScalarFile parses a single scalar value from a sysfs-style file.
func readScalarFile(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse level source %s: %w", path, err)
	}

	return value, nil
}
