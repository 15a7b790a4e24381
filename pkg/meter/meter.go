// Package meter turns a scalar input into bar count, color, brightness and
// blink state on a bicolor bar-graph display.
package meter

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
)

// BarDisplay is the display capability the meter drives. *bargraph.Driver
// satisfies it; tests substitute a recording fake. The display is not safe
// for concurrent use; the meter is its exclusive owner and serializes every
// access, including manual control and state reads, under its lock.
type BarDisplay interface {
	SetBar(index int, color bargraph.Color) error
	UpdateBars() error
	SetBrightness(level int) error
	SetBlinkRate(rate bargraph.BlinkRate) error
	Brightness() int
	Blink() bargraph.BlinkRate
}

const (
	DefaultBarCount  = bargraph.NumBars
	DefaultRiseDecay = 15 * time.Second

	DefaultLowWarn  = 6
	DefaultLowCrit  = 3
	DefaultHighWarn = 19
	DefaultHighCrit = 22
)

// Thresholds are bar-count boundaries that change the presentation. A zero
// value disables the corresponding threshold. The meter enforces no ordering
// between them; conventionally LowCrit < LowWarn < HighWarn < HighCrit.
type Thresholds struct {
	LowWarn  int `json:"low_warn"`
	LowCrit  int `json:"low_crit"`
	HighWarn int `json:"high_warn"`
	HighCrit int `json:"high_crit"`
}

// Options configures a Meter.
type Options struct {
	Display BarDisplay
	Min     float64
	Max     float64
	// BarCount is the number of addressable bars; defaults to the full
	// display.
	BarCount int
	// RiseDecay is how long the rising highlight outlives the last rise.
	RiseDecay time.Duration
	// Logger receives redraw failures raised from the decay timer, which
	// has no caller to report to.
	Logger *zap.Logger
}

// Meter holds the level-meter state machine. All mutating operations redraw
// the display; a redraw issues batched SetBar calls followed by exactly one
// UpdateBars flush, with brightness/blink writes as needed before it.
type Meter struct {
	mu      sync.Mutex
	display BarDisplay
	logger  *zap.Logger

	min      float64
	max      float64
	span     float64
	barCount int
	noise    float64

	level    float64
	hasLevel bool

	thresholds Thresholds

	riseDecay  time.Duration
	riseTimer  *time.Timer
	riseActive bool

	closed bool
}

// New binds a meter to a display. No thresholds are armed initially.
func New(opts Options) (*Meter, humane.Error) {
	if opts.Display == nil {
		return nil, humane.New("no display provided",
			"bind the meter to a bar display before constructing it",
		)
	}
	if opts.Max <= opts.Min {
		return nil, humane.New("max must be greater than min",
			fmt.Sprintf("ensure the configured input range %v..%v is non-empty", opts.Min, opts.Max),
		)
	}
	if opts.BarCount == 0 {
		opts.BarCount = DefaultBarCount
	}
	if opts.BarCount < 1 || opts.BarCount > bargraph.NumBars {
		return nil, humane.New("bar count outside the display's range",
			fmt.Sprintf("use a bar count between 1 and %d", bargraph.NumBars),
		)
	}
	if opts.RiseDecay == 0 {
		opts.RiseDecay = DefaultRiseDecay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	m := &Meter{
		display:   opts.Display,
		logger:    opts.Logger,
		min:       opts.Min,
		max:       opts.Max,
		barCount:  opts.BarCount,
		riseDecay: opts.RiseDecay,
	}
	m.span = span(m.min, m.max)
	m.noise = m.span / (2 * float64(m.barCount))
	return m, nil
}

// span returns the usable input range. Bounds that are both integral
// describe an inclusive integer range and widen the span by one; this
// changes the rounding of the bar computation for integer inputs.
func span(min, max float64) float64 {
	s := max - min
	if min == math.Trunc(min) && max == math.Trunc(max) {
		s++
	}
	return s
}

// SetMin updates the lower bound and redraws with the current level. Noise
// is not rescaled; call SetNoiseDefault afterwards if that is wanted.
func (m *Meter) SetMin(min float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max <= min {
		return humane.New("max must be greater than min",
			fmt.Sprintf("ensure the new lower bound %v stays below max %v", min, m.max),
		)
	}
	m.min = min
	m.span = span(m.min, m.max)
	return m.redrawLocked(nil)
}

// SetMax updates the upper bound and redraws with the current level.
func (m *Meter) SetMax(max float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max <= m.min {
		return humane.New("max must be greater than min",
			fmt.Sprintf("ensure the new upper bound %v stays above min %v", max, m.min),
		)
	}
	m.max = max
	m.span = span(m.min, m.max)
	return m.redrawLocked(nil)
}

// SetNoise overrides the noise threshold directly.
func (m *Meter) SetNoise(noise float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noise = noise
}

// SetNoiseDefault restores the default noise threshold of half a bar's worth
// of input range.
func (m *Meter) SetNoiseDefault() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noise = m.span / (2 * float64(m.barCount))
}

// SetLowWarnings arms the low-end thresholds and redraws. A zero disables
// the corresponding threshold.
func (m *Meter) SetLowWarnings(warn, crit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkThreshold("low warn", warn); err != nil {
		return err
	}
	if err := m.checkThreshold("low crit", crit); err != nil {
		return err
	}
	m.thresholds.LowWarn = warn
	m.thresholds.LowCrit = crit
	return m.redrawLocked(nil)
}

// SetHighWarnings arms the high-end thresholds and redraws. A zero disables
// the corresponding threshold.
func (m *Meter) SetHighWarnings(warn, crit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkThreshold("high warn", warn); err != nil {
		return err
	}
	if err := m.checkThreshold("high crit", crit); err != nil {
		return err
	}
	m.thresholds.HighWarn = warn
	m.thresholds.HighCrit = crit
	return m.redrawLocked(nil)
}

// ClearLowWarnings disables both low-end thresholds and redraws.
func (m *Meter) ClearLowWarnings() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds.LowWarn = 0
	m.thresholds.LowCrit = 0
	return m.redrawLocked(nil)
}

// ClearHighWarnings disables both high-end thresholds and redraws.
func (m *Meter) ClearHighWarnings() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds.HighWarn = 0
	m.thresholds.HighCrit = 0
	return m.redrawLocked(nil)
}

func (m *Meter) checkThreshold(name string, bars int) error {
	if bars < 0 || bars > m.barCount {
		return humane.New(fmt.Sprintf("%s threshold outside the bar range", name),
			fmt.Sprintf("use a bar count between 1 and %d, or 0 to disable the threshold", m.barCount),
		)
	}
	return nil
}

// SetCurrentLevel registers a new input level. The first level is accepted
// unconditionally and reports a zero delta. Later updates within the noise
// threshold of the last accepted level are rejected: state is unchanged, no
// redraw is issued, and accepted is false. An accepted update redraws using
// the previous level for rise detection and reports the registered delta.
//
// The level is committed before the redraw, so a bus write failure leaves
// the logical and displayed level diverged until the next successful redraw.
func (m *Meter) SetCurrentLevel(level float64) (delta float64, accepted bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasLevel {
		m.level = level
		m.hasLevel = true
		return 0, true, m.redrawLocked(nil)
	}

	delta = level - m.level
	if math.Abs(delta) < m.noise {
		return 0, false, nil
	}

	prev := m.level
	m.level = level
	return delta, true, m.redrawLocked(&prev)
}

// Close releases the decay timer and stops the meter from issuing further
// display writes, even from a callback already waiting on the lock. The
// caller may then take over the display, e.g. to clear it on shutdown.
func (m *Meter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.riseTimer != nil {
		m.riseTimer.Stop()
		m.riseTimer = nil
	}
	m.riseActive = false
	m.closed = true
}

// SetDisplayBrightness forwards a manual brightness command to the display,
// serialized against redraws.
func (m *Meter) SetDisplayBrightness(level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display.SetBrightness(level)
}

// SetDisplayBlink forwards a manual blink-rate command to the display,
// serialized against redraws.
func (m *Meter) SetDisplayBlink(rate bargraph.BlinkRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display.SetBlinkRate(rate)
}

// DisplayState returns the display's last written brightness and blink rate.
func (m *Meter) DisplayState() (brightness int, blink bargraph.BlinkRate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display.Brightness(), m.display.Blink()
}

// Level returns the last accepted level, if any.
func (m *Meter) Level() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level, m.hasLevel
}

// Noise returns the active noise threshold.
func (m *Meter) Noise() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.noise
}

// Bounds returns the configured input range.
func (m *Meter) Bounds() (min, max float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.min, m.max
}

// BarCount returns the number of addressable bars.
func (m *Meter) BarCount() int { return m.barCount }

// Thresholds returns the currently armed thresholds.
func (m *Meter) Thresholds() Thresholds {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.thresholds
}

// RiseActive reports whether the rising highlight is currently held.
func (m *Meter) RiseActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.riseActive
}

// LitBars returns the number of bars lit for the current level, or zero when
// no level has been set.
func (m *Meter) LitBars() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLevel {
		return 0
	}
	return m.litBarsLocked()
}

// litBarsLocked maps the current level to a lit bar count in [1, barCount].
// The bottom bar stays lit for any registered level; out-of-range levels
// clamp instead of failing.
func (m *Meter) litBarsLocked() int {
	bars := int(math.Floor((m.level-m.min)*float64(m.barCount)/m.span)) + 1
	if bars < 1 {
		bars = 1
	}
	if bars > m.barCount {
		bars = m.barCount
	}
	return bars
}

// redrawLocked recomputes the full visual representation and pushes it to
// the display. prev carries the level preceding the current one for rise
// detection; nil disables it.
func (m *Meter) redrawLocked(prev *float64) error {
	if !m.hasLevel {
		return nil
	}

	bars := m.litBarsLocked()
	isRising := prev != nil && m.level > *prev
	th := m.thresholds

	override := bargraph.ColorOff
	switch {
	case isRising || m.riseActive:
		// Skip the brightness/blink writes when a still-active timer
		// already holds the display bright.
		if !m.riseActive {
			if err := m.display.SetBrightness(bargraph.MaxBrightness); err != nil {
				return err
			}
			if err := m.display.SetBlinkRate(bargraph.BlinkOff); err != nil {
				return err
			}
		}
		if isRising {
			m.armRiseTimerLocked()
		}
		if th.HighCrit > 0 && bars >= th.HighCrit {
			override = bargraph.ColorRed
		} else if th.HighWarn > 0 && bars >= th.HighWarn {
			override = bargraph.ColorOrange
		}

	case th.LowCrit > 0 && bars <= th.LowCrit:
		if err := m.display.SetBrightness(bargraph.MaxBrightness); err != nil {
			return err
		}
		if err := m.display.SetBlinkRate(bargraph.Blink2Hz); err != nil {
			return err
		}

	case th.LowWarn > 0 && bars <= th.LowWarn:
		if err := m.display.SetBrightness(bargraph.MaxBrightness); err != nil {
			return err
		}
		if err := m.display.SetBlinkRate(bargraph.BlinkOff); err != nil {
			return err
		}

	default:
		if err := m.display.SetBrightness(0); err != nil {
			return err
		}
		if err := m.display.SetBlinkRate(bargraph.BlinkOff); err != nil {
			return err
		}
	}

	for i := 0; i < m.barCount; i++ {
		color := bargraph.ColorOff
		switch {
		case i >= bars:
			// cleared
		case override != bargraph.ColorOff:
			color = override
		case i < th.LowCrit:
			color = bargraph.ColorRed
		case i < th.LowWarn:
			color = bargraph.ColorOrange
		default:
			color = bargraph.ColorGreen
		}
		if err := m.display.SetBar(i, color); err != nil {
			return err
		}
	}

	return m.display.UpdateBars()
}

// armRiseTimerLocked (re)starts the decay timer, cancelling any pending one
// so that at most one is outstanding.
func (m *Meter) armRiseTimerLocked() {
	if m.riseTimer != nil {
		m.riseTimer.Stop()
	}
	m.riseActive = true
	m.riseTimer = time.AfterFunc(m.riseDecay, m.riseExpire)
}

// riseExpire drops the rising highlight and redraws against the static
// thresholds.
func (m *Meter) riseExpire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.riseActive = false
	m.riseTimer = nil
	if err := m.redrawLocked(nil); err != nil {
		m.logger.Error("redraw after rise decay failed", zap.Error(err))
	}
}
