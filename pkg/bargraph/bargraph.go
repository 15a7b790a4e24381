// Package bargraph drives a 24-segment bicolor LED bar graph behind an
// HT16K33-class controller on an I2C bus.
package bargraph

import (
	"encoding/binary"

	"periph.io/x/conn/v3/i2c"
)

const (
	// HT16K33 command bytes (datasheet, confirmed on hardware)
	cmdOscillatorOn   = 0x21 // system setup, oscillator on
	cmdStandby        = 0x20 // system setup, standby (recovery)
	cmdDisplayPointer = 0x00 // display RAM address pointer reset
	cmdBrightness     = 0xE0 // dimming set, OR with level 0-15
	cmdBlink          = 0x81 // display setup, display on, OR with rate<<1

	blinkRateShift = 1

	// The 24 bars are wired as a 3x8 matrix: rows 0-2 of display RAM,
	// red anodes in bits 0-7, green anodes in bits 8-15.
	bufferWords = 3

	// NumBars is the number of addressable bars on the display.
	NumBars = 24

	// MaxBrightness is the highest dimming level the controller accepts.
	MaxBrightness = 15

	// DefaultAddr is the 7-bit bus address the device ships with.
	DefaultAddr uint16 = 0x70

	// DefaultRetryLimit bounds write attempts before a failure is fatal.
	DefaultRetryLimit = 3
)

// Color is the state of a single bar. Orange lights both the red and the
// green anode.
type Color uint8

const (
	ColorOff Color = iota
	ColorRed
	ColorOrange
	ColorGreen
)

func (c Color) String() string {
	switch c {
	case ColorOff:
		return "off"
	case ColorRed:
		return "red"
	case ColorOrange:
		return "orange"
	case ColorGreen:
		return "green"
	default:
		return "invalid"
	}
}

// BlinkRate selects the controller's hardware blink divider.
type BlinkRate uint8

const (
	BlinkOff BlinkRate = iota
	Blink2Hz
	Blink1Hz
	BlinkHalfHz
)

func (r BlinkRate) String() string {
	switch r {
	case BlinkOff:
		return "off"
	case Blink2Hz:
		return "2Hz"
	case Blink1Hz:
		return "1Hz"
	case BlinkHalfHz:
		return "0.5Hz"
	default:
		return "invalid"
	}
}

// Opts configures a Driver.
type Opts struct {
	// Addr is the device's 7-bit bus address.
	Addr uint16
	// RetryLimit is the maximum number of attempts per physical write.
	RetryLimit int
}

// DefaultOpts returns the options matching the stock device.
func DefaultOpts() Opts {
	return Opts{
		Addr:       DefaultAddr,
		RetryLimit: DefaultRetryLimit,
	}
}

// Driver owns the bus handle and an in-memory display buffer. SetBar mutates
// the buffer only; UpdateBars transmits it. Driver is not safe for concurrent
// use; callers serialize access.
type Driver struct {
	bus        i2c.Bus
	addr       uint16
	retryLimit int

	buf [bufferWords]uint16

	// Last successfully written output state, for status reporting.
	brightness int
	blink      BlinkRate
}

// New returns a Driver bound to bus. It performs no bus I/O; call Configure
// to power the device up.
func New(bus i2c.Bus, opts Opts) *Driver {
	if opts.Addr == 0 {
		opts.Addr = DefaultAddr
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = DefaultRetryLimit
	}
	return &Driver{
		bus:        bus,
		addr:       opts.Addr,
		retryLimit: opts.RetryLimit,
		brightness: MaxBrightness,
	}
}

// Configure enables the oscillator and restores the display to its power-on
// defaults: all bars off, maximum brightness, no blinking.
func (d *Driver) Configure() error {
	if err := d.write([]byte{cmdOscillatorOn}); err != nil {
		return err
	}
	return d.Clear()
}

// SetBar sets the color of a single bar in the display buffer. No bus I/O
// takes place until UpdateBars is called.
//
// Bars 0-11 occupy columns 0-3 of rows 0-2; bars 12-23 occupy columns 4-7 of
// the same rows. The red anode for column c is bit c, the green anode bit
// c+8.
func (d *Driver) SetBar(index int, color Color) error {
	if index < 0 || index >= NumBars {
		return &RangeError{Arg: "index", Value: index, Min: 0, Max: NumBars - 1}
	}

	var row, col int
	if index < 12 {
		row = index / 4
		col = index % 4
	} else {
		row = index/4 - 3
		col = index%4 + 4
	}

	redMask := uint16(1) << col
	greenMask := uint16(1) << (col + 8)

	switch color {
	case ColorOff:
		d.buf[row] &^= redMask | greenMask
	case ColorRed:
		d.buf[row] |= redMask
		d.buf[row] &^= greenMask
	case ColorGreen:
		d.buf[row] |= greenMask
		d.buf[row] &^= redMask
	case ColorOrange:
		d.buf[row] |= redMask | greenMask
	default:
		return &RangeError{Arg: "color", Value: int(color), Min: int(ColorOff), Max: int(ColorGreen)}
	}
	return nil
}

// UpdateBars transmits the display buffer in a single bus write: the display
// pointer reset byte followed by the three buffer words, little-endian. This
// is the only call that moves LED state to the hardware; batch SetBar calls
// before it.
func (d *Driver) UpdateBars() error {
	payload := make([]byte, 1, 1+2*bufferWords)
	payload[0] = cmdDisplayPointer
	for _, word := range d.buf {
		payload = binary.LittleEndian.AppendUint16(payload, word)
	}
	if err := d.write(payload); err != nil {
		return err
	}
	displayUpdateCount.Inc()
	return nil
}

// SetBrightness sets the dimming level (0-15) with an immediate bus write.
func (d *Driver) SetBrightness(level int) error {
	if level < 0 || level > MaxBrightness {
		return &RangeError{Arg: "brightness", Value: level, Min: 0, Max: MaxBrightness}
	}
	if err := d.write([]byte{cmdBrightness | byte(level)}); err != nil {
		return err
	}
	d.brightness = level
	return nil
}

// SetBlinkRate sets the hardware blink rate with an immediate bus write. The
// command also carries the display-on bit.
func (d *Driver) SetBlinkRate(rate BlinkRate) error {
	if rate > BlinkHalfHz {
		return &RangeError{Arg: "blink rate", Value: int(rate), Min: int(BlinkOff), Max: int(BlinkHalfHz)}
	}
	if err := d.write([]byte{cmdBlink | byte(rate)<<blinkRateShift}); err != nil {
		return err
	}
	d.blink = rate
	return nil
}

// Clear switches every bar off, flushes, and restores maximum brightness and
// no blinking.
func (d *Driver) Clear() error {
	for i := range d.buf {
		d.buf[i] = 0
	}
	if err := d.UpdateBars(); err != nil {
		return err
	}
	if err := d.SetBrightness(MaxBrightness); err != nil {
		return err
	}
	return d.SetBlinkRate(BlinkOff)
}

// Brightness returns the last successfully written dimming level.
func (d *Driver) Brightness() int { return d.brightness }

// Blink returns the last successfully written blink rate.
func (d *Driver) Blink() BlinkRate { return d.blink }

// write performs one physical write with bounded retry. A failed attempt is
// followed by a recovery sequence: standby, then oscillator re-enable unless
// the failed payload was the enable command itself. Exhausting the retry
// limit surfaces a WriteError carrying the last bus error.
func (d *Driver) write(payload []byte) error {
	var last error
	for attempt := 0; attempt < d.retryLimit; attempt++ {
		if attempt > 0 {
			writeRetryCount.Inc()
		}
		last = d.bus.Tx(d.addr, payload, nil)
		if last == nil {
			return nil
		}
		d.recoverBus(payload)
	}
	writeFailureCount.Inc()
	return &WriteError{Attempts: d.retryLimit, Err: last}
}

// recoverBus transitions the device to standby and back. Recovery errors are
// ignored; the retried payload write reports the outcome.
func (d *Driver) recoverBus(payload []byte) {
	_ = d.bus.Tx(d.addr, []byte{cmdStandby}, nil)
	if len(payload) == 1 && payload[0] == cmdOscillatorOn {
		return
	}
	_ = d.bus.Tx(d.addr, []byte{cmdOscillatorOn}, nil)
}
