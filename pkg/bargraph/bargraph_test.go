package bargraph_test

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/barmeter-community/barmeter-agent/pkg/bargraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

// fakeBus records every write and fails according to txErr.
type fakeBus struct {
	writes [][]byte
	txErr  func(w []byte) error
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	cp := make([]byte, len(w))
	copy(cp, w)
	b.writes = append(b.writes, cp)
	if b.txErr != nil {
		return b.txErr(w)
	}
	return nil
}

func (b *fakeBus) String() string                    { return "fake" }
func (b *fakeBus) SetSpeed(f physic.Frequency) error { return nil }

func newDriver(bus *fakeBus, retryLimit int) *bargraph.Driver {
	return bargraph.New(bus, bargraph.Opts{Addr: bargraph.DefaultAddr, RetryLimit: retryLimit})
}

// decodeBuffer extracts the three little-endian display words from an
// UpdateBars payload.
func decodeBuffer(t *testing.T, payload []byte) [3]uint16 {
	t.Helper()
	require.Len(t, payload, 7)
	require.Equal(t, byte(0x00), payload[0])
	var words [3]uint16
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(payload[1+2*i : 3+2*i])
	}
	return words
}

func TestDriver_SetBarPacksMatrixBits(t *testing.T) {
	t.Parallel()

	for index := 0; index < bargraph.NumBars; index++ {
		for _, color := range []bargraph.Color{
			bargraph.ColorRed, bargraph.ColorGreen, bargraph.ColorOrange,
		} {
			t.Run(fmt.Sprintf("bar %d %s", index, color), func(t *testing.T) {
				t.Parallel()

				bus := &fakeBus{}
				d := newDriver(bus, 1)
				require.NoError(t, d.SetBar(index, color))
				require.NoError(t, d.UpdateBars())

				row, col := index/4, index%4
				if index >= 12 {
					row, col = index/4-3, index%4+4
				}
				var want uint16
				if color != bargraph.ColorGreen {
					want |= 1 << col
				}
				if color != bargraph.ColorRed {
					want |= 1 << (col + 8)
				}

				words := decodeBuffer(t, bus.writes[len(bus.writes)-1])
				for r := 0; r < 3; r++ {
					if r == row {
						assert.Equal(t, want, words[r], "row %d", r)
					} else {
						assert.Zero(t, words[r], "row %d", r)
					}
				}
			})
		}
	}
}

func TestDriver_SetBarHalvesUseDisjointColumns(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	d := newDriver(bus, 1)
	for index := 0; index < 12; index++ {
		require.NoError(t, d.SetBar(index, bargraph.ColorOrange))
	}
	require.NoError(t, d.UpdateBars())
	words := decodeBuffer(t, bus.writes[0])
	for r, w := range words {
		// Lower half only: columns 0-3, red and green planes.
		assert.Equal(t, uint16(0x0F0F), w, "row %d", r)
	}

	bus.writes = nil
	for index := 0; index < 12; index++ {
		require.NoError(t, d.SetBar(index, bargraph.ColorOff))
	}
	for index := 12; index < 24; index++ {
		require.NoError(t, d.SetBar(index, bargraph.ColorOrange))
	}
	require.NoError(t, d.UpdateBars())
	words = decodeBuffer(t, bus.writes[0])
	for r, w := range words {
		assert.Equal(t, uint16(0xF0F0), w, "row %d", r)
	}
}

func TestDriver_SetBarOverwritesColor(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	d := newDriver(bus, 1)
	require.NoError(t, d.SetBar(0, bargraph.ColorOrange))
	require.NoError(t, d.SetBar(0, bargraph.ColorGreen))
	require.NoError(t, d.UpdateBars())

	words := decodeBuffer(t, bus.writes[0])
	assert.Equal(t, uint16(0x0100), words[0])
}

func TestDriver_SetBarRejectsBadArgs(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	d := newDriver(bus, 1)

	var rangeErr *bargraph.RangeError
	assert.ErrorAs(t, d.SetBar(-1, bargraph.ColorRed), &rangeErr)
	assert.ErrorAs(t, d.SetBar(bargraph.NumBars, bargraph.ColorRed), &rangeErr)
	assert.ErrorAs(t, d.SetBar(0, bargraph.Color(42)), &rangeErr)
	assert.Empty(t, bus.writes, "SetBar must not touch the bus")
}

func TestDriver_CommandEncodings(t *testing.T) {
	t.Parallel()

	t.Run("brightness", func(t *testing.T) {
		t.Parallel()
		for _, level := range []int{0, 7, 15} {
			bus := &fakeBus{}
			d := newDriver(bus, 1)
			require.NoError(t, d.SetBrightness(level))
			assert.Equal(t, []byte{0xE0 | byte(level)}, bus.writes[0])
			assert.Equal(t, level, d.Brightness())
		}
	})

	t.Run("blink rate", func(t *testing.T) {
		t.Parallel()
		want := map[bargraph.BlinkRate]byte{
			bargraph.BlinkOff:    0x81,
			bargraph.Blink2Hz:    0x83,
			bargraph.Blink1Hz:    0x85,
			bargraph.BlinkHalfHz: 0x87,
		}
		for rate, cmd := range want {
			bus := &fakeBus{}
			d := newDriver(bus, 1)
			require.NoError(t, d.SetBlinkRate(rate))
			assert.Equal(t, []byte{cmd}, bus.writes[0])
			assert.Equal(t, rate, d.Blink())
		}
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()
		bus := &fakeBus{}
		d := newDriver(bus, 1)

		var rangeErr *bargraph.RangeError
		assert.ErrorAs(t, d.SetBrightness(-1), &rangeErr)
		assert.ErrorAs(t, d.SetBrightness(16), &rangeErr)
		assert.ErrorAs(t, d.SetBlinkRate(bargraph.BlinkRate(4)), &rangeErr)
		assert.Empty(t, bus.writes, "rejected arguments must not touch the bus")
	})
}

func TestDriver_ConfigureSequence(t *testing.T) {
	t.Parallel()

	// Oscillator on, all-off buffer flush, max brightness, blink off.
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x70, W: []byte{0x21}},
			{Addr: 0x70, W: []byte{0x00, 0, 0, 0, 0, 0, 0}},
			{Addr: 0x70, W: []byte{0xEF}},
			{Addr: 0x70, W: []byte{0x81}},
		},
	}
	d := bargraph.New(bus, bargraph.DefaultOpts())
	require.NoError(t, d.Configure())
	require.NoError(t, bus.Close())
}

func TestDriver_WriteRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	errBus := errors.New("nak")
	failures := 2
	bus := &fakeBus{}
	bus.txErr = func(w []byte) error {
		if len(w) == 7 && failures > 0 {
			failures--
			return errBus
		}
		return nil
	}

	d := newDriver(bus, 3)
	require.NoError(t, d.SetBar(0, bargraph.ColorRed))
	require.NoError(t, d.UpdateBars())

	// Two failed attempts, each followed by standby + oscillator
	// re-enable, then the successful third attempt.
	require.Len(t, bus.writes, 7)
	for _, i := range []int{0, 3, 6} {
		assert.Equal(t, byte(0x00), bus.writes[i][0], "write %d should be the payload", i)
	}
	for _, i := range []int{1, 4} {
		assert.Equal(t, []byte{0x20}, bus.writes[i], "write %d should be standby", i)
	}
	for _, i := range []int{2, 5} {
		assert.Equal(t, []byte{0x21}, bus.writes[i], "write %d should be oscillator enable", i)
	}
}

func TestDriver_WriteExhaustsRetryLimit(t *testing.T) {
	t.Parallel()

	errBus := errors.New("bus stuck")
	bus := &fakeBus{}
	bus.txErr = func(w []byte) error {
		if len(w) == 7 {
			return errBus
		}
		return nil
	}

	d := newDriver(bus, 3)
	err := d.UpdateBars()

	var writeErr *bargraph.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, 3, writeErr.Attempts)
	assert.ErrorIs(t, err, errBus)

	attempts := 0
	for _, w := range bus.writes {
		if len(w) == 7 {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts, "payload must be attempted exactly retry-limit times")
	// Every failed attempt is followed by the recovery pair.
	require.Len(t, bus.writes, 9)
	assert.Equal(t, []byte{0x20}, bus.writes[1])
	assert.Equal(t, []byte{0x21}, bus.writes[2])
}

func TestDriver_RecoverySkipsReenableForOscillatorCommand(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	bus.txErr = func(w []byte) error {
		if len(w) == 1 && w[0] == 0x21 {
			return errors.New("nak")
		}
		return nil
	}

	d := newDriver(bus, 2)
	err := d.Configure()

	var writeErr *bargraph.WriteError
	require.ErrorAs(t, err, &writeErr)
	// Failed enable, standby, failed enable, standby: never a recovery
	// re-enable of the command that itself failed.
	assert.Equal(t, [][]byte{{0x21}, {0x20}, {0x21}, {0x20}}, bus.writes)
}

func TestDriver_ClearRestoresPowerOnDefaults(t *testing.T) {
	t.Parallel()

	bus := &fakeBus{}
	d := newDriver(bus, 1)
	require.NoError(t, d.SetBar(5, bargraph.ColorRed))
	require.NoError(t, d.SetBrightness(2))
	require.NoError(t, d.SetBlinkRate(bargraph.Blink1Hz))

	bus.writes = nil
	require.NoError(t, d.Clear())

	require.Len(t, bus.writes, 3)
	assert.Equal(t, []byte{0x00, 0, 0, 0, 0, 0, 0}, bus.writes[0])
	assert.Equal(t, []byte{0xEF}, bus.writes[1])
	assert.Equal(t, []byte{0x81}, bus.writes[2])
	assert.Equal(t, bargraph.MaxBrightness, d.Brightness())
	assert.Equal(t, bargraph.BlinkOff, d.Blink())
}
