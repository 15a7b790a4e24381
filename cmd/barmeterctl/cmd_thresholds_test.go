package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWarnings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name             string
		side             string
		warn, crit       int
		warnSet, critSet bool
		wantWarn         int
		wantCrit         int
	}{
		{
			name: "low side falls back to conventional defaults",
			side: "low", wantWarn: 6, wantCrit: 3,
		},
		{
			name: "high side falls back to conventional defaults",
			side: "high", wantWarn: 19, wantCrit: 22,
		},
		{
			name: "explicit values win",
			side: "low", warn: 10, crit: 2, warnSet: true, critSet: true,
			wantWarn: 10, wantCrit: 2,
		},
		{
			name: "explicit zero disables instead of defaulting",
			side: "high", warn: 0, crit: 0, warnSet: true, critSet: true,
			wantWarn: 0, wantCrit: 0,
		},
		{
			name: "partial override keeps the other default",
			side: "low", crit: 1, critSet: true,
			wantWarn: 6, wantCrit: 1,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			warn, crit, err := resolveWarnings(tc.side, tc.warn, tc.crit, tc.warnSet, tc.critSet)
			require.NoError(t, err)
			assert.Equal(t, tc.wantWarn, warn)
			assert.Equal(t, tc.wantCrit, crit)
		})
	}

	t.Run("invalid side", func(t *testing.T) {
		t.Parallel()

		_, _, err := resolveWarnings("sideways", 0, 0, false, false)
		require.Error(t, err)
		assert.EqualError(t, err, "invalid warnings side")
	})
}
