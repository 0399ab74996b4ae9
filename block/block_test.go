package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFrameBoundaries(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	blockStart := time.Date(2026, 7, 31, 9, 0, 0, 0, loc)
	forecast := [SubstepsPerBlock]float64{30000, 30000, 30000}
	forecastAvail := [SubstepsPerBlock]bool{true, true, true}

	t.Run("tick at block start", func(t *testing.T) {
		frame, err := NewFrame(blockStart, 10000, forecast, forecastAvail, false, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, frame.CurrentIndex)
		assert.Empty(t, frame.Past())
		assert.Len(t, frame.Future(), 3)
	})

	t.Run("tick at block_start + 10min", func(t *testing.T) {
		tNow := blockStart.Add(10 * time.Minute)
		frame, err := NewFrame(tNow, 10000, forecast, forecastAvail, true, 35000)
		require.NoError(t, err)
		assert.Equal(t, 2, frame.CurrentIndex)
		assert.Equal(t, 1, frame.NFuture())
		assert.Len(t, frame.Past(), 2)
	})

	t.Run("missing forecast filled with zero", func(t *testing.T) {
		forecastAvailPartial := [SubstepsPerBlock]bool{true, false, true}
		frame, err := NewFrame(blockStart, 10000, forecast, forecastAvailPartial, false, 0)
		require.NoError(t, err)
		assert.Equal(t, 0.0, frame.Substeps[1].SolarForecastKW)
	})

	t.Run("off 5-minute grid is time misaligned", func(t *testing.T) {
		tNow := blockStart.Add(3 * time.Minute)
		_, err := NewFrame(tNow, 10000, forecast, forecastAvail, false, 0)
		assert.Error(t, err)
	})
}

func TestSubstepSolar(t *testing.T) {
	s := Substep{SolarForecastKW: 100}
	assert.Equal(t, 100.0, s.Solar())

	s.ActualAvailable = true
	s.SolarActualKW = 120
	assert.Equal(t, 120.0, s.Solar())
}
