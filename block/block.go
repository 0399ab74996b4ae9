// Package block assembles the per-tick view of a 15-minute contractual
// block: the day-ahead target energy and the three 5-minute substeps that
// make it up, with forecast and (where available) actual solar power.
package block

import (
	"fmt"
	"time"

	"github.com/cepro/ems-block-dispatch/ctrlerr"
	"github.com/cepro/ems-block-dispatch/timeutils"
)

const (
	// BlockMinutes is the length of a day-ahead contractual block.
	BlockMinutes = 15
	// StepMinutes is the length of a real-time control substep.
	StepMinutes = 5
	// SubstepsPerBlock is the number of StepMinutes substeps in one block.
	SubstepsPerBlock = BlockMinutes / StepMinutes
)

// Substep is one 5-minute sub-interval of a Block.
type Substep struct {
	Timestamp       time.Time
	SubstepInBlock  int // 0, 1 or 2
	SolarForecastKW float64
	SolarActualKW   float64
	ActualAvailable bool
}

// Solar returns the actual solar reading if available, otherwise the
// forecast, per §4.2 step 2.
func (s Substep) Solar() float64 {
	if s.ActualAvailable {
		return s.SolarActualKW
	}
	return s.SolarForecastKW
}

// Frame is the ephemeral, per-tick assembly of a Block's three Substeps,
// the block's target energy, and which substep the current tick points at.
type Frame struct {
	BlockStart   time.Time
	ETargetKWh   float64
	Substeps     [SubstepsPerBlock]Substep
	CurrentIndex int
}

// NewFrame builds a Frame for the block containing tNow, given up to three
// forecast rows (indexed by SubstepInBlock) and an optional actual row for
// tNow. Missing forecast values are filled with 0 and clipped non-negative
// per §4.4 step 4. It returns TimeMisaligned-class errors if tNow does not
// land on the 5-minute grid or within the resolved block.
func NewFrame(tNow time.Time, eTargetKWh float64, forecastKW [SubstepsPerBlock]float64, forecastAvailable [SubstepsPerBlock]bool, actualAvailable bool, actualKW float64) (Frame, error) {
	if !timeutils.OnGrid(tNow, StepMinutes) {
		return Frame{}, fmt.Errorf("%w: %s is not aligned to the %d-minute grid", ctrlerr.ErrTimeMisaligned, tNow, StepMinutes)
	}

	blockStart := timeutils.FloorToGrid(tNow, BlockMinutes)

	currentIndex, err := timeutils.SubstepIndex(tNow, BlockMinutes, StepMinutes)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s", ctrlerr.ErrTimeMisaligned, err)
	}

	frame := Frame{
		BlockStart:   blockStart,
		ETargetKWh:   eTargetKWh,
		CurrentIndex: currentIndex,
	}

	for i := 0; i < SubstepsPerBlock; i++ {
		forecast := forecastKW[i]
		if !forecastAvailable[i] || forecast < 0 {
			forecast = 0
		}

		substep := Substep{
			Timestamp:       blockStart.Add(time.Duration(i*StepMinutes) * time.Minute),
			SubstepInBlock:  i,
			SolarForecastKW: forecast,
		}

		if i == currentIndex && actualAvailable {
			substep.ActualAvailable = true
			substep.SolarActualKW = actualKW
			if substep.SolarActualKW < 0 {
				substep.SolarActualKW = 0
			}
		}

		frame.Substeps[i] = substep
	}

	return frame, nil
}

// Past returns the substeps strictly before CurrentIndex.
func (f Frame) Past() []Substep {
	return f.Substeps[:f.CurrentIndex]
}

// Future returns the substeps at or after CurrentIndex.
func (f Frame) Future() []Substep {
	return f.Substeps[f.CurrentIndex:]
}

// NFuture returns the number of substeps remaining in the block, including
// the current one.
func (f Frame) NFuture() int {
	return SubstepsPerBlock - f.CurrentIndex
}
