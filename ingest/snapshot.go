package ingest

import (
	"time"

	"github.com/cepro/ems-block-dispatch/block"
)

// Snapshot is the point-in-time bundle of inputs a single tick needs. It
// is assembled by the polling goroutines and handed to
// controlloop.ControlLoop.Tick, which stays a pure function of it.
type Snapshot struct {
	Now               time.Time
	DayAheadTarget    float64
	DayAheadAvailable bool
	ForecastKW        [block.SubstepsPerBlock]float64
	ForecastAvailable [block.SubstepsPerBlock]bool
	ActualKW          float64
	ActualAvailable   bool
}

// BuildSnapshot assembles a Snapshot for tNow from a day-ahead series and
// the forecast/actual pollers, applying the §6 recovery behaviour: a
// missing forecast file forward-fills from the day-ahead schedule, and a
// missing actual reading leaves ActualAvailable false.
func BuildSnapshot(tNow time.Time, dayAhead DayAheadSeries, forecast *ForecastPoller, actual *ActualPoller) (Snapshot, error) {
	snap := Snapshot{Now: tNow}

	blockStart := floorTo15Min(tNow)
	if power, ok := dayAhead.ExpectedPowerForBlock(blockStart); ok {
		snap.DayAheadTarget = power * 0.25
		snap.DayAheadAvailable = true
	}

	forecastRows, forecastErr := forecast.Poll(tNow)

	for i := 0; i < block.SubstepsPerBlock; i++ {
		ts := blockStart.Add(time.Duration(i*block.StepMinutes) * time.Minute)

		if forecastErr == nil {
			if kw, ok := forecastRows[ts]; ok {
				snap.ForecastKW[i] = kw
				snap.ForecastAvailable[i] = true
				continue
			}
		}

		if kw, ok := dayAhead.ForwardFillKW(ts); ok {
			snap.ForecastKW[i] = kw
			snap.ForecastAvailable[i] = true
		}
	}

	actualRow, ok, err := actual.Poll(tNow)
	if err != nil {
		return Snapshot{}, err
	}
	if ok {
		snap.ActualKW = actualRow.SolarActualKW
		snap.ActualAvailable = true
	}

	return snap, nil
}
