// Package ingest reads the day-ahead, forecast, and actual CSV inputs
// described in §6: a once-per-day day-ahead schedule and per-tick polled
// forecast/actual files, written by producers via the write-then-rename
// contract.
package ingest

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/cepro/ems-block-dispatch/cartesian"
	"github.com/cepro/ems-block-dispatch/ctrlerr"
)

// DayAheadRow is one 15-minute row of the day-ahead schedule.
type DayAheadRow struct {
	Timestamp       time.Time
	ExpectedPowerKW float64
}

// ReadDayAhead parses the day-ahead CSV at path, validating that rows are
// non-negative and spaced exactly 15 minutes apart.
func ReadDayAhead(path string, loc *time.Location) ([]DayAheadRow, error) {
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, fmt.Errorf("read day-ahead file: %w", err)
	}

	out := make([]DayAheadRow, 0, len(rows))
	for i, rec := range rows {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", rec[0], loc)
		if err != nil {
			return nil, fmt.Errorf("%w: day-ahead row %d: parse timestamp: %v", ctrlerr.ErrConfigInvalid, i, err)
		}
		power, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: day-ahead row %d: parse expected_power_kw: %v", ctrlerr.ErrConfigInvalid, i, err)
		}
		if power < 0 {
			return nil, fmt.Errorf("%w: day-ahead row %d: expected_power_kw must be non-negative, got %v", ctrlerr.ErrConfigInvalid, i, power)
		}
		if i > 0 {
			gap := ts.Sub(out[i-1].Timestamp)
			if gap != 15*time.Minute {
				return nil, fmt.Errorf("%w: day-ahead row %d: expected 15-minute spacing, got %v", ctrlerr.ErrConfigInvalid, i, gap)
			}
		}
		out = append(out, DayAheadRow{Timestamp: ts, ExpectedPowerKW: power})
	}

	return out, nil
}

// DayAheadSeries holds the day-ahead schedule in a gota DataFrame so that
// block lookups and 5-minute forward-fill can be expressed as dataframe
// operations rather than hand-rolled slice scans.
type DayAheadSeries struct {
	df    dataframe.DataFrame
	curve cartesian.Curve
}

// NewDayAheadSeries builds a DayAheadSeries from the rows parsed by
// ReadDayAhead.
func NewDayAheadSeries(rows []DayAheadRow) DayAheadSeries {
	timestamps := make([]string, len(rows))
	powers := make([]float64, len(rows))
	points := make([]cartesian.Point, len(rows))
	for i, r := range rows {
		timestamps[i] = r.Timestamp.Format(time.RFC3339)
		powers[i] = r.ExpectedPowerKW
		points[i] = cartesian.Point{X: float64(r.Timestamp.Unix()), Y: r.ExpectedPowerKW}
	}

	df := dataframe.New(
		series.New(timestamps, series.String, "timestamp"),
		series.New(powers, series.Float, "expected_power_kw"),
	)

	return DayAheadSeries{df: df, curve: cartesian.Curve{Points: points}}
}

// ExpectedPowerForBlock returns the day-ahead expected power for the
// 15-minute block starting at blockStart, and whether a row was found.
func (d DayAheadSeries) ExpectedPowerForBlock(blockStart time.Time) (float64, bool) {
	key := blockStart.Format(time.RFC3339)
	filtered := d.df.Filter(dataframe.F{Colname: "timestamp", Comparator: series.Eq, Comparando: key})
	if filtered.Nrow() == 0 {
		return 0, false
	}
	return filtered.Col("expected_power_kw").Float()[0], true
}

// ForwardFillKW returns the day-ahead expected power applicable at t,
// forward-filled to 5-minute resolution: the value of the 15-minute block
// containing t. Used when the forecast file is unavailable, per §6's
// ForecastMissing recovery behaviour.
func (d DayAheadSeries) ForwardFillKW(t time.Time) (float64, bool) {
	blockStart := floorTo15Min(t)
	return d.ExpectedPowerForBlock(blockStart)
}

// InterpolatedKW returns the day-ahead schedule's value at t, linearly
// interpolated between the surrounding 15-minute samples rather than
// step-held like ForwardFillKW. Used by plotting to draw a smooth
// day-ahead reference trace alongside the stepped target and delivered
// power series.
func (d DayAheadSeries) InterpolatedKW(t time.Time) (float64, bool) {
	v := d.curve.ValueAt(float64(t.Unix()))
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func floorTo15Min(t time.Time) time.Time {
	minute := (t.Minute() / 15) * 15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	all, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil
	}

	// first row is the header.
	return all[1:], nil
}
