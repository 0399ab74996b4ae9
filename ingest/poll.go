package ingest

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cepro/ems-block-dispatch/ctrlerr"
)

// tmpWaitDelay is how long a poller waits before retrying a read when it
// observes a producer's "<path>.tmp" mid-rename.
const tmpWaitDelay = 50 * time.Millisecond

// ForecastRow is one 5-minute row of the polled solar forecast.
type ForecastRow struct {
	Timestamp       time.Time
	SolarForecastKW float64
}

// ForecastPoller reads the forecast CSV at path fresh on every Poll call.
// A missing file is tolerated: Poll returns ctrlerr.ErrForecastMissing so
// the caller can fall back to the day-ahead forward fill.
type ForecastPoller struct {
	path string
	loc  *time.Location
}

// NewForecastPoller returns a poller for the forecast file at path.
func NewForecastPoller(path string, loc *time.Location) *ForecastPoller {
	return &ForecastPoller{path: path, loc: loc}
}

// Poll returns every parseable row of the forecast file, keyed by
// timestamp. tNow is not used to filter the rows: the caller picks out
// the substeps of the block it needs. Rows whose timestamp or value do
// not parse are skipped.
func (p *ForecastPoller) Poll(tNow time.Time) (map[time.Time]float64, error) {
	rows, err := p.readAll()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ctrlerr.ErrForecastMissing, p.path)
		}
		return nil, fmt.Errorf("read forecast file: %w", err)
	}

	out := make(map[time.Time]float64, len(rows))
	for _, rec := range rows {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", rec[0], p.loc)
		if err != nil {
			continue
		}
		kw, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		out[ts] = kw
	}
	return out, nil
}

func (p *ForecastPoller) readAll() ([][]string, error) {
	rows, err := readCSVRows(p.path)
	if err == nil {
		return rows, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	if _, tmpErr := os.Stat(p.path + ".tmp"); tmpErr == nil {
		time.Sleep(tmpWaitDelay)
		return readCSVRows(p.path)
	}
	return nil, err
}

// ActualRow is the single-row actual solar reading for the current tick.
type ActualRow struct {
	Timestamp     time.Time
	SolarActualKW float64
}

// ActualPoller reads the actual-solar CSV at path fresh on every Poll
// call. A missing file, or no row for tNow, is tolerated by treating the
// actual reading as unavailable.
type ActualPoller struct {
	path string
	loc  *time.Location
}

// NewActualPoller returns a poller for the actual-reading file at path.
func NewActualPoller(path string, loc *time.Location) *ActualPoller {
	return &ActualPoller{path: path, loc: loc}
}

// Poll returns the actual solar reading for tNow, if present.
func (p *ActualPoller) Poll(tNow time.Time) (ActualRow, bool, error) {
	rows, err := p.readAll()
	if err != nil {
		if os.IsNotExist(err) {
			return ActualRow{}, false, nil
		}
		return ActualRow{}, false, fmt.Errorf("read actual file: %w", err)
	}

	for _, rec := range rows {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", rec[0], p.loc)
		if err != nil {
			continue
		}
		if !ts.Equal(tNow) {
			continue
		}
		kw, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		return ActualRow{Timestamp: ts, SolarActualKW: kw}, true, nil
	}

	return ActualRow{}, false, nil
}

func (p *ActualPoller) readAll() ([][]string, error) {
	rows, err := readCSVRows(p.path)
	if err == nil {
		return rows, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	if _, tmpErr := os.Stat(p.path + ".tmp"); tmpErr == nil {
		time.Sleep(tmpWaitDelay)
		return readCSVRows(p.path)
	}
	return nil, err
}
