// Package plotting renders the end-of-day summary chart described in
// §6.3: battery power & SOC, per-tick target vs. delivered (grid output)
// power, and tariff payment per block, using gonum.org/v1/plot the way the rest of
// the pack's backtesting tooling renders its charts.
package plotting

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/cepro/ems-block-dispatch/ingest"
	"github.com/cepro/ems-block-dispatch/logsink"
)

// RenderDay renders one day's tracking rows and tariff intervals to a PNG
// under dir, named by the day's date. It is a no-op caller concern: it is
// invoked only when tracking.save_plots is true. dayAhead is optional: if
// its zero value is passed, the smooth day-ahead reference trace is
// omitted from the target/delivered plot.
func RenderDay(dir string, day time.Time, rows []logsink.Row, intervals []logsink.IntervalRow, dayAhead ingest.DayAheadSeries) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	powerPlot, err := batteryPowerSOCPlot(rows)
	if err != nil {
		return fmt.Errorf("build battery power/soc plot: %w", err)
	}

	energyPlot, err := targetVsDeliveredPlot(rows, dayAhead)
	if err != nil {
		return fmt.Errorf("build target/delivered plot: %w", err)
	}

	paymentPlot, err := paymentPlot(intervals)
	if err != nil {
		return fmt.Errorf("build payment plot: %w", err)
	}

	img := vgimg.New(10*vg.Inch, 12*vg.Inch)
	dc := draw.New(img)

	tiles := draw.Tiles{Rows: 3, Cols: 1}
	canvases := plot.Align([][]*plot.Plot{{powerPlot}, {energyPlot}, {paymentPlot}}, tiles, dc)

	powerPlot.Draw(canvases[0][0])
	energyPlot.Draw(canvases[1][0])
	paymentPlot.Draw(canvases[2][0])

	path := filepath.Join(dir, day.Format("2006-01-02")+".png")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img.Image()); err != nil {
		return fmt.Errorf("encode plot png: %w", err)
	}

	return nil
}

func batteryPowerSOCPlot(rows []logsink.Row) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Battery power & SOC"
	p.X.Label.Text = "tick"
	p.Y.Label.Text = "kW / kWh"

	power := make(plotter.XYs, len(rows))
	soc := make(plotter.XYs, len(rows))
	for i, r := range rows {
		power[i].X = float64(i)
		power[i].Y = r.BatteryPowerKW
		soc[i].X = float64(i)
		soc[i].Y = r.SOCKWh
	}

	powerLine, err := plotter.NewLine(power)
	if err != nil {
		return nil, err
	}
	socLine, err := plotter.NewLine(soc)
	if err != nil {
		return nil, err
	}
	p.Add(powerLine, socLine)
	p.Legend.Add("battery power (kW)", powerLine)
	p.Legend.Add("soc (kWh)", socLine)

	return p, nil
}

func targetVsDeliveredPlot(rows []logsink.Row, dayAhead ingest.DayAheadSeries) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Target vs delivered power per block"
	p.X.Label.Text = "tick"
	p.Y.Label.Text = "kW"

	target := make(plotter.XYs, len(rows))
	delivered := make(plotter.XYs, len(rows))
	var dayAheadXY plotter.XYs
	for i, r := range rows {
		target[i].X = float64(i)
		target[i].Y = r.TargetPowerKW
		delivered[i].X = float64(i)
		delivered[i].Y = r.GridOutputKW

		if kw, ok := dayAhead.InterpolatedKW(r.Timestamp); ok {
			dayAheadXY = append(dayAheadXY, plotter.XY{X: float64(i), Y: kw})
		}
	}

	targetLine, err := plotter.NewLine(target)
	if err != nil {
		return nil, err
	}
	deliveredLine, err := plotter.NewLine(delivered)
	if err != nil {
		return nil, err
	}

	p.Add(targetLine, deliveredLine)
	p.Legend.Add("target (kW)", targetLine)
	p.Legend.Add("delivered (kW)", deliveredLine)

	if len(dayAheadXY) > 0 {
		dayAheadLine, err := plotter.NewLine(dayAheadXY)
		if err != nil {
			return nil, err
		}
		dayAheadLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(dayAheadLine)
		p.Legend.Add("day-ahead plan (kW)", dayAheadLine)
	}

	return p, nil
}

func paymentPlot(intervals []logsink.IntervalRow) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Tariff payment per block"
	p.X.Label.Text = "block"
	p.Y.Label.Text = "payment (currency)"

	values := make(plotter.Values, len(intervals))
	for i, iv := range intervals {
		values[i] = iv.PaymentCurrency
	}

	bars, err := plotter.NewBarChart(values, vg.Points(10))
	if err != nil {
		return nil, err
	}
	p.Add(bars)

	return p, nil
}
