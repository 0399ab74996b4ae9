package logsink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// csvHeader is written once when the log file is created.
var csvHeader = []string{
	"timestamp", "block_start", "substep_in_block", "e_target_kwh",
	"target_power_kw", "solar_forecast_kw", "solar_actual_kw",
	"actual_available", "battery_power_kw", "grid_output_kw", "soc_kwh",
}

// CSVWriter appends one row per tick to a log file under dir, opened and
// closed on every write per §9's resource-acquisition rule (no inter-tick
// file handle sharing).
type CSVWriter struct {
	path string
}

// NewCSVWriter returns a writer for the given log directory, creating it
// if necessary.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &CSVWriter{path: filepath.Join(dir, "tracking.csv")}, nil
}

// Append writes one Row to the log file, adding the header first if the
// file did not previously exist.
func (w *CSVWriter) Append(row Row) error {
	_, statErr := os.Stat(w.path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	if needsHeader {
		if err := writer.Write(csvHeader); err != nil {
			return fmt.Errorf("write log header: %w", err)
		}
	}

	record := []string{
		row.Timestamp.Format(time.RFC3339),
		row.BlockStart.Format(time.RFC3339),
		strconv.Itoa(row.SubstepInBlock),
		strconv.FormatFloat(row.ETargetKWh, 'f', -1, 64),
		strconv.FormatFloat(row.TargetPowerKW, 'f', -1, 64),
		strconv.FormatFloat(row.SolarForecastKW, 'f', -1, 64),
		strconv.FormatFloat(row.SolarActualKW, 'f', -1, 64),
		strconv.FormatBool(row.ActualAvailable),
		strconv.FormatFloat(row.BatteryPowerKW, 'f', -1, 64),
		strconv.FormatFloat(row.GridOutputKW, 'f', -1, 64),
		strconv.FormatFloat(row.SOCKWh, 'f', -1, 64),
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("write log row: %w", err)
	}
	writer.Flush()

	return writer.Error()
}
