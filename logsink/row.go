// Package logsink persists per-tick control rows and per-block tariff
// results: an append-only CSV log per §6, and a buffered SQLite
// repository (mirroring the teacher's repository.Repository) that
// decouples writing from the optional reporting upload.
package logsink

import "time"

// Row is one tick's output log row, with columns exactly as specified in
// §6's Output log.
type Row struct {
	Timestamp       time.Time `json:"timestamp"`
	BlockStart      time.Time `json:"block_start"`
	SubstepInBlock  int       `json:"substep_in_block"`
	ETargetKWh      float64   `json:"e_target_kwh"`
	TargetPowerKW   float64   `json:"target_power_kw"`
	SolarForecastKW float64   `json:"solar_forecast_kw"`
	SolarActualKW   float64   `json:"solar_actual_kw"`
	ActualAvailable bool      `json:"actual_available"`
	BatteryPowerKW  float64   `json:"battery_power_kw"`
	GridOutputKW    float64   `json:"grid_output_kw"`
	SOCKWh          float64   `json:"soc_kwh"`
}

// IntervalRow is one block's tariff evaluation, the persisted shape of
// §3.1's IntervalResult.
type IntervalRow struct {
	BlockStart          time.Time `json:"block_start"`
	Window              string    `json:"window"`
	AdjustedSubinterval bool      `json:"adjusted_subinterval"`
	EUseKWh             float64   `json:"e_use_kwh"`
	BaseKWh             float64   `json:"base_kwh"`
	PayableKWh          float64   `json:"payable_kwh"`
	ShortfallKWh        float64   `json:"shortfall_kwh"`
	PenaltyCurrency     float64   `json:"penalty_currency"`
	PaymentCurrency     float64   `json:"payment_currency"`
}
