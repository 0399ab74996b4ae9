package reporting

import (
	"time"

	"github.com/google/uuid"

	"github.com/cepro/ems-block-dispatch/logsink"
)

// supabaseRow holds the json encoding schema for a dispatch row in
// Supabase.
type supabaseRow struct {
	ID              uuid.UUID `json:"id"`
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

// supabaseIntervalRow holds the json encoding schema for a tariff
// interval row in Supabase.
type supabaseIntervalRow struct {
	ID                  uuid.UUID `json:"id"`
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

func supabaseRows(rows []logsink.StoredRow) []supabaseRow {
	out := make([]supabaseRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, supabaseRow{
			ID:              r.ID,
			Timestamp:       r.Row.Timestamp,
			BlockStart:      r.Row.BlockStart,
			SubstepInBlock:  r.Row.SubstepInBlock,
			ETargetKWh:      r.Row.ETargetKWh,
			TargetPowerKW:   r.Row.TargetPowerKW,
			SolarForecastKW: r.Row.SolarForecastKW,
			SolarActualKW:   r.Row.SolarActualKW,
			ActualAvailable: r.Row.ActualAvailable,
			BatteryPowerKW:  r.Row.BatteryPowerKW,
			GridOutputKW:    r.Row.GridOutputKW,
			SOCKWh:          r.Row.SOCKWh,
		})
	}
	return out
}

func supabaseIntervalRows(rows []logsink.StoredIntervalRow) []supabaseIntervalRow {
	out := make([]supabaseIntervalRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, supabaseIntervalRow{
			ID:                  r.ID,
			BlockStart:          r.IntervalRow.BlockStart,
			Window:              r.IntervalRow.Window,
			AdjustedSubinterval: r.IntervalRow.AdjustedSubinterval,
			EUseKWh:             r.IntervalRow.EUseKWh,
			BaseKWh:             r.IntervalRow.BaseKWh,
			PayableKWh:          r.IntervalRow.PayableKWh,
			ShortfallKWh:        r.IntervalRow.ShortfallKWh,
			PenaltyCurrency:     r.IntervalRow.PenaltyCurrency,
			PaymentCurrency:     r.IntervalRow.PaymentCurrency,
		})
	}
	return out
}
