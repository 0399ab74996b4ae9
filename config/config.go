// Package config defines the JSON configuration surface of the block
// dispatch controller: time/grid parameters, battery parameters, the
// heuristic/QP selection, and the tracking/reporting sinks.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cepro/ems-block-dispatch/battery"
	"github.com/cepro/ems-block-dispatch/ctrlerr"
	"github.com/cepro/ems-block-dispatch/qp"
)

// TimeConfig is the time.* configuration surface.
type TimeConfig struct {
	Timezone           string  `json:"timezone"`
	DayStart           string  `json:"dayStart"` // ISO-8601 local
	DayEnd             string  `json:"dayEnd"`   // ISO-8601 local
	DtMinutesRTU       int     `json:"dtMinutesRtu"`
	DtMinutesDayAhead  int     `json:"dtMinutesDayAhead"`
	MPCHorizonSteps    int     `json:"mpcHorizonSteps"` // reserved for future multi-block horizon
	RampRateKWPerStep  float64 `json:"rampRateKwPerStep"`
	RampRateConfigured bool    `json:"rampRateConfigured"`
}

// MPCConfig is the mpc.* configuration surface: controller selection and
// its tunables.
type MPCConfig struct {
	UseQP                 bool       `json:"useQp"`
	TerminalSOCSoftWeight float64    `json:"terminalSoeSoftWeight"`
	QPWeights             qp.Weights `json:"qpWeights"`
}

// TrackingConfig is the tracking.* configuration surface: the output log
// and optional chart rendering.
type TrackingConfig struct {
	LogDir    string `json:"logDir"`
	SavePlots bool   `json:"savePlots"`
}

// ReportingConfig configures the optional upload of buffered results to a
// Supabase-backed reporting platform.
type ReportingConfig struct {
	Enabled            bool   `json:"enabled"`
	DatabasePath       string `json:"databasePath"`
	UploadIntervalSecs int    `json:"uploadIntervalSecs"`
	SupabaseURL        string `json:"supabaseUrl"`
	SupabaseSchema     string `json:"supabaseSchema"`
}

// InverterConfig configures the live Modbus/TCP battery inverter driver,
// used when the battery is not simulated in-process.
type InverterConfig struct {
	Enabled          bool   `json:"enabled"`
	Host             string `json:"host"`
	PollIntervalSecs int    `json:"pollIntervalSecs"`
}

// TariffConfig carries the tariff inputs of §4.5: the fit rate, the win3
// base-source flag, and the contract/EGAT-plan base energies. These are
// constant for the life of the process — there is no per-block base-energy
// file in this system, so the same contract_kwh/egat_plan_kwh apply to
// every block of the window they serve.
type TariffConfig struct {
	FitRate           float64 `json:"fitRate"`
	HasEgatPlanInWin3 bool    `json:"hasEgatPlanInWin3"`
	ContractKWh       float64 `json:"contractKwh"`
	ContractKWhSet    bool    `json:"contractKwhSet"`
	EgatPlanKWh       float64 `json:"egatPlanKwh"`
	EgatPlanKWhSet    bool    `json:"egatPlanKwhSet"`
}

// IngestConfig locates the day-ahead, forecast, and actual CSV files that
// ingest reads, per §6.1.
type IngestConfig struct {
	DayAheadPath string `json:"dayAheadPath"`
	ForecastPath string `json:"forecastPath"`
	ActualPath   string `json:"actualPath"`
}

// Config is the root configuration document, read once at startup.
type Config struct {
	Time      TimeConfig      `json:"time"`
	Battery   battery.Params  `json:"battery"`
	MPC       MPCConfig       `json:"mpc"`
	Tariff    TariffConfig    `json:"tariff"`
	Ingest    IngestConfig    `json:"ingest"`
	Tracking  TrackingConfig  `json:"tracking"`
	Reporting ReportingConfig `json:"reporting"`
	Inverter  InverterConfig  `json:"inverter"`
}

// Read parses a JSON configuration file at path and validates it.
func Read(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the invariants of §7's ConfigInvalid failure mode:
// battery parameter bounds, positive grid resolutions, and non-negative
// weights.
func (c Config) Validate() error {
	if err := c.Battery.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ctrlerr.ErrConfigInvalid, err)
	}

	if c.Time.DtMinutesRTU <= 0 {
		return fmt.Errorf("%w: time.dtMinutesRtu must be > 0", ctrlerr.ErrConfigInvalid)
	}
	if c.Time.DtMinutesDayAhead <= 0 {
		return fmt.Errorf("%w: time.dtMinutesDayAhead must be > 0", ctrlerr.ErrConfigInvalid)
	}
	if c.Time.DtMinutesDayAhead%c.Time.DtMinutesRTU != 0 {
		return fmt.Errorf("%w: dtMinutesDayAhead must be a multiple of dtMinutesRtu", ctrlerr.ErrConfigInvalid)
	}
	if c.Time.RampRateConfigured && c.Time.RampRateKWPerStep < 0 {
		return fmt.Errorf("%w: time.rampRateKwPerStep must be >= 0", ctrlerr.ErrConfigInvalid)
	}

	weights := []struct {
		name string
		v    float64
	}{
		{"qpWeights.track", c.MPC.QPWeights.Track},
		{"qpWeights.mag", c.MPC.QPWeights.Magnitude},
		{"qpWeights.smooth", c.MPC.QPWeights.Smooth},
		{"qpWeights.blockEnergy", c.MPC.QPWeights.BlockEnergy},
		{"qpWeights.terminalSoc", c.MPC.QPWeights.TerminalSOC},
		{"terminalSoeSoftWeight", c.MPC.TerminalSOCSoftWeight},
	}
	for _, w := range weights {
		if w.v < 0 {
			return fmt.Errorf("%w: mpc.%s must be >= 0", ctrlerr.ErrConfigInvalid, w.name)
		}
	}

	if c.Tracking.LogDir == "" {
		return fmt.Errorf("%w: tracking.logDir must be set", ctrlerr.ErrConfigInvalid)
	}

	if c.Ingest.DayAheadPath == "" {
		return fmt.Errorf("%w: ingest.dayAheadPath must be set", ctrlerr.ErrConfigInvalid)
	}
	if c.Ingest.ForecastPath == "" {
		return fmt.Errorf("%w: ingest.forecastPath must be set", ctrlerr.ErrConfigInvalid)
	}
	if c.Ingest.ActualPath == "" {
		return fmt.Errorf("%w: ingest.actualPath must be set", ctrlerr.ErrConfigInvalid)
	}

	return nil
}
