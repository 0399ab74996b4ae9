package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/ems-block-dispatch/battery"
)

func validBatteryParams() battery.Params {
	return battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        50,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   50,
		PChargeMaxKW:      50,
		EtaCharge:         0.95,
		EtaDischarge:      0.95,
	}
}

func validConfig() Config {
	return Config{
		Time: TimeConfig{
			Timezone:          "Europe/London",
			DtMinutesRTU:      5,
			DtMinutesDayAhead: 15,
		},
		Battery: validBatteryParams(),
		Tracking: TrackingConfig{
			LogDir: "./log",
		},
		Ingest: IngestConfig{
			DayAheadPath: "./day_ahead.csv",
			ForecastPath: "./forecast.csv",
			ActualPath:   "./actual.csv",
		},
	}
}

func TestReadValidConfig(t *testing.T) {
	cfg := validConfig()
	content, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Time.Timezone, got.Time.Timezone)
}

func TestValidateRejectsBadGridResolution(t *testing.T) {
	cfg := validConfig()
	cfg.Time.DtMinutesDayAhead = 16 // not a multiple of 5
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeWeight(t *testing.T) {
	cfg := validConfig()
	cfg.MPC.QPWeights.Track = -1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingLogDir(t *testing.T) {
	cfg := validConfig()
	cfg.Tracking.LogDir = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingIngestPath(t *testing.T) {
	cfg := validConfig()
	cfg.Ingest.ForecastPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidatePropagatesBatteryInvariant(t *testing.T) {
	cfg := validConfig()
	cfg.Battery.EtaCharge = 0
	assert.Error(t, cfg.Validate())
}
