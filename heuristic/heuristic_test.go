package heuristic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/ems-block-dispatch/battery"
	"github.com/cepro/ems-block-dispatch/block"
)

func newFrame(t *testing.T, eTarget float64, forecast [block.SubstepsPerBlock]float64) block.Frame {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	blockStart := time.Date(2026, 7, 31, 9, 0, 0, 0, loc)
	avail := [block.SubstepsPerBlock]bool{true, true, true}

	frame, err := block.NewFrame(blockStart, eTarget, forecast, avail, false, 0)
	require.NoError(t, err)
	return frame
}

func TestComputeNoSolarMatchesTarget(t *testing.T) {
	params := battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        50,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   50,
		PChargeMaxKW:      50,
		EtaCharge:         1,
		EtaDischarge:      1,
	}
	model := battery.NewModel(params)
	state := battery.NewState(params)

	// 3kWh over 3 5-minute steps with no solar => 12kW discharge.
	frame := newFrame(t, 3, [block.SubstepsPerBlock]float64{0, 0, 0})

	p := Compute(model, state, frame, Options{})
	assert.InDelta(t, 12.0, p, 1e-6)
}

func TestComputeSolarOffsetsDischarge(t *testing.T) {
	params := battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        50,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   50,
		PChargeMaxKW:      50,
		EtaCharge:         1,
		EtaDischarge:      1,
	}
	model := battery.NewModel(params)
	state := battery.NewState(params)

	// target 3kWh, solar forecast covers all of it.
	frame := newFrame(t, 3, [block.SubstepsPerBlock]float64{12, 12, 12})

	p := Compute(model, state, frame, Options{})
	assert.InDelta(t, 0.0, p, 1e-6)
}

func TestComputeClampsToDischargeLimit(t *testing.T) {
	params := battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        50,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   5,
		PChargeMaxKW:      5,
		EtaCharge:         1,
		EtaDischarge:      1,
	}
	model := battery.NewModel(params)
	state := battery.NewState(params)

	frame := newFrame(t, 3, [block.SubstepsPerBlock]float64{0, 0, 0})

	p := Compute(model, state, frame, Options{})
	assert.InDelta(t, 5.0, p, 1e-6)
}

func TestComputeClampsToSOCFloor(t *testing.T) {
	params := battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        1,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   50,
		PChargeMaxKW:      50,
		EtaCharge:         1,
		EtaDischarge:      1,
	}
	model := battery.NewModel(params)
	state := battery.NewState(params)

	frame := newFrame(t, 3, [block.SubstepsPerBlock]float64{0, 0, 0})

	p := Compute(model, state, frame, Options{})
	// can't drain faster than 12kW (1kWh over 5 minutes).
	assert.InDelta(t, 12.0, p, 1e-6)
}

func TestComputeRampLimitsStep(t *testing.T) {
	params := battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        50,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   50,
		PChargeMaxKW:      50,
		EtaCharge:         1,
		EtaDischarge:      1,
	}
	model := battery.NewModel(params)
	state := battery.NewState(params)
	state.LastPKW = 0

	frame := newFrame(t, 3, [block.SubstepsPerBlock]float64{0, 0, 0})

	opts := Options{RampConfigured: true, RampRateKWPerStep: 2}
	p := Compute(model, state, frame, opts)
	assert.InDelta(t, 2.0, p, 1e-6)
}

func TestComputeTerminalBiasPullsTowardTarget(t *testing.T) {
	params := battery.Params{
		EnergyCapacityKWh: 100,
		SOCInitKWh:        80,
		SOCMinKWh:         0,
		SOCMaxKWh:         100,
		PDischargeMaxKW:   50,
		PChargeMaxKW:      50,
		EtaCharge:         1,
		EtaDischarge:      1,
		SOCTerminalKWh:    20,
	}
	model := battery.NewModel(params)
	state := battery.NewState(params)

	frame := newFrame(t, 0, [block.SubstepsPerBlock]float64{0, 0, 0})

	opts := Options{TerminalWeight: 1, RemainingStepsDay: 12}
	p := Compute(model, state, frame, opts)
	// block target is flat 0, but terminal bias above soc_terminal should
	// push toward discharging.
	assert.Greater(t, p, 0.0)
}
