package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{
		EnergyCapacityKWh: 100000,
		SOCInitKWh:        50000,
		SOCMinKWh:         10000,
		SOCMaxKWh:         90000,
		PDischargeMaxKW:   25000,
		PChargeMaxKW:      25000,
		EtaCharge:         0.95,
		EtaDischarge:      0.95,
		SOCTerminalKWh:    50000,
	}
}

func TestParamsValidate(t *testing.T) {
	subTests := []struct {
		name    string
		mutate  func(p *Params)
		wantErr bool
	}{
		{name: "valid params", mutate: func(p *Params) {}, wantErr: false},
		{name: "zero eta_charge", mutate: func(p *Params) { p.EtaCharge = 0 }, wantErr: true},
		{name: "eta_discharge over 1", mutate: func(p *Params) { p.EtaDischarge = 1.1 }, wantErr: true},
		{name: "soc_min negative", mutate: func(p *Params) { p.SOCMinKWh = -1 }, wantErr: true},
		{name: "soc_min above soc_init", mutate: func(p *Params) { p.SOCMinKWh = p.SOCInitKWh + 1 }, wantErr: true},
		{name: "soc_terminal above soc_max", mutate: func(p *Params) { p.SOCTerminalKWh = p.SOCMaxKWh + 1 }, wantErr: true},
		{name: "soc_max above capacity", mutate: func(p *Params) { p.SOCMaxKWh = p.EnergyCapacityKWh + 1 }, wantErr: true},
	}

	for _, st := range subTests {
		t.Run(st.name, func(t *testing.T) {
			params := testParams()
			st.mutate(&params)
			err := params.Validate()
			if st.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestModelStepDischarge(t *testing.T) {
	params := testParams()
	model := NewModel(params)
	state := NewState(params)

	model.Step(&state, 1200, 5) // discharge at 1200kW for 5 minutes

	wantEnergy := params.SOCInitKWh - (5.0/60.0)*(1200/params.EtaDischarge)
	assert.InDelta(t, wantEnergy, state.EnergyKWh, 1e-6)
	assert.Equal(t, 1200.0, state.LastPKW)
}

func TestModelStepCharge(t *testing.T) {
	params := testParams()
	model := NewModel(params)
	state := NewState(params)

	model.Step(&state, -1200, 5) // charge at 1200kW for 5 minutes

	wantEnergy := params.SOCInitKWh + (5.0/60.0)*(1200*params.EtaCharge)
	assert.InDelta(t, wantEnergy, state.EnergyKWh, 1e-6)
	assert.Equal(t, -1200.0, state.LastPKW)
}

// TestModelStepLinear checks that Step is linear in p_kw within one sign, up to
// the efficiency scaling described in §8.
func TestModelStepLinear(t *testing.T) {
	params := testParams()
	model := NewModel(params)

	stateA := NewState(params)
	model.Step(&stateA, 1000, 5)
	stateB := NewState(params)
	model.Step(&stateB, 1500, 5)

	stateCombined := NewState(params)
	model.Step(&stateCombined, 2500, 5)

	deltaA := params.SOCInitKWh - stateA.EnergyKWh
	deltaB := params.SOCInitKWh - stateB.EnergyKWh
	deltaCombined := params.SOCInitKWh - stateCombined.EnergyKWh

	assert.InDelta(t, deltaCombined, deltaA+deltaB, 1e-6)
}

func TestWithinBounds(t *testing.T) {
	params := testParams()
	model := NewModel(params)

	require.True(t, model.WithinBounds(State{EnergyKWh: params.SOCMinKWh}))
	require.True(t, model.WithinBounds(State{EnergyKWh: params.SOCMaxKWh}))
	assert.False(t, model.WithinBounds(State{EnergyKWh: params.SOCMinKWh - 1}))
	assert.False(t, model.WithinBounds(State{EnergyKWh: params.SOCMaxKWh + 1}))
}

func TestMaxDischargeToFloor(t *testing.T) {
	params := testParams()
	params.SOCMinKWh = params.SOCInitKWh // battery already at the floor
	model := NewModel(params)
	state := NewState(params)

	maxP := model.MaxDischargeToFloor(state, 5)
	assert.InDelta(t, 0, maxP, 1e-9)
}

func TestMaxChargeToCeiling(t *testing.T) {
	params := testParams()
	params.SOCMaxKWh = params.SOCInitKWh // battery already at the ceiling
	model := NewModel(params)
	state := NewState(params)

	maxP := model.MaxChargeToCeiling(state, 5)
	assert.InDelta(t, 0, maxP, 1e-9)
}
