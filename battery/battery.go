// Package battery models the energy state of a single battery energy storage
// system (BESS) as it is driven by a sequence of power setpoints.
package battery

import "fmt"

const (
	// withinBoundsEpsilon is the tolerance used by Model.WithinBounds, matching
	// the invariant tolerance used throughout the control loop.
	withinBoundsEpsilon = 1e-6
)

// Params is the immutable configuration of a BESS. Units are kW and kWh.
type Params struct {
	EnergyCapacityKWh float64 // nameplate energy capacity of the battery
	SOCInitKWh        float64 // stored energy at day_start
	SOCMinKWh         float64 // minimum allowed stored energy
	SOCMaxKWh         float64 // maximum allowed stored energy
	PDischargeMaxKW   float64 // maximum AC-side discharge power
	PChargeMaxKW      float64 // maximum AC-side charge power
	EtaCharge         float64 // charge efficiency, (0,1]
	EtaDischarge      float64 // discharge efficiency, (0,1]
	SOCTerminalKWh    float64 // desired end-of-day stored energy, used as a soft objective
}

// Validate checks the BatteryParams invariant from the data model: 0 ≤ soc_min ≤
// soc_init, soc_terminal ≤ soc_max ≤ energy_capacity, plus the efficiency bounds.
func (p Params) Validate() error {
	if p.EtaCharge <= 0 || p.EtaCharge > 1 {
		return fmt.Errorf("eta_charge must be in (0,1]: got %v", p.EtaCharge)
	}
	if p.EtaDischarge <= 0 || p.EtaDischarge > 1 {
		return fmt.Errorf("eta_discharge must be in (0,1]: got %v", p.EtaDischarge)
	}
	if p.SOCMinKWh < 0 {
		return fmt.Errorf("soc_min must be >= 0: got %v", p.SOCMinKWh)
	}
	if p.SOCMinKWh > p.SOCInitKWh {
		return fmt.Errorf("soc_min (%v) must be <= soc_init (%v)", p.SOCMinKWh, p.SOCInitKWh)
	}
	if p.SOCTerminalKWh > p.SOCMaxKWh {
		return fmt.Errorf("soc_terminal (%v) must be <= soc_max (%v)", p.SOCTerminalKWh, p.SOCMaxKWh)
	}
	if p.SOCMaxKWh > p.EnergyCapacityKWh {
		return fmt.Errorf("soc_max (%v) must be <= energy_capacity (%v)", p.SOCMaxKWh, p.EnergyCapacityKWh)
	}
	if p.PDischargeMaxKW < 0 || p.PChargeMaxKW < 0 {
		return fmt.Errorf("power limits must be >= 0: discharge=%v charge=%v", p.PDischargeMaxKW, p.PChargeMaxKW)
	}
	return nil
}

// State is the mutable energy state of a battery over the course of one
// simulated day. It is constructed once at day_start and mutated only by
// Model.Step.
type State struct {
	EnergyKWh float64 // current stored energy
	LastPKW   float64 // AC-side power applied at the previous step
}

// NewState returns the State at day_start, per the Lifecycle description in
// the data model: energy_kwh = soc_init_kwh, last_p_kw = 0.
func NewState(params Params) State {
	return State{
		EnergyKWh: params.SOCInitKWh,
		LastPKW:   0,
	}
}

// Model integrates a battery's energy subject to charge/discharge
// efficiencies and exposes its configured limits. It does not clip the
// setpoint passed to Step — clamping to physical/SOC bounds is the
// controller's responsibility.
type Model struct {
	Params Params
}

// NewModel returns a Model wrapping the given Params.
func NewModel(params Params) Model {
	return Model{Params: params}
}

// Step mutates state by applying p_kw for dtMinutes, following the energy
// update rule in §4.1:
//
//	p_kw >= 0 (discharge): energy -= dt_h * (p_kw / eta_discharge)
//	p_kw <  0 (charge):    energy -= dt_h * (p_kw * eta_charge)
func (m Model) Step(state *State, pKW float64, dtMinutes float64) {
	dtH := dtMinutes / 60.0

	if pKW >= 0 {
		state.EnergyKWh -= dtH * (pKW / m.Params.EtaDischarge)
	} else {
		state.EnergyKWh -= dtH * (pKW * m.Params.EtaCharge)
	}

	state.LastPKW = pKW
}

// WithinBounds returns whether the state's stored energy is within
// [soc_min - ε, soc_max + ε].
func (m Model) WithinBounds(state State) bool {
	return state.EnergyKWh >= m.Params.SOCMinKWh-withinBoundsEpsilon &&
		state.EnergyKWh <= m.Params.SOCMaxKWh+withinBoundsEpsilon
}

// MaxDischargeToFloor returns the largest discharge power (kW, >= 0) that
// would not drop the battery's stored energy below soc_min over dtMinutes.
// Used by the heuristic controller to derive the SOC-bound clamp in §4.2
// step 9; the QP controller encodes the SOC bounds as its own constraints.
func (m Model) MaxDischargeToFloor(state State, dtMinutes float64) float64 {
	dtH := dtMinutes / 60.0
	if dtH <= 0 {
		return 0
	}
	maxP := (state.EnergyKWh - m.Params.SOCMinKWh) * m.Params.EtaDischarge / dtH
	if maxP < 0 {
		return 0
	}
	return maxP
}

// MaxChargeToCeiling returns the largest charge power magnitude (kW, >= 0)
// that would not push the battery's stored energy above soc_max over
// dtMinutes.
func (m Model) MaxChargeToCeiling(state State, dtMinutes float64) float64 {
	dtH := dtMinutes / 60.0
	if dtH <= 0 {
		return 0
	}
	maxP := (m.Params.SOCMaxKWh - state.EnergyKWh) / (m.Params.EtaCharge * dtH)
	if maxP < 0 {
		return 0
	}
	return maxP
}
