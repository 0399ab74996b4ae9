// Package heuristic implements the closed-form block-energy controller: it
// distributes the residual block energy across the remaining substeps,
// clamped by ramp, power, and SOC constraints.
package heuristic

import (
	"github.com/cepro/ems-block-dispatch/battery"
	"github.com/cepro/ems-block-dispatch/block"
)

// Options carries the tunable parameters of the heuristic, beyond what's in
// battery.Params, per §6's mpc.* configuration surface.
type Options struct {
	RampRateKWPerStep float64 // max change from the previous setpoint; ignored unless RampConfigured
	RampConfigured    bool    // false disables the ramp constraint
	TerminalWeight    float64 // mpc.terminal_soc_soft_weight, >= 0
	RemainingStepsDay int     // remaining 5-minute steps in the simulated day, including this one
}

// Compute returns the battery setpoint (kW, +ve discharge) for the current
// tick, following §4.2. It never fails — out-of-bound requests are
// saturated silently.
func Compute(model battery.Model, state battery.State, frame block.Frame, opts Options) float64 {
	dtH := float64(block.StepMinutes) / 60.0

	eSolarPast := 0.0
	for _, s := range frame.Past() {
		eSolarPast += dtH * s.Solar()
	}

	eSolarFuture := 0.0
	for _, s := range frame.Future() {
		eSolarFuture += dtH * s.SolarForecastKW
	}

	eBessNeeded := frame.ETargetKWh - (eSolarPast + eSolarFuture)

	nFuture := frame.NFuture()
	if nFuture == 0 {
		return 0
	}
	pDes := eBessNeeded / (float64(nFuture) * dtH)

	if model.Params.SOCTerminalKWh > 0 && opts.TerminalWeight > 0 && opts.RemainingStepsDay > 0 {
		pDes += opts.TerminalWeight * (state.EnergyKWh - model.Params.SOCTerminalKWh) / (float64(opts.RemainingStepsDay) * dtH)
	}

	p := pDes
	if opts.RampConfigured {
		p = clamp(p, state.LastPKW-opts.RampRateKWPerStep, state.LastPKW+opts.RampRateKWPerStep)
	}

	p = clamp(p, -model.Params.PChargeMaxKW, model.Params.PDischargeMaxKW)

	if p > 0 {
		maxDischarge := model.MaxDischargeToFloor(state, block.StepMinutes)
		if p > maxDischarge {
			p = maxDischarge
		}
	} else if p < 0 {
		maxCharge := model.MaxChargeToCeiling(state, block.StepMinutes)
		if -p > maxCharge {
			p = -maxCharge
		}
	}

	p = clamp(p, -model.Params.PChargeMaxKW, model.Params.PDischargeMaxKW)

	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
