package qp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/cepro/ems-block-dispatch/battery"
	"github.com/cepro/ems-block-dispatch/block"
	"github.com/cepro/ems-block-dispatch/ctrlerr"
)

// Weights are the non-negative objective coefficients of §4.3's QP.
type Weights struct {
	Track       float64 // w_track
	Magnitude   float64 // w_mag
	Smooth      float64 // w_smooth
	BlockEnergy float64 // w_block_energy
	TerminalSOC float64 // w_terminal_soc
}

// Options carries the QP's non-weight tunables.
type Options struct {
	Weights           Weights
	RampRateKWPerStep float64
	RampConfigured    bool
}

// Compute solves the receding-horizon QP for the current tick and returns
// p[0], the first control move. On infeasibility or a solver failure it
// returns 0.0 and a ctrlerr.ErrSolverFailure-wrapped error; callers should
// treat that as non-fatal and apply the fallback setpoint.
func Compute(model battery.Model, state battery.State, frame block.Frame, opts Options) (float64, error) {
	r := frame.NFuture()
	if r == 0 {
		return 0, nil
	}

	n := 2 * r
	dtH := float64(block.StepMinutes) / 60.0
	future := frame.Future()

	targetPower := frame.ETargetKWh / 0.25

	P := mat.NewDense(n, n, nil)
	q := mat.NewVecDense(n, nil)

	pVec := func(k int) *mat.VecDense {
		v := mat.NewVecDense(n, nil)
		v.SetVec(k, 1)
		v.SetVec(r+k, -1)
		return v
	}

	// E[k] = energy_kwh + eCoef(k)'x, for k = 1..r.
	eCoef := func(k int) *mat.VecDense {
		v := mat.NewVecDense(n, nil)
		for j := 0; j < k; j++ {
			v.SetVec(j, v.AtVec(j)-dtH/model.Params.EtaDischarge)
			v.SetVec(r+j, v.AtVec(r+j)+dtH*model.Params.EtaCharge)
		}
		return v
	}

	addQuadratic := func(a *mat.VecDense, c, weight float64) {
		if weight <= 0 {
			return
		}
		var outer mat.Dense
		outer.Outer(2*weight, a, a)
		P.Add(P, &outer)
		q.AddScaledVec(q, 2*weight*c, a)
	}

	// term 1: tracking.
	for k := 0; k < r; k++ {
		c := future[k].SolarForecastKW - targetPower
		addQuadratic(pVec(k), c, opts.Weights.Track)
	}

	// term 2: magnitude.
	for k := 0; k < r; k++ {
		addQuadratic(pVec(k), 0, opts.Weights.Magnitude)
	}

	// term 3: smoothness, only if r >= 2.
	if r >= 2 {
		for k := 1; k < r; k++ {
			d := mat.NewVecDense(n, nil)
			d.SubVec(pVec(k), pVec(k-1))
			addQuadratic(d, 0, opts.Weights.Smooth)
		}
	}

	// term 4: block energy.
	eSolarFuture := 0.0
	sumP := mat.NewVecDense(n, nil)
	for k := 0; k < r; k++ {
		eSolarFuture += dtH * future[k].SolarForecastKW
		sumP.AddVec(sumP, pVec(k))
	}
	sumP.ScaleVec(dtH, sumP)
	addQuadratic(sumP, eSolarFuture-frame.ETargetKWh, opts.Weights.BlockEnergy)

	// term 5: terminal SOC.
	if model.Params.SOCTerminalKWh > 0 && opts.Weights.TerminalSOC > 0 {
		eR := eCoef(r)
		addQuadratic(eR, state.EnergyKWh-model.Params.SOCTerminalKWh, opts.Weights.TerminalSOC)
	}

	var rows [][]float64
	var h []float64

	addRow := func(coefs []float64, bound float64) {
		rows = append(rows, coefs)
		h = append(h, bound)
	}

	for k := 0; k < r; k++ {
		posRow := make([]float64, n)
		posRow[k] = 1
		addRow(posRow, model.Params.PDischargeMaxKW)

		negRow := make([]float64, n)
		negRow[r+k] = 1
		addRow(negRow, model.Params.PChargeMaxKW)

		posLB := make([]float64, n)
		posLB[k] = -1
		addRow(posLB, 0)

		negLB := make([]float64, n)
		negLB[r+k] = -1
		addRow(negLB, 0)
	}

	if opts.RampConfigured {
		p0 := pVec(0)
		addRow(vecToSlice(p0), opts.RampRateKWPerStep+state.LastPKW)
		negP0 := mat.NewVecDense(n, nil)
		negP0.ScaleVec(-1, p0)
		addRow(vecToSlice(negP0), opts.RampRateKWPerStep-state.LastPKW)

		for k := 1; k < r; k++ {
			d := mat.NewVecDense(n, nil)
			d.SubVec(pVec(k), pVec(k-1))
			addRow(vecToSlice(d), opts.RampRateKWPerStep)
			negD := mat.NewVecDense(n, nil)
			negD.ScaleVec(-1, d)
			addRow(vecToSlice(negD), opts.RampRateKWPerStep)
		}
	}

	for k := 1; k <= r; k++ {
		ek := eCoef(k)
		addRow(vecToSlice(ek), model.Params.SOCMaxKWh-state.EnergyKWh)
		negEk := mat.NewVecDense(n, nil)
		negEk.ScaleVec(-1, ek)
		addRow(vecToSlice(negEk), state.EnergyKWh-model.Params.SOCMinKWh)
	}

	m := len(rows)
	G := mat.NewDense(m, n, nil)
	H := mat.NewVecDense(m, nil)
	for i, row := range rows {
		for j, v := range row {
			G.Set(i, j, v)
		}
		H.SetVec(i, h[i])
	}

	prob := Problem{P: P, Q: q, G: G, H: H}
	x0 := feasibleStart(model, state, r, n, dtH, opts)

	sol, err := Solve(prob, x0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ctrlerr.ErrSolverFailure, err)
	}

	p0 := sol.AtVec(0) - sol.AtVec(r)
	return p0, nil
}

// feasibleStart produces a starting point for the active-set solver. It
// tries the all-zero setpoint first; if the ramp constraint makes that
// infeasible it starts from the ramp-limited setpoint held flat across the
// horizon. Solve itself validates feasibility and fails closed if neither
// works.
func feasibleStart(model battery.Model, state battery.State, r, n int, dtH float64, opts Options) *mat.VecDense {
	x0 := mat.NewVecDense(n, nil)
	if !opts.RampConfigured || opts.RampRateKWPerStep >= absf(state.LastPKW) {
		return x0
	}

	p := state.LastPKW
	if p > 0 {
		p -= opts.RampRateKWPerStep
	} else {
		p += opts.RampRateKWPerStep
	}
	for k := 0; k < r; k++ {
		if p >= 0 {
			x0.SetVec(k, p)
		} else {
			x0.SetVec(r+k, -p)
		}
	}
	return x0
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func vecToSlice(v *mat.VecDense) []float64 {
	n := v.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = v.AtVec(i)
	}
	return out
}
