// Package tariff evaluates delivered-energy blocks against the
// feed-in-tariff rules: window classification, base-energy lookup, and the
// shortfall/penalty payment formula.
package tariff

import (
	"fmt"
	"time"

	"github.com/cepro/ems-block-dispatch/ctrlerr"
	"github.com/cepro/ems-block-dispatch/timeutils"
)

// WindowKind identifies which of the three tariff windows a 15-minute
// block belongs to.
type WindowKind int

const (
	WindowUnclassified WindowKind = iota
	Window1
	Window2
	Window3
)

func (w WindowKind) String() string {
	switch w {
	case Window1:
		return "W1"
	case Window2:
		return "W2"
	case Window3:
		return "W3"
	default:
		return "unclassified"
	}
}

// EighteenHundredBelongsToWindow2 records the resolution of the 18:00
// boundary-block ambiguity: the block starting at 18:00 is classified as
// Window2 (overnight), not Window3, per the half-open window definitions.
const EighteenHundredBelongsToWindow2 = true

// SixteenHundredUsesWindow1Base records the resolution of the 16:00
// boundary-block ambiguity: the 16:00 block is classified Window3 (peak)
// for rate purposes but its adjustment accounting inherits Window1's base
// input, since it is the final sub-interval of the Window1 span.
const SixteenHundredUsesWindow1Base = true

// windowPeriods builds the three window-boundary periods anchored to loc,
// so that clock-time comparisons are made in the block's own locale rather
// than a fixed zone.
func windowPeriods(loc *time.Location) (w1, w3Morning, w3Evening timeutils.ClockTimePeriod) {
	at := func(hour int) timeutils.ClockTime {
		return timeutils.ClockTime{Hour: hour, Location: loc}
	}
	return timeutils.ClockTimePeriod{Start: at(9), End: at(16)},
		timeutils.ClockTimePeriod{Start: at(6), End: at(9)},
		timeutils.ClockTimePeriod{Start: at(16), End: at(18)}
}

// ClassifyWindow returns the tariff window for a block's start-of-block
// local time, per §4.5's half-open window definitions.
func ClassifyWindow(blockStart time.Time) (WindowKind, error) {
	w1, w3Morning, w3Evening := windowPeriods(blockStart.Location())

	if w1.ContainsHalfOpen(blockStart) {
		return Window1, nil
	}
	if w3Morning.ContainsHalfOpen(blockStart) || w3Evening.ContainsHalfOpen(blockStart) {
		return Window3, nil
	}

	// Anything not in W1 or W3 is the overnight window: tod < 06:00 or
	// tod >= 18:00, which is exactly the complement of the two periods
	// above given they jointly cover [06:00, 18:00).
	hour, _, _ := blockStart.Clock()
	if hour < 6 || hour >= 18 {
		return Window2, nil
	}

	return WindowUnclassified, fmt.Errorf("%w: %s", ctrlerr.ErrUnclassifiedWindow, blockStart)
}

// isAdjustedSubinterval reports whether blockStart is one of the three
// boundary blocks (06:00, 16:00, 18:00) whose metered energy must be
// scaled by 14/15 before the payment rules are applied.
func isAdjustedSubinterval(blockStart time.Time) bool {
	hour, minute, second := blockStart.Clock()
	if minute != 0 || second != 0 {
		return false
	}
	return hour == 6 || hour == 16 || hour == 18
}

// Inputs are the block-specific base-energy inputs that Evaluate needs,
// per §4.5's base-energy table.
type Inputs struct {
	ContractKWh       float64
	ContractKWhSet    bool
	EgatPlanKWh       float64
	EgatPlanKWhSet    bool
	HasEgatPlanInWin3 bool
	FitRate           float64
}

// Result is the per-block evaluation: window classification, adjustment,
// and the payment breakdown described as IntervalResult.
type Result struct {
	Window              WindowKind
	AdjustedSubinterval bool
	EUseKWh             float64
	BaseKWh             float64
	PayableKWh          float64
	ShortfallKWh        float64
	PenaltyCurrency     float64
	PaymentCurrency     float64
}

// penaltyRate is the fixed fraction of fit_rate applied to the shortfall,
// per §4.5's payment formula.
const penaltyRate = 0.12

// boundarySubintervalFraction is the 14/15 scaling applied to metered
// energy at an adjusted boundary block.
const boundarySubintervalFraction = 14.0 / 15.0

// Evaluate maps a block's metered energy to a payment, per §4.5. It
// returns a ctrlerr.ErrTariffInputMissing-wrapped error if the window's
// required base is not set, a ctrlerr.ErrMisaligned-wrapped error if
// blockStart is not on the 15-minute grid, or a
// ctrlerr.ErrUnclassifiedWindow-wrapped error defensively.
func Evaluate(blockStart time.Time, eMeteredKWh float64, in Inputs) (Result, error) {
	if !timeutils.OnGrid(blockStart, 15) {
		return Result{}, fmt.Errorf("%w: %s", ctrlerr.ErrMisaligned, blockStart)
	}

	window, err := ClassifyWindow(blockStart)
	if err != nil {
		return Result{}, err
	}

	adjusted := isAdjustedSubinterval(blockStart)

	eUse := eMeteredKWh
	if adjusted {
		eUse *= boundarySubintervalFraction
	}

	baseWindow := window
	if SixteenHundredUsesWindow1Base && window == Window3 && adjusted && blockStart.Hour() == 16 {
		baseWindow = Window1
	}

	var base float64
	switch baseWindow {
	case Window1:
		if !in.ContractKWhSet {
			return Result{}, fmt.Errorf("%w: contract_kwh required for W1 block at %s", ctrlerr.ErrTariffInputMissing, blockStart)
		}
		base = in.ContractKWh
	case Window2:
		if !in.EgatPlanKWhSet {
			return Result{}, fmt.Errorf("%w: egat_plan_kwh required for W2 block at %s", ctrlerr.ErrTariffInputMissing, blockStart)
		}
		base = in.EgatPlanKWh
	case Window3:
		if in.HasEgatPlanInWin3 {
			if !in.EgatPlanKWhSet {
				return Result{}, fmt.Errorf("%w: egat_plan_kwh required for W3 block at %s", ctrlerr.ErrTariffInputMissing, blockStart)
			}
			base = in.EgatPlanKWh
		} else {
			if !in.ContractKWhSet {
				return Result{}, fmt.Errorf("%w: contract_kwh required for W3 block at %s", ctrlerr.ErrTariffInputMissing, blockStart)
			}
			base = in.ContractKWh
		}
	default:
		return Result{}, fmt.Errorf("%w: %s", ctrlerr.ErrUnclassifiedWindow, blockStart)
	}

	result := Result{
		Window:              window,
		AdjustedSubinterval: adjusted,
		EUseKWh:             eUse,
		BaseKWh:             base,
	}

	if eUse > base {
		result.PayableKWh = base
		result.ShortfallKWh = 0
		result.PenaltyCurrency = 0
	} else {
		result.PayableKWh = eUse
		result.ShortfallKWh = base - eUse
		result.PenaltyCurrency = result.ShortfallKWh * in.FitRate * penaltyRate
	}

	result.PaymentCurrency = result.PayableKWh*in.FitRate - result.PenaltyCurrency

	return result, nil
}
