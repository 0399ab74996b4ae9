// Package controlloop orchestrates one control tick: it builds a
// block.Frame from a point-in-time ingest.Snapshot, invokes the
// configured controller, commits the battery step, and produces the
// output log row. Following the teacher's controller.Controller, the
// orchestration (Run) is kept separate from the pure per-tick computation
// (Tick) so the latter can be unit tested without a clock.
package controlloop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cepro/ems-block-dispatch/battery"
	"github.com/cepro/ems-block-dispatch/block"
	"github.com/cepro/ems-block-dispatch/ctrlerr"
	"github.com/cepro/ems-block-dispatch/heuristic"
	"github.com/cepro/ems-block-dispatch/ingest"
	"github.com/cepro/ems-block-dispatch/logsink"
	"github.com/cepro/ems-block-dispatch/qp"
)

// Config carries the controller-selection and tunables ControlLoop needs
// on every tick; it is the runtime projection of config.MPCConfig and
// config.TimeConfig.
type Config struct {
	UseQP                 bool
	TerminalSOCSoftWeight float64
	QPWeights             qp.Weights
	RampRateKWPerStep     float64
	RampConfigured        bool
	RemainingStepsDay     int
}

// BatteryActuator is the narrow capability a real battery inverter driver
// (inverterio.ModbusBattery) implements so it can stand in for the
// simulated battery.Model without ControlLoop or either controller
// changing, mirroring the teacher's powerpack.PowerPack /
// powerpack.PowerPackMock split.
type BatteryActuator interface {
	ApplySetpoint(pKW float64) error
	ReadSOC() (float64, error)
}

// ControlLoop owns the exclusive BatteryState across ticks, per §4.4's
// scheduling model: single-threaded, one tick runs to completion before
// the next begins.
type ControlLoop struct {
	model    battery.Model
	state    battery.State
	config   Config
	actuator BatteryActuator // nil selects the simulated battery.Model

	Snapshots chan ingest.Snapshot
	Rows      chan<- logsink.Row
}

// New returns a ControlLoop seeded with the battery's day-start state,
// driving the simulated battery.Model.
func New(params battery.Params, config Config, rows chan<- logsink.Row) *ControlLoop {
	return &ControlLoop{
		model:     battery.NewModel(params),
		state:     battery.NewState(params),
		config:    config,
		Snapshots: make(chan ingest.Snapshot, 1),
		Rows:      rows,
	}
}

// WithActuator swaps the simulated battery.Model for a live
// BatteryActuator: subsequent ticks apply setpoints to and read SOC from
// the actuator instead of stepping the in-process model.
func (c *ControlLoop) WithActuator(actuator BatteryActuator) *ControlLoop {
	c.actuator = actuator
	return c
}

// Run loops forever, running Tick every time a wall-clock tick arrives on
// tickerChan, using the most recently received Snapshot.
func (c *ControlLoop) Run(ctx context.Context, tickerChan <-chan time.Time) {
	slog.Info("Starting control loop",
		"use_qp", c.config.UseQP,
		"terminal_soc_soft_weight", c.config.TerminalSOCSoftWeight,
		"ramp_configured", c.config.RampConfigured,
	)

	var latest ingest.Snapshot
	var haveSnapshot bool

	for {
		select {
		case <-ctx.Done():
			return

		case snap := <-c.Snapshots:
			latest = snap
			haveSnapshot = true

		case t := <-tickerChan:
			if !haveSnapshot {
				slog.Warn("No snapshot available yet, skipping tick", "t_now", t)
				continue
			}

			row, err := c.Tick(latest)
			if err != nil {
				slog.Error("Tick failed, battery state not advanced", "t_now", t, "error", err)
				continue
			}

			select {
			case c.Rows <- row:
			default:
				slog.Warn("Row channel full, dropping tick's log row", "t_now", t)
			}
		}
	}
}

// Tick is the pure, per-tick state transition described in §4.4: it
// builds a block.Frame from snap, invokes the configured controller, and
// advances BatteryState. It returns an error (without mutating state) if
// the day-ahead target is missing or snap.Now is time-misaligned.
func (c *ControlLoop) Tick(snap ingest.Snapshot) (logsink.Row, error) {
	if !snap.DayAheadAvailable {
		return logsink.Row{}, fmt.Errorf("%w: no day-ahead target for %s", ctrlerr.ErrInputMissing, snap.Now)
	}

	frame, err := block.NewFrame(snap.Now, snap.DayAheadTarget, snap.ForecastKW, snap.ForecastAvailable, snap.ActualAvailable, snap.ActualKW)
	if err != nil {
		return logsink.Row{}, err
	}

	pKW, err := c.computeSetpoint(frame)
	if err != nil {
		slog.Warn("Controller failed, applying safe fallback", "t_now", snap.Now, "error", err)
		pKW = 0
	}

	current := frame.Substeps[frame.CurrentIndex]
	solarNow := current.Solar()
	gridOutput := solarNow + pKW

	if c.actuator != nil {
		if err := c.actuator.ApplySetpoint(pKW); err != nil {
			return logsink.Row{}, fmt.Errorf("apply setpoint: %w", err)
		}
		soc, err := c.actuator.ReadSOC()
		if err != nil {
			return logsink.Row{}, fmt.Errorf("read soc: %w", err)
		}
		c.state.EnergyKWh = soc
		c.state.LastPKW = pKW
	} else {
		c.model.Step(&c.state, pKW, block.StepMinutes)
	}

	if c.config.RemainingStepsDay > 0 {
		c.config.RemainingStepsDay--
	}

	row := logsink.Row{
		Timestamp:       snap.Now,
		BlockStart:      frame.BlockStart,
		SubstepInBlock:  current.SubstepInBlock,
		ETargetKWh:      frame.ETargetKWh,
		TargetPowerKW:   frame.ETargetKWh / 0.25,
		SolarForecastKW: current.SolarForecastKW,
		SolarActualKW:   current.SolarActualKW,
		ActualAvailable: current.ActualAvailable,
		BatteryPowerKW:  pKW,
		GridOutputKW:    gridOutput,
		SOCKWh:          c.state.EnergyKWh,
	}

	return row, nil
}

func (c *ControlLoop) computeSetpoint(frame block.Frame) (float64, error) {
	if c.config.UseQP {
		opts := qp.Options{
			Weights:           c.config.QPWeights,
			RampRateKWPerStep: c.config.RampRateKWPerStep,
			RampConfigured:    c.config.RampConfigured,
		}
		return qp.Compute(c.model, c.state, frame, opts)
	}

	opts := heuristic.Options{
		RampRateKWPerStep: c.config.RampRateKWPerStep,
		RampConfigured:    c.config.RampConfigured,
		TerminalWeight:    c.config.TerminalSOCSoftWeight,
		RemainingStepsDay: c.config.RemainingStepsDay,
	}
	return heuristic.Compute(c.model, c.state, frame, opts), nil
}
