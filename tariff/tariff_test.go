package tariff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cepro/ems-block-dispatch/ctrlerr"
)

func mustLoc(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	return loc
}

func TestClassifyWindow(t *testing.T) {
	loc := mustLoc(t)

	cases := []struct {
		name string
		hour int
		min  int
		want WindowKind
	}{
		{"09:00 start of W1", 9, 0, Window1},
		{"15:45 still W1", 15, 45, Window1},
		{"16:00 is W3 per boundary", 16, 0, Window3},
		{"06:00 is W3", 6, 0, Window3},
		{"08:45 still morning W3", 8, 45, Window3},
		{"17:45 still evening W3", 17, 45, Window3},
		{"18:00 is W2", 18, 0, Window2},
		{"02:00 overnight W2", 2, 0, Window2},
		{"23:45 overnight W2", 23, 45, Window2},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			blockStart := time.Date(2026, 7, 31, c.hour, c.min, 0, 0, loc)
			got, err := ClassifyWindow(blockStart)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestEvaluatePayableCapAtBase(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	in := Inputs{ContractKWh: 10, ContractKWhSet: true, FitRate: 5}
	result, err := Evaluate(blockStart, 15, in)
	require.NoError(t, err)

	assert.Equal(t, Window1, result.Window)
	assert.InDelta(t, 10.0, result.PayableKWh, 1e-9)
	assert.InDelta(t, 0.0, result.ShortfallKWh, 1e-9)
	assert.InDelta(t, 0.0, result.PenaltyCurrency, 1e-9)
	assert.InDelta(t, 50.0, result.PaymentCurrency, 1e-9)
}

func TestEvaluateShortfallPenalty(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	in := Inputs{ContractKWh: 10, ContractKWhSet: true, FitRate: 5}
	result, err := Evaluate(blockStart, 4, in)
	require.NoError(t, err)

	assert.InDelta(t, 4.0, result.PayableKWh, 1e-9)
	assert.InDelta(t, 6.0, result.ShortfallKWh, 1e-9)
	assert.InDelta(t, 6.0*5*0.12, result.PenaltyCurrency, 1e-9)
	assert.InDelta(t, 4.0*5-6.0*5*0.12, result.PaymentCurrency, 1e-9)
}

func TestEvaluateContinuityAtBase(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	in := Inputs{ContractKWh: 10, ContractKWhSet: true, FitRate: 5}
	result, err := Evaluate(blockStart, 10, in)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.PaymentCurrency, 1e-9)
}

func TestEvaluateAdjustedSubinterval(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 18, 0, 0, 0, loc)

	in := Inputs{EgatPlanKWh: 100, EgatPlanKWhSet: true, FitRate: 1}
	result, err := Evaluate(blockStart, 15, in)
	require.NoError(t, err)

	assert.True(t, result.AdjustedSubinterval)
	assert.InDelta(t, 15*14.0/15.0, result.EUseKWh, 1e-9)
}

func TestEvaluateMissingWindowInput(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)

	_, err := Evaluate(blockStart, 5, Inputs{FitRate: 1})
	assert.ErrorIs(t, err, ctrlerr.ErrTariffInputMissing)
}

func TestEvaluateWindow3FallsBackToContract(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 7, 0, 0, 0, loc)

	in := Inputs{ContractKWh: 20, ContractKWhSet: true, HasEgatPlanInWin3: false, FitRate: 2}
	result, err := Evaluate(blockStart, 5, in)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, result.BaseKWh, 1e-9)
}

func TestEvaluateMisalignedBlock(t *testing.T) {
	loc := mustLoc(t)
	blockStart := time.Date(2026, 7, 31, 10, 7, 0, 0, loc)

	_, err := Evaluate(blockStart, 5, Inputs{ContractKWh: 1, ContractKWhSet: true, FitRate: 1})
	assert.Error(t, err)
}
