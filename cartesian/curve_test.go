package cartesian

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurveValueAtInterpolates(t *testing.T) {
	c := &Curve{Points: []Point{
		{X: 0, Y: 0},
		{X: 10, Y: 20},
	}}

	assert.Equal(t, 10.0, c.ValueAt(5))
	assert.Equal(t, 0.0, c.ValueAt(0))
	assert.Equal(t, 20.0, c.ValueAt(10))
}

func TestCurveValueAtOutOfSpanReturnsNaN(t *testing.T) {
	c := &Curve{Points: []Point{
		{X: 0, Y: 0},
		{X: 10, Y: 20},
	}}

	assert.True(t, math.IsNaN(c.ValueAt(-1)))
	assert.True(t, math.IsNaN(c.ValueAt(11)))
}

func TestCurveValueAtMultiSegment(t *testing.T) {
	c := &Curve{Points: []Point{
		{X: 0, Y: 0},
		{X: 10, Y: 20},
		{X: 20, Y: 10},
	}}

	assert.Equal(t, 15.0, c.ValueAt(15))
}
