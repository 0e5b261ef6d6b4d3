// Package quantize maps full-precision embedding vectors to 8-bit integer
// vectors plus a scale factor, and back.
package quantize

import (
	"fmt"
	"math"

	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// Quantize computes scale = max(|e[i]|)/127 and produces
// q[i] = round(clamp(e[i]/scale, -127, 127)) as signed 8-bit integers. If
// every component of e is zero, scale is 0 and q is all zeros.
func Quantize(e []float32) (q []int8, scale float32) {
	var maxAbs float32
	for _, v := range e {
		a := v
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}

	q = make([]int8, len(e))
	if maxAbs == 0 {
		return q, 0
	}

	scale = maxAbs / 127
	for i, v := range e {
		scaled := float64(v / scale)
		scaled = math.Round(scaled)
		if scaled > 127 {
			scaled = 127
		} else if scaled < -127 {
			scaled = -127
		}
		q[i] = int8(scaled)
	}

	return q, scale
}

// Dequantize reconstructs an approximate float32 vector: e'[i] = q[i]*scale.
func Dequantize(q []int8, scale float32) []float32 {
	e := make([]float32, len(q))
	for i, v := range q {
		e[i] = float32(v) * scale
	}
	return e
}

// CheckDimension returns InvalidShape if the vector's length does not
// match the configured dimension dim.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return cerrors.NewInvalidShape(
			fmt.Sprintf("embedding has wrong dimension: got %d, want %d", len(v), dim))
	}
	return nil
}
