package corner

import "gonum.org/v1/gonum/mat"

// savGolCoefficients solves the central-point Savitzky-Golay smoothing
// coefficients for a window of the given half-width and polynomial order,
// via the normal-equations least-squares fit used elsewhere in the
// ecosystem for small dense solves: build the Vandermonde design matrix A
// for offsets -halfWidth..halfWidth, then the smoothed value at the
// window centre is the first row of (AᵀA)⁻¹Aᵀ dotted with the window.
func savGolCoefficients(halfWidth, order int) []float64 {
	window := 2*halfWidth + 1
	a := mat.NewDense(window, order+1, nil)
	for i := -halfWidth; i <= halfWidth; i++ {
		row := i + halfWidth
		x := 1.0
		for p := 0; p <= order; p++ {
			a.Set(row, p, x)
			x *= float64(i)
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)

	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		// Degenerate window (order >= window length); fall back to a
		// simple moving average rather than propagate a solver error
		// into a segmentation routine that must always produce output.
		coeffs := make([]float64, window)
		for i := range coeffs {
			coeffs[i] = 1.0 / float64(window)
		}
		return coeffs
	}

	var coeffRow mat.Dense
	coeffRow.Mul(&ataInv, a.T())

	coeffs := make([]float64, window)
	for i := 0; i < window; i++ {
		coeffs[i] = coeffRow.At(0, i)
	}
	return coeffs
}

// smoothSpeed applies a Savitzky-Golay filter of the given window (metres,
// rounded to the nearest odd integer) and polynomial order to a speed
// trace sampled at 1 m spacing. Edge samples are clamped: window positions
// past either end reuse the nearest boundary sample, and the full set of
// coefficients is applied.
func smoothSpeed(speed []float64, windowM, order int) []float64 {
	if windowM%2 == 0 {
		windowM++
	}
	halfWidth := windowM / 2
	if len(speed) < windowM {
		halfWidth = (len(speed) - 1) / 2
		if halfWidth < 1 {
			out := make([]float64, len(speed))
			copy(out, speed)
			return out
		}
	}
	coeffs := savGolCoefficients(halfWidth, order)

	out := make([]float64, len(speed))
	n := len(speed)
	for i := 0; i < n; i++ {
		lo := i - halfWidth
		hi := i + halfWidth
		if lo < 0 || hi >= n {
			// Clamp at edges: reuse the boundary sample instead of
			// reading out of range, folding its weight into the edge
			// coefficient.
			sum := 0.0
			for k := -halfWidth; k <= halfWidth; k++ {
				idx := i + k
				if idx < 0 {
					idx = 0
				}
				if idx >= n {
					idx = n - 1
				}
				sum += coeffs[k+halfWidth] * speed[idx]
			}
			out[i] = sum
			continue
		}
		sum := 0.0
		for k := -halfWidth; k <= halfWidth; k++ {
			sum += coeffs[k+halfWidth] * speed[i+k]
		}
		out[i] = sum
	}
	return out
}
