// Copyright © 2023 J. Salvador Arias <jsalarias@gmail.com>
// All rights reserved.
// Distributed under BSD2 license that can be found in the LICENSE file.

package forward

import "math"

// expProb converts a log-probability to linear space, treating -Inf
// as exactly zero mass.
func expProb(lp float64) float64 {
	if negInf(lp) {
		return 0
	}
	return math.Exp(lp)
}

// negInf reports whether lp stands for log(0).
func negInf(lp float64) bool {
	return math.IsInf(lp, -1)
}
