// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var chisquared = distuv.ChiSquared{K: 1, Src: rand.NewSource(rand.Uint64())}

// presencePvalue returns the Pearson chi-square p-value (no
// continuity correction) for the 2x2 table of present (interruption
// observed in sample) against isCase. It returns 1 if any row or
// column of the table is empty.
func presencePvalue(present, isCase []bool) float64 {
	// obs[p][c]: p is 1 if present, c is 1 if case
	var obs [2][2]float64
	for i, yi := range isCase {
		p, c := 0, 0
		if present[i] {
			p = 1
		}
		if yi {
			c = 1
		}
		obs[p][c]++
	}
	var rows, cols [2]float64
	for p := range obs {
		for c := range obs[p] {
			rows[p] += obs[p][c]
			cols[c] += obs[p][c]
		}
	}
	if rows[0] == 0 || rows[1] == 0 || cols[0] == 0 || cols[1] == 0 {
		return 1
	}
	sz := rows[0] + rows[1]
	var sum float64
	for p := range obs {
		for c := range obs[p] {
			exp := rows[p] * cols[c] / sz
			d := obs[p][c] - exp
			sum += d * d / exp
		}
	}
	return chisquared.Survival(sum)
}
