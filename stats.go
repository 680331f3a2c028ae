// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// rank returns the 1-based ranks of values, assigning tied values the
// average of their ranks. It also returns the tie correction term
// sum(t^3-t) over groups of t tied values.
func rank(values []float64) (ranks []float64, ties float64) {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })
	ranks = make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i + 1
		for j < len(idx) && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		if t := float64(j - i); t > 1 {
			ties += t*t*t - t
		}
		i = j
	}
	return
}

// mannWhitneyPvalue returns the two-sided Mann-Whitney U test p-value
// for x vs. y, using the normal approximation with tie and continuity
// correction.
func mannWhitneyPvalue(x, y []float64) float64 {
	n1, n2 := float64(len(x)), float64(len(y))
	if n1 == 0 || n2 == 0 {
		return math.NaN()
	}
	ranks, ties := rank(append(append([]float64(nil), x...), y...))
	r1 := 0.0
	for _, r := range ranks[:len(x)] {
		r1 += r
	}
	u := r1 - n1*(n1+1)/2
	n := n1 + n2
	sigma := math.Sqrt(n1 * n2 / 12 * ((n + 1) - ties/(n*(n-1))))
	if sigma == 0 {
		return 1
	}
	z := (math.Abs(u-n1*n2/2) - 0.5) / sigma
	return math.Min(1, 2*distuv.UnitNormal.Survival(z))
}

// wilcoxonPvalue returns the two-sided Wilcoxon signed-rank test
// p-value for paired samples x and y, using the normal approximation.
// Zero differences are discarded.
func wilcoxonPvalue(x, y []float64) float64 {
	var diffs []float64
	for i := range x {
		if d := x[i] - y[i]; d != 0 {
			diffs = append(diffs, d)
		}
	}
	if len(diffs) == 0 {
		return 1
	}
	abs := make([]float64, len(diffs))
	for i, d := range diffs {
		abs[i] = math.Abs(d)
	}
	ranks, ties := rank(abs)
	wplus := 0.0
	for i, d := range diffs {
		if d > 0 {
			wplus += ranks[i]
		}
	}
	n := float64(len(diffs))
	mean := n * (n + 1) / 4
	sigma := math.Sqrt(n*(n+1)*(2*n+1)/24 - ties/48)
	if sigma == 0 {
		return 1
	}
	z := math.Abs(wplus-mean) / sigma
	return math.Min(1, 2*distuv.UnitNormal.Survival(z))
}

// cohenD returns the difference of means divided by the pooled
// standard deviation.
func cohenD(x, y []float64) float64 {
	n1, n2 := float64(len(x)), float64(len(y))
	mean1, var1 := stat.MeanVariance(x, nil)
	mean2, var2 := stat.MeanVariance(y, nil)
	pooled := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	return (mean1 - mean2) / pooled
}
