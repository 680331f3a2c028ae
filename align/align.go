// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

// Package align implements affine-gap semiglobal pairwise alignment:
// the first sequence (x) is aligned end to end, while unaligned
// prefixes and suffixes of the second sequence (y) are free.
package align

import (
	"math"
)

// Operation is one step of an alignment path.
type Operation uint8

const (
	// x[i] aligned to an identical y[j]
	Match Operation = iota
	// x[i] aligned to a different y[j]
	Subst
	// x[i] aligned to a gap (consumes x only)
	Ins
	// y[j] aligned to a gap (consumes y only)
	Del
)

func (op Operation) String() string {
	switch op {
	case Match:
		return "Match"
	case Subst:
		return "Subst"
	case Ins:
		return "Ins"
	case Del:
		return "Del"
	default:
		return "?"
	}
}

// Step is an Operation annotated with the positions it consumes. XPos
// is -1 for Del and YPos is -1 for Ins.
type Step struct {
	Op   Operation
	XPos int
	YPos int
}

// Scoring holds the affine gap scoring scheme. Penalties are given
// as positive numbers; a gap of length k costs GapOpen + k*GapExtend.
type Scoring struct {
	Match     int
	Mismatch  int
	GapOpen   int
	GapExtend int
}

// Alignment is the result of a semiglobal alignment. x is always
// aligned over [0,len(x)); y over [YStart,YEnd).
type Alignment struct {
	Score  int
	YStart int
	YEnd   int
	Path   []Step
}

var negInf = math.MinInt32 / 2

// Aligner reuses its dynamic programming matrices between calls. It
// is not safe for concurrent use.
type Aligner struct {
	Scoring

	h, e, f [][]int
}

// NewAligner returns an Aligner using the given scoring scheme.
func NewAligner(sc Scoring) *Aligner {
	return &Aligner{Scoring: sc}
}

func (a *Aligner) score(x, y byte) int {
	if x == y {
		return a.Match
	}
	return -a.Mismatch
}

func grow(m [][]int, rows, cols int) [][]int {
	if cap(m) < rows {
		m = make([][]int, rows)
	}
	m = m[:rows]
	for i := range m {
		if cap(m[i]) < cols {
			m[i] = make([]int, cols)
		}
		m[i] = m[i][:cols]
	}
	return m
}

// Semiglobal aligns all of x against any substring of y.
//
// h[i][j] is the best score of x[:i] ending at y[j-1]; e[i][j] the
// best ending with x[i-1] against a gap; f[i][j] the best ending with
// y[j-1] against a gap. Ties in traceback prefer the diagonal, then
// insertion, then deletion, and gap opening over gap extension, so
// identical inputs always yield identical paths.
func (a *Aligner) Semiglobal(x, y []byte) Alignment {
	n, m := len(x), len(y)
	if n == 0 {
		return Alignment{}
	}
	a.h = grow(a.h, n+1, m+1)
	a.e = grow(a.e, n+1, m+1)
	a.f = grow(a.f, n+1, m+1)
	h, e, f := a.h, a.e, a.f
	open := a.GapOpen + a.GapExtend
	ext := a.GapExtend

	for j := 0; j <= m; j++ {
		h[0][j] = 0
		e[0][j] = negInf
		f[0][j] = negInf
	}
	for i := 1; i <= n; i++ {
		e[i][0] = -(a.GapOpen + i*a.GapExtend)
		h[i][0] = e[i][0]
		f[i][0] = negInf
		for j := 1; j <= m; j++ {
			e[i][j] = max(h[i-1][j]-open, e[i-1][j]-ext)
			f[i][j] = max(h[i][j-1]-open, f[i][j-1]-ext)
			h[i][j] = max(h[i-1][j-1]+a.score(x[i-1], y[j-1]), max(e[i][j], f[i][j]))
		}
	}

	yend := 0
	for j := 1; j <= m; j++ {
		if h[n][j] > h[n][yend] {
			yend = j
		}
	}
	aln := Alignment{Score: h[n][yend], YEnd: yend}

	const (
		stateH = iota
		stateE
		stateF
	)
	var rpath []Step
	i, j, state := n, yend, stateH
	for i > 0 {
		switch state {
		case stateH:
			if j > 0 && h[i][j] == h[i-1][j-1]+a.score(x[i-1], y[j-1]) {
				op := Match
				if x[i-1] != y[j-1] {
					op = Subst
				}
				rpath = append(rpath, Step{Op: op, XPos: i - 1, YPos: j - 1})
				i--
				j--
			} else if h[i][j] == e[i][j] {
				state = stateE
			} else {
				state = stateF
			}
		case stateE:
			rpath = append(rpath, Step{Op: Ins, XPos: i - 1, YPos: -1})
			if e[i][j] == h[i-1][j]-open {
				state = stateH
			}
			i--
		case stateF:
			rpath = append(rpath, Step{Op: Del, XPos: -1, YPos: j - 1})
			if f[i][j] == h[i][j-1]-open {
				state = stateH
			}
			j--
		}
	}
	aln.YStart = j
	aln.Path = make([]Step, len(rpath))
	for k, step := range rpath {
		aln.Path[len(rpath)-1-k] = step
	}
	return aln
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
