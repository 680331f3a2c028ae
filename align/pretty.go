// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package align

import (
	"bytes"
)

// Pretty renders the aligned region as three rows (x, markers, y)
// wrapped at width columns, with a blank line between blocks. Markers
// are '|' for a match, '*' for a substitution, '+' for an insertion
// and 'x' for a deletion.
func (aln Alignment) Pretty(x, y []byte, width int) string {
	if width < 1 {
		width = 80
	}
	var xrow, mrow, yrow []byte
	for _, step := range aln.Path {
		switch step.Op {
		case Match:
			xrow = append(xrow, x[step.XPos])
			mrow = append(mrow, '|')
			yrow = append(yrow, y[step.YPos])
		case Subst:
			xrow = append(xrow, x[step.XPos])
			mrow = append(mrow, '*')
			yrow = append(yrow, y[step.YPos])
		case Ins:
			xrow = append(xrow, x[step.XPos])
			mrow = append(mrow, '+')
			yrow = append(yrow, '-')
		case Del:
			xrow = append(xrow, '-')
			mrow = append(mrow, 'x')
			yrow = append(yrow, y[step.YPos])
		}
	}
	var buf bytes.Buffer
	for start := 0; start < len(xrow); start += width {
		end := start + width
		if end > len(xrow) {
			end = len(xrow)
		}
		if start > 0 {
			buf.WriteByte('\n')
		}
		for _, row := range [][]byte{xrow, mrow, yrow} {
			buf.Write(row[start:end])
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}
