// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bytes"
	"flag"
	"fmt"
	"io"

	"github.com/rashidalabri/strif/align"
)

// alignParams holds the scoring flags shared by commands that align
// repeat sequences.
type alignParams struct {
	MatchScore       int
	MismatchPenalty  int
	GapOpenPenalty   int
	GapExtendPenalty int
}

func (p *alignParams) Flags(flags *flag.FlagSet) {
	flags.IntVar(&p.MatchScore, "match-score", 1, "alignment match `score`")
	flags.IntVar(&p.MatchScore, "A", 1, "short for -match-score")
	flags.IntVar(&p.MismatchPenalty, "mismatch-penalty", 8, "alignment mismatch `penalty`")
	flags.IntVar(&p.MismatchPenalty, "B", 8, "short for -mismatch-penalty")
	flags.IntVar(&p.GapOpenPenalty, "gap-open-penalty", 10, "alignment gap open `penalty`")
	flags.IntVar(&p.GapOpenPenalty, "O", 10, "short for -gap-open-penalty")
	flags.IntVar(&p.GapExtendPenalty, "gap-extend-penalty", 1, "alignment gap extend `penalty`")
	flags.IntVar(&p.GapExtendPenalty, "E", 1, "short for -gap-extend-penalty")
}

func (p alignParams) Scoring() align.Scoring {
	return align.Scoring{
		Match:     p.MatchScore,
		Mismatch:  p.MismatchPenalty,
		GapOpen:   p.GapOpenPenalty,
		GapExtend: p.GapExtendPenalty,
	}
}

// defaultPad is the number of extra motif copies appended to a pure
// sequence.
const defaultPad = 4

// pureSeq returns motif repeated enough times to cover length bases
// plus pad extra copies.
func pureSeq(motif []byte, length, pad int) []byte {
	n := length/len(motif) + 1 + pad
	return bytes.Repeat(motif, n)
}

// detector finds interruptions in observed repeat sequences by
// aligning them to a pure repeat of the locus motif.
type detector struct {
	aligner *align.Aligner
	pad     int
	// if non-nil, each alignment is rendered here
	alignments io.Writer
}

func newDetector(params alignParams, pad int, alignments io.Writer) *detector {
	return &detector{
		aligner:    align.NewAligner(params.Scoring()),
		pad:        pad,
		alignments: alignments,
	}
}

// Detect returns the interruptions found in observed, in sequence
// order.
func (d *detector) Detect(locusID string, motif, observed []byte) ([]string, error) {
	pure := pureSeq(motif, len(observed), d.pad)
	aln := d.aligner.Semiglobal(observed, pure)
	if d.alignments != nil {
		_, err := fmt.Fprintf(d.alignments, "Locus %s:\n%s\n", locusID, aln.Pretty(observed, pure, 80))
		if err != nil {
			return nil, err
		}
	}
	return findInterruptions(aln.Path, observed), nil
}

// findInterruptions returns each maximal run of substitutions and
// insertions in path as the observed bases it covers. A run still
// open at the end of the path is included.
func findInterruptions(path []align.Step, observed []byte) []string {
	var interruptions []string
	var run []byte
	for _, step := range path {
		switch step.Op {
		case align.Subst, align.Ins:
			run = append(run, observed[step.XPos])
		default:
			if len(run) > 0 {
				interruptions = append(interruptions, string(run))
				run = run[:0]
			}
		}
	}
	if len(run) > 0 {
		interruptions = append(interruptions, string(run))
	}
	return interruptions
}
