// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bytes"
	"strings"

	"gopkg.in/check.v1"
)

type profileSuite struct{}

var _ = check.Suite(&profileSuite{})

func (s *profileSuite) TestWriteTo(c *check.C) {
	cat, err := loadCatalog(strings.NewReader(testCatalog), nil)
	c.Assert(err, check.IsNil)
	p := newSampleProfile()
	p.RecordRead("HTT")
	p.RecordRead("HTT")
	p.RecordRead("FMR1")
	p.RecordInterruption("HTT", "TTT", 15)
	p.RecordInterruption("HTT", "TTT", 15)
	p.RecordInterruption("HTT", "TTT", 12)
	p.RecordInterruption("HTT", "A", 15)
	var buf bytes.Buffer
	c.Assert(p.WriteTo(&buf, cat), check.IsNil)
	c.Check(buf.String(), check.Equals, `locus_id	reference_region	motif	read_count	interruption_counts
ATXN8OS	chr13:70139383-70139428	A	0	
FMR1	chrX:147912050-147912110	CGG	1	
HTT	chr4:3074876-3074933	CAG	2	A:15:1,TTT:12:1,TTT:15:2
`)
}

func (s *profileSuite) TestInterruptionCountsRoundTrip(c *check.C) {
	ics := []interruptionCount{{"TTT", 15, 1}, {"A", 150, 7}, {"GGAC", 1, 12}}
	var cell []string
	for _, ic := range ics {
		cell = append(cell, formatInterruptionCount(ic.Interruption, ic.RepeatLen, ic.Count))
	}
	c.Check(strings.Join(cell, ","), check.Equals, "TTT:15:1,A:150:7,GGAC:1:12")
	parsed, err := parseInterruptionCounts(strings.Join(cell, ","))
	c.Check(err, check.IsNil)
	c.Check(parsed, check.DeepEquals, ics)

	parsed, err = parseInterruptionCounts("")
	c.Check(err, check.IsNil)
	c.Check(parsed, check.HasLen, 0)

	for _, bad := range []string{"TTT:15", "TTT:x:1", "TTT:15:y", "TTT:15:1,", "TTT:15:-2", "TTT:-15:1"} {
		_, err = parseInterruptionCounts(bad)
		c.Check(err, check.NotNil, check.Commentf("%q", bad))
	}
}

func (s *profileSuite) TestProfileRepeatSeqs(c *check.C) {
	cat, err := loadCatalog(strings.NewReader(testCatalog), nil)
	c.Assert(err, check.IsNil)
	det := newDetector(defaultAlignParams, defaultPad, nil)
	p := newSampleProfile()
	err = profileRepeatSeqs(newTSVReader("seqs.tsv", strings.NewReader(`HTT	CAGCAGTTTCAGCAG
NOTINCATALOG	CAGCAG
HTT	CAGCAGCAGCAG

HTT	CAGCAGTTTCAGCAG
FMR1	CGGCGGAGGCGGCGG
`)), cat, det, p)
	c.Assert(err, check.IsNil)
	c.Check(p.readCounts, check.DeepEquals, map[string]int{"HTT": 3, "FMR1": 1})
	c.Check(p.interruptions["HTT"], check.DeepEquals, map[interruptionKey]int{{"TTT", 15}: 2})
	c.Check(p.interruptions["FMR1"], check.DeepEquals, map[interruptionKey]int{{"A", 15}: 1})
	_, ok := p.interruptions["NOTINCATALOG"]
	c.Check(ok, check.Equals, false)

	err = profileRepeatSeqs(newTSVReader("seqs.tsv", strings.NewReader("HTT\tCAG\nHTT\n")), cat, det, newSampleProfile())
	c.Check(err, check.ErrorMatches, `seqs.tsv line 2: 1 fields < 2`)
}
