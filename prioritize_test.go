// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"gopkg.in/check.v1"
)

type prioritizeSuite struct{}

var _ = check.Suite(&prioritizeSuite{})

func testCohort() (*mergedProfile, map[string]bool) {
	mp, err := loadMergedProfile("merged.tsv", strings.NewReader(`locus_id	reference_region	motif	read_counts	interruption_counts
L1	chr1:100-130	CAG	d1_case:4,d2_case:5,d3_case:6,d1_control:4,d2_control:5,d3_control:6	d1_case:TTT:0.3,d2_case:TTT:0.4,d3_case:TTT:0.5,d1_control:TTT:0.1,d1_case:A:+Inf,d2_control:A:0.2
L2	chr2:100-130	CAG	d1_case:4,d1_control:4,d2_control:7	d1_case:TTT:0.3
`))
	if err != nil {
		panic(err)
	}
	return mp, map[string]bool{
		"d1_case": true, "d2_case": true, "d3_case": true,
		"d1_control": false, "d2_control": false, "d3_control": false,
	}
}

func (s *prioritizeSuite) TestPrioritize(c *check.C) {
	mp, isCase := testCohort()
	assocs, err := prioritize(mp, isCase, prioritizeOptions{MinSamples: 2})
	c.Assert(err, check.IsNil)
	c.Assert(assocs, check.HasLen, 1)
	a := assocs[0]
	c.Check(a.LocusID, check.Equals, "L1")
	c.Check(a.Interruption, check.Equals, "TTT")
	c.Check(a.NCase, check.Equals, 3)
	c.Check(a.NControl, check.Equals, 3)
	c.Check(fmt.Sprintf("%.6f", a.Pvalue), check.Equals, "0.076523")
	c.Check(fmt.Sprintf("%.6f", a.CohenD), check.Equals, "4.490731")
	c.Check(fmt.Sprintf("%.6f", a.PresencePvalue), check.Equals, "0.083265")

	// L2 passes -min-samples=1, but Cohen's d is undefined with a
	// single case sample
	assocs, err = prioritize(mp, isCase, prioritizeOptions{MinSamples: 1})
	c.Assert(err, check.IsNil)
	c.Check(assocs, check.HasLen, 1)
}

func (s *prioritizeSuite) TestPaired(c *check.C) {
	mp, isCase := testCohort()
	assocs, err := prioritize(mp, isCase, prioritizeOptions{MinSamples: 2, Paired: true})
	c.Assert(err, check.IsNil)
	c.Assert(assocs, check.HasLen, 1)
	c.Check(fmt.Sprintf("%.6f", assocs[0].Pvalue), check.Equals, "0.108809")

	// L2 has only one donor with both samples
	cases, controls, err := locusGroups(mp.Loci["L2"], isCase, true)
	c.Check(err, check.IsNil)
	c.Check(cases, check.DeepEquals, []string{"d1_case"})
	c.Check(controls, check.DeepEquals, []string{"d1_control"})
}

func (s *prioritizeSuite) TestUnknownSample(c *check.C) {
	mp, isCase := testCohort()
	delete(isCase, "d3_control")
	_, err := prioritize(mp, isCase, prioritizeOptions{MinSamples: 2})
	c.Check(err, check.ErrorMatches, `locus L1: sample "d3_control" not in manifest`)
}

func (s *prioritizeSuite) TestLabels(c *check.C) {
	for label, expect := range map[string]bool{"case": true, "Case": true, "1": true, "control": false, "0": false} {
		isCase, err := parseLabel(label)
		c.Check(err, check.IsNil)
		c.Check(isCase, check.Equals, expect)
	}
	_, err := parseLabel("unknown")
	c.Check(err, check.NotNil)
	c.Check(donorID("d1_case"), check.Equals, "d1")
	c.Check(donorID("a_b_control"), check.Equals, "a_b")
	c.Check(donorID("nounderscore"), check.Equals, "nounderscore")
}

func (s *prioritizeSuite) TestWriteAssociations(c *check.C) {
	mp, isCase := testCohort()
	assocs, err := prioritize(mp, isCase, prioritizeOptions{MinSamples: 2})
	c.Assert(err, check.IsNil)
	var buf bytes.Buffer
	c.Assert(writeAssociations(&buf, assocs, true), check.IsNil)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	c.Assert(lines, check.HasLen, 2)
	c.Check(lines[0], check.Equals, "locus_id\treference_region\tmotif\tinterruption\tn_case\tn_control\tp_value\tcohen_d\tpresence_p_value\tglm_p_value\tread_counts\tinterruption_counts")
	fields := strings.Split(lines[1], "\t")
	c.Assert(fields, check.HasLen, 12)
	c.Check(fields[:6], check.DeepEquals, []string{"L1", "chr1:100-130", "CAG", "TTT", "3", "3"})
	c.Check(fields[10], check.Equals, "d1_case:4,d2_case:5,d3_case:6,d1_control:4,d2_control:5,d3_control:6")
	c.Check(fields[11], check.Equals, "d1_case:0.3,d2_case:0.4,d3_case:0.5,d1_control:0.1,d2_control:0,d3_control:0")

	buf.Reset()
	c.Assert(writeAssociations(&buf, assocs, false), check.IsNil)
	c.Check(strings.Count(buf.String(), "\t"), check.Equals, 18)
	c.Check(math.IsNaN(assocs[0].GLMPvalue) || assocs[0].GLMPvalue <= 1, check.Equals, true)
}
