// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bytes"
	"os"
	"strings"

	"github.com/biogo/hts/sam"
	"gopkg.in/check.v1"
)

type extractSuite struct{}

var _ = check.Suite(&extractSuite{})

func (s *extractSuite) TestParseXG(c *check.C) {
	p := newXGParser()
	for _, trial := range []struct {
		tag        string
		locusID    string
		start, end int
		ok         bool
	}{
		{"HTT,100,0[10M]1[15M]2[5M]", "HTT", 10, 25, true},
		{"ATXN1,7,0[2S8M2D]1[3M1I2X9M]2[5M]", "ATXN1", 10, 25, true},
		{"L_2,7,0[10=]1[3M]1[6M2N]2[5M]", "L_2", 10, 19, true},
		{"HTT,100,0[10M]1[15M]", "", 0, 0, false},
		{"HTT,100,0[10M]1[15M]3[5M]", "", 0, 0, false},
		{"HTT,100,1[10M]1[15M]2[5M]", "", 0, 0, false},
		{"HTT-1,100,0[10M]1[15M]2[5M]", "", 0, 0, false},
		{"", "", 0, 0, false},
	} {
		locusID, start, end, ok := p.Parse(trial.tag)
		c.Check(ok, check.Equals, trial.ok, check.Commentf("%q", trial.tag))
		c.Check(locusID, check.Equals, trial.locusID)
		c.Check(start, check.Equals, trial.start)
		c.Check(end, check.Equals, trial.end)
	}
}

const testSAM = `@SQ	SN:chr4	LN:100000
read1	0	chr4	100	60	30M	*	0	0	AAAAAAAAAACAGCAGTTTCAGCAGGGGGG	*	XG:Z:HTT,100,0[10M]1[15M]2[5M]
read2	0	chr4	100	60	30M	*	0	0	AAAAAAAAAACAGCAGTTTCAGCAGGGGGG	*
read3	0	chr4	100	60	30M	*	0	0	AAAAAAAAAACAGCAGTTTCAGCAGGGGGG	*	XG:Z:HTT,100,0[10M]1[15M]
read4	0	chr4	100	60	30M	*	0	0	AAAAAAAAAACAGCAGTTTCAGCAGGGGGG	*	XG:Z:HTT,100,0[10M]1[25M]2[5M]
read5	0	chr4	100	60	30M	*	0	0	AAAAAAAAAACAGCAGCAGCAGCAGGGGGG	*	XG:i:5
read6	0	chr4	100	60	30M	*	0	0	AAAAAAAAAACAGCAGCAGCAGCAGGGGGG	*	XG:Z:ATXN1,7,0[2S8M2D]1[3M1I2X9M]2[5M]
`

func (s *extractSuite) TestExtractRepeatSeqs(c *check.C) {
	rdr, err := sam.NewReader(strings.NewReader(testSAM))
	c.Assert(err, check.IsNil)
	var buf bytes.Buffer
	n, err := extractRepeatSeqs(rdr, &buf)
	c.Check(err, check.IsNil)
	c.Check(n, check.Equals, 2)
	c.Check(buf.String(), check.Equals, "HTT\tCAGCAGTTTCAGCAG\nATXN1\tCAGCAGCAGCAGCAG\n")
}

func (s *extractSuite) TestExtractCommand(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/sample1.sam", []byte(testSAM), 0666)
	c.Assert(err, check.IsNil)
	exited := (&extractor{}).RunCommand("strif extract", []string{"-i", tmpdir + "/sample1.sam"}, nil, os.Stderr, os.Stderr)
	c.Assert(exited, check.Equals, 0)
	out, err := os.ReadFile(tmpdir + "/sample1.repeat_seqs.tsv")
	c.Assert(err, check.IsNil)
	c.Check(string(out), check.Equals, "HTT\tCAGCAGTTTCAGCAG\nATXN1\tCAGCAGCAGCAGCAG\n")

	exited = (&extractor{}).RunCommand("strif extract", []string{"-i", tmpdir + "/sample1.sam", "extra"}, nil, os.Stderr, os.Stderr)
	c.Check(exited, check.Equals, 2)
	exited = (&extractor{}).RunCommand("strif extract", []string{"-i", tmpdir + "/missing.bam"}, nil, os.Stderr, os.Stderr)
	c.Check(exited, check.Equals, 1)
}
