// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/check.v1"
)

type catalogSuite struct{}

var _ = check.Suite(&catalogSuite{})

const testCatalog = `[
  {"LocusId": "HTT", "LocusStructure": "(CAG)*", "ReferenceRegion": "chr4:3074876-3074933", "VariantType": "Repeat"},
  {"LocusId": "FMR1", "LocusStructure": "(CGG)*", "ReferenceRegion": "chrX:147912050-147912110"},
  {"LocusId": "ATXN8OS", "LocusStructure": "(A)*", "ReferenceRegion": "chr13:70139383-70139428"}
]`

func (s *catalogSuite) TestLoad(c *check.C) {
	cat, err := loadCatalog(strings.NewReader(testCatalog), nil)
	c.Assert(err, check.IsNil)
	c.Check(cat.LocusIDs(), check.DeepEquals, []string{"ATXN8OS", "FMR1", "HTT"})
	c.Check(string(cat.Motif["HTT"]), check.Equals, "CAG")
	c.Check(string(cat.Motif["FMR1"]), check.Equals, "CGG")
	c.Check(string(cat.Motif["ATXN8OS"]), check.Equals, "A")
	c.Check(cat.ReferenceRegion["HTT"], check.Equals, "chr4:3074876-3074933")
}

func (s *catalogSuite) TestFilter(c *check.C) {
	filter := &locusFilter{Pattern: `^(HTT|ATX)`}
	c.Assert(filter.Compile(), check.IsNil)
	cat, err := loadCatalog(strings.NewReader(testCatalog), filter)
	c.Assert(err, check.IsNil)
	c.Check(cat.LocusIDs(), check.DeepEquals, []string{"ATXN8OS", "HTT"})
	_, ok := cat.ReferenceRegion["FMR1"]
	c.Check(ok, check.Equals, false)

	filter = &locusFilter{Pattern: `(`}
	c.Check(filter.Compile(), check.ErrorMatches, `-filter: invalid regexp.*`)
}

func (s *catalogSuite) TestRegionFilter(c *check.C) {
	tmpdir := c.MkDir()
	err := os.WriteFile(tmpdir+"/regions.bed", []byte("chr4\t3000000\t3100000\n"), 0666)
	c.Assert(err, check.IsNil)
	filter := &locusFilter{Regions: tmpdir + "/regions.bed"}
	c.Assert(filter.Compile(), check.IsNil)
	cat, err := loadCatalog(strings.NewReader(testCatalog), filter)
	c.Assert(err, check.IsNil)
	c.Check(cat.LocusIDs(), check.DeepEquals, []string{"HTT"})
}

func (s *catalogSuite) TestMalformed(c *check.C) {
	for _, trial := range []struct {
		json  string
		index int
		field string
	}{
		{`[{"LocusStructure": "(CAG)*", "ReferenceRegion": "chr1:1-2"}]`, 0, "LocusId"},
		{`[{"LocusId": "A", "LocusStructure": "(CAG)*", "ReferenceRegion": "chr1:1-2"}, {"LocusId": "B", "LocusStructure": "(CAG)*"}]`, 1, "ReferenceRegion"},
		{`[{"LocusId": "A", "ReferenceRegion": "chr1:1-2"}]`, 0, "LocusStructure"},
		{`[{"LocusId": "A", "LocusStructure": "(A)", "ReferenceRegion": "chr1:1-2"}]`, 0, "LocusStructure"},
	} {
		_, err := loadCatalog(strings.NewReader(trial.json), nil)
		var merr *MalformedCatalogEntryError
		if c.Check(errors.As(err, &merr), check.Equals, true, check.Commentf("%s", trial.json)) {
			c.Check(merr.Index, check.Equals, trial.index)
			c.Check(merr.Field, check.Equals, trial.field)
		}
	}
}

func (s *catalogSuite) TestMalformedEvenIfFiltered(c *check.C) {
	filter := &locusFilter{Pattern: `^HTT$`}
	c.Assert(filter.Compile(), check.IsNil)
	_, err := loadCatalog(strings.NewReader(`[
  {"LocusId": "HTT", "LocusStructure": "(CAG)*", "ReferenceRegion": "chr4:3074876-3074933"},
  {"LocusId": "OTHER", "ReferenceRegion": "chr1:1-2"}
]`), filter)
	c.Check(err, check.ErrorMatches, `catalog record 1 \(OTHER\): LocusStructure: missing`)
}

func (s *catalogSuite) TestNotJSON(c *check.C) {
	_, err := loadCatalog(strings.NewReader(`{"LocusId": "HTT"`), nil)
	c.Check(err, check.ErrorMatches, `decode catalog: .*`)
}
