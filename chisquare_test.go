// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"fmt"

	"gopkg.in/check.v1"
)

type pvalueSuite struct{}

var _ = check.Suite(&pvalueSuite{})

func (s *pvalueSuite) TestPresencePvalue(c *check.C) {
	a := make([]bool, 54)
	b := make([]bool, 54)
	for i := 0; i < 25; i++ {
		a[i] = true
		b[i] = true
	}
	for i := 25; i < 31; i++ {
		a[i] = true
	}
	for i := 31; i < 39; i++ {
		b[i] = true
	}
	c.Check(fmt.Sprintf("%.7f", presencePvalue(a, b)), check.Equals, "0.0006297")
	for i := range a {
		a[i] = !a[i]
	}
	c.Check(fmt.Sprintf("%.7f", presencePvalue(a, b)), check.Equals, "0.0006297")
}

func (s *pvalueSuite) TestPresenceDegenerate(c *check.C) {
	// nobody has the interruption
	c.Check(presencePvalue([]bool{false, false, false, false}, []bool{true, true, false, false}), check.Equals, 1.0)
	// no controls
	c.Check(presencePvalue([]bool{true, false}, []bool{true, true}), check.Equals, 1.0)
	// everybody has it
	c.Check(presencePvalue([]bool{true, true, true}, []bool{true, false, true}), check.Equals, 1.0)
}

func (s *pvalueSuite) TestPresenceSmallTable(c *check.C) {
	// present/case 3, present/control 1, absent/case 0,
	// absent/control 2: chi2 = (3*2-1*0)^2 * 6 / (4*2*3*3) = 3
	c.Check(fmt.Sprintf("%.6f", presencePvalue(
		[]bool{true, true, true, true, false, false},
		[]bool{true, true, true, false, false, false})), check.Equals, "0.083265")
	// same table with case/control swapped
	c.Check(fmt.Sprintf("%.6f", presencePvalue(
		[]bool{true, true, true, true, false, false},
		[]bool{false, false, false, true, true, true})), check.Equals, "0.083265")
}
