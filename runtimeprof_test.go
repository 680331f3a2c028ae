// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"os"

	"gopkg.in/check.v1"
)

type runtimeProfSuite struct{}

var _ = check.Suite(&runtimeProfSuite{})

func (s *runtimeProfSuite) TestWriteMemProfile(c *check.C) {
	tmpdir := c.MkDir()
	writeMemProfile(tmpdir)
	fi, err := os.Stat(tmpdir + "/mem.prof")
	c.Assert(err, check.IsNil)
	c.Check(fi.Size() > 0, check.Equals, true)
	_, err = os.Stat(tmpdir + "/mem.prof~")
	c.Check(os.IsNotExist(err), check.Equals, true)

	// unwritable directory is logged, not fatal
	writeMemProfile(tmpdir + "/does/not/exist")
}
