// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"errors"
	"fmt"
	"io"
	"os"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"extract":      &extractor{},
		"profile":      &profiler{},
		"merge":        &merger{},
		"prioritize":   &prioritizer{},
		"export-numpy": &exportNumpy{},
	})
)

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// usageError marks a command line that could not be parsed.
type usageError struct {
	error
}

func (e usageError) Unwrap() error { return e.error }

// exitCode reports err (if any) on stderr and returns the exit code
// for a subcommand: 0 on success, 2 for a usage error, 1 otherwise.
func exitCode(stderr io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "%s\n", err)
	if errors.As(err, &usageError{}) {
		return 2
	}
	return 1
}
