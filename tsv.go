// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// tsvReader reads tab-separated rows one line at a time. Blank lines
// are skipped and a trailing "\r" is dropped.
type tsvReader struct {
	name   string
	rdr    *bufio.Reader
	lineNo int
	rows   int
}

func newTSVReader(name string, rdr io.Reader) *tsvReader {
	return &tsvReader{name: name, rdr: bufio.NewReaderSize(rdr, 1<<20)}
}

// Read returns the fields of the next non-empty line, or io.EOF.
func (r *tsvReader) Read() ([]string, error) {
	for {
		line, err := r.rdr.ReadString('\n')
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		} else if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%s: %w", r.name, err)
		}
		r.lineNo++
		line = strings.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}
		r.rows++
		return strings.Split(line, "\t"), nil
	}
}

// Errorf returns an error prefixed with the file name and current
// line number.
func (r *tsvReader) Errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%s line %d: %s", r.name, r.lineNo, fmt.Sprintf(format, args...))
}

// IsHeader reports whether fields is the first row of the file and
// matches header exactly.
func (r *tsvReader) IsHeader(fields []string, header string) bool {
	return r.rows == 1 && strings.Join(fields, "\t") == header
}
