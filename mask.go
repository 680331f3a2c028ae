// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

type interval struct {
	start int
	end   int
}

type intervalTreeNode struct {
	interval interval
	maxend   int
}

type intervalTree []intervalTreeNode

// mask is a set of genomic intervals, queried for overlap with a
// locus reference region.
type mask struct {
	intervals map[string][]interval
	itrees    map[string]intervalTree
	frozen    bool
}

func (m *mask) Add(seqname string, start, end int) {
	if m.intervals == nil {
		m.intervals = map[string][]interval{}
	}
	m.intervals[seqname] = append(m.intervals[seqname], interval{start, end})
}

func (m *mask) Freeze() {
	m.itrees = map[string]intervalTree{}
	for seqname, intervals := range m.intervals {
		m.itrees[seqname] = m.freeze(intervals)
	}
	m.frozen = true
}

// Check returns true if [start,end] overlaps any interval on seqname.
func (m *mask) Check(seqname string, start, end int) bool {
	if !m.frozen {
		panic("bug: (*mask)Check() called before Freeze()")
	}
	return m.itrees[seqname].check(0, interval{start, end})
}

// CheckRegion is like Check, but takes a "chr:start-end" reference
// region (0-based, half-open, as in BED files and locus catalogs). A
// region that cannot be parsed never overlaps.
func (m *mask) CheckRegion(region string) bool {
	seqname, start, end, err := parseRegion(region)
	if err != nil {
		return false
	}
	return m.Check(seqname, start, end-1)
}

func (m *mask) freeze(in []interval) intervalTree {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool {
		return in[i].start < in[j].start
	})
	itreesize := 1
	for itreesize < len(in) {
		itreesize = itreesize * 2
	}
	itree := make(intervalTree, itreesize*2)
	for i := range itree {
		itree[i].maxend = -1
	}
	itree.importSlice(0, in)
	return itree
}

func (itree intervalTree) check(root int, q interval) bool {
	return root < len(itree) &&
		itree[root].maxend >= q.start &&
		((itree[root].interval.start <= q.end && itree[root].interval.end >= q.start) ||
			itree.check(root*2+1, q) ||
			itree.check(root*2+2, q))
}

func (itree intervalTree) importSlice(root int, in []interval) int {
	mid := len(in) / 2
	node := intervalTreeNode{interval: in[mid], maxend: in[mid].end}
	if mid > 0 {
		end := itree.importSlice(root*2+1, in[0:mid])
		if end > node.maxend {
			node.maxend = end
		}
	}
	if mid+1 < len(in) {
		end := itree.importSlice(root*2+2, in[mid+1:])
		if end > node.maxend {
			node.maxend = end
		}
	}
	itree[root] = node
	return node.maxend
}

// parseRegion parses "chr:start-end".
func parseRegion(region string) (seqname string, start, end int, err error) {
	colon := strings.LastIndexByte(region, ':')
	if colon < 1 {
		err = fmt.Errorf("invalid region %q", region)
		return
	}
	dash := strings.IndexByte(region[colon:], '-')
	if dash < 0 {
		err = fmt.Errorf("invalid region %q", region)
		return
	}
	seqname = region[:colon]
	start, err = strconv.Atoi(region[colon+1 : colon+dash])
	if err != nil {
		err = fmt.Errorf("invalid region %q: %w", region, err)
		return
	}
	end, err = strconv.Atoi(region[colon+dash+1:])
	if err != nil {
		err = fmt.Errorf("invalid region %q: %w", region, err)
		return
	}
	return
}

// loadBED reads "chr\tstart\tend" rows (0-based, half-open) into a
// frozen mask. Header and comment lines are skipped.
func loadBED(name string, rdr io.Reader) (*mask, error) {
	m := &mask{}
	tsv := newTSVReader(name, rdr)
	for {
		fields, err := tsv.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if strings.HasPrefix(fields[0], "#") || strings.HasPrefix(fields[0], "track") || strings.HasPrefix(fields[0], "browser") {
			continue
		}
		if len(fields) < 3 {
			return nil, tsv.Errorf("%d fields < 3", len(fields))
		}
		start, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, tsv.Errorf("start: %s", err)
		}
		end, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, tsv.Errorf("end: %s", err)
		}
		// convert to closed interval
		m.Add(fields[0], start, end-1)
	}
	m.Freeze()
	return m, nil
}
