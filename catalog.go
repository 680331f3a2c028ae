// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"regexp"
	"sort"
)

// MalformedCatalogEntryError reports a catalog record that lacks a
// required field or whose locus structure cannot be stripped down to
// a motif.
type MalformedCatalogEntryError struct {
	Index   int // position of the record in the catalog array
	LocusID string
	Field   string
	Reason  string
}

func (e *MalformedCatalogEntryError) Error() string {
	if e.LocusID == "" {
		return fmt.Sprintf("catalog record %d: %s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("catalog record %d (%s): %s: %s", e.Index, e.LocusID, e.Field, e.Reason)
}

// locusFilter decides which loci are retained. It is built once per
// command from the -filter and -regions flags and passed to the
// catalog loader and the merger.
type locusFilter struct {
	Pattern string
	Regions string

	re   *regexp.Regexp
	mask *mask
}

func (f *locusFilter) Flags(flags *flag.FlagSet) {
	flags.StringVar(&f.Pattern, "filter", "", "only include loci whose ID matches `regexp`")
	flags.StringVar(&f.Regions, "regions", "", "only include loci whose reference region overlaps an interval in this BED `file`")
}

// Compile prepares the regexp and loads the region mask, if any.
func (f *locusFilter) Compile() error {
	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("-filter: invalid regexp %q: %w", f.Pattern, err)
		}
		f.re = re
	}
	if f.Regions != "" {
		rdr, err := zopen(f.Regions)
		if err != nil {
			return err
		}
		defer rdr.Close()
		f.mask, err = loadBED(f.Regions, rdr)
		if err != nil {
			return err
		}
	}
	return nil
}

// MatchID reports whether the locus ID passes the regexp filter.
func (f *locusFilter) MatchID(locusID string) bool {
	return f == nil || f.re == nil || f.re.MatchString(locusID)
}

// MatchRegion reports whether the reference region passes the region
// mask.
func (f *locusFilter) MatchRegion(region string) bool {
	return f == nil || f.mask == nil || f.mask.CheckRegion(region)
}

// catalog maps locus IDs to repeat motifs and reference regions.
type catalog struct {
	Motif           map[string][]byte
	ReferenceRegion map[string]string
}

// LocusIDs returns the IDs of all loci in the catalog, sorted.
func (cat *catalog) LocusIDs() []string {
	ids := make([]string, 0, len(cat.Motif))
	for id := range cat.Motif {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type catalogRecord struct {
	LocusID         *string `json:"LocusId"`
	ReferenceRegion *string `json:"ReferenceRegion"`
	LocusStructure  *string `json:"LocusStructure"`
}

// loadCatalog reads a JSON array of locus records, e.g.
//
//	[{"LocusId": "HTT", "LocusStructure": "(CAG)*", "ReferenceRegion": "chr4:3074876-3074933"}]
//
// The motif is the locus structure with its leading "(" and trailing
// ")*" removed. Any malformed record fails the whole load.
func loadCatalog(rdr io.Reader, filter *locusFilter) (*catalog, error) {
	var records []catalogRecord
	err := json.NewDecoder(rdr).Decode(&records)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	cat := &catalog{
		Motif:           map[string][]byte{},
		ReferenceRegion: map[string]string{},
	}
	for i, rec := range records {
		if rec.LocusID == nil {
			return nil, &MalformedCatalogEntryError{Index: i, Field: "LocusId", Reason: "missing"}
		}
		locusID := *rec.LocusID
		if rec.ReferenceRegion == nil {
			return nil, &MalformedCatalogEntryError{Index: i, LocusID: locusID, Field: "ReferenceRegion", Reason: "missing"}
		}
		if rec.LocusStructure == nil {
			return nil, &MalformedCatalogEntryError{Index: i, LocusID: locusID, Field: "LocusStructure", Reason: "missing"}
		}
		structure := *rec.LocusStructure
		if len(structure) < 4 {
			return nil, &MalformedCatalogEntryError{Index: i, LocusID: locusID, Field: "LocusStructure", Reason: fmt.Sprintf("%q is too short to contain a motif", structure)}
		}
		if !filter.MatchID(locusID) || !filter.MatchRegion(*rec.ReferenceRegion) {
			continue
		}
		cat.Motif[locusID] = []byte(structure[1 : len(structure)-2])
		cat.ReferenceRegion[locusID] = *rec.ReferenceRegion
	}
	return cat, nil
}
