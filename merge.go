// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	_ "net/http/pprof"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// MissingReadDepthError reports a manifest sample with no entry in
// the read-depth table.
type MissingReadDepthError struct {
	SampleID string
}

func (e *MissingReadDepthError) Error() string {
	return fmt.Sprintf("sample %q: no average read depth given", e.SampleID)
}

type manifestEntry struct {
	SampleID    string
	Label       string // case/control, not used by merge
	ProfilePath string
}

// loadManifest reads "sample_id\tlabel\tprofile_path" rows.
func loadManifest(name string, rdr io.Reader) ([]manifestEntry, error) {
	var manifest []manifestEntry
	tsv := newTSVReader(name, rdr)
	for {
		fields, err := tsv.Read()
		if err == io.EOF {
			return manifest, nil
		} else if err != nil {
			return nil, err
		}
		if len(fields) < 3 {
			return nil, tsv.Errorf("%d fields < 3", len(fields))
		}
		manifest = append(manifest, manifestEntry{SampleID: fields[0], Label: fields[1], ProfilePath: fields[2]})
	}
}

// loadReadDepths reads "sample_id\taverage_read_depth" rows.
func loadReadDepths(name string, rdr io.Reader) (map[string]float64, error) {
	depths := map[string]float64{}
	tsv := newTSVReader(name, rdr)
	for {
		fields, err := tsv.Read()
		if err == io.EOF {
			return depths, nil
		} else if err != nil {
			return nil, err
		}
		if len(fields) < 2 {
			return nil, tsv.Errorf("%d fields < 2", len(fields))
		}
		depth, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, tsv.Errorf("read depth: %s", err)
		}
		depths[fields[0]] = depth
	}
}

// normalizeCount converts a raw interruption count into a rate per
// possible start offset and per unit of read depth.
func normalizeCount(count, readLength, repeatLen int, depth float64) float64 {
	return float64(count) / (float64(readLength-repeatLen+1) * depth)
}

func validCount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

type sampleCount struct {
	SampleID string
	Count    int
}

type sampleInterruption struct {
	SampleID     string
	Interruption string
}

const mergedHeader = "locus_id\treference_region\tmotif\tread_counts\tinterruption_counts"

type mergedLocus struct {
	ReferenceRegion string
	Motif           string
	ReadCounts      []sampleCount
	// keys of Interruptions, in the order they were first seen
	Keys          []sampleInterruption
	Interruptions map[sampleInterruption]float64
}

func (ml *mergedLocus) add(key sampleInterruption, value float64) {
	if _, ok := ml.Interruptions[key]; !ok {
		ml.Keys = append(ml.Keys, key)
	}
	ml.Interruptions[key] += value
}

// mergedProfile accumulates per-sample profiles into one
// depth-normalized cohort table.
type mergedProfile struct {
	Loci map[string]*mergedLocus

	ReadLength   int
	MinReadCount int
	Filter       *locusFilter
}

func newMergedProfile(readLength, minReadCount int, filter *locusFilter) *mergedProfile {
	return &mergedProfile{
		Loci:         map[string]*mergedLocus{},
		ReadLength:   readLength,
		MinReadCount: minReadCount,
		Filter:       filter,
	}
}

// AddSample streams one per-sample profile table into the merged
// profile.
func (mp *mergedProfile) AddSample(sampleID string, depth float64, tsv *tsvReader) error {
	for {
		fields, err := tsv.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if tsv.IsHeader(fields, profileHeader) {
			continue
		}
		if len(fields) < 4 {
			return tsv.Errorf("%d fields < 4", len(fields))
		}
		locusID, region, motif := fields[0], fields[1], fields[2]
		if !mp.Filter.MatchID(locusID) || !mp.Filter.MatchRegion(region) {
			continue
		}
		readCount, err := parseCount(fields[3])
		if err != nil {
			return tsv.Errorf("read count: %s", err)
		}
		if readCount < mp.MinReadCount {
			continue
		}
		ml := mp.Loci[locusID]
		if ml == nil {
			ml = &mergedLocus{
				ReferenceRegion: region,
				Motif:           motif,
				Interruptions:   map[sampleInterruption]float64{},
			}
			mp.Loci[locusID] = ml
		}
		ml.ReadCounts = append(ml.ReadCounts, sampleCount{sampleID, readCount})
		if len(fields) < 5 {
			continue
		}
		ics, err := parseInterruptionCounts(fields[4])
		if err != nil {
			return tsv.Errorf("%s", err)
		}
		for _, ic := range ics {
			logger := log.WithFields(log.Fields{
				"sample":       sampleID,
				"locus":        locusID,
				"interruption": ic.Interruption,
			})
			if ic.RepeatLen <= 0 || ic.RepeatLen > mp.ReadLength {
				logger.WithField("repeat_len", ic.RepeatLen).Warnf("repeat length outside (0, %d]", mp.ReadLength)
			}
			normalized := normalizeCount(ic.Count, mp.ReadLength, ic.RepeatLen, depth)
			if !validCount(normalized) {
				logger.WithField("normalized_count", normalized).Warn("invalid normalized count")
			}
			ml.add(sampleInterruption{sampleID, ic.Interruption}, normalized)
		}
	}
}

// LocusIDs returns the IDs of all merged loci, sorted.
func (mp *mergedProfile) LocusIDs() []string {
	ids := make([]string, 0, len(mp.Loci))
	for id := range mp.Loci {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (mp *mergedProfile) WriteTo(w io.Writer) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprint(bufw, mergedHeader+"\n")
	for _, locusID := range mp.LocusIDs() {
		ml := mp.Loci[locusID]
		readCounts := make([]string, len(ml.ReadCounts))
		for i, rc := range ml.ReadCounts {
			readCounts[i] = rc.SampleID + ":" + strconv.Itoa(rc.Count)
		}
		interruptions := make([]string, len(ml.Keys))
		for i, key := range ml.Keys {
			interruptions[i] = key.SampleID + ":" + key.Interruption + ":" + strconv.FormatFloat(ml.Interruptions[key], 'f', -1, 64)
		}
		_, err := fmt.Fprintf(bufw, "%s\t%s\t%s\t%s\t%s\n", locusID, ml.ReferenceRegion, ml.Motif, strings.Join(readCounts, ","), strings.Join(interruptions, ","))
		if err != nil {
			return err
		}
	}
	return bufw.Flush()
}

// loadMergedProfile reads a table written by (*mergedProfile)WriteTo.
func loadMergedProfile(name string, rdr io.Reader) (*mergedProfile, error) {
	mp := newMergedProfile(0, 0, nil)
	tsv := newTSVReader(name, rdr)
	for {
		fields, err := tsv.Read()
		if err == io.EOF {
			return mp, nil
		} else if err != nil {
			return nil, err
		}
		if tsv.IsHeader(fields, mergedHeader) {
			continue
		}
		if len(fields) < 4 {
			return nil, tsv.Errorf("%d fields < 4", len(fields))
		}
		ml := &mergedLocus{
			ReferenceRegion: fields[1],
			Motif:           fields[2],
			Interruptions:   map[sampleInterruption]float64{},
		}
		if fields[3] != "" {
			for _, entry := range strings.Split(fields[3], ",") {
				colon := strings.LastIndexByte(entry, ':')
				if colon < 0 {
					return nil, tsv.Errorf("malformed read count %q", entry)
				}
				count, err := parseCount(entry[colon+1:])
				if err != nil {
					return nil, tsv.Errorf("read count %q: %s", entry, err)
				}
				ml.ReadCounts = append(ml.ReadCounts, sampleCount{entry[:colon], count})
			}
		}
		if len(fields) > 4 && fields[4] != "" {
			for _, entry := range strings.Split(fields[4], ",") {
				parts := strings.Split(entry, ":")
				if len(parts) != 3 {
					return nil, tsv.Errorf("malformed interruption count %q", entry)
				}
				value, err := strconv.ParseFloat(parts[2], 64)
				if err != nil {
					return nil, tsv.Errorf("interruption count %q: %s", entry, err)
				}
				ml.add(sampleInterruption{parts[0], parts[1]}, value)
			}
		}
		mp.Loci[fields[0]] = ml
	}
}

type merger struct {
	filter locusFilter
}

func (cmd *merger) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	pprofdir := flags.String("pprof-dir", "", "write Go profile data to `directory` periodically")
	manifestFilename := flags.String("manifest", "", "manifest `file` (sample_id, case/control, profile path)")
	depthsFilename := flags.String("read-depths", "", "average read depth `file` (sample_id, depth)")
	outputFilename := flags.String("o", "", "output `file` (default {manifest prefix}.merged_profile.tsv)")
	minReadCount := flags.Int("min-read-count", 1, "ignore a sample's locus row if it has fewer than `N` reads")
	readLength := flags.Int("read-length", 150, "sequencing read `length`")
	skipMissingDepth := flags.Bool("skip-missing-depth", false, "skip samples with no read depth instead of failing")
	cmd.filter.Flags(flags)
	err = flags.Parse(args)
	if err == flag.ErrHelp {
		err = nil
		return 0
	} else if err != nil {
		return 2
	} else if flags.NArg() > 0 {
		err = fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())
		return 2
	}
	if *manifestFilename == "" || *depthsFilename == "" {
		err = errors.New("must specify -manifest and -read-depths")
		return 2
	}
	if *outputFilename == "" {
		*outputFilename = defaultOutPath(*manifestFilename, "merged_profile", "tsv")
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}
	if *pprofdir != "" {
		go writeProfilesPeriodically(*pprofdir, time.Minute)
	}

	err = cmd.filter.Compile()
	if err != nil {
		return 1
	}
	manifest, err := loadManifestFile(*manifestFilename)
	if err != nil {
		return 1
	}
	f, err := zopen(*depthsFilename)
	if err != nil {
		return 1
	}
	depths, err := loadReadDepths(*depthsFilename, f)
	f.Close()
	if err != nil {
		return 1
	}

	mp := newMergedProfile(*readLength, *minReadCount, &cmd.filter)
	err = mergeSamples(mp, manifest, depths, *skipMissingDepth)
	if err != nil {
		return 1
	}

	log.Infof("writing %d loci to %s", len(mp.Loci), *outputFilename)
	output, err := zcreate(*outputFilename)
	if err != nil {
		return 1
	}
	defer output.Close()
	err = mp.WriteTo(output)
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}
	return 0
}

func loadManifestFile(fnm string) ([]manifestEntry, error) {
	f, err := zopen(fnm)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loadManifest(fnm, f)
}

// mergeSamples adds each manifest sample's profile to mp, in manifest
// order.
func mergeSamples(mp *mergedProfile, manifest []manifestEntry, depths map[string]float64, skipMissingDepth bool) error {
	for i, ent := range manifest {
		depth, ok := depths[ent.SampleID]
		if !ok {
			err := &MissingReadDepthError{SampleID: ent.SampleID}
			if !skipMissingDepth {
				return err
			}
			log.Warnf("%s, skipping", err)
			continue
		}
		log.Infof("processing sample %d/%d: %s", i+1, len(manifest), ent.SampleID)
		f, err := zopen(ent.ProfilePath)
		if err != nil {
			return err
		}
		err = mp.AddSample(ent.SampleID, depth, newTSVReader(ent.ProfilePath, f))
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
