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
	"net/http"
	_ "net/http/pprof"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const profileHeader = "locus_id\treference_region\tmotif\tread_count\tinterruption_counts"

type interruptionKey struct {
	interruption string
	observedLen  int
}

// sampleProfile accumulates read counts and interruption counts for
// one sample.
type sampleProfile struct {
	readCounts    map[string]int
	interruptions map[string]map[interruptionKey]int
}

func newSampleProfile() *sampleProfile {
	return &sampleProfile{
		readCounts:    map[string]int{},
		interruptions: map[string]map[interruptionKey]int{},
	}
}

func (p *sampleProfile) RecordRead(locusID string) {
	p.readCounts[locusID]++
}

func (p *sampleProfile) RecordInterruption(locusID, interruption string, observedLen int) {
	counts := p.interruptions[locusID]
	if counts == nil {
		counts = map[interruptionKey]int{}
		p.interruptions[locusID] = counts
	}
	counts[interruptionKey{interruption, observedLen}]++
}

// WriteTo writes one row per catalog locus, including loci with no
// reads.
func (p *sampleProfile) WriteTo(w io.Writer, cat *catalog) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprint(bufw, profileHeader+"\n")
	for _, locusID := range cat.LocusIDs() {
		counts := p.interruptions[locusID]
		keys := make([]interruptionKey, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].interruption != keys[j].interruption {
				return keys[i].interruption < keys[j].interruption
			}
			return keys[i].observedLen < keys[j].observedLen
		})
		cell := make([]string, len(keys))
		for i, k := range keys {
			cell[i] = formatInterruptionCount(k.interruption, k.observedLen, counts[k])
		}
		_, err := fmt.Fprintf(bufw, "%s\t%s\t%s\t%d\t%s\n", locusID, cat.ReferenceRegion[locusID], cat.Motif[locusID], p.readCounts[locusID], strings.Join(cell, ","))
		if err != nil {
			return err
		}
	}
	return bufw.Flush()
}

// formatInterruptionCount encodes one "interruption:length:count"
// entry of a profile's interruption_counts cell. The interruption
// must not contain ':' or ','.
func formatInterruptionCount(interruption string, observedLen, count int) string {
	return interruption + ":" + strconv.Itoa(observedLen) + ":" + strconv.Itoa(count)
}

// parseCount parses a non-negative count, as written by
// formatInterruptionCount and (*sampleProfile)WriteTo.
func parseCount(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type interruptionCount struct {
	Interruption string
	RepeatLen    int
	Count        int
}

// parseInterruptionCounts decodes a profile's interruption_counts
// cell. An empty cell yields no entries.
func parseInterruptionCounts(cell string) ([]interruptionCount, error) {
	if cell == "" {
		return nil, nil
	}
	var ics []interruptionCount
	for _, entry := range strings.Split(cell, ",") {
		fields := strings.Split(entry, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed interruption count %q", entry)
		}
		repeatLen, err := parseCount(fields[1])
		if err != nil {
			return nil, fmt.Errorf("interruption count %q: repeat length: %w", entry, err)
		}
		count, err := parseCount(fields[2])
		if err != nil {
			return nil, fmt.Errorf("interruption count %q: count: %w", entry, err)
		}
		ics = append(ics, interruptionCount{Interruption: fields[0], RepeatLen: repeatLen, Count: count})
	}
	return ics, nil
}

type profiler struct {
	filter      locusFilter
	alignParams alignParams
}

func (cmd *profiler) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return exitCode(stderr, cmd.run(prog, args, stdin, stdout, stderr))
}

func (cmd *profiler) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	pprofdir := flags.String("pprof-dir", "", "write Go profile data to `directory` periodically")
	inputFilename := flags.String("i", "", "repeat sequences `file` (output of extract)")
	catalogFilename := flags.String("catalog", "", "JSON locus catalog `file`")
	outputFilename := flags.String("o", "", "output `file` (default {input prefix}.strif_profile.tsv)")
	writeAlignments := flags.Bool("write-alignments", false, "write visual alignments")
	flags.BoolVar(writeAlignments, "z", false, "short for -write-alignments")
	alignmentsFilename := flags.String("alignments-output", "", "visual alignments output `file` (default {input prefix}.viz_align.txt)")
	pad := flags.Int("pad", defaultPad, "extra motif copies appended to the pure sequence")
	cmd.filter.Flags(flags)
	cmd.alignParams.Flags(flags)
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return usageError{err}
	} else if flags.NArg() > 0 {
		return usageError{fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())}
	}
	if *inputFilename == "" || *catalogFilename == "" {
		return usageError{errors.New("must specify -i and -catalog")}
	}
	if *outputFilename == "" {
		*outputFilename = defaultOutPath(*inputFilename, "strif_profile", "tsv")
	}
	if *alignmentsFilename == "" {
		*alignmentsFilename = defaultOutPath(*inputFilename, "viz_align", "txt")
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
		return err
	}

	log.Info("loading STR catalog")
	catrdr, err := zopen(*catalogFilename)
	if err != nil {
		return err
	}
	defer catrdr.Close()
	cat, err := loadCatalog(catrdr, &cmd.filter)
	if err != nil {
		return fmt.Errorf("%s: %w", *catalogFilename, err)
	}
	log.Infof("loaded %d loci", len(cat.Motif))

	input, err := zopen(*inputFilename)
	if err != nil {
		return err
	}
	defer input.Close()

	var alignments io.WriteCloser
	var alignmentsw *bufio.Writer
	if *writeAlignments {
		alignments, err = zcreate(*alignmentsFilename)
		if err != nil {
			return err
		}
		defer alignments.Close()
		alignmentsw = bufio.NewWriter(alignments)
	}
	det := newDetector(cmd.alignParams, *pad, nil)
	if alignmentsw != nil {
		det.alignments = alignmentsw
	}

	log.Info("profiling interruptions")
	profile := newSampleProfile()
	err = profileRepeatSeqs(newTSVReader(*inputFilename, input), cat, det, profile)
	if err != nil {
		return err
	}
	if alignmentsw != nil {
		err = alignmentsw.Flush()
		if err != nil {
			return err
		}
		err = alignments.Close()
		if err != nil {
			return err
		}
	}

	log.Infof("writing profile to %s", *outputFilename)
	output, err := zcreate(*outputFilename)
	if err != nil {
		return err
	}
	defer output.Close()
	err = profile.WriteTo(output, cat)
	if err != nil {
		return err
	}
	err = output.Close()
	if err != nil {
		return err
	}
	log.Info("done")
	return nil
}

// profileRepeatSeqs reads "locus_id\tsequence" rows, recording a read
// and its interruptions for each locus in the catalog.
func profileRepeatSeqs(tsv *tsvReader, cat *catalog, det *detector, profile *sampleProfile) error {
	for {
		fields, err := tsv.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if len(fields) < 2 {
			return tsv.Errorf("%d fields < 2", len(fields))
		}
		locusID, observed := fields[0], []byte(fields[1])
		motif, ok := cat.Motif[locusID]
		if !ok {
			log.Debugf("skipping locus %s: not in catalog", locusID)
			continue
		}
		interruptions, err := det.Detect(locusID, motif, observed)
		if err != nil {
			return err
		}
		profile.RecordRead(locusID)
		for _, interruption := range interruptions {
			profile.RecordInterruption(locusID, interruption, len(observed))
		}
	}
}
