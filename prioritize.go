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

	log "github.com/sirupsen/logrus"
)

// parseLabel interprets a manifest case/control label.
func parseLabel(label string) (isCase bool, err error) {
	switch strings.ToLower(label) {
	case "case", "1":
		return true, nil
	case "control", "0":
		return false, nil
	default:
		return false, fmt.Errorf("unknown case/control label %q", label)
	}
}

// donorID returns the part of sampleID before its last "_", or all of
// it if there is no "_".
func donorID(sampleID string) string {
	if i := strings.LastIndexByte(sampleID, '_'); i > 0 {
		return sampleID[:i]
	}
	return sampleID
}

type association struct {
	LocusID         string
	ReferenceRegion string
	Motif           string
	Interruption    string
	NCase           int
	NControl        int
	Pvalue          float64
	CohenD          float64
	PresencePvalue  float64
	GLMPvalue       float64

	readCounts []sampleCount
	counts     []sampleValue
}

type sampleValue struct {
	SampleID string
	Value    float64
}

type prioritizeOptions struct {
	MinSamples int
	Paired     bool
}

// locusGroups returns the case and control samples contributing reads
// to ml. When paired, only samples whose donor has both a case and a
// control sample are kept, ordered so case[i] and control[i] share a
// donor.
func locusGroups(ml *mergedLocus, isCase map[string]bool, paired bool) (cases, controls []string, err error) {
	for _, rc := range ml.ReadCounts {
		c, ok := isCase[rc.SampleID]
		if !ok {
			return nil, nil, fmt.Errorf("sample %q not in manifest", rc.SampleID)
		}
		if c {
			cases = append(cases, rc.SampleID)
		} else {
			controls = append(controls, rc.SampleID)
		}
	}
	if !paired {
		sort.Strings(cases)
		sort.Strings(controls)
		return
	}
	byDonor := map[string]string{}
	for _, s := range controls {
		d := donorID(s)
		if _, dup := byDonor[d]; dup {
			return nil, nil, fmt.Errorf("duplicate control sample for donor %q", d)
		}
		byDonor[d] = s
	}
	var pcases, pcontrols []string
	seen := map[string]bool{}
	for _, s := range cases {
		d := donorID(s)
		if seen[d] {
			return nil, nil, fmt.Errorf("duplicate case sample for donor %q", d)
		}
		seen[d] = true
		if ctrl, ok := byDonor[d]; ok {
			pcases = append(pcases, s)
			pcontrols = append(pcontrols, ctrl)
		}
	}
	sort.Sort(pairSorter{pcases, pcontrols})
	return pcases, pcontrols, nil
}

type pairSorter struct{ a, b []string }

func (ps pairSorter) Len() int           { return len(ps.a) }
func (ps pairSorter) Less(i, j int) bool { return donorID(ps.a[i]) < donorID(ps.a[j]) }
func (ps pairSorter) Swap(i, j int) {
	ps.a[i], ps.a[j] = ps.a[j], ps.a[i]
	ps.b[i], ps.b[j] = ps.b[j], ps.b[i]
}

// prioritizeLocus tests each interruption seen at a locus for
// association with case/control status.
func prioritizeLocus(locusID string, ml *mergedLocus, isCase map[string]bool, opts prioritizeOptions) ([]association, error) {
	cases, controls, err := locusGroups(ml, isCase, opts.Paired)
	if err != nil {
		return nil, fmt.Errorf("locus %s: %w", locusID, err)
	}
	if len(cases) < opts.MinSamples || len(controls) < opts.MinSamples {
		log.Debugf("locus %s: %d cases, %d controls, skipping", locusID, len(cases), len(controls))
		return nil, nil
	}
	included := map[string]bool{}
	for _, s := range cases {
		included[s] = true
	}
	for _, s := range controls {
		included[s] = true
	}

	var interruptions []string
	invalid := map[string]bool{}
	seen := map[string]bool{}
	for _, key := range ml.Keys {
		if !included[key.SampleID] {
			continue
		}
		if !seen[key.Interruption] {
			seen[key.Interruption] = true
			interruptions = append(interruptions, key.Interruption)
		}
		if !validCount(ml.Interruptions[key]) {
			invalid[key.Interruption] = true
		}
	}

	samples := append(append([]string(nil), cases...), controls...)
	outcome := make([]bool, len(samples))
	for i := range cases {
		outcome[i] = true
	}

	var out []association
	for _, interruption := range interruptions {
		logger := log.WithFields(log.Fields{"locus": locusID, "interruption": interruption})
		if invalid[interruption] {
			logger.Warn("invalid normalized count, skipping")
			continue
		}
		values := make([]float64, len(samples))
		present := make([]bool, len(samples))
		for i, s := range samples {
			values[i], present[i] = ml.Interruptions[sampleInterruption{s, interruption}]
		}
		caseValues, controlValues := values[:len(cases)], values[len(cases):]
		var p float64
		if opts.Paired {
			p = wilcoxonPvalue(caseValues, controlValues)
		} else {
			p = mannWhitneyPvalue(caseValues, controlValues)
		}
		d := cohenD(caseValues, controlValues)
		if math.IsNaN(p) {
			logger.Warn("p-value is NaN, skipping")
			continue
		} else if math.IsNaN(d) {
			logger.Warn("Cohen's d is NaN, skipping")
			continue
		}
		counts := make([]sampleValue, len(samples))
		for i, s := range samples {
			counts[i] = sampleValue{s, values[i]}
		}
		out = append(out, association{
			LocusID:         locusID,
			ReferenceRegion: ml.ReferenceRegion,
			Motif:           ml.Motif,
			Interruption:    interruption,
			NCase:           len(cases),
			NControl:        len(controls),
			Pvalue:          p,
			CohenD:          d,
			PresencePvalue:  presencePvalue(present, outcome),
			GLMPvalue:       glmPvalue(outcome, values),
			readCounts:      ml.ReadCounts,
			counts:          counts,
		})
	}
	return out, nil
}

func prioritize(mp *mergedProfile, isCase map[string]bool, opts prioritizeOptions) ([]association, error) {
	var all []association
	for _, locusID := range mp.LocusIDs() {
		assocs, err := prioritizeLocus(locusID, mp.Loci[locusID], isCase, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, assocs...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Pvalue < all[j].Pvalue })
	return all, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeAssociations(w io.Writer, assocs []association, withCounts bool) error {
	bufw := bufio.NewWriter(w)
	fmt.Fprint(bufw, "locus_id\treference_region\tmotif\tinterruption\tn_case\tn_control\tp_value\tcohen_d\tpresence_p_value\tglm_p_value")
	if withCounts {
		fmt.Fprint(bufw, "\tread_counts\tinterruption_counts")
	}
	fmt.Fprint(bufw, "\n")
	for _, a := range assocs {
		fmt.Fprintf(bufw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s", a.LocusID, a.ReferenceRegion, a.Motif, a.Interruption, a.NCase, a.NControl, formatFloat(a.Pvalue), formatFloat(a.CohenD), formatFloat(a.PresencePvalue), formatFloat(a.GLMPvalue))
		if withCounts {
			readCounts := make([]string, len(a.readCounts))
			for i, rc := range a.readCounts {
				readCounts[i] = rc.SampleID + ":" + strconv.Itoa(rc.Count)
			}
			counts := make([]string, len(a.counts))
			for i, sv := range a.counts {
				counts[i] = sv.SampleID + ":" + formatFloat(sv.Value)
			}
			fmt.Fprintf(bufw, "\t%s\t%s", strings.Join(readCounts, ","), strings.Join(counts, ","))
		}
		_, err := fmt.Fprint(bufw, "\n")
		if err != nil {
			return err
		}
	}
	return bufw.Flush()
}

type prioritizer struct{}

func (cmd *prioritizer) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return exitCode(stderr, cmd.run(prog, args, stdin, stdout, stderr))
}

func (cmd *prioritizer) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "", "merged profile `file`")
	manifestFilename := flags.String("manifest", "", "manifest `file` (sample_id, case/control, profile path)")
	outputFilename := flags.String("o", "", "output `file` for all interruptions (default {input prefix}.prioritized.tsv)")
	sigOutputFilename := flags.String("sig-output", "", "output `file` for interruptions under the p-value cutoff, with counts (default {input prefix}.significant.tsv)")
	var opts prioritizeOptions
	flags.IntVar(&opts.MinSamples, "min-samples", 2, "skip loci with fewer than `N` samples in either group")
	cutoff := flags.Float64("p-value-cutoff", 0.05, "p-value `cutoff` for -sig-output")
	flags.BoolVar(&opts.Paired, "paired", false, "use the Wilcoxon signed-rank test on case/control pairs from the same donor")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return usageError{err}
	} else if flags.NArg() > 0 {
		return usageError{fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())}
	}
	if *inputFilename == "" || *manifestFilename == "" {
		return usageError{errors.New("must specify -i and -manifest")}
	}
	if *outputFilename == "" {
		*outputFilename = defaultOutPath(*inputFilename, "prioritized", "tsv")
	}
	if *sigOutputFilename == "" {
		*sigOutputFilename = defaultOutPath(*inputFilename, "significant", "tsv")
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	manifest, err := loadManifestFile(*manifestFilename)
	if err != nil {
		return err
	}
	isCase := map[string]bool{}
	for _, ent := range manifest {
		isCase[ent.SampleID], err = parseLabel(ent.Label)
		if err != nil {
			return fmt.Errorf("%s: sample %s: %w", *manifestFilename, ent.SampleID, err)
		}
	}

	log.Info("loading merged profile")
	f, err := zopen(*inputFilename)
	if err != nil {
		return err
	}
	defer f.Close()
	mp, err := loadMergedProfile(*inputFilename, f)
	if err != nil {
		return err
	}

	log.Infof("testing %d loci", len(mp.Loci))
	assocs, err := prioritize(mp, isCase, opts)
	if err != nil {
		return err
	}
	var sig []association
	for _, a := range assocs {
		if a.Pvalue < *cutoff {
			sig = append(sig, a)
		}
	}
	log.Infof("%d interruptions tested, %d with p < %v", len(assocs), len(sig), *cutoff)

	for _, out := range []struct {
		fnm        string
		assocs     []association
		withCounts bool
	}{
		{*outputFilename, assocs, false},
		{*sigOutputFilename, sig, true},
	} {
		w, err := zcreate(out.fnm)
		if err != nil {
			return err
		}
		err = writeAssociations(w, out.assocs, out.withCounts)
		if err != nil {
			w.Close()
			return err
		}
		err = w.Close()
		if err != nil {
			return err
		}
	}
	return nil
}
