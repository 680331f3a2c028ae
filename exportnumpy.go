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
	"path/filepath"
	"sort"

	"github.com/kshedden/gonpy"
	log "github.com/sirupsen/logrus"
)

type feature struct {
	LocusID      string
	Interruption string
}

// profileMatrix returns the normalized interruption counts of mp as a
// row-major samples x features matrix. If samples is empty, rows are
// the samples in mp in the order they are first seen. Features are
// sorted by locus ID, then interruption.
func profileMatrix(mp *mergedProfile, samples []string) (data []float64, rowSamples []string, features []feature) {
	rowSamples = samples
	if len(rowSamples) == 0 {
		seen := map[string]bool{}
		for _, locusID := range mp.LocusIDs() {
			for _, rc := range mp.Loci[locusID].ReadCounts {
				if !seen[rc.SampleID] {
					seen[rc.SampleID] = true
					rowSamples = append(rowSamples, rc.SampleID)
				}
			}
		}
	}
	for _, locusID := range mp.LocusIDs() {
		ml := mp.Loci[locusID]
		seen := map[string]bool{}
		var interruptions []string
		for _, key := range ml.Keys {
			if !seen[key.Interruption] {
				seen[key.Interruption] = true
				interruptions = append(interruptions, key.Interruption)
			}
		}
		sort.Strings(interruptions)
		for _, interruption := range interruptions {
			features = append(features, feature{locusID, interruption})
		}
	}
	cols := len(features)
	data = make([]float64, len(rowSamples)*cols)
	for row, sampleID := range rowSamples {
		for col, f := range features {
			data[row*cols+col] = mp.Loci[f.LocusID].Interruptions[sampleInterruption{sampleID, f.Interruption}]
		}
	}
	return
}

type exportNumpy struct{}

func (cmd *exportNumpy) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var err error
	defer func() {
		if err != nil {
			fmt.Fprintf(stderr, "%s\n", err)
		}
	}()
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "", "merged profile `file`")
	manifestFilename := flags.String("manifest", "", "manifest `file`; if given, matrix rows follow manifest order")
	outputDir := flags.String("output-dir", ".", "output `directory`")
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
	if *inputFilename == "" {
		err = errors.New("must specify -i")
		return 2
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	var samples []string
	if *manifestFilename != "" {
		var manifest []manifestEntry
		manifest, err = loadManifestFile(*manifestFilename)
		if err != nil {
			return 1
		}
		for _, ent := range manifest {
			samples = append(samples, ent.SampleID)
		}
	}

	input, err := zopen(*inputFilename)
	if err != nil {
		return 1
	}
	defer input.Close()
	mp, err := loadMergedProfile(*inputFilename, input)
	if err != nil {
		return 1
	}
	err = input.Close()
	if err != nil {
		return 1
	}

	data, rowSamples, features := profileMatrix(mp, samples)
	log.Infof("writing %d samples x %d features", len(rowSamples), len(features))

	fnm := filepath.Join(*outputDir, "matrix.npy")
	output, err := zcreate(fnm)
	if err != nil {
		return 1
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return 1
	}
	npw.Shape = []int{len(rowSamples), len(features)}
	err = npw.WriteFloat64(data)
	if err != nil {
		return 1
	}
	err = bufw.Flush()
	if err != nil {
		return 1
	}
	err = output.Close()
	if err != nil {
		return 1
	}

	err = writeCSV(filepath.Join(*outputDir, "features.csv"), len(features), func(w io.Writer, i int) {
		fmt.Fprintf(w, "%d,%s,%s\n", i, features[i].LocusID, features[i].Interruption)
	})
	if err != nil {
		return 1
	}
	err = writeCSV(filepath.Join(*outputDir, "samples.csv"), len(rowSamples), func(w io.Writer, i int) {
		fmt.Fprintf(w, "%d,%s\n", i, rowSamples[i])
	})
	if err != nil {
		return 1
	}
	return 0
}

func writeCSV(fnm string, n int, writeRow func(io.Writer, int)) error {
	f, err := zcreate(fnm)
	if err != nil {
		return err
	}
	defer f.Close()
	bufw := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		writeRow(bufw, i)
	}
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return f.Close()
}
