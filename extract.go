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
	"regexp"
	"strconv"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	log "github.com/sirupsen/logrus"
)

// rightFlankNode is the graph node ID of a simple repeat's right
// flank in an XG tag.
const rightFlankNode = 2

var xgTag = sam.NewTag("XG")

// xgParser locates the repeat region of a read from its XG graph
// alignment tag, e.g. "HTT,123,0[20M]1[45M]2[20M]".
type xgParser struct {
	tagRe *regexp.Regexp
	opRe  *regexp.Regexp
}

func newXGParser() *xgParser {
	return &xgParser{
		tagRe: regexp.MustCompile(`^(\w+),\d+,0\[((?:\d+[MIDNSHPX=])+)\]((?:\d+\[(?:\d+[MIDNSHPX=])+\])+)` + strconv.Itoa(rightFlankNode) + `\[(?:\d+[MIDNSHPX=])+\]$`),
		opRe:  regexp.MustCompile(`(\d+)[MISX=]`),
	}
}

// Parse returns the locus ID and the [start,end) offsets of the
// repeat within the read sequence. ok is false if the tag does not
// describe a flank-repeat-flank path.
func (p *xgParser) Parse(tag string) (locusID string, start, end int, ok bool) {
	m := p.tagRe.FindStringSubmatch(tag)
	if m == nil {
		return "", 0, 0, false
	}
	start = p.sumReadOps(m[2])
	end = start + p.sumReadOps(m[3])
	return m[1], start, end, true
}

// sumReadOps returns the total length of the operations in cigar that
// consume read bases.
func (p *xgParser) sumReadOps(cigar string) int {
	n := 0
	for _, m := range p.opRe.FindAllStringSubmatch(cigar, -1) {
		l, err := strconv.Atoi(m[1])
		if err != nil {
			// only possible on overflow
			panic(err)
		}
		n += l
	}
	return n
}

type recordReader interface {
	Read() (*sam.Record, error)
}

type extractor struct{}

func (cmd *extractor) RunCommand(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return exitCode(stderr, cmd.run(prog, args, stdin, stdout, stderr))
}

func (cmd *extractor) run(prog string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	flags.SetOutput(stderr)
	pprof := flags.String("pprof", "", "serve Go profile data at http://`[addr]:port`")
	inputFilename := flags.String("i", "", "input BAMlet `file` (.bam or .sam)")
	outputFilename := flags.String("o", "", "output `file` (default {input prefix}.repeat_seqs.tsv)")
	err := flags.Parse(args)
	if err == flag.ErrHelp {
		return nil
	} else if err != nil {
		return usageError{err}
	} else if flags.NArg() > 0 {
		return usageError{fmt.Errorf("errant command line arguments after parsed flags: %v", flags.Args())}
	}
	if *inputFilename == "" {
		return usageError{errors.New("must specify -i")}
	}
	if *outputFilename == "" {
		*outputFilename = defaultOutPath(*inputFilename, "repeat_seqs", "tsv")
	}

	if *pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(*pprof, nil))
		}()
	}

	input, err := open(*inputFilename)
	if err != nil {
		return err
	}
	defer input.Close()
	var rdr recordReader
	if strings.HasSuffix(*inputFilename, ".sam") {
		rdr, err = sam.NewReader(bufio.NewReader(input))
		if err != nil {
			return err
		}
	} else {
		bamr, err := bam.NewReader(bufio.NewReader(input), 1)
		if err != nil {
			return err
		}
		defer bamr.Close()
		rdr = bamr
	}

	output, err := zcreate(*outputFilename)
	if err != nil {
		return err
	}
	defer output.Close()
	bufw := bufio.NewWriter(output)

	log.Info("extracting repeat sequences")
	n, err := extractRepeatSeqs(rdr, bufw)
	if err != nil {
		return fmt.Errorf("%s: %w", *inputFilename, err)
	}
	log.Infof("extracted %d repeat sequences to %s", n, *outputFilename)
	err = bufw.Flush()
	if err != nil {
		return err
	}
	return output.Close()
}

// extractRepeatSeqs writes "locus_id\tsequence" for each record whose
// XG tag describes a repeat, and returns the number of rows written.
func extractRepeatSeqs(rdr recordReader, w io.Writer) (int, error) {
	parser := newXGParser()
	written := 0
	for i := 0; ; i++ {
		rec, err := rdr.Read()
		if err == io.EOF {
			return written, nil
		} else if err != nil {
			return written, err
		}
		aux := rec.AuxFields.Get(xgTag)
		if aux == nil {
			log.Debugf("read %d (%s): no XG tag, skipping", i, rec.Name)
			continue
		}
		tag, ok := aux.Value().(string)
		if !ok {
			log.Warnf("read %d (%s): XG tag is not a string, skipping", i, rec.Name)
			continue
		}
		locusID, start, end, ok := parser.Parse(tag)
		if !ok {
			log.Debugf("read %d (%s): XG tag %q does not describe a repeat, skipping", i, rec.Name, tag)
			continue
		}
		seq := rec.Seq.Expand()
		if end > len(seq) {
			log.WithFields(log.Fields{
				"read":  rec.Name,
				"locus": locusID,
				"end":   end,
			}).Warnf("repeat extends past read of length %d, skipping", len(seq))
			continue
		}
		_, err = fmt.Fprintf(w, "%s\t%s\n", locusID, seq[start:end])
		if err != nil {
			return written, err
		}
		written++
	}
}
