// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	log "github.com/sirupsen/logrus"
)

// writeProfilesPeriodically replaces cpu.prof and mem.prof in outdir
// every interval, so a long merge or profile run can be inspected
// while it is still going.
func writeProfilesPeriodically(outdir string, interval time.Duration) {
	for range time.NewTicker(interval).C {
		writeMemProfile(outdir)
		writeCPUProfile(outdir)
	}
}

// replaceFile calls write with a temporary file next to fnm, then
// renames it into place.
func replaceFile(fnm string, write func(*os.File) error) error {
	tmp := fnm + "~"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	defer f.Close()
	err = write(f)
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp, fnm)
}

func writeCPUProfile(outdir string) {
	err := replaceFile(filepath.Join(outdir, "cpu.prof"), func(f *os.File) error {
		runtime.GC()
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		time.Sleep(time.Second)
		pprof.StopCPUProfile()
		return nil
	})
	if err != nil {
		log.Warnf("writing CPU profile: %s", err)
	}
}

func writeMemProfile(outdir string) {
	err := replaceFile(filepath.Join(outdir, "mem.prof"), func(f *os.File) error {
		runtime.GC()
		return pprof.WriteHeapProfile(f)
	})
	if err != nil {
		log.Warnf("writing heap profile: %s", err)
	}
}
