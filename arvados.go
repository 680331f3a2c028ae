// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package strif

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
)

var collectionInPathRe = regexp.MustCompile(`^(.*/)?([0-9a-f]{32}\+[0-9]+|[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15})(/.*)?$`)

// zopen returns a reader for the given file, using the arvados API
// instead of arv-mount/fuse where applicable, and transparently
// decompressing the input if fnm ends with ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

var (
	keepClient *keepclient.KeepClient
	siteFS     arvados.CustomFileSystem
	siteFSMtx  sync.Mutex
)

type file interface {
	io.ReadCloser
	io.Seeker
	Readdir(n int) ([]os.FileInfo, error)
}

// keepPath splits fnm into a collection ID (UUID or portable data
// hash) and a path within that collection. ok is false if no path
// component is a collection ID. Anything before the collection ID,
// e.g. an arv-mount prefix, is ignored.
func keepPath(fnm string) (collectionID, path string, ok bool) {
	m := collectionInPathRe.FindStringSubmatch(fnm)
	if m == nil {
		return "", "", false
	}
	return m[2], m[3], true
}

// keepSiteFS returns the Arvados site filesystem, setting up the
// client on first use.
func keepSiteFS() (arvados.CustomFileSystem, error) {
	siteFSMtx.Lock()
	defer siteFSMtx.Unlock()
	if siteFS != nil {
		return siteFS, nil
	}
	log.Info("setting up Arvados client")
	client := arvados.NewClientFromEnv()
	ac, err := arvadosclient.New(client)
	if err != nil {
		return nil, err
	}
	ac.Client = arvados.DefaultSecureClient
	keepClient = keepclient.New(ac)
	// Don't use keepclient's default short timeouts.
	keepClient.HTTPClient = arvados.DefaultSecureClient
	// Profiles and repeat sequence tables are read once, front to back.
	keepClient.BlockCache = &keepclient.BlockCache{MaxBlocks: 2}
	siteFS = client.SiteFileSystem(keepClient)
	return siteFS, nil
}

// open returns the named file. If ARVADOS_API_HOST is set and a path
// component is a collection ID, the file is read from Keep through
// the Arvados site filesystem instead of a local mount.
func open(fnm string) (file, error) {
	if os.Getenv("ARVADOS_API_HOST") == "" {
		return os.Open(fnm)
	}
	collectionID, path, ok := keepPath(fnm)
	if !ok {
		return os.Open(fnm)
	}
	fs, err := keepSiteFS()
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"collection": collectionID,
		"path":       path,
	}).Info("reading from Keep")
	return fs.Open("by_id/" + collectionID + path)
}

// zcreate creates (or truncates) the named local file for writing,
// compressing with pgzip if fnm ends with ".gz".
func zcreate(fnm string) (io.WriteCloser, error) {
	f, err := os.OpenFile(fnm, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(fnm, ".gz") {
		return f, nil
	}
	return gzipw{pgzip.NewWriter(f), f}, nil
}

type gzipw struct {
	*pgzip.Writer
	f *os.File
}

func (gw gzipw) Close() error {
	e1 := gw.Writer.Close()
	e2 := gw.f.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

// defaultOutPath returns a sibling of input named
// "{prefix}.{suffix}.{ext}", where prefix is the input's base name up
// to its first ".".
func defaultOutPath(input, suffix, ext string) string {
	dir, base := filepath.Split(input)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return filepath.Join(dir, base+"."+suffix+"."+ext)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
