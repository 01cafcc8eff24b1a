// Package library keeps the registry of loaded feature libraries.
//
// Libraries are preloaded from a directory at startup, imported from a
// remote registry at runtime and removed on request. The registry is the
// single shared mutable resource of the service and is guarded by one
// reader/writer lock.
package library

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Kind tells local and remote identifiers apart
type Kind int

const (
	// Local identifiers name a file in the library directory
	Local Kind = iota
	// Remote identifiers are collection URLs on a parts registry
	Remote
)

// String returns the lower-case kind name used in API responses
func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Identifier names a library. The raw string is the registry key and is
// compared exactly, without trimming or case folding.
type Identifier struct {
	Kind Kind
	Raw  string
}

// ParseIdentifier classifies s. Anything with an http, https or s3
// scheme and a host is remote, everything else is a local file name.
func ParseIdentifier(s string) Identifier {
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "s3":
			return Identifier{Kind: Remote, Raw: s}
		}
	}
	return Identifier{Kind: Local, Raw: s}
}

// String returns the raw identifier
func (id Identifier) String() string {
	return id.Raw
}

var versionSegment = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+)*$`)

// collectionFile derives the local file name a remote collection URL is
// published under: its display id plus ".xml". Collection URLs end in
// either .../<displayId> or .../<displayId>/<version>.
func collectionFile(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	var segments []string
	for _, s := range strings.Split(strings.Trim(u.Path, "/"), "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return ""
	}
	last := segments[len(segments)-1]
	if versionSegment.MatchString(last) && len(segments) > 1 {
		last = segments[len(segments)-2]
	}
	return last + ".xml"
}

// localName maps a file name in the library directory to its identifier;
// compressed files are registered without the .gz suffix
func localName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".gz")
}

// isLibraryFile reports whether a directory entry holds a feature library.
// Hidden and editor backup files are ignored.
func isLibraryFile(file string) bool {
	base := localName(file)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	switch path.Ext(base) {
	case ".xml", ".sbol", ".rdf":
		return true
	}
	return false
}
