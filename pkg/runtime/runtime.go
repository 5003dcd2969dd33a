// Copyright 2025-2026 The rbspy Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package runtime describes the interpreted-language runtimes the engine
// knows how to inspect. Each supported runtime is a Descriptor value
// carrying the constants needed to find its shared library and symbols in a
// target process. The set of descriptors is closed; the runtime is chosen at
// run time (typically from a command-line flag), not at compile time.
package runtime

import (
	"fmt"
	"path"
	"regexp"
	goruntime "runtime"
	"strings"
)

// Name identifies a supported runtime.
type Name string

const (
	NamePython Name = "python"
	NameRuby   Name = "ruby"
)

// Descriptor carries the per-runtime constants used during process
// inspection: the shared-library filename pattern for the current OS, the
// shortlist of symbols to resolve out-of-band on Windows, and the macOS
// framework classifier.
type Descriptor struct {
	name Name

	// Library filename patterns, keyed the way the supported GOOSes name
	// shared objects. patternUnix covers Linux and FreeBSD.
	patternUnix    *regexp.Regexp
	patternDarwin  *regexp.Regexp
	patternWindows *regexp.Regexp

	// Symbols resolved individually from the secondary per-process symbol
	// source on Windows, where native export tables lack debug symbols.
	requiredSymbols []string

	// Basename of the canonical framework binary on macOS, e.g. "Python"
	// for Python.framework/Versions/3.9/Python.
	frameworkBinary string

	// Symbol names whose presence in a binary identifies this runtime.
	identifyingSymbols [][]byte
}

func (d *Descriptor) Name() Name { return d.name }

// LibraryPattern returns the pattern matching genuine shared-library
// filenames for this runtime on the current OS. The patterns are strict
// about versioned sonames and build-flag suffixes so that unrelated
// libraries merely containing the runtime name (libboost_python and
// friends) do not match.
func (d *Descriptor) LibraryPattern() *regexp.Regexp {
	return d.LibraryPatternFor(goruntime.GOOS)
}

// LibraryPatternFor is LibraryPattern for an explicit GOOS value.
func (d *Descriptor) LibraryPatternFor(goos string) *regexp.Regexp {
	switch goos {
	case "darwin":
		return d.patternDarwin
	case "windows":
		return d.patternWindows
	default:
		return d.patternUnix
	}
}

// RequiredSymbols returns the fixed list of global symbols that must be
// resolved through the secondary symbol source on platforms whose native
// symbol tables omit debug symbols. Resolving these individually is far
// cheaper than enumerating the full table.
func (d *Descriptor) RequiredSymbols() []string { return d.requiredSymbols }

// IdentifyingSymbols returns symbol names whose presence identifies a binary
// as containing this runtime.
func (d *Descriptor) IdentifyingSymbols() [][]byte { return d.identifyingSymbols }

// IsFramework reports whether p is the canonical in-bundle library binary on
// macOS, as opposed to its duplicate inside the application-wrapper bundle
// (Python.app, Ruby.app). Used to disambiguate multiple dyld matches during
// the bundle-fallback path.
func (d *Descriptor) IsFramework(p string) bool {
	return path.Base(p) == d.frameworkBinary &&
		!strings.Contains(p, d.frameworkBinary+".app")
}

// IsLib reports whether the file at pathname looks like d's shared library.
func IsLib(pathname string, d *Descriptor) bool {
	return d.LibraryPattern().MatchString(pathname)
}

// ByName returns the descriptor for the given runtime name.
func ByName(name string) (*Descriptor, error) {
	switch Name(strings.ToLower(name)) {
	case NamePython:
		return Python, nil
	case NameRuby:
		return Ruby, nil
	default:
		return nil, fmt.Errorf("unsupported runtime %q", name)
	}
}
