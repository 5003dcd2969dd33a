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

package runtime

import "regexp"

// Python symbols to look for:
//
//	2.7:`Py_Main`
//	3.2:`Py_Main`
//	3.3:`Py_Main`
//	3.4:`Py_Main`
//	3.5:`Py_Main`
//	3.6:`Py_Main`
//	3.7:`_Py_UnixMain`
//	3.8:`Py_BytesMain`
//	3.9:`Py_BytesMain`
//	3.10:`Py_BytesMain`
//	3.11:`Py_BytesMain`
var pythonIdentifyingSymbols = [][]byte{
	[]byte("Py_Main"),
	[]byte("_Py_UnixMain"),
	[]byte("Py_BytesMain"),
}

// Python is the descriptor for CPython processes.
//
// The library patterns accept the optional build-flag suffixes CPython
// appends to the soname: d (--with-pydebug), m (--with-pymalloc) and
// u (--with-wide-unicode, Python 2 only).
var Python = &Descriptor{
	name: NamePython,

	patternUnix:    regexp.MustCompile(`/libpython\d.\d\d?(m|d|u)?.so`),
	patternDarwin:  regexp.MustCompile(`/libpython\d.\d\d?(m|d|u)?.(dylib|so)$`),
	patternWindows: regexp.MustCompile(`(?i)\\python\d\d\d?(m|d|u)?.dll$`),

	requiredSymbols: []string{
		"_PyThreadState_Current",
		"interp_head",
		"_PyRuntime",
	},

	frameworkBinary: "Python",

	identifyingSymbols: pythonIdentifyingSymbols,
}
