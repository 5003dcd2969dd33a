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

// Ruby symbols to look for:
//
//	1.9:`ruby_init` and `ruby_current_vm`
//	2.0:`ruby_init` and `ruby_current_vm`
//	2.1 and later:`ruby_init`
var rubyIdentifyingSymbols = [][]byte{
	[]byte("ruby_init"),
}

// Ruby is the descriptor for CRuby (MRI) processes.
var Ruby = &Descriptor{
	name: NameRuby,

	patternUnix:    regexp.MustCompile(`/libruby[-.]?(\d+\.\d+(\.\d+)?)?\.so(\.\d+\.\d+(\.\d+)?)?`),
	patternDarwin:  regexp.MustCompile(`/libruby\.?\d\.\d\d?\.(dylib|so)$`),
	patternWindows: regexp.MustCompile(`(?i)\\.*ruby\d\d\d?\.dll(\.a)?$`),

	// The set of VM globals rbspy needs has shifted across Ruby versions, so
	// the shortlist carries every spelling; absent ones are simply skipped.
	requiredSymbols: []string{
		"global_symbols",
		"ruby_global_symbols",
		"ruby_current_vm",
		"ruby_current_vm_ptr",
		"ruby_current_thread",
		"ruby_current_execution_context_ptr",
		"ruby_version",
	},

	frameworkBinary: "Ruby",

	identifyingSymbols: rubyIdentifyingSymbols,
}
