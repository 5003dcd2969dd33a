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

//go:build !linux

package process

import "github.com/go-kit/log"

// platformConfig on platforms without bundled collaborators: the map source,
// parser and platform query implementations (Mach-O/PE parsers, dyld
// introspection, dbghelp) must be supplied through Options.
func platformConfig(log.Logger) config {
	return config{}
}
