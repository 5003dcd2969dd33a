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

package process

import "errors"

var (
	// ErrProcessUnavailable means the executable path could not be
	// determined, usually because the process exited or is inaccessible.
	ErrProcessUnavailable = errors.New("failed to get process executable path")

	// ErrNoMemoryRegions means the process reported an empty memory map.
	ErrNoMemoryRegions = errors.New("no memory map regions found for process")

	// ErrPlatformQuery marks failures of optional platform queries (the
	// dynamic-linker image list, the container check). Callers tolerate
	// these and degrade instead of failing construction.
	ErrPlatformQuery = errors.New("platform query failed")
)

func isPlatformQueryError(err error) bool {
	return errors.Is(err, ErrPlatformQuery)
}
