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

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// MemoryRegion is one mapped virtual-address range of a process, captured
// once at enumeration time and never mutated.
type MemoryRegion struct {
	Start uint64
	Size  uint64

	Read    bool
	Write   bool
	Execute bool

	// Path of the backing file, empty for anonymous mappings.
	Path string
}

func (r MemoryRegion) End() uint64 { return r.Start + r.Size }

func (r MemoryRegion) String() string {
	perms := [3]byte{'-', '-', '-'}
	if r.Read {
		perms[0] = 'r'
	}
	if r.Write {
		perms[1] = 'w'
	}
	if r.Execute {
		perms[2] = 'x'
	}
	return fmt.Sprintf("%016x-%016x %s %s", r.Start, r.End(), perms, r.Path)
}

// MapSource enumerates the mapped memory regions of a process, in the order
// the OS reports them.
type MapSource interface {
	Regions(pid int) ([]MemoryRegion, error)
}

// procfsMapSource reads regions from /proc/<pid>/maps.
type procfsMapSource struct {
	fs procfs.FS
}

func NewProcfsMapSource(fs procfs.FS) MapSource {
	return procfsMapSource{fs: fs}
}

func (s procfsMapSource) Regions(pid int) ([]MemoryRegion, error) {
	proc, err := s.fs.Proc(pid)
	if err != nil {
		return nil, fmt.Errorf("open proc %d: %w", pid, err)
	}

	maps, err := proc.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("read proc maps for pid %d: %w", pid, err)
	}

	regions := make([]MemoryRegion, 0, len(maps))
	for _, m := range maps {
		regions = append(regions, MemoryRegion{
			Start:   uint64(m.StartAddr),
			Size:    uint64(m.EndAddr) - uint64(m.StartAddr),
			Read:    m.Perms.Read,
			Write:   m.Perms.Write,
			Execute: m.Perms.Execute,
			Path:    m.Pathname,
		})
	}
	return regions, nil
}
