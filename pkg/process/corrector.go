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

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"

	"github.com/rbspy/spytools/pkg/binary"
)

// Corrector applies platform-specific post-processing to the main binary's
// freshly parsed symbol information, before the snapshot is assembled.
// Libraries are never corrected; the corrections below exist to undo
// main-executable load-time quirks.
type Corrector interface {
	CorrectBinary(pid int, path string, region MemoryRegion, info *binary.Info) error
}

// NopCorrector is used on platforms where raw parsed addresses are already
// correct.
type NopCorrector struct{}

func (NopCorrector) CorrectBinary(int, string, MemoryRegion, *binary.Info) error { return nil }

// MachHeaderSymbol is the anchor symbol every Mach-O executable exports at
// its load address.
const MachHeaderSymbol = "_mh_execute_header"

// AnchorCorrector undoes a load-time base that the parser already folded
// into the region start: it locates a known anchor symbol, computes the
// double-counted offset against the region start and subtracts it from every
// symbol address and from the BSS address. Used for Mach-O main executables.
type AnchorCorrector struct {
	Anchor string
}

func (c AnchorCorrector) CorrectBinary(_ int, path string, region MemoryRegion, info *binary.Info) error {
	if err := applyAnchorOffset(info, c.Anchor, region.Start); err != nil {
		return fmt.Errorf("correct %s: %w", path, err)
	}
	return nil
}

func applyAnchorOffset(info *binary.Info, anchor string, regionStart uint64) error {
	anchorAddr, ok := info.Symbols[anchor]
	if !ok {
		return fmt.Errorf("anchor symbol %q not found in symbol table", anchor)
	}

	offset := anchorAddr - regionStart
	for name, addr := range info.Symbols {
		info.Symbols[name] = addr - offset
	}
	if info.BSSAddr != 0 {
		info.BSSAddr -= offset
	}
	return nil
}

// SymbolSource is an out-of-band per-process debug-symbol store, the
// dbghelp/PDB machinery on Windows. Native symbol tables there lack debug
// symbols, so a shortlist of critical globals is resolved through it
// instead.
type SymbolSource interface {
	// Load opens the store for one module of the process. The returned
	// handle must stay open for the whole batch of lookups it serves and be
	// closed right after.
	Load(pid int, path string) (SymbolSourceHandle, error)
}

type SymbolSourceHandle interface {
	// Resolve returns the module base the source reports for the symbol
	// (zero when it reports none) and the symbol's address in the source's
	// own address space.
	Resolve(name string) (base, addr uint64, err error)

	// ModuleBase is the source's view of the module load address, used as
	// the reference base when Resolve reports none.
	ModuleBase() uint64

	Close() error
}

// SecondarySymbolCorrector merges individually resolved symbols from a
// SymbolSource into the parsed table. The merged entries win for the names
// they cover. Symbols the source cannot resolve are skipped; enumerating
// everything the source knows would be far more expensive than these few
// direct lookups.
type SecondarySymbolCorrector struct {
	Logger  log.Logger
	Source  SymbolSource
	Symbols []string
}

func (c *SecondarySymbolCorrector) CorrectBinary(pid int, path string, region MemoryRegion, info *binary.Info) error {
	handle, err := c.Source.Load(pid, path)
	if err != nil {
		return fmt.Errorf("load symbol source for %s: %w", path, err)
	}
	defer handle.Close()

	var merr *multierror.Error
	for _, name := range c.Symbols {
		base, addr, err := handle.Resolve(name)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("resolve %s: %w", name, err))
			continue
		}
		info.Symbols[name] = resolveSecondaryAddress(base, addr, handle.ModuleBase(), region.Start)
	}
	if err := merr.ErrorOrNil(); err != nil {
		// Missing entries are expected; which ones matter is up to the
		// caller reading the final table.
		level.Debug(c.Logger).Log("msg", "some symbols not found in secondary source", "path", path, "err", err)
	}
	return nil
}

// resolveSecondaryAddress rebases an address reported by the secondary
// source onto the region load address. A zero reported base means the source
// reported none and its module-base value is the reference instead; a
// legitimate zero base is indistinguishable from that, which matches how the
// source behaves in practice.
func resolveSecondaryAddress(reportedBase, reportedAddr, moduleBase, loadAddr uint64) uint64 {
	base := reportedBase
	if base == 0 {
		base = moduleBase
	}
	return loadAddr + reportedAddr - base
}
