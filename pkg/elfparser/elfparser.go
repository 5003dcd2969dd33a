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

// Package elfparser is the ELF implementation of the binary.Parser boundary:
// it turns the file backing a mapped region into a symbol table and a BSS
// descriptor, adjusted to where the file is actually loaded.
package elfparser

import (
	"debug/elf"
	"errors"
	"fmt"
	"path"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	burrow "github.com/goburrow/cache"

	"github.com/rbspy/spytools/pkg/binary"
)

// Parser parses ELF binaries through the target's /proc root, so paths are
// resolved inside the target's mount namespace. Raw per-file results are
// memoized; the load bias is recomputed per call since the same file may be
// mapped at different addresses in different processes.
type Parser struct {
	logger log.Logger
	cache  burrow.Cache
}

func NewParser(logger log.Logger) *Parser {
	return &Parser{
		logger: logger,
		cache:  burrow.New(burrow.WithMaximumSize(64)),
	}
}

// fileInfo is the on-disk view of a binary, before any load bias.
type fileInfo struct {
	symbols   binary.SymbolTable
	bssAddr   uint64
	bssSize   uint64
	textVaddr uint64
}

// Parse implements binary.Parser for ELF files. baseAddr and size describe
// the mapped region the file was found at; size is unused for ELF since the
// program headers carry the authoritative layout. ELF lays out executables
// and shared libraries the same way, so isMainExecutable only shows up in
// logging.
func (p *Parser) Parse(pid int, pathname string, baseAddr, size uint64, isMainExecutable bool) (*binary.Info, error) {
	fi, err := p.fileInfo(absolutePath(pid, pathname))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pathname, err)
	}

	// For a position-independent binary the region start already includes
	// the load-time base; ET_EXEC binaries map at their link-time address
	// and get a zero bias.
	bias := saturatingSub(baseAddr, fi.textVaddr)

	symbols := make(binary.SymbolTable, len(fi.symbols))
	for name, value := range fi.symbols {
		symbols[name] = value + bias
	}

	info := &binary.Info{
		Symbols: symbols,
		BSSSize: fi.bssSize,
	}
	if fi.bssAddr != 0 {
		info.BSSAddr = fi.bssAddr + bias
	}

	level.Debug(p.logger).Log(
		"msg", "parsed binary",
		"path", pathname,
		"symbols", len(symbols),
		"bias", fmt.Sprintf("0x%x", bias),
		"main", isMainExecutable,
	)
	return info, nil
}

func (p *Parser) fileInfo(abspath string) (*fileInfo, error) {
	if v, ok := p.cache.GetIfPresent(abspath); ok {
		fi, ok := v.(*fileInfo)
		if !ok {
			return nil, errors.New("invalid cache value type")
		}
		return fi, nil
	}

	fi, err := readFileInfo(abspath)
	if err != nil {
		return nil, err
	}
	p.cache.Put(abspath, fi)
	return fi, nil
}

func readFileInfo(abspath string) (*fileInfo, error) {
	ef, err := elf.Open(abspath)
	if err != nil {
		return nil, fmt.Errorf("open elf file: %w", err)
	}
	defer ef.Close()

	fi := &fileInfo{
		symbols:   make(binary.SymbolTable),
		textVaddr: textProgHeaderVaddr(ef),
	}

	// Dynamic symbols first so that entries from the full symbol table win
	// when both are present.
	dynsyms, err := ef.DynamicSymbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("read dynamic symbols: %w", err)
	}
	for _, s := range dynsyms {
		fi.symbols[s.Name] = s.Value
	}

	syms, err := ef.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	for _, s := range syms {
		fi.symbols[s.Name] = s.Value
	}

	if sec := ef.Section(".bss"); sec != nil {
		fi.bssAddr = sec.Addr
		fi.bssSize = sec.Size
	}

	return fi, nil
}

// textProgHeaderVaddr returns the virtual address of the LOAD segment
// containing the .text section, or zero if there is none.
func textProgHeaderVaddr(ef *elf.File) uint64 {
	for _, s := range ef.Sections {
		if s.Name != ".text" {
			continue
		}
		for _, prog := range ef.Progs {
			if prog.Type == elf.PT_LOAD && prog.Flags&elf.PF_X != 0 &&
				s.Addr >= prog.Vaddr && s.Addr < prog.Vaddr+prog.Memsz {
				return prog.Vaddr
			}
		}
	}
	return 0
}

// p_vaddr may be larger than the map address in case when the header has an
// offset and the map address is relatively small. In this case we can
// default to 0.
func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func absolutePath(pid int, p string) string {
	return path.Join("/proc", strconv.Itoa(pid), "root", p)
}
