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

package elfparser

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/prometheus/procfs"
	"github.com/xyproto/ainur"

	"github.com/rbspy/spytools/pkg/runtime"
)

// HasSymbols reports whether the ELF file contains any of the given symbol
// names, checking the full symbol table first and the dynamic one second.
func HasSymbols(ef *elf.File, matches [][]byte) (bool, error) {
	var (
		hasSymbols bool
		err        error
	)

	if hasSymbols, err = isSymbolNameInSection(ef, elf.SHT_SYMTAB, matches); err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return hasSymbols, fmt.Errorf("search symbols: %w", err)
	}

	if !hasSymbols {
		if hasSymbols, err = isSymbolNameInSection(ef, elf.SHT_DYNSYM, matches); err != nil && !errors.Is(err, elf.ErrNoSymbols) {
			return hasSymbols, fmt.Errorf("search dynamic symbols: %w", err)
		}
	}

	return hasSymbols, nil
}

// isSymbolNameInSection streams the string table of the given symbol section
// looking for any of the byte patterns, without materializing the symbol
// entries themselves.
func isSymbolNameInSection(ef *elf.File, t elf.SectionType, matches [][]byte) (bool, error) {
	symtabSection := ef.SectionByType(t)
	if symtabSection == nil {
		return false, elf.ErrNoSymbols
	}

	if symtabSection.Link <= 0 || symtabSection.Link >= uint32(len(ef.Sections)) {
		return false, errors.New("section has invalid string table link")
	}

	sr, err := ainur.NewStreamReader(ef.Sections[symtabSection.Link].Open(), 8192)
	if err != nil {
		return false, fmt.Errorf("create stream reader: %w", err)
	}

	for {
		b, err := sr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return false, fmt.Errorf("read next: %w", err)
		}

		for _, match := range matches {
			if bytes.Contains(b, match) {
				return true, nil
			}
		}
	}

	return false, nil
}

// IsRuntimeProcess reports whether proc hosts the runtime described by d.
// The executable's pathname is checked first since it's the cheapest; when
// that is inconclusive the memory mappings are scanned for the runtime's
// shared library. Either way the verdict comes from identifying symbols in
// the ELF file, never from the name alone.
func IsRuntimeProcess(proc procfs.Proc, d *runtime.Descriptor) (bool, error) {
	exe, err := proc.Executable()
	if err != nil {
		return false, err
	}

	if strings.Contains(path.Base(exe), string(d.Name())) {
		ef, err := elf.Open(absolutePath(proc.PID, exe))
		if err != nil {
			return false, fmt.Errorf("open elf file: %w", err)
		}
		defer ef.Close()

		return HasSymbols(ef, d.IdentifyingSymbols())
	}

	maps, err := proc.ProcMaps()
	if err != nil {
		return false, fmt.Errorf("error reading process maps: %w", err)
	}
	for _, mapping := range maps {
		if runtime.IsLib(mapping.Pathname, d) {
			ef, err := elf.Open(absolutePath(proc.PID, mapping.Pathname))
			if err != nil {
				return false, fmt.Errorf("open elf file: %w", err)
			}
			defer ef.Close()

			return HasSymbols(ef, d.IdentifyingSymbols())
		}
	}

	return false, nil
}
