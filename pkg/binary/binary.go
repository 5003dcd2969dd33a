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

// Package binary holds the data model produced by binary-format parsers:
// a symbol table and a BSS descriptor for a single mapped binary.
package binary

// SymbolTable maps a symbol name to its virtual address in the target
// process. Names are unique; insertion order is irrelevant.
type SymbolTable map[string]uint64

// Info describes a parsed binary: its symbol table and the location of its
// zero-initialized data segment. An Info is owned by whichever field of a
// process snapshot ends up holding it and is never shared.
type Info struct {
	Symbols SymbolTable

	BSSAddr uint64
	BSSSize uint64
}

// Parser extracts symbol and BSS information from the file backing a mapped
// region of the given process. Implementations are format specific (ELF,
// Mach-O, PE). baseAddr and size describe the region the file is mapped at;
// isMainExecutable distinguishes the main binary from a shared library since
// some formats lay the two out differently.
type Parser interface {
	Parse(pid int, path string, baseAddr, size uint64, isMainExecutable bool) (*Info, error)
}
