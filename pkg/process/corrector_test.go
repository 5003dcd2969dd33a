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
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"

	"github.com/rbspy/spytools/pkg/binary"
)

func Test_applyAnchorOffset(t *testing.T) {
	info := &binary.Info{
		Symbols: binary.SymbolTable{
			MachHeaderSymbol: 0x100001000,
			"_PyRuntime":     0x100234000,
		},
		BSSAddr: 0x100230000,
		BSSSize: 0x8000,
	}

	err := applyAnchorOffset(info, MachHeaderSymbol, 0x100000000)
	require.NoError(t, err)

	// Every address moved down by anchor - regionStart, the anchor itself
	// landing exactly on the region start.
	require.Equal(t, uint64(0x100000000), info.Symbols[MachHeaderSymbol])
	require.Equal(t, uint64(0x100233000), info.Symbols["_PyRuntime"])
	require.Equal(t, uint64(0x10022f000), info.BSSAddr)
	require.Equal(t, uint64(0x8000), info.BSSSize)
}

func Test_applyAnchorOffset_zeroBSSUntouched(t *testing.T) {
	info := &binary.Info{
		Symbols: binary.SymbolTable{MachHeaderSymbol: 0x100001000},
	}

	err := applyAnchorOffset(info, MachHeaderSymbol, 0x100000000)
	require.NoError(t, err)
	require.Equal(t, uint64(0), info.BSSAddr)
}

func Test_applyAnchorOffset_missingAnchor(t *testing.T) {
	info := &binary.Info{Symbols: binary.SymbolTable{"main": 0x1000}}

	err := applyAnchorOffset(info, MachHeaderSymbol, 0x1000)
	require.Error(t, err)

	c := AnchorCorrector{Anchor: MachHeaderSymbol}
	err = c.CorrectBinary(42, "/usr/bin/python3", MemoryRegion{Start: 0x1000}, info)
	require.Error(t, err)
	require.Contains(t, err.Error(), "/usr/bin/python3")
}

func Test_resolveSecondaryAddress(t *testing.T) {
	tests := []struct {
		name     string
		base     uint64
		addr     uint64
		module   uint64
		load     uint64
		expected uint64
	}{
		{
			name: "zero base falls back to module base",
			base: 0, addr: 0x1000, module: 0,
			load:     0x7f0000000000,
			expected: 0x7f0000001000,
		},
		{
			name: "reported base wins over module base",
			base: 0x140000000, addr: 0x140234000, module: 0x400000,
			load:     0x7ff600000000,
			expected: 0x7ff600234000,
		},
		{
			name: "zero base with nonzero module base",
			base: 0, addr: 0x401000, module: 0x400000,
			load:     0x560000000000,
			expected: 0x560000001000,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := resolveSecondaryAddress(test.base, test.addr, test.module, test.load)
			require.Equal(t, test.expected, got)
		})
	}
}

type fakeSymbolHandle struct {
	moduleBase uint64
	symbols    map[string][2]uint64 // name -> {base, addr}
	closed     bool
}

func (h *fakeSymbolHandle) Resolve(name string) (uint64, uint64, error) {
	s, ok := h.symbols[name]
	if !ok {
		return 0, 0, errors.New("symbol not found")
	}
	return s[0], s[1], nil
}

func (h *fakeSymbolHandle) ModuleBase() uint64 { return h.moduleBase }

func (h *fakeSymbolHandle) Close() error {
	h.closed = true
	return nil
}

type fakeSymbolSource struct {
	handle  *fakeSymbolHandle
	loadErr error
}

func (s fakeSymbolSource) Load(int, string) (SymbolSourceHandle, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.handle, nil
}

func TestSecondarySymbolCorrector(t *testing.T) {
	handle := &fakeSymbolHandle{
		moduleBase: 0x140000000,
		symbols: map[string][2]uint64{
			"interp_head": {0x140000000, 0x140234000},
			"_PyRuntime":  {0, 0x1000},
		},
	}
	c := &SecondarySymbolCorrector{
		Logger:  log.NewNopLogger(),
		Source:  fakeSymbolSource{handle: handle},
		Symbols: []string{"interp_head", "_PyRuntime", "never_there"},
	}

	info := &binary.Info{Symbols: binary.SymbolTable{
		"_PyRuntime": 0xdead, // stale parsed value, must be overwritten
		"Py_Main":    0x7ff600001000,
	}}
	region := MemoryRegion{Start: 0x7ff600000000, Size: 0x400000}

	err := c.CorrectBinary(42, `c:\python39\python.exe`, region, info)
	require.NoError(t, err)
	require.True(t, handle.closed)

	require.Equal(t, uint64(0x7ff600234000), info.Symbols["interp_head"])
	// Reported base 0: rebased against the module base instead.
	require.Equal(t, uint64(0x7ff4c0001000), info.Symbols["_PyRuntime"])
	// Untouched entries survive; unresolvable names are skipped.
	require.Equal(t, uint64(0x7ff600001000), info.Symbols["Py_Main"])
	_, ok := info.Symbols["never_there"]
	require.False(t, ok)
}

func TestSecondarySymbolCorrector_loadFailure(t *testing.T) {
	c := &SecondarySymbolCorrector{
		Logger:  log.NewNopLogger(),
		Source:  fakeSymbolSource{loadErr: errors.New("dbghelp init failed")},
		Symbols: []string{"interp_head"},
	}

	err := c.CorrectBinary(42, `c:\python39\python.exe`, MemoryRegion{}, &binary.Info{Symbols: binary.SymbolTable{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "dbghelp init failed")
}
