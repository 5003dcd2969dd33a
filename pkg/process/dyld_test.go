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
	"github.com/rbspy/spytools/pkg/runtime"
)

type fakeDyldSource struct {
	images []DyldImage
	err    error
}

func (s fakeDyldSource) LoadedImages(int) ([]DyldImage, error) { return s.images, s.err }

const frameworkPython = "/System/Library/Frameworks/Python.framework/Versions/2.7/Python"

func TestFallbackLibraryFromDyld(t *testing.T) {
	src := fakeDyldSource{images: []DyldImage{
		// Text segment of the right image: wrong segment, skipped.
		{Path: frameworkPython, Segment: DyldSegment{Name: "__TEXT", Addr: 0x10e000000, Size: 0x200000}},
		// The app-wrapper duplicate: right segment, not the framework binary.
		{
			Path:    "/System/Library/Frameworks/Python.framework/Versions/2.7/Resources/Python.app/Contents/MacOS/Python",
			Segment: DyldSegment{Name: DataSegmentName, Addr: 0x10d000000, Size: 0x1000},
		},
		{Path: frameworkPython, Segment: DyldSegment{Name: DataSegmentName, Addr: 0x10e200000, Size: 0x40000}},
	}}
	parser := &fakeParser{infos: map[string]*binary.Info{
		frameworkPython: {
			Symbols: binary.SymbolTable{"interp_head": 0x10e210000},
			BSSAddr: 0x10e300000, BSSSize: 0x100, // off, data split from text
		},
	}}

	info, err := fallbackLibraryFromDyld(log.NewNopLogger(), src, 42, runtime.Python, parser)
	require.NoError(t, err)
	require.NotNil(t, info)

	require.Equal(t, []parseCall{{path: frameworkPython, base: 0x10e200000, main: false}}, parser.calls)

	// The whole data segment stands in for the BSS range.
	require.Equal(t, uint64(0x10e200000), info.BSSAddr)
	require.Equal(t, uint64(0x40000), info.BSSSize)
	require.Equal(t, uint64(0x10e210000), info.Symbols["interp_head"])
}

func TestFallbackLibraryFromDyld_noMatch(t *testing.T) {
	src := fakeDyldSource{images: []DyldImage{
		{Path: "/usr/lib/libSystem.B.dylib", Segment: DyldSegment{Name: DataSegmentName, Addr: 0x7fff20000000, Size: 0x1000}},
	}}

	info, err := fallbackLibraryFromDyld(log.NewNopLogger(), src, 42, runtime.Python, &fakeParser{})
	require.NoError(t, err)
	require.Nil(t, info)
}

func TestFallbackLibraryFromDyld_queryError(t *testing.T) {
	src := fakeDyldSource{err: errors.New("task_for_pid denied")}

	_, err := fallbackLibraryFromDyld(log.NewNopLogger(), src, 42, runtime.Python, &fakeParser{})
	require.ErrorIs(t, err, ErrPlatformQuery)
}

func TestInspect_dyldQueryFailureTolerated(t *testing.T) {
	// A failing loaded-images query must not sink the whole inspection when
	// the main binary parsed fine.
	maps := fakeMapSource{regions: []MemoryRegion{
		{Start: 0x100000000, Size: 0x200000, Execute: true, Path: "/usr/local/bin/python3.9"},
	}}
	parser := &fakeParser{infos: map[string]*binary.Info{
		"/usr/local/bin/python3.9": {Symbols: binary.SymbolTable{"_PyRuntime": 0x100180000}},
	}}

	ins := newTestInspector(t, maps, parser,
		WithDyldSource(fakeDyldSource{err: errors.New("task_for_pid denied")}))
	info, err := ins.Inspect(fakeHandle{pid: 42, exe: "/usr/local/bin/python3.9"}, runtime.Python)
	require.NoError(t, err)
	require.NotNil(t, info.Binary)
	require.Nil(t, info.Library)
}

func TestInspect_dyldFallbackLibrary(t *testing.T) {
	maps := fakeMapSource{regions: []MemoryRegion{
		{Start: 0x100000000, Size: 0x200000, Execute: true, Path: "/usr/local/bin/python2.7"},
	}}
	parser := &fakeParser{infos: map[string]*binary.Info{
		"/usr/local/bin/python2.7": {Symbols: binary.SymbolTable{}},
		frameworkPython:            {Symbols: binary.SymbolTable{"interp_head": 0x10e210000}},
	}}

	ins := newTestInspector(t, maps, parser,
		WithDyldSource(fakeDyldSource{images: []DyldImage{
			{Path: frameworkPython, Segment: DyldSegment{Name: DataSegmentName, Addr: 0x10e200000, Size: 0x40000}},
		}}))
	info, err := ins.Inspect(fakeHandle{pid: 42, exe: "/usr/local/bin/python2.7"}, runtime.Python)
	require.NoError(t, err)
	require.NotNil(t, info.Library)

	addr, ok := info.GetSymbol("interp_head")
	require.True(t, ok)
	require.Equal(t, uint64(0x10e210000), addr)
}
