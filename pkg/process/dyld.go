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

	"github.com/rbspy/spytools/pkg/binary"
	"github.com/rbspy/spytools/pkg/runtime"
)

// DataSegmentName is the Mach-O segment that holds a library's mutable
// globals, BSS included.
const DataSegmentName = "__DATA"

// DyldImage is one loaded-image record from the dynamic linker, reduced to
// the single segment of interest.
type DyldImage struct {
	Path    string
	Segment DyldSegment
}

type DyldSegment struct {
	Name string
	Addr uint64
	Size uint64
}

// DyldSource exposes the dynamic linker's loaded-image records of a process.
// On macOS runtimes shipped as system frameworks never show up as a library
// mapping, so this is the fallback way to find them.
type DyldSource interface {
	LoadedImages(pid int) ([]DyldImage, error)
}

// fallbackLibraryFromDyld looks for the runtime library among the dynamic
// linker's loaded images when no memory-map region matched the library
// pattern. Query failures are wrapped in ErrPlatformQuery so the caller can
// degrade; a parse failure of a found image is a real error.
func fallbackLibraryFromDyld(logger log.Logger, src DyldSource, pid int, d *runtime.Descriptor, parser binary.Parser) (*binary.Info, error) {
	images, err := src.LoadedImages(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: loaded images of pid %d: %s", ErrPlatformQuery, pid, err)
	}

	for _, img := range images {
		level.Debug(logger).Log(
			"msg", "dyld image",
			"addr", fmt.Sprintf("%016x-%016x", img.Segment.Addr, img.Segment.Addr+img.Segment.Size),
			"segment", img.Segment.Name,
			"path", img.Path,
		)
	}

	for _, img := range images {
		if img.Segment.Name != DataSegmentName || !d.IsFramework(img.Path) {
			continue
		}

		level.Info(logger).Log("msg", "found library from dyld", "path", img.Path)

		info, err := parser.Parse(pid, img.Path, img.Segment.Addr, img.Segment.Size, false)
		if err != nil {
			return nil, fmt.Errorf("parse dyld library %s: %w", img.Path, err)
		}

		// The parser's BSS offsets assume data isn't split from text, which
		// frameworks do. BSS sits somewhere in the data segment, so treat
		// the whole segment as the BSS range. An approximation, kept until
		// section-level scanning is worth the trouble.
		info.BSSAddr = img.Segment.Addr
		info.BSSSize = img.Segment.Size
		return info, nil
	}

	return nil, nil
}
