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

// Package process resolves the virtual addresses of runtime symbols in a
// live target process. It locates the mapped regions of the main executable
// and of the runtime's shared library, has them parsed, applies per-platform
// corrections and assembles an immutable snapshot that answers symbol
// lookups.
package process

import (
	"fmt"
	goruntime "runtime"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rbspy/spytools/pkg/binary"
	"github.com/rbspy/spytools/pkg/runtime"
)

// Info is a snapshot of a process's binary and library symbol information.
// At least one of Binary and Library is present. The snapshot is read-only
// after construction; inspecting the same process again later may observe a
// different layout.
type Info struct {
	// Binary holds the main executable's parsed info, if it parsed cleanly.
	Binary *binary.Info
	// Library holds the runtime shared library's parsed info, for runtimes
	// built --enable-shared or shipped as a framework.
	Library *binary.Info

	// Regions is the memory map captured during construction.
	Regions []MemoryRegion

	// Path is the resolved executable path.
	Path string

	// Dockerized reports whether the target runs in a different mount
	// namespace than the inspector. Linux only; false elsewhere and false
	// whenever the check itself fails.
	Dockerized bool
}

// GetSymbol returns the address of the named symbol, preferring the main
// binary's table over the library's. Statically linked runtimes keep their
// globals in the executable and dynamically linked ones in the library, so
// checking both covers either build without branching on configuration.
// Absence is a normal outcome, not an error.
func (i *Info) GetSymbol(symbol string) (uint64, bool) {
	if i.Binary != nil {
		if addr, ok := i.Binary.Symbols[symbol]; ok {
			return addr, true
		}
	}
	if i.Library != nil {
		if addr, ok := i.Library.Symbols[symbol]; ok {
			return addr, true
		}
	}
	return 0, false
}

type config struct {
	mapSource    MapSource
	parser       binary.Parser
	corrector    Corrector
	dyldSource   DyldSource
	symbolSource SymbolSource
	nsCheck      func(pid int) (bool, error)
	goos         string
}

// Option overrides one of the Inspector's platform defaults. Mainly useful
// for wiring alternative external collaborators and for tests.
type Option func(*config)

func WithMapSource(s MapSource) Option   { return func(c *config) { c.mapSource = s } }
func WithParser(p binary.Parser) Option  { return func(c *config) { c.parser = p } }
func WithCorrector(cr Corrector) Option  { return func(c *config) { c.corrector = cr } }
func WithDyldSource(s DyldSource) Option { return func(c *config) { c.dyldSource = s } }
func WithSymbolSource(s SymbolSource) Option {
	return func(c *config) { c.symbolSource = s }
}
func WithNamespaceCheck(f func(pid int) (bool, error)) Option {
	return func(c *config) { c.nsCheck = f }
}

// Inspector constructs Info snapshots. It owns no per-process state; one
// Inspector can serve any number of independent inspections.
type Inspector struct {
	logger  log.Logger
	metrics *metrics
	cfg     config
}

func NewInspector(logger log.Logger, reg prometheus.Registerer, opts ...Option) *Inspector {
	cfg := platformConfig(logger)
	cfg.goos = goruntime.GOOS
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Inspector{
		logger:  logger,
		metrics: newMetrics(reg),
		cfg:     cfg,
	}
}

// NewInfo is the one-shot form of NewInspector().Inspect() for callers that
// don't track metrics.
func NewInfo(logger log.Logger, handle Handle, d *runtime.Descriptor, opts ...Option) (*Info, error) {
	return NewInspector(logger, nil, opts...).Inspect(handle, d)
}

// Inspect builds the symbol snapshot for the process behind handle,
// interpreting it as a d runtime.
//
// Structural failures (no executable path, empty memory map, a main-binary
// parse failure with no library to fall back on) abort with an error.
// Everything else degrades: a missing binary region falls back to the first
// mapped region, a failed container check reports not-containerized, a
// failed dynamic-linker query simply yields no library.
func (ins *Inspector) Inspect(handle Handle, d *runtime.Descriptor) (*Info, error) {
	ins.metrics.attempts.Inc()

	info, err := ins.inspect(handle, d)
	if err != nil {
		ins.metrics.inspect.WithLabelValues(lvFail).Inc()
		return nil, err
	}
	ins.metrics.inspect.WithLabelValues(lvSuccess).Inc()
	return info, nil
}

func (ins *Inspector) inspect(handle Handle, d *runtime.Descriptor) (*Info, error) {
	cfg := ins.cfg
	if cfg.mapSource == nil || cfg.parser == nil {
		return nil, fmt.Errorf("process inspection is not supported on %s", cfg.goos)
	}

	pid := handle.PID()

	exePath, err := handle.ExePath()
	if err != nil {
		return nil, fmt.Errorf("%w: check that the process is running: %s", ErrProcessUnavailable, err)
	}
	// Windows filesystems are case-insensitive, so path comparisons there
	// are done on a normalized form.
	caseInsensitive := cfg.goos == "windows"
	if caseInsensitive {
		exePath = strings.ToLower(exePath)
	}

	regions, err := cfg.mapSource.Regions(pid)
	if err != nil {
		return nil, fmt.Errorf("get memory regions of pid %d: %w", pid, err)
	}
	level.Info(ins.logger).Log("msg", "got virtual memory maps", "pid", pid, "regions", len(regions))
	for _, r := range regions {
		level.Debug(ins.logger).Log("msg", "map", "region", r.String())
	}

	binRegion, fellBack, err := selectBinaryRegion(regions, exePath, caseInsensitive)
	if err != nil {
		return nil, err
	}
	if fellBack {
		level.Warn(ins.logger).Log(
			"msg", "could not find executable in memory maps, falling back to first region",
			"exe", exePath,
		)
		ins.metrics.fallbacks.Inc()
	}

	bin, binErr := cfg.parser.Parse(pid, exePath, binRegion.Start, binRegion.Size, true)
	if binErr == nil {
		binErr = ins.corrector(d).CorrectBinary(pid, exePath, binRegion, bin)
	}

	lib, err := ins.resolveLibrary(cfg, pid, d, regions)
	if err != nil {
		return nil, err
	}

	// A parsed library makes a broken main binary tolerable; the snapshot
	// just won't have one.
	if binErr != nil {
		if lib == nil {
			return nil, fmt.Errorf("parse %s binary: %w", d.Name(), binErr)
		}
		level.Warn(ins.logger).Log("msg", "failed to parse main binary, continuing with library only", "err", binErr)
		bin = nil
	}

	dockerized := false
	if cfg.nsCheck != nil {
		dockerized, err = cfg.nsCheck(pid)
		if err != nil {
			level.Warn(ins.logger).Log("msg", "mount namespace check failed, assuming not containerized", "err", err)
			dockerized = false
		}
	}

	return &Info{
		Binary:     bin,
		Library:    lib,
		Regions:    regions,
		Path:       exePath,
		Dockerized: dockerized,
	}, nil
}

// selectBinaryRegion finds the executable region backed by exePath. When no
// region matches, the first region stands in for it, since some environments
// (containers, deleted binaries) report paths that never line up. Only an
// entirely empty map is fatal.
func selectBinaryRegion(regions []MemoryRegion, exePath string, caseInsensitive bool) (MemoryRegion, bool, error) {
	for _, r := range regions {
		p := r.Path
		if caseInsensitive {
			p = strings.ToLower(p)
		}
		if p == exePath && r.Execute {
			return r, false, nil
		}
	}
	if len(regions) == 0 {
		return MemoryRegion{}, false, ErrNoMemoryRegions
	}
	return regions[0], true, nil
}

// selectLibraryRegion finds the first region whose backing file matches the
// runtime's library pattern. Mapped libraries carry an executable segment on
// Unix-like systems; on Windows a DLL may be mapped without one, so
// readability is the predicate there.
func selectLibraryRegion(regions []MemoryRegion, d *runtime.Descriptor, goos string) (MemoryRegion, bool) {
	pattern := d.LibraryPatternFor(goos)
	for _, r := range regions {
		if r.Path == "" || !pattern.MatchString(r.Path) {
			continue
		}
		if goos == "windows" {
			if r.Read {
				return r, true
			}
			continue
		}
		if r.Execute {
			return r, true
		}
	}
	return MemoryRegion{}, false
}

func (ins *Inspector) resolveLibrary(cfg config, pid int, d *runtime.Descriptor, regions []MemoryRegion) (*binary.Info, error) {
	libRegion, found := selectLibraryRegion(regions, d, cfg.goos)
	if found {
		level.Info(ins.logger).Log("msg", "found library", "path", libRegion.Path)

		// A matched-but-unparseable library is a real problem, unlike a
		// missing one. No anchor correction here: that quirk is specific to
		// main-executable loading.
		lib, err := cfg.parser.Parse(pid, libRegion.Path, libRegion.Start, libRegion.Size, false)
		if err != nil {
			return nil, fmt.Errorf("parse %s library %s: %w", d.Name(), libRegion.Path, err)
		}
		return lib, nil
	}

	if cfg.dyldSource == nil {
		return nil, nil
	}

	lib, err := fallbackLibraryFromDyld(ins.logger, cfg.dyldSource, pid, d, cfg.parser)
	if err != nil {
		if isPlatformQueryError(err) {
			level.Warn(ins.logger).Log("msg", "dynamic linker query failed", "err", err)
			return nil, nil
		}
		return nil, err
	}
	return lib, nil
}

func (ins *Inspector) corrector(d *runtime.Descriptor) Corrector {
	if ins.cfg.corrector != nil {
		return ins.cfg.corrector
	}
	switch ins.cfg.goos {
	case "darwin":
		return AnchorCorrector{Anchor: MachHeaderSymbol}
	case "windows":
		if ins.cfg.symbolSource == nil {
			return NopCorrector{}
		}
		return &SecondarySymbolCorrector{
			Logger:  ins.logger,
			Source:  ins.cfg.symbolSource,
			Symbols: d.RequiredSymbols(),
		}
	default:
		return NopCorrector{}
	}
}
