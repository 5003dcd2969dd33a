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

//go:build linux

package process

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/procfs"

	"github.com/rbspy/spytools/pkg/elfparser"
	"github.com/rbspy/spytools/pkg/namespace"
)

// platformConfig wires the Linux collaborators: /proc for the memory map,
// ELF for parsing, the mount-namespace comparison for the container check.
// No corrector; Linux symbol addresses are correct as parsed.
func platformConfig(logger log.Logger) config {
	cfg := config{
		parser:  elfparser.NewParser(logger),
		nsCheck: namespace.InSeparateMountNamespace,
	}

	fs, err := procfs.NewDefaultFS()
	if err != nil {
		// Leaving mapSource nil turns every Inspect into a clean error.
		level.Error(logger).Log("msg", "failed to open /proc", "err", err)
		return cfg
	}
	cfg.mapSource = NewProcfsMapSource(fs)
	return cfg
}
