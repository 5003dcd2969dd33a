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

// Handle identifies a live process and can report its executable path. The
// target is treated strictly read-only.
type Handle interface {
	PID() int
	ExePath() (string, error)
}

type procfsHandle struct {
	proc procfs.Proc
}

// NewProcfsHandle returns a Handle backed by /proc for the given pid.
func NewProcfsHandle(fs procfs.FS, pid int) (Handle, error) {
	proc, err := fs.Proc(pid)
	if err != nil {
		return nil, fmt.Errorf("open proc %d: %w", pid, err)
	}
	return procfsHandle{proc: proc}, nil
}

func (h procfsHandle) PID() int { return h.proc.PID }

func (h procfsHandle) ExePath() (string, error) {
	return h.proc.Executable()
}
