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

// Package procmem reads another process's virtual memory. The target is
// never written to.
package procmem

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ReadAt fills buf from the target's memory at addr. It uses
// process_vm_readv and falls back to /proc/<pid>/mem where the syscall is
// unavailable or forbidden (some seccomp profiles).
func ReadAt(pid int, addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	local := []unix.Iovec{{
		Base: &buf[0],
		Len:  uint64(len(buf)),
	}}
	remote := []unix.RemoteIovec{{
		Base: uintptr(addr),
		Len:  len(buf),
	}}

	n, err := unix.ProcessVMReadv(pid, local, remote, 0)
	if err != nil {
		if err == unix.ENOSYS || err == unix.EPERM {
			return readFromProcMem(pid, addr, buf)
		}
		return fmt.Errorf("process_vm_readv pid %d addr 0x%x: %w", pid, addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("short read from pid %d at 0x%x: %d of %d bytes", pid, addr, n, len(buf))
	}
	return nil
}

func readFromProcMem(pid int, addr uint64, buf []byte) error {
	procMem, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return err
	}
	defer procMem.Close()

	if _, err := procMem.Seek(int64(addr), 0); err != nil {
		return err
	}

	_, err = procMem.Read(buf)
	return err
}
