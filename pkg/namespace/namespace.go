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

//go:build !windows

// Package namespace answers mount-namespace identity questions about Linux
// processes, used to decide whether an inspected process runs inside a
// container.
package namespace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

// MountNamespaceInode returns the inode of the mount namespace of the given pid.
func MountNamespaceInode(pid int) (uint64, error) {
	fileinfo, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid), "ns/mnt"))
	if err != nil {
		return 0, err
	}
	stat, ok := fileinfo.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, errors.New("not a syscall.Stat_t")
	}
	return stat.Ino, nil
}

// InSeparateMountNamespace reports whether pid lives in a different mount
// namespace than the calling process, which is how dockerized targets
// announce themselves.
func InSeparateMountNamespace(pid int) (bool, error) {
	self, err := MountNamespaceInode(os.Getpid())
	if err != nil {
		return false, fmt.Errorf("stat own mount namespace: %w", err)
	}
	target, err := MountNamespaceInode(pid)
	if err != nil {
		return false, fmt.Errorf("stat mount namespace of pid %d: %w", pid, err)
	}
	return self != target, nil
}
