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

package namespace

import (
	"os"
	goruntime "runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMountNamespaceInode(t *testing.T) {
	if goruntime.GOOS != "linux" {
		t.Skip("requires /proc")
	}
	ino, err := MountNamespaceInode(os.Getpid())
	require.NoError(t, err)
	require.NotZero(t, ino)
}

func TestInSeparateMountNamespace_self(t *testing.T) {
	if goruntime.GOOS != "linux" {
		t.Skip("requires /proc")
	}
	separate, err := InSeparateMountNamespace(os.Getpid())
	require.NoError(t, err)
	require.False(t, separate)
}

func TestMountNamespaceInode_gone(t *testing.T) {
	// PID max on Linux defaults to 4194304; anything above it cannot exist.
	_, err := MountNamespaceInode(1 << 23)
	require.Error(t, err)
}
