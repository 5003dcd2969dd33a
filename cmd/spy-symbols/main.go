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
//

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-kit/log/level"
	"github.com/prometheus/procfs"

	"github.com/rbspy/spytools/pkg/elfparser"
	"github.com/rbspy/spytools/pkg/logger"
	"github.com/rbspy/spytools/pkg/process"
	"github.com/rbspy/spytools/pkg/procmem"
	"github.com/rbspy/spytools/pkg/runtime"
)

type flags struct {
	PID      int      `kong:"required,help='Process ID of the interpreter process to inspect.'"`
	Runtime  string   `kong:"enum='python,ruby',default='python',help='Interpreter runtime to look for.'"`
	Symbols  []string `kong:"help='Symbol names to resolve. Defaults to the runtime required symbols.'"`
	LogLevel string   `kong:"enum='error,warn,info,debug',default='info',help='Log level.'"`
	Detect   bool     `kong:"help='Only report whether the process runs the given runtime.'"`
	Peek     uint     `kong:"help='Dump this many bytes of process memory at each resolved address.'"`
	Retries  uint64   `kong:"default='0',help='How often to retry inspection while the process is starting up.'"`
}

// This tool exists for debugging symbol resolution against live interpreter
// processes and is intended for developers.
func main() {
	flags := flags{}
	kong.Parse(&flags)

	logger := logger.NewLogger(flags.LogLevel, logger.LogFormatLogfmt, "spy-symbols")

	d, err := runtime.ByName(flags.Runtime)
	if err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}

	fs, err := procfs.NewDefaultFS()
	if err != nil {
		level.Error(logger).Log("msg", "failed to open procfs", "err", err)
		os.Exit(1)
	}

	if flags.Detect {
		proc, err := fs.Proc(flags.PID)
		if err != nil {
			level.Error(logger).Log("msg", "failed to open process", "pid", flags.PID, "err", err)
			os.Exit(1)
		}
		ok, err := elfparser.IsRuntimeProcess(proc, d)
		if err != nil {
			level.Error(logger).Log("msg", "detection failed", "err", err)
			os.Exit(1)
		}
		fmt.Printf("pid %d runs %s: %t\n", flags.PID, d.Name(), ok)
		if !ok {
			os.Exit(1)
		}
		return
	}

	handle, err := process.NewProcfsHandle(fs, flags.PID)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open process", "pid", flags.PID, "err", err)
		os.Exit(1)
	}

	ins := process.NewInspector(logger, nil)

	// Interpreters map their runtime library a moment after exec, so a
	// just-started process may need a few attempts.
	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = 100 * time.Millisecond

	var info *process.Info
	err = backoff.Retry(func() error {
		var err error
		info, err = ins.Inspect(handle, d)
		if err != nil {
			level.Debug(logger).Log("msg", "inspection attempt failed", "retry", expBackOff.NextBackOff(), "err", err)
		}
		return err
	}, backoff.WithMaxRetries(expBackOff, flags.Retries))
	if err != nil {
		level.Error(logger).Log("msg", "failed to inspect process", "pid", flags.PID, "err", err)
		os.Exit(1)
	}

	fmt.Printf("exe: %s\n", info.Path)
	fmt.Printf("dockerized: %t\n", info.Dockerized)
	if v, err := runtime.VersionFromPath(d, info.Path); err == nil {
		fmt.Printf("version (from path): %s\n", v)
	}

	symbols := flags.Symbols
	if len(symbols) == 0 {
		symbols = d.RequiredSymbols()
	}

	missing := 0
	for _, name := range symbols {
		addr, ok := info.GetSymbol(name)
		if !ok {
			fmt.Printf("%-40s not found\n", name)
			missing++
			continue
		}
		fmt.Printf("%-40s 0x%016x\n", name, addr)

		if flags.Peek > 0 {
			buf := make([]byte, flags.Peek)
			if err := procmem.ReadAt(handle.PID(), addr, buf); err != nil {
				level.Warn(logger).Log("msg", "failed to read process memory", "symbol", name, "err", err)
				continue
			}
			fmt.Printf("%-40s %s\n", "", hex.EncodeToString(buf))
		}
	}

	if missing == len(symbols) {
		level.Error(logger).Log("msg", "no requested symbol found", "pid", flags.PID)
		os.Exit(1)
	}
}
