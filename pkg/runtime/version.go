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

package runtime

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var versionPathRegex = map[Name]*regexp.Regexp{
	// /usr/bin/python3.9, /usr/lib/libpython3.9d.so.1.0
	NamePython: regexp.MustCompile(`python(\d)\.(\d+)`),
	// /usr/bin/ruby3.1, /usr/lib/libruby.so.3.1.2, ruby-2.7.5
	NameRuby: regexp.MustCompile(`ruby[-.]?(?:so\.)?(\d)\.(\d+)(?:\.(\d+))?`),
}

// VersionFromPath guesses the runtime version from the textual form of an
// executable or library path. The patch level is rarely present in paths and
// defaults to zero. This is a display-level convenience; symbol resolution
// never depends on it.
func VersionFromPath(d *Descriptor, path string) (*semver.Version, error) {
	rgx, ok := versionPathRegex[d.Name()]
	if !ok {
		return nil, fmt.Errorf("no version pattern for runtime %q", d.Name())
	}

	m := rgx.FindStringSubmatch(path)
	if m == nil {
		return nil, fmt.Errorf("no version found in path %q", path)
	}

	patch := "0"
	if len(m) > 3 && m[3] != "" {
		patch = m[3]
	}

	v, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], patch))
	if err != nil {
		return nil, fmt.Errorf("parse version from path %q: %w", path, err)
	}
	return v, nil
}
