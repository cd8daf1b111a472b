// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kueue

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Version is a semantic Kueue release version, ordered by semver precedence.
type Version struct {
	v *goversion.Version
}

// ParseVersion parses a release version with or without a leading "v",
// e.g. "v0.14.2".
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	v, err := goversion.NewSemver(raw)
	if err != nil {
		return Version{}, fmt.Errorf("invalid kueue version %q: %w", s, err)
	}

	return Version{v: v}, nil
}

// mustParseVersion panics on an invalid version. Only for compiled-in
// constants.
func mustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}

	return v
}

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool {
	return v.v.LessThan(o.v)
}

// Equal reports whether v and o denote the same release.
func (v Version) Equal(o Version) bool {
	return v.v.Equal(o.v)
}

// String renders the version with its leading "v", matching release tags.
func (v Version) String() string {
	return "v" + v.v.String()
}
