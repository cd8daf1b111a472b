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

import "fmt"

// targetVersion is the Kueue release this binary installs and upgrades to.
var targetVersion = mustParseVersion("v0.14.2")

// manifestVersionEntry ties a Kueue release to its manifest URL and, for
// releases with breaking schema changes, the migration that must run around
// its install.
type manifestVersionEntry struct {
	version     Version
	manifestURL string
	migration   *migrationHandler
}

// manifestURL builds the upstream release manifest URL for a Kueue version.
func manifestURL(v Version) string {
	return fmt.Sprintf("https://github.com/kubernetes-sigs/kueue/releases/download/%s/manifests.yaml", v)
}

// breakingReleases lists, in ascending order, every Kueue release that
// changed its CRD schema in a way that needs ordered migration steps around
// the manifest apply. The handlers are code and ship with the binary, so the
// table is hand-maintained rather than fetched.
var breakingReleases = []manifestVersionEntry{
	{version: mustParseVersion("v0.13.0"), migration: cohortsMigration()},
	{version: mustParseVersion("v0.14.0"), migration: topologiesMigration()},
}

func init() {
	for i := range breakingReleases {
		breakingReleases[i].manifestURL = manifestURL(breakingReleases[i].version)
		if i > 0 && !breakingReleases[i-1].version.LessThan(breakingReleases[i].version) {
			// A duplicate or mis-ordered table is a programming error.
			panic(fmt.Sprintf("breaking release table out of order at %s", breakingReleases[i].version))
		}
	}
}

// entriesInRange returns, in ascending order, every release that must be
// installed to move from `from` to `to`.
//
// A nil `from` means a fresh install: the final schema is written directly,
// so only the entry for `to` is returned and no migrations run. A release
// equal to `from` is excluded because its migration already ran when it was
// installed. Releases beyond `to` never appear, even when breaking changes
// exist above it.
func entriesInRange(from *Version, to Version) []manifestVersionEntry {
	if from == nil {
		return []manifestVersionEntry{{version: to, manifestURL: manifestURL(to)}}
	}
	if !from.LessThan(to) {
		return nil
	}

	var entries []manifestVersionEntry
	for _, e := range breakingReleases {
		if from.LessThan(e.version) && !to.LessThan(e.version) {
			entries = append(entries, e)
		}
	}

	if len(entries) == 0 || !entries[len(entries)-1].version.Equal(to) {
		entries = append(entries, manifestVersionEntry{version: to, manifestURL: manifestURL(to)})
	}

	return entries
}
