// Copyright 2026 "Google LLC"
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kueue

import (
	"strings"

	"github.com/spf13/afero"
)

// fakeRunner records every issued command and answers from canned exit codes
// and outputs.
type fakeRunner struct {
	history []string
	// failOn maps a command to the exit code it should fail with.
	failOn map[string]int
	// values maps a command to the stdout RunCommandForValue returns.
	values map[string]string
}

func (f *fakeRunner) RunCommandWithUpdatesRetry(command, task string) int {
	f.history = append(f.history, command)
	if code, ok := f.failOn[command]; ok {
		return code
	}

	return 0
}

func (f *fakeRunner) RunCommandForValue(command, task string) (int, string) {
	f.history = append(f.history, command)
	if code, ok := f.failOn[command]; ok {
		return code, ""
	}

	return 0, f.values[command]
}

// commandsContaining returns the recorded commands containing substr, in
// order.
func (f *fakeRunner) commandsContaining(substr string) []string {
	var matched []string
	for _, cmd := range f.history {
		if strings.Contains(cmd, substr) {
			matched = append(matched, cmd)
		}
	}

	return matched
}

func newTestManager(runner *fakeRunner) *Manager {
	return &Manager{
		runner: runner,
		fs:     afero.NewMemMapFs(),
		target: targetVersion,
	}
}
