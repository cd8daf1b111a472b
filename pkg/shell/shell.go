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

// Package shell executes gcloud and kubectl invocations for the rest of xpk.
// Commands are passed to bash so pipes and redirections work as written.
package shell

import (
	"bytes"
	"math/rand"
	"os/exec"
	"strings"
	"time"

	"xpk/pkg/logging"
)

// Result holds the outcome of a single shell command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Command wraps one shell invocation with optional stdin input.
type Command struct {
	command string
	input   string
}

// NewCommand creates a Command for the given shell command line.
func NewCommand(command string) *Command {
	return &Command{command: command}
}

// SetInput feeds input to the command's stdin when executed.
func (c *Command) SetInput(input string) {
	c.input = input
}

// Execute runs the command and captures its output. An exit code of -1 means
// the process could not be started at all.
func (c *Command) Execute() Result {
	cmd := exec.Command("bash", "-c", c.command)
	if c.input != "" {
		cmd.Stdin = strings.NewReader(c.input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderr.WriteString(err.Error())
		}
	}

	return Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}
}

// ExecuteCommand runs a shell command line and returns its result.
func ExecuteCommand(command string) Result {
	return NewCommand(command).Execute()
}

const maxRetryAttempts = 5

// retryDelay is a package variable so tests can run retries without sleeping.
var retryDelay = 10 * time.Second

// Executor issues commands against a single project/zone context. It is
// configured once per command invocation and read-only thereafter.
type Executor struct {
	Project string
	Zone    string
}

// NewExecutor creates an Executor bound to a project and zone.
func NewExecutor(project, zone string) *Executor {
	return &Executor{Project: project, Zone: zone}
}

// RunCommandForValue runs a command once and returns its exit code and
// trimmed stdout. Used when the caller needs the command's output, not just
// success or failure.
func (e *Executor) RunCommandForValue(command, task string) (int, string) {
	logging.Debug("Task: `%s`, command: %s", task, command)

	res := ExecuteCommand(command)
	if res.ExitCode != 0 {
		logging.Error("Task `%s` failed with exit code %d: %s", task, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return res.ExitCode, strings.TrimSpace(res.Stdout)
}

// RunCommandWithUpdatesRetry runs a command, printing progress per attempt
// and retrying transient failures with a fixed backoff. Returns the final
// exit code.
func (e *Executor) RunCommandWithUpdatesRetry(command, task string) int {
	var res Result
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		logging.Info("Task: `%s` [attempt %d/%d]", task, attempt, maxRetryAttempts)
		logging.Debug("Command: %s", command)

		res = ExecuteCommand(command)
		if res.ExitCode == 0 {
			return 0
		}

		logging.Warn("Task `%s` failed with exit code %d: %s", task, res.ExitCode, strings.TrimSpace(res.Stderr))
		if attempt < maxRetryAttempts {
			time.Sleep(retryDelay)
		}
	}

	logging.Error("Task `%s` failed after %d attempts.", task, maxRetryAttempts)

	return res.ExitCode
}

// RandomString generates a random lowercase string of the given length, used
// to avoid temp file name collisions.
func RandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz"
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}

	return string(b)
}
