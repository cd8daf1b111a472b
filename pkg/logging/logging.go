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

// Package logging provides the leveled, colored logging used by all xpk
// commands. Progress output goes to stderr so manifests written to stdout
// stay machine-readable.
package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&cliFormatter{colored: isatty.IsTerminal(os.Stderr.Fd())})

	return l
}

// SetVerbose enables debug-level output.
func SetVerbose(verbose bool) {
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...any) {
	logger.Debugf(format, args...)
}

// Info logs a formatted message at info level.
func Info(format string, args ...any) {
	logger.Infof(format, args...)
}

// Warn logs a formatted message at warning level.
func Warn(format string, args ...any) {
	logger.Warnf(format, args...)
}

// Error logs a formatted message at error level.
func Error(format string, args ...any) {
	logger.Errorf(format, args...)
}

// Fatal logs a formatted message at error level and exits with code 1.
func Fatal(format string, args ...any) {
	logger.Fatalf(format, args...)
}

// cliFormatter renders entries as "[15:04:05] LEVEL message" with the level
// colored when stderr is a terminal.
type cliFormatter struct {
	colored bool
}

func (f *cliFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := levelTag(entry.Level)
	if f.colored {
		level = levelColor(entry.Level).Sprint(level)
	}

	return []byte(fmt.Sprintf("[%s] %s %s\n", entry.Time.Format(time.TimeOnly), level, entry.Message)), nil
}

func levelTag(level logrus.Level) string {
	switch level {
	case logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	default:
		return "ERROR"
	}
}

func levelColor(level logrus.Level) *color.Color {
	switch level {
	case logrus.DebugLevel:
		return color.New(color.FgWhite)
	case logrus.InfoLevel:
		return color.New(color.FgGreen)
	case logrus.WarnLevel:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
