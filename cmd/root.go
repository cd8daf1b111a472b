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

// Package cmd implements the xpk command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"xpk/pkg/logging"
)

var verbose bool

// version is overridden at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "xpk",
	Version: version,
	Short:   "xpk prepares GKE clusters for large accelerator workloads.",
	Long: `xpk (Accelerated Processing Kit) manages the queueing and admission stack
of GKE clusters running TPU, GPU and CPU workloads. It installs and upgrades
Kueue, runs the migrations breaking Kueue releases require, and configures
the cluster's queues and resource flavors.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

// Execute runs the root command and exits the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
