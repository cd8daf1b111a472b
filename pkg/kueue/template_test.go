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
	"testing"

	"sigs.k8s.io/yaml"

	"xpk/pkg/system"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	sys, err := system.Get("v5p-8")
	if err != nil {
		t.Fatalf("Get(v5p-8) failed: %v", err)
	}

	return Config{
		System:      sys,
		TotalChips:  8,
		NumSlices:   2,
		CPULimit:    "100",
		MemoryLimit: "1000Gi",
	}
}

func TestBuildTemplateContext(t *testing.T) {
	ctx, err := buildTemplateContext(testConfig(t))
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}

	if ctx.ClusterQueueName != "cluster-queue" {
		t.Errorf("Expected cluster queue name %q, got %q", "cluster-queue", ctx.ClusterQueueName)
	}
	if ctx.LocalQueueName != "multislice-queue" {
		t.Errorf("Expected local queue name %q, got %q", "multislice-queue", ctx.LocalQueueName)
	}
	if ctx.ManagedResource != "google.com/tpu" {
		t.Errorf("Expected managed resource %q, got %q", "google.com/tpu", ctx.ManagedResource)
	}

	if len(ctx.Flavors) != 1 {
		t.Fatalf("Expected 1 flavor, got %d", len(ctx.Flavors))
	}
	if ctx.Flavors[0].Name != "2xv5p-8" {
		t.Errorf("Expected flavor name %q, got %q", "2xv5p-8", ctx.Flavors[0].Name)
	}

	if len(ctx.ResourceGroups) != 1 {
		t.Fatalf("Expected 1 resource group, got %d", len(ctx.ResourceGroups))
	}
	group := ctx.ResourceGroups[0]
	if len(group.CoveredResources) != 3 {
		t.Errorf("Expected 3 covered resources, got %v", group.CoveredResources)
	}
	if group.Quotas[0].Resource != "google.com/tpu" || group.Quotas[0].Quota != "8" {
		t.Errorf("Expected tpu quota 8, got %+v", group.Quotas[0])
	}

	if ctx.AdmissionChecks != "" {
		t.Errorf("Expected empty admission checks without flex, got %q", ctx.AdmissionChecks)
	}
	if ctx.AutoprovisioningEnabled {
		t.Errorf("Expected autoprovisioning disabled")
	}
}

func TestBuildTemplateContextPathways(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pathways = true

	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}

	if len(ctx.Flavors) != 2 {
		t.Fatalf("Expected pathways to double the flavor count, got %d", len(ctx.Flavors))
	}
	if ctx.Flavors[1].Name != "cpu-user" {
		t.Errorf("Expected second flavor %q, got %q", "cpu-user", ctx.Flavors[1].Name)
	}

	if len(ctx.ResourceGroups) != 2 {
		t.Fatalf("Expected pathways to double the resource group count, got %d", len(ctx.ResourceGroups))
	}
	cpuGroup := ctx.ResourceGroups[1]
	if len(cpuGroup.CoveredResources) != 2 {
		t.Errorf("Expected cpu group to cover cpu and memory only, got %v", cpuGroup.CoveredResources)
	}
	if cpuGroup.FlavorName != "cpu-user" {
		t.Errorf("Expected cpu group flavor %q, got %q", "cpu-user", cpuGroup.FlavorName)
	}
}

func TestBuildTemplateContextFlexStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlexStart = true

	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}

	if !strings.Contains(ctx.AdmissionChecks, "dws-prov") {
		t.Errorf("Expected dws-prov admission check block, got %q", ctx.AdmissionChecks)
	}
	if !strings.Contains(ctx.AdmissionChecks, "google.com/tpu") {
		t.Errorf("Expected managed resource in admission check block, got %q", ctx.AdmissionChecks)
	}
}

func TestBuildTemplateContextAutoprovisioning(t *testing.T) {
	cfg := testConfig(t)
	cfg.Autoprovisioning = true

	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}
	if !ctx.AutoprovisioningEnabled {
		t.Errorf("Expected autoprovisioning flag mirrored into the context")
	}
}

func TestBuildTemplateContextRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing system", mutate: func(c *Config) { c.System = system.Characteristics{} }},
		{name: "zero chips", mutate: func(c *Config) { c.TotalChips = 0 }},
		{name: "zero slices", mutate: func(c *Config) { c.NumSlices = 0 }},
		{name: "bad cpu limit", mutate: func(c *Config) { c.CPULimit = "lots" }},
		{name: "bad memory limit", mutate: func(c *Config) { c.MemoryLimit = "1000Gb" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			if _, err := buildTemplateContext(cfg); err == nil {
				t.Errorf("Expected validation error, got nil")
			}
		})
	}
}

// splitDocuments splits a rendered multi-document manifest and parses each
// document into a map.
func splitDocuments(t *testing.T, manifest string) []map[string]interface{} {
	t.Helper()

	var docs []map[string]interface{}
	for _, raw := range strings.Split(manifest, "\n---\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
			t.Fatalf("Failed to unmarshal document: %v\n%s", err, raw)
		}
		docs = append(docs, doc)
	}

	return docs
}

func findDocument(t *testing.T, docs []map[string]interface{}, kind string) map[string]interface{} {
	t.Helper()

	for _, doc := range docs {
		if doc["kind"] == kind {
			return doc
		}
	}
	t.Fatalf("No %s document found", kind)

	return nil
}

func TestRenderClusterQueueManifest(t *testing.T) {
	ctx, err := buildTemplateContext(testConfig(t))
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}

	manifest, err := renderClusterQueueManifest(ctx)
	if err != nil {
		t.Fatalf("renderClusterQueueManifest failed: %v", err)
	}

	docs := splitDocuments(t, manifest)
	if len(docs) != 3 {
		t.Fatalf("Expected 3 documents (flavor, cluster queue, local queue), got %d", len(docs))
	}

	flavorDoc := findDocument(t, docs, "ResourceFlavor")
	flavorSpec, ok := flavorDoc["spec"].(map[string]interface{})
	if !ok {
		t.Fatalf("ResourceFlavor spec not found or not a map")
	}
	nodeLabels, ok := flavorSpec["nodeLabels"].(map[string]interface{})
	if !ok {
		t.Fatalf("ResourceFlavor nodeLabels not found or not a map")
	}
	if got := nodeLabels["cloud.google.com/gke-tpu-accelerator"]; got != "tpu-v5p-slice" {
		t.Errorf("Expected accelerator label %q, got %q", "tpu-v5p-slice", got)
	}
	if got := nodeLabels["cloud.google.com/gke-tpu-topology"]; got != "2x2x1" {
		t.Errorf("Expected topology label %q, got %q", "2x2x1", got)
	}

	cqDoc := findDocument(t, docs, "ClusterQueue")
	cqSpec, ok := cqDoc["spec"].(map[string]interface{})
	if !ok {
		t.Fatalf("ClusterQueue spec not found or not a map")
	}
	if _, ok := cqSpec["admissionChecks"]; ok {
		t.Errorf("Expected no admissionChecks without flex")
	}
	groups, ok := cqSpec["resourceGroups"].([]interface{})
	if !ok || len(groups) != 1 {
		t.Fatalf("Expected 1 resource group, got %v", cqSpec["resourceGroups"])
	}
	group, ok := groups[0].(map[string]interface{})
	if !ok {
		t.Fatalf("Resource group not a map")
	}
	flavors, ok := group["flavors"].([]interface{})
	if !ok || len(flavors) != 1 {
		t.Fatalf("Expected 1 flavor in resource group, got %v", group["flavors"])
	}
	resources := flavors[0].(map[string]interface{})["resources"].([]interface{})
	tpu := resources[0].(map[string]interface{})
	if name := tpu["name"]; name != "google.com/tpu" {
		t.Errorf("Expected first resource %q, got %q", "google.com/tpu", name)
	}
	if quota := tpu["nominalQuota"]; int(quota.(float64)) != 8 {
		t.Errorf("Expected nominal quota 8, got %v", quota)
	}

	lqDoc := findDocument(t, docs, "LocalQueue")
	lqSpec, ok := lqDoc["spec"].(map[string]interface{})
	if !ok {
		t.Fatalf("LocalQueue spec not found or not a map")
	}
	if got := lqSpec["clusterQueue"]; got != "cluster-queue" {
		t.Errorf("Expected local queue to point at %q, got %q", "cluster-queue", got)
	}
}

func TestRenderClusterQueueManifestFlexStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlexStart = true

	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}
	manifest, err := renderClusterQueueManifest(ctx)
	if err != nil {
		t.Fatalf("renderClusterQueueManifest failed: %v", err)
	}

	docs := splitDocuments(t, manifest)
	if len(docs) != 5 {
		t.Fatalf("Expected 5 documents with flex enabled, got %d", len(docs))
	}

	cqDoc := findDocument(t, docs, "ClusterQueue")
	cqSpec := cqDoc["spec"].(map[string]interface{})
	checks, ok := cqSpec["admissionChecks"].([]interface{})
	if !ok || len(checks) != 1 || checks[0] != "dws-prov" {
		t.Errorf("Expected admissionChecks [dws-prov], got %v", cqSpec["admissionChecks"])
	}

	checkDoc := findDocument(t, docs, "AdmissionCheck")
	if name := checkDoc["metadata"].(map[string]interface{})["name"]; name != "dws-prov" {
		t.Errorf("Expected admission check name %q, got %q", "dws-prov", name)
	}
	findDocument(t, docs, "ProvisioningRequestConfig")
}

func TestRenderClusterQueueManifestPathways(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pathways = true

	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}
	manifest, err := renderClusterQueueManifest(ctx)
	if err != nil {
		t.Fatalf("renderClusterQueueManifest failed: %v", err)
	}

	docs := splitDocuments(t, manifest)
	if len(docs) != 4 {
		t.Fatalf("Expected 4 documents with pathways enabled, got %d", len(docs))
	}

	var flavorNames []string
	for _, doc := range docs {
		if doc["kind"] == "ResourceFlavor" {
			flavorNames = append(flavorNames, doc["metadata"].(map[string]interface{})["name"].(string))
		}
	}
	if len(flavorNames) != 2 || flavorNames[1] != "cpu-user" {
		t.Errorf("Expected flavors [2xv5p-8 cpu-user], got %v", flavorNames)
	}
}

func TestRenderClusterQueueManifestAutoprovisioningLabel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Autoprovisioning = true

	ctx, err := buildTemplateContext(cfg)
	if err != nil {
		t.Fatalf("buildTemplateContext failed: %v", err)
	}
	manifest, err := renderClusterQueueManifest(ctx)
	if err != nil {
		t.Fatalf("renderClusterQueueManifest failed: %v", err)
	}

	cqDoc := findDocument(t, splitDocuments(t, manifest), "ClusterQueue")
	labels, ok := cqDoc["metadata"].(map[string]interface{})["labels"].(map[string]interface{})
	if !ok {
		t.Fatalf("ClusterQueue labels not found with autoprovisioning enabled")
	}
	if got := labels["xpk.google.com/autoprovisioning"]; got != "true" {
		t.Errorf("Expected autoprovisioning label %q, got %q", "true", got)
	}
}
