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
	"bytes"
	"fmt"
	"io"
	"strconv"
	"text/template"

	"gopkg.in/yaml.v2"

	"xpk/pkg/system"
)

// ClusterQueueManifestTemplate is the Go template for the queueing resources
// applied after every install or upgrade: one ResourceFlavor per flavor, the
// ClusterQueue with its resource groups, the LocalQueue workloads submit to,
// and the DWS admission-check block when flex-start capacity is requested.
const ClusterQueueManifestTemplate = `{{range .Flavors -}}
apiVersion: kueue.x-k8s.io/v1beta1
kind: ResourceFlavor
metadata:
  name: {{.Name}}
spec:
{{- if .Labels}}
  nodeLabels:
{{- range .Labels}}
    {{.Key}}: "{{.Value}}"
{{- end}}
{{- else}} {}
{{- end}}
---
{{end -}}
apiVersion: kueue.x-k8s.io/v1beta1
kind: ClusterQueue
metadata:
  name: {{.ClusterQueueName}}
{{- if .AutoprovisioningEnabled}}
  labels:
    xpk.google.com/autoprovisioning: "true"
{{- end}}
spec:
  namespaceSelector: {}
  preemption:
    reclaimWithinCohort: Never
    withinClusterQueue: Never
{{- if .AdmissionChecks}}
  admissionChecks:
  - dws-prov
{{- end}}
  resourceGroups:
{{- range .ResourceGroups}}
  - coveredResources:
{{- range .CoveredResources}}
    - "{{.}}"
{{- end}}
    flavors:
    - name: {{.FlavorName}}
      resources:
{{- range .Quotas}}
      - name: "{{.Resource}}"
        nominalQuota: {{.Quota}}
{{- end}}
{{- end}}
---
apiVersion: kueue.x-k8s.io/v1beta1
kind: LocalQueue
metadata:
  namespace: default
  name: {{.LocalQueueName}}
spec:
  clusterQueue: {{.ClusterQueueName}}
{{.AdmissionChecks}}`

// dwsAdmissionChecksTemplate renders the admission-check block injected when
// flex-start is enabled; %s is the managed accelerator resource.
const dwsAdmissionChecksTemplate = `---
apiVersion: kueue.x-k8s.io/v1beta1
kind: AdmissionCheck
metadata:
  name: dws-prov
spec:
  controllerName: kueue.x-k8s.io/provisioning-request
  parameters:
    apiGroup: kueue.x-k8s.io
    kind: ProvisioningRequestConfig
    name: dws-config
---
apiVersion: kueue.x-k8s.io/v1beta1
kind: ProvisioningRequestConfig
metadata:
  name: dws-config
spec:
  provisioningClassName: queued-provisioning.gke.io
  managedResources:
  - "%s"
`

// Fixed queue and flavor names workloads reference at submission time.
const (
	clusterQueueName = "cluster-queue"
	localQueueName   = "multislice-queue"
	cpuUserFlavor    = "cpu-user"
	cpuNodepoolLabel = "cloud.google.com/gke-nodepool"
	cpuNodepoolName  = "cpu-np"
)

// flavorQuota is one covered resource's nominal quota under a flavor.
type flavorQuota struct {
	Resource string
	Quota    string
}

// resourceGroup covers a set of resources with quotas drawn from one flavor.
type resourceGroup struct {
	CoveredResources []string
	FlavorName       string
	Quotas           []flavorQuota
}

// flavor is one ResourceFlavor with its node-selector labels.
type flavor struct {
	Name   string
	Labels []system.Label
}

// TemplateContext is the transient data bundle rendered into the queueing
// manifest. It is rebuilt fresh on every reconciliation and never persisted.
type TemplateContext struct {
	ClusterQueueName        string
	LocalQueueName          string
	ManagedResource         string
	Flavors                 []flavor
	ResourceGroups          []resourceGroup
	AdmissionChecks         string
	AutoprovisioningEnabled bool
}

// buildTemplateContext maps a validated config into the manifest template's
// input. Pure: it issues no commands and reads no cluster state.
func buildTemplateContext(cfg Config) (TemplateContext, error) {
	if err := cfg.Validate(); err != nil {
		return TemplateContext{}, err
	}

	baseFlavor := flavor{
		Name:   fmt.Sprintf("%dx%s", cfg.NumSlices, cfg.System.DeviceType),
		Labels: cfg.System.NodeSelectorLabels(),
	}
	managedResource := cfg.System.ResourceType()

	ctx := TemplateContext{
		ClusterQueueName: clusterQueueName,
		LocalQueueName:   localQueueName,
		ManagedResource:  managedResource,
		Flavors:          []flavor{baseFlavor},
		ResourceGroups: []resourceGroup{
			{
				CoveredResources: []string{managedResource, "cpu", "memory"},
				FlavorName:       baseFlavor.Name,
				Quotas: []flavorQuota{
					{Resource: managedResource, Quota: strconv.Itoa(cfg.TotalChips)},
					{Resource: "cpu", Quota: cfg.CPULimit},
					{Resource: "memory", Quota: cfg.MemoryLimit},
				},
			},
		},
		AutoprovisioningEnabled: cfg.Autoprovisioning,
	}

	if cfg.Pathways {
		// Pathways workers run as separate CPU-only pods and need their own
		// flavor and quota accounting.
		ctx.Flavors = append(ctx.Flavors, flavor{
			Name:   cpuUserFlavor,
			Labels: []system.Label{{Key: cpuNodepoolLabel, Value: cpuNodepoolName}},
		})
		ctx.ResourceGroups = append(ctx.ResourceGroups, resourceGroup{
			CoveredResources: []string{"cpu", "memory"},
			FlavorName:       cpuUserFlavor,
			Quotas: []flavorQuota{
				{Resource: "cpu", Quota: cfg.CPULimit},
				{Resource: "memory", Quota: cfg.MemoryLimit},
			},
		})
	}

	if cfg.FlexStart {
		ctx.AdmissionChecks = fmt.Sprintf(dwsAdmissionChecksTemplate, managedResource)
	}

	return ctx, nil
}

// renderClusterQueueManifest renders the queueing manifest for a context and
// verifies the output parses as YAML before any command sees it.
func renderClusterQueueManifest(ctx TemplateContext) (string, error) {
	tmpl, err := template.New("clusterQueue").Parse(ClusterQueueManifestTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse cluster queue template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to execute cluster queue template: %w", err)
	}

	if err := validateYAMLDocuments(buf.Bytes()); err != nil {
		return "", fmt.Errorf("rendered queueing manifest is not valid YAML: %w", err)
	}

	return buf.String(), nil
}

// validateYAMLDocuments decodes every document in a multi-document YAML
// stream, surfacing template mistakes before kubectl does.
func validateYAMLDocuments(manifest []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(manifest))
	for {
		var doc interface{}
		if err := decoder.Decode(&doc); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
