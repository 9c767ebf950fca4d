// Package k8s adapts Kubernetes workload manifests to the constraint model:
// it extracts entities from the hard affinity stanzas of Pods, Deployments
// and Node label sets, and writes solved or trimmed stanzas back out. Only
// requiredDuringSchedulingIgnoredDuringExecution terms are read; preferred
// terms express no hard constraint and are left untouched.
package k8s

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MetadataResourceTypeKey records the manifest kind a rule came from.
const MetadataResourceTypeKey = "resource_type"

// ResourceType is the manifest kind an entity was extracted from.
type ResourceType string

const (
	ResourcePod        ResourceType = "pod"
	ResourceDeployment ResourceType = "deployment"
	ResourceNode       ResourceType = "node"
)

// spanned decodes a value while remembering the source line of its YAML
// node, so every affinity term keeps its position for annotation and
// removal.
type spanned[T any] struct {
	Value T
	Line  int
}

func (s *spanned[T]) UnmarshalYAML(n *yaml.Node) error {
	s.Line = n.Line
	return n.Decode(&s.Value)
}

type objectMeta struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels"`
}

// kindProbe reads just enough of a manifest to dispatch on its kind.
type kindProbe struct {
	Kind     string     `yaml:"kind"`
	Metadata objectMeta `yaml:"metadata"`
}

type podManifest struct {
	Metadata objectMeta `yaml:"metadata"`
	Spec     podSpec    `yaml:"spec"`
}

type deploymentManifest struct {
	Metadata objectMeta     `yaml:"metadata"`
	Spec     deploymentSpec `yaml:"spec"`
}

type deploymentSpec struct {
	Template podTemplate `yaml:"template"`
}

type podTemplate struct {
	Metadata objectMeta `yaml:"metadata"`
	Spec     podSpec    `yaml:"spec"`
}

type nodeManifest struct {
	Metadata objectMeta `yaml:"metadata"`
}

type podSpec struct {
	PriorityClassName string    `yaml:"priorityClassName"`
	Affinity          *affinity `yaml:"affinity"`
}

type affinity struct {
	NodeAffinity    *nodeAffinity `yaml:"nodeAffinity"`
	PodAffinity     *podAffinity  `yaml:"podAffinity"`
	PodAntiAffinity *podAffinity  `yaml:"podAntiAffinity"`
}

type nodeAffinity struct {
	Required *nodeSelector `yaml:"requiredDuringSchedulingIgnoredDuringExecution"`
}

type nodeSelector struct {
	NodeSelectorTerms []spanned[nodeSelectorTerm] `yaml:"nodeSelectorTerms"`
}

type nodeSelectorTerm struct {
	MatchExpressions []requirement `yaml:"matchExpressions"`
}

type podAffinity struct {
	Required []spanned[podAffinityTerm] `yaml:"requiredDuringSchedulingIgnoredDuringExecution"`
}

type podAffinityTerm struct {
	TopologyKey   string         `yaml:"topologyKey"`
	LabelSelector *labelSelector `yaml:"labelSelector"`
}

type labelSelector struct {
	MatchExpressions []requirement `yaml:"matchExpressions"`
}

type requirement struct {
	Key      string   `yaml:"key"`
	Operator string   `yaml:"operator"`
	Values   []string `yaml:"values"`
}

func decodeProbe(data []byte) (kindProbe, error) {
	var probe kindProbe
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return kindProbe{}, fmt.Errorf("decode manifest: %w", err)
	}
	if probe.Kind == "" {
		return kindProbe{}, fmt.Errorf("manifest has no kind")
	}
	return probe, nil
}
