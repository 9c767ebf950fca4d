package k8s

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"placefix/internal/logging"
	"placefix/internal/model"
)

// nodeAffinityTopologyKey is the topology key stamped onto node-affinity
// rules, which always bind at node granularity.
const nodeAffinityTopologyKey = "kubernetes.io/hostname"

// ExtractEntitiesFromFile parses one manifest file into entities. Pods and
// Deployments become an `app=<name>` entity carrying their hard affinity
// rules; a Node becomes one dummy entity per label, defining the targets
// node-affinity rules point at.
func ExtractEntitiesFromFile(path string) ([]model.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	probe, err := decodeProbe(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	switch probe.Kind {
	case "Pod":
		var m podManifest
		if err := decodeStrictish(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if m.Metadata.Name == "" {
			return nil, fmt.Errorf("%s: missing name in pod metadata", path)
		}
		e, err := extractEntity(m.Metadata.Name, &m.Spec, ResourcePod, path)
		if err != nil {
			return nil, err
		}
		return []model.Entity{e}, nil

	case "Deployment":
		var m deploymentManifest
		if err := decodeStrictish(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		name := m.Metadata.Name
		if name == "" {
			name = m.Spec.Template.Metadata.Name
		}
		if name == "" {
			return nil, fmt.Errorf("%s: missing name in deployment metadata", path)
		}
		e, err := extractEntity(name, &m.Spec.Template.Spec, ResourceDeployment, path)
		if err != nil {
			return nil, err
		}
		return []model.Entity{e}, nil

	case "Node":
		var m nodeManifest
		if err := decodeStrictish(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return extractNodeEntities(m.Metadata.Labels, path), nil

	default:
		return nil, fmt.Errorf("%s: unsupported manifest kind %q", path, probe.Kind)
	}
}

// decodeStrictish decodes a manifest, keeping the fields we model and
// skipping the rest; unknown fields are expected in real manifests.
func decodeStrictish(data []byte, out any) error {
	return yaml.Unmarshal(data, out)
}

// extractNodeEntities defines one dummy label entity per node label. The
// node's own rules live on the workloads targeting it.
func extractNodeEntities(labels map[string]string, path string) []model.Entity {
	if len(labels) == 0 {
		return nil
	}
	if _, ok := labels[nodeAffinityTopologyKey]; !ok {
		logging.L(logging.CategoryPlugin).Warnf("%s: node has no %s label", path, nodeAffinityTopologyKey)
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entities := make([]model.Entity, 0, len(keys))
	for _, k := range keys {
		name := fmt.Sprintf("%s=%s", k, labels[k])
		entities = append(entities, *model.NewEntityWithSource(name, model.FileSource(path)))
	}
	return entities
}

func extractEntity(name string, spec *podSpec, resource ResourceType, path string) (model.Entity, error) {
	// Workload entities are keyed by their app label.
	entity := model.NewEntityWithSource("app="+name, model.FileSource(path))
	entity.Priority = model.ParsePriority(spec.PriorityClassName)

	if spec.Affinity == nil {
		return *entity, nil
	}

	if na := spec.Affinity.NodeAffinity; na != nil && na.Required != nil {
		extractNodeAffinity(na.Required.NodeSelectorTerms, entity, resource, path)
	}
	if pa := spec.Affinity.PodAffinity; pa != nil {
		extractPodAffinity(pa.Required, entity, resource, path, false)
	}
	if pa := spec.Affinity.PodAntiAffinity; pa != nil {
		extractPodAffinity(pa.Required, entity, resource, path, true)
	}
	return *entity, nil
}

func extractNodeAffinity(terms []spanned[nodeSelectorTerm], entity *model.Entity, resource ResourceType, path string) {
	for _, term := range terms {
		for _, expr := range term.Value.MatchExpressions {
			meta := model.NewMetadata(path, term.Line, map[string]string{
				MetadataResourceTypeKey:   string(resource),
				"key":                      expr.Key,
				"type":                     "nodeAffinity",
				"topology_key":             nodeAffinityTopologyKey,
				model.MetadataTopologyKey: string(model.TopologyNode),
			})
			addExpressionRules(entity, expr, meta, path, term.Line, false)
		}
	}
}

func extractPodAffinity(terms []spanned[podAffinityTerm], entity *model.Entity, resource ResourceType, path string, anti bool) {
	log := logging.L(logging.CategoryPlugin)
	kind := "podAffinity"
	if anti {
		kind = "podAntiAffinity"
	}

	for _, term := range terms {
		topo, ok := topologyFor(term.Value.TopologyKey)
		if !ok {
			log.Warnf("%s:%d: unsupported topology key %q, skipping term", path, term.Line, term.Value.TopologyKey)
			continue
		}
		if term.Value.LabelSelector == nil {
			log.Warnf("%s:%d: %s term has no label selector, skipping", path, term.Line, kind)
			continue
		}

		for _, expr := range term.Value.LabelSelector.MatchExpressions {
			meta := model.NewMetadata(path, term.Line, map[string]string{
				MetadataResourceTypeKey:   string(resource),
				"key":                      expr.Key,
				"type":                     kind,
				"topology_key":             term.Value.TopologyKey,
				model.MetadataTopologyKey: string(topo),
			})
			addExpressionRules(entity, expr, meta, path, term.Line, anti)
		}
	}
}

// addExpressionRules turns one match expression into rules. In expressions
// keep the surrounding polarity; NotIn flips it, which splits a disjunctive
// selector into conjunctive exclusions, so the rewrite is flagged.
func addExpressionRules(entity *model.Entity, expr requirement, meta *model.Metadata, path string, line int, anti bool) {
	log := logging.L(logging.CategoryPlugin)

	exclude := anti
	switch expr.Operator {
	case "In":
		meta.Set("operator", "In")
	case "NotIn":
		log.Warnf("%s:%d: operator NotIn rewritten as In with inverted polarity; the targets become jointly required/forbidden, which may not be intended", path, line)
		meta.Set("operator", "In")
		meta.Set("inverse", "true")
		exclude = !anti
	default:
		log.Warnf("%s:%d: unsupported operator %q, skipping expression", path, line, expr.Operator)
		return
	}

	if len(expr.Values) == 0 {
		return
	}

	typ := model.Require
	if exclude {
		typ = model.Exclude
	}

	origin := model.NewRuleSource(path, line)
	if len(expr.Values) == 1 {
		target := fmt.Sprintf("%s=%s", expr.Key, expr.Values[0])
		entity.Add(model.Mono(entity.Name, target, typ, origin, meta))
		return
	}

	targets := make([]string, 0, len(expr.Values))
	for _, v := range expr.Values {
		targets = append(targets, fmt.Sprintf("%s=%s", expr.Key, v))
	}
	entity.Add(model.Multi(entity.Name, targets, typ, origin, meta))
}

func topologyFor(topologyKey string) (model.TopologyKey, bool) {
	switch topologyKey {
	case "kubernetes.io/hostname", "topology.kubernetes.io/hostname":
		return model.TopologyNode, true
	case "topology.kubernetes.io/zone", "topology.kubernetes.io/region":
		return model.TopologyZone, true
	default:
		return "", false
	}
}
