package k8s

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"placefix/internal/logging"
	"placefix/internal/model"
)

const requiredKey = "requiredDuringSchedulingIgnoredDuringExecution"

// NamedDoc is a re-emitted manifest, keyed by its base file name.
type NamedDoc struct {
	Name string
	Data []byte
}

type outRequirement struct {
	Key      string   `yaml:"key"`
	Operator string   `yaml:"operator"`
	Values   []string `yaml:"values"`
}

type outPodTerm struct {
	TopologyKey   string `yaml:"topologyKey"`
	LabelSelector struct {
		MatchExpressions []outRequirement `yaml:"matchExpressions"`
	} `yaml:"labelSelector"`
}

type outNodeTerm struct {
	MatchExpressions []outRequirement `yaml:"matchExpressions"`
}

// InjectEntities rewrites each entity's rules into the affinity stanzas of
// its source manifest. Existing required terms are replaced wholesale by the
// terms rebuilt from the rules' metadata.
func InjectEntities(entities []model.Entity, mapping map[string]string) ([]NamedDoc, error) {
	var docs []NamedDoc
	for i := range entities {
		e := &entities[i]
		if e.IsDummy() {
			continue
		}
		path, ok := mapping[e.Name]
		if !ok {
			return nil, fmt.Errorf("no source file found for entity %s", e.Name)
		}
		doc, err := injectEntity(e, path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func injectEntity(e *model.Entity, path string) (NamedDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NamedDoc{}, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}
	root, err := docRoot(&doc)
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}

	kindNode := mapValue(root, "kind")
	if kindNode == nil {
		return NamedDoc{}, fmt.Errorf("%s: manifest has no kind", path)
	}
	spec, err := specNodeFor(root, kindNode.Value, true)
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}

	affinityNode := ensureMapValue(spec, "affinity")

	if len(e.Requires) > 0 {
		terms, err := buildPodTerms(e.Requires)
		if err != nil {
			return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
		}
		if err := setRequiredTerms(ensureMapValue(affinityNode, "podAffinity"), terms); err != nil {
			return NamedDoc{}, err
		}
	}
	if len(e.Excludes) > 0 {
		terms, err := buildPodTerms(e.Excludes)
		if err != nil {
			return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
		}
		if err := setRequiredTerms(ensureMapValue(affinityNode, "podAntiAffinity"), terms); err != nil {
			return NamedDoc{}, err
		}
	}

	nodeTerms, err := buildNodeTerms(e.Rules())
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(nodeTerms) > 0 {
		nodeAff := ensureMapValue(affinityNode, "nodeAffinity")
		required := ensureMapValue(nodeAff, requiredKey)
		seq, err := encodeNode(nodeTerms)
		if err != nil {
			return NamedDoc{}, err
		}
		setMapValue(required, "nodeSelectorTerms", seq)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}
	return NamedDoc{Name: filepath.Base(path), Data: out}, nil
}

func setRequiredTerms(affinityKind *yaml.Node, terms []outPodTerm) error {
	seq, err := encodeNode(terms)
	if err != nil {
		return err
	}
	setMapValue(affinityKind, requiredKey, seq)
	return nil
}

// buildPodTerms rebuilds pod (anti-)affinity terms from rules whose type
// metadata marks them as pod rules; node-affinity rules are skipped here.
func buildPodTerms(rules []model.Rule) ([]outPodTerm, error) {
	terms := make([]outPodTerm, 0, len(rules))
	for _, r := range rules {
		typ, _ := r.Lookup("type")
		if typ != "podAffinity" && typ != "podAntiAffinity" {
			continue
		}
		key, operator, topologyKey := termMeta(r, "topology.kubernetes.io/hostname")
		values, err := termValues(r, key)
		if err != nil {
			return nil, err
		}

		var term outPodTerm
		term.TopologyKey = topologyKey
		term.LabelSelector.MatchExpressions = []outRequirement{{
			Key:      key,
			Operator: operator,
			Values:   values,
		}}
		terms = append(terms, term)
	}
	return terms, nil
}

func buildNodeTerms(rules []model.Rule) ([]outNodeTerm, error) {
	terms := make([]outNodeTerm, 0, len(rules))
	for _, r := range rules {
		if typ, _ := r.Lookup("type"); typ != "nodeAffinity" {
			continue
		}
		key, operator, _ := termMeta(r, nodeAffinityTopologyKey)
		values, err := termValues(r, key)
		if err != nil {
			return nil, err
		}
		terms = append(terms, outNodeTerm{MatchExpressions: []outRequirement{{
			Key:      key,
			Operator: operator,
			Values:   values,
		}}})
	}
	return terms, nil
}

func termMeta(r model.Rule, defaultTopologyKey string) (key, operator, topologyKey string) {
	log := logging.L(logging.CategoryPlugin)

	topologyKey, ok := r.Lookup("topology_key")
	if !ok {
		log.Warnf("no topology_key in metadata for rule %s, assuming %s", r, defaultTopologyKey)
		topologyKey = defaultTopologyKey
	}
	key, ok = r.Lookup("key")
	if !ok {
		log.Warnf("no key in metadata for rule %s, assuming app", r)
		key = "app"
	}
	operator, ok = r.Lookup("operator")
	if !ok {
		log.Warnf("no operator in metadata for rule %s, assuming In", r)
		operator = "In"
	}
	if operator == "NotIn" {
		log.Warnf("operator NotIn rewritten as In for rule %s", r)
		operator = "In"
	}
	return key, operator, topologyKey
}

// termValues strips the label-key prefix off each target: "app=S1" becomes
// "S1" when the term key is "app". A mismatched prefix is an error, since it
// would silently bind the rule to a different label.
func termValues(r model.Rule, key string) ([]string, error) {
	values := make([]string, 0, len(r.Targets()))
	for _, target := range r.Targets() {
		if !strings.Contains(target, "=") {
			values = append(values, target)
			continue
		}
		parts := strings.SplitN(target, "=", 2)
		if parts[0] != key {
			return nil, fmt.Errorf("target %q does not match label key %q for rule %s", target, key, r)
		}
		values = append(values, parts[1])
	}
	return values, nil
}

// RemoveRules re-emits the manifests behind entities with the affinity
// terms at the recommended (file, line) positions removed.
func RemoveRules(entities []model.Entity, rules []model.Rule, mapping map[string]string) ([]NamedDoc, error) {
	linesByFile := make(map[string]map[int]struct{})
	for _, r := range rules {
		if r.File() == "" || r.Line() == 0 {
			continue
		}
		set, ok := linesByFile[r.File()]
		if !ok {
			set = make(map[int]struct{})
			linesByFile[r.File()] = set
		}
		set[r.Line()] = struct{}{}
	}

	var docs []NamedDoc
	for i := range entities {
		e := &entities[i]
		if e.IsDummy() {
			continue
		}
		path, ok := mapping[e.Name]
		if !ok {
			return nil, fmt.Errorf("no source file found for entity %s", e.Name)
		}

		lines, touched := linesByFile[path]
		if !touched {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, NamedDoc{Name: filepath.Base(path), Data: data})
			continue
		}

		doc, err := removeTermsAtLines(path, lines)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func removeTermsAtLines(path string, lines map[int]struct{}) (NamedDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NamedDoc{}, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}
	root, err := docRoot(&doc)
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}
	kindNode := mapValue(root, "kind")
	if kindNode == nil {
		return NamedDoc{}, fmt.Errorf("%s: manifest has no kind", path)
	}
	spec, err := specNodeFor(root, kindNode.Value, false)
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}

	keep := func(item *yaml.Node) bool {
		_, hit := lines[item.Line]
		return !hit
	}

	if affinityNode := mapValue(spec, "affinity"); affinityNode != nil {
		for _, kind := range []string{"podAffinity", "podAntiAffinity"} {
			if k := mapValue(affinityNode, kind); k != nil {
				filterSequence(mapValue(k, requiredKey), keep)
			}
		}
		if na := mapValue(affinityNode, "nodeAffinity"); na != nil {
			if required := mapValue(na, requiredKey); required != nil {
				filterSequence(mapValue(required, "nodeSelectorTerms"), keep)
			}
		}
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return NamedDoc{}, fmt.Errorf("%s: %w", path, err)
	}
	return NamedDoc{Name: filepath.Base(path), Data: out}, nil
}
