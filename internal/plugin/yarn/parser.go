package yarn

import (
	"fmt"
	"strconv"
	"strings"

	"placefix/internal/logging"
	"placefix/internal/model"
)

func scopeTopology(scope string) (model.TopologyKey, bool) {
	switch scope {
	case "NODE":
		return model.TopologyNode, true
	case "RACK":
		return model.TopologyRack, true
	default:
		return "", false
	}
}

// Parse reads a placement-spec file into entities, one rule set per source
// tag. Lines parse independently; all malformed lines report together.
func Parse(data, path string) ([]model.Entity, error) {
	var (
		rules []model.Rule
		errs  []string
	)

	for i, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		specs, err := parseSpecLine(line)
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", i+1, err))
			continue
		}
		for _, spec := range specs {
			rules = append(rules, specRules(spec, i+1, path)...)
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("parse %s:\n%s", path, strings.Join(errs, "\n"))
	}

	entities := model.EntitiesFromRules(rules)
	for i := range entities {
		entities[i].Source = model.FileSource(path)
	}
	return entities, nil
}

func specRules(spec placementSpec, line int, path string) []model.Rule {
	if spec.Constraint == nil {
		return nil
	}
	return constraintRules(spec.Constraint, spec.SourceTag, spec.NumContainers, line, path)
}

func constraintRules(c constraint, sourceTag string, num, line int, path string) []model.Rule {
	switch c := c.(type) {
	case singleConstraint:
		return singleRules(c, sourceTag, num, line, path)
	case compositeConstraint:
		return compositeRules(c, sourceTag, num, line, path)
	default:
		return nil
	}
}

func ruleMetadata(scope string, num, line int, path string, topo model.TopologyKey) *model.Metadata {
	return model.NewMetadata(path, line, map[string]string{
		"scope":                   scope,
		"numberOfContainer":       strconv.Itoa(num),
		model.MetadataTopologyKey: string(topo),
	})
}

func singleRules(c singleConstraint, sourceTag string, num, line int, path string) []model.Rule {
	log := logging.L(logging.CategoryParser)

	topo, ok := scopeTopology(c.Scope)
	if !ok {
		log.Warnf("%s:%d: unknown scope %q, skipping constraint", path, line, c.Scope)
		return nil
	}

	origin := model.NewRuleSource(path, line)
	meta := ruleMetadata(c.Scope, num, line, path, topo)

	switch c.Op {
	case "IN":
		return []model.Rule{model.Mono(sourceTag, c.TargetTag, model.Require, origin, meta)}
	case "NOTIN":
		return []model.Rule{model.Mono(sourceTag, c.TargetTag, model.Exclude, origin, meta)}
	case "CARDINALITY":
		// Cardinality bounds instance counts; the satisfiability model has
		// no notion of counts, so the constraint is noted and dropped.
		log.Warnf("%s:%d: cardinality constraint on %q is not modeled, skipping", path, line, c.TargetTag)
		return nil
	default:
		return nil
	}
}

func compositeRules(c compositeConstraint, sourceTag string, num, line int, path string) []model.Rule {
	log := logging.L(logging.CategoryParser)

	var rules []model.Rule
	for _, child := range c.Children {
		rules = append(rules, constraintRules(child, sourceTag, num, line, path)...)
	}

	if c.Op == "AND" || len(rules) == 0 {
		// AND composes conjunctively, which is how separate rules combine
		// anyway.
		return rules
	}

	sameScope := true
	allRequire := true
	allExclude := true
	scope0, _ := rules[0].Lookup("scope")
	for _, r := range rules {
		scope, _ := r.Lookup("scope")
		if scope != scope0 {
			sameScope = false
		}
		if !r.IsRequire() {
			allRequire = false
		}
		if !r.IsExclude() {
			allExclude = false
		}
	}

	switch {
	case allRequire && sameScope:
		// OR over IN constraints is exactly a Multi require.
		var targets []string
		for _, r := range rules {
			targets = append(targets, r.Targets()...)
		}
		topo, _ := scopeTopology(scope0)
		meta := ruleMetadata(scope0, num, line, path, topo)
		return []model.Rule{model.Multi(sourceTag, targets, model.Require, model.NewRuleSource(path, line), meta)}
	case allExclude && sameScope:
		// NOTIN a OR NOTIN b only blocks placements carrying both tags;
		// keeping the conjunctive reading over-constrains, matching the
		// scheduler's own treatment of anti-affinity lists.
		return rules
	default:
		log.Warnf("%s:%d: OR over mixed constraint kinds or scopes is not supported, skipping", path, line)
		return nil
	}
}
