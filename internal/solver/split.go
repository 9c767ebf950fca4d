package solver

import (
	"placefix/internal/logging"
	"placefix/internal/model"
)

// SplitByMetadata partitions an entity list into one sub-problem per value
// of the given rule-metadata key. Each partition carries, per entity, only
// the rules tagged with that value; rules with no tag land in the
// defaultKey partition after a diagnostic.
func SplitByMetadata(entities []model.Entity, metaKey, defaultKey string) map[string][]model.Entity {
	log := logging.L(logging.CategorySolver)

	parts := make(map[string][]model.Entity)
	for i := range entities {
		e := &entities[i]

		requires := bucketRules(e.Requires, metaKey, defaultKey, log.Warnf)
		excludes := bucketRules(e.Excludes, metaKey, defaultKey, log.Warnf)

		keys := make(map[string]struct{})
		for k := range requires {
			keys[k] = struct{}{}
		}
		for k := range excludes {
			keys[k] = struct{}{}
		}

		for key := range keys {
			part := model.Entity{
				Name:     e.Name,
				Requires: requires[key],
				Excludes: excludes[key],
				Source:   e.Source,
				Priority: e.Priority,
			}
			parts[key] = append(parts[key], part)
		}
	}
	return parts
}

// SplitByTopology partitions by the "topology" metadata key.
func SplitByTopology(entities []model.Entity, defaultKey string) map[string][]model.Entity {
	return SplitByMetadata(entities, model.MetadataTopologyKey, defaultKey)
}

func bucketRules(rules []model.Rule, metaKey, defaultKey string, warnf func(string, ...any)) map[string][]model.Rule {
	buckets := make(map[string][]model.Rule)
	for _, r := range rules {
		key, ok := r.Lookup(metaKey)
		if !ok {
			warnf("missing %q for rule %s, assuming default %q", metaKey, r, defaultKey)
			key = defaultKey
		}
		buckets[key] = append(buckets[key], r)
	}
	return buckets
}
