package k8s

import (
	"fmt"
	"sort"
	"strings"

	"placefix/internal/model"
)

// ScanEntityFileMapping maps each entity name to the manifest file its rules
// should be written back to, from the entity source and the rule metadata.
// IR dumps are skipped: they are derived artifacts, not manifests. An entity
// attributed to two different manifests is an error.
func ScanEntityFileMapping(entities []model.Entity) (map[string]string, error) {
	files := make(map[string]map[string]struct{})

	record := func(name, path string) {
		if path == "" || strings.HasSuffix(path, ".ir") {
			return
		}
		set, ok := files[name]
		if !ok {
			set = make(map[string]struct{})
			files[name] = set
		}
		set[path] = struct{}{}
	}

	for i := range entities {
		e := &entities[i]
		if e.Source != model.SourceUnknown {
			record(e.Name, string(e.Source))
		}
		for _, r := range e.Rules() {
			record(e.Name, r.MetaFile())
		}
	}

	var dups []string
	mapping := make(map[string]string, len(files))
	for name, set := range files {
		if len(set) > 1 {
			dups = append(dups, name)
			continue
		}
		for path := range set {
			mapping[name] = path
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		return nil, fmt.Errorf("entities mapped to multiple source files: %v", dups)
	}
	return mapping, nil
}
