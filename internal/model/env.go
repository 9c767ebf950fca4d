package model

import (
	"errors"
	"sort"
	"strings"
)

// ErrEmptyEnvData is returned when an environment file yields no entries.
var ErrEmptyEnvData = errors.New("empty environment data")

// Env describes one concrete environment: a set of labels that are
// co-selected when probing schedulability. Environments that declared
// identical label sets are merged; the extra names are kept for reporting.
type Env struct {
	Name           string
	Labels         []string
	DuplicateNames []string
}

// ParseEnvs reads the line-oriented environment format:
//
//	env_name app=app1;app=app2;node=high-performance-node;
//
// Later lines with a name seen before replace the earlier entry.
// Environments with identical label sets collapse into one.
func ParseEnvs(data string) ([]Env, error) {
	byName := make(map[string][]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		name := parts[0]

		var labels []string
		if len(parts) > 1 {
			for _, l := range strings.Split(parts[1], ";") {
				if l != "" {
					labels = append(labels, l)
				}
			}
			sort.Strings(labels)
		}
		byName[name] = labels
	}

	// Group names by label set so duplicate environments solve once.
	byLabels := make(map[string]*Env)
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var keys []string
	for _, name := range names {
		labels := byName[name]
		key := strings.Join(labels, "\x00")
		if env, ok := byLabels[key]; ok {
			env.DuplicateNames = append(env.DuplicateNames, name)
			continue
		}
		byLabels[key] = &Env{Name: name, Labels: labels}
		keys = append(keys, key)
	}

	if len(byLabels) == 0 {
		return nil, ErrEmptyEnvData
	}

	envs := make([]Env, 0, len(byLabels))
	for _, key := range keys {
		envs = append(envs, *byLabels[key])
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })
	return envs, nil
}
