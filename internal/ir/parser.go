// Package ir reads and writes the line-oriented rule interchange format:
//
//	source require target // File=pod.yaml;Line=12;topology=node;
//	source exclude a,b,c
//
// One rule per line; the optional "//" trailer carries File/Line provenance
// plus free-form metadata keys. The format round-trips through Format.
package ir

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"placefix/internal/model"
)

// ParseError aggregates every malformed line of one input.
type ParseError struct {
	Lines []string
}

func (e *ParseError) Error() string {
	return strings.Join(e.Lines, "\n")
}

// Parse reads IR text into entities grouped by rule source name. The source
// path is recorded as both the entity source and the default rule
// provenance.
func Parse(data string, source model.Source) ([]model.Entity, error) {
	var (
		rules []model.Rule
		errs  []string
	)

	for i, line := range strings.Split(data, "\n") {
		lineNum := i + 1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}

		rule, err := parseLine(line, source, lineNum)
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}
		rules = append(rules, rule)
	}

	if len(errs) > 0 {
		return nil, &ParseError{Lines: errs}
	}

	entities := model.EntitiesFromRules(rules)
	for i := range entities {
		entities[i].Source = source
	}
	return entities, nil
}

func parseLine(line string, source model.Source, lineNum int) (model.Rule, error) {
	rulePart := line
	var meta *model.Metadata
	if idx := strings.Index(line, "//"); idx >= 0 {
		rulePart = strings.TrimSpace(line[:idx])
		var err error
		meta, err = parseMetadata(strings.TrimSpace(line[idx+2:]), string(source), lineNum)
		if err != nil {
			return model.Rule{}, err
		}
	}

	fields := strings.Fields(rulePart)
	if len(fields) != 3 {
		return model.Rule{}, fmt.Errorf("expected `source op targets`, got %q", rulePart)
	}

	typ, err := model.ParseRuleType(fields[1])
	if err != nil {
		return model.Rule{}, err
	}

	origin := model.NewRuleSource(string(source), lineNum)
	targets := strings.Split(fields[2], ",")
	for _, t := range targets {
		if t == "" {
			return model.Rule{}, errors.New("empty target name")
		}
	}
	if len(targets) == 1 {
		return model.Mono(fields[0], targets[0], typ, origin, meta), nil
	}
	return model.Multi(fields[0], targets, typ, origin, meta), nil
}

// parseMetadata reads the `k=v;k=v;` trailer. The File and Line keys feed
// the metadata's provenance fields and default to the surrounding input
// position; the rest stay in the free map.
func parseMetadata(trailer, defaultFile string, defaultLine int) (*model.Metadata, error) {
	extra := make(map[string]string)
	for _, part := range strings.Split(trailer, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		extra[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}

	file := defaultFile
	if f, ok := extra["File"]; ok {
		file = f
		delete(extra, "File")
	}
	line := defaultLine
	if l, ok := extra["Line"]; ok {
		n, err := strconv.Atoi(l)
		if err != nil {
			return nil, fmt.Errorf("invalid Line value %q", l)
		}
		line = n
		delete(extra, "Line")
	}

	if len(extra) == 0 {
		extra = nil
	}
	return model.NewMetadata(file, line, extra), nil
}
