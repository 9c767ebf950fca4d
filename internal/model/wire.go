package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ruleWire is the serialized rule form accepted by the json/yaml entity
// parsers. A rule sets either target (Mono) or targets (Multi).
type ruleWire struct {
	Source   string            `yaml:"source" json:"source"`
	Target   string            `yaml:"target,omitempty" json:"target,omitempty"`
	Targets  []string          `yaml:"targets,omitempty" json:"targets,omitempty"`
	Type     string            `yaml:"type" json:"type"`
	File     string            `yaml:"file,omitempty" json:"file,omitempty"`
	Line     int               `yaml:"line,omitempty" json:"line,omitempty"`
	MetaFile string            `yaml:"meta_file,omitempty" json:"meta_file,omitempty"`
	MetaLine int               `yaml:"meta_line,omitempty" json:"meta_line,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

type entityWire struct {
	Name     string     `yaml:"name" json:"name"`
	Requires []ruleWire `yaml:"requires,omitempty" json:"requires,omitempty"`
	Excludes []ruleWire `yaml:"excludes,omitempty" json:"excludes,omitempty"`
	Source   string     `yaml:"source,omitempty" json:"source,omitempty"`
	Priority string     `yaml:"priority,omitempty" json:"priority,omitempty"`
}

func (w ruleWire) toRule() (Rule, error) {
	typ, err := ParseRuleType(w.Type)
	if err != nil {
		return Rule{}, err
	}

	var meta *Metadata
	if w.MetaFile != "" || w.MetaLine != 0 || len(w.Metadata) > 0 {
		meta = NewMetadata(w.MetaFile, w.MetaLine, w.Metadata)
	}

	origin := RuleSource{File: w.File, Line: w.Line}
	switch {
	case w.Target != "" && len(w.Targets) == 0:
		return Mono(w.Source, w.Target, typ, origin, meta), nil
	case w.Target == "" && len(w.Targets) > 0:
		return Multi(w.Source, w.Targets, typ, origin, meta), nil
	default:
		return Rule{}, fmt.Errorf("rule of %q must set exactly one of target/targets", w.Source)
	}
}

func toRuleWire(r Rule) ruleWire {
	w := ruleWire{
		Source: r.Source(),
		Type:   r.Type().String(),
		File:   r.File(),
		Line:   r.Line(),
	}
	if r.IsMulti() {
		w.Targets = r.Targets()
	} else {
		w.Target = r.Target()
	}
	if m := r.Meta(); m != nil {
		w.MetaFile = m.File
		w.MetaLine = m.Line
		w.Metadata = m.Extra
	}
	return w
}

func (w entityWire) toEntity(source Source) (Entity, error) {
	e := Entity{Name: w.Name, Source: source, Priority: ParsePriority(w.Priority)}
	if w.Source != "" {
		e.Source = Source(w.Source)
	}
	for _, rw := range w.Requires {
		if rw.Source == "" {
			rw.Source = w.Name
		}
		r, err := rw.toRule()
		if err != nil {
			return Entity{}, err
		}
		if !r.IsRequire() {
			return Entity{}, fmt.Errorf("entity %q: %s rule in requires list", w.Name, r.Type())
		}
		e.AddRequire(r)
	}
	for _, rw := range w.Excludes {
		if rw.Source == "" {
			rw.Source = w.Name
		}
		r, err := rw.toRule()
		if err != nil {
			return Entity{}, err
		}
		if !r.IsExclude() {
			return Entity{}, fmt.Errorf("entity %q: %s rule in excludes list", w.Name, r.Type())
		}
		e.AddExclude(r)
	}
	return e, nil
}

func wiresToEntities(wires []entityWire, source Source) ([]Entity, error) {
	entities := make([]Entity, 0, len(wires))
	for _, w := range wires {
		e, err := w.toEntity(source)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// EntitiesFromYAML decodes a serialized entity list, attributing every
// entity without an explicit source to the given one.
func EntitiesFromYAML(data []byte, source Source) ([]Entity, error) {
	var wires []entityWire
	if err := yaml.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("decode entity yaml: %w", err)
	}
	return wiresToEntities(wires, source)
}

// EntitiesFromJSON is EntitiesFromYAML for JSON input.
func EntitiesFromJSON(data []byte, source Source) ([]Entity, error) {
	var wires []entityWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, fmt.Errorf("decode entity json: %w", err)
	}
	return wiresToEntities(wires, source)
}

// EntitiesToYAML serializes an entity list in the wire form the parsers
// accept, so dumps can be re-ingested.
func EntitiesToYAML(entities []Entity) ([]byte, error) {
	wires := make([]entityWire, 0, len(entities))
	for _, e := range entities {
		w := entityWire{Name: e.Name, Priority: e.Priority.String()}
		if e.Source != SourceUnknown {
			w.Source = string(e.Source)
		}
		for _, r := range e.Requires {
			w.Requires = append(w.Requires, toRuleWire(r))
		}
		for _, r := range e.Excludes {
			w.Excludes = append(w.Excludes, toRuleWire(r))
		}
		wires = append(wires, w)
	}
	return yaml.Marshal(wires)
}
