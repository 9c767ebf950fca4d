package k8s

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"placefix/internal/ir"
	"placefix/internal/logging"
	"placefix/internal/model"
)

// Report writes the solve artifacts of one pipeline run into an output
// directory. The conflict and recommendation files carry the run id so they
// can be told apart across runs; the IR dump, partition dumps and
// definitions file do not.
type Report struct {
	Dir   string
	RunID string
}

// NewReport creates the output directory and stamps a fresh run id.
func NewReport(dir string) (*Report, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Report{Dir: dir, RunID: uuid.NewString()}, nil
}

func (r *Report) write(name string, data []byte) error {
	path := filepath.Join(r.Dir, name)
	if _, err := os.Stat(path); err == nil {
		logging.L(logging.CategoryPlugin).Warnf("replacing existing %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	logging.L(logging.CategoryPlugin).Infof("wrote %s", path)
	return nil
}

func ruleSite(r model.Rule) string {
	file := r.File()
	if file == "" {
		file = "Unknown"
	}
	return fmt.Sprintf("%s:%d", file, r.Line())
}

type conflictEntry struct {
	Name      string   `yaml:"name"`
	Conflicts []string `yaml:"conflicts"`
}

type conflictFile struct {
	RunID                 string          `yaml:"run_id"`
	UnschedulableEntities []conflictEntry `yaml:"unschedulable_entities"`
}

// WriteConflicts dumps the conflict map for one topology partition as
// conflicts-<topo>.yaml, entities sorted by name and rules rendered as
// file:line sites.
func (r *Report) WriteConflicts(topo string, conflicts map[string][]model.Rule) error {
	// Topology keys such as topology.kubernetes.io/zone shorten to their
	// last path segment for the file name.
	if idx := strings.LastIndex(topo, "/"); idx >= 0 {
		topo = topo[idx+1:]
	}

	names := make([]string, 0, len(conflicts))
	for name := range conflicts {
		names = append(names, name)
	}
	sort.Strings(names)

	file := conflictFile{RunID: r.RunID}
	for _, name := range names {
		entry := conflictEntry{Name: name}
		for _, rule := range conflicts[name] {
			entry.Conflicts = append(entry.Conflicts, ruleSite(rule))
		}
		file.UnschedulableEntities = append(file.UnschedulableEntities, entry)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	return r.write(fmt.Sprintf("conflicts-%s.yaml", topo), data)
}

type recommendationFile struct {
	RunID           string   `yaml:"run_id"`
	Recommendations []string `yaml:"recommendations"`
}

// WriteRecommendations dumps the removal recommendation as file:line sites.
func (r *Report) WriteRecommendations(rules []model.Rule) error {
	file := recommendationFile{RunID: r.RunID}
	for _, rule := range rules {
		file.Recommendations = append(file.Recommendations, ruleSite(rule))
	}
	data, err := yaml.Marshal(file)
	if err != nil {
		return err
	}
	return r.write("recommendations.yaml", data)
}

type definition struct {
	Name       string   `yaml:"name"`
	Source     string   `yaml:"source"`
	References []string `yaml:"references,omitempty"`
}

// WriteDefinitions dumps, per name, where it is defined and every rule site
// referencing it. Names referenced but never defined appear with an unknown
// source.
func (r *Report) WriteDefinitions(entities []model.Entity) error {
	defs := make(map[string]*definition)

	for i := range entities {
		e := &entities[i]
		if _, dup := defs[e.Name]; dup {
			return fmt.Errorf("duplicate definition found: %s", e.Name)
		}
		defs[e.Name] = &definition{Name: e.Name, Source: e.Source.String()}
	}
	for i := range entities {
		for _, rule := range entities[i].Rules() {
			site := ruleSite(rule)
			for _, target := range rule.Targets() {
				d, ok := defs[target]
				if !ok {
					d = &definition{Name: target, Source: model.SourceUnknown.String()}
					defs[target] = d
				}
				d.References = append(d.References, site)
			}
		}
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]definition, 0, len(names))
	for _, name := range names {
		sort.Strings(defs[name].References)
		out = append(out, *defs[name])
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	return r.write("definitions.yaml", data)
}

// WriteDump writes the merged entity list as canonical IR.
func (r *Report) WriteDump(entities []model.Entity) error {
	return r.write("dump.ir", []byte(ir.Format(entities)))
}

// WritePartitionDump writes one topology partition's entities in the wire
// form the yaml entity parser accepts.
func (r *Report) WritePartitionDump(key string, entities []model.Entity) error {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		key = key[idx+1:]
	}
	data, err := model.EntitiesToYAML(entities)
	if err != nil {
		return err
	}
	return r.write(fmt.Sprintf("dump-%s.yaml", key), data)
}

// WriteDocs writes re-emitted manifests into a subdirectory of the report.
func (r *Report) WriteDocs(subdir string, docs []NamedDoc) error {
	dir := filepath.Join(r.Dir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	for _, doc := range docs {
		if err := os.WriteFile(filepath.Join(dir, doc.Name), doc.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", doc.Name, err)
		}
	}
	return nil
}
