package solver

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"placefix/internal/model"
)

// Engine is one satisfiability check over a frozen entity map. Engines keep
// no state between solves and share nothing with each other; verdict Merge
// is the only composition point.
type Engine interface {
	Name() string
	Solve(m *EntityMap) Verdict
}

// Lookup returns a fresh engine instance by name.
func Lookup(name string) (Engine, error) {
	switch name {
	case "sat":
		return NewSATEngine(), nil
	case "ring":
		return NewRingEngine(), nil
	case "unknown":
		return NewUnknownEngine(), nil
	default:
		return nil, fmt.Errorf("unknown solver %q", name)
	}
}

// Options configures a composed solve.
type Options struct {
	// Engines to run, by registry name. Defaults to just "sat".
	Engines []string
	// Envs switches the sat engine into environment mode.
	Envs []model.Env
}

func (o Options) engines() ([]Engine, error) {
	names := o.Engines
	if len(names) == 0 {
		names = []string{"sat"}
	}
	engines := make([]Engine, 0, len(names))
	for _, name := range names {
		eng, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if sat, ok := eng.(*SATEngine); ok && len(o.Envs) > 0 {
			sat.SetEnvs(o.Envs)
		}
		engines = append(engines, eng)
	}
	return engines, nil
}

// Solve runs the configured engines over one entity map and merges their
// verdicts.
func Solve(m *EntityMap, opts Options) (Verdict, error) {
	engines, err := opts.engines()
	if err != nil {
		return Ok(), err
	}
	verdict := Ok()
	for _, eng := range engines {
		verdict = verdict.Merge(eng.Solve(m))
	}
	return verdict, nil
}

// SolvePartitions builds an entity map per partition and solves the
// partitions concurrently; they are independent by construction. The result
// maps partition key to merged verdict.
func SolvePartitions(parts map[string][]model.Entity, opts Options) (map[string]Verdict, error) {
	keys := make([]string, 0, len(parts))
	for key := range parts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var (
		mu       sync.Mutex
		verdicts = make(map[string]Verdict, len(parts))
	)

	var g errgroup.Group
	for _, key := range keys {
		key := key
		entities := parts[key]
		g.Go(func() error {
			m, err := BuildEntityMap(entities)
			if err != nil {
				return fmt.Errorf("partition %s: %w", key, err)
			}
			verdict, err := Solve(m, opts)
			if err != nil {
				return fmt.Errorf("partition %s: %w", key, err)
			}
			mu.Lock()
			verdicts[key] = verdict
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}
