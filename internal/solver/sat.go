package solver

import (
	"fmt"
	"hash/fnv"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"placefix/internal/logging"
	"placefix/internal/model"
)

// SATEngine encodes entities as boolean constraints and probes, per universe
// name, whether that name can be selected at all. Every asserted clause is
// guarded by a tracking literal derived from the rule's content, so a failed
// probe's unsat core maps straight back to the offending rules.
//
// The engine owns one solver instance per Solve call; probes are isolated by
// assumption sets, which the backend retracts completely after each check.
type SATEngine struct {
	envs []model.Env
}

// NewSATEngine returns a sat engine with no environments set.
func NewSATEngine() *SATEngine { return &SATEngine{} }

// Name implements Engine.
func (*SATEngine) Name() string { return "sat" }

// SetEnvs switches the engine into environment mode: each probe is then
// repeated per environment with that environment's labels co-selected and
// every unrelated name deselected. Any satisfiable environment clears the
// probed name.
func (e *SATEngine) SetEnvs(envs []model.Env) {
	e.envs = envs
}

type encoder struct {
	g    *gini.Gini
	vars map[string]z.Lit
	// trackers maps the fnv-64 hash of a rule's canonical content to its
	// tracking literal; keys guards against hash collisions, which would
	// silently merge unrelated rules in the core.
	trackers map[uint64]z.Lit
	keys     map[uint64]string
	rules    map[z.Lit]model.Rule
	tracking []z.Lit
}

func newEncoder() *encoder {
	return &encoder{
		g:        gini.New(),
		vars:     make(map[string]z.Lit),
		trackers: make(map[uint64]z.Lit),
		keys:     make(map[uint64]string),
		rules:    make(map[z.Lit]model.Rule),
	}
}

func (enc *encoder) varFor(name string) z.Lit {
	if v, ok := enc.vars[name]; ok {
		return v
	}
	v := enc.g.Lit()
	enc.vars[name] = v
	return v
}

func (enc *encoder) trackerFor(r model.Rule) z.Lit {
	key := r.Key()
	h := fnv.New64a()
	h.Write([]byte(key))
	sum := h.Sum64()

	if t, ok := enc.trackers[sum]; ok {
		if enc.keys[sum] != key {
			panic(fmt.Sprintf("rule tracker collision: %q vs %q", enc.keys[sum], key))
		}
		return t
	}
	t := enc.g.Lit()
	enc.trackers[sum] = t
	enc.keys[sum] = key
	enc.rules[t] = r
	enc.tracking = append(enc.tracking, t)
	return t
}

// track asserts the given clauses guarded by the rule's tracking literal:
// each clause c becomes (¬t ∨ c), and t is assumed on every probe.
func (enc *encoder) track(r model.Rule, clauses ...[]z.Lit) {
	t := enc.trackerFor(r)
	for _, clause := range clauses {
		enc.g.Add(t.Not())
		for _, lit := range clause {
			enc.g.Add(lit)
		}
		enc.g.Add(z.LitNull)
	}
}

// assertEntity encodes one entity's rules over the variable of its name.
func (enc *encoder) assertEntity(e *model.Entity) {
	head := enc.varFor(e.Name)

	for _, r := range e.Requires {
		// head → (t1 ∨ … ∨ tk); for Mono k is 1.
		clause := []z.Lit{head.Not()}
		for _, t := range r.Targets() {
			clause = append(clause, enc.varFor(t))
		}
		enc.track(r, clause)
	}
	for _, r := range e.Excludes {
		// head forbids every target: (¬head ∨ ¬ti) per target.
		clauses := make([][]z.Lit, 0, len(r.Targets()))
		for _, t := range r.Targets() {
			clauses = append(clauses, []z.Lit{head.Not(), enc.varFor(t).Not()})
		}
		enc.track(r, clauses...)
	}
}

// probe checks satisfiability under the given assumptions plus every
// tracking literal. On unsat it returns the offending rules recovered from
// the failed assumptions.
func (enc *encoder) probe(assumptions []z.Lit) ([]model.Rule, bool) {
	enc.g.Assume(enc.tracking...)
	enc.g.Assume(assumptions...)

	switch enc.g.Solve() {
	case 1:
		return nil, true
	case -1:
		failed := enc.g.Why(nil)
		seen := make(map[string]struct{})
		var core []model.Rule
		for _, lit := range failed {
			r, ok := enc.rules[lit]
			if !ok {
				// Probe or environment assumption, not a rule tracker.
				continue
			}
			if _, dup := seen[r.Key()]; dup {
				continue
			}
			seen[r.Key()] = struct{}{}
			core = append(core, r)
		}
		return core, false
	default:
		// The backend only reports unknown under external cancellation,
		// which this engine never requests.
		panic("sat backend returned unknown")
	}
}

// Solve implements Engine.
func (e *SATEngine) Solve(m *EntityMap) Verdict {
	log := logging.L(logging.CategorySolver)

	enc := newEncoder()
	for i := range m.Entities {
		if m.Entities[i].IsDummy() {
			continue
		}
		enc.assertEntity(&m.Entities[i])
	}

	conflicts := make(map[string][]model.Rule)
	for _, name := range m.SortedNames() {
		v, ok := enc.vars[name]
		if !ok {
			log.Debugf("no constraint for %s, skipping", name)
			continue
		}

		if len(e.envs) == 0 {
			if core, sat := enc.probe([]z.Lit{v}); !sat {
				conflicts[name] = core
			}
			continue
		}

		if core, conflicted := e.probeEnvs(enc, m, name, v); conflicted {
			conflicts[name] = core
		}
	}

	// Fold split siblings back onto their user-visible names.
	merged := make(map[string][]model.Rule, len(conflicts))
	for name, rules := range conflicts {
		orig := m.Original(name)
		merged[orig] = append(merged[orig], rules...)
	}

	return NewConflict(merged)
}

// probeEnvs runs the per-environment sub-probes for one name. A satisfiable
// environment clears the name; otherwise the cores union across all
// environments.
func (e *SATEngine) probeEnvs(enc *encoder, m *EntityMap, name string, v z.Lit) ([]model.Rule, bool) {
	log := logging.L(logging.CategorySolver)

	var union []model.Rule
	for _, env := range e.envs {
		log.Debugf("considering env %s for %s", env.Name, name)

		assumptions := []z.Lit{v}
		labels := make(map[string]struct{}, len(env.Labels))
		for _, label := range env.Labels {
			labels[label] = struct{}{}
		}

		for _, label := range env.Labels {
			// A split label must keep both copies present to preserve the
			// original entity's presence.
			if sibs, split := m.Siblings(label); split {
				v1, ok1 := enc.vars[sibs[0]]
				v2, ok2 := enc.vars[sibs[1]]
				if ok1 && ok2 {
					assumptions = append(assumptions, v1, v2)
				} else {
					log.Warnf("no variable for %s, skipping", label)
				}
				continue
			}
			if lv, ok := enc.vars[label]; ok {
				assumptions = append(assumptions, lv)
			} else {
				log.Warnf("no variable for %s, skipping", label)
			}
		}

		// Everything that is neither the probed name nor part of the
		// environment is deselected. Split siblings count as their
		// original for that test.
		for _, other := range m.SortedNames() {
			if other == name {
				continue
			}
			if _, isLabel := labels[other]; isLabel {
				continue
			}
			if _, isLabel := labels[m.Original(other)]; isLabel {
				continue
			}
			if ov, ok := enc.vars[other]; ok {
				assumptions = append(assumptions, ov.Not())
			}
		}

		core, sat := enc.probe(assumptions)
		if sat {
			return nil, false
		}
		union = append(union, core...)
	}

	if len(union) == 0 {
		return nil, false
	}
	return union, true
}
